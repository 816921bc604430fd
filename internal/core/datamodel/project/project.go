package project

import "time"

type Project struct {
	ID          int64     `gorm:"primaryKey"`
	Name        string    `gorm:"column:name;size:100;not null"`
	Number      string    `gorm:"column:number;size:64;not null"`
	Description string    `gorm:"column:description"`
	Status      string    `gorm:"column:status;size:32;not null"`
	CreatedBy   *int64    `gorm:"column:created_by"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// ProjectTeamMember links a user to a project. A (project, user) pair has at
// most one row; removal clears IsActive instead of deleting it.
type ProjectTeamMember struct {
	ID        int64     `gorm:"primaryKey"`
	ProjectID int64     `gorm:"column:project_id;not null;uniqueIndex:uq_project_team_member"`
	UserID    int64     `gorm:"column:user_id;not null;uniqueIndex:uq_project_team_member;index"`
	Role      string    `gorm:"column:role;size:64;not null"`
	IsActive  bool      `gorm:"column:is_active;not null"`
	AddedBy   *int64    `gorm:"column:added_by"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (ProjectTeamMember) TableName() string {
	return "project_team_members"
}

const (
	StatusPlanning  = "planning"
	StatusActive    = "active"
	StatusOnHold    = "on_hold"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusDelayed   = "delayed"
)

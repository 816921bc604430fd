package user

import "time"

// Role is a global role. Permissions holds the capability bitmask.
type Role struct {
	ID          int64     `gorm:"primaryKey"`
	Name        string    `gorm:"column:name;size:64;uniqueIndex;not null"`
	Permissions int       `gorm:"column:permissions;not null"`
	Default     bool      `gorm:"column:is_default;index;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

type User struct {
	ID           int64      `gorm:"primaryKey"`
	Email        string     `gorm:"column:email;uniqueIndex;not null"`
	Name         string     `gorm:"column:name;not null"`
	PasswordHash string     `gorm:"column:password_hash;not null"`
	RoleID       *int64     `gorm:"column:role_id;index"`
	Role         *Role      `gorm:"foreignKey:RoleID"`
	IsActive     bool       `gorm:"column:is_active;not null"`
	LastSeen     *time.Time `gorm:"column:last_seen;index"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

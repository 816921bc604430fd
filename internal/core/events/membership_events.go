package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeMembershipChanged = "membership.changed"
	EventTypeProjectDeleted    = "project.deleted"
	EventTypeUserAccessChanged = "user.access_changed"
)

const (
	MembershipAdded   = "added"
	MembershipRemoved = "removed"
)

type MembershipChangedEvent struct {
	BaseEvent
	ProjectID int64  `json:"project_id"`
	UserID    int64  `json:"user_id"`
	Change    string `json:"change"`
}

func NewMembershipChangedEvent(projectID, userID int64, change string) *MembershipChangedEvent {
	return &MembershipChangedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeMembershipChanged,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"project_id": projectID,
				"user_id":    userID,
				"change":     change,
			},
		},
		ProjectID: projectID,
		UserID:    userID,
		Change:    change,
	}
}

type ProjectDeletedEvent struct {
	BaseEvent
	ProjectID int64 `json:"project_id"`
	DeletedBy int64 `json:"deleted_by"`
}

func NewProjectDeletedEvent(projectID, deletedBy int64) *ProjectDeletedEvent {
	return &ProjectDeletedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeProjectDeleted,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"project_id": projectID,
				"deleted_by": deletedBy,
			},
		},
		ProjectID: projectID,
		DeletedBy: deletedBy,
	}
}

const (
	UserDeactivated = "deactivated"
	UserRoleChanged = "role_changed"
)

// UserAccessChangedEvent signals that every access decision cached for the
// user may be stale.
type UserAccessChangedEvent struct {
	BaseEvent
	UserID int64  `json:"user_id"`
	Reason string `json:"reason"`
}

func NewUserAccessChangedEvent(userID int64, reason string) *UserAccessChangedEvent {
	return &UserAccessChangedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeUserAccessChanged,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"user_id": userID,
				"reason":  reason,
			},
		},
		UserID: userID,
		Reason: reason,
	}
}

package access

import (
	"context"
	"fmt"

	"github.com/fieldline/fieldline/internal/core/events"
)

// RegisterEventHandlers subscribes the checker to membership, project and user
// events so that cached decisions are invalidated when they change.
func (c *Checker) RegisterEventHandlers(eventBus *events.EventBus) {
	eventBus.Subscribe(events.EventTypeMembershipChanged, c.handleMembershipChanged)
	eventBus.Subscribe(events.EventTypeProjectDeleted, c.handleProjectDeleted)
	eventBus.Subscribe(events.EventTypeUserAccessChanged, c.handleUserAccessChanged)

	c.logger.Info("access event handlers registered")
}

func (c *Checker) handleMembershipChanged(ctx context.Context, event events.Event) error {
	e, ok := event.(*events.MembershipChangedEvent)
	if !ok {
		return fmt.Errorf("invalid event type: expected MembershipChangedEvent, got %T", event)
	}

	c.logger.DebugContext(ctx, "clearing access cache entry",
		"user_id", e.UserID, "project_id", e.ProjectID, "change", e.Change)
	return c.ClearAccessCache(ctx, ForUser(e.UserID), ForProject(e.ProjectID))
}

func (c *Checker) handleProjectDeleted(ctx context.Context, event events.Event) error {
	e, ok := event.(*events.ProjectDeletedEvent)
	if !ok {
		return fmt.Errorf("invalid event type: expected ProjectDeletedEvent, got %T", event)
	}
	return c.ClearAccessCache(ctx, ForProject(e.ProjectID))
}

func (c *Checker) handleUserAccessChanged(ctx context.Context, event events.Event) error {
	e, ok := event.(*events.UserAccessChangedEvent)
	if !ok {
		return fmt.Errorf("invalid event type: expected UserAccessChangedEvent, got %T", event)
	}
	return c.ClearAccessCache(ctx, ForUser(e.UserID))
}

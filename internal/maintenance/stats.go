package maintenance

import (
	"context"
	"time"
)

const activeWindow = 24 * time.Hour

// ActiveUsers counts users seen within the last 24 hours.
func (t *Tasks) ActiveUsers(ctx context.Context) (int64, error) {
	var count int64
	since := t.now().UTC().Add(-activeWindow)
	err := t.db.GetContext(ctx, &count, t.db.Rebind(`SELECT COUNT(*) FROM users WHERE last_seen > ?`), since)
	return count, err
}

// UsageStats logs the daily active user count. Failures are logged here and
// not reported to the scheduler.
func (t *Tasks) UsageStats(ctx context.Context) error {
	count, err := t.ActiveUsers(ctx)
	if err != nil {
		t.logger.ErrorContext(ctx, "failed to compute usage statistics", "error", err)
		return nil
	}
	t.logger.InfoContext(ctx, "daily active users", "count", count)
	return nil
}

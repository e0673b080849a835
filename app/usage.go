package app

import (
	"context"
	"time"

	"github.com/DaniBoe/fake-checker/app/models"
)

// weekStartUTC returns the most recent Monday 00:00 UTC at or before t.
// The free quota resets at this fixed weekly boundary, not on a rolling
// 7x24h window.
func weekStartUTC(t time.Time) time.Time {
	t = t.UTC()
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	daysSinceMonday := weekday - 1
	start := t.AddDate(0, 0, -daysSinceMonday)
	return time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
}

// usageSnapshot computes the caller's free usage for the current week and,
// for authenticated callers, the paid balance. Pure read.
func usageSnapshot(ctx context.Context, store Store, accountID string, now time.Time) (models.UsageSnapshot, error) {
	freeUsed, err := store.CountFreeSince(ctx, accountID, weekStartUTC(now))
	if err != nil {
		return models.UsageSnapshot{}, err
	}

	snapshot := models.UsageSnapshot{
		FreeChecksUsed: freeUsed,
		CheckType:      models.CheckFree,
	}
	if accountID != "" {
		remaining, err := store.RemainingChecks(ctx, accountID)
		if err != nil {
			return models.UsageSnapshot{}, err
		}
		snapshot.PaidChecksRemaining = remaining
	}
	return snapshot, nil
}

package app

import (
	"context"
	"time"
)

// AbuseDetector flags clients whose weekly aggregates look scripted:
// too many checks from one IP, from one user agent, or too many distinct
// user agents behind one IP. Advisory only; nothing is banned.
type AbuseDetector struct {
	store          Store
	maxWeeklyPerIP int
	maxWeeklyPerUA int
	maxAgentsPerIP int
	now            func() time.Time
}

func NewAbuseDetector(store Store, maxPerIP, maxPerUA, maxAgents int) *AbuseDetector {
	return &AbuseDetector{
		store:          store,
		maxWeeklyPerIP: maxPerIP,
		maxWeeklyPerUA: maxPerUA,
		maxAgentsPerIP: maxAgents,
		now:            time.Now,
	}
}

// IsSuspicious evaluates the current weekly window for both fingerprints.
func (d *AbuseDetector) IsSuspicious(ctx context.Context, ipHash, uaHash string) (bool, error) {
	since := weekStartUTC(d.now())

	ipCount, err := d.store.CountByIPSince(ctx, ipHash, since)
	if err != nil {
		return false, err
	}
	if ipCount > d.maxWeeklyPerIP {
		return true, nil
	}

	uaCount, err := d.store.CountByUASince(ctx, uaHash, since)
	if err != nil {
		return false, err
	}
	if uaCount > d.maxWeeklyPerUA {
		return true, nil
	}

	agents, err := d.store.CountDistinctAgentsSince(ctx, ipHash, since)
	if err != nil {
		return false, err
	}
	return agents > d.maxAgentsPerIP, nil
}

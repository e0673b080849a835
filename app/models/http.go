package models

// CheckResponse is the success payload of POST /api/check.
type CheckResponse struct {
	Classification
	Usage UsageSnapshot `json:"usage"`
}

// UsageStatsResponse is the payload of GET /api/usage and GET /me.
type UsageStatsResponse struct {
	FreeChecksUsed      int  `json:"freeChecksUsed"`
	PaidChecksRemaining int  `json:"paidChecksRemaining"`
	WeeklyLimit         int  `json:"weeklyLimit"`
	IsLimited           bool `json:"isLimited"`
}

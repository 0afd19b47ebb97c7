package models

import "time"

// SyncSummary aggregates the counters of one sync cycle.
type SyncSummary struct {
	RunID string

	StoresProcessed int
	StoresFailed    int
	StoresAdded     int
	StoresUpdated   int

	Added           int
	Updated         int
	Removed         int
	TotalProducts   int
	TotalCategories int

	NotificationsSent     int
	NotificationsFailed   int
	RecipientsDeactivated int

	StartedAt time.Time
	Duration  time.Duration
}

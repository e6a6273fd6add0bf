package tasks

import "time"

// Task Types
const (
	// API key maintenance
	TaskTypeAPIKeyTouch = "apikeys:touch"
	TaskTypeAPIKeyPrune = "apikeys:prune"
)

// Task Queues
const (
	QueueCritical = "critical" // For time-sensitive tasks
	QueueDefault  = "default"  // For regular tasks like last-used touches
	QueueLow      = "low"      // For background tasks like cleanup
)

// Task Timeouts
const (
	TimeoutShort  = 1 * time.Minute
	TimeoutMedium = 5 * time.Minute
)

// Task Retry Settings
const (
	RetryDefault = 3
	RetryMin     = 1
)

// touchDedupWindow bounds how often a single key's last-used touch is
// enqueued. Validation happens on every request; persisting each hit
// would hammer the queue for busy keys.
const touchDedupWindow = time.Minute

// pruneGrace is how long an expired key is kept for audit before the
// prune task deletes the row.
const pruneGrace = 30 * 24 * time.Hour

// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
type Recorder interface {
	// User lookup metrics
	IncUserCacheHit()
	IncUserCacheMiss()
	ObserveLookupDuration(duration time.Duration)

	// User mutation metrics
	IncUserCreated()
	IncUserUpdated()
	IncUserDeleted()

	// Request rejection metrics
	IncValidationFailed()
	IncRateLimited()
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}

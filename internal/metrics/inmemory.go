package metrics

import (
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	UserCacheHits         uint64
	UserCacheMisses       uint64
	LookupDurationCount   uint64
	LookupDurationTotalNs int64
	UsersCreated          uint64
	UsersUpdated          uint64
	UsersDeleted          uint64
	ValidationFailures    uint64
	RateLimited           uint64
}

// InMemoryRecorder keeps counters in process memory. It backs /metrics.
type InMemoryRecorder struct {
	userCacheHits         atomic.Uint64
	userCacheMisses       atomic.Uint64
	lookupDurationCount   atomic.Uint64
	lookupDurationTotalNs atomic.Int64
	usersCreated          atomic.Uint64
	usersUpdated          atomic.Uint64
	usersDeleted          atomic.Uint64
	validationFailures    atomic.Uint64
	rateLimited           atomic.Uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	return Snapshot{
		UserCacheHits:         m.userCacheHits.Load(),
		UserCacheMisses:       m.userCacheMisses.Load(),
		LookupDurationCount:   m.lookupDurationCount.Load(),
		LookupDurationTotalNs: m.lookupDurationTotalNs.Load(),
		UsersCreated:          m.usersCreated.Load(),
		UsersUpdated:          m.usersUpdated.Load(),
		UsersDeleted:          m.usersDeleted.Load(),
		ValidationFailures:    m.validationFailures.Load(),
		RateLimited:           m.rateLimited.Load(),
	}
}

func (m *InMemoryRecorder) IncUserCacheHit()  { m.userCacheHits.Add(1) }
func (m *InMemoryRecorder) IncUserCacheMiss() { m.userCacheMisses.Add(1) }

func (m *InMemoryRecorder) ObserveLookupDuration(duration time.Duration) {
	m.lookupDurationCount.Add(1)
	m.lookupDurationTotalNs.Add(duration.Nanoseconds())
}

func (m *InMemoryRecorder) IncUserCreated()      { m.usersCreated.Add(1) }
func (m *InMemoryRecorder) IncUserUpdated()      { m.usersUpdated.Add(1) }
func (m *InMemoryRecorder) IncUserDeleted()      { m.usersDeleted.Add(1) }
func (m *InMemoryRecorder) IncValidationFailed() { m.validationFailures.Add(1) }
func (m *InMemoryRecorder) IncRateLimited()      { m.rateLimited.Add(1) }

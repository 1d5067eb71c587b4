// testutils/watch.go
package testutils

import (
	"context"
	"sync"
	"time"
)

// WatchRecord is one persisted watch seen by MockWatchRecorder.
type WatchRecord struct {
	Kind  string
	UID   int64
	Until time.Time
}

// MockWatchRecorder stores watch records in memory and signals every call
// on Signal, so asynchronous writers can be awaited without sleeping.
type MockWatchRecorder struct {
	mu          sync.Mutex
	records     []WatchRecord
	errToReturn error
	Signal      chan WatchRecord
}

func NewMockWatchRecorder(bufferSize int) *MockWatchRecorder {
	return &MockWatchRecorder{Signal: make(chan WatchRecord, bufferSize)}
}

func (r *MockWatchRecorder) SetError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errToReturn = err
}

func (r *MockWatchRecorder) SaveWatch(_ context.Context, kind string, uid int64, until time.Time) error {
	rec := WatchRecord{Kind: kind, UID: uid, Until: until}
	r.mu.Lock()
	err := r.errToReturn
	if err == nil {
		r.records = append(r.records, rec)
	}
	r.mu.Unlock()

	r.Signal <- rec
	return err
}

func (r *MockWatchRecorder) Records() []WatchRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]WatchRecord(nil), r.records...)
}

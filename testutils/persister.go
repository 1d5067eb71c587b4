// testutils/persister.go
package testutils

import "sync"

// RecordingPersister records save requests from a rule matcher. Retired
// patterns are also sent on TimeoutSignal when it has room.
type RecordingPersister struct {
	mu            sync.Mutex
	saves         []string
	timeouts      []string
	TimeoutSignal chan string
}

func NewRecordingPersister(bufferSize int) *RecordingPersister {
	return &RecordingPersister{TimeoutSignal: make(chan string, bufferSize)}
}

func (p *RecordingPersister) Save(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.saves = append(p.saves, name)
}

func (p *RecordingPersister) SaveTimeout(pattern string) {
	p.mu.Lock()
	p.timeouts = append(p.timeouts, pattern)
	p.mu.Unlock()

	select {
	case p.TimeoutSignal <- pattern:
	default:
	}
}

func (p *RecordingPersister) Saves() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.saves...)
}

func (p *RecordingPersister) Timeouts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.timeouts...)
}

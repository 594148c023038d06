package jobs

import (
	"sync"
	"time"
)

// DefaultRefreshInterval is the minimum time between two status checks of
// the same job.
const DefaultRefreshInterval = 10 * time.Second

// RefreshSchedule throttles status checks per job. It belongs to whoever
// drives the refreshes (worker loop, TUI); the controller keeps no such state.
type RefreshSchedule struct {
	interval time.Duration

	mu   sync.Mutex
	last map[string]time.Time
}

func NewRefreshSchedule(interval time.Duration) *RefreshSchedule {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &RefreshSchedule{interval: interval, last: make(map[string]time.Time)}
}

func (s *RefreshSchedule) Interval() time.Duration {
	return s.interval
}

// Due reports whether key has not been checked within the interval.
func (s *RefreshSchedule) Due(key string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	last, ok := s.last[key]
	return !ok || now.Sub(last) >= s.interval
}

// Mark records a status check of key at now.
func (s *RefreshSchedule) Mark(key string, now time.Time) {
	s.mu.Lock()
	s.last[key] = now
	s.mu.Unlock()
}

// Forget drops key, typically once its job is terminal.
func (s *RefreshSchedule) Forget(key string) {
	s.mu.Lock()
	delete(s.last, key)
	s.mu.Unlock()
}

// NextDue returns how long until key is due again; zero means now.
func (s *RefreshSchedule) NextDue(key string, now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	last, ok := s.last[key]
	if !ok {
		return 0
	}
	if wait := s.interval - now.Sub(last); wait > 0 {
		return wait
	}
	return 0
}

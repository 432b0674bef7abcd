package admission

import (
	"sync"
	"sync/atomic"
	"time"

	apperrors "paylink/internal/errors"
)

type sample struct {
	at      time.Time
	latency time.Duration
}

// OverloadShedder rejects work when too many requests are in flight or the recent
// average latency is above a ceiling.
type OverloadShedder struct {
	maxConcurrency int64
	maxAvgLatency  time.Duration
	// maxAge drops stale samples from the average. Shed requests record no latency,
	// so without it a slow burst would keep the average high forever.
	maxAge time.Duration
	now    func() time.Time

	inFlight atomic.Int64

	mu      sync.Mutex
	samples []sample
	next    int
	filled  int
}

func NewOverloadShedder(maxConcurrency int, maxAvgLatency time.Duration, sampleSize int, maxAge time.Duration, now func() time.Time) *OverloadShedder {
	if now == nil {
		now = time.Now
	}
	if sampleSize <= 0 {
		sampleSize = 100
	}
	return &OverloadShedder{
		maxConcurrency: int64(maxConcurrency),
		maxAvgLatency:  maxAvgLatency,
		maxAge:         maxAge,
		now:            now,
		samples:        make([]sample, sampleSize),
	}
}

// Begin admits one request or fails fast with ErrOverloaded. The returned done must be
// called exactly once when the request finishes. A nil shedder admits everything.
func (s *OverloadShedder) Begin() (func(), error) {
	if s == nil {
		return func() {}, nil
	}
	if n := s.inFlight.Add(1); s.maxConcurrency > 0 && n > s.maxConcurrency {
		s.inFlight.Add(-1)
		return nil, apperrors.ErrOverloaded
	}
	if s.maxAvgLatency > 0 && s.AverageLatency() > s.maxAvgLatency {
		s.inFlight.Add(-1)
		return nil, apperrors.ErrOverloaded
	}

	started := s.now()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.inFlight.Add(-1)
			s.observe(started, s.now())
		})
	}, nil
}

func (s *OverloadShedder) observe(started, finished time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples[s.next] = sample{at: finished, latency: finished.Sub(started)}
	s.next = (s.next + 1) % len(s.samples)
	if s.filled < len(s.samples) {
		s.filled++
	}
}

// AverageLatency over buffered samples younger than maxAge. Zero when there are none.
func (s *OverloadShedder) AverageLatency() time.Duration {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	var total time.Duration
	var n int
	for i := 0; i < s.filled; i++ {
		smp := s.samples[i]
		if s.maxAge > 0 && now.Sub(smp.at) > s.maxAge {
			continue
		}
		total += smp.latency
		n++
	}
	if n == 0 {
		return 0
	}
	return total / time.Duration(n)
}

// InFlight is the number of admitted requests that have not finished.
func (s *OverloadShedder) InFlight() int64 {
	if s == nil {
		return 0
	}
	return s.inFlight.Load()
}

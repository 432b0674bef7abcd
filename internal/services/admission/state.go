// Package admission holds the per-process guards in front of the payment surface.
// Counters are not shared across replicas.
package admission

import (
	"time"

	"paylink/internal/config"
)

// State is constructed once per process and passed to the middleware that uses it.
// A nil guard is disabled.
type State struct {
	Limiter *RateLimiter
	Shedder *OverloadShedder
}

func NewState(cfg config.AdmissionConfig, now func() time.Time) *State {
	s := &State{}
	if cfg.RateLimitEnabled && cfg.RateLimitMax > 0 && cfg.RateLimitWindow > 0 {
		s.Limiter = NewRateLimiter(cfg.RateLimitWindow, cfg.RateLimitMax, now)
	}
	if cfg.OverloadEnabled {
		s.Shedder = NewOverloadShedder(cfg.MaxConcurrency, cfg.MaxAvgLatency, cfg.LatencySampleSize, cfg.LatencySampleMaxAge, now)
	}
	return s
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package session

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/wsguard/internal/metrics"
)

// Sweeper periodically purges expired sessions from a Purger.
type Sweeper struct {
	Purger   Purger
	Interval time.Duration
	Logger   zerolog.Logger
	now      func() time.Time
}

// Run loops until ctx is done. A non-positive interval disables the sweeper.
func (s *Sweeper) Run(ctx context.Context) {
	if s.Interval <= 0 || s.Purger == nil {
		return
	}
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.Logger.Info().Dur("interval", s.Interval).Msg("session sweeper started")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs one purge pass and returns the number of purged records.
func (s *Sweeper) SweepOnce(ctx context.Context) int {
	now := time.Now
	if s.now != nil {
		now = s.now
	}
	n, err := s.Purger.PurgeExpired(ctx, now())
	if err != nil {
		s.Logger.Warn().Err(err).Msg("session sweep failed")
		return 0
	}
	if n > 0 {
		metrics.SessionsPurgedTotal.Add(float64(n))
		s.Logger.Debug().Int("purged", n).Msg("expired sessions purged")
	}
	return n
}

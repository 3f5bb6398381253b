package service

import (
	"context"
	"log"
	"time"

	"test-service/internal/models"
)

// ExpireStaleAttempts sweeps in-progress attempts and terminates the ones that
// ran out of time. An attempt past its test's duration times out; an attempt
// with no activity for abandonAfter is marked abandoned. Each expiry runs the
// normal finish path, so stale attempts still get scored.
func (s *AttemptService) ExpireStaleAttempts(ctx context.Context, abandonAfter time.Duration) (int, error) {
	attempts, err := s.Attempts.FindInProgress(ctx)
	if err != nil {
		return 0, err
	}

	now := time.Now()
	durations := make(map[string]time.Duration)

	var expired int
	for i := range attempts {
		a := &attempts[i]

		duration, seen := durations[a.TestID]
		if !seen {
			test, err := s.Tests.FindByID(ctx, a.TestID)
			if err != nil {
				log.Printf("Warning: reaper could not load test %s: %v", a.TestID, err)
				durations[a.TestID] = 0
				continue
			}
			duration = time.Duration(test.Duration) * time.Minute
			durations[a.TestID] = duration
		}

		var status models.AttemptStatus
		switch {
		case duration > 0 && now.After(a.StartTime.Add(duration)):
			status = models.AttemptStatusTimedOut
		case abandonAfter > 0 && now.After(a.LastActivityAt.Add(abandonAfter)):
			status = models.AttemptStatusAbandoned
		default:
			continue
		}

		if _, err := s.FinishAttemptWithStatus(ctx, a.ID, status); err != nil {
			log.Printf("Warning: reaper failed to finish attempt %s as %s: %v", a.ID, status, err)
			continue
		}
		expired++
	}
	return expired, nil
}

// StartAttemptReaper sweeps on a fixed interval until the context is canceled.
func (s *AttemptService) StartAttemptReaper(ctx context.Context, interval, abandonAfter time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				expired, err := s.ExpireStaleAttempts(ctx, abandonAfter)
				if err != nil {
					log.Printf("Warning: attempt reaper sweep failed: %v", err)
				} else if expired > 0 {
					log.Printf("Attempt reaper expired %d stale attempts", expired)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

package trace

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/veritrail/veritrail/internal/domain"
	"github.com/veritrail/veritrail/internal/entitystore"
)

// MutationStream delivers entity mutation events, typically from the Redis
// subscription.
type MutationStream interface {
	Mutations(ctx context.Context) (<-chan entitystore.Mutation, error)
}

// Scheduler drives lazy score recomputation: it subscribes to mutation
// events and recomputes each touched project after a quiet period, so a
// burst of writes coalesces into one recompute.
type Scheduler struct {
	engine   *Engine
	stream   MutationStream
	debounce time.Duration

	mu     sync.Mutex
	timers map[uuid.UUID]*time.Timer
}

// NewScheduler creates a Scheduler. A non-positive debounce defaults to 2s.
func NewScheduler(engine *Engine, stream MutationStream, debounce time.Duration) *Scheduler {
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	return &Scheduler{
		engine:   engine,
		stream:   stream,
		debounce: debounce,
		timers:   make(map[uuid.UUID]*time.Timer),
	}
}

// Run consumes mutation events until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ch, err := s.stream.Mutations(ctx)
	if err != nil {
		return err
	}

	log.Info().Dur("debounce", s.debounce).Msg("score recompute scheduler started")
	for {
		select {
		case <-ctx.Done():
			s.stopAll()
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				s.stopAll()
				return nil
			}
			s.schedule(ctx, m.OrgID, m.ProjectID)
		}
	}
}

func (s *Scheduler) schedule(ctx context.Context, orgID, projectID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[projectID]; ok {
		t.Reset(s.debounce)
		return
	}
	s.timers[projectID] = time.AfterFunc(s.debounce, func() {
		s.mu.Lock()
		delete(s.timers, projectID)
		s.mu.Unlock()
		s.recompute(ctx, orgID, projectID)
	})
}

func (s *Scheduler) recompute(ctx context.Context, orgID, projectID uuid.UUID) {
	if _, err := s.engine.ComputeScore(ctx, orgID, projectID, "lazy"); err != nil {
		// A broken chain has already alerted and halted; anything else is
		// transient and the next mutation reschedules.
		if !errors.Is(err, domain.ErrChainBroken) {
			log.Warn().Err(err).
				Str("project_id", projectID.String()).
				Msg("lazy score recompute failed")
		}
	}
}

func (s *Scheduler) stopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}

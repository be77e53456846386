package execution

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"code-exec-service/internal/storage"
)

// Sweeper reconciles Pending records whose terminal update was lost, e.g.
// after a crash between dispatch and persistence. It marks records older
// than the stale threshold as Failed so no row stays Pending forever.
type Sweeper struct {
	store      storage.Store
	interval   time.Duration
	staleAfter time.Duration

	wg   sync.WaitGroup
	done chan struct{}
}

// NewSweeper creates a sweeper over the given store.
func NewSweeper(store storage.Store, interval, staleAfter time.Duration) *Sweeper {
	return &Sweeper{
		store:      store,
		interval:   interval,
		staleAfter: staleAfter,
		done:       make(chan struct{}),
	}
}

// Start launches the background sweep loop.
func (s *Sweeper) Start() {
	s.wg.Add(1)
	go s.loop()
}

// Stop terminates the loop and waits for an in-progress sweep to finish.
func (s *Sweeper) Stop() {
	close(s.done)
	s.wg.Wait()
}

func (s *Sweeper) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep(context.Background())
		case <-s.done:
			return
		}
	}
}

// Sweep performs one reconciliation pass and returns the number of records
// marked Failed.
func (s *Sweeper) Sweep(ctx context.Context) int {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	stale, err := s.store.ListStalePending(ctx, time.Now().UTC().Add(-s.staleAfter))
	if err != nil {
		log.Warn().Err(err).Msg("listing stale pending executions failed")
		return 0
	}

	swept := 0
	for i := range stale {
		rec := stale[i]
		rec.Status = storage.StatusFailed
		rec.ErrorOutput = abandonedMessage

		if err := s.store.Update(ctx, &rec); err != nil {
			log.Warn().Err(err).Str("exec_id", rec.ID).Msg("failed to reconcile stale execution")
			continue
		}
		swept++
	}

	if swept > 0 {
		log.Info().Int("count", swept).Msg("reconciled stale pending executions")
	}
	return swept
}

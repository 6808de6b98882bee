package studio

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"proprofile/internal/intake"
)

// Runner executes generations in the background so an HTTP request can
// return while the session shows Running. At most `concurrency` calls reach
// the generation service at once; the rest wait for a slot.
type Runner struct {
	generator Generator
	sem       *semaphore.Weighted
	logger    zerolog.Logger
	wg        sync.WaitGroup
}

func NewRunner(gen Generator, concurrency int, logger zerolog.Logger) *Runner {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Runner{
		generator: gen,
		sem:       semaphore.NewWeighted(int64(concurrency)),
		logger:    logger.With().Str("component", "runner").Logger(),
	}
}

// Start moves sess to Running and launches the generation. The call is not
// tied to the caller's context: it runs until the service answers or the
// transport times out.
func (r *Runner) Start(sess *Session) (Snapshot, error) {
	attempt, err := sess.Begin()
	if err != nil {
		return sess.Snapshot(), err
	}
	snap := sess.Snapshot()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx := context.Background()
		if err := r.sem.Acquire(ctx, 1); err != nil {
			sess.Complete(attempt, intake.DataURI{}, err)
			return
		}
		defer r.sem.Release(1)

		out, err := r.generator.Generate(ctx, attempt.Source, attempt.Instruction)
		applied := sess.Complete(attempt, out, err)
		event := r.logger.Info()
		if err != nil {
			event = r.logger.Warn().Err(err)
		}
		event.Str("session_id", sess.ID()).Bool("applied", applied).Msg("generation finished")
	}()
	return snap, nil
}

// Wait blocks until every started generation has finished or ctx is done.
func (r *Runner) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

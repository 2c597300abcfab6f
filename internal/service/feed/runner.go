package feed

import (
	"context"

	drepo "github.com/wekabeka1996/aurora/internal/domain/repository"
	"github.com/wekabeka1996/aurora/internal/services/gates"
	"github.com/wekabeka1996/aurora/pkg/logger"
)

// Runner pumps feed snapshots into the trap detector windows and reconnects
// on stream failure until the context is cancelled.
type Runner struct {
	stream drepo.SnapshotStream
	trap   *gates.TrapDetector
	log    *logger.Logger
}

func NewRunner(stream drepo.SnapshotStream, trap *gates.TrapDetector, log *logger.Logger) *Runner {
	return &Runner{stream: stream, trap: trap, log: log}
}

func (r *Runner) Run(ctx context.Context) {
	if err := r.stream.Connect(ctx); err != nil {
		r.log.Warn("feed connect failed, retrying", logger.Error(err))
	}
	for {
		if ctx.Err() != nil {
			return
		}
		snapshots, errs := r.stream.Read(ctx)
	consume:
		for {
			select {
			case <-ctx.Done():
				return
			case s, ok := <-snapshots:
				if !ok {
					break consume
				}
				r.trap.Observe(s)
			case err, ok := <-errs:
				if !ok {
					break consume
				}
				if err != nil {
					r.log.Warn("feed stream error", logger.Error(err))
				}
			}
		}
		if err := r.stream.Reconnect(ctx); err != nil {
			r.log.Warn("feed reconnect failed", logger.Error(err))
		}
	}
}

package engine

import (
	"context"

	"github.com/mirrordapp/mirrord-server/internal/logger"
	"github.com/mirrordapp/mirrord-server/internal/queue"
	"github.com/mirrordapp/mirrord-server/internal/scanner"
)

// ReconcileOnce walks the source tree once and brings the target up to
// date, without watching for further changes. Used by the one-shot
// command. Deletion of target-only files is out of scope; only source
// files are considered, same as the initial scan of a live run.
func ReconcileOnce(ctx context.Context, log *logger.Logger, cfg Config) (CounterSnapshot, error) {
	if err := cfg.validate(); err != nil {
		return CounterSnapshot{}, err
	}

	r := newRun(log, nil, cfg)
	s := scanner.New(log.Logger, r.pol)

	log.Info("reconcile started", "source", cfg.SourceDir, "target", cfg.TargetDir)

	for result := range s.Scan(ctx) {
		r.apply(ctx, queue.Operation{Path: result.Path, Kind: queue.KindCreated})
		if err := ctx.Err(); err != nil {
			return r.counters.Snapshot(), err
		}
	}
	if err := ctx.Err(); err != nil {
		return r.counters.Snapshot(), err
	}

	snapshot := r.counters.Snapshot()
	log.Info("reconcile complete",
		"copied", snapshot.Copied,
		"skipped", snapshot.Skipped,
		"errors", snapshot.Errors)
	return snapshot, nil
}

// CountEligible walks the source tree and reports how many files the
// configuration would consider for mirroring, without touching the
// target. Backs the one-shot command's dry-run mode.
func CountEligible(ctx context.Context, log *logger.Logger, cfg Config) (int, error) {
	if err := cfg.validate(); err != nil {
		return 0, err
	}

	r := newRun(log, nil, cfg)
	return scanner.New(log.Logger, r.pol).Count(ctx)
}

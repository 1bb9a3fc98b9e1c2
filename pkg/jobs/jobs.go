// Package jobs runs resumable maintenance operations against a checkpoint store.
package jobs

import (
	"context"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/briar/internal/repositories/checkpoint"
	"github.com/Ramsey-B/briar/pkg/models"
	"github.com/Ramsey-B/briar/pkg/tracing"
)

// BulkFunc is one of the resolver's paged maintenance operations.
type BulkFunc func(ctx context.Context, req models.BulkRequest) (models.BulkResult, error)

type Runner struct {
	store  checkpoint.Store
	logger ectologger.Logger
}

func NewRunner(store checkpoint.Store, logger ectologger.Logger) *Runner {
	if store == nil {
		store = checkpoint.NewMemoryStore()
	}
	return &Runner{
		store:  store,
		logger: logger,
	}
}

// Run executes fn. With resume set and no explicit token, it starts from the saved
// checkpoint for (op, entity type). Non-dry runs save the last good token, including
// after a failure, and clear the checkpoint once the scan completes.
func (r *Runner) Run(ctx context.Context, op string, req models.BulkRequest, resume bool, fn BulkFunc) (models.BulkResult, error) {
	ctx, span := tracing.StartSpan(ctx, "jobs.Runner.Run")
	defer span.End()

	job := checkpoint.JobName(op, req.EntityType)
	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"job":     job,
		"dry_run": req.DryRun,
	})

	var prior checkpoint.Checkpoint
	if resume && req.ContinuationToken == "" && req.EntityType != "" {
		cp, found, err := r.store.Load(ctx, job)
		if err != nil {
			return models.BulkResult{Operation: op, EntityType: req.EntityType}, err
		}
		if found {
			prior = cp
			req.ContinuationToken = cp.ContinuationToken
			log.WithFields(map[string]any{"pages": cp.Pages, "processed": cp.Processed}).Info("Resuming from checkpoint")
		}
	}

	res, runErr := fn(ctx, req)
	if req.DryRun || req.EntityType == "" {
		return res, runErr
	}

	switch {
	case res.Done:
		if err := r.store.Clear(ctx, job); err != nil {
			log.WithError(err).Warn("Failed to clear checkpoint")
		}
	case res.ContinuationToken != "":
		cp := checkpoint.Checkpoint{
			Job:               job,
			EntityType:        req.EntityType,
			ContinuationToken: res.ContinuationToken,
			Pages:             prior.Pages + res.Pages,
			Processed:         prior.Processed + res.Processed,
		}
		if err := r.store.Save(ctx, cp); err != nil {
			log.WithError(err).Warn("Failed to save checkpoint")
		}
	}
	return res, runErr
}

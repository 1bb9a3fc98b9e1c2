package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/Ramsey-B/briar/internal/repositories/checkpoint"
	"github.com/Ramsey-B/briar/pkg/logging"
	"github.com/Ramsey-B/briar/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunner_SavesAndResumes(t *testing.T) {
	ctx := context.Background()
	store := checkpoint.NewMemoryStore()
	runner := NewRunner(store, logging.Nop())
	job := checkpoint.JobName("reconcile_edges", "Widget")

	var seen []string
	fn := func(_ context.Context, req models.BulkRequest) (models.BulkResult, error) {
		seen = append(seen, req.ContinuationToken)
		if req.ContinuationToken == "" {
			return models.BulkResult{ContinuationToken: "page-2", Pages: 1, Processed: 10}, nil
		}
		return models.BulkResult{Pages: 1, Processed: 4, Done: true}, nil
	}

	_, err := runner.Run(ctx, "reconcile_edges", models.BulkRequest{EntityType: "Widget", MaxPages: 1}, true, fn)
	require.NoError(t, err)
	cp, found, err := store.Load(ctx, job)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "page-2", cp.ContinuationToken)
	assert.Equal(t, 10, cp.Processed)

	res, err := runner.Run(ctx, "reconcile_edges", models.BulkRequest{EntityType: "Widget"}, true, fn)
	require.NoError(t, err)
	assert.True(t, res.Done)
	assert.Equal(t, []string{"", "page-2"}, seen)

	_, found, err = store.Load(ctx, job)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRunner_SavesLastGoodTokenOnFailure(t *testing.T) {
	ctx := context.Background()
	store := checkpoint.NewMemoryStore()
	runner := NewRunner(store, logging.Nop())
	boom := errors.New("boom")

	_, err := runner.Run(ctx, "resolve_entity_headers", models.BulkRequest{EntityType: "Widget"}, false,
		func(context.Context, models.BulkRequest) (models.BulkResult, error) {
			return models.BulkResult{ContinuationToken: "page-3", Pages: 2}, boom
		})
	assert.ErrorIs(t, err, boom)

	cp, found, err := store.Load(ctx, checkpoint.JobName("resolve_entity_headers", "Widget"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "page-3", cp.ContinuationToken)
}

func TestRunner_DryRunAndExplicitToken(t *testing.T) {
	ctx := context.Background()
	store := checkpoint.NewMemoryStore()
	require.NoError(t, store.Save(ctx, checkpoint.Checkpoint{Job: checkpoint.JobName("scan_container", "Widget"), ContinuationToken: "saved"}))
	runner := NewRunner(store, logging.Nop())

	var got string
	fn := func(_ context.Context, req models.BulkRequest) (models.BulkResult, error) {
		got = req.ContinuationToken
		return models.BulkResult{ContinuationToken: "next"}, nil
	}

	_, err := runner.Run(ctx, "scan_container", models.BulkRequest{EntityType: "Widget", ContinuationToken: "explicit", DryRun: true}, true, fn)
	require.NoError(t, err)
	assert.Equal(t, "explicit", got)

	cp, _, err := store.Load(ctx, checkpoint.JobName("scan_container", "Widget"))
	require.NoError(t, err)
	assert.Equal(t, "saved", cp.ContinuationToken)
}

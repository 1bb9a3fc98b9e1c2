package resolver

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/briar/internal/repositories/edgeindex"
	"github.com/Ramsey-B/briar/internal/repositories/locatorindex"
	"github.com/Ramsey-B/briar/internal/repositories/orphan"
	"github.com/Ramsey-B/briar/pkg/docstore"
	"github.com/Ramsey-B/briar/pkg/jsontree"
	"github.com/Ramsey-B/briar/pkg/models"
	"github.com/Ramsey-B/briar/pkg/patchpath"
	"github.com/Ramsey-B/briar/pkg/tablestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

const (
	orgID      = "0a0a0a0a0a0a0a0a0a0a0a0a0a0a0a0a"
	pipelineID = "1b1b1b1b1b1b1b1b1b1b1b1b1b1b1b1b"
	stageID    = "2c2c2c2c2c2c2c2c2c2c2c2c2c2c2c2c"
	widgetID   = "3d3d3d3d3d3d3d3d3d3d3d3d3d3d3d3d"
	ghostID    = "4e4e4e4e4e4e4e4e4e4e4e4e4e4e4e4e"
)

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// failingStore fails header lookups for one id.
type failingStore struct {
	*docstore.MemoryStore
	failID string
}

func (s *failingStore) GetHeader(ctx context.Context, id string, q docstore.HeaderQuery) (models.HeaderResult, error) {
	if id == s.failID {
		return models.HeaderResult{}, errors.New("backend unavailable")
	}
	return s.MemoryStore.GetHeader(ctx, id, q)
}

type recordingNotifier struct {
	mu         sync.Mutex
	resolved   []models.ResolveResult
	orphans    []models.OrphanRecord
	tombstoned int
	locators   int
}

func (n *recordingNotifier) DocumentResolved(_ context.Context, res models.ResolveResult) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.resolved = append(n.resolved, res)
}

func (n *recordingNotifier) OrphanRecorded(_ context.Context, o models.OrphanRecord) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.orphans = append(n.orphans, o)
}

func (n *recordingNotifier) EdgesTombstoned(_ context.Context, _ models.EntityPk, tombstoned []models.ForeignKeyEdge) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tombstoned += len(tombstoned)
}

func (n *recordingNotifier) LocatorsUpdated(_ context.Context, _ models.LocatorResult) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.locators++
}

type harness struct {
	r        *Resolver
	docs     *docstore.MemoryStore
	edges    *edgeindex.Writer
	locators *locatorindex.Writer
	orphans  *orphan.Repository
	notifier *recordingNotifier
}

func newHarness(t *testing.T, opts Options, wrap func(*docstore.MemoryStore) docstore.Store) *harness {
	t.Helper()
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	clock := fixedClock{t: now}
	client := tablestore.NewMemoryClient()

	h := &harness{
		docs: docstore.NewMemoryStore(),
		edges: edgeindex.NewWriter(client, edgeindex.Options{
			Tables:    edgeindex.Tables{Inbound: "InboundEdges", Outbound: "OutboundEdges"},
			BatchSize: tablestore.MaxBatchSize,
			Clock:     clock,
		}, logger),
		locators: locatorindex.NewWriter(client, locatorindex.Options{
			Table:     "NodeLocator",
			BatchSize: tablestore.MaxBatchSize,
			Clock:     clock,
		}, logger),
		orphans:  orphan.NewRepository(client, "OrphanedReferences", clock, logger),
		notifier: &recordingNotifier{},
	}
	var store docstore.Store = h.docs
	if wrap != nil {
		store = wrap(h.docs)
	}
	r, err := New(Deps{
		Documents: store,
		Edges:     h.edges,
		Locators:  h.locators,
		Orphans:   h.orphans,
		Notifier:  h.notifier,
		Clock:     clock,
	}, opts, logger)
	require.NoError(t, err)
	h.r = r
	return h
}

func (h *harness) put(t *testing.T, body map[string]any) {
	t.Helper()
	raw, err := jsontree.Marshal(body)
	require.NoError(t, err)
	_, err = h.docs.Upsert(context.Background(), raw, 0)
	require.NoError(t, err)
}

func orgDoc() map[string]any {
	return map[string]any{"id": orgID, "entityType": "Organization", "key": "acme", "namespace": "acme", "name": "Acme"}
}

func pipelineDoc() map[string]any {
	return map[string]any{
		"id":         pipelineID,
		"entityType": "Pipeline",
		"key":        "p1",
		"name":       "Pipeline One",
		"ownerOrganization": map[string]any{
			"Id": orgID, "Key": "acme", "Text": "Acme", "EntityType": "Organization",
		},
		"Stages": []any{
			map[string]any{"Id": stageID, "Key": "build", "Name": "Build"},
		},
	}
}

func widgetDoc() map[string]any {
	return map[string]any{
		"id":         widgetID,
		"entityType": "Widget",
		"key":        "w1",
		"pipeline":   map[string]any{"Id": pipelineID},
		"stage":      map[string]any{"Id": stageID},
		"ghost":      map[string]any{"Id": ghostID, "Text": "gone"},
	}
}

func seed(t *testing.T, h *harness) {
	t.Helper()
	h.put(t, orgDoc())
	h.put(t, pipelineDoc())
	h.put(t, widgetDoc())
	_, err := h.r.AddNodeLocators(context.Background(), models.BulkRequest{EntityType: "Pipeline"})
	require.NoError(t, err)
}

func TestResolveEntity_DirectLocatorAndOrphan(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Options{}, nil)
	seed(t, h)

	res, err := h.r.ResolveEntity(ctx, widgetID, false)
	require.NoError(t, err)
	assert.Equal(t, 3, res.ReferencesSeen)
	assert.Equal(t, 1, res.DirectResolved)
	assert.Equal(t, 1, res.LocatorResolved)
	require.Len(t, res.Unresolved, 1)
	assert.Equal(t, ghostID, res.Unresolved[0].ID)
	assert.Equal(t, "/ghost", res.Unresolved[0].Path)
	assert.True(t, res.Updated)
	assert.True(t, res.Persisted)
	assert.Equal(t, int64(2), res.Revision)
	assert.NotEmpty(t, res.Hash)
	assert.Equal(t, 3, res.EdgesUpserted)

	stored, err := h.docs.Read(ctx, widgetID)
	require.NoError(t, err)
	pipeline := stored["pipeline"].(map[string]any)
	assert.Equal(t, "p1", pipeline["Key"])
	assert.Equal(t, "Pipeline One", pipeline["Text"])
	assert.Equal(t, true, pipeline["Resolved"])

	// The stage id is a nested node, so it takes the root pipeline's header.
	stage := stored["stage"].(map[string]any)
	assert.Equal(t, pipelineID, stage["Id"])
	assert.Equal(t, "Pipeline", stage["EntityType"])
	assert.Equal(t, true, stage["Resolved"])

	ghost := stored["ghost"].(map[string]any)
	assert.Equal(t, false, ghost["Resolved"])

	o, found, err := h.orphans.Get(ctx, models.EntityPk{EntityType: "Widget", EntityID: widgetID})
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, ghostID, o.TargetID)
	assert.Equal(t, "/ghost", o.RefPath)

	out, err := h.edges.ListOutbound(ctx, models.EntityPk{EntityType: "Widget", EntityID: widgetID}, false)
	require.NoError(t, err)
	assert.Len(t, out, 3)

	require.Len(t, h.notifier.resolved, 1)
	assert.Len(t, h.notifier.orphans, 1)
}

func TestResolveEntity_DryRunWritesNothing(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Options{}, nil)
	seed(t, h)

	res, err := h.r.ResolveEntity(ctx, widgetID, true)
	require.NoError(t, err)
	assert.True(t, res.DryRun)
	assert.True(t, res.Updated)
	assert.False(t, res.Persisted)
	assert.Len(t, res.Unresolved, 1)

	stored, err := h.docs.Read(ctx, widgetID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), jsontree.Int64(stored[models.DocRevision]))
	_, hasKey := stored["pipeline"].(map[string]any)["Key"]
	assert.False(t, hasKey)

	_, found, err := h.orphans.Get(ctx, models.EntityPk{EntityType: "Widget", EntityID: widgetID})
	require.NoError(t, err)
	assert.False(t, found)

	out, err := h.edges.ListOutbound(ctx, models.EntityPk{EntityType: "Widget", EntityID: widgetID}, true)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestResolveEntity_SecondRunIsStable(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Options{}, nil)
	seed(t, h)

	_, err := h.r.ResolveEntity(ctx, widgetID, false)
	require.NoError(t, err)
	res, err := h.r.ResolveEntity(ctx, widgetID, false)
	require.NoError(t, err)
	assert.False(t, res.Updated)
	assert.False(t, res.Persisted)
	assert.Equal(t, int64(2), res.Revision)
}

func TestResolveEntity_NormalizesUserKey(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Options{}, nil)
	h.put(t, map[string]any{"id": "5f5f5f5f5f5f5f5f5f5f5f5f5f5f5f5f", "entityType": "user", "key": "placeholder", "userName": " JDoe "})

	res, err := h.r.ResolveEntity(ctx, "5f5f5f5f5f5f5f5f5f5f5f5f5f5f5f5f", false)
	require.NoError(t, err)
	assert.True(t, res.Persisted)

	stored, err := h.docs.Read(ctx, "5f5f5f5f5f5f5f5f5f5f5f5f5f5f5f5f")
	require.NoError(t, err)
	assert.Equal(t, "jdoe", stored["key"])
}

func TestResolveEntity_SkipsNonGraphRoles(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Options{}, nil)
	h.put(t, map[string]any{
		"id": widgetID, "entityType": "Widget", "key": "w1",
		"createdBy": map[string]any{"Id": ghostID},
	})

	res, err := h.r.ResolveEntity(ctx, widgetID, false)
	require.NoError(t, err)
	assert.Empty(t, res.Unresolved)
	assert.False(t, res.Updated)
}

func TestResolveEntity_NotFound(t *testing.T) {
	h := newHarness(t, Options{}, nil)
	_, err := h.r.ResolveEntity(context.Background(), widgetID, false)
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestResolveEntity_TombstonesStaleEdges(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Options{TombstoneStaleEdges: true}, nil)
	seed(t, h)
	source := models.EntityPk{EntityType: "Widget", EntityID: widgetID}

	_, err := h.r.ResolveEntity(ctx, widgetID, false)
	require.NoError(t, err)

	body, err := h.docs.Read(ctx, widgetID)
	require.NoError(t, err)
	delete(body, "ghost")
	h.put(t, body)

	res, err := h.r.ResolveEntity(ctx, widgetID, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.EdgesTombstoned)

	live, err := h.edges.ListOutbound(ctx, source, false)
	require.NoError(t, err)
	assert.Len(t, live, 2)
	all, err := h.edges.ListOutbound(ctx, source, true)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, 1, h.notifier.tombstoned)
}

func TestRefreshIndices_ResolvedTargetKeepsOneLiveEdge(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Options{TombstoneStaleEdges: true}, nil)
	source := models.EntityPk{EntityType: "Widget", EntityID: widgetID}

	_, err := h.r.RefreshIndices(ctx, nil, widgetDoc())
	require.NoError(t, err)
	seed(t, h)
	_, err = h.r.ResolveEntity(ctx, widgetID, false)
	require.NoError(t, err)
	stored, err := h.docs.Read(ctx, widgetID)
	require.NoError(t, err)
	_, err = h.r.RefreshIndices(ctx, widgetDoc(), stored)
	require.NoError(t, err)

	all, err := h.edges.ListOutbound(ctx, source, true)
	require.NoError(t, err)
	require.Len(t, all, 3)
	seen := map[string]bool{}
	for _, rec := range all {
		assert.False(t, rec.IsDeleted, rec.RefPath)
		assert.False(t, seen[rec.IdentityKey()], rec.RefPath)
		seen[rec.IdentityKey()] = true
		if rec.Target.EntityID == pipelineID {
			assert.Equal(t, "Pipeline", rec.Target.EntityType)
		}
	}

	inbound, err := h.edges.ListInbound(ctx, models.EntityPk{EntityType: "Pipeline", EntityID: pipelineID}, true)
	require.NoError(t, err)
	require.Len(t, inbound, 1)
	assert.False(t, inbound[0].IsDeleted)
}

func TestAddNodeLocators_PagesAndResumes(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Options{}, nil)
	ids := []string{
		"a0000000000000000000000000000001",
		"a0000000000000000000000000000002",
		"a0000000000000000000000000000003",
		"a0000000000000000000000000000004",
		"a0000000000000000000000000000005",
	}
	for _, id := range ids {
		h.put(t, map[string]any{"id": id, "entityType": "Pipeline", "key": id})
	}

	first, err := h.r.AddNodeLocators(ctx, models.BulkRequest{EntityType: "Pipeline", PageSize: 2, MaxPages: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, first.Pages)
	assert.Equal(t, 4, first.Processed)
	assert.False(t, first.Done)
	require.NotEmpty(t, first.ContinuationToken)

	second, err := h.r.AddNodeLocators(ctx, models.BulkRequest{
		EntityType:        "Pipeline",
		PageSize:          2,
		ContinuationToken: first.ContinuationToken,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, second.Pages)
	assert.Equal(t, 1, second.Processed)
	assert.True(t, second.Done)
	assert.Empty(t, second.ContinuationToken)

	for _, id := range ids {
		entry, found, err := h.locators.TryGet(ctx, id)
		require.NoError(t, err)
		require.True(t, found, id)
		assert.Equal(t, "/", entry.NodePath)
	}
}

func TestAddNodeLocators_DryRunCountsOnly(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Options{}, nil)
	h.put(t, pipelineDoc())

	res, err := h.r.AddNodeLocators(ctx, models.BulkRequest{EntityType: "Pipeline", DryRun: true})
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	lr := res.Results[0].Detail.(models.LocatorResult)
	assert.Equal(t, 2, lr.Upserted)

	_, found, err := h.locators.TryGet(ctx, stageID)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestBulk_RequiresEntityType(t *testing.T) {
	h := newHarness(t, Options{}, nil)
	_, err := h.r.ResolveEntityHeaders(context.Background(), models.BulkRequest{})
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestResolveEntityHeaders_FailurePolicies(t *testing.T) {
	failing := func(m *docstore.MemoryStore) docstore.Store {
		return &failingStore{MemoryStore: m, failID: pipelineID}
	}

	t.Run("fail fast keeps the page token", func(t *testing.T) {
		h := newHarness(t, Options{FailurePolicy: FailFast}, failing)
		seed(t, h)

		res, err := h.r.ResolveEntityHeaders(context.Background(), models.BulkRequest{EntityType: "Widget", ContinuationToken: ""})
		require.Error(t, err)
		assert.Equal(t, 0, res.Pages)
		assert.Empty(t, res.ContinuationToken)
		assert.Equal(t, 1, res.Failed)
	})

	t.Run("skip and log continues", func(t *testing.T) {
		h := newHarness(t, Options{FailurePolicy: SkipAndLog}, failing)
		seed(t, h)
		h.put(t, map[string]any{"id": "6a6a6a6a6a6a6a6a6a6a6a6a6a6a6a6a", "entityType": "Widget", "key": "w2"})

		res, err := h.r.ResolveEntityHeaders(context.Background(), models.BulkRequest{EntityType: "Widget"})
		require.NoError(t, err)
		assert.True(t, res.Done)
		assert.Equal(t, 2, res.Processed)
		assert.Equal(t, 1, res.Failed)

		statuses := map[string]string{}
		for _, item := range res.Results {
			statuses[item.EntityID] = item.Status
		}
		assert.Equal(t, models.StatusFailed, statuses[widgetID])
		assert.Equal(t, models.StatusSkipped, statuses["6a6a6a6a6a6a6a6a6a6a6a6a6a6a6a6a"])
	})
}

func TestParseFailurePolicy(t *testing.T) {
	assert.Equal(t, SkipAndLog, ParseFailurePolicy("Skip_And_Log"))
	assert.Equal(t, FailFast, ParseFailurePolicy("fail_fast"))
	assert.Equal(t, FailFast, ParseFailurePolicy("whatever"))
}

func TestReconcileEdges_TombstonesRemovedReferences(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Options{}, nil)
	seed(t, h)
	source := models.EntityPk{EntityType: "Widget", EntityID: widgetID}

	_, err := h.r.ResolveEntity(ctx, widgetID, false)
	require.NoError(t, err)

	body, err := h.docs.Read(ctx, widgetID)
	require.NoError(t, err)
	delete(body, "ghost")
	h.put(t, body)

	res, err := h.r.ReconcileEdges(ctx, models.BulkRequest{EntityType: "Widget"})
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	er := res.Results[0].Detail.(models.EdgeReconcileResult)
	assert.Equal(t, 0, er.Added)
	assert.Equal(t, 1, er.Removed)
	assert.Equal(t, 2, er.Unchanged)

	live, err := h.edges.ListOutbound(ctx, source, false)
	require.NoError(t, err)
	assert.Len(t, live, 2)
	all, err := h.edges.ListOutbound(ctx, source, true)
	require.NoError(t, err)
	require.Len(t, all, 3)
	for _, rec := range all {
		if rec.Target.EntityID == ghostID {
			assert.True(t, rec.IsDeleted)
			assert.Equal(t, edgeindex.ReasonReferenceRemoved, rec.TombstoneReason)
		}
	}
}

func TestDeleteByEntityType(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Options{}, nil)
	seed(t, h)
	pipeline := models.EntityPk{OrgID: orgID, EntityType: "Pipeline", EntityID: pipelineID}

	_, err := h.r.ReconcileEdges(ctx, models.BulkRequest{EntityType: "Pipeline"})
	require.NoError(t, err)

	dry, err := h.r.DeleteByEntityType(ctx, models.BulkRequest{EntityType: "Pipeline", DryRun: true})
	require.NoError(t, err)
	require.Len(t, dry.Results, 1)
	assert.Equal(t, models.StatusMatched, dry.Results[0].Status)
	_, err = h.docs.Read(ctx, pipelineID)
	require.NoError(t, err)

	res, err := h.r.DeleteByEntityType(ctx, models.BulkRequest{EntityType: "Pipeline"})
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, models.StatusDeleted, res.Results[0].Status)

	_, err = h.docs.Read(ctx, pipelineID)
	assert.ErrorIs(t, err, docstore.ErrNotFound)

	_, found, err := h.locators.TryGet(ctx, stageID)
	require.NoError(t, err)
	assert.False(t, found)

	live, err := h.edges.ListOutbound(ctx, pipeline, false)
	require.NoError(t, err)
	assert.Empty(t, live)
	all, err := h.edges.ListOutbound(ctx, pipeline, true)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, edgeindex.ReasonSourceDeleted, all[0].TombstoneReason)
}

func TestScanContainer(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Options{}, nil)
	h.put(t, pipelineDoc())
	h.put(t, map[string]any{"id": "7a7a7a7a7a7a7a7a7a7a7a7a7a7a7a7a", "entityType": "Pipeline", "key": "p2", "priority": 5})

	res, err := h.r.ScanContainer(ctx, models.BulkRequest{EntityType: "Pipeline", Filter: "priority > `3`"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Processed)
	require.Len(t, res.Results, 1)
	assert.Equal(t, "7a7a7a7a7a7a7a7a7a7a7a7a7a7a7a7a", res.Results[0].EntityID)
	assert.Equal(t, models.StatusMatched, res.Results[0].Status)

	all, err := h.r.ScanContainer(ctx, models.BulkRequest{EntityType: "Pipeline"})
	require.NoError(t, err)
	assert.Len(t, all.Results, 2)

	_, err = h.r.ScanContainer(ctx, models.BulkRequest{EntityType: "Pipeline", Filter: "priority >"})
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestPatchEntity(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Options{}, nil)
	h.put(t, pipelineDoc())

	rev, err := h.r.PatchEntity(ctx, pipelineID, []patchpath.Operation{
		{Op: patchpath.OpSet, Path: "/Stages[key=BUILD]/Name", Value: "Compile"},
	}, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), rev)

	stored, err := h.docs.Read(ctx, pipelineID)
	require.NoError(t, err)
	v, ok := jsontree.Get(stored, "/Stages/0/Name")
	require.True(t, ok)
	assert.Equal(t, "Compile", v)

	_, err = h.r.PatchEntity(ctx, pipelineID, []patchpath.Operation{
		{Op: patchpath.OpSet, Path: "/Stages[key=deploy]/Name", Value: "x"},
	}, 0)
	assert.ErrorIs(t, err, patchpath.ErrResolve)

	_, err = h.r.PatchEntity(ctx, pipelineID, []patchpath.Operation{
		{Op: patchpath.OpSet, Path: "/name", Value: "x"},
	}, 1)
	assert.ErrorIs(t, err, docstore.ErrConflict)
}

func TestRefreshIndices(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Options{}, nil)
	pipeline := models.EntityPk{OrgID: orgID, EntityType: "Pipeline", EntityID: pipelineID}

	created, err := h.r.RefreshIndices(ctx, nil, pipelineDoc())
	require.NoError(t, err)
	assert.Equal(t, 2, created.Locators.Upserted)
	assert.Equal(t, 1, created.Edges.Added)

	after := pipelineDoc()
	after["Stages"] = []any{}
	after["owner"] = map[string]any{"Id": widgetID}
	updated, err := h.r.RefreshIndices(ctx, pipelineDoc(), after)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.Locators.Deleted)
	assert.Equal(t, 1, updated.Edges.Added)
	assert.Equal(t, 1, updated.Edges.Unchanged)

	_, found, err := h.locators.TryGet(ctx, stageID)
	require.NoError(t, err)
	assert.False(t, found)

	deleted, err := h.r.RefreshIndices(ctx, after, nil)
	require.NoError(t, err)
	assert.True(t, deleted.Deleted)
	assert.Equal(t, 2, deleted.Edges.Removed)

	live, err := h.edges.ListOutbound(ctx, pipeline, false)
	require.NoError(t, err)
	assert.Empty(t, live)
	_, found, err = h.locators.TryGet(ctx, pipelineID)
	require.NoError(t, err)
	assert.False(t, found)

	_, err = h.r.RefreshIndices(ctx, nil, nil)
	assert.ErrorIs(t, err, models.ErrValidation)
}

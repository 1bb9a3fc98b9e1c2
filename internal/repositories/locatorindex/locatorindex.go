// Package locatorindex maintains the node locator table: node id -> owning root and path.
package locatorindex

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/briar/pkg/initgate"
	"github.com/Ramsey-B/briar/pkg/jsontree"
	"github.com/Ramsey-B/briar/pkg/locators"
	"github.com/Ramsey-B/briar/pkg/metrics"
	"github.com/Ramsey-B/briar/pkg/models"
	"github.com/Ramsey-B/briar/pkg/tablestore"
	"github.com/Ramsey-B/briar/pkg/tracing"
)

const partitionPrefixLen = 4

// Keys returns the partition (id prefix) and row (full id) for a node id.
func Keys(nodeID string) (string, string) {
	id := strings.ToLower(strings.TrimSpace(nodeID))
	pk := id
	if len(pk) > partitionPrefixLen {
		pk = pk[:partitionPrefixLen]
	}
	return pk, id
}

func encode(e models.NodeLocatorEntry) map[string]any {
	return map[string]any{
		"NodeId":              e.NodeID,
		"NodePath":            e.NodePath,
		"NodePathHash":        e.NodePathHash,
		"NodeType":            e.NodeType,
		"RootOrgId":           e.RootOrgID,
		"RootType":            e.RootType,
		"RootId":              e.RootID,
		"RootRevision":        e.RootRevision,
		"RootLastUpdatedDate": e.RootLastUpdatedDate,
		"SeenAt":              e.SeenAt.UTC().Format(time.RFC3339Nano),
	}
}

func decode(row tablestore.Entity) models.NodeLocatorEntry {
	p := row.Properties
	e := models.NodeLocatorEntry{
		NodeID:              jsontree.String(p, "NodeId"),
		NodePath:            jsontree.String(p, "NodePath"),
		NodePathHash:        jsontree.String(p, "NodePathHash"),
		NodeType:            jsontree.String(p, "NodeType"),
		RootOrgID:           jsontree.String(p, "RootOrgId"),
		RootType:            jsontree.String(p, "RootType"),
		RootID:              jsontree.String(p, "RootId"),
		RootRevision:        jsontree.Int64(p["RootRevision"]),
		RootLastUpdatedDate: jsontree.String(p, "RootLastUpdatedDate"),
	}
	if t, err := time.Parse(time.RFC3339Nano, jsontree.String(p, "SeenAt")); err == nil {
		e.SeenAt = t
	}
	return e
}

// Reader is the point-lookup side used to repair references to nested nodes.
type Reader struct {
	client tablestore.Client
	table  string
	logger ectologger.Logger
}

func NewReader(client tablestore.Client, table string, logger ectologger.Logger) *Reader {
	return &Reader{
		client: client,
		table:  table,
		logger: logger,
	}
}

// TryGet returns found=false, not an error, when the node is not indexed.
func (r *Reader) TryGet(ctx context.Context, nodeID string) (models.NodeLocatorEntry, bool, error) {
	ctx, span := tracing.StartSpan(ctx, "locatorindex.Reader.TryGet")
	defer span.End()

	pk, rk := Keys(nodeID)
	if rk == "" {
		return models.NodeLocatorEntry{}, false, nil
	}
	row, err := r.client.Get(ctx, r.table, pk, rk)
	if errors.Is(err, tablestore.ErrNotFound) || errors.Is(err, tablestore.ErrTableNotFound) {
		return models.NodeLocatorEntry{}, false, nil
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"table":   r.table,
			"node_id": nodeID,
		}).Error("Failed to read node locator")
		return models.NodeLocatorEntry{}, false, err
	}
	return decode(row), true, nil
}

type Options struct {
	Table              string
	BatchSize          int
	ParallelPartitions bool
	Clock              initgate.Clock
}

// Writer applies locator diffs. Deletes are unconditional true deletes.
type Writer struct {
	*Reader
	client tablestore.Client
	opts   Options
	gate   *initgate.Gate
	logger ectologger.Logger
}

func NewWriter(client tablestore.Client, opts Options, logger ectologger.Logger) *Writer {
	return &Writer{
		Reader: NewReader(client, opts.Table, logger),
		client: client,
		opts:   opts,
		gate:   initgate.New(opts.Clock),
		logger: logger,
	}
}

func (w *Writer) EnsureTable(ctx context.Context) error {
	return w.gate.Ensure(ctx, func(ctx context.Context) error {
		return w.client.CreateTableIfNotExists(ctx, w.opts.Table)
	})
}

// Apply writes upserts and deletes grouped by partition.
func (w *Writer) Apply(ctx context.Context, d locators.Diff) (upserted, deleted int, err error) {
	ctx, span := tracing.StartSpan(ctx, "locatorindex.Writer.Apply")
	defer span.End()

	if len(d.Upserts) == 0 && len(d.Deletes) == 0 {
		return 0, 0, nil
	}
	if err := w.EnsureTable(ctx); err != nil {
		w.logger.WithContext(ctx).WithError(err).WithField("table", w.opts.Table).Error("Failed to initialize locator table")
		return 0, 0, err
	}

	ops := make([]tablestore.Operation, 0, len(d.Upserts)+len(d.Deletes))
	for _, e := range d.Upserts {
		e = locators.Normalize(e)
		if e.NodeID == "" {
			continue
		}
		pk, rk := Keys(e.NodeID)
		ops = append(ops, tablestore.Upsert(tablestore.Entity{PartitionKey: pk, RowKey: rk, Properties: encode(e)}))
		upserted++
	}
	for _, e := range d.Deletes {
		pk, rk := Keys(e.NodeID)
		if rk == "" {
			continue
		}
		ops = append(ops, tablestore.Delete(pk, rk, tablestore.WildcardETag))
		deleted++
	}

	err = tablestore.SubmitGrouped(ctx, w.client, w.opts.Table, ops, w.opts.BatchSize, w.opts.ParallelPartitions)
	metrics.RecordBatch(w.opts.Table, err)
	if err != nil {
		w.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"table":   w.opts.Table,
			"upserts": upserted,
			"deletes": deleted,
		}).Error("Failed to write node locators")
		return 0, 0, err
	}

	metrics.LocatorWrites.WithLabelValues("upsert").Add(float64(upserted))
	metrics.LocatorWrites.WithLabelValues("delete").Add(float64(deleted))
	return upserted, deleted, nil
}

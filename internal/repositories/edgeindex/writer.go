// Package edgeindex writes and reads the inbound and outbound foreign key edge tables.
package edgeindex

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/briar/pkg/edges"
	"github.com/Ramsey-B/briar/pkg/initgate"
	"github.com/Ramsey-B/briar/pkg/metrics"
	"github.com/Ramsey-B/briar/pkg/models"
	"github.com/Ramsey-B/briar/pkg/tablestore"
	"github.com/Ramsey-B/briar/pkg/tracing"
)

// Tombstone reasons.
const (
	ReasonReferenceRemoved = "reference-removed"
	ReasonSourceDeleted    = "source-deleted"
)

type Options struct {
	Tables             Tables
	BatchSize          int
	ParallelPartitions bool
	Clock              initgate.Clock
}

// Writer maintains both edge tables. Removed edges are tombstoned, never deleted.
type Writer struct {
	*Reader
	client tablestore.Client
	opts   Options
	gate   *initgate.Gate
	clock  initgate.Clock
	logger ectologger.Logger
}

func NewWriter(client tablestore.Client, opts Options, logger ectologger.Logger) *Writer {
	clock := opts.Clock
	if clock == nil {
		clock = initgate.SystemClock{}
	}
	return &Writer{
		Reader: NewReader(client, opts.Tables, logger),
		client: client,
		opts:   opts,
		gate:   initgate.New(clock),
		clock:  clock,
		logger: logger,
	}
}

// EnsureTables creates both tables at most once per day.
func (w *Writer) EnsureTables(ctx context.Context) error {
	return w.gate.Ensure(ctx, func(ctx context.Context) error {
		for _, table := range []string{w.opts.Tables.Inbound, w.opts.Tables.Outbound} {
			if err := w.client.CreateTableIfNotExists(ctx, table); err != nil {
				return err
			}
		}
		return nil
	})
}

// UpsertOutbound writes edges live, clearing any earlier tombstone.
func (w *Writer) UpsertOutbound(ctx context.Context, fks []models.ForeignKeyEdge) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "edgeindex.Writer.UpsertOutbound")
	defer span.End()

	records := make([]models.EdgeRecord, 0, len(fks))
	for _, e := range fks {
		records = append(records, live(e))
	}
	if err := w.write(ctx, records); err != nil {
		return 0, err
	}
	metrics.EdgeWrites.WithLabelValues("upsert").Add(float64(len(records)))
	return len(records), nil
}

// Apply writes a diff: added and unchanged edges are upserted live, removed edges are tombstoned.
func (w *Writer) Apply(ctx context.Context, d edges.Diff, reason string) (upserted, tombstoned int, err error) {
	ctx, span := tracing.StartSpan(ctx, "edgeindex.Writer.Apply")
	defer span.End()

	now := w.clock.Now().UTC()
	records := make([]models.EdgeRecord, 0, len(d.Added)+len(d.SameIdentity)+len(d.Removed))
	for _, e := range d.Added {
		records = append(records, live(e))
	}
	for _, e := range d.SameIdentity {
		records = append(records, live(e))
	}
	for _, e := range d.Removed {
		records = append(records, tombstone(e, now, reason))
	}
	if err := w.write(ctx, records); err != nil {
		return 0, 0, err
	}

	upserted = len(d.Added) + len(d.SameIdentity)
	tombstoned = len(d.Removed)
	metrics.EdgeWrites.WithLabelValues("upsert").Add(float64(upserted))
	metrics.EdgeWrites.WithLabelValues("tombstone").Add(float64(tombstoned))
	return upserted, tombstoned, nil
}

// TombstoneAll tombstones every live outbound edge of source.
func (w *Writer) TombstoneAll(ctx context.Context, source models.EntityPk, reason string) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "edgeindex.Writer.TombstoneAll")
	defer span.End()

	existing, err := w.ListOutbound(ctx, source, false)
	if err != nil {
		return 0, err
	}
	d := edges.Diff{Removed: make([]models.ForeignKeyEdge, 0, len(existing))}
	for _, rec := range existing {
		d.Removed = append(d.Removed, rec.ForeignKeyEdge)
	}
	_, n, err := w.Apply(ctx, d, reason)
	return n, err
}

func (w *Writer) write(ctx context.Context, records []models.EdgeRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := w.EnsureTables(ctx); err != nil {
		w.logger.WithContext(ctx).WithError(err).Error("Failed to initialize edge tables")
		return err
	}

	outbound := make([]tablestore.Operation, 0, len(records))
	inbound := make([]tablestore.Operation, 0, len(records))
	for _, rec := range records {
		out, in := operations(rec)
		outbound = append(outbound, out)
		inbound = append(inbound, in)
	}

	for _, t := range []struct {
		table string
		ops   []tablestore.Operation
	}{
		{w.opts.Tables.Outbound, outbound},
		{w.opts.Tables.Inbound, inbound},
	} {
		table, ops := t.table, t.ops
		err := tablestore.SubmitGrouped(ctx, w.client, table, ops, w.opts.BatchSize, w.opts.ParallelPartitions)
		metrics.RecordBatch(table, err)
		if err != nil {
			w.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"table": table,
				"rows":  len(ops),
			}).Error("Failed to write edges")
			return err
		}
	}
	return nil
}

func live(e models.ForeignKeyEdge) models.EdgeRecord {
	e.RefPath = edges.NormalizeRefPath(e.RefPath)
	if e.RefPathHash == "" {
		e.RefPathHash = edges.ComputePathHash16(e.RefPath)
	}
	return models.EdgeRecord{ForeignKeyEdge: e}
}

func tombstone(e models.ForeignKeyEdge, at time.Time, reason string) models.EdgeRecord {
	rec := live(e)
	rec.IsDeleted = true
	rec.DeletedAt = &at
	rec.TombstoneReason = reason
	return rec
}

package edgeindex

import (
	"context"
	"errors"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/briar/pkg/models"
	"github.com/Ramsey-B/briar/pkg/tablestore"
	"github.com/Ramsey-B/briar/pkg/tracing"
)

// Tables names the two edge tables.
type Tables struct {
	Inbound  string
	Outbound string
}

// Reader lists edges from either direction of the index.
type Reader struct {
	client tablestore.Client
	tables Tables
	logger ectologger.Logger
}

func NewReader(client tablestore.Client, tables Tables, logger ectologger.Logger) *Reader {
	return &Reader{
		client: client,
		tables: tables,
		logger: logger,
	}
}

// ListOutbound returns the edges whose source is source.
func (r *Reader) ListOutbound(ctx context.Context, source models.EntityPk, includeDeleted bool) ([]models.EdgeRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "edgeindex.Reader.ListOutbound")
	defer span.End()

	return r.list(ctx, r.tables.Outbound, source.Identity(), includeDeleted)
}

// ListInbound returns the edges whose target is target. The target type is ignored.
func (r *Reader) ListInbound(ctx context.Context, target models.EntityPk, includeDeleted bool) ([]models.EdgeRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "edgeindex.Reader.ListInbound")
	defer span.End()

	return r.list(ctx, r.tables.Inbound, target.RefIdentity(), includeDeleted)
}

func (r *Reader) list(ctx context.Context, table, partitionKey string, includeDeleted bool) ([]models.EdgeRecord, error) {
	rows, err := r.client.QueryPartition(ctx, table, partitionKey)
	if errors.Is(err, tablestore.ErrTableNotFound) {
		return nil, nil
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"table":         table,
			"partition_key": partitionKey,
		}).Error("Failed to list edges")
		return nil, err
	}

	out := make([]models.EdgeRecord, 0, len(rows))
	for _, row := range rows {
		rec := decode(row)
		if rec.IsDeleted && !includeDeleted {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

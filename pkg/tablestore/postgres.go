package tablestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/briar/pkg/database"
	"github.com/Ramsey-B/briar/pkg/tracing"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgresClient stores each logical table as a Postgres table named tbl_<name>.
type PostgresClient struct {
	db     database.DB
	logger ectologger.Logger
}

func NewPostgresClient(db database.DB, logger ectologger.Logger) *PostgresClient {
	return &PostgresClient{
		db:     db,
		logger: logger,
	}
}

type tableRow struct {
	PartitionKey string           `db:"partition_key"`
	RowKey       string           `db:"row_key"`
	Properties   database.JSONDoc `db:"properties"`
	ETag         string           `db:"etag"`
	UpdatedAt    time.Time        `db:"updated_at"`
}

func (r tableRow) entity() Entity {
	return Entity{
		PartitionKey: r.PartitionKey,
		RowKey:       r.RowKey,
		Properties:   map[string]any(r.Properties),
		ETag:         r.ETag,
		Timestamp:    r.UpdatedAt.UTC(),
	}
}

func physicalName(table string) string {
	return "tbl_" + strings.ToLower(table)
}

func (c *PostgresClient) quoted(table string) (string, error) {
	if err := ValidateTableName(table); err != nil {
		return "", err
	}
	return pq.QuoteIdentifier(physicalName(table)), nil
}

func (c *PostgresClient) CreateTableIfNotExists(ctx context.Context, table string) error {
	ctx, span := tracing.StartSpan(ctx, "tablestore.PostgresClient.CreateTableIfNotExists")
	defer span.End()

	name, err := c.quoted(table)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		partition_key TEXT NOT NULL,
		row_key       TEXT NOT NULL,
		properties    JSONB NOT NULL DEFAULT '{}',
		etag          TEXT NOT NULL,
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (partition_key, row_key)
	)`, name)
	if _, err := c.db.ExecContext(ctx, query); err != nil {
		c.logger.WithContext(ctx).WithError(err).WithField("table", table).Error("Failed to create table")
		return fmt.Errorf("failed to create table %s: %w", table, err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (c *PostgresClient) upsert(ctx context.Context, exec execer, name string, e Entity) error {
	props := database.JSONDoc(e.Properties)

	ib := database.NewInsertBuilder()
	ib.InsertInto(name)
	ib.Cols("partition_key", "row_key", "properties", "etag", "updated_at")
	ib.Values(e.PartitionKey, e.RowKey, props, uuid.NewString(), time.Now().UTC())
	ib.ReplaceOnConflict([]string{"partition_key", "row_key"}, "properties", "etag", "updated_at")

	query, args := ib.Build()
	_, err := exec.ExecContext(ctx, query, args...)
	return err
}

func (c *PostgresClient) Upsert(ctx context.Context, table string, e Entity) error {
	ctx, span := tracing.StartSpan(ctx, "tablestore.PostgresClient.Upsert")
	defer span.End()

	name, err := c.quoted(table)
	if err != nil {
		return err
	}
	if err := c.upsert(ctx, c.db, name, e); err != nil {
		return c.wrap(ctx, table, "upsert", err)
	}
	return nil
}

func (c *PostgresClient) Get(ctx context.Context, table, partitionKey, rowKey string) (Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "tablestore.PostgresClient.Get")
	defer span.End()

	name, err := c.quoted(table)
	if err != nil {
		return Entity{}, err
	}
	sb := database.NewSelectBuilder()
	sb.Select("partition_key", "row_key", "properties", "etag", "updated_at")
	sb.From(name)
	sb.Where(sb.Equal("partition_key", partitionKey), sb.Equal("row_key", rowKey))

	query, args := sb.Build()
	var row tableRow
	if err := c.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entity{}, ErrNotFound
		}
		return Entity{}, c.wrap(ctx, table, "get", err)
	}
	return row.entity(), nil
}

func (c *PostgresClient) deleteRow(ctx context.Context, exec execer, name, partitionKey, rowKey, etag string) error {
	db := database.NewDeleteBuilder()
	db.DeleteFrom(name)
	conds := []string{db.Equal("partition_key", partitionKey), db.Equal("row_key", rowKey)}
	conditional := etag != "" && etag != WildcardETag
	if conditional {
		conds = append(conds, db.Equal("etag", etag))
	}
	db.Where(conds...)

	query, args := db.Build()
	res, err := exec.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if conditional {
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrPreconditionFailed
		}
	}
	return nil
}

func (c *PostgresClient) Delete(ctx context.Context, table, partitionKey, rowKey, etag string) error {
	ctx, span := tracing.StartSpan(ctx, "tablestore.PostgresClient.Delete")
	defer span.End()

	name, err := c.quoted(table)
	if err != nil {
		return err
	}
	if err := c.deleteRow(ctx, c.db, name, partitionKey, rowKey, etag); err != nil {
		if errors.Is(err, ErrPreconditionFailed) {
			return err
		}
		return c.wrap(ctx, table, "delete", err)
	}
	return nil
}

func (c *PostgresClient) QueryPartition(ctx context.Context, table, partitionKey string) ([]Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "tablestore.PostgresClient.QueryPartition")
	defer span.End()

	name, err := c.quoted(table)
	if err != nil {
		return nil, err
	}
	sb := database.NewSelectBuilder()
	sb.Select("partition_key", "row_key", "properties", "etag", "updated_at")
	sb.From(name)
	sb.Where(sb.Equal("partition_key", partitionKey))
	sb.OrderBy("row_key")

	query, args := sb.Build()
	var rows []tableRow
	if err := c.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, c.wrap(ctx, table, "query", err)
	}
	out := make([]Entity, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.entity())
	}
	return out, nil
}

func (c *PostgresClient) SubmitBatch(ctx context.Context, table string, ops []Operation) error {
	ctx, span := tracing.StartSpan(ctx, "tablestore.PostgresClient.SubmitBatch")
	defer span.End()

	if err := ValidateBatch(ops); err != nil {
		return err
	}
	name, err := c.quoted(table)
	if err != nil {
		return err
	}

	err = database.WithTx(ctx, c.logger, c.db, func(ctx context.Context, tx database.Tx) error {
		for _, op := range ops {
			var opErr error
			switch op.Type {
			case OpUpsert:
				opErr = c.upsert(ctx, tx, name, op.Entity)
			case OpDelete:
				opErr = c.deleteRow(ctx, tx, name, op.Entity.PartitionKey, op.Entity.RowKey, op.ETag)
			default:
				opErr = fmt.Errorf("unknown batch operation %q", op.Type)
			}
			if opErr != nil {
				return opErr
			}
		}
		return nil
	})
	if err != nil && !errors.Is(err, ErrPreconditionFailed) {
		return c.wrap(ctx, table, "batch", err)
	}
	return err
}

func (c *PostgresClient) Close() error {
	return nil
}

// wrap maps an undefined_table error to ErrTableNotFound and logs everything else.
func (c *PostgresClient) wrap(ctx context.Context, table, op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "42P01" {
		return fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}
	c.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
		"table":     table,
		"operation": op,
	}).Error("Table operation failed")
	return fmt.Errorf("table %s %s failed: %w", table, op, err)
}

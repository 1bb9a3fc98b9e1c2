// Package tablestore is a partitioned key-value table abstraction for the index tables.
// Rows are addressed by (partition key, row key) and carry a property bag. Batches
// are transactional within one partition.
package tablestore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"golang.org/x/sync/errgroup"
)

// MaxBatchSize is the largest number of operations a single batch may carry.
const MaxBatchSize = 100

// WildcardETag matches any current row version.
const WildcardETag = "*"

var (
	ErrNotFound           = errors.New("entity not found")
	ErrPreconditionFailed = errors.New("etag precondition failed")
	ErrBatchTooLarge      = errors.New("batch exceeds maximum size")
	ErrMixedPartitions    = errors.New("batch spans more than one partition")
	ErrTableNotFound      = errors.New("table not found")
	ErrInvalidTableName   = errors.New("invalid table name")
)

var tableNameRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9]{2,62}$`)

// ValidateTableName accepts alphanumeric names of 3 to 63 characters starting with a letter.
func ValidateTableName(name string) error {
	if !tableNameRe.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidTableName, name)
	}
	return nil
}

// Entity is one row.
type Entity struct {
	PartitionKey string         `json:"partition_key"`
	RowKey       string         `json:"row_key"`
	Properties   map[string]any `json:"properties"`
	ETag         string         `json:"etag,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
}

type OpType string

const (
	OpUpsert OpType = "upsert"
	OpDelete OpType = "delete"
)

// Operation is one step of a batch. ETag only applies to deletes.
type Operation struct {
	Type   OpType
	Entity Entity
	ETag   string
}

func Upsert(e Entity) Operation {
	return Operation{Type: OpUpsert, Entity: e}
}

func Delete(partitionKey, rowKey, etag string) Operation {
	return Operation{Type: OpDelete, Entity: Entity{PartitionKey: partitionKey, RowKey: rowKey}, ETag: etag}
}

// Client is implemented by every table backend.
type Client interface {
	CreateTableIfNotExists(ctx context.Context, table string) error
	Upsert(ctx context.Context, table string, e Entity) error
	// Get returns ErrNotFound when the row does not exist.
	Get(ctx context.Context, table, partitionKey, rowKey string) (Entity, error)
	// Delete removes a row. An empty or wildcard etag is unconditional and a missing
	// row is not an error. A specific etag that no longer matches returns ErrPreconditionFailed.
	Delete(ctx context.Context, table, partitionKey, rowKey, etag string) error
	QueryPartition(ctx context.Context, table, partitionKey string) ([]Entity, error)
	// SubmitBatch applies all operations or none of them. Operations must share one
	// partition and number at most MaxBatchSize.
	SubmitBatch(ctx context.Context, table string, ops []Operation) error
	Close() error
}

// ValidateBatch checks the single-partition and size constraints.
func ValidateBatch(ops []Operation) error {
	if len(ops) > MaxBatchSize {
		return fmt.Errorf("%w: %d > %d", ErrBatchTooLarge, len(ops), MaxBatchSize)
	}
	for _, op := range ops[min(1, len(ops)):] {
		if op.Entity.PartitionKey != ops[0].Entity.PartitionKey {
			return ErrMixedPartitions
		}
	}
	return nil
}

// GroupByPartition splits ops into batches of at most max operations, each within a
// single partition. Partitions keep first-seen order. When a row key repeats within a
// partition the last operation wins.
func GroupByPartition(ops []Operation, max int) [][]Operation {
	if max <= 0 || max > MaxBatchSize {
		max = MaxBatchSize
	}

	var order []string
	byPartition := make(map[string][]Operation)
	rowIndex := make(map[string]map[string]int)
	for _, op := range ops {
		pk := op.Entity.PartitionKey
		if _, ok := byPartition[pk]; !ok {
			order = append(order, pk)
			rowIndex[pk] = make(map[string]int)
		}
		if i, dup := rowIndex[pk][op.Entity.RowKey]; dup {
			byPartition[pk][i] = op
			continue
		}
		rowIndex[pk][op.Entity.RowKey] = len(byPartition[pk])
		byPartition[pk] = append(byPartition[pk], op)
	}

	var batches [][]Operation
	for _, pk := range order {
		partOps := byPartition[pk]
		for start := 0; start < len(partOps); start += max {
			end := min(start+max, len(partOps))
			batches = append(batches, partOps[start:end])
		}
	}
	return batches
}

// SubmitGrouped groups ops and submits the batches. Batches for one partition are always
// sequential; distinct partitions run concurrently when parallel is set.
func SubmitGrouped(ctx context.Context, client Client, table string, ops []Operation, max int, parallel bool) error {
	if len(ops) == 0 {
		return nil
	}
	batches := GroupByPartition(ops, max)

	if !parallel {
		for _, batch := range batches {
			if err := client.SubmitBatch(ctx, table, batch); err != nil {
				return err
			}
		}
		return nil
	}

	var partitions [][][]Operation
	for _, batch := range batches {
		n := len(partitions)
		if n > 0 && partitions[n-1][0][0].Entity.PartitionKey == batch[0].Entity.PartitionKey {
			partitions[n-1] = append(partitions[n-1], batch)
			continue
		}
		partitions = append(partitions, [][]Operation{batch})
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, partBatches := range partitions {
		g.Go(func() error {
			for _, batch := range partBatches {
				if err := client.SubmitBatch(gctx, table, batch); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}

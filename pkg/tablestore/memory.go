package tablestore

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/Ramsey-B/briar/pkg/jsontree"
)

type memRow struct {
	entity Entity
}

// MemoryClient keeps tables in process. It backs tests and the memory index backend.
type MemoryClient struct {
	mu     sync.RWMutex
	tables map[string]map[string]map[string]memRow
	seq    uint64
	now    func() time.Time
}

func NewMemoryClient() *MemoryClient {
	return &MemoryClient{
		tables: make(map[string]map[string]map[string]memRow),
		now:    time.Now,
	}
}

func (c *MemoryClient) CreateTableIfNotExists(_ context.Context, table string) error {
	if err := ValidateTableName(table); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.tables[table]; !ok {
		c.tables[table] = make(map[string]map[string]memRow)
	}
	return nil
}

func (c *MemoryClient) table(name string) (map[string]map[string]memRow, error) {
	t, ok := c.tables[name]
	if !ok {
		return nil, ErrTableNotFound
	}
	return t, nil
}

func (c *MemoryClient) nextETag() string {
	c.seq++
	return "m" + strconv.FormatUint(c.seq, 10)
}

func (c *MemoryClient) Upsert(_ context.Context, table string, e Entity) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, err := c.table(table)
	if err != nil {
		return err
	}
	c.put(t, e)
	return nil
}

func (c *MemoryClient) put(t map[string]map[string]memRow, e Entity) {
	part, ok := t[e.PartitionKey]
	if !ok {
		part = make(map[string]memRow)
		t[e.PartitionKey] = part
	}
	e.Properties = jsontree.Clone(e.Properties)
	e.ETag = c.nextETag()
	e.Timestamp = c.now().UTC()
	part[e.RowKey] = memRow{entity: e}
}

func (c *MemoryClient) Get(_ context.Context, table, partitionKey, rowKey string) (Entity, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, err := c.table(table)
	if err != nil {
		return Entity{}, err
	}
	row, ok := t[partitionKey][rowKey]
	if !ok {
		return Entity{}, ErrNotFound
	}
	return copyEntity(row.entity), nil
}

func (c *MemoryClient) Delete(_ context.Context, table, partitionKey, rowKey, etag string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, err := c.table(table)
	if err != nil {
		return err
	}
	return c.remove(t, partitionKey, rowKey, etag)
}

func (c *MemoryClient) remove(t map[string]map[string]memRow, partitionKey, rowKey, etag string) error {
	row, ok := t[partitionKey][rowKey]
	if !ok {
		if etag == "" || etag == WildcardETag {
			return nil
		}
		return ErrPreconditionFailed
	}
	if etag != "" && etag != WildcardETag && etag != row.entity.ETag {
		return ErrPreconditionFailed
	}
	delete(t[partitionKey], rowKey)
	return nil
}

func (c *MemoryClient) QueryPartition(_ context.Context, table, partitionKey string) ([]Entity, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, err := c.table(table)
	if err != nil {
		return nil, err
	}
	out := make([]Entity, 0, len(t[partitionKey]))
	for _, row := range t[partitionKey] {
		out = append(out, copyEntity(row.entity))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RowKey < out[j].RowKey })
	return out, nil
}

func (c *MemoryClient) SubmitBatch(_ context.Context, table string, ops []Operation) error {
	if err := ValidateBatch(ops); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	t, err := c.table(table)
	if err != nil {
		return err
	}

	// Check every delete precondition before mutating anything.
	for _, op := range ops {
		if op.Type != OpDelete || op.ETag == "" || op.ETag == WildcardETag {
			continue
		}
		row, ok := t[op.Entity.PartitionKey][op.Entity.RowKey]
		if !ok || row.entity.ETag != op.ETag {
			return ErrPreconditionFailed
		}
	}
	for _, op := range ops {
		switch op.Type {
		case OpUpsert:
			c.put(t, op.Entity)
		case OpDelete:
			_ = c.remove(t, op.Entity.PartitionKey, op.Entity.RowKey, WildcardETag)
		}
	}
	return nil
}

func (c *MemoryClient) Close() error {
	return nil
}

// Len counts the rows in a table.
func (c *MemoryClient) Len(table string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, part := range c.tables[table] {
		n += len(part)
	}
	return n
}

func copyEntity(e Entity) Entity {
	e.Properties = jsontree.Clone(e.Properties)
	return e
}

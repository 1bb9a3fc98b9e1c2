package tablestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Ramsey-B/briar/pkg/jsontree"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

const (
	badgerTablePrefix = 0x01
	badgerRowPrefix   = 0x02
	badgerMaxRetries  = 3
)

// BadgerOptions configures the embedded backend.
type BadgerOptions struct {
	Dir      string
	InMemory bool
}

// BadgerClient stores tables in an embedded BadgerDB.
// Row keys are laid out as prefix|table|0x00|partition|0x00|row so a partition is one prefix scan.
type BadgerClient struct {
	db *badger.DB
}

func NewBadgerClient(opts BadgerOptions) (*BadgerClient, error) {
	badgerOpts := badger.DefaultOptions(opts.Dir).WithLogger(nil)
	if opts.InMemory {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}
	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}
	return &BadgerClient{db: db}, nil
}

func tableKey(table string) []byte {
	return append([]byte{badgerTablePrefix}, table...)
}

func partitionPrefix(table, partitionKey string) []byte {
	var b bytes.Buffer
	b.WriteByte(badgerRowPrefix)
	b.WriteString(table)
	b.WriteByte(0x00)
	b.WriteString(partitionKey)
	b.WriteByte(0x00)
	return b.Bytes()
}

func rowKey(table, partitionKey, row string) []byte {
	return append(partitionPrefix(table, partitionKey), row...)
}

type badgerRecord struct {
	Properties map[string]any `json:"p"`
	ETag       string         `json:"e"`
	Timestamp  string         `json:"t"`
}

func encodeRecord(e Entity) ([]byte, Entity, error) {
	e.ETag = uuid.NewString()
	e.Timestamp = time.Now().UTC()
	data, err := jsontree.Marshal(badgerRecord{
		Properties: e.Properties,
		ETag:       e.ETag,
		Timestamp:  e.Timestamp.Format(time.RFC3339Nano),
	})
	return data, e, err
}

func decodeRecord(partitionKey, row string, data []byte) (Entity, error) {
	m, err := jsontree.Parse(data)
	if err != nil {
		return Entity{}, err
	}
	e := Entity{PartitionKey: partitionKey, RowKey: row}
	if props, ok := m["p"].(map[string]any); ok {
		e.Properties = props
	}
	e.ETag, _ = m["e"].(string)
	if ts, ok := m["t"].(string); ok {
		e.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
	}
	return e, nil
}

func (c *BadgerClient) update(fn func(txn *badger.Txn) error) error {
	var err error
	for range badgerMaxRetries {
		err = c.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

func (c *BadgerClient) CreateTableIfNotExists(_ context.Context, table string) error {
	if err := ValidateTableName(table); err != nil {
		return err
	}
	return c.update(func(txn *badger.Txn) error {
		return txn.Set(tableKey(table), []byte{})
	})
}

func requireTable(txn *badger.Txn, table string) error {
	if _, err := txn.Get(tableKey(table)); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrTableNotFound
		}
		return err
	}
	return nil
}

func (c *BadgerClient) Upsert(_ context.Context, table string, e Entity) error {
	return c.update(func(txn *badger.Txn) error {
		if err := requireTable(txn, table); err != nil {
			return err
		}
		data, _, err := encodeRecord(e)
		if err != nil {
			return err
		}
		return txn.Set(rowKey(table, e.PartitionKey, e.RowKey), data)
	})
}

func (c *BadgerClient) Get(_ context.Context, table, partitionKey, row string) (Entity, error) {
	var out Entity
	err := c.db.View(func(txn *badger.Txn) error {
		if err := requireTable(txn, table); err != nil {
			return err
		}
		item, err := txn.Get(rowKey(table, partitionKey, row))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			out, err = decodeRecord(partitionKey, row, val)
			return err
		})
	})
	return out, err
}

func currentETag(txn *badger.Txn, key []byte) (string, bool, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	var etag string
	err = item.Value(func(val []byte) error {
		m, err := jsontree.Parse(val)
		if err != nil {
			return err
		}
		etag, _ = m["e"].(string)
		return nil
	})
	return etag, true, err
}

func deleteRow(txn *badger.Txn, key []byte, etag string) error {
	current, exists, err := currentETag(txn, key)
	if err != nil {
		return err
	}
	unconditional := etag == "" || etag == WildcardETag
	if !exists {
		if unconditional {
			return nil
		}
		return ErrPreconditionFailed
	}
	if !unconditional && etag != current {
		return ErrPreconditionFailed
	}
	return txn.Delete(key)
}

func (c *BadgerClient) Delete(_ context.Context, table, partitionKey, row, etag string) error {
	return c.update(func(txn *badger.Txn) error {
		if err := requireTable(txn, table); err != nil {
			return err
		}
		return deleteRow(txn, rowKey(table, partitionKey, row), etag)
	})
}

func (c *BadgerClient) QueryPartition(_ context.Context, table, partitionKey string) ([]Entity, error) {
	var out []Entity
	err := c.db.View(func(txn *badger.Txn) error {
		if err := requireTable(txn, table); err != nil {
			return err
		}
		prefix := partitionPrefix(table, partitionKey)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			row := string(item.Key()[len(prefix):])
			err := item.Value(func(val []byte) error {
				e, err := decodeRecord(partitionKey, row, val)
				if err != nil {
					return err
				}
				out = append(out, e)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return out, err
}

// SubmitBatch runs the whole batch in one Badger transaction.
func (c *BadgerClient) SubmitBatch(_ context.Context, table string, ops []Operation) error {
	if err := ValidateBatch(ops); err != nil {
		return err
	}
	return c.update(func(txn *badger.Txn) error {
		if err := requireTable(txn, table); err != nil {
			return err
		}
		for _, op := range ops {
			key := rowKey(table, op.Entity.PartitionKey, op.Entity.RowKey)
			switch op.Type {
			case OpUpsert:
				data, _, err := encodeRecord(op.Entity)
				if err != nil {
					return err
				}
				if err := txn.Set(key, data); err != nil {
					return err
				}
			case OpDelete:
				if err := deleteRow(txn, key, op.ETag); err != nil {
					return err
				}
			default:
				return fmt.Errorf("unknown batch operation %q", op.Type)
			}
		}
		return nil
	})
}

func (c *BadgerClient) Close() error {
	return c.db.Close()
}

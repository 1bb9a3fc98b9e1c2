package database

import (
	"database/sql/driver"
	"fmt"

	"github.com/Ramsey-B/briar/pkg/jsontree"
)

// JSONDoc is a jsonb column holding a JSON object. Integers decode as int64.
type JSONDoc map[string]any

func (d *JSONDoc) Scan(src any) error {
	var b []byte
	switch v := src.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	case nil:
		*d = nil
		return nil
	default:
		return fmt.Errorf("JSONDoc.Scan: expected []byte, got %T", src)
	}
	m, err := jsontree.Parse(b)
	if err != nil {
		return err
	}
	*d = m
	return nil
}

func (d JSONDoc) Value() (driver.Value, error) {
	if d == nil {
		return "{}", nil
	}
	b, err := jsontree.Marshal(map[string]any(d))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

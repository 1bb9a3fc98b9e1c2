package kafka

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Ramsey-B/briar/pkg/jsontree"
)

// DebeziumEnvelope is the standard Debezium CDC message format
type DebeziumEnvelope struct {
	Schema  json.RawMessage `json:"schema,omitempty"`
	Payload DebeziumPayload `json:"payload"`
}

// DebeziumPayload contains the before/after state of a row
type DebeziumPayload struct {
	Before json.RawMessage `json:"before"`
	After  json.RawMessage `json:"after"`
	Source DebeziumSource  `json:"source"`
	Op     string          `json:"op"` // c=create, u=update, d=delete, r=read (snapshot)
	TsMs   int64           `json:"ts_ms"`
}

// DebeziumSource contains metadata about the source of the change
type DebeziumSource struct {
	Version   string `json:"version"`
	Connector string `json:"connector"`
	Name      string `json:"name"`
	TsMs      int64  `json:"ts_ms"`
	Snapshot  string `json:"snapshot,omitempty"`
	Db        string `json:"db"`
	Schema    string `json:"schema"`
	Table     string `json:"table"`
	TxId      int64  `json:"txId,omitempty"`
	Lsn       int64  `json:"lsn,omitempty"`
}

func (p *DebeziumPayload) IsCreate() bool {
	return p.Op == "c" || p.Op == "r"
}

func (p *DebeziumPayload) IsUpdate() bool {
	return p.Op == "u"
}

func (p *DebeziumPayload) IsDelete() bool {
	return p.Op == "d"
}

func (p *DebeziumPayload) Timestamp() time.Time {
	return time.UnixMilli(p.TsMs)
}

// DocumentRow is a row of the documents table as Debezium emits it.
type DocumentRow struct {
	ID              string          `json:"id"`
	EntityType      string          `json:"entity_type"`
	Key             string          `json:"key"`
	OwnerOrgID      string          `json:"owner_org_id"`
	Revision        int64           `json:"revision"`
	Body            json.RawMessage `json:"body"`
	LastUpdatedDate string          `json:"last_updated_date"`
	CreatedAt       string          `json:"created_at"`
	UpdatedAt       string          `json:"updated_at"`
}

// Document parses the row's JSON body into a tree.
func (r *DocumentRow) Document() (map[string]any, error) {
	if len(r.Body) == 0 {
		return nil, fmt.Errorf("document row %s has no body", r.ID)
	}
	return jsontree.Parse(r.Body)
}

// UpdatedTime parses updated_at in the formats Debezium uses for timestamptz.
func (r *DocumentRow) UpdatedTime() time.Time {
	return parseDebeziumTimestamp(r.UpdatedAt)
}

func parseDebeziumTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05.999999Z",
		"2006-01-02T15:04:05.999999",
		"2006-01-02 15:04:05.999999",
		"2006-01-02 15:04:05",
	}
	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// ParseDebeziumMessage parses a raw Kafka message as a Debezium envelope. Messages
// produced with schemas disabled carry the payload fields at the top level.
func ParseDebeziumMessage(data []byte) (*DebeziumEnvelope, error) {
	var envelope DebeziumEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, err
	}
	if envelope.Payload.Op == "" {
		if err := json.Unmarshal(data, &envelope.Payload); err != nil {
			return nil, err
		}
	}
	if envelope.Payload.Op == "" {
		return nil, fmt.Errorf("debezium message has no op")
	}
	return &envelope, nil
}

// jsonb columns arrive as JSON strings unless the connector is configured otherwise.
func unwrapJSONStringJSON(raw json.RawMessage) (json.RawMessage, error) {
	raw = json.RawMessage(bytes.TrimSpace(raw))
	if len(raw) == 0 {
		return raw, nil
	}
	if raw[0] != '"' {
		return raw, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return json.RawMessage(s), nil
}

func parseDocumentRow(raw json.RawMessage) (*DocumentRow, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var row DocumentRow
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil, err
	}
	body, err := unwrapJSONStringJSON(row.Body)
	if err != nil {
		return nil, err
	}
	row.Body = body
	return &row, nil
}

// DocumentRows returns the before and after rows. Either may be nil.
func (p *DebeziumPayload) DocumentRows() (before, after *DocumentRow, err error) {
	if before, err = parseDocumentRow(p.Before); err != nil {
		return nil, nil, fmt.Errorf("failed to parse before row: %w", err)
	}
	if after, err = parseDocumentRow(p.After); err != nil {
		return nil, nil, fmt.Errorf("failed to parse after row: %w", err)
	}
	return before, after, nil
}

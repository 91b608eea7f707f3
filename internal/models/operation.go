package models

import (
	"encoding/base64"
	"encoding/json"
	"time"
	"unicode/utf8"
)

// OperationType represents the kind of logged operation
type OperationType string

const (
	OperationContent  OperationType = "content"
	OperationDatabase OperationType = "database"
	OperationRollback OperationType = "rollback"
)

// FieldChange records one field rewrite. OldValue is the exact value read
// before replacement; NewValue is the re-encoded value that was written.
type FieldChange struct {
	RecordID      string        `json:"record_id"`
	RecordType    string        `json:"record_type"`
	RecordTitle   string        `json:"record_title"`
	FieldLocation FieldLocation `json:"field_location"`
	OldValue      string        `json:"old_value"`
	NewValue      string        `json:"new_value"`
}

// fieldChangeJSON carries values that are not valid UTF-8 as base64 so they
// survive a JSON round trip byte for byte
type fieldChangeJSON struct {
	RecordID      string        `json:"record_id"`
	RecordType    string        `json:"record_type"`
	RecordTitle   string        `json:"record_title"`
	FieldLocation FieldLocation `json:"field_location"`
	OldValue      string        `json:"old_value"`
	NewValue      string        `json:"new_value"`
	OldValueB64   string        `json:"old_value_b64,omitempty"`
	NewValueB64   string        `json:"new_value_b64,omitempty"`
}

func (c FieldChange) MarshalJSON() ([]byte, error) {
	out := fieldChangeJSON{
		RecordID:      c.RecordID,
		RecordType:    c.RecordType,
		RecordTitle:   c.RecordTitle,
		FieldLocation: c.FieldLocation,
		OldValue:      c.OldValue,
		NewValue:      c.NewValue,
	}
	if !utf8.ValidString(c.OldValue) {
		out.OldValue, out.OldValueB64 = "", base64.StdEncoding.EncodeToString([]byte(c.OldValue))
	}
	if !utf8.ValidString(c.NewValue) {
		out.NewValue, out.NewValueB64 = "", base64.StdEncoding.EncodeToString([]byte(c.NewValue))
	}
	return json.Marshal(out)
}

func (c *FieldChange) UnmarshalJSON(data []byte) error {
	var in fieldChangeJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*c = FieldChange{
		RecordID:      in.RecordID,
		RecordType:    in.RecordType,
		RecordTitle:   in.RecordTitle,
		FieldLocation: in.FieldLocation,
		OldValue:      in.OldValue,
		NewValue:      in.NewValue,
	}
	if in.OldValueB64 != "" {
		raw, err := base64.StdEncoding.DecodeString(in.OldValueB64)
		if err != nil {
			return err
		}
		c.OldValue = string(raw)
	}
	if in.NewValueB64 != "" {
		raw, err := base64.StdEncoding.DecodeString(in.NewValueB64)
		if err != nil {
			return err
		}
		c.NewValue = string(raw)
	}
	return nil
}

// Counters are the aggregate numbers stored with a log entry
type Counters struct {
	ModifiedRecordCount int `json:"modified_record_count"`
	TotalMatches        int `json:"total_matches"`
}

// OperationLogEntry is an immutable record of an apply or rollback
type OperationLogEntry struct {
	ID              int64         `json:"id"`
	Timestamp       time.Time     `json:"timestamp"`
	ActorID         string        `json:"actor_id"`
	Summary         string        `json:"summary"`
	Type            OperationType `json:"operation_type"`
	RunID           string        `json:"run_id,omitempty"`
	OriginalEntryID int64         `json:"original_entry_id,omitempty"` // set on rollback entries
	Spec            *SearchSpec   `json:"search_spec,omitempty"`
	Changes         []FieldChange `json:"changes"`
	Counters        Counters      `json:"counters"`
}

// IsRollback returns true if this entry was produced by a rollback
func (e *OperationLogEntry) IsRollback() bool {
	return e.Type == OperationRollback
}

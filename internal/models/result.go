package models

// MatchRecord is one match shown in a preview
type MatchRecord struct {
	RecordID      string        `json:"record_id"`
	RecordType    string        `json:"record_type"`
	RecordTitle   string        `json:"record_title"`
	FieldLocation FieldLocation `json:"field_location"`
	Path          string        `json:"path,omitempty"` // leaf path inside structured values
	Position      int           `json:"position"`
	MatchedText   string        `json:"matched_text"`
	SnippetBefore string        `json:"snippet_before"`
	SnippetAfter  string        `json:"snippet_after,omitempty"`
}

// FieldError describes a failure isolated to one record or field
type FieldError struct {
	RecordID      string        `json:"record_id"`
	FieldLocation FieldLocation `json:"field_location,omitempty"`
	Message       string        `json:"message"`
}

// PreviewResult holds capped samples and the uncapped match total
type PreviewResult struct {
	Samples        []MatchRecord `json:"samples"`
	TotalMatches   int           `json:"total_matches"`
	Limited        bool          `json:"limited"`
	RecordsScanned int           `json:"records_scanned"`
	MatchedRecords int           `json:"matched_records"`
	Errors         []FieldError  `json:"errors,omitempty"`
}

// ApplyResult summarizes a committed replace operation
type ApplyResult struct {
	EntryID             int64         `json:"entry_id,omitempty"`
	ModifiedRecordCount int           `json:"modified_record_count"`
	ModifiedRecords     []string      `json:"modified_records,omitempty"`
	TotalMatches        int           `json:"total_matches"`
	RecordsScanned      int           `json:"records_scanned"`
	Changes             []FieldChange `json:"-"`
	Errors              []FieldError  `json:"errors,omitempty"`
}

// RollbackResult summarizes a rollback of a log entry
type RollbackResult struct {
	EntryID       int64        `json:"entry_id,omitempty"` // id of the new rollback entry
	RestoredCount int          `json:"restored_count"`
	Errors        []FieldError `json:"errors,omitempty"`
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/kilupskalvis/ure/internal/models"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// ErrEntryNotFound is returned for unknown log entry ids
var ErrEntryNotFound = errors.Base("log entry not found")

const entryColumns = `id, timestamp, actor_id, summary, operation_type, run_id, original_entry_id,
	search_spec, changes, modified_record_count, total_matches`

// AppendEntry stores a log entry and assigns its id and timestamp. Entries
// beyond the retention limit are evicted afterwards; eviction failures are
// logged and never returned.
func (s *Store) AppendEntry(ctx context.Context, entry *models.OperationLogEntry) (int64, error) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	changes := entry.Changes
	if changes == nil {
		changes = []models.FieldChange{}
	}
	changesJSON, err := json.Marshal(changes)
	if err != nil {
		return 0, errors.Errorf("failed to marshal changes: %w", err)
	}

	var specJSON sql.NullString
	if entry.Spec != nil {
		data, err := json.Marshal(entry.Spec)
		if err != nil {
			return 0, errors.Errorf("failed to marshal search spec: %w", err)
		}
		specJSON = sql.NullString{String: string(data), Valid: true}
	}

	var original sql.NullInt64
	if entry.OriginalEntryID != 0 {
		original = sql.NullInt64{Int64: entry.OriginalEntryID, Valid: true}
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO operation_log (timestamp, actor_id, summary, operation_type, run_id, original_entry_id,
			search_spec, changes, modified_record_count, total_matches)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, formatTimestamp(entry.Timestamp), entry.ActorID, entry.Summary, string(entry.Type), entry.RunID, original,
		specJSON, string(changesJSON), entry.Counters.ModifiedRecordCount, entry.Counters.TotalMatches)
	if err != nil {
		return 0, errors.Errorf("failed to append log entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, errors.Errorf("failed to read log entry id: %w", err)
	}
	entry.ID = id

	s.evict(ctx)
	return id, nil
}

// evict deletes every entry older than the N most recent
func (s *Store) evict(ctx context.Context) {
	if s.retention <= 0 {
		return
	}
	logger := zerolog.Ctx(ctx)

	result, err := s.db.ExecContext(ctx, `
		DELETE FROM operation_log
		WHERE id NOT IN (SELECT id FROM operation_log ORDER BY id DESC LIMIT ?)
	`, s.retention)
	if err != nil {
		logger.Warn().Err(err).Int("limit", s.retention).Msg("operation log eviction failed")
		return
	}
	if n, err := result.RowsAffected(); err == nil && n > 0 {
		logger.Debug().Int64("evicted", n).Int("limit", s.retention).Msg("evicted old log entries")
	}
}

// GetEntry returns a log entry by id
func (s *Store) GetEntry(ctx context.Context, id int64) (*models.OperationLogEntry, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+entryColumns+" FROM operation_log WHERE id = ?", id)
	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, errors.WithDetails(ErrEntryNotFound, "id", id)
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// ListEntries returns up to limit entries, most recent first. A limit of zero
// or less returns every entry.
func (s *Store) ListEntries(ctx context.Context, limit int) ([]*models.OperationLogEntry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, "SELECT "+entryColumns+" FROM operation_log ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.OperationLogEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// DeleteEntry removes one entry
func (s *Store) DeleteEntry(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM operation_log WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.WithDetails(ErrEntryNotFound, "id", id)
	}
	return nil
}

// ClearEntries removes every entry and returns how many were deleted
func (s *Store) ClearEntries(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM operation_log")
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// CountEntries returns the number of stored entries
func (s *Store) CountEntries(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM operation_log").Scan(&n)
	return n, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*models.OperationLogEntry, error) {
	var (
		entry     models.OperationLogEntry
		timestamp string
		opType    string
		runID     sql.NullString
		original  sql.NullInt64
		specJSON  sql.NullString
		changes   string
	)
	err := row.Scan(&entry.ID, &timestamp, &entry.ActorID, &entry.Summary, &opType, &runID, &original,
		&specJSON, &changes, &entry.Counters.ModifiedRecordCount, &entry.Counters.TotalMatches)
	if err != nil {
		return nil, err
	}

	entry.Timestamp = parseTimestamp(timestamp)
	entry.Type = models.OperationType(opType)
	entry.RunID = runID.String
	entry.OriginalEntryID = original.Int64

	if specJSON.Valid && specJSON.String != "" {
		var spec models.SearchSpec
		if err := json.Unmarshal([]byte(specJSON.String), &spec); err != nil {
			return nil, errors.Errorf("failed to decode search spec of entry %d: %w", entry.ID, err)
		}
		entry.Spec = &spec
	}
	if err := json.Unmarshal([]byte(changes), &entry.Changes); err != nil {
		return nil, errors.Errorf("failed to decode changes of entry %d: %w", entry.ID, err)
	}
	return &entry, nil
}

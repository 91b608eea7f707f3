package core

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/kilupskalvis/ure/internal/models"
	"github.com/kilupskalvis/ure/internal/source"
	"github.com/kilupskalvis/ure/internal/store"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

func applySummary(spec models.SearchSpec, records int) string {
	noun := "record(s)"
	if spec.DatabaseMode() {
		noun = "row(s)"
	}
	return fmt.Sprintf("Replaced %q with %q in %d %s.", spec.Term, spec.Replacement, records, noun)
}

// GetEntry looks up a log entry, mapping a miss to NotFoundError
func (e *Engine) GetEntry(ctx context.Context, id int64) (*models.OperationLogEntry, error) {
	entry, err := e.log.GetEntry(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrEntryNotFound) {
			return nil, &NotFoundError{Kind: "log entry", ID: strconv.FormatInt(id, 10)}
		}
		return nil, &StorageError{Op: "get log entry", Err: err}
	}
	return entry, nil
}

// History returns up to limit entries, most recent first
func (e *Engine) History(ctx context.Context, limit int) ([]*models.OperationLogEntry, error) {
	entries, err := e.log.ListEntries(ctx, limit)
	if err != nil {
		return nil, &StorageError{Op: "list log entries", Err: err}
	}
	return entries, nil
}

// Rollback writes the old value of every change in an entry back, in the
// original order. A failed write is reported and the remaining changes still
// proceed. When anything was restored a rollback entry is appended whose
// changes go from the pre-rollback value to the restored one, so the rollback
// itself can be reversed.
func (e *Engine) Rollback(ctx context.Context, entryID int64, actorID string) (*models.RollbackResult, error) {
	entry, err := e.GetEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if len(entry.Changes) == 0 {
		return nil, errors.WithDetails(ErrNoRollbackData, "entry", entryID)
	}
	logger := zerolog.Ctx(ctx)

	result := &models.RollbackResult{}
	var restored []models.FieldChange
	records := make(map[string]struct{})

	for _, change := range entry.Changes {
		current, err := source.ReadField(ctx, e.src, change.RecordID, change.FieldLocation)
		if err != nil {
			if errors.Is(err, source.ErrRecordNotFound) {
				err = &NotFoundError{Kind: "record", ID: change.RecordID}
			}
			result.Errors = append(result.Errors, (&FieldError{RecordID: change.RecordID, FieldLocation: change.FieldLocation, Err: err}).Model())
			logger.Warn().Err(err).Str("record", change.RecordID).Msg("rollback read failed")
			continue
		}

		if err := e.mut.WriteField(ctx, change.RecordID, change.FieldLocation, change.OldValue); err != nil {
			if errors.Is(err, source.ErrRecordNotFound) {
				err = &NotFoundError{Kind: "record", ID: change.RecordID}
			}
			result.Errors = append(result.Errors, (&FieldError{RecordID: change.RecordID, FieldLocation: change.FieldLocation, Err: err}).Model())
			logger.Warn().Err(err).Str("record", change.RecordID).Msg("rollback write failed")
			continue
		}

		result.RestoredCount++
		records[change.RecordID] = struct{}{}
		restored = append(restored, models.FieldChange{
			RecordID:      change.RecordID,
			RecordType:    change.RecordType,
			RecordTitle:   change.RecordTitle,
			FieldLocation: change.FieldLocation,
			OldValue:      current,
			NewValue:      change.OldValue,
		})
	}

	if result.RestoredCount == 0 {
		return result, nil
	}

	rollbackEntry := &models.OperationLogEntry{
		RunID:           uuid.NewString(),
		ActorID:         actorID,
		Summary:         fmt.Sprintf("Rolled back %d field(s) from operation #%d.", result.RestoredCount, entryID),
		Type:            models.OperationRollback,
		OriginalEntryID: entryID,
		Changes:         restored,
		Counters:        models.Counters{ModifiedRecordCount: len(records)},
	}
	id, err := e.log.AppendEntry(ctx, rollbackEntry)
	if err != nil {
		return result, &StorageError{Op: "append rollback entry", Err: err}
	}
	result.EntryID = id

	logger.Info().Int64("entry", entryID).Int64("rollback_entry", id).Int("restored", result.RestoredCount).Msg("rollback complete")
	return result, nil
}

package core

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/kilupskalvis/ure/internal/codec"
	"github.com/kilupskalvis/ure/internal/match"
	"github.com/kilupskalvis/ure/internal/models"
	"github.com/kilupskalvis/ure/internal/snippet"
	"github.com/kilupskalvis/ure/internal/source"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

type field struct {
	loc models.FieldLocation
	raw string
}

// recordVisitor handles one loaded record. Returned FieldErrors are collected;
// a non-nil error aborts the scan.
type recordVisitor func(rec *models.Record, fields []field) ([]*FieldError, error)

type scanStats struct {
	scanned int
	pages   int
	errors  []models.FieldError
}

// scan pages through the source until it reports no more ids. Cancellation
// is checked once per page.
func (e *Engine) scan(ctx context.Context, spec models.SearchSpec, visit recordVisitor) (*scanStats, error) {
	logger := zerolog.Ctx(ctx)
	stats := &scanStats{}

	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return stats, errors.WithStack(err)
		}

		p, err := e.src.ListRecordIDs(ctx, spec.Types(), e.opts.PageSize, page)
		if err != nil {
			return stats, &StorageError{Op: "list records", Err: err}
		}
		stats.pages++
		logger.Debug().Int("page", page).Int("records", len(p.IDs)).Int("total", p.Total).Msg("scanning page")

		for _, id := range p.IDs {
			rec, fields, err := e.loadRecord(ctx, spec, id)
			if err != nil {
				fe := &FieldError{RecordID: id, Err: err}
				logger.Warn().Err(err).Str("record", id).Msg("skipping record")
				stats.errors = append(stats.errors, fe.Model())
				continue
			}
			stats.scanned++

			ferrs, err := visit(rec, fields)
			for _, fe := range ferrs {
				logger.Warn().Err(fe.Err).Str("record", fe.RecordID).Str("field", string(fe.FieldLocation)).Msg("field skipped")
				stats.errors = append(stats.errors, fe.Model())
			}
			if err != nil {
				return stats, err
			}
		}

		if !p.HasMore || len(p.IDs) == 0 {
			return stats, nil
		}
	}
}

// loadRecord reads a record and the fields covered by the spec's scope,
// content first and then by location.
func (e *Engine) loadRecord(ctx context.Context, spec models.SearchSpec, id string) (*models.Record, []field, error) {
	rec, err := e.src.GetRecord(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	var fields []field
	if spec.Scope.Includes(models.ContentLocation) && !e.excluded(ctx, models.ContentLocation) {
		if v, ok := rec.Fields[models.ContentLocation]; ok {
			fields = append(fields, field{loc: models.ContentLocation, raw: v})
		}
	}

	if spec.Scope != models.ScopeContent {
		extra, err := e.src.GetAllFieldsWithPrefix(ctx, id, source.ExcludePrefixes(spec.Scope))
		if err != nil {
			return nil, nil, err
		}
		locs := make([]models.FieldLocation, 0, len(extra))
		for loc := range extra {
			if spec.Scope.Includes(loc) && !e.excluded(ctx, loc) {
				locs = append(locs, loc)
			}
		}
		sort.Slice(locs, func(i, j int) bool { return locs[i] < locs[j] })
		for _, loc := range locs {
			fields = append(fields, field{loc: loc, raw: extra[loc]})
		}
	}

	return rec, fields, nil
}

func (e *Engine) compile(spec models.SearchSpec) (*match.Pattern, error) {
	p, err := ValidateSpec(spec)
	if err != nil {
		return nil, err
	}
	p.MaxInput = e.opts.MaxRegexInput
	return p, nil
}

// Preview counts every match and keeps up to PreviewCap samples. Nothing is written.
func (e *Engine) Preview(ctx context.Context, spec models.SearchSpec) (*models.PreviewResult, error) {
	pattern, err := e.compile(spec)
	if err != nil {
		return nil, err
	}

	result := &models.PreviewResult{Samples: []models.MatchRecord{}}
	stats, err := e.scan(ctx, spec, func(rec *models.Record, fields []field) ([]*FieldError, error) {
		var ferrs []*FieldError
		matched := false
		for _, f := range fields {
			n, err := e.collectSamples(rec, f, pattern, spec, result)
			if err != nil {
				ferrs = append(ferrs, &FieldError{RecordID: rec.ID, FieldLocation: f.loc, Err: err})
				continue
			}
			if n > 0 {
				matched = true
			}
		}
		if matched {
			result.MatchedRecords++
		}
		return ferrs, nil
	})
	if stats != nil {
		result.RecordsScanned = stats.scanned
		result.Errors = stats.errors
	}
	result.Limited = result.TotalMatches > e.opts.PreviewCap
	if err != nil {
		return result, err
	}

	zerolog.Ctx(ctx).Info().
		Int("matches", result.TotalMatches).
		Int("records", result.MatchedRecords).
		Int("scanned", result.RecordsScanned).
		Msg("preview complete")
	return result, nil
}

// collectSamples finds matches in the string leaves of one field
func (e *Engine) collectSamples(rec *models.Record, f field, pattern *match.Pattern, spec models.SearchSpec, result *models.PreviewResult) (int, error) {
	value := codec.Detect(f.raw)
	found := 0
	for _, leaf := range value.Leaves() {
		matches, err := pattern.Find(leaf.Text)
		if err != nil {
			return found, err
		}
		for _, m := range matches {
			found++
			result.TotalMatches++
			if len(result.Samples) >= e.opts.PreviewCap {
				continue
			}
			result.Samples = append(result.Samples, models.MatchRecord{
				RecordID:      rec.ID,
				RecordType:    rec.Type,
				RecordTitle:   rec.Title,
				FieldLocation: f.loc,
				Path:          leaf.Path,
				Position:      m.Position,
				MatchedText:   m.Text,
				SnippetBefore: snippet.Build(leaf.Text, m.Position, len(m.Text), e.opts.SnippetContext),
				SnippetAfter:  e.afterSnippet(leaf.Text, m, pattern, spec.Replacement),
			})
		}
	}
	return found, nil
}

// afterSnippet renders the same window with the replacement applied
func (e *Engine) afterSnippet(text string, m match.Match, pattern *match.Pattern, replacement string) string {
	if replacement == "" {
		return ""
	}
	end := m.Position + len(m.Text)
	start, stop := snippet.Window(text, m.Position, len(m.Text), e.opts.SnippetContext)
	before, err := pattern.Replace(text[start:m.Position], replacement)
	if err != nil {
		before = text[start:m.Position]
	}
	after, err := pattern.Replace(text[end:stop], replacement)
	if err != nil {
		after = text[end:stop]
	}
	return snippet.Render(before, pattern.Expand(text, m, replacement), after, start > 0, stop < len(text))
}

// Apply rewrites every matching field, persisting each change as soon as it
// is computed, and appends one log entry covering all changes. If the scan
// stops early the changes made so far are still logged so they can be rolled back.
func (e *Engine) Apply(ctx context.Context, spec models.SearchSpec, actorID string) (*models.ApplyResult, error) {
	if err := ValidateReplacement(spec); err != nil {
		return nil, err
	}
	pattern, err := e.compile(spec)
	if err != nil {
		return nil, err
	}
	logger := zerolog.Ctx(ctx)

	result := &models.ApplyResult{}
	replace := func(s string) (string, error) {
		return pattern.Replace(s, spec.Replacement)
	}

	stats, scanErr := e.scan(ctx, spec, func(rec *models.Record, fields []field) ([]*FieldError, error) {
		var ferrs []*FieldError
		modified := false
		for _, f := range fields {
			value := codec.Detect(f.raw)
			n, err := countMatches(value, pattern)
			if err != nil {
				ferrs = append(ferrs, &FieldError{RecordID: rec.ID, FieldLocation: f.loc, Err: err})
				continue
			}
			if n == 0 {
				continue
			}

			newRaw, changed, err := value.Replace(replace)
			if err != nil {
				ferrs = append(ferrs, &FieldError{RecordID: rec.ID, FieldLocation: f.loc, Err: errors.Errorf("replace in %s value: %w", value.Encoding, err)})
				continue
			}
			result.TotalMatches += n
			if !changed {
				continue
			}

			if err := e.mut.WriteField(ctx, rec.ID, f.loc, newRaw); err != nil {
				ferrs = append(ferrs, &FieldError{RecordID: rec.ID, FieldLocation: f.loc, Err: errors.Errorf("write field: %w", err)})
				continue
			}
			logger.Debug().Str("record", rec.ID).Str("field", string(f.loc)).Str("encoding", value.Encoding.String()).Msg("field updated")

			result.Changes = append(result.Changes, models.FieldChange{
				RecordID:      rec.ID,
				RecordType:    rec.Type,
				RecordTitle:   rec.Title,
				FieldLocation: f.loc,
				OldValue:      f.raw,
				NewValue:      newRaw,
			})
			modified = true
		}
		if modified {
			result.ModifiedRecordCount++
			result.ModifiedRecords = append(result.ModifiedRecords, rec.ID)
		}
		return ferrs, nil
	})
	if stats != nil {
		result.RecordsScanned = stats.scanned
		result.Errors = stats.errors
	}

	if len(result.Changes) > 0 {
		entry := &models.OperationLogEntry{
			RunID:   uuid.NewString(),
			ActorID: actorID,
			Summary: applySummary(spec, result.ModifiedRecordCount),
			Type:    spec.OperationKind(),
			Spec:    &spec,
			Changes: result.Changes,
			Counters: models.Counters{
				ModifiedRecordCount: result.ModifiedRecordCount,
				TotalMatches:        result.TotalMatches,
			},
		}
		id, err := e.log.AppendEntry(ctx, entry)
		if err != nil {
			logErr := &StorageError{Op: "append operation log", Err: err}
			if scanErr != nil {
				return result, errors.Join(scanErr, logErr)
			}
			return result, logErr
		}
		result.EntryID = id
	}

	if scanErr != nil {
		return result, scanErr
	}

	logger.Info().
		Int64("entry", result.EntryID).
		Int("modified", result.ModifiedRecordCount).
		Int("matches", result.TotalMatches).
		Int("errors", len(result.Errors)).
		Msg("apply complete")
	return result, nil
}

func countMatches(value *codec.Value, pattern *match.Pattern) (int, error) {
	n := 0
	for _, leaf := range value.Leaves() {
		ms, err := pattern.Find(leaf.Text)
		if err != nil {
			return 0, err
		}
		n += len(ms)
	}
	return n, nil
}

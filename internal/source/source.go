// Package source defines how the engine reads records and writes fields back.
package source

import (
	"context"
	"strings"

	"github.com/kilupskalvis/ure/internal/models"
	"gitlab.com/tozd/go/errors"
)

var (
	// ErrRecordNotFound is returned for unknown record ids
	ErrRecordNotFound = errors.Base("record not found")
	// ErrRejected is returned when a backend refuses a value, for example
	// structured data that no longer parses
	ErrRejected = errors.Base("value rejected")
)

// Page is one page of record ids
type Page struct {
	IDs     []string
	HasMore bool
	Total   int
}

// RecordSource reads records. Page numbers start at 1.
type RecordSource interface {
	ListRecordIDs(ctx context.Context, recordTypes []string, pageSize, pageNumber int) (*Page, error)
	GetRecord(ctx context.Context, id string) (*models.Record, error)
	// GetAllFieldsWithPrefix returns every field other than the main content,
	// skipping locations that start with one of excludePrefixes.
	GetAllFieldsWithPrefix(ctx context.Context, id string, excludePrefixes []string) (map[models.FieldLocation]string, error)
}

// RecordMutator writes a single field. Writing the same value twice must have
// no further effect.
type RecordMutator interface {
	WriteField(ctx context.Context, id string, loc models.FieldLocation, value string) error
}

// Store is a source that can also be written to
type Store interface {
	RecordSource
	RecordMutator
}

// Excluded reports whether loc starts with any of the prefixes
func Excluded(loc models.FieldLocation, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(string(loc), p) {
			return true
		}
	}
	return false
}

// ExcludePrefixes returns the prefixes that hide every field a scope does not cover
func ExcludePrefixes(scope models.Scope) []string {
	content := string(models.ContentLocation)
	meta := string(models.LocationMeta) + ":"
	structured := string(models.LocationStructured) + ":"
	column := string(models.LocationColumn) + ":"

	switch scope {
	case models.ScopeMetadata:
		return []string{content, structured, column}
	case models.ScopeStructured:
		return []string{content, meta, column}
	case models.ScopeAll:
		return []string{content}
	}
	return []string{content, meta, structured, column}
}

// ReadField returns the current value of one field
func ReadField(ctx context.Context, src RecordSource, id string, loc models.FieldLocation) (string, error) {
	if loc == models.ContentLocation {
		rec, err := src.GetRecord(ctx, id)
		if err != nil {
			return "", err
		}
		return rec.Fields[loc], nil
	}

	fields, err := src.GetAllFieldsWithPrefix(ctx, id, []string{string(models.ContentLocation)})
	if err != nil {
		return "", err
	}
	return fields[loc], nil
}

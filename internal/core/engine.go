// Package core implements the replacement engine: batch previews, applies,
// and rollback of logged operations.
package core

import (
	"context"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-playground/validator/v10"
	"github.com/kilupskalvis/ure/internal/match"
	"github.com/kilupskalvis/ure/internal/models"
	"github.com/kilupskalvis/ure/internal/source"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// OperationLog stores applied operations
type OperationLog interface {
	AppendEntry(ctx context.Context, entry *models.OperationLogEntry) (int64, error)
	GetEntry(ctx context.Context, id int64) (*models.OperationLogEntry, error)
	ListEntries(ctx context.Context, limit int) ([]*models.OperationLogEntry, error)
}

// Options tune a scan
type Options struct {
	PageSize       int
	PreviewCap     int
	SnippetContext int
	// ExcludeFields are glob patterns over field locations, e.g. "meta:_edit_*"
	ExcludeFields []string
	// MaxRegexInput bounds the size of a value evaluated by a regex. Zero disables the limit.
	MaxRegexInput int
}

// DefaultOptions returns the defaults for content scans
func DefaultOptions() Options {
	return Options{
		PageSize:       100,
		PreviewCap:     20,
		SnippetContext: 50,
	}
}

// Engine runs previews, applies and rollbacks against one record store.
// It holds no state between calls.
type Engine struct {
	src  source.RecordSource
	mut  source.RecordMutator
	log  OperationLog
	opts Options
}

// NewEngine creates an Engine. Zero option values fall back to the defaults.
func NewEngine(src source.RecordSource, mut source.RecordMutator, log OperationLog, opts Options) *Engine {
	def := DefaultOptions()
	if opts.PageSize <= 0 {
		opts.PageSize = def.PageSize
	}
	if opts.PreviewCap <= 0 {
		opts.PreviewCap = def.PreviewCap
	}
	if opts.SnippetContext <= 0 {
		opts.SnippetContext = def.SnippetContext
	}
	return &Engine{src: src, mut: mut, log: log, opts: opts}
}

// Options returns the effective options
func (e *Engine) Options() Options {
	return e.opts
}

var validate = validator.New()

// ValidateSpec checks a SearchSpec and compiles its pattern. It performs no I/O.
func ValidateSpec(spec models.SearchSpec) (*match.Pattern, error) {
	if err := validate.Struct(spec); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return nil, &ValidationError{Field: strings.ToLower(fe.Field()), Reason: describeTag(fe), Err: err}
		}
		return nil, &ValidationError{Reason: err.Error(), Err: err}
	}

	p, err := match.Compile(spec.Term, spec.CaseSensitive, spec.UseRegex)
	if err != nil {
		return nil, &ValidationError{Field: "term", Reason: err.Error(), Err: err}
	}
	return p, nil
}

// ValidateReplacement rejects an apply without a replacement. An empty
// replacement means search only.
func ValidateReplacement(spec models.SearchSpec) error {
	if spec.Replacement == "" {
		return &ValidationError{Field: "replacement", Reason: "must not be empty to apply", Err: ErrValidation}
	}
	return nil
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "must not be empty"
	case "oneof":
		return "must be one of " + fe.Param()
	}
	return "failed " + fe.Tag() + " check"
}

// excluded reports whether a field location matches an exclude glob
func (e *Engine) excluded(ctx context.Context, loc models.FieldLocation) bool {
	for _, pattern := range e.opts.ExcludeFields {
		ok, err := doublestar.Match(pattern, string(loc))
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("pattern", pattern).Msg("invalid exclude pattern")
			continue
		}
		if ok {
			return true
		}
	}
	return false
}

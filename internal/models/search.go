// Package models defines the core data structures used throughout ure
// including search specifications, records, field changes, and log entries.
package models

import "strings"

// Scope selects which fields of a record a search looks at
type Scope string

const (
	ScopeContent    Scope = "content"
	ScopeMetadata   Scope = "meta"
	ScopeStructured Scope = "structured"
	ScopeAll        Scope = "all"
)

// ParseScope converts user input into a Scope. Unknown values are returned as-is
// so validation can report them.
func ParseScope(s string) Scope {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "content", "post_content":
		return ScopeContent
	case "meta", "metadata", "postmeta":
		return ScopeMetadata
	case "structured", "elementor":
		return ScopeStructured
	case "all":
		return ScopeAll
	}
	return Scope(s)
}

// Includes reports whether a field location is covered by the scope.
// Table columns are only reachable through ScopeAll.
func (s Scope) Includes(loc FieldLocation) bool {
	switch s {
	case ScopeAll:
		return true
	case ScopeContent:
		return loc.Kind() == LocationContent
	case ScopeMetadata:
		return loc.Kind() == LocationMeta
	case ScopeStructured:
		return loc.Kind() == LocationStructured
	}
	return false
}

// SearchSpec describes one search or replace request. It is treated as an
// immutable value: every preview and apply call receives it in full.
type SearchSpec struct {
	Term          string   `json:"term" yaml:"term" validate:"required"`
	Replacement   string   `json:"replacement" yaml:"replacement"`
	CaseSensitive bool     `json:"case_sensitive" yaml:"case_sensitive"`
	UseRegex      bool     `json:"use_regex" yaml:"use_regex"`
	Scope         Scope    `json:"scope" yaml:"scope" validate:"required,oneof=content meta structured all"`
	RecordTypes   []string `json:"record_types,omitempty" yaml:"record_types,omitempty" validate:"dive,required"`
	Tables        []string `json:"tables,omitempty" yaml:"tables,omitempty" validate:"dive,required"`
}

// DatabaseMode reports whether the spec targets raw table rows instead of content records
func (s SearchSpec) DatabaseMode() bool {
	return len(s.Tables) > 0
}

// Types returns the record type filter handed to the record source
func (s SearchSpec) Types() []string {
	if s.DatabaseMode() {
		return s.Tables
	}
	return s.RecordTypes
}

// OperationKind returns the log operation type produced by applying this spec
func (s SearchSpec) OperationKind() OperationType {
	if s.DatabaseMode() {
		return OperationDatabase
	}
	return OperationContent
}

package models

import "strings"

// LocationKind is the category part of a FieldLocation
type LocationKind string

const (
	LocationContent    LocationKind = "content"
	LocationMeta       LocationKind = "meta"
	LocationStructured LocationKind = "structured"
	LocationColumn     LocationKind = "column"
)

// FieldLocation identifies where a value lives inside a record:
// "content", "meta:<key>", "structured:<key>" or "column:<name>".
type FieldLocation string

// ContentLocation is the location of a record's main content field
const ContentLocation FieldLocation = "content"

// MetaLocation builds a metadata field location
func MetaLocation(key string) FieldLocation {
	return FieldLocation(string(LocationMeta) + ":" + key)
}

// StructuredLocation builds a structured-data field location
func StructuredLocation(key string) FieldLocation {
	return FieldLocation(string(LocationStructured) + ":" + key)
}

// ColumnLocation builds a table column field location
func ColumnLocation(name string) FieldLocation {
	return FieldLocation(string(LocationColumn) + ":" + name)
}

// Kind returns the category of the location
func (l FieldLocation) Kind() LocationKind {
	kind, _, _ := strings.Cut(string(l), ":")
	return LocationKind(kind)
}

// Key returns the part after the colon, or "" for the content location
func (l FieldLocation) Key() string {
	_, key, _ := strings.Cut(string(l), ":")
	return key
}

// HasPrefix reports whether the location starts with prefix
func (l FieldLocation) HasPrefix(prefix string) bool {
	return strings.HasPrefix(string(l), prefix)
}

// Record is a unit of content read from a record source
type Record struct {
	ID     string                   `json:"id"`
	Type   string                   `json:"type"`
	Title  string                   `json:"title"`
	Fields map[FieldLocation]string `json:"fields"`
}

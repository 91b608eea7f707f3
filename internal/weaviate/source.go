package weaviate

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/kilupskalvis/ure/internal/models"
	"github.com/kilupskalvis/ure/internal/source"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"gitlab.com/tozd/go/errors"
)

// SourceOptions names the properties that play the content and title roles
type SourceOptions struct {
	ContentProperty string
	TitleProperty   string
}

// Source exposes Weaviate objects as records with ids of the form Class/uuid.
// The content property is the content field, other text properties are meta
// fields and object or array properties are structured fields holding JSON.
type Source struct {
	client  ClientInterface
	content string
	title   string
}

var _ source.Store = (*Source)(nil)

// NewSource creates a Source over client
func NewSource(client ClientInterface, opts SourceOptions) *Source {
	s := &Source{client: client, content: opts.ContentProperty, title: opts.TitleProperty}
	if s.content == "" {
		s.content = "content"
	}
	if s.title == "" {
		s.title = "title"
	}
	return s
}

func splitID(id string) (string, string, error) {
	class, objectID, ok := strings.Cut(id, "/")
	if !ok || class == "" || objectID == "" {
		return "", "", errors.WithDetails(source.ErrRecordNotFound, "id", id)
	}
	return class, objectID, nil
}

// notFound translates a missing object into the record source error
func notFound(err error, id string) error {
	if errors.Is(err, ErrObjectNotFound) {
		return errors.WithDetails(source.ErrRecordNotFound, "id", id)
	}
	return err
}

func (s *Source) ListRecordIDs(ctx context.Context, recordTypes []string, pageSize, pageNumber int) (*source.Page, error) {
	classes := recordTypes
	if len(classes) == 0 {
		var err error
		if classes, err = s.client.GetClasses(ctx); err != nil {
			return nil, err
		}
	}

	counts := make([]int, len(classes))
	for i, class := range classes {
		n, err := s.client.GetClassCount(ctx, class)
		if err != nil {
			return nil, err
		}
		counts[i] = n
	}

	segments, total, hasMore := source.Paginate(classes, counts, pageSize, pageNumber)
	page := &source.Page{HasMore: hasMore, Total: total}
	for _, seg := range segments {
		ids, err := s.client.ListObjectIDs(ctx, seg.Type, seg.Limit, seg.Offset)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			page.IDs = append(page.IDs, seg.Type+"/"+id)
		}
	}
	return page, nil
}

func (s *Source) object(ctx context.Context, id string) (*Object, error) {
	class, objectID, err := splitID(id)
	if err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, class, objectID)
	if err != nil {
		return nil, notFound(err, id)
	}
	return obj, nil
}

func (s *Source) GetRecord(ctx context.Context, id string) (*models.Record, error) {
	obj, err := s.object(ctx, id)
	if err != nil {
		return nil, err
	}

	rec := &models.Record{ID: id, Type: obj.Class, Fields: map[models.FieldLocation]string{}}
	if title, ok := obj.Properties[s.title].(string); ok {
		rec.Title = title
	}
	if content, ok := obj.Properties[s.content].(string); ok {
		rec.Fields[models.ContentLocation] = content
	}
	return rec, nil
}

// GetAllFieldsWithPrefix returns text properties as meta fields and nested
// properties as structured JSON. Numbers, booleans and text arrays of other
// shapes stay out of reach.
func (s *Source) GetAllFieldsWithPrefix(ctx context.Context, id string, excludePrefixes []string) (map[models.FieldLocation]string, error) {
	obj, err := s.object(ctx, id)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(obj.Properties))
	for name := range obj.Properties {
		if name != s.content {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	fields := make(map[models.FieldLocation]string)
	for _, name := range names {
		var loc models.FieldLocation
		var value string
		switch v := obj.Properties[name].(type) {
		case string:
			loc, value = models.MetaLocation(name), v
		case map[string]any, []any:
			encoded, err := encodeProperty(v)
			if err != nil {
				zerolog.Ctx(ctx).Warn().Err(err).Str("record", id).Str("property", name).Msg("skipping property")
				continue
			}
			loc, value = models.StructuredLocation(name), encoded
		default:
			continue
		}
		if !source.Excluded(loc, excludePrefixes) {
			fields[loc] = value
		}
	}
	return fields, nil
}

// encodeProperty renders a nested property as compact JSON with sorted keys
func encodeProperty(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", errors.WithStack(err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func (s *Source) WriteField(ctx context.Context, id string, loc models.FieldLocation, value string) error {
	class, objectID, err := splitID(id)
	if err != nil {
		return err
	}

	var name string
	var prop any
	switch loc.Kind() {
	case models.LocationContent:
		name, prop = s.content, value
	case models.LocationMeta:
		name, prop = loc.Key(), value
	case models.LocationStructured:
		if !gjson.Valid(value) {
			return errors.WithDetails(source.ErrRejected, "id", id, "field", string(loc), "reason", "not valid JSON")
		}
		// numbers stay json.Number so large integers are not rounded through float64
		dec := json.NewDecoder(strings.NewReader(value))
		dec.UseNumber()
		if err := dec.Decode(&prop); err != nil {
			return errors.WithDetails(source.ErrRejected, "id", id, "field", string(loc), "reason", err.Error())
		}
		name = loc.Key()
	default:
		return errors.WithDetails(source.ErrRejected, "id", id, "field", string(loc), "reason", "unsupported field")
	}

	if err := s.client.MergeProperties(ctx, class, objectID, map[string]any{name: prop}); err != nil {
		return notFound(err, id)
	}
	return nil
}

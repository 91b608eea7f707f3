package source

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/kilupskalvis/ure/internal/models"
	"gitlab.com/tozd/go/errors"
)

// Memory is an in-memory Store. Records keep insertion order.
type Memory struct {
	mu      sync.Mutex
	order   []string
	records map[string]*models.Record

	// ReadErrors and WriteErrors inject failures keyed by record id
	ReadErrors  map[string]error
	WriteErrors map[string]error
	// ListErrors fails ListRecordIDs for the given page number
	ListErrors map[int]error

	Writes int
}

var _ Store = (*Memory)(nil)

// NewMemory creates a Memory store holding copies of records
func NewMemory(records ...*models.Record) *Memory {
	m := &Memory{
		records:     make(map[string]*models.Record),
		ReadErrors:  make(map[string]error),
		WriteErrors: make(map[string]error),
		ListErrors:  make(map[int]error),
	}
	for _, r := range records {
		m.Put(r)
	}
	return m
}

// Put inserts or replaces a record
func (m *Memory) Put(r *models.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[r.ID]; !ok {
		m.order = append(m.order, r.ID)
	}
	m.records[r.ID] = cloneRecord(r)
}

// Field returns the stored value of a field
func (m *Memory) Field(id string, loc models.FieldLocation) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return "", false
	}
	v, ok := r.Fields[loc]
	return v, ok
}

func (m *Memory) ListRecordIDs(ctx context.Context, recordTypes []string, pageSize, pageNumber int) (*Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ListErrors[pageNumber]; err != nil {
		return nil, err
	}

	var ids []string
	for _, id := range m.order {
		if len(recordTypes) == 0 || slices.Contains(recordTypes, m.records[id].Type) {
			ids = append(ids, id)
		}
	}

	segs, total, hasMore := Paginate([]string{""}, []int{len(ids)}, pageSize, pageNumber)
	page := &Page{Total: total, HasMore: hasMore}
	for _, s := range segs {
		page.IDs = append(page.IDs, ids[s.Offset:s.Offset+s.Limit]...)
	}
	return page, nil
}

func (m *Memory) GetRecord(ctx context.Context, id string) (*models.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ReadErrors[id]; err != nil {
		return nil, err
	}
	r, ok := m.records[id]
	if !ok {
		return nil, errors.WithDetails(ErrRecordNotFound, "id", id)
	}

	out := &models.Record{ID: r.ID, Type: r.Type, Title: r.Title, Fields: map[models.FieldLocation]string{}}
	if v, ok := r.Fields[models.ContentLocation]; ok {
		out.Fields[models.ContentLocation] = v
	}
	return out, nil
}

func (m *Memory) GetAllFieldsWithPrefix(ctx context.Context, id string, excludePrefixes []string) (map[models.FieldLocation]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ReadErrors[id]; err != nil {
		return nil, err
	}
	r, ok := m.records[id]
	if !ok {
		return nil, errors.WithDetails(ErrRecordNotFound, "id", id)
	}

	out := make(map[models.FieldLocation]string)
	for loc, v := range r.Fields {
		if loc == models.ContentLocation || Excluded(loc, excludePrefixes) {
			continue
		}
		out[loc] = v
	}
	return out, nil
}

func (m *Memory) WriteField(ctx context.Context, id string, loc models.FieldLocation, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.WriteErrors[id]; err != nil {
		return err
	}
	r, ok := m.records[id]
	if !ok {
		return errors.WithDetails(ErrRecordNotFound, "id", id)
	}
	r.Fields[loc] = value
	m.Writes++
	return nil
}

func cloneRecord(r *models.Record) *models.Record {
	out := *r
	out.Fields = maps.Clone(r.Fields)
	if out.Fields == nil {
		out.Fields = make(map[models.FieldLocation]string)
	}
	return &out
}

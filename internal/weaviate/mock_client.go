package weaviate

import (
	"context"
	"maps"

	"gitlab.com/tozd/go/errors"
)

// MockClient is a mock implementation of ClientInterface for testing.
type MockClient struct {
	// Objects stores objects per class in insertion order
	Objects map[string][]*Object
	// Classes keeps class order
	Classes []string
	// Err can be set to make methods return an error
	Err error
	// MergeErr fails MergeProperties only
	MergeErr error
	// Merges counts successful MergeProperties calls
	Merges int
}

// NewMockClient creates a new MockClient for testing.
func NewMockClient() *MockClient {
	return &MockClient{
		Objects: make(map[string][]*Object),
	}
}

// AddObject adds a copy of obj to the mock store.
func (m *MockClient) AddObject(obj *Object) {
	if _, ok := m.Objects[obj.Class]; !ok {
		m.Classes = append(m.Classes, obj.Class)
	}
	m.Objects[obj.Class] = append(m.Objects[obj.Class], &Object{
		ID:         obj.ID,
		Class:      obj.Class,
		Properties: maps.Clone(obj.Properties),
	})
}

func (m *MockClient) find(className, objectID string) *Object {
	for _, o := range m.Objects[className] {
		if o.ID == objectID {
			return o
		}
	}
	return nil
}

// GetClasses returns the classes that hold objects.
func (m *MockClient) GetClasses(ctx context.Context) ([]string, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Classes, nil
}

// GetClassCount returns the number of objects stored for a class.
func (m *MockClient) GetClassCount(ctx context.Context, className string) (int, error) {
	if m.Err != nil {
		return 0, m.Err
	}
	return len(m.Objects[className]), nil
}

// ListObjectIDs returns one page of ids.
func (m *MockClient) ListObjectIDs(ctx context.Context, className string, limit, offset int) ([]string, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	objs := m.Objects[className]
	var ids []string
	for i := offset; i < len(objs) && i < offset+limit; i++ {
		ids = append(ids, objs[i].ID)
	}
	return ids, nil
}

// GetObject returns a copy of a stored object.
func (m *MockClient) GetObject(ctx context.Context, className, objectID string) (*Object, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	o := m.find(className, objectID)
	if o == nil {
		return nil, errors.WithDetails(ErrObjectNotFound, "class", className, "id", objectID)
	}
	return &Object{ID: o.ID, Class: o.Class, Properties: maps.Clone(o.Properties)}, nil
}

// MergeProperties overwrites the given properties of a stored object.
func (m *MockClient) MergeProperties(ctx context.Context, className, objectID string, props map[string]any) error {
	if m.Err != nil {
		return m.Err
	}
	if m.MergeErr != nil {
		return m.MergeErr
	}
	o := m.find(className, objectID)
	if o == nil {
		return errors.WithDetails(ErrObjectNotFound, "class", className, "id", objectID)
	}
	if o.Properties == nil {
		o.Properties = map[string]any{}
	}
	maps.Copy(o.Properties, props)
	m.Merges++
	return nil
}

// Verify that *MockClient implements ClientInterface at compile time
var _ ClientInterface = (*MockClient)(nil)

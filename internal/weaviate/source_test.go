package weaviate

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/kilupskalvis/ure/internal/models"
	"github.com/kilupskalvis/ure/internal/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	weaviatemodels "github.com/weaviate/weaviate/entities/models"
	"gitlab.com/tozd/go/errors"
)

func newMockSource() (*Source, *MockClient) {
	mock := NewMockClient()
	mock.AddObject(&Object{ID: "a1", Class: "Article", Properties: map[string]any{
		"title":   "Hello",
		"content": "Visit http://old.test",
		"summary": "old.test summary",
		"blocks":  []any{map[string]any{"url": "http://old.test/<x>"}},
		"views":   float64(42),
	}})
	mock.AddObject(&Object{ID: "a2", Class: "Article", Properties: map[string]any{"content": "nothing"}})
	mock.AddObject(&Object{ID: "p1", Class: "Page", Properties: map[string]any{"content": "page"}})
	return NewSource(mock, SourceOptions{}), mock
}

func TestSource_ListRecordIDs(t *testing.T) {
	src, _ := newMockSource()
	ctx := context.Background()

	page, err := src.ListRecordIDs(ctx, nil, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"Article/a1", "Article/a2"}, page.IDs)
	assert.True(t, page.HasMore)
	assert.Equal(t, 3, page.Total)

	page, err = src.ListRecordIDs(ctx, nil, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"Page/p1"}, page.IDs)
	assert.False(t, page.HasMore)

	page, err = src.ListRecordIDs(ctx, []string{"Page"}, 10, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"Page/p1"}, page.IDs)
}

func TestSource_GetRecord(t *testing.T) {
	src, _ := newMockSource()
	ctx := context.Background()

	rec, err := src.GetRecord(ctx, "Article/a1")
	require.NoError(t, err)
	assert.Equal(t, "Article", rec.Type)
	assert.Equal(t, "Hello", rec.Title)
	assert.Equal(t, "Visit http://old.test", rec.Fields[models.ContentLocation])

	_, err = src.GetRecord(ctx, "Article/zz")
	assert.ErrorIs(t, err, source.ErrRecordNotFound)

	_, err = src.GetRecord(ctx, "no-slash")
	assert.ErrorIs(t, err, source.ErrRecordNotFound)
}

func TestSource_GetAllFieldsWithPrefix(t *testing.T) {
	src, _ := newMockSource()

	fields, err := src.GetAllFieldsWithPrefix(context.Background(), "Article/a1", []string{"content"})

	// Assert: numbers are skipped, nested values become JSON without HTML escaping
	require.NoError(t, err)
	assert.Equal(t, map[models.FieldLocation]string{
		models.MetaLocation("title"):        "Hello",
		models.MetaLocation("summary"):      "old.test summary",
		models.StructuredLocation("blocks"): `[{"url":"http://old.test/<x>"}]`,
	}, fields)
}

func TestSource_WriteField(t *testing.T) {
	src, mock := newMockSource()
	ctx := context.Background()

	require.NoError(t, src.WriteField(ctx, "Article/a1", models.ContentLocation, "Visit https://new.test"))
	require.NoError(t, src.WriteField(ctx, "Article/a1", models.MetaLocation("summary"), "new"))
	require.NoError(t, src.WriteField(ctx, "Article/a1", models.StructuredLocation("blocks"), `[{"url":"https://new.test"}]`))

	obj, err := mock.GetObject(ctx, "Article", "a1")
	require.NoError(t, err)
	assert.Equal(t, "Visit https://new.test", obj.Properties["content"])
	assert.Equal(t, "new", obj.Properties["summary"])
	assert.Equal(t, []any{map[string]any{"url": "https://new.test"}}, obj.Properties["blocks"])
	assert.Equal(t, float64(42), obj.Properties["views"])
	assert.Equal(t, 3, mock.Merges)

	err = src.WriteField(ctx, "Article/a1", models.StructuredLocation("blocks"), `[{"url":`)
	assert.ErrorIs(t, err, source.ErrRejected)

	err = src.WriteField(ctx, "Article/a1", models.ColumnLocation("x"), "y")
	assert.ErrorIs(t, err, source.ErrRejected)

	err = src.WriteField(ctx, "Article/missing", models.ContentLocation, "y")
	assert.ErrorIs(t, err, source.ErrRecordNotFound)
	assert.Equal(t, 3, mock.Merges)
}

func TestSource_WriteFieldKeepsLargeIntegers(t *testing.T) {
	// Setup
	src, mock := newMockSource()
	ctx := context.Background()

	// Act
	err := src.WriteField(ctx, "Article/a1", models.StructuredLocation("blocks"), `[{"id":9007199254740993,"w":1.5}]`)

	// Assert
	require.NoError(t, err)
	obj, err := mock.GetObject(ctx, "Article", "a1")
	require.NoError(t, err)
	assert.Equal(t, []any{map[string]any{"id": json.Number("9007199254740993"), "w": json.Number("1.5")}}, obj.Properties["blocks"])

	fields, err := src.GetAllFieldsWithPrefix(ctx, "Article/a1", nil)
	require.NoError(t, err)
	assert.Equal(t, `[{"id":9007199254740993,"w":1.5}]`, fields[models.StructuredLocation("blocks")])
}

func TestSource_ClientErrors(t *testing.T) {
	src, mock := newMockSource()
	mock.Err = errors.New("connection refused")

	_, err := src.ListRecordIDs(context.Background(), nil, 10, 1)
	assert.ErrorIs(t, err, mock.Err)

	_, err = src.GetRecord(context.Background(), "Article/a1")
	assert.ErrorIs(t, err, mock.Err)
	assert.NotErrorIs(t, err, source.ErrRecordNotFound)
}

func TestToPropertyMap(t *testing.T) {
	props, err := toPropertyMap(nil)
	require.NoError(t, err)
	assert.Empty(t, props)

	type typed struct {
		Name string `json:"name"`
	}
	props, err = toPropertyMap(typed{Name: "x"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "x"}, props)
}

func TestTextClasses(t *testing.T) {
	schema := &weaviatemodels.Schema{Classes: []*weaviatemodels.Class{
		{Class: "Article", Properties: []*weaviatemodels.Property{
			{Name: "title", DataType: []string{"text"}},
		}},
		{Class: "Metric", Properties: []*weaviatemodels.Property{
			{Name: "value", DataType: []string{"number"}},
		}},
		{Class: "Page", Properties: []*weaviatemodels.Property{
			{Name: "blocks", DataType: []string{"object[]"}},
		}},
	}}

	assert.Equal(t, []string{"Article", "Page"}, textClasses(schema))
	assert.Nil(t, textClasses(nil))
}

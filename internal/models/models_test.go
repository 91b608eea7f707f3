package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldLocation(t *testing.T) {
	assert.Equal(t, LocationContent, ContentLocation.Kind())
	assert.Equal(t, "", ContentLocation.Key())

	loc := MetaLocation("_thumbnail:alt")
	assert.Equal(t, LocationMeta, loc.Kind())
	assert.Equal(t, "_thumbnail:alt", loc.Key())

	assert.Equal(t, FieldLocation("structured:_elementor_data"), StructuredLocation("_elementor_data"))
	assert.Equal(t, LocationColumn, ColumnLocation("option_value").Kind())
}

func TestScopeIncludes(t *testing.T) {
	col := ColumnLocation("x")
	assert.True(t, ScopeContent.Includes(ContentLocation))
	assert.False(t, ScopeContent.Includes(MetaLocation("a")))
	assert.True(t, ScopeMetadata.Includes(MetaLocation("a")))
	assert.False(t, ScopeMetadata.Includes(StructuredLocation("a")))
	assert.True(t, ScopeStructured.Includes(StructuredLocation("a")))
	assert.False(t, ScopeStructured.Includes(col))
	assert.True(t, ScopeAll.Includes(col))
	assert.False(t, Scope("bogus").Includes(ContentLocation))
}

func TestParseScope(t *testing.T) {
	assert.Equal(t, ScopeContent, ParseScope("post_content"))
	assert.Equal(t, ScopeMetadata, ParseScope("postmeta"))
	assert.Equal(t, ScopeStructured, ParseScope("Elementor"))
	assert.Equal(t, ScopeAll, ParseScope(" all "))
	assert.Equal(t, Scope("nope"), ParseScope("nope"))
}

func TestSearchSpec_DatabaseMode(t *testing.T) {
	s := SearchSpec{RecordTypes: []string{"post"}}
	assert.False(t, s.DatabaseMode())
	assert.Equal(t, []string{"post"}, s.Types())
	assert.Equal(t, OperationContent, s.OperationKind())

	s.Tables = []string{"wp_options"}
	assert.True(t, s.DatabaseMode())
	assert.Equal(t, []string{"wp_options"}, s.Types())
	assert.Equal(t, OperationDatabase, s.OperationKind())
}

func TestFieldChange_JSONKeepsBinaryValues(t *testing.T) {
	in := FieldChange{
		RecordID:      "7",
		FieldLocation: MetaLocation("blob"),
		OldValue:      "caf\xe9",
		NewValue:      "café",
	}
	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.Contains(t, string(data), "old_value_b64")
	assert.NotContains(t, string(data), "new_value_b64")

	var out FieldChange
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

package sqlsource

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/kilupskalvis/ure/internal/core"
	"github.com/kilupskalvis/ure/internal/models"
	"github.com/kilupskalvis/ure/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOperationLog(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "ure.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestContentSource_ApplyAndRollback(t *testing.T) {
	// Setup: body, serialized meta, page-builder JSON
	src, db := newContentSource(t)
	exec(t, db, `INSERT INTO wp_posts (ID, post_type, post_title, post_content) VALUES (1, 'page', 'Home', 'Visit http://old.test')`)
	exec(t, db, `INSERT INTO wp_postmeta (post_id, meta_key, meta_value) VALUES
		(1, 'links', 'a:1:{i:0;s:15:"http://old.test";}'),
		(1, '_elementor_data', '[{"url":"http:\/\/old.test"}]')`)
	engine := core.NewEngine(src, src, newOperationLog(t), core.DefaultOptions())
	ctx := context.Background()
	spec := models.SearchSpec{Term: "old.test", Replacement: "new.example", Scope: models.ScopeAll, RecordTypes: []string{"page"}}

	// Act
	res, err := engine.Apply(ctx, spec, "admin")

	// Assert: serialized lengths recomputed, JSON escaping preserved
	require.NoError(t, err)
	assert.Equal(t, 3, res.TotalMatches)
	assert.Equal(t, 1, res.ModifiedRecordCount)

	fields, err := src.GetAllFieldsWithPrefix(ctx, "1", nil)
	require.NoError(t, err)
	assert.Equal(t, `a:1:{i:0;s:18:"http://new.example";}`, fields[models.MetaLocation("links")])
	assert.Equal(t, `[{"url":"http:\/\/new.example"}]`, fields[models.StructuredLocation("_elementor_data")])

	// Act: roll back
	rb, err := engine.Rollback(ctx, res.EntryID, "admin")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 3, rb.RestoredCount)
	rec, err := src.GetRecord(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "Visit http://old.test", rec.Fields[models.ContentLocation])
	fields, err = src.GetAllFieldsWithPrefix(ctx, "1", nil)
	require.NoError(t, err)
	assert.Equal(t, `a:1:{i:0;s:15:"http://old.test";}`, fields[models.MetaLocation("links")])
}

func TestTableSource_ApplyDatabaseMode(t *testing.T) {
	src := newTableSource(t, TableOptions{SkipGUID: true})
	engine := core.NewEngine(src, src, newOperationLog(t), core.DefaultOptions())
	ctx := context.Background()
	spec := models.SearchSpec{Term: "old.test", Replacement: "new.test", Scope: models.ScopeAll, Tables: []string{"wp_options", "wp_links"}}

	res, err := engine.Apply(ctx, spec, "admin")

	require.NoError(t, err)
	assert.Equal(t, 3, res.ModifiedRecordCount)
	assert.Equal(t, 3, res.TotalMatches)

	entry, err := engine.GetEntry(ctx, res.EntryID)
	require.NoError(t, err)
	assert.Equal(t, models.OperationDatabase, entry.Type)

	// the guid column keeps its value
	fields, err := src.GetAllFieldsWithPrefix(ctx, "wp_links/10", nil)
	require.NoError(t, err)
	assert.Equal(t, "http://new.test/x", fields[models.ColumnLocation("link_url")])
	var guid string
	require.NoError(t, src.db.QueryRow(`SELECT guid FROM wp_links WHERE link_id = 10`).Scan(&guid))
	assert.Equal(t, "http://old.test/?p=10", guid)
}

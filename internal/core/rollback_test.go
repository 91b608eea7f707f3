package core

import (
	"context"
	"testing"

	"github.com/kilupskalvis/ure/internal/models"
	"github.com/kilupskalvis/ure/internal/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"
)

func TestRollback_RestoresExactValues(t *testing.T) {
	ctx := context.Background()
	serialized := `a:1:{s:4:"link";s:19:"http://old.test/a/b";}`
	mem := source.NewMemory(
		post("1", "old.test is here", "meta:link", serialized),
		post("2", "also old.test"),
	)
	e, st := newTestEngine(t, mem, Options{})

	s := spec("old.test", "brand-new.example")
	s.Scope = models.ScopeAll
	applied, err := e.Apply(ctx, s, "alice")
	require.NoError(t, err)
	require.Len(t, applied.Changes, 3)

	// Act
	result, err := e.Rollback(ctx, applied.EntryID, "bob")
	require.NoError(t, err)

	// Assert: every field is back to its original bytes
	assert.Equal(t, 3, result.RestoredCount)
	assert.Empty(t, result.Errors)
	v, _ := mem.Field("1", models.ContentLocation)
	assert.Equal(t, "old.test is here", v)
	v, _ = mem.Field("1", "meta:link")
	assert.Equal(t, serialized, v)
	v, _ = mem.Field("2", models.ContentLocation)
	assert.Equal(t, "also old.test", v)

	// Assert: rollback entry records pre-rollback values
	entry, err := st.GetEntry(ctx, result.EntryID)
	require.NoError(t, err)
	assert.True(t, entry.IsRollback())
	assert.Equal(t, applied.EntryID, entry.OriginalEntryID)
	assert.Equal(t, "bob", entry.ActorID)
	assert.Equal(t, "Rolled back 3 field(s) from operation #1.", entry.Summary)
	require.Len(t, entry.Changes, 3)
	for i, c := range entry.Changes {
		assert.Equal(t, applied.Changes[i].NewValue, c.OldValue)
		assert.Equal(t, applied.Changes[i].OldValue, c.NewValue)
		assert.Equal(t, applied.Changes[i].FieldLocation, c.FieldLocation)
	}
	assert.Equal(t, 2, entry.Counters.ModifiedRecordCount)
}

func TestRollback_TwiceIsHarmless(t *testing.T) {
	ctx := context.Background()
	mem := source.NewMemory(post("1", "foo"))
	e, st := newTestEngine(t, mem, Options{})

	applied, err := e.Apply(ctx, spec("foo", "bar"), "alice")
	require.NoError(t, err)

	first, err := e.Rollback(ctx, applied.EntryID, "alice")
	require.NoError(t, err)
	second, err := e.Rollback(ctx, applied.EntryID, "alice")
	require.NoError(t, err)

	v, _ := mem.Field("1", models.ContentLocation)
	assert.Equal(t, "foo", v)
	assert.NotEqual(t, first.EntryID, second.EntryID)

	entry, err := st.GetEntry(ctx, second.EntryID)
	require.NoError(t, err)
	assert.Equal(t, "foo", entry.Changes[0].OldValue)
	assert.Equal(t, "foo", entry.Changes[0].NewValue)
}

func TestRollback_OfRollbackRedoes(t *testing.T) {
	ctx := context.Background()
	mem := source.NewMemory(post("1", "foo"))
	e, _ := newTestEngine(t, mem, Options{})

	applied, err := e.Apply(ctx, spec("foo", "bar"), "alice")
	require.NoError(t, err)
	undo, err := e.Rollback(ctx, applied.EntryID, "alice")
	require.NoError(t, err)

	// Act: rolling back the rollback re-applies the change
	_, err = e.Rollback(ctx, undo.EntryID, "alice")
	require.NoError(t, err)

	v, _ := mem.Field("1", models.ContentLocation)
	assert.Equal(t, "bar", v)
}

func TestRollback_MissingRecordContinues(t *testing.T) {
	ctx := context.Background()
	mem := source.NewMemory(post("1", "foo"), post("2", "foo"))
	e, _ := newTestEngine(t, mem, Options{})

	applied, err := e.Apply(ctx, spec("foo", "bar"), "alice")
	require.NoError(t, err)

	// Setup: record 1 no longer exists
	fresh := source.NewMemory(post("2", "bar"))
	e2 := NewEngine(fresh, fresh, e.log, Options{})

	result, err := e2.Rollback(ctx, applied.EntryID, "alice")
	require.NoError(t, err)

	assert.Equal(t, 1, result.RestoredCount)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "1", result.Errors[0].RecordID)
	assert.Contains(t, result.Errors[0].Message, "record not found: 1")

	v, _ := fresh.Field("2", models.ContentLocation)
	assert.Equal(t, "foo", v)
}

func TestRollback_WriteFailureIsIsolated(t *testing.T) {
	ctx := context.Background()
	mem := source.NewMemory(post("1", "foo"), post("2", "foo"))
	e, st := newTestEngine(t, mem, Options{})

	applied, err := e.Apply(ctx, spec("foo", "bar"), "alice")
	require.NoError(t, err)

	mem.WriteErrors["1"] = errors.New("read-only replica")
	result, err := e.Rollback(ctx, applied.EntryID, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, result.RestoredCount)
	require.Len(t, result.Errors, 1)

	entry, err := st.GetEntry(ctx, result.EntryID)
	require.NoError(t, err)
	require.Len(t, entry.Changes, 1)
	assert.Equal(t, "2", entry.Changes[0].RecordID)
}

func TestRollback_NothingRestoredWritesNoEntry(t *testing.T) {
	ctx := context.Background()
	mem := source.NewMemory(post("1", "foo"))
	e, st := newTestEngine(t, mem, Options{})

	applied, err := e.Apply(ctx, spec("foo", "bar"), "alice")
	require.NoError(t, err)

	mem.WriteErrors["1"] = errors.New("read-only replica")
	result, err := e.Rollback(ctx, applied.EntryID, "alice")
	require.NoError(t, err)
	assert.Zero(t, result.RestoredCount)
	assert.Zero(t, result.EntryID)

	n, err := st.CountEntries(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRollback_UnknownEntry(t *testing.T) {
	mem := source.NewMemory()
	e, _ := newTestEngine(t, mem, Options{})

	_, err := e.Rollback(context.Background(), 42, "alice")
	assert.ErrorIs(t, err, ErrNotFound)

	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "42", nf.ID)
}

func TestRollback_EntryWithoutChanges(t *testing.T) {
	ctx := context.Background()
	mem := source.NewMemory()
	e, st := newTestEngine(t, mem, Options{})

	id, err := st.AppendEntry(ctx, &models.OperationLogEntry{Type: models.OperationContent})
	require.NoError(t, err)

	_, err = e.Rollback(ctx, id, "alice")
	assert.ErrorIs(t, err, ErrNoRollbackData)
}

func TestHistory(t *testing.T) {
	ctx := context.Background()
	mem := source.NewMemory(post("1", "a b c"))
	e, _ := newTestEngine(t, mem, Options{})

	for _, term := range []string{"a", "b", "c"} {
		_, err := e.Apply(ctx, spec(term, "x"), "alice")
		require.NoError(t, err)
	}

	entries, err := e.History(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "c", entries[0].Spec.Term)
	assert.Equal(t, "b", entries[1].Spec.Term)
}

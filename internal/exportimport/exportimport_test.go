package exportimport

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franalgaba/alexandria/internal/memory"
	"github.com/franalgaba/alexandria/internal/testutil"
)

func TestExportExcludesRetired(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenDB(t)
	store := memory.NewStore(db, nil, 0)

	active, err := store.Create(ctx, memory.CreateInput{Content: "active memory", ObjectType: memory.TypeConstraint})
	require.NoError(t, err)
	retired, err := store.Create(ctx, memory.CreateInput{Content: "retired memory", ObjectType: memory.TypeConstraint})
	require.NoError(t, err)
	_, err = store.Retire(ctx, retired.ID)
	require.NoError(t, err)

	env, err := Export(ctx, store)
	require.NoError(t, err)

	ids := map[string]bool{}
	for _, o := range env.Objects {
		ids[o.ID] = true
	}
	assert.True(t, ids[active.ID])
	assert.False(t, ids[retired.ID])
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	env := &Envelope{Version: schemaVersion, Objects: []memory.MemoryObject{{ID: "m1", Content: "x", ObjectType: memory.TypeConstraint}}}
	data, err := Marshal(env)
	require.NoError(t, err)

	decoded, err := Unmarshal(data)
	require.NoError(t, err)
	require.Len(t, decoded.Objects, 1)
	assert.Equal(t, "m1", decoded.Objects[0].ID)
}

func TestUnmarshalRejectsFutureVersion(t *testing.T) {
	_, err := Unmarshal([]byte(`{"version": 999, "objects": []}`))
	assert.Error(t, err)
}

func TestImportSkipsExistingContentAndReembedsNew(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenDB(t)
	store := memory.NewStore(db, nil, 0)

	existing, err := store.Create(ctx, memory.CreateInput{Content: "already here", ObjectType: memory.TypeConstraint})
	require.NoError(t, err)

	env := &Envelope{Version: schemaVersion, Objects: []memory.MemoryObject{
		{Content: existing.Content, ObjectType: memory.TypeConstraint, Confidence: memory.ConfidenceMedium},
		{Content: "brand new fact", ObjectType: memory.TypeDecision, Confidence: memory.ConfidenceMedium},
	}}

	res, err := Import(ctx, store, env)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Imported)
	assert.Equal(t, 1, res.Skipped)

	all, err := store.List(ctx, memory.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

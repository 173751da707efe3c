package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/fedimint-http/internal/federation"
	"github.com/nerrad567/fedimint-http/internal/infrastructure/database"
	"github.com/nerrad567/fedimint-http/migrations"
)

func openStore(t *testing.T) *SQLiteStore {
	t.Helper()
	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{Path: database.MemoryPath})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	require.NoError(t, db.Migrate(ctx, migrations.FS))
	return NewSQLiteStore(db.DB)
}

func TestSQLiteStore_SaveAndList(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Save(ctx, Record{ID: idC, InviteCode: "inv-c", JoinedAt: base}))
	require.NoError(t, store.Save(ctx, Record{ID: idA, InviteCode: "inv-a", JoinedAt: base.Add(time.Minute), Primary: true}))

	records, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, federation.ID(idC), records[0].ID)
	assert.Equal(t, "inv-c", records[0].InviteCode)
	assert.True(t, records[0].JoinedAt.Equal(base))
	assert.False(t, records[0].Primary)
	assert.True(t, records[1].Primary)

	err = store.Save(ctx, Record{ID: idA, InviteCode: "again"})
	assert.ErrorIs(t, err, ErrAlreadyRegistered)
}

func TestSQLiteStore_SinglePrimary(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	require.NoError(t, store.Save(ctx, Record{ID: idA, InviteCode: "a", Primary: true}))
	require.NoError(t, store.Save(ctx, Record{ID: idC, InviteCode: "c", Primary: true}))

	records, err := store.List(ctx)
	require.NoError(t, err)
	primaries := 0
	for _, r := range records {
		if r.Primary {
			primaries++
			assert.Equal(t, federation.ID(idC), r.ID)
		}
	}
	assert.Equal(t, 1, primaries)

	require.NoError(t, store.MarkPrimary(ctx, idA))
	records, err = store.List(ctx)
	require.NoError(t, err)
	for _, r := range records {
		assert.Equal(t, r.ID == idA, r.Primary)
	}

	assert.ErrorIs(t, store.MarkPrimary(ctx, idB), ErrNotFound)
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Save(ctx, Record{ID: idA, Primary: true}))
	require.NoError(t, store.Save(ctx, Record{ID: idC, Primary: true}))
	assert.ErrorIs(t, store.Save(ctx, Record{ID: idA}), ErrAlreadyRegistered)

	records, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.False(t, records[0].Primary)
	assert.True(t, records[1].Primary)

	assert.ErrorIs(t, store.MarkPrimary(ctx, idB), ErrNotFound)
}

package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/fedimint-http/internal/federation"
)

// stubBackend maps invite codes to federation ids.
type stubBackend struct {
	federation.Backend
	invites  map[string]federation.ID
	openErrs map[federation.ID]error
	opened   []federation.ID
}

func (b *stubBackend) Join(_ context.Context, invite string) (federation.Client, error) {
	id, ok := b.invites[invite]
	if !ok {
		return nil, federation.ErrInvalidInvite
	}
	return newStub(string(id)), nil
}

func (b *stubBackend) Open(_ context.Context, id federation.ID, _ string) (federation.Client, error) {
	if err := b.openErrs[id]; err != nil {
		return nil, err
	}
	b.opened = append(b.opened, id)
	return newStub(string(id)), nil
}

func newStubBackend() *stubBackend {
	return &stubBackend{
		invites: map[string]federation.ID{
			"inv-a": idA,
			"inv-c": idC,
		},
		openErrs: map[federation.ID]error{},
	}
}

func TestManager_Join(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	reg := New(PolicyPrimary)
	m := NewManager(newStubBackend(), store, reg)

	client, joined, err := m.Join(ctx, "inv-a", true)
	require.NoError(t, err)
	assert.True(t, joined)
	assert.Equal(t, federation.ID(idA), client.ID())

	def, err := reg.Resolve(Default())
	require.NoError(t, err)
	assert.Same(t, client, def)

	// Joining again hands back the registered client.
	again, joined, err := m.Join(ctx, "inv-a", false)
	require.NoError(t, err)
	assert.False(t, joined)
	assert.Same(t, client, again)

	records, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)

	_, _, err = m.Join(ctx, "bogus", false)
	assert.ErrorIs(t, err, federation.ErrInvalidInvite)
}

func TestManager_JoinExistingCanBecomePrimary(t *testing.T) {
	ctx := context.Background()
	reg := New(PolicyPrimary)
	m := NewManager(newStubBackend(), NewMemoryStore(), reg)

	_, _, err := m.Join(ctx, "inv-a", true)
	require.NoError(t, err)
	_, _, err = m.Join(ctx, "inv-c", false)
	require.NoError(t, err)

	_, _, err = m.Join(ctx, "inv-c", true)
	require.NoError(t, err)

	primary, ok := reg.Primary()
	require.True(t, ok)
	assert.Equal(t, federation.ID(idC), primary)
}

func TestManager_Restore(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	backend := newStubBackend()

	first := NewManager(backend, store, New(PolicyPrimary))
	_, _, err := first.Join(ctx, "inv-a", false)
	require.NoError(t, err)
	_, _, err = first.Join(ctx, "inv-c", true)
	require.NoError(t, err)

	// A fresh process reopens both from the store.
	reg := New(PolicyPrimary)
	restarted := NewManager(backend, store, reg)
	n, err := restarted.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []federation.ID{idA, idC}, reg.IDs())

	def, err := reg.Resolve(Default())
	require.NoError(t, err)
	assert.Equal(t, federation.ID(idC), def.ID())
}

func TestManager_RestoreSkipsBrokenFederation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Save(ctx, Record{ID: idA, InviteCode: "inv-a"}))
	require.NoError(t, store.Save(ctx, Record{ID: idC, InviteCode: "inv-c"}))

	backend := newStubBackend()
	backend.openErrs[idA] = errors.New("corrupt client db")

	reg := New(PolicySole)
	n, err := NewManager(backend, store, reg).Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []federation.ID{idC}, reg.IDs())
}

func TestManager_OnChange(t *testing.T) {
	ctx := context.Background()
	m := NewManager(newStubBackend(), NewMemoryStore(), New(PolicyFirst))

	var calls [][]federation.ID
	m.SetOnChange(func(ids []federation.ID) { calls = append(calls, ids) })

	_, _, err := m.Join(ctx, "inv-a", false)
	require.NoError(t, err)
	_, joined, err := m.Join(ctx, "inv-a", false)
	require.NoError(t, err)
	assert.False(t, joined)
	_, _, err = m.Join(ctx, "inv-c", false)
	require.NoError(t, err)

	require.Len(t, calls, 2, "rejoining a known federation is not a change")
	assert.Len(t, calls[0], 1)
	assert.Len(t, calls[1], 2)
}

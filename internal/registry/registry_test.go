package registry

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/fedimint-http/internal/federation"
)

// stubClient satisfies federation.Client; only ID is implemented.
type stubClient struct {
	federation.Client
	id federation.ID
}

func (c *stubClient) ID() federation.ID { return c.id }

func newStub(hexID string) *stubClient {
	return &stubClient{id: federation.ID(hexID)}
}

const (
	idA = "aaaa1111" + "00000000000000000000000000000000000000000000000000000000"
	idB = "aaaa2222" + "00000000000000000000000000000000000000000000000000000000"
	idC = "cccc3333" + "00000000000000000000000000000000000000000000000000000000"
)

func TestResolve_ByIDIsStable(t *testing.T) {
	r := New(PolicySole)
	a := newStub(idA)
	require.NoError(t, r.Insert(a))

	for i := 0; i < 3; i++ {
		got, err := r.Resolve(ByID(idA))
		require.NoError(t, err)
		assert.Same(t, a, got)
	}

	// Later inserts don't rebind an existing id.
	require.NoError(t, r.Insert(newStub(idB)))
	err := r.Insert(newStub(idA))
	assert.ErrorIs(t, err, ErrAlreadyRegistered)

	got, err := r.Resolve(ByID(idA))
	require.NoError(t, err)
	assert.Same(t, a, got)
}

func TestResolve_ByIDNotFound(t *testing.T) {
	r := New(PolicySole)
	_, err := r.Resolve(ByID(idA))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolve_ByPrefix(t *testing.T) {
	r := New(PolicySole)
	a, b, c := newStub(idA), newStub(idB), newStub(idC)
	for _, client := range []*stubClient{a, b, c} {
		require.NoError(t, r.Insert(client))
	}

	tests := []struct {
		prefix  federation.Prefix
		want    federation.Client
		wantErr error
	}{
		{prefix: "aaaa1111", want: a},
		{prefix: "aaaa2", want: b},
		{prefix: "cc", want: c},
		{prefix: "aaaa", wantErr: ErrAmbiguousPrefix},
		{prefix: "ffff", wantErr: ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(string(tt.prefix), func(t *testing.T) {
			got, err := r.Resolve(ByPrefix(tt.prefix))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Same(t, tt.want, got)
		})
	}
}

func TestResolve_DefaultPolicies(t *testing.T) {
	t.Run("empty registry", func(t *testing.T) {
		for _, p := range []Policy{PolicySole, PolicyFirst, PolicyPrimary} {
			_, err := New(p).Resolve(Default())
			assert.ErrorIs(t, err, ErrNotFound, p)
		}
	})

	t.Run("single client", func(t *testing.T) {
		for _, p := range []Policy{PolicySole, PolicyFirst} {
			r := New(p)
			a := newStub(idA)
			require.NoError(t, r.Insert(a))

			got, err := r.Resolve(Default())
			require.NoError(t, err)
			assert.Same(t, a, got)
		}
	})

	t.Run("sole refuses to guess", func(t *testing.T) {
		r := New(PolicySole)
		require.NoError(t, r.Insert(newStub(idA)))
		require.NoError(t, r.Insert(newStub(idC)))

		_, err := r.Resolve(Default())
		assert.ErrorIs(t, err, ErrNoDefault)
	})

	t.Run("first picks earliest", func(t *testing.T) {
		r := New(PolicyFirst)
		c := newStub(idC)
		require.NoError(t, r.Insert(c))
		require.NoError(t, r.Insert(newStub(idA)))

		got, err := r.Resolve(Default())
		require.NoError(t, err)
		assert.Same(t, c, got)
	})

	t.Run("primary", func(t *testing.T) {
		r := New(PolicyPrimary)
		a, c := newStub(idA), newStub(idC)
		require.NoError(t, r.Insert(a))
		require.NoError(t, r.Insert(c))

		_, err := r.Resolve(Default())
		assert.ErrorIs(t, err, ErrNoDefault)

		require.NoError(t, r.SetPrimary(idC))
		got, err := r.Resolve(Default())
		require.NoError(t, err)
		assert.Same(t, c, got)

		primary, ok := r.Primary()
		assert.True(t, ok)
		assert.Equal(t, federation.ID(idC), primary)

		assert.ErrorIs(t, r.SetPrimary(idB), ErrNotFound)
	})
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("first")
	require.NoError(t, err)
	assert.Equal(t, PolicyFirst, p)

	_, err = ParsePolicy("random")
	assert.ErrorIs(t, err, ErrInvalidPolicy)
}

func TestRegistry_ListingsInJoinOrder(t *testing.T) {
	r := New(PolicySole)
	require.NoError(t, r.Insert(newStub(idC)))
	require.NoError(t, r.Insert(newStub(idA)))

	assert.Equal(t, []federation.ID{idC, idA}, r.IDs())
	assert.Equal(t, 2, r.Len())

	clients := r.Clients()
	require.Len(t, clients, 2)
	assert.Equal(t, federation.ID(idC), clients[0].ID())

	// Returned slices are copies.
	ids := r.IDs()
	ids[0] = "mutated"
	assert.Equal(t, federation.ID(idC), r.IDs()[0])
}

func TestRegistry_ConcurrentResolveDuringInsert(t *testing.T) {
	r := New(PolicyFirst)
	require.NoError(t, r.Insert(newStub(idA)))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				c, err := r.Resolve(ByID(idA))
				if err != nil || c.ID() != idA {
					t.Errorf("resolve during insert: %v", err)
					return
				}
				_, _ = r.Resolve(Default())
			}
		}()
	}

	for i := 0; i < 100; i++ {
		id := fmt.Sprintf("%08x%056d", i+1, 0)
		require.NoError(t, r.Insert(newStub(id)))
	}
	wg.Wait()

	assert.Equal(t, 101, r.Len())
}

package handler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/fedimint-http/internal/federation"
	"github.com/nerrad567/fedimint-http/internal/operation"
)

func TestSpendValidateReissue(t *testing.T) {
	env := newTestEnv(t, false, "fed11alpha", "fed11beta")
	ctx := testCtx(t)

	spent, err := env.svc.Spend(ctx, SpendRequest{AmountMsat: 3000, Timeout: 3600})
	require.NoError(t, err)
	assert.NotEmpty(t, spent.Operation)

	valid, err := env.svc.Validate(ctx, NotesRequest{Notes: spent.Notes})
	require.NoError(t, err)
	assert.Equal(t, federation.Amount(3000), valid.AmountMsat)

	reissued, err := env.svc.Reissue(ctx, NotesRequest{Notes: spent.Notes})
	require.NoError(t, err)
	assert.Equal(t, federation.Amount(3000), reissued.AmountMsat)
	assert.Equal(t, []operation.Status{operation.StatusSuccess}, env.recorder.outcomes)
	assert.Equal(t, 3, env.recorder.events)

	_, err = env.svc.Reissue(ctx, NotesRequest{Notes: spent.Notes})
	assertKind(t, err, KindUpstream)
	assert.EqualError(t, err, "notes already spent")
}

func TestSpendValidation(t *testing.T) {
	env := newTestEnv(t, false, "fed11alpha")
	ctx := testCtx(t)

	_, err := env.svc.Spend(ctx, SpendRequest{})
	assertKind(t, err, KindBadRequest)

	_, err = env.svc.Spend(ctx, SpendRequest{AmountMsat: 10_000_000})
	assertKind(t, err, KindBadRequest)
	assert.ErrorIs(t, err, federation.ErrInsufficientBalance)
}

func TestNotesOfUnknownFederation(t *testing.T) {
	env := newTestEnv(t, false, "fed11alpha")
	ctx := testCtx(t)

	foreign, err := env.backend.EncodeNotes(federation.Notes{
		Federation: "ffffffff",
		Items:      []federation.Note{{Amount: 1, Secret: "x"}},
	})
	require.NoError(t, err)

	_, err = env.svc.Validate(ctx, NotesRequest{Notes: foreign})
	assertKind(t, err, KindBadRequest)
	assert.Contains(t, err.Error(), "No client found for federation id prefix")

	_, err = env.svc.Reissue(ctx, NotesRequest{Notes: "garbage"})
	assertKind(t, err, KindBadRequest)
	_, err = env.svc.Validate(ctx, NotesRequest{})
	assertKind(t, err, KindBadRequest)
}

func TestStreamReissue(t *testing.T) {
	env := newTestEnv(t, false, "fed11alpha")
	ctx := testCtx(t)

	_, notes, err := mustClient(t, env, 0).Mint().Spend(ctx, 2048, false, 0)
	require.NoError(t, err)
	op, err := mustClient(t, env, 0).Mint().Reissue(ctx, notes)
	require.NoError(t, err)

	var states []federation.ReissueStateKind
	err = env.svc.StreamReissue(ctx, AwaitRequest{OperationID: op}, func(v any) error {
		states = append(states, v.(federation.ReissueState).State)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []federation.ReissueStateKind{
		federation.ReissueCreated, federation.ReissueIssuing, federation.ReissueDone,
	}, states)

	err = env.svc.StreamReissue(ctx, AwaitRequest{}, func(any) error { return nil })
	assertKind(t, err, KindBadRequest)
}

func TestSplitAndCombine(t *testing.T) {
	env := newTestEnv(t, false, "fed11alpha", "fed11beta")
	ctx := testCtx(t)

	notes := federation.Notes{
		Federation: env.ids[0].Prefix(),
		Items: []federation.Note{
			{Amount: 1024, Secret: "a"},
			{Amount: 1024, Secret: "b"},
			{Amount: 2048, Secret: "c"},
		},
	}
	encoded, err := env.backend.EncodeNotes(notes)
	require.NoError(t, err)

	split, err := env.svc.Split(ctx, NotesRequest{Notes: encoded})
	require.NoError(t, err)
	require.Len(t, split.Notes, 2)
	assert.Len(t, split.Notes[1024], 2)
	assert.Len(t, split.Notes[2048], 1)

	parts := append(append([]string{}, split.Notes[1024]...), split.Notes[2048]...)
	combined, err := env.svc.Combine(ctx, CombineRequest{Notes: parts})
	require.NoError(t, err)
	merged, err := env.backend.DecodeNotes(combined.Notes)
	require.NoError(t, err)
	assert.Equal(t, federation.Amount(4096), merged.Total())
	assert.Equal(t, notes.Federation, merged.Federation)

	other, err := env.backend.EncodeNotes(federation.Notes{
		Federation: env.ids[1].Prefix(),
		Items:      []federation.Note{{Amount: 1, Secret: "z"}},
	})
	require.NoError(t, err)
	_, err = env.svc.Combine(ctx, CombineRequest{Notes: []string{encoded, other}})
	assertKind(t, err, KindBadRequest)
	assert.Contains(t, err.Error(), "E-cash notes strings from different federations")

	_, err = env.svc.Combine(ctx, CombineRequest{})
	assertKind(t, err, KindBadRequest)
	assert.Contains(t, err.Error(), "notes are required")
}

func mustClient(t *testing.T, env *testEnv, i int) federation.Client {
	t.Helper()
	c, err := env.svc.Registry().Get(env.ids[i])
	require.NoError(t, err)
	return c
}

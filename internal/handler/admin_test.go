package handler

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/fedimint-http/internal/federation"
	"github.com/nerrad567/fedimint-http/internal/federation/sim"
)

func TestInfo(t *testing.T) {
	env := newTestEnv(t, false, "fed11alpha", "fed11beta")

	info, err := env.svc.Info(testCtx(t), struct{}{})
	require.NoError(t, err)
	require.Len(t, info, 2)

	alpha := info[env.ids[0]]
	assert.Equal(t, "regtest", alpha.Network)
	assert.Equal(t, federation.Amount(1_000_000), alpha.TotalAmount)
	assert.Contains(t, alpha.Meta["federation_name"], env.ids[0].Prefix().String())
	assert.NotEmpty(t, alpha.Denominations)

	raw, err := json.Marshal(alpha)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"totalAmountMsat":1000000`)
	assert.Contains(t, string(raw), `"denominationsMsat"`)
}

func TestBackup(t *testing.T) {
	env := newTestEnv(t, false, "fed11alpha")
	ctx := testCtx(t)

	_, err := env.svc.Backup(ctx, BackupRequest{Metadata: map[string]string{"device": "laptop"}})
	require.NoError(t, err)

	c, err := env.svc.Registry().Get(env.ids[0])
	require.NoError(t, err)
	assert.Equal(t, []map[string]string{{"device": "laptop"}}, c.(*sim.Client).Backups())
}

func TestConfigAndDiscoverVersion(t *testing.T) {
	env := newTestEnv(t, false, "fed11alpha")
	ctx := testCtx(t)

	configs, err := env.svc.Config(ctx, struct{}{})
	require.NoError(t, err)
	require.Contains(t, configs, env.ids[0])
	assert.Contains(t, string(configs[env.ids[0]]), env.ids[0].String())

	versions, err := env.svc.DiscoverVersion(ctx, struct{}{})
	require.NoError(t, err)
	raw, err := json.Marshal(versions)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"version":{"core"`)
}

func TestModuleAndRestoreNotImplemented(t *testing.T) {
	env := newTestEnv(t, false, "fed11alpha")
	ctx := testCtx(t)

	_, err := env.svc.Module(ctx, ModuleRequest{Args: []string{"status"}})
	assertKind(t, err, KindNotImplemented)
	assert.ErrorIs(t, err, ErrNotImplemented)

	_, err = env.svc.Restore(ctx, json.RawMessage(`{}`))
	assertKind(t, err, KindNotImplemented)
}

func TestListOperations(t *testing.T) {
	env := newTestEnv(t, false, "fed11alpha")
	ctx := testCtx(t)

	_, err := env.svc.Invoice(ctx, InvoiceRequest{AmountMsat: 1000, Description: "a"})
	require.NoError(t, err)
	_, err = env.svc.Spend(ctx, SpendRequest{AmountMsat: 1000, Timeout: 60})
	require.NoError(t, err)

	resp, err := env.svc.ListOperations(ctx, ListOperationsRequest{Limit: 10})
	require.NoError(t, err)
	require.Len(t, resp.Operations, 2)
	for _, op := range resp.Operations {
		assert.NotEmpty(t, op.ID)
		assert.Regexp(t, `^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z$`, op.CreationTime)
	}

	_, err = env.svc.ListOperations(ctx, ListOperationsRequest{Limit: -1})
	assertKind(t, err, KindBadRequest)
}

func TestJoinAndFederationIDs(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := testCtx(t)

	resp, err := env.svc.Join(ctx, JoinRequest{InviteCode: "fed11alpha", UseDefault: true})
	require.NoError(t, err)
	assert.Equal(t, sim.IDForInvite("fed11alpha"), resp.ThisFederationID)
	assert.Equal(t, []federation.ID{resp.ThisFederationID}, resp.FederationIDs)

	// Joining again is idempotent.
	again, err := env.svc.Join(ctx, JoinRequest{InviteCode: "fed11alpha"})
	require.NoError(t, err)
	assert.Equal(t, resp.ThisFederationID, again.ThisFederationID)

	_, err = env.svc.Join(ctx, JoinRequest{InviteCode: "fed11beta"})
	require.NoError(t, err)

	ids, err := env.svc.FederationIDs(ctx, struct{}{})
	require.NoError(t, err)
	assert.Equal(t, []federation.ID{sim.IDForInvite("fed11alpha"), sim.IDForInvite("fed11beta")}, ids.FederationIDs)

	_, err = env.svc.Join(ctx, JoinRequest{})
	assertKind(t, err, KindBadRequest)
	_, err = env.svc.Join(ctx, JoinRequest{InviteCode: "not a code"})
	assertKind(t, err, KindBadRequest)
}

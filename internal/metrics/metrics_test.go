package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/fedimint-http/internal/federation"
	"github.com/nerrad567/fedimint-http/internal/operation"
	"github.com/nerrad567/fedimint-http/internal/rpc"
)

var (
	_ operation.Recorder = (*Metrics)(nil)
	_ rpc.Observer       = (*Metrics)(nil)
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestRecorder(t *testing.T) {
	m := New()
	meta := operation.Meta{Kind: operation.KindLnPay}

	m.RecordEvent(meta, federation.LnPayState{State: federation.LnPayCreated})
	m.RecordEvent(meta, federation.LnPayState{State: federation.LnPayCreated})
	m.RecordEvent(meta, 42)
	m.RecordOutcome(meta, operation.StatusSuccess, "", time.Second)

	text := scrape(t, m)
	assert.Contains(t, text, `fedimint_http_operation_events_total{kind="ln_pay",state="created"} 2`)
	assert.Contains(t, text, `fedimint_http_operation_events_total{kind="ln_pay",state="unknown"} 1`)
	assert.Contains(t, text, `fedimint_http_operation_outcomes_total{kind="ln_pay",status="`+operation.StatusSuccess.String()+`"} 1`)
	assert.Contains(t, text, `fedimint_http_operation_wait_duration_seconds_count{kind="ln_pay"} 1`)
}

func TestObserver(t *testing.T) {
	m := New()

	m.SessionOpened()
	m.SessionOpened()
	m.SessionClosed()
	m.SubscriptionStarted("ln-await-pay")
	m.SubscriptionStarted("wallet-withdraw")
	m.SubscriptionEnded("ln-await-pay")
	m.RequestHandled("", rpc.OutcomeInvalid, 0)
	m.RequestHandled("admin-info", rpc.OutcomeOK, time.Millisecond)

	text := scrape(t, m)
	assert.Contains(t, text, "fedimint_http_rpc_sessions 1")
	assert.Contains(t, text, `fedimint_http_rpc_subscriptions{method="ln-await-pay"} 0`)
	assert.Contains(t, text, `fedimint_http_rpc_subscriptions{method="wallet-withdraw"} 1`)
	assert.Contains(t, text, `fedimint_http_rpc_requests_total{method="invalid",outcome="invalid"} 1`)
	assert.Contains(t, text, `fedimint_http_rpc_requests_total{method="admin-info",outcome="ok"} 1`)
}

func TestHTTPAndRuntime(t *testing.T) {
	m := New()
	m.RecordHTTP("/fedimint/v2/admin/info", http.MethodGet, http.StatusOK, 5*time.Millisecond)
	m.RecordHTTP("", http.MethodGet, http.StatusNotFound, time.Millisecond)
	m.SetFederations(2)

	text := scrape(t, m)
	assert.Contains(t, text, `fedimint_http_http_requests_total{method="GET",route="/fedimint/v2/admin/info",status="200"} 1`)
	assert.Contains(t, text, `fedimint_http_http_requests_total{method="GET",route="unmatched",status="404"} 1`)
	assert.Contains(t, text, "fedimint_http_federations 2")
	assert.Contains(t, text, "go_goroutines")
}

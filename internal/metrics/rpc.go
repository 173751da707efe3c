package metrics

import "time"

// SessionOpened implements rpc.Observer.
func (m *Metrics) SessionOpened() { m.RPCSessions.Inc() }

// SessionClosed implements rpc.Observer.
func (m *Metrics) SessionClosed() { m.RPCSessions.Dec() }

// SubscriptionStarted implements rpc.Observer.
func (m *Metrics) SubscriptionStarted(method string) {
	m.RPCSubscriptions.WithLabelValues(method).Inc()
}

// SubscriptionEnded implements rpc.Observer.
func (m *Metrics) SubscriptionEnded(method string) {
	m.RPCSubscriptions.WithLabelValues(method).Dec()
}

// RequestHandled implements rpc.Observer.
func (m *Metrics) RequestHandled(method, outcome string, elapsed time.Duration) {
	if method == "" {
		method = "invalid"
	}
	m.RPCRequests.WithLabelValues(method, outcome).Inc()
	if elapsed > 0 {
		m.RPCDuration.WithLabelValues(method).Observe(elapsed.Seconds())
	}
}

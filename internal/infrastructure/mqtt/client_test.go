package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/nerrad567/fedimint-http/internal/infrastructure/config"
)

func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "fedimint-http-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
		TopicPrefix: "test",
	}
}

func TestTopics(t *testing.T) {
	topics := NewTopics("/gw/")
	tests := []struct {
		got, want string
	}{
		{topics.Status(), "gw/status"},
		{topics.Federations(), "gw/federations"},
		{topics.OperationEvent("abcd", "ln_pay", "op1"), "gw/operations/abcd/ln_pay/op1/event"},
		{topics.OperationOutcome("abcd", "ln_pay", "op1"), "gw/operations/abcd/ln_pay/op1/outcome"},
		{topics.OperationEvent("", "a/b", "x+#"), "gw/operations/_/a_b/x__/event"},
		{topics.AllOperations(), "gw/operations/#"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("topic = %q, want %q", tt.got, tt.want)
		}
	}

	if got := NewTopics("  ").Prefix(); got != DefaultTopicPrefix {
		t.Errorf("empty prefix = %q, want %q", got, DefaultTopicPrefix)
	}
}

func TestStatusPayload(t *testing.T) {
	var online map[string]string
	if err := json.Unmarshal([]byte(statusPayload("online", "gw-1", "")), &online); err != nil {
		t.Fatalf("online payload is not JSON: %v", err)
	}
	if online["status"] != "online" || online["client_id"] != "gw-1" {
		t.Errorf("online payload = %v", online)
	}
	if _, ok := online["reason"]; ok {
		t.Error("online payload should not carry a reason")
	}

	var offline map[string]string
	if err := json.Unmarshal([]byte(statusPayload("offline", `quote"id`, "graceful_shutdown")), &offline); err != nil {
		t.Fatalf("offline payload is not JSON: %v", err)
	}
	if offline["reason"] != "graceful_shutdown" || offline["client_id"] != `quote"id` {
		t.Errorf("offline payload = %v", offline)
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Username = "user"
	cfg.Auth.Password = "pass"

	opts := buildClientOptions(cfg)
	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
		t.Errorf("servers = %v", opts.Servers)
	}
	if opts.Username != "user" || opts.Password != "pass" {
		t.Error("credentials were not applied")
	}
	if !opts.AutoReconnect {
		t.Error("auto-reconnect should be enabled")
	}

	cfg.Broker.TLS = true
	if got := brokerURL(cfg); got != "ssl://127.0.0.1:1883" {
		t.Errorf("brokerURL() = %q", got)
	}
	if buildClientOptions(cfg).TLSConfig == nil {
		t.Error("TLS config should be set")
	}
}

func TestConfigureLWT(t *testing.T) {
	opts := buildClientOptions(testConfig())
	configureLWT(opts, NewTopics("gw"), "gw-1")

	if !opts.WillEnabled || opts.WillTopic != "gw/status" || !opts.WillRetained {
		t.Errorf("will = enabled:%v topic:%q retained:%v", opts.WillEnabled, opts.WillTopic, opts.WillRetained)
	}
	if !strings.Contains(string(opts.WillPayload), "unexpected_disconnect") {
		t.Errorf("will payload = %s", opts.WillPayload)
	}
}

func TestDisconnectedClient(t *testing.T) {
	c := &Client{topics: NewTopics("")}

	if c.IsConnected() {
		t.Error("zero client should not be connected")
	}
	if err := c.Publish("t", nil, 1, false); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish() error = %v, want ErrNotConnected", err)
	}
	if err := c.PublishAsync("t", nil, 1, false); !errors.Is(err, ErrNotConnected) {
		t.Errorf("PublishAsync() error = %v, want ErrNotConnected", err)
	}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck() error = %v, want context.Canceled", err)
	}
}

func TestPublishValidation(t *testing.T) {
	c := &Client{}
	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		want    error
	}{
		{"empty topic", "", nil, 0, ErrInvalidTopic},
		{"bad qos", "t", nil, 3, ErrInvalidQoS},
		{"too large", "t", make([]byte, maxPayloadSize+1), 0, ErrPublishFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := c.Publish(tt.topic, tt.payload, tt.qos, false); !errors.Is(err, tt.want) {
				t.Errorf("Publish() error = %v, want %v", err, tt.want)
			}
		})
	}
}

//go:build integration

package mqtt

import (
	"strings"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/fedimint-http/internal/infrastructure/config"
)

// Integration tests require a running MQTT broker at 127.0.0.1:1883.
//
// Run with:
//   go test -tags=integration -count=1 -v ./internal/infrastructure/mqtt/...

func integrationConfig(clientID string) config.MQTTConfig {
	cfg := config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: clientID,
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
		TopicPrefix: "fedimint-http-it",
	}
	return cfg
}

func subscriber(t *testing.T, topic string) <-chan []byte {
	t.Helper()
	opts := buildClientOptions(integrationConfig("fedimint-http-it-sub"))
	sub := pahomqtt.NewClient(opts)
	if token := sub.Connect(); !token.WaitTimeout(5*time.Second) || token.Error() != nil {
		t.Skipf("MQTT broker not available: %v", token.Error())
	}
	t.Cleanup(func() { sub.Disconnect(100) })

	received := make(chan []byte, 16)
	token := sub.Subscribe(topic, 1, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		received <- msg.Payload()
	})
	if !token.WaitTimeout(5*time.Second) || token.Error() != nil {
		t.Fatalf("subscribe %s: %v", topic, token.Error())
	}
	return received
}

func TestIntegration_OnlineStatusRetained(t *testing.T) {
	client, err := Connect(integrationConfig("fedimint-http-it-status"))
	if err != nil {
		t.Skipf("MQTT broker not available: %v", err)
	}
	defer client.Close()

	received := subscriber(t, client.Topics().Status())
	select {
	case payload := <-received:
		if !strings.Contains(string(payload), `"online"`) {
			t.Errorf("status payload = %s, want online", payload)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no retained status message")
	}
}

func TestIntegration_PublishRoundtrip(t *testing.T) {
	client, err := Connect(integrationConfig("fedimint-http-it-pub"))
	if err != nil {
		t.Skipf("MQTT broker not available: %v", err)
	}
	defer client.Close()

	topic := client.Topics().OperationEvent("fed", "ln_pay", "op")
	received := subscriber(t, topic)

	if err := client.Publish(topic, []byte(`{"state":"success"}`), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	select {
	case payload := <-received:
		if string(payload) != `{"state":"success"}` {
			t.Errorf("payload = %s", payload)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("message not received")
	}
}

func TestIntegration_Callbacks(t *testing.T) {
	client, err := Connect(integrationConfig("fedimint-http-it-cb"))
	if err != nil {
		t.Skipf("MQTT broker not available: %v", err)
	}

	client.SetOnConnect(func() {})
	client.SetOnDisconnect(func(error) {})

	if !client.IsConnected() {
		t.Fatal("client should be connected")
	}
	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("client should be disconnected after Close")
	}
}

//go:build integration

package mqtt

import (
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/nest-unify/internal/infrastructure/config"
)

// Integration tests against a real broker at 127.0.0.1:1883.
//
// Run with:
//   go test -tags=integration -v ./internal/infrastructure/mqtt/...

func integrationConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "nestunify-integration-test",
			TLS:      false,
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// TestIntegration_MessageRoundtrip publishes a composite-state style
// payload and verifies a second client receives it.
func TestIntegration_MessageRoundtrip(t *testing.T) {
	cfg := integrationConfig()

	cfg.Broker.ClientID = "nestunify-int-pub"
	pubClient, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() publisher error = %v", err)
	}
	defer pubClient.Close()

	cfg.Broker.ClientID = "nestunify-int-sub"
	subClient, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() subscriber error = %v", err)
	}
	defer subClient.Close()

	topic := Topics{}.ClimateState("pair-int-roundtrip")
	expected := `{"available":true,"current_temperature":21.5}`

	received := make(chan string, 1)
	var once sync.Once

	err = subClient.Subscribe(topic, 1, func(_ string, p []byte) error {
		once.Do(func() {
			received <- string(p)
		})
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	if err := pubClient.Publish(topic, []byte(expected), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case msg := <-received:
		if msg != expected {
			t.Errorf("received = %q, want %q", msg, expected)
		}
	case <-time.After(5 * time.Second):
		t.Error("timeout waiting for message")
	}
}

// TestIntegration_WildcardSubscription verifies the entity-bus style
// single-level wildcard delivers state for multiple entities.
func TestIntegration_WildcardSubscription(t *testing.T) {
	cfg := integrationConfig()

	cfg.Broker.ClientID = "nestunify-int-wild-pub"
	pubClient, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() publisher error = %v", err)
	}
	defer pubClient.Close()

	cfg.Broker.ClientID = "nestunify-int-wild-sub"
	subClient, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() subscriber error = %v", err)
	}
	defer subClient.Close()

	var mu sync.Mutex
	seen := make(map[string]bool)

	err = subClient.Subscribe("nestunify/int/entity/+", 1, func(topic string, _ []byte) error {
		mu.Lock()
		seen[topic] = true
		mu.Unlock()
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	entities := []string{
		"nestunify/int/entity/living_room",
		"nestunify/int/entity/living_room_matter",
	}
	for _, topic := range entities {
		if err := pubClient.Publish(topic, []byte(`{}`), 1, false); err != nil {
			t.Fatalf("Publish(%s) error = %v", topic, err)
		}
	}

	deadline := time.After(5 * time.Second)
	for {
		mu.Lock()
		done := len(seen) == len(entities)
		mu.Unlock()
		if done {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("saw %d topics, want %d", len(seen), len(entities))
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// TestIntegration_HandlerPanicRecovered verifies a panicking handler is
// contained and logged rather than crashing the client.
func TestIntegration_HandlerPanicRecovered(t *testing.T) {
	cfg := integrationConfig()

	cfg.Broker.ClientID = "nestunify-int-panic"
	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	logger := &captureLogger{}
	client.SetLogger(logger)

	topic := "nestunify/int/panic"
	err = client.Subscribe(topic, 1, func(string, []byte) error {
		panic("handler exploded")
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	if err := client.Publish(topic, []byte("boom"), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	deadline := time.After(5 * time.Second)
	for {
		if logger.errorCount() > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("panic was not logged")
		case <-time.After(50 * time.Millisecond):
		}
	}

	// The session survives the panic.
	if !client.IsConnected() {
		t.Error("client disconnected after handler panic")
	}
}

type captureLogger struct {
	mu     sync.Mutex
	errors []string
	warns  []string
}

func (l *captureLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}

func (l *captureLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}

func (l *captureLogger) errorCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.errors)
}

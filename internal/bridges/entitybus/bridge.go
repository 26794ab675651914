package entitybus

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/nest-unify/internal/climate"
)

// defaultCommandTimeout bounds the wait for an upstream command result.
const defaultCommandTimeout = 10 * time.Second

// commandQoS is the QoS level for command and state traffic. At-least-once:
// a duplicated state publication is harmless (ingestion is idempotent) and
// a duplicated command result resolves an already-resolved wait.
const commandQoS = byte(1)

// MQTTClient is the interface for MQTT operations. Satisfied by the
// infrastructure client; mocked in tests.
type MQTTClient interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error

	// IsConnected returns true if connected to the broker.
	IsConnected() bool
}

// Logger is the logging interface used by the bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// EntityInfo describes an entity observed on the bus. Used by discovery to
// propose pair candidates.
type EntityInfo struct {
	EntityID     string `json:"entity_id"`
	FriendlyName string `json:"friendly_name,omitempty"`
	Available    bool   `json:"available"`
}

// Bridge connects the aggregation core to the entity bus.
//
// Inbound, it fans entity state publications out to registered watchers.
// Outbound, it implements climate.SourceClient: each command is published
// with a correlation ID and the call blocks until the matching result
// arrives or the timeout fires.
type Bridge struct {
	mqtt           MQTTClient
	topics         Topics
	commandTimeout time.Duration

	// watchers maps entity ID to registered event callbacks.
	watcherMu   sync.RWMutex
	watchers    map[string]map[int]func(climate.SourceEvent)
	nextWatcher int

	// seen tracks every entity observed on the state topic.
	seenMu sync.RWMutex
	seen   map[string]EntityInfo

	// pending maps command ID to the channel its Call waits on.
	pendingMu sync.Mutex
	pending   map[string]chan resultMessage

	logger Logger
}

// Options holds configuration for creating a bridge.
type Options struct {
	// MQTTClient is the broker connection. Required.
	MQTTClient MQTTClient

	// CommandTimeout bounds the wait for a command result. Zero means the
	// default of 10s.
	CommandTimeout time.Duration

	// Logger is optional.
	Logger Logger
}

// New creates an entity bus bridge.
func New(opts Options) (*Bridge, error) {
	if opts.MQTTClient == nil {
		return nil, fmt.Errorf("entitybus: mqtt client is required")
	}

	timeout := opts.CommandTimeout
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}

	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	return &Bridge{
		mqtt:           opts.MQTTClient,
		commandTimeout: timeout,
		watchers:       make(map[string]map[int]func(climate.SourceEvent)),
		seen:           make(map[string]EntityInfo),
		pending:        make(map[string]chan resultMessage),
		logger:         logger,
	}, nil
}

// Start subscribes to the entity state and command result topics. Call once
// after the MQTT connection is established; subscriptions survive broker
// reconnects via the client's re-subscription handling.
func (b *Bridge) Start() error {
	if err := b.mqtt.Subscribe(b.topics.AllStates(), commandQoS, b.handleStateMessage); err != nil {
		return fmt.Errorf("entitybus: subscribing to states: %w", err)
	}
	if err := b.mqtt.Subscribe(b.topics.AllResults(), commandQoS, b.handleResultMessage); err != nil {
		return fmt.Errorf("entitybus: subscribing to results: %w", err)
	}
	b.logger.Info("entity bus bridge started", "command_timeout", b.commandTimeout)
	return nil
}

// Watch registers a callback for state events from one entity. The returned
// function removes the registration; calling it more than once is safe.
func (b *Bridge) Watch(entityID string, fn func(climate.SourceEvent)) func() {
	b.watcherMu.Lock()
	b.nextWatcher++
	id := b.nextWatcher
	if b.watchers[entityID] == nil {
		b.watchers[entityID] = make(map[int]func(climate.SourceEvent))
	}
	b.watchers[entityID][id] = fn
	b.watcherMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.watcherMu.Lock()
			if m := b.watchers[entityID]; m != nil {
				delete(m, id)
				if len(m) == 0 {
					delete(b.watchers, entityID)
				}
			}
			b.watcherMu.Unlock()
		})
	}
}

// SeenEntities returns every entity observed on the bus, sorted by ID.
func (b *Bridge) SeenEntities() []EntityInfo {
	b.seenMu.RLock()
	defer b.seenMu.RUnlock()

	out := make([]EntityInfo, 0, len(b.seen))
	for _, info := range b.seen {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	return out
}

// Call publishes a command for an entity and waits for its result. It
// implements climate.SourceClient.
//
// The wait ends on the matching result, context cancellation or the
// configured timeout, whichever comes first. A late result for an
// abandoned command is dropped.
func (b *Bridge) Call(ctx context.Context, entityID string, cmd climate.Command) error {
	if !b.mqtt.IsConnected() {
		return ErrNotConnected
	}
	if cmd.ID == "" {
		return fmt.Errorf("entitybus: command has no id")
	}

	resultCh := make(chan resultMessage, 1)
	b.pendingMu.Lock()
	b.pending[cmd.ID] = resultCh
	b.pendingMu.Unlock()

	defer func() {
		b.pendingMu.Lock()
		delete(b.pending, cmd.ID)
		b.pendingMu.Unlock()
	}()

	payload, err := json.Marshal(commandMessage{
		ID:          cmd.ID,
		EntityID:    entityID,
		Op:          cmd.Op,
		Temperature: cmd.Temperature,
		Mode:        cmd.Mode,
	})
	if err != nil {
		return fmt.Errorf("entitybus: marshalling command: %w", err)
	}

	if err := b.mqtt.Publish(b.topics.Command(entityID), payload, commandQoS, false); err != nil {
		return fmt.Errorf("entitybus: publishing command: %w", err)
	}

	b.logger.Debug("command published",
		"entity_id", entityID,
		"op", cmd.Op,
		"command_id", cmd.ID,
	)

	timer := time.NewTimer(b.commandTimeout)
	defer timer.Stop()

	select {
	case res := <-resultCh:
		if !res.Success {
			if res.Error != "" {
				return fmt.Errorf("%w: %s", ErrCommandFailed, res.Error)
			}
			return ErrCommandFailed
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("entitybus: waiting for result: %w", ctx.Err())
	case <-timer.C:
		return fmt.Errorf("%w: %s after %v", ErrCommandTimeout, entityID, b.commandTimeout)
	}
}

// handleStateMessage processes one entity state publication.
func (b *Bridge) handleStateMessage(topic string, payload []byte) {
	entityID := entityIDFromTopic(topic)
	if entityID == "" {
		b.logger.Warn("state message on unexpected topic", "topic", topic)
		return
	}

	msg, err := parseStateMessage(entityID, payload)
	if err != nil {
		b.logger.Warn("dropping malformed state message", "topic", topic, "error", err)
		return
	}

	ev := msg.toSourceEvent()

	b.seenMu.Lock()
	info := b.seen[entityID]
	info.EntityID = entityID
	info.Available = ev.Available
	if msg.Attributes.FriendlyName != "" {
		info.FriendlyName = msg.Attributes.FriendlyName
	}
	b.seen[entityID] = info
	b.seenMu.Unlock()

	b.watcherMu.RLock()
	fns := make([]func(climate.SourceEvent), 0, len(b.watchers[entityID]))
	for _, fn := range b.watchers[entityID] {
		fns = append(fns, fn)
	}
	b.watcherMu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// handleResultMessage resolves the pending wait for a command result.
func (b *Bridge) handleResultMessage(topic string, payload []byte) {
	msg, err := parseResultMessage(payload)
	if err != nil {
		b.logger.Warn("dropping malformed result message", "topic", topic, "error", err)
		return
	}

	b.pendingMu.Lock()
	ch, ok := b.pending[msg.ID]
	if ok {
		delete(b.pending, msg.ID)
	}
	b.pendingMu.Unlock()

	if !ok {
		// Result for a command that timed out or was cancelled.
		b.logger.Debug("result for unknown command", "command_id", msg.ID)
		return
	}
	ch <- msg
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/nest-unify/internal/api"
	"github.com/nerrad567/nest-unify/internal/bridges/entitybus"
	"github.com/nerrad567/nest-unify/internal/climate"
	"github.com/nerrad567/nest-unify/internal/infrastructure/influxdb"
	"github.com/nerrad567/nest-unify/internal/infrastructure/logging"
	"github.com/nerrad567/nest-unify/internal/infrastructure/mqtt"
	"github.com/nerrad567/nest-unify/internal/pairing"
)

// stateWriteTimeout bounds history and MQTT writes triggered by a state change.
const stateWriteTimeout = 5 * time.Second

// sinkQueueSize is the per-pair buffer between the aggregator's event
// loop and the sink goroutine. Thermostats change state at human pace,
// so the queue only fills when every sink is stuck at its timeout.
const sinkQueueSize = 16

// pairController owns the live aggregation pipeline for every pair.
//
// For each started pair it wires:
//   - entity bus watchers feeding the aggregator's event queue
//   - the aggregator run loop
//   - a state subscription fanning changes out to WebSocket clients,
//     the history table, retained MQTT topics, and InfluxDB
//
// It implements api.PairRuntime so the REST layer can start and stop
// pairs without knowing any of this wiring.
type pairController struct {
	bus     *entitybus.Bridge
	manager *climate.Manager
	history climate.HistoryRepository
	hub     *api.Hub
	mqtt    *mqtt.Client
	influx  *influxdb.Client // nil when disabled
	logger  *logging.Logger
	topics  mqtt.Topics

	// lastSources tracks the previous per-capability labels per pair so
	// source change events only fire on actual transitions.
	mu          sync.Mutex
	lastSources map[string]map[climate.Capability]string
}

func newPairController(bus *entitybus.Bridge, manager *climate.Manager, history climate.HistoryRepository, mqttClient *mqtt.Client, influx *influxdb.Client, logger *logging.Logger) *pairController {
	return &pairController{
		bus:         bus,
		manager:     manager,
		history:     history,
		mqtt:        mqttClient,
		influx:      influx,
		logger:      logger,
		lastSources: make(map[string]map[climate.Capability]string),
	}
}

// SetHub wires the WebSocket hub once the API server has created it.
func (c *pairController) SetHub(hub *api.Hub) {
	c.hub = hub
}

// StartPair builds and starts the aggregation pipeline for a pair.
//
// The pipeline runs on a background context detached from the caller:
// a pair created over HTTP must outlive the request.
func (c *pairController) StartPair(_ context.Context, pair pairing.Pair) error {
	agg := climate.NewAggregator(pair.Name, pair.MatterEntity, pair.GoogleEntity, c.bus, c.bus)
	agg.SetLogger(c.logger.With("pair_id", pair.ID))

	disp := climate.NewDispatcher(agg)
	disp.SetLogger(c.logger.With("pair_id", pair.ID))

	runCtx, cancel := context.WithCancel(context.Background())

	unwatchMatter := c.bus.Watch(pair.MatterEntity, agg.OnSourceEvent)
	unwatchGoogle := c.bus.Watch(pair.GoogleEntity, agg.OnSourceEvent)

	// Sinks run on their own goroutine, decoupled from the aggregator's
	// event loop by a bounded queue. The subscription callback only
	// enqueues, so a history table at its busy timeout or a wedged MQTT
	// publish never stalls event ingestion for the pair. On overflow the
	// oldest queued state is dropped; sinks only need the latest.
	updates := make(chan climate.CompositeState, sinkQueueSize)
	sub := agg.Subscribe(func(state climate.CompositeState) {
		for {
			select {
			case updates <- state:
				return
			default:
				select {
				case <-updates:
				default:
				}
			}
		}
	})
	go c.sinkLoop(runCtx, pair.ID, updates)

	inst := &climate.Instance{
		ID:         pair.ID,
		Name:       pair.Name,
		Aggregator: agg,
		Dispatcher: disp,
		Stop: func() {
			unwatchMatter()
			unwatchGoogle()
			sub.Cancel()
			cancel()
		},
	}

	if err := c.manager.Register(inst); err != nil {
		inst.Stop()
		return fmt.Errorf("registering pair %s: %w", pair.ID, err)
	}

	go agg.Run(runCtx)

	c.logger.Info("pair pipeline started",
		"pair_id", pair.ID,
		"name", pair.Name,
		"matter_entity", pair.MatterEntity,
		"google_entity", pair.GoogleEntity,
	)
	return nil
}

// StopPair tears down a pair's pipeline.
func (c *pairController) StopPair(pairID string) error {
	if err := c.manager.Deregister(pairID); err != nil {
		return err
	}

	c.mu.Lock()
	delete(c.lastSources, pairID)
	c.mu.Unlock()

	c.logger.Info("pair pipeline stopped", "pair_id", pairID)
	return nil
}

// StartAll starts pipelines for every persisted pair. Called once at boot.
func (c *pairController) StartAll(ctx context.Context, pairs []pairing.Pair) error {
	for _, pair := range pairs {
		if err := c.StartPair(ctx, pair); err != nil {
			return err
		}
	}
	return nil
}

// sinkLoop drains a pair's update queue until its pipeline stops.
func (c *pairController) sinkLoop(ctx context.Context, pairID string, updates <-chan climate.CompositeState) {
	for {
		select {
		case <-ctx.Done():
			return
		case state := <-updates:
			c.onStateChange(pairID, state)
		}
	}
}

// onStateChange fans one composite state change out to every sink. Runs
// on the pair's sink goroutine; each sink is best-effort and bounded by
// its own timeout.
func (c *pairController) onStateChange(pairID string, state climate.CompositeState) {
	sourcesChanged := c.sourcesChanged(pairID, state.Sources)

	// WebSocket broadcast
	if c.hub != nil {
		c.hub.Broadcast(api.ChannelClimateState, map[string]any{
			"pair_id": pairID,
			"state":   state,
		})
		if sourcesChanged {
			c.hub.Broadcast(api.ChannelSourceChange, map[string]any{
				"pair_id": pairID,
				"sources": state.Sources,
			})
		}
	}

	// Local history
	if c.history != nil {
		ctx, cancel := context.WithTimeout(context.Background(), stateWriteTimeout)
		if err := c.history.RecordStateChange(ctx, pairID, state); err != nil {
			c.logger.Warn("state history write failed", "pair_id", pairID, "error", err)
		}
		cancel()
	}

	// Retained MQTT state for late subscribers
	c.publishState(pairID, state)

	// Time-series sample
	if c.influx != nil {
		metric := influxdb.ClimateMetric{
			CurrentTemperature: state.CurrentTemperature,
			TargetTemperature:  state.TargetTemperature,
			Humidity:           state.Humidity,
			HVACMode:           derefString(state.HVACMode),
		}
		if inst, err := c.manager.Get(pairID); err == nil {
			metric.MatterAvailable = inst.Aggregator.SourceAvailable(climate.SourceMatter)
			metric.GoogleAvailable = inst.Aggregator.SourceAvailable(climate.SourceGoogle)
		}
		c.influx.WriteClimateState(pairID, metric)

		// Routing transitions imply an availability flip on at least one
		// source; record both so the series stays queryable as steps.
		if sourcesChanged {
			c.influx.WriteSourceAvailability(pairID, string(climate.SourceMatter), metric.MatterAvailable)
			c.influx.WriteSourceAvailability(pairID, string(climate.SourceGoogle), metric.GoogleAvailable)
		}
	}
}

// publishState publishes the composite state and source labels as retained
// MQTT messages.
func (c *pairController) publishState(pairID string, state climate.CompositeState) {
	if c.mqtt == nil || !c.mqtt.IsConnected() {
		return
	}

	payload, err := json.Marshal(state)
	if err != nil {
		c.logger.Error("failed to marshal composite state", "pair_id", pairID, "error", err)
		return
	}
	if err := c.mqtt.PublishRetained(c.topics.ClimateState(pairID), payload); err != nil {
		c.logger.Warn("failed to publish composite state", "pair_id", pairID, "error", err)
	}

	sources, err := json.Marshal(state.Sources)
	if err != nil {
		return
	}
	if err := c.mqtt.PublishRetained(c.topics.ClimateSources(pairID), sources); err != nil {
		c.logger.Warn("failed to publish source labels", "pair_id", pairID, "error", err)
	}
}

// sourcesChanged reports whether the per-capability labels differ from the
// last observed set, updating the stored copy.
func (c *pairController) sourcesChanged(pairID string, sources map[climate.Capability]string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev, ok := c.lastSources[pairID]
	changed := !ok || len(prev) != len(sources)
	if !changed {
		for capability, label := range sources {
			if prev[capability] != label {
				changed = true
				break
			}
		}
	}

	if changed {
		stored := make(map[climate.Capability]string, len(sources))
		for capability, label := range sources {
			stored[capability] = label
		}
		c.lastSources[pairID] = stored
	}
	return changed
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

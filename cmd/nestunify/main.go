// nestunify - Thermostat State Aggregation & Routing Engine
//
// This is the main entry point for the nestunify service. It merges a local
// Matter thermostat entity and its Google Nest cloud twin into one composite
// climate device: fast local readings where the local source excels, full
// cloud features where only the cloud provides them, and automatic failover
// in both directions.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	_ "github.com/nerrad567/nest-unify/migrations"

	"github.com/nerrad567/nest-unify/internal/api"
	"github.com/nerrad567/nest-unify/internal/audit"
	"github.com/nerrad567/nest-unify/internal/bridges/entitybus"
	"github.com/nerrad567/nest-unify/internal/climate"
	"github.com/nerrad567/nest-unify/internal/infrastructure/config"
	"github.com/nerrad567/nest-unify/internal/infrastructure/database"
	"github.com/nerrad567/nest-unify/internal/infrastructure/influxdb"
	"github.com/nerrad567/nest-unify/internal/infrastructure/logging"
	"github.com/nerrad567/nest-unify/internal/infrastructure/mqtt"
	"github.com/nerrad567/nest-unify/internal/pairing"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// historyPruneInterval is how often expired history rows are removed.
const historyPruneInterval = time.Hour

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting nestunify",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Repositories
	pairRepo := pairing.NewSQLiteRepository(db.DB)
	historyRepo := climate.NewSQLiteHistoryRepository(db.DB)
	auditRepo := audit.NewSQLiteRepository(db.DB)

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// Set up MQTT logging callbacks and the handler-failure logger
	mqttLog := log.Component("mqtt")
	mqttClient.SetLogger(mqttLog)
	mqttClient.SetOnConnect(func() {
		mqttLog.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		mqttLog.Warn("MQTT disconnected", "error", err)
	})

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Component("influxdb").Warn("telemetry write failed", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Entity bus bridge: upstream adapter state in, commands out
	bus, err := entitybus.New(entitybus.Options{
		MQTTClient:     &mqttBusAdapter{client: mqttClient},
		CommandTimeout: cfg.GetCommandTimeout(),
		Logger:         log.Component("entitybus"),
	})
	if err != nil {
		return fmt.Errorf("creating entity bus bridge: %w", err)
	}
	if err := bus.Start(); err != nil {
		return fmt.Errorf("starting entity bus bridge: %w", err)
	}
	log.Info("entity bus bridge started", "command_timeout", cfg.GetCommandTimeout())

	// Aggregation core
	manager := climate.NewManager()
	manager.SetLogger(log)
	defer manager.StopAll()

	controller := newPairController(bus, manager, historyRepo, mqttClient, influxClient, log)

	// WebSocket hub is created here rather than inside the API server so the
	// controller can broadcast before and after the server's lifetime.
	hub := api.NewHub(cfg.WebSocket, log)
	controller.SetHub(hub)

	// Restore persisted pairs
	pairs, err := pairRepo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading pairs: %w", err)
	}
	if err := controller.StartAll(ctx, pairs); err != nil {
		return fmt.Errorf("starting pairs: %w", err)
	}
	log.Info("pairs restored", "count", len(pairs))

	// API server
	server, err := api.New(api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Security:    cfg.Security,
		Logger:      log,
		Manager:     manager,
		Pairs:       pairRepo,
		History:     historyRepo,
		Runtime:     controller,
		Entities:    bus,
		Audit:       auditRepo,
		MQTT:        mqttClient,
		ExternalHub: hub,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "host", cfg.API.Host, "port", cfg.API.Port)

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	// Background loops: WebSocket hub and history pruning
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gCtx)
		return nil
	})
	g.Go(func() error {
		pruneHistoryLoop(gCtx, historyRepo, cfg.GetHistoryRetention(), log)
		return nil
	})

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal; background loops exit with the context.
	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls will run in reverse order:
	// 1. API server
	// 2. Aggregation pipelines
	// 3. InfluxDB (if enabled)
	// 4. MQTT
	// 5. Database

	log.Info("nestunify stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses NESTUNIFY_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("NESTUNIFY_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	// Check database
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	// Check MQTT
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	// Check InfluxDB (if enabled)
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}

// pruneHistoryLoop periodically removes history rows older than the retention
// window. A zero retention disables pruning entirely.
func pruneHistoryLoop(ctx context.Context, history climate.HistoryRepository, retention time.Duration, log *logging.Logger) {
	if retention <= 0 {
		log.Info("history pruning disabled")
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(historyPruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pruneCtx, cancel := context.WithTimeout(ctx, time.Minute)
			removed, err := history.PruneHistory(pruneCtx, retention)
			cancel()
			if err != nil {
				log.Warn("history prune failed", "error", err)
				continue
			}
			if removed > 0 {
				log.Info("history pruned", "rows", removed)
			}
		}
	}
}

// mqttBusAdapter adapts the infrastructure MQTT client to the entity bus
// bridge's MQTTClient interface. The only difference is the Subscribe
// handler signature:
//   - Infrastructure mqtt: func(topic string, payload []byte) error
//   - Entity bus expects:  func(topic string, payload []byte)
type mqttBusAdapter struct {
	client *mqtt.Client
}

// Publish implements entitybus.MQTTClient.
func (a *mqttBusAdapter) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return a.client.Publish(topic, payload, qos, retained)
}

// Subscribe implements entitybus.MQTTClient.
func (a *mqttBusAdapter) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	// Wrap the void handler to return nil error (bus handlers don't return errors)
	return a.client.Subscribe(topic, qos, func(t string, p []byte) error {
		handler(t, p)
		return nil
	})
}

// IsConnected implements entitybus.MQTTClient.
func (a *mqttBusAdapter) IsConnected() bool {
	return a.client.IsConnected()
}

// AirGuard Core - gas telemetry ingestion service.
//
// airguard subscribes to the telemetry topics published by the extractor
// gateways, normalises every message and stores it in the local SQLite
// telemetry store. Readings can optionally be mirrored to InfluxDB, and a
// small ops endpoint exposes health and Prometheus metrics.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/nerrad567/airguard-core/internal/api"
	"github.com/nerrad567/airguard-core/internal/device"
	"github.com/nerrad567/airguard-core/internal/infrastructure/config"
	"github.com/nerrad567/airguard-core/internal/infrastructure/database"
	"github.com/nerrad567/airguard-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/airguard-core/internal/infrastructure/logging"
	"github.com/nerrad567/airguard-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/airguard-core/internal/ingest"
	"github.com/nerrad567/airguard-core/internal/telemetry"
	"github.com/nerrad567/airguard-core/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// configEnvVar overrides defaultConfigPath.
const configEnvVar = "AIRGUARD_CONFIG"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires the service together and blocks until ctx is cancelled.
//
// Shutdown order matters: the ops server goes first, then the subscriber
// stops intake and lets the in-flight transaction commit, and only then
// are the broker, InfluxDB and the database closed (deferred, in reverse
// order of opening).
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting AirGuard Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	loc, err := cfg.Location()
	if err != nil {
		return fmt.Errorf("resolving site timezone: %w", err)
	}

	db, err := database.Open(ctx, database.Config{
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

	if schemaErr := db.EnsureSchema(ctx, migrations.FS); schemaErr != nil {
		return fmt.Errorf("ensuring schema: %w", schemaErr)
	}
	log.Info("database schema ready")

	devices := device.NewSQLiteRepository(db.DB)
	if count, countErr := devices.Count(ctx); countErr == nil {
		log.Info("device registry loaded", "devices", count)
	}

	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	mqttClient.SetLogger(log)
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

	var influxClient *influxdb.Client
	var sinks []ingest.Sink
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		sinks = append(sinks, ingest.NewInfluxSink(influxClient))
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	registry := newRegistry()
	metrics, err := ingest.NewMetrics(registry)
	if err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}

	dispatcher := ingest.NewDispatcher(db.DB, devices, ingest.DispatcherOptions{
		ActuatorName: cfg.Ingest.ActuatorName,
		Sinks:        sinks,
		Logger:       log,
		Metrics:      metrics,
	})

	subscriber, err := ingest.NewSubscriber(ingest.SubscriberOptions{
		Transport:       mqttClient,
		Topics:          cfg.MQTT.Topics,
		QoS:             byte(cfg.MQTT.QoS), //nolint:gosec // validated to 0..2 by config
		Normalizer:      telemetry.NewNormalizer(loc),
		Store:           dispatcher,
		Logger:          log.With("component", "ingest"),
		Metrics:         metrics,
		QueueSize:       cfg.Ingest.QueueSize,
		DispatchTimeout: cfg.GetDispatchTimeout(),
	})
	if err != nil {
		return fmt.Errorf("creating subscriber: %w", err)
	}
	if startErr := subscriber.Start(ctx); startErr != nil {
		return fmt.Errorf("starting subscriber: %w", startErr)
	}
	defer func() {
		log.Info("stopping ingestion")
		subscriber.Stop()
	}()
	log.Info("ingestion started",
		"topics", cfg.MQTT.Topics,
		"qos", cfg.MQTT.QoS,
		"queue_size", cfg.Ingest.QueueSize,
		"timezone", loc.String(),
	)

	if cfg.Ops.Enabled {
		opsServer, opsErr := api.New(api.Deps{
			Config:   cfg.Ops,
			Logger:   log.With("component", "ops"),
			Database: db,
			Devices:  devices,
			Broker:   mqttClient,
			Pipeline: subscriber,
			Gatherer: registry,
			Version:  version,
		})
		if opsErr != nil {
			return fmt.Errorf("creating ops server: %w", opsErr)
		}
		if startErr := opsServer.Start(ctx); startErr != nil {
			return fmt.Errorf("starting ops server: %w", startErr)
		}
		defer func() {
			log.Info("stopping ops server")
			if closeErr := opsServer.Close(); closeErr != nil {
				log.Error("error stopping ops server", "error", closeErr)
			}
		}()
	} else {
		log.Info("ops server disabled")
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses AIRGUARD_CONFIG if set, otherwise the default.
func getConfigPath() string {
	if path := os.Getenv(configEnvVar); path != "" {
		return path
	}
	return defaultConfigPath
}

// newRegistry returns a private Prometheus registry carrying the Go runtime
// and process collectors alongside the ingestion metrics.
func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// healthChecker is implemented by every infrastructure client.
type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

// healthCheck verifies all infrastructure connections are healthy.
// influxClient may be nil when InfluxDB is disabled.
func healthCheck(ctx context.Context, db, mqttClient healthChecker, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}

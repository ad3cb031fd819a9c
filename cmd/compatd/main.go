// compatd serves the device compatibility catalogue.
//
// It loads the catalogue into memory, answers search, filter, facet and
// export requests over HTTP and WebSocket, and optionally listens for
// reload commands on MQTT, records load history in SQLite and writes
// request timings to InfluxDB.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/nerrad567/gray-logic-compat/internal/api"
	"github.com/nerrad567/gray-logic-compat/internal/catalog"
	"github.com/nerrad567/gray-logic-compat/internal/catalogdb"
	"github.com/nerrad567/gray-logic-compat/internal/engine"
	"github.com/nerrad567/gray-logic-compat/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-compat/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-compat/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-compat/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-compat/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-compat/internal/source"
	"github.com/nerrad567/gray-logic-compat/internal/worker"
	"github.com/nerrad567/gray-logic-compat/migrations"
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

// reloadTimeout bounds a reload triggered over MQTT.
const reloadTimeout = 2 * time.Minute

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - args: Command-line arguments without the program name
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, args []string) error {
	flags := pflag.NewFlagSet("compatd", pflag.ContinueOnError)
	configPath := flags.StringP("config", "c", getConfigPath(), "path to the YAML configuration file")
	showVersion := flags.Bool("version", false, "print version information and exit")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *showVersion {
		fmt.Printf("compatd %s (commit %s, built %s)\n", version, commit, date)
		return nil
	}

	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting compatd",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", *configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Catalogue database (optional): load history and sqlite:// sources
	var (
		db      *database.DB
		history *catalogdb.Store
	)
	if cfg.Database.Enabled {
		db, err = openDatabase(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		history = catalogdb.NewStore(db.DB)
		log.Info("database connected", "path", db.Path())
	} else {
		log.Info("database disabled, load history not recorded")
	}

	eng, err := newEngine(cfg, log)
	if err != nil {
		return err
	}

	w := worker.New(eng, worker.Config{
		Source:      cfg.Catalog.Source,
		ExportTitle: cfg.Catalog.ExportTitle,
	})
	w.SetLogger(log.With("component", "worker"))

	if history != nil {
		w.OnLoad(recordLoad(history, log))
	}

	// InfluxDB (optional): request and load timings
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
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		w.OnLoad(writeLoadMetric(influxClient))
		w.OnRequest(writeQueryMetric(influxClient))
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// The worker outlives the API server so in-flight requests can drain.
	workerCtx, stopWorker := context.WithCancel(context.Background())
	go w.Run(workerCtx)
	defer func() {
		log.Info("stopping catalogue worker")
		stopWorker()
		<-w.Done()
	}()
	client := w.Client()

	// MQTT (optional): reload commands in, load events out
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = startMQTT(ctx, cfg.MQTT, w, log)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
	} else {
		log.Info("MQTT disabled")
	}

	apiServer, err := api.New(api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Security: cfg.Security,
		Catalog:  cfg.Catalog,
		Logger:   log.With("component", "api"),
		Worker:   w,
		History:  history,
		DB:       sqlDB(db),
		MQTT:     mqttClient,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	if cfg.Catalog.LoadOnStart && cfg.Catalog.Source != "" {
		res, loadErr := client.Load(ctx, "", nil)
		if loadErr != nil {
			// Serve anyway; clients see not_loaded until a reload succeeds.
			log.Warn("initial catalogue load failed", "source", cfg.Catalog.Source, "error", loadErr)
		} else {
			log.Info("catalogue loaded",
				"source", res.Source,
				"rows", res.Count,
				"devices", res.Devices,
			)
		}
	}

	if err := apiServer.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. MQTT (if enabled)
	// 3. Catalogue worker
	// 4. InfluxDB (if enabled)
	// 5. Database (if enabled)
	return nil
}

// getConfigPath returns the default configuration file path.
// Uses COMPAT_CONFIG environment variable if set.
func getConfigPath() string {
	if path := os.Getenv("COMPAT_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*database.DB, error) {
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Path,
		WALMode:     cfg.WALMode,
		BusyTimeout: cfg.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		db.Close() //nolint:errcheck // Already returning the migration error
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}

// newEngine builds the catalogue engine from the catalog config section.
func newEngine(cfg *config.Config, log *logging.Logger) (*engine.Engine, error) {
	fetcher := source.NewFetcher(source.Config{Timeout: cfg.GetFetchTimeout()})

	eng := engine.New(fetcher)
	eng.SetLogger(log.With("component", "engine"))
	eng.SetDefaultPageSize(cfg.Catalog.DefaultPageSize)
	eng.SetMaxPageSize(cfg.Catalog.MaxPageSize)

	if len(cfg.Catalog.SearchFields) > 0 {
		if err := eng.SetSearchFields(toColumns(cfg.Catalog.SearchFields)); err != nil {
			return nil, fmt.Errorf("catalog.search_fields: %w", err)
		}
	}
	if len(cfg.Catalog.MergeColumns) > 0 {
		policy := engine.SpanPolicy{MergeColumns: toColumns(cfg.Catalog.MergeColumns)}
		if err := eng.SetSpanPolicy(policy); err != nil {
			return nil, fmt.Errorf("catalog.merge_columns: %w", err)
		}
	}
	return eng, nil
}

func toColumns(names []string) []catalog.Column {
	if len(names) == 0 {
		return nil
	}
	cols := make([]catalog.Column, len(names))
	for i, n := range names {
		cols[i] = catalog.Column(n)
	}
	return cols
}

func sqlDB(db *database.DB) *sql.DB {
	if db == nil {
		return nil
	}
	return db.DB
}

// recordLoad returns a load observer that appends to the load history.
func recordLoad(store *catalogdb.Store, log *logging.Logger) func(worker.LoadEvent) {
	return func(ev worker.LoadEvent) {
		rec := &catalogdb.LoadRecord{
			ID:          ev.RequestID,
			Source:      ev.Source,
			RowCount:    ev.Result.Count,
			DeviceCount: ev.Result.Devices,
			UpdateTime:  ev.Result.UpdateTime,
			LoadedAt:    ev.At,
		}
		if ev.Err != nil {
			rec.Error = ev.Err.Error()
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.RecordLoad(ctx, rec); err != nil {
			log.Error("failed to record load", "request_id", ev.RequestID, "error", err)
		}
	}
}

func writeLoadMetric(c *influxdb.Client) func(worker.LoadEvent) {
	return func(ev worker.LoadEvent) {
		kind, _, _ := source.Classify(ev.Source) //nolint:errcheck // Unclassified sources are tagged unknown
		c.WriteLoad(influxdb.LoadMetric{
			SourceKind: string(kind),
			Rows:       ev.Result.Count,
			Devices:    ev.Result.Devices,
			Duration:   ev.Duration,
			OK:         ev.Err == nil,
			At:         ev.At,
		})
	}
}

func writeQueryMetric(c *influxdb.Client) func(worker.RequestEvent) {
	return func(ev worker.RequestEvent) {
		c.WriteQuery(influxdb.QueryMetric{
			Op:       ev.Op,
			Duration: ev.Duration,
			Total:    ev.Total,
			HasQuery: ev.HasQuery,
			Filters:  ev.Filters,
			Failed:   ev.Err != nil,
			At:       time.Now(),
		})
	}
}

// startMQTT connects to the broker, relays load events and subscribes to
// reload commands.
func startMQTT(ctx context.Context, cfg config.MQTTConfig, w *worker.Worker, log *logging.Logger) (*mqtt.Client, error) {
	client, err := mqtt.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	client.SetLogger(log.With("component", "mqtt"))
	client.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Publishing waits for the broker; keep it off the worker goroutine.
	w.OnLoad(func(ev worker.LoadEvent) {
		msg := mqtt.LoadedEvent{
			RequestID:  ev.RequestID,
			Source:     ev.Source,
			OK:         ev.Err == nil,
			Count:      ev.Result.Count,
			Devices:    ev.Result.Devices,
			UpdateTime: ev.Result.UpdateTime,
			DurationMS: ev.Duration.Milliseconds(),
		}
		if ev.Err != nil {
			msg.Error = ev.Err.Error()
		}
		go func() {
			if err := client.PublishLoaded(msg); err != nil && !errors.Is(err, mqtt.ErrNotConnected) {
				log.Warn("failed to publish load event", "error", err)
			}
		}()
	})

	catalogClient := w.Client()
	reload := mqtt.ReloadHandler(func(req mqtt.ReloadRequest) error {
		// paho delivers messages in order on one goroutine; the load must
		// not hold it while the load event is published.
		go func() {
			loadCtx, cancel := context.WithTimeout(ctx, reloadTimeout)
			defer cancel()
			res, err := catalogClient.Load(loadCtx, req.Source, toColumns(req.SearchFields))
			if err != nil {
				log.Warn("MQTT reload failed", "source", req.Source, "error", err)
				return
			}
			log.Info("catalogue reloaded via MQTT", "source", res.Source, "rows", res.Count)
		}()
		return nil
	})

	topic := client.Topics().CommandReload()
	if err := client.Subscribe(topic, byte(cfg.QoS), reload); err != nil {
		client.Close() //nolint:errcheck // Already returning the subscribe error
		return nil, fmt.Errorf("subscribing to %s: %w", topic, err)
	}

	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.Broker.Host, cfg.Broker.Port),
		"client_id", cfg.Broker.ClientID,
		"reload_topic", topic,
	)
	return client, nil
}

// healthCheck verifies the enabled infrastructure connections.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database to check (may be nil if disabled)
//   - mqttClient: MQTT client to check (may be nil if disabled)
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if db != nil {
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	_ "github.com/nerrad567/homiewatch/migrations"

	"github.com/nerrad567/homiewatch/internal/api"
	"github.com/nerrad567/homiewatch/internal/history"
	"github.com/nerrad567/homiewatch/internal/homie"
	"github.com/nerrad567/homiewatch/internal/infrastructure/config"
	"github.com/nerrad567/homiewatch/internal/infrastructure/database"
	"github.com/nerrad567/homiewatch/internal/infrastructure/influxdb"
	"github.com/nerrad567/homiewatch/internal/infrastructure/logging"
	"github.com/nerrad567/homiewatch/internal/infrastructure/mqtt"
	"github.com/nerrad567/homiewatch/internal/metrics"
	"github.com/nerrad567/homiewatch/internal/observer"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the discovery service until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func runServe(ctx context.Context, opts *rootOptions) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	return run(ctx, cfg)
}

// run wires the service together and blocks until ctx is cancelled.
// Deferred closes run in reverse order: API, MQTT, InfluxDB, database.
func run(ctx context.Context, cfg *config.Config) error {
	log := logging.New(cfg.Logging, version)
	log.Info("starting homiewatch",
		"version", version,
		"commit", commit,
		"build_date", date,
		"prefix", cfg.Homie.Prefix,
	)

	tree := homie.NewClient(cfg.Homie.Prefix)
	tree.SetLogger(log)

	promMetrics := metrics.New(tree.Stats)

	hub := api.NewHub(cfg.WebSocket, log)
	go hub.Run(ctx)

	obsDeps := observer.Deps{
		Hub:     hub,
		Metrics: promMetrics,
		Logger:  log,
	}

	// History (optional)
	var err error
	var db *database.DB
	var historyRepo *history.SQLiteRepository
	var historyQueue *history.AsyncRecorder
	if cfg.History.Enabled {
		db, err = openDatabase(ctx, cfg.Database, log)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()

		historyRepo = history.NewSQLiteRepository(db.DB)

		// Inserts run off the discovery lock; the queue drains before the
		// database closes.
		historyQueue = history.NewAsyncRecorder(historyRepo, cfg.History.QueueSize)
		obsDeps.History = historyQueue
		queueDone := make(chan struct{})
		queueCtx, stopQueue := context.WithCancel(context.Background())
		go func() {
			defer close(queueDone)
			historyQueue.Run(queueCtx)
		}()
		defer func() {
			stopQueue()
			<-queueDone
		}()

		retentionDone := make(chan struct{})
		retentionCtx, stopRetention := context.WithCancel(ctx)
		go func() {
			defer close(retentionDone)
			history.RunRetention(retentionCtx, historyRepo, cfg.GetRetention(), cfg.GetPruneInterval(), log)
		}()
		defer func() {
			stopRetention()
			<-retentionDone
		}()
		log.Info("property history enabled", "retention", cfg.GetRetention().String())
	} else {
		log.Info("property history disabled")
	}

	// InfluxDB (optional)
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
		obsDeps.Telemetry = influxClient
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	obs := observer.New(obsDeps)
	tree.SetHandlers(obs.Handlers())
	if historyQueue != nil {
		historyQueue.SetOnError(obs.HistoryError)
	}
	if influxClient != nil {
		influxClient.SetOnError(obs.TelemetryError)
	}

	// MQTT
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
	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	topic := homie.SubscriptionTopic(tree.Prefix())
	if err := mqttClient.Subscribe(topic, mqttClient.QoS(), obs.MessageHandler(tree)); err != nil {
		return fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	log.Info("subscribed to Homie topics", "topic", topic)

	// API (optional)
	if cfg.API.Enabled {
		apiDeps := api.Deps{
			Config:  cfg.API,
			WS:      cfg.WebSocket,
			Logger:  log,
			Tree:    tree,
			MQTT:    mqttClient,
			Metrics: promMetrics.Handler(),
			Hub:     hub,
			QoS:     mqttClient.QoS(),
			Version: version,
		}
		// Optional sinks are only set when present so the interfaces stay nil.
		if historyRepo != nil {
			apiDeps.History = historyRepo
		}
		if db != nil {
			apiDeps.DB = db
		}

		srv, err := api.New(apiDeps)
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		if err := srv.Start(ctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API disabled")
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up", "tree", tree.Stats())

	return nil
}

// openDatabase opens the history database and applies pending migrations.
func openDatabase(ctx context.Context, cfg config.DatabaseConfig, log *logging.Logger) (*database.DB, error) {
	db, err := database.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database ready", "path", db.Path())
	return db, nil
}

// healthCheck verifies the infrastructure connections.
// db and influxClient are nil when their feature is disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if db != nil {
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
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

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/fedimint-http/internal/api"
	"github.com/nerrad567/fedimint-http/internal/auth"
	"github.com/nerrad567/fedimint-http/internal/federation"
	"github.com/nerrad567/fedimint-http/internal/federation/sim"
	"github.com/nerrad567/fedimint-http/internal/handler"
	"github.com/nerrad567/fedimint-http/internal/infrastructure/config"
	"github.com/nerrad567/fedimint-http/internal/infrastructure/database"
	"github.com/nerrad567/fedimint-http/internal/infrastructure/influxdb"
	"github.com/nerrad567/fedimint-http/internal/infrastructure/logging"
	"github.com/nerrad567/fedimint-http/internal/infrastructure/mqtt"
	"github.com/nerrad567/fedimint-http/internal/journal"
	"github.com/nerrad567/fedimint-http/internal/lnurl"
	"github.com/nerrad567/fedimint-http/internal/metrics"
	"github.com/nerrad567/fedimint-http/internal/operation"
	"github.com/nerrad567/fedimint-http/internal/registry"
	"github.com/nerrad567/fedimint-http/internal/rpc"
	"github.com/nerrad567/fedimint-http/internal/telemetry"
	"github.com/nerrad567/fedimint-http/migrations"
)

// lnurlTimeout bounds each request to an LNURL pay endpoint.
const lnurlTimeout = 30 * time.Second

// run is the actual application logic, separated from main for testability.
// It returns nil on clean shutdown.
func run(ctx context.Context, configPath string) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting fedimint-http",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"mode", cfg.Gateway.Mode,
		"level", cfg.Logging.Level,
	)

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

	if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	m := metrics.New()
	health := map[string]api.HealthChecker{"database": db}
	sinks := []telemetry.Sink{journal.New(db.DB)}

	// MQTT (optional)
	if cfg.MQTT.Enabled {
		mqttClient, connErr := mqtt.Connect(cfg.MQTT)
		if connErr != nil {
			return fmt.Errorf("connecting to MQTT: %w", connErr)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetOnConnect(func() { log.Info("MQTT reconnected") })
		mqttClient.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })

		health["mqtt"] = mqttClient
		sinks = append(sinks, telemetry.NewMQTTSink(mqttClient, mqttClient.Topics(), mqttClient.QoS()))
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	// InfluxDB (optional)
	if cfg.InfluxDB.Enabled {
		influxClient, connErr := influxdb.Connect(cfg.InfluxDB)
		if connErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", connErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) { log.Error("InfluxDB write error", "error", err) })

		health["influxdb"] = influxClient
		sinks = append(sinks, telemetry.NewInfluxSink(influxClient))
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	relay := telemetry.New(telemetry.Options{Logger: log}, sinks...)

	backend, err := newBackend(cfg)
	if err != nil {
		return err
	}
	defer backend.Close() //nolint:errcheck // Simulation shutdown cannot fail

	manager, err := startRegistry(ctx, cfg, backend, db, log, func(ids []federation.ID) {
		relay.RecordFederations(ids)
		m.SetFederations(len(ids))
	})
	if err != nil {
		return err
	}

	svc, err := handler.New(handler.Deps{
		Backend:  backend,
		Manager:  manager,
		LNURL:    lnurl.NewClient(&http.Client{Timeout: lnurlTimeout}),
		Recorder: operation.Recorders{m, relay},
		Logger:   log,
	})
	if err != nil {
		return fmt.Errorf("creating service: %w", err)
	}
	table, err := rpc.NewServiceTable(svc)
	if err != nil {
		return fmt.Errorf("building method table: %w", err)
	}

	credential, err := auth.NewCredential(cfg.Security.Password, cfg.Security.PasswordHash)
	if err != nil {
		return fmt.Errorf("loading credential: %w", err)
	}

	srv, err := api.New(api.Deps{
		Config:     cfg.API,
		WS:         cfg.WebSocket,
		Security:   cfg.Security,
		Mode:       cfg.Gateway.Mode,
		Domain:     cfg.Gateway.Domain,
		Logger:     log,
		Table:      table,
		Registry:   manager.Registry(),
		Credential: credential,
		Metrics:    m,
		Journal:    journal.New(db.DB),
		Health:     health,
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return relay.Run(gctx) })
	g.Go(func() error {
		if startErr := srv.Start(gctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		<-gctx.Done()
		return srv.Close()
	})

	log.Info("initialisation complete, waiting for shutdown signal",
		"address", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port),
		"federations", manager.Registry().Len(),
	)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	log.Info("fedimint-http stopped", "telemetry_dropped", relay.Dropped())
	return nil
}

// newBackend builds the federation client implementation named in config.
func newBackend(cfg *config.Config) (*sim.Backend, error) {
	switch cfg.Gateway.Backend {
	case "sim":
		return sim.New(sim.Options{
			StepDelay:      cfg.GetSimStepDelay(),
			InitialBalance: federation.Amount(cfg.Gateway.Sim.InitialBalance),
			DepositAmount:  federation.Amount(cfg.Gateway.Sim.DepositAmountMS),
			AutoSettle:     cfg.Gateway.Sim.AutoSettle,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported federation backend %q", cfg.Gateway.Backend)
	}
}

// startRegistry restores persisted federations and joins the configured
// invite code as primary.
func startRegistry(
	ctx context.Context,
	cfg *config.Config,
	backend federation.Backend,
	db *database.DB,
	log *logging.Logger,
	onChange func(ids []federation.ID),
) (*registry.Manager, error) {
	policy, err := registry.ParsePolicy(cfg.Gateway.DefaultPolicy)
	if err != nil {
		return nil, err
	}
	reg := registry.New(policy)
	reg.SetLogger(log)

	manager := registry.NewManager(backend, registry.NewSQLiteStore(db.DB), reg)
	manager.SetLogger(log)
	manager.SetOnChange(onChange)

	restored, err := manager.Restore(ctx)
	if err != nil {
		return nil, fmt.Errorf("restoring federations: %w", err)
	}
	log.Info("federations restored", "count", restored)

	if invite := cfg.Gateway.InviteCode; invite != "" {
		client, joined, joinErr := manager.Join(ctx, invite, true)
		if joinErr != nil {
			return nil, fmt.Errorf("joining federation: %w", joinErr)
		}
		log.Info("primary federation ready", "federation_id", client.ID(), "joined", joined)
	}

	if id := cfg.Gateway.PrimaryFederation; id != "" {
		if err := reg.SetPrimary(federation.ID(id)); err != nil {
			return nil, fmt.Errorf("selecting primary federation: %w", err)
		}
	}

	return manager, nil
}

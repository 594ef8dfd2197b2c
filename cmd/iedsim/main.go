// IED Simulator
//
// Entry point of the simulated power-industry IED. One process image of
// coils, discrete inputs, holding registers and input registers is served
// over Modbus TCP and inspected through an HTTP/WebSocket API. Register
// changes are optionally published to MQTT and recorded in InfluxDB.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"

	"github.com/nerrad567/iedsim/internal/activity"
	"github.com/nerrad567/iedsim/internal/api"
	mqttbridge "github.com/nerrad567/iedsim/internal/bridges/mqtt"
	"github.com/nerrad567/iedsim/internal/changefeed"
	"github.com/nerrad567/iedsim/internal/infrastructure/config"
	"github.com/nerrad567/iedsim/internal/infrastructure/database"
	"github.com/nerrad567/iedsim/internal/infrastructure/influxdb"
	"github.com/nerrad567/iedsim/internal/infrastructure/logging"
	"github.com/nerrad567/iedsim/internal/infrastructure/mqtt"
	"github.com/nerrad567/iedsim/internal/modbus"
	"github.com/nerrad567/iedsim/internal/register"
	"github.com/nerrad567/iedsim/internal/snapshot"
	"github.com/nerrad567/iedsim/internal/variables"
	"github.com/nerrad567/iedsim/migrations"
)

// Version information, set at build time via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	defaultConfigPath = "configs/config.yaml"
	configEnvVar      = "IEDSIM_CONFIG"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component, blocks until ctx is cancelled and then shuts
// down in reverse order. It returns an error only for failures that make
// the simulator unusable: bad configuration, an invalid image size, or a
// listener that cannot bind.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting IED simulator",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, configPath, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log, err = logging.New(cfg.Logging, version)
	if err != nil {
		return fmt.Errorf("initialising logger: %w", err)
	}
	defer log.Close() //nolint:errcheck // nothing useful to do at exit
	log = log.With("device_id", cfg.Device.ID)
	log.Info("configuration loaded", "path", configPath,
		"level", cfg.Logging.Level, "format", cfg.Logging.Format)

	// Process image
	catalog := loadCatalog(cfg.Catalog.Path, log)
	img, err := register.New(register.Options{
		Size:              cfg.Device.RegisterCount,
		Catalog:           catalog,
		ChangeLogCapacity: cfg.Device.ChangeLogCapacity,
	})
	if err != nil {
		return fmt.Errorf("building process image: %w", err)
	}
	img.SetLogger(log.With("component", "register"))
	log.Info("process image ready",
		"size", img.Size(),
		"coils", catalog.Len(register.Coils),
		"discrete_inputs", catalog.Len(register.DiscreteInputs),
		"holding_registers", catalog.Len(register.HoldingRegisters),
		"input_registers", catalog.Len(register.InputRegisters),
	)

	// Custom variables
	persister, closePersister := openPersister(ctx, cfg, log)
	defer closePersister()
	vars := variables.NewStore(persister)
	vars.SetLogger(log.With("component", "variables"))
	vars.Load(ctx)

	snapshots := snapshot.NewEngine(img, vars, snapshot.ModbusConfig{
		UnitID: cfg.Modbus.UnitID,
		Host:   cfg.Modbus.Host,
		Port:   cfg.Modbus.Port,
	})
	snapshots.SetLogger(log.With("component", "snapshot"))

	tracker := activity.NewTracker(activity.DefaultCapacity)

	// Change feed: WebSocket always, MQTT and InfluxDB when enabled.
	hub := api.NewHub(cfg.WebSocket, log.With("component", "websocket"))
	feed := changefeed.NewDispatcher(changefeed.DefaultBuffer, changefeed.NewBroadcastSink(hub))
	feed.SetLogger(log.With("component", "changefeed"))

	influxClient := connectInfluxDB(cfg.InfluxDB, log)
	if influxClient != nil {
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		feed.AddSink(changefeed.NewInfluxSink(influxClient, catalog, cfg.Device.ID))
	}

	var bridgeMetrics api.MQTTMetricsProvider
	mqttClient, bridge := connectMQTT(ctx, cfg, img, log)
	if mqttClient != nil {
		defer func() {
			bridge.Stop()
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		feed.AddSink(bridge)
		bridgeMetrics = bridge
	}

	feedCtx, stopFeed := context.WithCancel(context.Background())
	feedDone := make(chan struct{})
	go func() {
		defer close(feedDone)
		feed.Run(feedCtx)
	}()
	defer func() {
		stopFeed()
		<-feedDone
	}()
	img.Subscribe(feed.Observe)

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go hub.Run(hubCtx)

	if path := cfg.Snapshot.RestoreOnStart; path != "" {
		if restoreErr := snapshots.LoadFile(ctx, path); restoreErr != nil {
			log.Warn("startup snapshot not applied", "path", path, "error", restoreErr)
		} else {
			log.Info("startup snapshot applied", "path", path)
		}
	}

	// Modbus TCP
	var modbusStats api.ModbusStatsProvider
	if cfg.Modbus.Enabled {
		mbServer, mbErr := modbus.NewServer(cfg.Modbus, img, tracker)
		if mbErr != nil {
			return fmt.Errorf("configuring modbus server: %w", mbErr)
		}
		mbServer.SetLogger(log.With("component", "modbus"))
		if startErr := mbServer.Start(); startErr != nil {
			return fmt.Errorf("starting modbus server: %w", startErr)
		}
		defer func() {
			if stopErr := mbServer.Stop(); stopErr != nil {
				log.Error("error stopping modbus server", "error", stopErr)
			}
		}()
		modbusStats = mbServer.Handler()
	} else {
		log.Info("modbus server disabled")
	}

	// HTTP API
	apiServer, err := api.New(api.Deps{
		Config:        cfg.API,
		WS:            cfg.WebSocket,
		Modbus:        cfg.Modbus,
		Logger:        log.With("component", "api"),
		Image:         img,
		Variables:     vars,
		Snapshots:     snapshots,
		Activity:      tracker,
		Feed:          feed,
		MQTT:          bridgeMetrics,
		ModbusStats:   modbusStats,
		ExternalHub:   hub,
		RecentChanges: cfg.Device.RecentChanges,
		Version:       version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := apiServer.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	log.Info("IED simulator started",
		"modbus", cfg.ModbusAddr(),
		"api", cfg.APIAddr(),
		"variables_backend", cfg.Variables.Backend,
	)

	<-ctx.Done()
	log.Info("shutdown signal received, stopping")
	return nil
}

// loadConfig reads the file named by IEDSIM_CONFIG, which must exist, or
// the default path, where a missing file means built-in defaults.
func loadConfig() (*config.Config, string, error) {
	if path := os.Getenv(configEnvVar); path != "" {
		cfg, err := config.Load(path)
		return cfg, path, err
	}
	cfg, err := config.LoadOrDefault(defaultConfigPath)
	return cfg, defaultConfigPath, err
}

// loadCatalog reads the configured catalog, falling back to the built-in
// map when none is configured or the file is unusable.
func loadCatalog(path string, log *logging.Logger) *register.Catalog {
	if path == "" {
		return register.DefaultCatalog()
	}

	f, err := os.Open(path)
	if err != nil {
		log.Warn("register catalog not readable, using built-in catalog", "path", path, "error", err)
		return register.DefaultCatalog()
	}
	defer f.Close()

	catalog, err := register.LoadCatalog(f)
	if err != nil {
		log.Warn("register catalog invalid, using built-in catalog", "path", path, "error", err)
		return register.DefaultCatalog()
	}
	log.Info("register catalog loaded", "path", path)
	return catalog
}

// openPersister builds the custom variable backend. A backend that cannot
// be reached is logged and replaced by memory-only storage. The returned
// function releases the backend's connection.
func openPersister(ctx context.Context, cfg *config.Config, log *logging.Logger) (variables.Persister, func()) {
	noop := func() {}

	switch cfg.Variables.Backend {
	case config.BackendSQLite:
		db, err := database.Open(database.Config{
			Path:        cfg.Database.Path,
			WALMode:     cfg.Database.WALMode,
			BusyTimeout: cfg.Database.BusyTimeout,
		})
		if err != nil {
			log.Error("opening database failed, custom variables kept in memory", "error", err)
			return nil, noop
		}
		if err := db.Migrate(ctx, migrations.FS()); err != nil {
			log.Error("database migration failed, custom variables kept in memory", "error", err)
			db.Close() //nolint:errcheck // already failing
			return nil, noop
		}
		log.Info("custom variables stored in SQLite", "path", db.Path())
		return variables.NewSQLitePersister(db.DB), func() {
			log.Info("closing database")
			if err := db.Close(); err != nil {
				log.Error("error closing database", "error", err)
			}
		}

	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		p := variables.NewRedisPersister(client, cfg.Redis.Key)
		if err := p.Ping(ctx); err != nil {
			log.Error("redis unreachable, custom variables kept in memory", "addr", cfg.Redis.Addr, "error", err)
			client.Close() //nolint:errcheck // already failing
			return nil, noop
		}
		log.Info("custom variables stored in Redis", "addr", cfg.Redis.Addr)
		return p, func() {
			if err := client.Close(); err != nil {
				log.Error("error closing redis", "error", err)
			}
		}

	default:
		p := variables.NewFilePersister(cfg.Variables.File)
		log.Info("custom variables stored in file", "path", p.Path())
		return p, noop
	}
}

// connectInfluxDB returns nil when InfluxDB is disabled or unreachable.
func connectInfluxDB(cfg config.InfluxDBConfig, log *logging.Logger) *influxdb.Client {
	client, err := influxdb.Connect(cfg)
	if errors.Is(err, influxdb.ErrDisabled) {
		log.Info("InfluxDB disabled")
		return nil
	}
	if err != nil {
		log.Error("InfluxDB unavailable, change telemetry disabled", "url", cfg.URL, "error", err)
		return nil
	}

	client.SetOnError(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	})
	log.Info("InfluxDB connected", "url", cfg.URL, "org", cfg.Org, "bucket", cfg.Bucket)
	return client
}

// connectMQTT connects to the broker and starts the register bridge. Both
// results are nil when MQTT is disabled or the broker is unreachable.
func connectMQTT(ctx context.Context, cfg *config.Config, img *register.Image, log *logging.Logger) (*mqtt.Client, *mqttbridge.Bridge) {
	if !cfg.MQTT.Enabled {
		log.Info("MQTT disabled")
		return nil, nil
	}

	client, err := mqtt.Connect(cfg.MQTT, cfg.Device.ID)
	if err != nil {
		log.Error("MQTT unavailable, change publishing disabled",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"error", err,
		)
		return nil, nil
	}
	client.SetLogger(log.With("component", "mqtt"))
	client.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	bridge, err := mqttbridge.NewBridge(mqttbridge.Options{
		Client: client,
		Image:  img,
		Topics: client.Topics(),
		QoS:    client.QoS(),
		Logger: log.With("component", "mqtt-bridge"),
	})
	if err == nil {
		err = bridge.Start(ctx)
	}
	if err != nil {
		log.Error("MQTT bridge not started", "error", err)
		client.Close() //nolint:errcheck // already failing
		return nil, nil
	}

	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)
	return client, bridge
}

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/iedsim/internal/activity"
	mqttbridge "github.com/nerrad567/iedsim/internal/bridges/mqtt"
	"github.com/nerrad567/iedsim/internal/changefeed"
	"github.com/nerrad567/iedsim/internal/infrastructure/config"
	"github.com/nerrad567/iedsim/internal/infrastructure/logging"
	"github.com/nerrad567/iedsim/internal/modbus"
	"github.com/nerrad567/iedsim/internal/register"
	"github.com/nerrad567/iedsim/internal/snapshot"
	"github.com/nerrad567/iedsim/internal/variables"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// FeedStatsProvider reports change feed counters.
type FeedStatsProvider interface {
	Stats() changefeed.Stats
}

// MQTTMetricsProvider reports MQTT bridge counters.
type MQTTMetricsProvider interface {
	GetMetrics() mqttbridge.Metrics
}

// ModbusStatsProvider reports Modbus request counters.
type ModbusStatsProvider interface {
	Stats() modbus.Stats
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config        config.APIConfig
	WS            config.WebSocketConfig
	Modbus        config.ModbusConfig
	Logger        *logging.Logger
	Image         *register.Image
	Variables     *variables.Store
	Snapshots     *snapshot.Engine
	Activity      *activity.Tracker   // optional
	Feed          FeedStatsProvider   // optional
	MQTT          MQTTMetricsProvider // optional
	ModbusStats   ModbusStatsProvider // optional
	ExternalHub   *Hub                // if set, used instead of a hub of the server's own
	RecentChanges int                 // default window of the change log views
	Version       string
}

// Server is the HTTP inspection API.
type Server struct {
	cfg         config.APIConfig
	wsCfg       config.WebSocketConfig
	modbusCfg   config.ModbusConfig
	logger      *logging.Logger
	image       *register.Image
	vars        *variables.Store
	snapshots   *snapshot.Engine
	activity    *activity.Tracker
	feed        FeedStatsProvider
	mqtt        MQTTMetricsProvider
	modbusStats ModbusStatsProvider
	recent      int
	version     string
	startTime   time.Time
	server      *http.Server
	hub         *Hub
	externalHub bool
	cancel      context.CancelFunc
}

// New creates an API server. It is not listening until Start is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Image == nil {
		return nil, fmt.Errorf("register image is required")
	}
	if deps.Variables == nil {
		return nil, fmt.Errorf("variable store is required")
	}
	if deps.Snapshots == nil {
		return nil, fmt.Errorf("snapshot engine is required")
	}

	recent := deps.RecentChanges
	if recent <= 0 {
		recent = register.DefaultRecentChanges
	}

	s := &Server{
		cfg:         deps.Config,
		wsCfg:       deps.WS,
		modbusCfg:   deps.Modbus,
		logger:      deps.Logger,
		image:       deps.Image,
		vars:        deps.Variables,
		snapshots:   deps.Snapshots,
		activity:    deps.Activity,
		feed:        deps.Feed,
		mqtt:        deps.MQTT,
		modbusStats: deps.ModbusStats,
		recent:      recent,
		version:     deps.Version,
		startTime:   time.Now(),
	}

	if deps.ExternalHub != nil {
		s.hub = deps.ExternalHub
		s.externalHub = true
	} else {
		s.hub = NewHub(deps.WS, deps.Logger)
	}

	return s, nil
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start begins listening for HTTP connections in the background.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if !s.externalHub {
		go s.Hub().Run(srvCtx)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server listening", "address", s.server.Addr)
		if s.activity != nil {
			s.activity.SetRunning(activity.InterfaceAPI, true)
		}
		err := s.server.ListenAndServe()
		if s.activity != nil {
			s.activity.SetRunning(activity.InterfaceAPI, false)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server, waiting up to 10 seconds for
// in-flight requests.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck reports whether the server has been started.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}

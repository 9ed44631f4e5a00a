package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	grpcapi "sensor-proxy/internal/api/grpc"
	httpapi "sensor-proxy/internal/api/http"
	"sensor-proxy/internal/api/websocket"
	"sensor-proxy/internal/application/archive"
	"sensor-proxy/internal/application/dispatch"
	"sensor-proxy/internal/application/inspector"
	"sensor-proxy/internal/application/mirror"
	"sensor-proxy/internal/application/promwatch"
	"sensor-proxy/internal/application/simulator"
	"sensor-proxy/internal/config"
	"sensor-proxy/internal/domain"
	"sensor-proxy/internal/infra"
	"sensor-proxy/internal/infrastructure/repository/memory"
	"sensor-proxy/internal/infrastructure/repository/postgres"
	"sensor-proxy/internal/logging"
	"sensor-proxy/internal/server"
)

const (
	shutdownTimeout     = 30 * time.Second
	archiveWriteTimeout = 5 * time.Second
	dbConnectAttempts   = 5
	dbConnectDelay      = time.Second
	dbSetupTimeout      = 30 * time.Second
)

func provideConfig() (*config.Config, error) { return config.Load() }

func provideLogger(cfg *config.Config) (*logging.Logger, error) {
	return logging.New(cfg.LogLevel)
}

func provideShutdownManager(logger *logging.Logger) *ShutdownManager {
	return NewShutdownManager(shutdownTimeout, logger)
}

func provideHub(logger *logging.Logger) *websocket.Hub {
	return websocket.NewHub(logger.Named("websocket"))
}

func provideMirror(cfg *config.Config, device *server.DeviceServer, logger *logging.Logger) (*mirror.Mirror, error) {
	policy := cfg.Policy

	filter, err := mirror.GlobFilter(policy.Include, policy.Exclude)
	if err != nil {
		return nil, err
	}
	closeAction, err := mirror.ParseCloseAction(policy.CloseAction)
	if err != nil {
		return nil, err
	}

	opts := []mirror.Option{
		mirror.WithRenames(policy.RenameMap()),
		mirror.WithFilter(filter),
		mirror.WithCloseAction(closeAction),
		mirror.WithLogger(logger.Named("mirror")),
	}
	if policy.GUIURLBase != "" {
		rewrite, err := mirror.GUIURLRewriter(policy.GUIURLBase)
		if err != nil {
			return nil, fmt.Errorf("gui url base: %w", err)
		}
		opts = append(opts, mirror.WithRewriteGUIURLs(rewrite))
	}

	return mirror.New(device, policy.Prefix, opts...)
}

// MetricRules converts the configured metric rules.
func MetricRules(rules []config.MetricRule) ([]promwatch.Rule, error) {
	out := make([]promwatch.Rule, 0, len(rules))
	for i, rule := range rules {
		kind, err := promwatch.ParseKind(rule.Kind)
		if err != nil {
			return nil, fmt.Errorf("metric rule %d: %w", i, err)
		}
		out = append(out, promwatch.Rule{
			Pattern:     rule.Pattern,
			Kind:        kind,
			Name:        rule.Name,
			Description: rule.Description,
			Labels:      rule.Labels,
			SensorLabel: rule.SensorLabel,
			Buckets:     rule.Buckets,
		})
	}
	return out, nil
}

func provideWatcher(cfg *config.Config, device *server.DeviceServer, logger *logging.Logger) (*promwatch.Watcher, func(), error) {
	rules, err := MetricRules(cfg.Policy.Metrics.Rules)
	if err != nil {
		return nil, nil, err
	}
	factory, err := promwatch.RuleFactory(rules, cfg.Policy.Metrics.Namespace, prometheus.DefaultRegisterer)
	if err != nil {
		return nil, nil, err
	}

	watcher, err := promwatch.NewWatcher(device.Sensors(),
		promwatch.WithLabels(prometheus.Labels(cfg.Policy.Labels)),
		promwatch.WithFactory(factory),
		promwatch.WithLogger(logger.Named("promwatch")),
	)
	if err != nil {
		return nil, nil, err
	}
	return watcher, watcher.Close, nil
}

func provideRepository(cfg *config.Config, logger *logging.Logger) (domain.ReadingRepository, func(), error) {
	switch cfg.Archive.Driver {
	case config.ArchiveDriverPostgres:
		return providePostgresRepository(cfg.Archive, logger)
	default:
		logger.Info("archive: using in-memory repository", "limit", cfg.Archive.MemoryLimit)
		return memory.New(cfg.Archive.MemoryLimit), func() {}, nil
	}
}

func providePostgresRepository(cfg config.Archive, logger *logging.Logger) (domain.ReadingRepository, func(), error) {
	ctx, cancel := context.WithTimeout(context.Background(), dbSetupTimeout)
	defer cancel()

	db, err := postgres.WaitForDatabase(ctx, cfg.DSN, dbConnectAttempts, dbConnectDelay, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := postgres.ApplyMigrations(ctx, db, logger); err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	repo, err := postgres.New(postgres.Config{
		DB:           db,
		Logger:       logger.Named("postgres"),
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		BufferSize:   cfg.BufferSize,
	})
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	cleanup := func() {
		if err := repo.Close(); err != nil {
			logger.Warn("archive: close repository", logging.AttachError(err)...)
		}
		if err := db.Close(); err != nil {
			logger.Warn("archive: close database", logging.AttachError(err)...)
		}
	}
	return repo, cleanup, nil
}

func provideRecorder(cfg *config.Config, device *server.DeviceServer, logger *logging.Logger) (*archive.Recorder, func()) {
	recorder := archive.NewRecorder(device.OrigSensors(), cfg.Archive.QueueSize, logger.Named("archive"))
	return recorder, recorder.Close
}

func providePool(cfg *config.Config, repo domain.ReadingRepository, logger *logging.Logger) *archive.Pool {
	return archive.NewPool(cfg.Archive.Workers, repo, archiveWriteTimeout, logger.Named("archive"))
}

func provideInspector(device *server.DeviceServer, repo domain.ReadingRepository) *inspector.Service {
	return inspector.New(device, repo)
}

// Readiness reports whether the mirror is synced with the upstream device.
func Readiness(m *mirror.Mirror) func() error {
	return func() error {
		if state := m.State(); state != domain.SyncStateSynced {
			return fmt.Errorf("upstream %s", state)
		}
		return nil
	}
}

func provideHTTPServer(cfg *config.Config, service *inspector.Service, hub *websocket.Hub, m *mirror.Mirror, logger *logging.Logger) *http.Server {
	handler := httpapi.NewServer(service,
		httpapi.WithMetrics(infra.Handler()),
		httpapi.WithWebsocket(hub.ServeWS),
		httpapi.WithReadiness(Readiness(m)),
		httpapi.WithLogger(logger.Named("http")),
	)

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		ErrorLog:          zap.NewStdLog(logger.Named("http").Zap()),
	}
}

func provideGRPCServer(service *inspector.Service, logger *logging.Logger) *grpc.Server {
	return grpcapi.NewServer(service, logger.Named("grpc"))
}

func provideSimulator(cfg *config.Config, logger *logging.Logger) *simulator.Simulator {
	return simulator.New(simulator.Config{
		Interval:        cfg.Simulator.Interval,
		DisconnectEvery: cfg.Simulator.DisconnectEvery,
		Host:            cfg.Simulator.Host,
	}, logger.Named("simulator"))
}

func provideDispatcher(m *mirror.Mirror, watcher *promwatch.Watcher, logger *logging.Logger) *dispatch.Dispatcher {
	logger.Debug("dispatch: metric watcher attached", "observers", watcher.Len())
	return dispatch.New(m, logger.Named("dispatch"))
}

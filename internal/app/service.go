package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"google.golang.org/grpc"

	"sensor-proxy/internal/application/archive"
	"sensor-proxy/internal/config"
	"sensor-proxy/internal/domain"
	"sensor-proxy/internal/logging"
)

const eventBufferSize = 256

// Broadcasting is the part of the websocket hub the application drives.
type Broadcasting interface {
	Run(ctx context.Context)
}

// App owns the running components of the proxy.
type App struct {
	config     *config.Config
	logger     *logging.Logger
	shutdown   *ShutdownManager
	hub        Broadcasting
	source     domain.EventSource
	dispatcher domain.EventDispatcher
	recorder   *archive.Recorder
	pool       *archive.Pool
	httpServer *http.Server
	grpcServer *grpc.Server
}

func New(
	cfg *config.Config,
	logger *logging.Logger,
	shutdown *ShutdownManager,
	hub Broadcasting,
	source domain.EventSource,
	dispatcher domain.EventDispatcher,
	recorder *archive.Recorder,
	pool *archive.Pool,
	httpServer *http.Server,
	grpcServer *grpc.Server,
) *App {
	return &App{
		config:     cfg,
		logger:     logger,
		shutdown:   shutdown,
		hub:        hub,
		source:     source,
		dispatcher: dispatcher,
		recorder:   recorder,
		pool:       pool,
		httpServer: httpServer,
		grpcServer: grpcServer,
	}
}

// Run listens on the configured ports and blocks until the context is cancelled,
// a signal arrives or a server fails.
func (a *App) Run(ctx context.Context) error {
	runCtx, cancel := a.shutdown.WithContext(ctx)
	defer cancel()
	defer a.shutdown.Close()
	defer func() { _ = a.logger.Sync() }()

	httpListener, err := net.Listen("tcp", a.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen http: %w", err)
	}
	grpcListener, err := net.Listen("tcp", fmt.Sprintf(":%d", a.config.GRPCPort))
	if err != nil {
		_ = httpListener.Close()
		return fmt.Errorf("listen grpc: %w", err)
	}

	return a.Serve(runCtx, httpListener, grpcListener)
}

// Serve runs the pipeline and both servers on the given listeners.
func (a *App) Serve(ctx context.Context, httpListener, grpcListener net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.logger.Info("starting sensor proxy",
		"http", httpListener.Addr().String(),
		"grpc", grpcListener.Addr().String(),
		"prefix", a.config.Policy.Prefix,
		"archive", a.config.Archive.Driver,
	)

	poolDone := make(chan struct{})
	go func() {
		defer close(poolDone)
		// the pool outlives ctx so that queued records are still stored
		a.pool.Run(context.Background(), a.recorder.Records())
	}()

	events := make(chan domain.Event, eventBufferSize)
	var pipeline sync.WaitGroup
	pipeline.Add(3)
	go func() {
		defer pipeline.Done()
		a.hub.Run(ctx)
	}()
	go func() {
		defer pipeline.Done()
		a.source.Run(ctx, events)
	}()
	go func() {
		defer pipeline.Done()
		a.dispatcher.Run(ctx, events)
	}()

	serverErrs := make(chan error, 2)
	var servers sync.WaitGroup
	servers.Add(2)
	go func() {
		defer servers.Done()
		if err := a.httpServer.Serve(httpListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrs <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		defer servers.Done()
		if err := a.grpcServer.Serve(grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			serverErrs <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown initiated", "cause", context.Cause(ctx).Error())
	case serveErr = <-serverErrs:
		a.logger.Error("server failed", logging.AttachError(serveErr)...)
	}

	cleanupCtx, cleanupCancel := a.shutdown.CleanupContext()
	defer cleanupCancel()

	if err := a.httpServer.Shutdown(cleanupCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		a.logger.Warn("http server shutdown", logging.AttachError(err)...)
	}
	a.grpcServer.GracefulStop()
	servers.Wait()

	cancel()
	pipeline.Wait()

	a.recorder.Close()
	if err := a.shutdown.WaitFor(cleanupCtx, poolDone); err != nil {
		a.logger.Warn("shutdown deadline exceeded", "timeout", a.shutdown.Timeout().String())
	} else {
		a.logger.Info("shutdown completed")
	}

	return serveErr
}

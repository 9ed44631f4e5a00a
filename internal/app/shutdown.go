package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"sensor-proxy/internal/logging"
)

const defaultShutdownTimeout = 5 * time.Second

// ShutdownManager turns termination signals into context cancellation and bounds
// the time spent draining components afterwards.
type ShutdownManager struct {
	timeout time.Duration
	logger  *logging.Logger
	signals <-chan os.Signal

	stopOnce sync.Once
	stop     func()
}

type ShutdownOption func(*ShutdownManager)

// WithSignalChannel replaces the process signal subscription, mostly for tests.
func WithSignalChannel(ch <-chan os.Signal) ShutdownOption {
	return func(sm *ShutdownManager) { sm.signals = ch }
}

func NewShutdownManager(timeout time.Duration, logger *logging.Logger, opts ...ShutdownOption) *ShutdownManager {
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}

	sm := &ShutdownManager{timeout: timeout, logger: logger}
	for _, opt := range opts {
		opt(sm)
	}

	if sm.signals == nil {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		sm.signals = ch
		sm.stop = func() { signal.Stop(ch) }
	}
	return sm
}

// Timeout is the budget of CleanupContext.
func (sm *ShutdownManager) Timeout() time.Duration { return sm.timeout }

// WithContext derives a context cancelled by the parent or by the first signal.
// The signal is recorded as the context cause.
func (sm *ShutdownManager) WithContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(parent)

	go func() {
		select {
		case <-ctx.Done():
		case sig := <-sm.signals:
			sm.logger.Info("shutdown: signal received", "signal", sig.String())
			cancel(fmt.Errorf("signal %s", sig))
		}
	}()

	return ctx, func() { cancel(context.Canceled) }
}

// CleanupContext is detached from the run context so that draining still has its
// full budget after cancellation.
func (sm *ShutdownManager) CleanupContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), sm.timeout)
}

// WaitFor blocks until done is closed or ctx ends.
func (sm *ShutdownManager) WaitFor(ctx context.Context, done <-chan struct{}) error {
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close releases the signal subscription.
func (sm *ShutdownManager) Close() {
	sm.stopOnce.Do(func() {
		if sm.stop != nil {
			sm.stop()
		}
	})
}

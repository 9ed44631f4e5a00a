package archive

import (
	"context"
	"sync"
	"time"

	"sensor-proxy/internal/domain"
	"sensor-proxy/internal/logging"
)

// Pool consumes archive records and stores them using the writer.
type Pool struct {
	writer       domain.ReadingWriter
	workerCount  int
	writeTimeout time.Duration
	logger       *logging.Logger
}

// NewPool creates a pool with the provided writer and worker count.
func NewPool(workerCount int, writer domain.ReadingWriter, writeTimeout time.Duration, logger *logging.Logger) *Pool {
	if workerCount < 0 {
		workerCount = 0
	}
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	return &Pool{writer: writer, workerCount: workerCount, writeTimeout: writeTimeout, logger: logger}
}

// Run starts the workers and blocks until the context is cancelled or the
// records channel is closed.
func (p *Pool) Run(ctx context.Context, records <-chan domain.SensorRecord) {
	if p.workerCount == 0 {
		p.drainUntilClosed(ctx, records)
		return
	}

	var wg sync.WaitGroup
	wg.Add(p.workerCount)
	for i := 0; i < p.workerCount; i++ {
		go func() {
			defer wg.Done()
			p.workerLoop(ctx, records)
		}()
	}
	wg.Wait()
}

func (p *Pool) workerLoop(ctx context.Context, records <-chan domain.SensorRecord) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Debug("archive: context cancelled", logging.AttachError(ctx.Err())...)
			return
		case record, ok := <-records:
			if !ok {
				return
			}
			p.store(ctx, record)
		}
	}
}

func (p *Pool) store(ctx context.Context, record domain.SensorRecord) {
	writeCtx, cancel := context.WithTimeout(ctx, p.writeTimeout)
	defer cancel()

	if err := p.writer.Add(writeCtx, record); err != nil {
		p.logger.Warn("archive: failed to store reading", logging.AttachError(err, "sensor", record.Sensor)...)
	}
}

func (p *Pool) drainUntilClosed(ctx context.Context, records <-chan domain.SensorRecord) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-records:
			if !ok {
				return
			}
		}
	}
}

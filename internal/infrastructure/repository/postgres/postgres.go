package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lib/pq"

	"sensor-proxy/internal/domain"
	"sensor-proxy/internal/infra"
	"sensor-proxy/internal/logging"
)

const (
	readingsTable = "sensor_readings"

	latestReadingSQL = `
SELECT sensor, value, num_value, status, ts
FROM sensor_readings
WHERE sensor = $1
ORDER BY ts DESC
LIMIT 1`

	readingHistorySQL = `
SELECT sensor, value, num_value, status, ts
FROM sensor_readings
WHERE sensor = $1 AND ts BETWEEN $2 AND $3
ORDER BY ts ASC`
)

// ErrClosed is returned by Add once the repository has been closed.
var ErrClosed = errors.New("postgres repository: repository closed")

// Config contains the settings of the archive writer.
type Config struct {
	DB     *sql.DB
	Logger *logging.Logger
	// BatchSize determines how many readings are flushed together.
	BatchSize int
	// BatchTimeout specifies how long to wait before flushing a partial batch.
	BatchTimeout time.Duration
	// BufferSize controls the capacity of the inbound reading queue.
	BufferSize int
}

// Repository archives readings in Postgres. Writes are queued and copied into the
// table in batches by a background goroutine.
type Repository struct {
	db     *sql.DB
	logger *logging.Logger

	batchSize    int
	batchTimeout time.Duration
	buffer       chan domain.SensorRecord
	stopCh       chan struct{}
	wg           sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func New(cfg Config) (*Repository, error) {
	if cfg.DB == nil {
		return nil, errors.New("postgres repository: database handle is required")
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 1
	}

	bufferSize := cfg.BufferSize
	if bufferSize <= 0 {
		bufferSize = batchSize
	}

	batchTimeout := cfg.BatchTimeout
	if batchTimeout < 0 {
		batchTimeout = 0
	}

	repo := &Repository{
		db:           cfg.DB,
		logger:       cfg.Logger,
		batchSize:    batchSize,
		batchTimeout: batchTimeout,
		buffer:       make(chan domain.SensorRecord, bufferSize),
		stopCh:       make(chan struct{}),
	}

	repo.wg.Add(1)
	go repo.run()

	return repo, nil
}

// Close flushes queued readings and stops the writer. The database handle stays
// open.
func (r *Repository) Close() error {
	r.mu.Lock()
	alreadyClosed := r.closed
	if !r.closed {
		r.closed = true
		close(r.stopCh)
	}
	r.mu.Unlock()

	if !alreadyClosed {
		r.wg.Wait()
	}
	return nil
}

// Add queues a reading for the next batch.
func (r *Repository) Add(ctx context.Context, record domain.SensorRecord) error {
	if record.Sensor == "" {
		infra.IncArchiveWriteErrors()
		return errors.New("postgres repository: sensor name is required")
	}

	r.mu.RLock()
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		return ErrClosed
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-r.stopCh:
		return ErrClosed
	case r.buffer <- record:
		return nil
	}
}

func (r *Repository) run() {
	defer r.wg.Done()

	batch := make([]domain.SensorRecord, 0, r.batchSize)
	var timer *time.Timer

	stopTimer := func() {
		if timer == nil {
			return
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer = nil
	}

	flush := func() {
		if len(batch) == 0 {
			return
		}
		r.processBatch(batch)
		batch = batch[:0]
		stopTimer()
	}

	appendToBatch := func(record domain.SensorRecord) {
		batch = append(batch, record)
		if len(batch) == 1 && r.batchTimeout > 0 {
			timer = time.NewTimer(r.batchTimeout)
		}
		if len(batch) >= r.batchSize {
			flush()
		}
	}

	for {
		var timeout <-chan time.Time
		if timer != nil {
			timeout = timer.C
		}

		select {
		case <-r.stopCh:
			for {
				select {
				case record := <-r.buffer:
					appendToBatch(record)
				default:
					flush()
					return
				}
			}
		case record := <-r.buffer:
			appendToBatch(record)
		case <-timeout:
			timer = nil
			flush()
		}
	}
}

func (r *Repository) processBatch(batch []domain.SensorRecord) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := r.copyBatch(ctx, batch); err != nil {
		for range batch {
			infra.IncArchiveWriteErrors()
		}
		r.logger.Error("postgres repository: batch write failed", logging.AttachError(err, "size", len(batch))...)
		return
	}

	infra.RecordArchiveFlush(time.Since(start), len(batch))
}

func (r *Repository) copyBatch(ctx context.Context, batch []domain.SensorRecord) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(readingsTable, "sensor", "value", "num_value", "status", "ts"))
	if err != nil {
		return fmt.Errorf("prepare copy: %w", err)
	}
	defer stmt.Close()

	for _, record := range batch {
		numeric := sql.NullFloat64{}
		if record.Numeric != nil {
			numeric = sql.NullFloat64{Float64: *record.Numeric, Valid: true}
		}
		if _, err = stmt.ExecContext(ctx, record.Sensor, record.Value, numeric, int64(record.Status), record.Timestamp.UTC()); err != nil {
			return fmt.Errorf("copy reading %q: %w", record.Sensor, err)
		}
	}

	if _, err = stmt.ExecContext(ctx); err != nil {
		return fmt.Errorf("finish copy: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Latest returns the newest archived reading of the sensor.
func (r *Repository) Latest(ctx context.Context, sensor string) (domain.SensorRecord, error) {
	record, err := scanRecord(r.db.QueryRowContext(ctx, latestReadingSQL, sensor))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.SensorRecord{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.SensorRecord{}, fmt.Errorf("postgres repository: latest reading: %w", err)
	}
	return record, nil
}

// History returns the readings of the sensor within [from, to] ordered by timestamp.
func (r *Repository) History(ctx context.Context, sensor string, from, to time.Time) ([]domain.SensorRecord, error) {
	if from.After(to) {
		return nil, domain.ErrNotFound
	}

	rows, err := r.db.QueryContext(ctx, readingHistorySQL, sensor, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("postgres repository: reading history: %w", err)
	}
	defer rows.Close()

	var records []domain.SensorRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres repository: reading history scan: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres repository: reading history: %w", err)
	}

	if len(records) == 0 {
		return nil, domain.ErrNotFound
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (domain.SensorRecord, error) {
	var (
		record  domain.SensorRecord
		numeric sql.NullFloat64
		status  int64
	)
	if err := row.Scan(&record.Sensor, &record.Value, &numeric, &status, &record.Timestamp); err != nil {
		return domain.SensorRecord{}, err
	}
	if numeric.Valid {
		value := numeric.Float64
		record.Numeric = &value
	}
	record.Status = domain.Status(status)
	record.Timestamp = record.Timestamp.UTC()
	return record, nil
}

var _ domain.ReadingRepository = (*Repository)(nil)

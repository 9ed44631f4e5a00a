package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"sensor-proxy/internal/domain"
)

// Repository stores archived readings in memory and satisfies domain.ReadingRepository.
// When a limit is set, only the most recent readings per sensor are kept.
type Repository struct {
	mu      sync.RWMutex
	limit   int
	records map[string][]domain.SensorRecord
}

// New creates an empty repository keeping at most limit readings per sensor; a
// non-positive limit keeps everything.
func New(limit int) *Repository {
	return &Repository{limit: limit, records: make(map[string][]domain.SensorRecord)}
}

// Seed replaces the internal storage with the provided sample data.
func (r *Repository) Seed(records []domain.SensorRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records = make(map[string][]domain.SensorRecord)
	for _, record := range records {
		r.appendLocked(record)
	}
}

// Add stores a reading.
func (r *Repository) Add(_ context.Context, record domain.SensorRecord) error {
	if record.Sensor == "" {
		return errors.New("memory repository: sensor name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.appendLocked(record)
	return nil
}

func (r *Repository) appendLocked(record domain.SensorRecord) {
	history := append(r.records[record.Sensor], record)
	if r.limit > 0 && len(history) > r.limit {
		history = append([]domain.SensorRecord(nil), history[len(history)-r.limit:]...)
	}
	r.records[record.Sensor] = history
}

// Latest returns the reading with the newest timestamp for the sensor.
func (r *Repository) Latest(_ context.Context, sensor string) (domain.SensorRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	history := r.records[sensor]
	if len(history) == 0 {
		return domain.SensorRecord{}, domain.ErrNotFound
	}

	latest := history[0]
	for _, record := range history[1:] {
		if !record.Timestamp.Before(latest.Timestamp) {
			latest = record
		}
	}
	return latest, nil
}

// History returns the readings of the sensor within [from, to] ordered by timestamp.
func (r *Repository) History(_ context.Context, sensor string, from, to time.Time) ([]domain.SensorRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if from.After(to) {
		return nil, domain.ErrNotFound
	}

	filtered := make([]domain.SensorRecord, 0, len(r.records[sensor]))
	for _, record := range r.records[sensor] {
		if record.Timestamp.Before(from) || record.Timestamp.After(to) {
			continue
		}
		filtered = append(filtered, record)
	}

	if len(filtered) == 0 {
		return nil, domain.ErrNotFound
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Timestamp.Before(filtered[j].Timestamp)
	})
	return filtered, nil
}

// Len reports how many readings are held for the sensor.
func (r *Repository) Len(sensor string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records[sensor])
}

var _ domain.ReadingRepository = (*Repository)(nil)

package inspector

import (
	"context"
	"errors"
	"sort"
	"time"

	"sensor-proxy/internal/domain"
)

// ErrInvalidRange is returned when a history query ends before it starts.
var ErrInvalidRange = errors.New("invalid time range")

// Registry exposes the registries of the device server.
type Registry interface {
	Sensors() *domain.SensorSet
	OrigSensors() *domain.SensorSet
}

// Service answers read-only queries about mirrored sensors and their archive.
type Service struct {
	registry Registry
	readings domain.ReadingReader
}

// New creates a new inspector. readings may be nil when archiving is disabled.
func New(registry Registry, readings domain.ReadingReader) *Service {
	return &Service{registry: registry, readings: readings}
}

// ListSensors returns the visible sensors ordered by name.
func (s *Service) ListSensors(_ context.Context) []domain.SensorSnapshot {
	return snapshots(s.registry.Sensors())
}

// GetSensor returns one visible sensor.
func (s *Service) GetSensor(_ context.Context, name string) (domain.SensorSnapshot, error) {
	return lookup(s.registry.Sensors(), name)
}

// ListOrigSensors returns the sensors holding values before rewriting.
func (s *Service) ListOrigSensors(_ context.Context) []domain.SensorSnapshot {
	return snapshots(s.registry.OrigSensors())
}

func (s *Service) GetOrigSensor(_ context.Context, name string) (domain.SensorSnapshot, error) {
	return lookup(s.registry.OrigSensors(), name)
}

// History returns archived readings of the sensor within [from, to].
func (s *Service) History(ctx context.Context, name string, from, to time.Time) ([]domain.SensorRecord, error) {
	if from.After(to) {
		return nil, ErrInvalidRange
	}
	if s.readings == nil {
		return nil, domain.ErrNotFound
	}
	return s.readings.History(ctx, name, from, to)
}

func snapshots(sensors *domain.SensorSet) []domain.SensorSnapshot {
	values := sensors.Values()
	out := make([]domain.SensorSnapshot, 0, len(values))
	for _, sensor := range values {
		out = append(out, Snapshot(sensor))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func lookup(sensors *domain.SensorSet, name string) (domain.SensorSnapshot, error) {
	sensor, ok := sensors.Get(name)
	if !ok {
		return domain.SensorSnapshot{}, domain.ErrSensorNotFound
	}
	return Snapshot(sensor), nil
}

// Snapshot captures the current state of a sensor.
func Snapshot(sensor *domain.Sensor) domain.SensorSnapshot {
	reading := sensor.Reading()
	return domain.SensorSnapshot{
		Name:        sensor.Name(),
		Description: sensor.Description(),
		Units:       sensor.Units(),
		Type:        sensor.Type().Name(),
		Value:       string(sensor.Type().Encode(reading.Value)),
		Status:      reading.Status,
		Timestamp:   reading.Timestamp,
	}
}

var _ domain.SensorInspector = (*Service)(nil)

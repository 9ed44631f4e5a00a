package domain

import (
	"context"
	"time"
)

// SensorWatcher receives the upstream sensor lifecycle. Calls are delivered serially.
type SensorWatcher interface {
	// Filter decides once per added sensor whether it is mirrored at all.
	Filter(def SensorDefinition) bool
	BatchStart()
	BatchStop()
	SensorAdded(def SensorDefinition)
	SensorRemoved(name string)
	SensorUpdated(name string, value []byte, status Status, timestamp time.Time)
	StateUpdated(state SyncState)
}

// EventSource produces upstream events until the context is cancelled.
type EventSource interface {
	Run(ctx context.Context, out chan<- Event)
}

// EventDispatcher applies events to a watcher.
type EventDispatcher interface {
	Run(ctx context.Context, events <-chan Event)
}

// SensorRecord is one archived reading of a sensor.
type SensorRecord struct {
	Sensor    string
	Value     string
	Numeric   *float64
	Status    Status
	Timestamp time.Time
}

// ReadingWriter persists readings produced by the archive recorder.
type ReadingWriter interface {
	Add(ctx context.Context, record SensorRecord) error
}

// ReadingReader exposes the queries used by the inspector.
type ReadingReader interface {
	Latest(ctx context.Context, sensor string) (SensorRecord, error)
	History(ctx context.Context, sensor string, from, to time.Time) ([]SensorRecord, error)
}

// ReadingRepository aggregates the write and read capabilities of an archive.
type ReadingRepository interface {
	ReadingWriter
	ReadingReader
}

// SensorSnapshot is a read-only view of a sensor for transport layers.
type SensorSnapshot struct {
	Name        string
	Description string
	Units       string
	Type        string
	Value       string
	Status      Status
	Timestamp   time.Time
}

// SensorInspector describes the behaviour exposed to transport layers.
type SensorInspector interface {
	ListSensors(ctx context.Context) []SensorSnapshot
	GetSensor(ctx context.Context, name string) (SensorSnapshot, error)
	ListOrigSensors(ctx context.Context) []SensorSnapshot
	GetOrigSensor(ctx context.Context, name string) (SensorSnapshot, error)
	History(ctx context.Context, name string, from, to time.Time) ([]SensorRecord, error)
}

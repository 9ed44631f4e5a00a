package archive

import (
	"sync"

	"sensor-proxy/internal/domain"
	"sensor-proxy/internal/infra"
	"sensor-proxy/internal/logging"
)

// Recorder turns every reading of a registry into a SensorRecord for the archive.
// Records are queued without blocking the sensor; when the queue is full the
// record is dropped.
type Recorder struct {
	sensors *domain.SensorSet
	logger  *logging.Logger

	mu           sync.Mutex
	closed       bool
	records      chan domain.SensorRecord
	watched      map[string]*domain.Sensor
	addHandle    domain.CallbackHandle
	removeHandle domain.CallbackHandle
}

// NewRecorder attaches to the sensors in the registry and follows its additions and
// removals. The current reading of each sensor is recorded on attach.
func NewRecorder(sensors *domain.SensorSet, bufferSize int, logger *logging.Logger) *Recorder {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	r := &Recorder{
		sensors: sensors,
		logger:  logger,
		records: make(chan domain.SensorRecord, bufferSize),
		watched: make(map[string]*domain.Sensor),
	}

	for _, sensor := range sensors.Values() {
		r.added(sensor)
	}
	r.addHandle = sensors.AddAddCallback(r.added)
	r.removeHandle = sensors.AddRemoveCallback(r.removed)
	return r
}

// Records is closed by Close.
func (r *Recorder) Records() <-chan domain.SensorRecord {
	return r.records
}

func (r *Recorder) added(sensor *domain.Sensor) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.watched[sensor.Name()] = sensor
	r.mu.Unlock()

	sensor.Attach(r)
	r.SensorUpdated(sensor, sensor.Reading())
}

func (r *Recorder) removed(sensor *domain.Sensor) {
	r.mu.Lock()
	if current, ok := r.watched[sensor.Name()]; ok && current == sensor {
		delete(r.watched, sensor.Name())
	}
	r.mu.Unlock()

	sensor.Detach(r)
}

// SensorUpdated queues one record for the reading.
func (r *Recorder) SensorUpdated(sensor *domain.Sensor, reading domain.Reading) {
	record := NewRecord(sensor, reading)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}

	select {
	case r.records <- record:
	default:
		infra.IncArchiveWriteErrors()
		r.logger.Warn("archive: queue full, dropping reading", "sensor", record.Sensor)
	}
}

// Close detaches from every sensor and closes the record channel. It is safe to
// call more than once.
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	watched := r.watched
	r.watched = nil
	close(r.records)
	r.mu.Unlock()

	_ = r.sensors.RemoveAddCallback(r.addHandle)
	_ = r.sensors.RemoveRemoveCallback(r.removeHandle)
	for _, sensor := range watched {
		sensor.Detach(r)
	}
}

// NewRecord captures a reading in archive form. Readings without a numeric form
// keep a nil Numeric.
func NewRecord(sensor *domain.Sensor, reading domain.Reading) domain.SensorRecord {
	record := domain.SensorRecord{
		Sensor:    sensor.Name(),
		Value:     string(sensor.Type().Encode(reading.Value)),
		Status:    reading.Status,
		Timestamp: reading.Timestamp,
	}
	if numeric, err := domain.Numeric(sensor.Type(), reading.Value); err == nil {
		record.Numeric = &numeric
	}
	return record
}

var _ domain.SensorObserver = (*Recorder)(nil)

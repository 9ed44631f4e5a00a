package domain

import (
	"sync"
	"time"
)

// SensorObserver is notified after every change of a sensor's reading.
// Implementations must be comparable (typically a pointer) so they can be detached.
type SensorObserver interface {
	SensorUpdated(sensor *Sensor, reading Reading)
}

// Sensor is a named, typed monitoring point with a current reading.
type Sensor struct {
	stype       SensorType
	name        string
	description string
	units       string

	mu        sync.Mutex
	reading   Reading
	observers []SensorObserver
}

// NewSensor creates a sensor holding its type's default value with unknown status.
func NewSensor(stype SensorType, name, description, units string) *Sensor {
	return NewSensorWithReading(stype, name, description, units, Reading{
		Timestamp: time.Now().UTC(),
		Status:    StatusUnknown,
		Value:     stype.Default(),
	})
}

// NewSensorWithReading creates a sensor with an explicit initial reading.
func NewSensorWithReading(stype SensorType, name, description, units string, reading Reading) *Sensor {
	return &Sensor{
		stype:       stype,
		name:        name,
		description: description,
		units:       units,
		reading:     reading,
	}
}

func (s *Sensor) Name() string        { return s.name }
func (s *Sensor) Description() string { return s.description }
func (s *Sensor) Units() string       { return s.units }
func (s *Sensor) Type() SensorType    { return s.stype }

// Reading returns the current reading.
func (s *Sensor) Reading() Reading {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reading
}

// Value returns the current value.
func (s *Sensor) Value() any {
	return s.Reading().Value
}

// SetValue replaces the reading and notifies observers synchronously.
// A zero timestamp is replaced by the current time.
func (s *Sensor) SetValue(value any, status Status, timestamp time.Time) {
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}
	reading := Reading{Timestamp: timestamp, Status: status, Value: value}

	s.mu.Lock()
	s.reading = reading
	observers := append([]SensorObserver(nil), s.observers...)
	s.mu.Unlock()

	for _, observer := range observers {
		observer.SensorUpdated(s, reading)
	}
}

// Attach registers an observer. Attaching the same observer twice is a no-op.
func (s *Sensor) Attach(observer SensorObserver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.observers {
		if existing == observer {
			return
		}
	}
	s.observers = append(s.observers, observer)
}

// Detach removes an observer and reports whether it was attached.
func (s *Sensor) Detach(observer SensorObserver) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.observers {
		if existing == observer {
			s.observers = append(s.observers[:i], s.observers[i+1:]...)
			return true
		}
	}
	return false
}

// EncodedValue renders the current value in katcp text form.
func (s *Sensor) EncodedValue() []byte {
	return s.stype.Encode(s.Value())
}

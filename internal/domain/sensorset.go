package domain

import (
	"sort"
	"sync"
)

// CallbackHandle identifies a registered add or remove callback.
type CallbackHandle uint64

type callbackEntry struct {
	handle CallbackHandle
	fn     func(*Sensor)
}

// SensorSet is a registry of sensors keyed by name.
//
// Add and remove callbacks run synchronously inside the mutating call, after the set's
// lock has been released, so callbacks may read the set.
type SensorSet struct {
	mu         sync.RWMutex
	sensors    map[string]*Sensor
	onAdd      []callbackEntry
	onRemove   []callbackEntry
	nextHandle CallbackHandle
}

func NewSensorSet() *SensorSet {
	return &SensorSet{sensors: make(map[string]*Sensor)}
}

// Add inserts a sensor. A different sensor with the same name is replaced: remove
// callbacks fire for the old sensor before add callbacks fire for the new one.
// Adding the sensor that is already present does nothing.
func (s *SensorSet) Add(sensor *Sensor) {
	s.mu.Lock()
	old, exists := s.sensors[sensor.Name()]
	if exists && old == sensor {
		s.mu.Unlock()
		return
	}
	s.sensors[sensor.Name()] = sensor
	onAdd := copyCallbacks(s.onAdd)
	var onRemove []callbackEntry
	if exists {
		onRemove = copyCallbacks(s.onRemove)
	}
	s.mu.Unlock()

	for _, cb := range onRemove {
		cb.fn(old)
	}
	for _, cb := range onAdd {
		cb.fn(sensor)
	}
}

// Pop removes the named sensor, returning it if it was present.
func (s *SensorSet) Pop(name string) (*Sensor, bool) {
	s.mu.Lock()
	sensor, ok := s.sensors[name]
	if !ok {
		s.mu.Unlock()
		return nil, false
	}
	delete(s.sensors, name)
	onRemove := copyCallbacks(s.onRemove)
	s.mu.Unlock()

	for _, cb := range onRemove {
		cb.fn(sensor)
	}
	return sensor, true
}

// Get returns the named sensor.
func (s *SensorSet) Get(name string) (*Sensor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sensor, ok := s.sensors[name]
	return sensor, ok
}

func (s *SensorSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sensors)
}

// Names returns the sensor names in lexical order.
func (s *SensorSet) Names() []string {
	s.mu.RLock()
	names := make([]string, 0, len(s.sensors))
	for name := range s.sensors {
		names = append(names, name)
	}
	s.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Values returns the sensors ordered by name.
func (s *SensorSet) Values() []*Sensor {
	s.mu.RLock()
	values := make([]*Sensor, 0, len(s.sensors))
	for _, sensor := range s.sensors {
		values = append(values, sensor)
	}
	s.mu.RUnlock()
	sort.Slice(values, func(i, j int) bool { return values[i].Name() < values[j].Name() })
	return values
}

// AddAddCallback registers fn to run after every insertion.
func (s *SensorSet) AddAddCallback(fn func(*Sensor)) CallbackHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextHandle++
	s.onAdd = append(s.onAdd, callbackEntry{handle: s.nextHandle, fn: fn})
	return s.nextHandle
}

// AddRemoveCallback registers fn to run after every removal, including replacement.
func (s *SensorSet) AddRemoveCallback(fn func(*Sensor)) CallbackHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextHandle++
	s.onRemove = append(s.onRemove, callbackEntry{handle: s.nextHandle, fn: fn})
	return s.nextHandle
}

// RemoveAddCallback unregisters an add callback. It returns ErrCallbackNotFound if the
// handle is not registered.
func (s *SensorSet) RemoveAddCallback(handle CallbackHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ok bool
	s.onAdd, ok = removeCallback(s.onAdd, handle)
	if !ok {
		return ErrCallbackNotFound
	}
	return nil
}

// RemoveRemoveCallback unregisters a remove callback. It returns ErrCallbackNotFound if
// the handle is not registered.
func (s *SensorSet) RemoveRemoveCallback(handle CallbackHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ok bool
	s.onRemove, ok = removeCallback(s.onRemove, handle)
	if !ok {
		return ErrCallbackNotFound
	}
	return nil
}

func copyCallbacks(callbacks []callbackEntry) []callbackEntry {
	return append([]callbackEntry(nil), callbacks...)
}

func removeCallback(callbacks []callbackEntry, handle CallbackHandle) ([]callbackEntry, bool) {
	for i, cb := range callbacks {
		if cb.handle == handle {
			return append(callbacks[:i:i], callbacks[i+1:]...), true
		}
	}
	return callbacks, false
}

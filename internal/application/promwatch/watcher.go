package promwatch

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"sensor-proxy/internal/domain"
	"sensor-proxy/internal/logging"
)

// Factory maps a sensor to its series description, or nil if it is not exported.
type Factory func(sensor *domain.Sensor) *Info

// Watcher keeps one Observer per exported sensor of a registry, following the
// registry's additions and removals.
type Watcher struct {
	sensors *domain.SensorSet
	labels  prometheus.Labels
	factory Factory
	cache   *Cache
	logger  *logging.Logger

	mu           sync.Mutex
	observers    map[string]*Observer
	addHandle    domain.CallbackHandle
	removeHandle domain.CallbackHandle
}

type Option func(*Watcher)

// WithLabels sets labels applied to every series of the watcher.
func WithLabels(labels prometheus.Labels) Option {
	return func(w *Watcher) { w.labels = labels }
}

func WithFactory(factory Factory) Option {
	return func(w *Watcher) { w.factory = factory }
}

// WithCache isolates the watcher from the process-wide cache.
func WithCache(cache *Cache) Option {
	return func(w *Watcher) { w.cache = cache }
}

func WithLogger(logger *logging.Logger) Option {
	return func(w *Watcher) { w.logger = logger }
}

// NewWatcher creates observers for the sensors already in the registry and
// subscribes to its changes. Without a factory nothing is exported.
func NewWatcher(sensors *domain.SensorSet, opts ...Option) (*Watcher, error) {
	w := &Watcher{
		sensors:   sensors,
		observers: make(map[string]*Observer),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.cache == nil {
		w.cache = DefaultCache()
	}

	for _, sensor := range sensors.Values() {
		observer, err := w.makeObserver(sensor)
		if err != nil {
			w.closeObservers()
			return nil, err
		}
		if observer != nil {
			w.observers[sensor.Name()] = observer
		}
	}

	w.addHandle = sensors.AddAddCallback(w.added)
	w.removeHandle = sensors.AddRemoveCallback(w.removed)
	return w, nil
}

func (w *Watcher) makeObserver(sensor *domain.Sensor) (*Observer, error) {
	if w.factory == nil {
		return nil, nil
	}
	info := w.factory(sensor)
	if info == nil {
		return nil, nil
	}

	names, values, err := labelLayout(w.labels, info.Labels)
	if err != nil {
		return nil, err
	}
	pair, err := w.cache.Get(info, names)
	if err != nil {
		return nil, err
	}
	return NewObserver(sensor, pair, values, w.logger)
}

func (w *Watcher) added(sensor *domain.Sensor) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if old, ok := w.observers[sensor.Name()]; ok {
		old.Close()
		delete(w.observers, sensor.Name())
	}

	observer, err := w.makeObserver(sensor)
	if err != nil {
		w.logger.Error("promwatch: cannot export sensor", logging.AttachError(err, "sensor", sensor.Name())...)
		return
	}
	if observer != nil {
		w.observers[sensor.Name()] = observer
	}
}

func (w *Watcher) removed(sensor *domain.Sensor) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if old, ok := w.observers[sensor.Name()]; ok {
		old.Close()
		delete(w.observers, sensor.Name())
	}
}

// Len returns the number of live observers.
func (w *Watcher) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.observers)
}

// Close removes every observer and unsubscribes from the registry. It may be
// called more than once.
func (w *Watcher) Close() {
	w.mu.Lock()
	w.closeObservers()
	w.mu.Unlock()

	if err := w.sensors.RemoveRemoveCallback(w.removeHandle); err != nil && !errors.Is(err, domain.ErrCallbackNotFound) {
		w.logger.Warn("promwatch: remove callback", logging.AttachError(err)...)
	}
	if err := w.sensors.RemoveAddCallback(w.addHandle); err != nil && !errors.Is(err, domain.ErrCallbackNotFound) {
		w.logger.Warn("promwatch: add callback", logging.AttachError(err)...)
	}
}

func (w *Watcher) closeObservers() {
	for _, observer := range w.observers {
		observer.Close()
	}
	w.observers = make(map[string]*Observer)
}

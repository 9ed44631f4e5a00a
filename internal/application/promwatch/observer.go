package promwatch

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"sensor-proxy/internal/domain"
	"sensor-proxy/internal/infra"
	"sensor-proxy/internal/logging"
)

// Observer mirrors the readings of one sensor into one label instance of a series
// pair.
type Observer struct {
	sensor      *domain.Sensor
	pair        *SeriesPair
	labelValues []string
	logger      *logging.Logger

	gauge     prometheus.Gauge
	counter   prometheus.Counter
	histogram prometheus.Observer
	status    prometheus.Gauge

	mu           sync.Mutex
	oldValue     float64
	oldTimestamp time.Time
	seen         bool
	closed       bool
}

// NewObserver binds sensor to the label instance of pair selected by labelValues,
// attaches to the sensor and applies its current reading.
func NewObserver(sensor *domain.Sensor, pair *SeriesPair, labelValues []string, logger *logging.Logger) (*Observer, error) {
	o := &Observer{
		sensor:      sensor,
		pair:        pair,
		labelValues: append([]string(nil), labelValues...),
		logger:      logger,
	}

	var err error
	switch pair.kind {
	case KindGauge:
		o.gauge, err = pair.gauge.GetMetricWithLabelValues(labelValues...)
	case KindCounter:
		o.counter, err = pair.counter.GetMetricWithLabelValues(labelValues...)
	case KindHistogram:
		o.histogram, err = pair.histogram.GetMetricWithLabelValues(labelValues...)
	default:
		return nil, fmt.Errorf("%w: %s for sensor %q", ErrUnknownKind, pair.kind, sensor.Name())
	}
	if err != nil {
		return nil, fmt.Errorf("sensor %q: %w", sensor.Name(), err)
	}
	if o.status, err = pair.status.GetMetricWithLabelValues(labelValues...); err != nil {
		return nil, fmt.Errorf("sensor %q: %w", sensor.Name(), err)
	}

	sensor.Attach(o)
	infra.ObserverStarted()
	o.SensorUpdated(sensor, sensor.Reading())
	return o, nil
}

// SensorUpdated applies a reading. The status series always follows the reading;
// the value series only takes valid readings, and counters only move forward.
func (o *Observer) SensorUpdated(sensor *domain.Sensor, reading domain.Reading) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}

	valid := reading.Status.ValidValue()
	value := 0.0
	if valid {
		var err error
		value, err = o.toFloat(sensor, reading)
		if err != nil {
			o.logger.Warn("promwatch: reading has no numeric form", logging.AttachError(err, "sensor", sensor.Name())...)
			valid = false
			value = 0
		}
	}

	o.status.Set(float64(reading.Status))

	switch o.pair.kind {
	case KindGauge:
		if valid {
			o.gauge.Set(value)
		}
	case KindCounter:
		if valid {
			if value < o.oldValue {
				o.logger.Debug("promwatch: counter went backwards, not sending delta",
					"sensor", sensor.Name(), "old", o.oldValue, "new", value)
			} else {
				o.counter.Add(value - o.oldValue)
			}
		}
	case KindHistogram:
		if valid && (!o.seen || !reading.Timestamp.Equal(o.oldTimestamp)) {
			o.histogram.Observe(value)
		}
	}

	if valid {
		o.oldValue = value
	}
	o.oldTimestamp = reading.Timestamp
	o.seen = true
}

func (o *Observer) toFloat(sensor *domain.Sensor, reading domain.Reading) (float64, error) {
	value, err := domain.Numeric(sensor.Type(), reading.Value)
	if err != nil {
		return 0, err
	}
	if value < 0 {
		if _, discrete := sensor.Type().(domain.DiscreteType); discrete {
			o.logger.Debug("promwatch: discrete value outside its domain", "sensor", sensor.Name(), "value", reading.Value)
		}
	}
	return value, nil
}

// Close detaches from the sensor and deletes the label instance from both series.
func (o *Observer) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	o.mu.Unlock()

	o.sensor.Detach(o)
	o.pair.deleteLabelValues(o.labelValues)
	infra.ObserverFinished()
}

var _ domain.SensorObserver = (*Observer)(nil)

package promwatch

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sensor-proxy/internal/domain"
)

// gaugeFactory exports every integer sensor as a gauge named after it.
func gaugeFactory(reg prometheus.Registerer) Factory {
	return func(sensor *domain.Sensor) *Info {
		if _, ok := sensor.Type().(domain.IntegerType); !ok {
			return nil
		}
		return &Info{
			Kind:        KindGauge,
			Name:        MetricName(sensor.Name()),
			Description: sensor.Description(),
			Labels:      prometheus.Labels{"unit": "count"},
			Registerer:  reg,
		}
	}
}

func TestWatcherFollowsRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	sensors := domain.NewSensorSet()
	existing := domain.NewSensor(domain.IntegerType{}, "dev.fan", "fan", "")
	sensors.Add(existing)
	sensors.Add(domain.NewSensor(domain.StringType{}, "dev.name", "name", ""))

	t.Log("step 1: existing sensors are observed on construction")
	watcher, err := NewWatcher(sensors,
		WithLabels(prometheus.Labels{"host": "a"}),
		WithFactory(gaugeFactory(reg)),
		WithCache(NewCache()),
	)
	require.NoError(t, err)
	defer watcher.Close()
	assert.Equal(t, 1, watcher.Len(), "factory declines the string sensor")

	existing.SetValue(int64(3), domain.StatusNominal, time.Time{})
	assert.Equal(t, 3.0, testutil.ToFloat64(watcherGauge(t, watcher, "dev_fan", "a", "count")))

	t.Log("step 2: added sensors are observed")
	added := domain.NewSensor(domain.IntegerType{}, "dev.pump", "pump", "")
	sensors.Add(added)
	assert.Equal(t, 2, watcher.Len())
	added.SetValue(int64(9), domain.StatusNominal, time.Time{})
	assert.Equal(t, 9.0, testutil.ToFloat64(watcherGauge(t, watcher, "dev_pump", "a", "count")))

	t.Log("step 3: a replacement sensor takes over the series")
	replacement := domain.NewSensor(domain.IntegerType{}, "dev.pump", "pump", "")
	sensors.Add(replacement)
	assert.Equal(t, 2, watcher.Len())
	replacement.SetValue(int64(11), domain.StatusNominal, time.Time{})
	added.SetValue(int64(99), domain.StatusNominal, time.Time{})
	assert.Equal(t, 11.0, testutil.ToFloat64(watcherGauge(t, watcher, "dev_pump", "a", "count")))

	t.Log("step 4: removal deletes the series")
	sensors.Pop("dev.pump")
	assert.Equal(t, 1, watcher.Len())
	pair, err := watcher.cache.Get(&Info{Name: "dev_pump"}, nil)
	require.NoError(t, err)
	assert.Zero(t, testutil.CollectAndCount(pair.gauge))
}

func watcherGauge(t *testing.T, w *Watcher, name string, values ...string) prometheus.Gauge {
	t.Helper()
	pair, err := w.cache.Get(&Info{Name: name}, nil)
	require.NoError(t, err)
	require.NotNil(t, pair.gauge)
	return pair.gauge.WithLabelValues(values...)
}

func TestWatcherLabelOrder(t *testing.T) {
	reg := prometheus.NewRegistry()
	sensors := domain.NewSensorSet()
	sensors.Add(domain.NewSensor(domain.IntegerType{}, "x", "", ""))
	cache := NewCache()

	watcher, err := NewWatcher(sensors,
		WithLabels(prometheus.Labels{"z": "1", "a": "2"}),
		WithFactory(func(*domain.Sensor) *Info {
			return &Info{Kind: KindGauge, Name: "ordered", Description: "d", Labels: prometheus.Labels{"m": "3", "b": "4"}, Registerer: reg}
		}),
		WithCache(cache),
	)
	require.NoError(t, err)
	defer watcher.Close()

	pair, err := cache.Get(&Info{Name: "ordered"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "z", "b", "m"}, pair.LabelNames())
	assert.Equal(t, 1, testutil.CollectAndCount(pair.gauge))
	assert.Zero(t, testutil.ToFloat64(pair.gauge.WithLabelValues("2", "1", "4", "3")))
}

func TestWatcherLabelClash(t *testing.T) {
	sensors := domain.NewSensorSet()
	sensors.Add(domain.NewSensor(domain.IntegerType{}, "x", "", ""))

	_, err := NewWatcher(sensors,
		WithLabels(prometheus.Labels{"host": "a"}),
		WithFactory(func(*domain.Sensor) *Info {
			return &Info{Kind: KindGauge, Name: "clash", Labels: prometheus.Labels{"host": "b"}, Registerer: prometheus.NewRegistry()}
		}),
		WithCache(NewCache()),
	)
	assert.ErrorIs(t, err, ErrLabelClash)
}

func TestWatchersShareCachedSeries(t *testing.T) {
	reg := prometheus.NewRegistry()
	cache := NewCache()
	first := domain.NewSensorSet()
	second := domain.NewSensorSet()
	a := domain.NewSensor(domain.IntegerType{}, "dev.fan", "", "")
	b := domain.NewSensor(domain.IntegerType{}, "dev.fan", "", "")
	first.Add(a)
	second.Add(b)

	w1, err := NewWatcher(first, WithLabels(prometheus.Labels{"host": "a"}), WithFactory(gaugeFactory(reg)), WithCache(cache))
	require.NoError(t, err)
	defer w1.Close()
	w2, err := NewWatcher(second, WithLabels(prometheus.Labels{"host": "b"}), WithFactory(gaugeFactory(reg)), WithCache(cache))
	require.NoError(t, err)
	defer w2.Close()

	a.SetValue(int64(1), domain.StatusNominal, time.Time{})
	b.SetValue(int64(2), domain.StatusNominal, time.Time{})

	assert.Equal(t, 1, cache.Len())
	assert.Equal(t, 1.0, testutil.ToFloat64(watcherGauge(t, w1, "dev_fan", "a", "count")))
	assert.Equal(t, 2.0, testutil.ToFloat64(watcherGauge(t, w2, "dev_fan", "b", "count")))

	count, err := testutil.GatherAndCount(reg, "dev_fan", "dev_fan_status")
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestWatcherReusesAlreadyRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := domain.NewSensorSet()
	first.Add(domain.NewSensor(domain.IntegerType{}, "dev.fan", "", ""))
	second := domain.NewSensorSet()
	second.Add(domain.NewSensor(domain.IntegerType{}, "dev.fan", "", ""))

	w1, err := NewWatcher(first, WithLabels(prometheus.Labels{"host": "a"}), WithFactory(gaugeFactory(reg)), WithCache(NewCache()))
	require.NoError(t, err)
	defer w1.Close()

	w2, err := NewWatcher(second, WithLabels(prometheus.Labels{"host": "b"}), WithFactory(gaugeFactory(reg)), WithCache(NewCache()))
	require.NoError(t, err, "an identical collector in the registry is reused")
	defer w2.Close()

	count, err := testutil.GatherAndCount(reg, "dev_fan")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestWatcherUnknownKind(t *testing.T) {
	badFactory := WithFactory(func(*domain.Sensor) *Info {
		return &Info{Kind: Kind(42), Name: "bad", Registerer: prometheus.NewRegistry()}
	})

	t.Log("step 1: construction fails when an existing sensor cannot be exported")
	sensors := domain.NewSensorSet()
	sensors.Add(domain.NewSensor(domain.IntegerType{}, "x", "", ""))
	_, err := NewWatcher(sensors, badFactory, WithCache(NewCache()))
	assert.ErrorIs(t, err, ErrUnknownKind)

	t.Log("step 2: an added sensor that cannot be exported is skipped")
	empty := domain.NewSensorSet()
	watcher, err := NewWatcher(empty, badFactory, WithCache(NewCache()))
	require.NoError(t, err)
	defer watcher.Close()

	assert.NotPanics(t, func() { empty.Add(domain.NewSensor(domain.IntegerType{}, "y", "", "")) })
	assert.Zero(t, watcher.Len())
}

func TestWatcherWithoutFactoryExportsNothing(t *testing.T) {
	sensors := domain.NewSensorSet()
	sensors.Add(domain.NewSensor(domain.IntegerType{}, "x", "", ""))
	watcher, err := NewWatcher(sensors, WithCache(NewCache()))
	require.NoError(t, err)
	defer watcher.Close()

	assert.Zero(t, watcher.Len())
}

func TestWatcherClose(t *testing.T) {
	reg := prometheus.NewRegistry()
	sensors := domain.NewSensorSet()
	sensor := domain.NewSensor(domain.IntegerType{}, "dev.fan", "", "")
	sensors.Add(sensor)

	watcher, err := NewWatcher(sensors, WithFactory(gaugeFactory(reg)), WithCache(NewCache()))
	require.NoError(t, err)

	watcher.Close()
	assert.NotPanics(t, watcher.Close)
	assert.Zero(t, watcher.Len())

	sensors.Add(domain.NewSensor(domain.IntegerType{}, "dev.pump", "", ""))
	assert.Zero(t, watcher.Len(), "closed watcher no longer follows the registry")

	count, err := testutil.GatherAndCount(reg, "dev_fan")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestDefaultCacheIsShared(t *testing.T) {
	assert.Same(t, DefaultCache(), DefaultCache())
}

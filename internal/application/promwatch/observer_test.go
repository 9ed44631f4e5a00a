package promwatch

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sensor-proxy/internal/domain"
)

func newPair(t *testing.T, reg *prometheus.Registry, kind Kind, name string) *SeriesPair {
	t.Helper()
	pair, err := NewCache().Get(&Info{Kind: kind, Name: name, Description: "test", Registerer: reg}, []string{"sensor"})
	require.NoError(t, err)
	return pair
}

func histogramCount(t *testing.T, reg *prometheus.Registry, name string) uint64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		require.Equal(t, dto.MetricType_HISTOGRAM, family.GetType())
		require.Len(t, family.GetMetric(), 1)
		return family.GetMetric()[0].GetHistogram().GetSampleCount()
	}
	return 0
}

func TestObserverCounterNeverMovesBackwards(t *testing.T) {
	reg := prometheus.NewRegistry()
	pair := newPair(t, reg, KindCounter, "packets_total")
	sensor := domain.NewSensor(domain.IntegerType{}, "packets", "", "")

	observer, err := NewObserver(sensor, pair, []string{"packets"}, nil)
	require.NoError(t, err)
	defer observer.Close()

	counter := pair.counter.WithLabelValues("packets")
	expected := map[int64]float64{5: 5, 8: 8, 3: 8, 6: 11}
	base := time.Unix(1000, 0)
	for i, value := range []int64{5, 8, 3, 6} {
		sensor.SetValue(value, domain.StatusNominal, base.Add(time.Duration(i)*time.Second))
		assert.Equal(t, expected[value], testutil.ToFloat64(counter), "after reading %d", value)
	}
}

func TestObserverCounterIgnoresInvalidReadings(t *testing.T) {
	reg := prometheus.NewRegistry()
	pair := newPair(t, reg, KindCounter, "errors_total")
	sensor := domain.NewSensor(domain.IntegerType{}, "errors", "", "")
	_, err := NewObserver(sensor, pair, []string{"errors"}, nil)
	require.NoError(t, err)

	sensor.SetValue(int64(4), domain.StatusNominal, time.Time{})
	sensor.SetValue(int64(100), domain.StatusFailure, time.Time{})
	sensor.SetValue(int64(6), domain.StatusWarn, time.Time{})

	assert.Equal(t, float64(6), testutil.ToFloat64(pair.counter.WithLabelValues("errors")))
	assert.Equal(t, float64(domain.StatusWarn), testutil.ToFloat64(pair.status.WithLabelValues("errors")))
}

func TestObserverHistogramDeduplicatesTimestamps(t *testing.T) {
	reg := prometheus.NewRegistry()
	pair := newPair(t, reg, KindHistogram, "latency_seconds")
	sensor := domain.NewSensor(domain.FloatType{}, "latency", "", "s")
	_, err := NewObserver(sensor, pair, []string{"latency"}, nil)
	require.NoError(t, err)

	t.Log("step 1: the initial unknown reading is not observed")
	assert.Zero(t, histogramCount(t, reg, "latency_seconds"))

	ts := time.Unix(2000, 0)
	sensor.SetValue(0.25, domain.StatusNominal, ts)
	assert.Equal(t, uint64(1), histogramCount(t, reg, "latency_seconds"))

	t.Log("step 2: a repeated timestamp is not observed again")
	sensor.SetValue(0.25, domain.StatusNominal, ts)
	assert.Equal(t, uint64(1), histogramCount(t, reg, "latency_seconds"))

	sensor.SetValue(0.5, domain.StatusNominal, ts.Add(time.Second))
	assert.Equal(t, uint64(2), histogramCount(t, reg, "latency_seconds"))

	t.Log("step 3: an invalid reading moves the timestamp without observing")
	sensor.SetValue(0.5, domain.StatusUnreachable, ts.Add(2*time.Second))
	sensor.SetValue(0.5, domain.StatusNominal, ts.Add(2*time.Second))
	assert.Equal(t, uint64(2), histogramCount(t, reg, "latency_seconds"))
}

func TestObserverGaugeHoldsLastValidValue(t *testing.T) {
	reg := prometheus.NewRegistry()
	pair := newPair(t, reg, KindGauge, "temperature")
	sensor := domain.NewSensor(domain.FloatType{}, "temp", "", "degC")
	_, err := NewObserver(sensor, pair, []string{"temp"}, nil)
	require.NoError(t, err)

	gauge := pair.gauge.WithLabelValues("temp")
	status := pair.status.WithLabelValues("temp")

	sensor.SetValue(42.0, domain.StatusNominal, time.Time{})
	assert.Equal(t, 42.0, testutil.ToFloat64(gauge))
	assert.Equal(t, float64(domain.StatusNominal), testutil.ToFloat64(status))

	sensor.SetValue(7.0, domain.StatusFailure, time.Time{})
	assert.Equal(t, 42.0, testutil.ToFloat64(gauge))
	assert.Equal(t, float64(domain.StatusFailure), testutil.ToFloat64(status))
}

func TestObserverAppliesCurrentReadingOnConstruction(t *testing.T) {
	reg := prometheus.NewRegistry()
	pair := newPair(t, reg, KindGauge, "fan_speed")
	sensor := domain.NewSensorWithReading(domain.IntegerType{}, "fan", "", "rpm", domain.Reading{
		Timestamp: time.Unix(1, 0),
		Status:    domain.StatusWarn,
		Value:     int64(1200),
	})

	_, err := NewObserver(sensor, pair, []string{"fan"}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1200.0, testutil.ToFloat64(pair.gauge.WithLabelValues("fan")))
	assert.Equal(t, float64(domain.StatusWarn), testutil.ToFloat64(pair.status.WithLabelValues("fan")))
}

func TestObserverNumericTranslation(t *testing.T) {
	reg := prometheus.NewRegistry()
	pair := newPair(t, reg, KindGauge, "translated")

	cases := []struct {
		name  string
		stype domain.SensorType
		value any
		want  float64
	}{
		{"bool", domain.BooleanType{}, true, 1},
		{"timestamp", domain.TimestampType{}, time.Unix(1700000000, 500000000), 1700000000.5},
		{"discrete", domain.DiscreteType{Values: []string{"ok", "degraded", "fail"}}, "fail", 2},
		{"discrete-outside", domain.DiscreteType{Values: []string{"ok"}}, "bogus", -1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sensor := domain.NewSensor(tc.stype, tc.name, "", "")
			observer, err := NewObserver(sensor, pair, []string{tc.name}, nil)
			require.NoError(t, err)
			defer observer.Close()

			sensor.SetValue(tc.value, domain.StatusNominal, time.Time{})
			assert.Equal(t, tc.want, testutil.ToFloat64(pair.gauge.WithLabelValues(tc.name)))
		})
	}
}

func TestObserverStringSensorOnlyExportsStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	pair := newPair(t, reg, KindGauge, "label")
	sensor := domain.NewSensor(domain.StringType{}, "label", "", "")
	_, err := NewObserver(sensor, pair, []string{"label"}, nil)
	require.NoError(t, err)

	sensor.SetValue([]byte("hello"), domain.StatusNominal, time.Time{})

	assert.Zero(t, testutil.ToFloat64(pair.gauge.WithLabelValues("label")))
	assert.Equal(t, float64(domain.StatusNominal), testutil.ToFloat64(pair.status.WithLabelValues("label")))
}

func TestObserverCloseDeletesSeries(t *testing.T) {
	reg := prometheus.NewRegistry()
	pair := newPair(t, reg, KindGauge, "closing")
	sensor := domain.NewSensor(domain.IntegerType{}, "closing", "", "")
	observer, err := NewObserver(sensor, pair, []string{"closing"}, nil)
	require.NoError(t, err)
	sensor.SetValue(int64(3), domain.StatusNominal, time.Time{})
	require.Equal(t, 1, testutil.CollectAndCount(pair.gauge))

	observer.Close()
	observer.Close()

	assert.Zero(t, testutil.CollectAndCount(pair.gauge))
	assert.Zero(t, testutil.CollectAndCount(pair.status))
	assert.False(t, sensor.Detach(observer), "observer is already detached")

	sensor.SetValue(int64(4), domain.StatusNominal, time.Time{})
	assert.Zero(t, testutil.CollectAndCount(pair.gauge))
}

func TestObserverUnknownKind(t *testing.T) {
	sensor := domain.NewSensor(domain.IntegerType{}, "x", "", "")
	_, err := NewObserver(sensor, &SeriesPair{kind: Kind(42)}, nil, nil)
	assert.ErrorIs(t, err, ErrUnknownKind)

	_, err = NewCache().Get(&Info{Kind: Kind(42), Name: "x", Registerer: prometheus.NewRegistry()}, nil)
	assert.ErrorIs(t, err, ErrUnknownKind)
}

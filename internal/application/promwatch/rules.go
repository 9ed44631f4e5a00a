package promwatch

import (
	"fmt"
	"path"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/model"

	"sensor-proxy/internal/domain"
)

// Rule exports the sensors whose name matches Pattern. The first matching rule wins.
type Rule struct {
	Pattern string
	Kind    Kind
	// Name is the metric name; when empty it is derived from the sensor name.
	Name        string
	Description string
	Labels      map[string]string
	// SensorLabel, when set, adds a label carrying the sensor name so that several
	// sensors can share one metric.
	SensorLabel string
	Buckets     []float64
}

// RuleFactory builds a Factory from rules. Metric names are prefixed with namespace
// (joined by an underscore) when it is not empty. String sensors are never exported.
func RuleFactory(rules []Rule, namespace string, registerer prometheus.Registerer) (Factory, error) {
	for i, rule := range rules {
		if _, err := path.Match(rule.Pattern, ""); err != nil {
			return nil, fmt.Errorf("rule %d pattern %q: %w", i, rule.Pattern, err)
		}
		if rule.Kind != KindGauge && rule.Kind != KindCounter && rule.Kind != KindHistogram {
			return nil, fmt.Errorf("rule %d: %w: %s", i, ErrUnknownKind, rule.Kind)
		}
		if rule.Name != "" && !model.IsValidMetricName(model.LabelValue(qualify(namespace, rule.Name))) {
			return nil, fmt.Errorf("rule %d: invalid metric name %q", i, rule.Name)
		}
		for name := range rule.Labels {
			if !model.LabelName(name).IsValid() {
				return nil, fmt.Errorf("rule %d: invalid label name %q", i, name)
			}
		}
	}

	return func(sensor *domain.Sensor) *Info {
		if _, ok := sensor.Type().(domain.StringType); ok {
			return nil
		}
		for _, rule := range rules {
			if ok, _ := path.Match(rule.Pattern, sensor.Name()); !ok {
				continue
			}

			name := rule.Name
			if name == "" {
				name = MetricName(sensor.Name())
			}
			description := rule.Description
			if description == "" {
				description = sensor.Description()
			}
			if description == "" {
				description = "katcp sensor " + sensor.Name()
			}

			labels := make(prometheus.Labels, len(rule.Labels)+1)
			for k, v := range rule.Labels {
				labels[k] = v
			}
			if rule.SensorLabel != "" {
				labels[rule.SensorLabel] = sensor.Name()
			}

			return &Info{
				Kind:        rule.Kind,
				Name:        qualify(namespace, name),
				Description: description,
				Labels:      labels,
				Buckets:     rule.Buckets,
				Registerer:  registerer,
			}
		}
		return nil
	}, nil
}

// MetricName turns a katcp sensor name into a valid Prometheus metric name.
func MetricName(sensorName string) string {
	var b strings.Builder
	for i, r := range sensorName {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_', r == ':':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

func qualify(namespace, name string) string {
	if namespace == "" {
		return name
	}
	return namespace + "_" + name
}

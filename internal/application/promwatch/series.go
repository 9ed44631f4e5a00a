package promwatch

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	ErrUnknownKind = errors.New("unknown metric kind")
	ErrLabelClash  = errors.New("label defined twice")
)

// Kind selects the Prometheus metric type a sensor is exported as.
type Kind int

const (
	KindUnknown Kind = iota
	KindGauge
	KindCounter
	KindHistogram
)

func (k Kind) String() string {
	switch k {
	case KindGauge:
		return "gauge"
	case KindCounter:
		return "counter"
	case KindHistogram:
		return "histogram"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "gauge":
		return KindGauge, nil
	case "counter":
		return KindCounter, nil
	case "histogram":
		return KindHistogram, nil
	default:
		return KindUnknown, fmt.Errorf("%w: %q", ErrUnknownKind, name)
	}
}

// Info describes the series a sensor is exported to.
type Info struct {
	Kind        Kind
	Name        string
	Description string
	// Labels are specific to the sensor; they follow the watcher-wide labels.
	Labels prometheus.Labels
	// Buckets apply to histograms; prometheus.DefBuckets when empty.
	Buckets []float64
	// Registerer defaults to prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer
}

// SeriesPair is the value metric of a sensor together with its <name>_status gauge.
type SeriesPair struct {
	kind       Kind
	labelNames []string
	gauge      *prometheus.GaugeVec
	counter    *prometheus.CounterVec
	histogram  *prometheus.HistogramVec
	status     *prometheus.GaugeVec
}

func (p *SeriesPair) Kind() Kind           { return p.kind }
func (p *SeriesPair) LabelNames() []string { return append([]string(nil), p.labelNames...) }

func (p *SeriesPair) deleteLabelValues(values []string) {
	switch p.kind {
	case KindGauge:
		p.gauge.DeleteLabelValues(values...)
	case KindCounter:
		p.counter.DeleteLabelValues(values...)
	case KindHistogram:
		p.histogram.DeleteLabelValues(values...)
	}
	p.status.DeleteLabelValues(values...)
}

func newSeriesPair(info *Info, labelNames []string) (*SeriesPair, error) {
	registerer := info.Registerer
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	pair := &SeriesPair{kind: info.Kind, labelNames: labelNames}
	var err error
	switch info.Kind {
	case KindGauge:
		pair.gauge, err = register(registerer, prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: info.Name,
			Help: info.Description,
		}, labelNames))
	case KindCounter:
		pair.counter, err = register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: info.Name,
			Help: info.Description,
		}, labelNames))
	case KindHistogram:
		buckets := info.Buckets
		if len(buckets) == 0 {
			buckets = prometheus.DefBuckets
		}
		pair.histogram, err = register(registerer, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    info.Name,
			Help:    info.Description,
			Buckets: buckets,
		}, labelNames))
	default:
		return nil, fmt.Errorf("%w: %s for %q", ErrUnknownKind, info.Kind, info.Name)
	}
	if err != nil {
		return nil, fmt.Errorf("register %q: %w", info.Name, err)
	}

	pair.status, err = register(registerer, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: info.Name + "_status",
		Help: "Status of katcp sensor " + info.Name,
	}, labelNames))
	if err != nil {
		return nil, fmt.Errorf("register %q: %w", info.Name+"_status", err)
	}
	return pair, nil
}

// register adds c to the registry, reusing an identical collector that is
// already registered.
func register[T prometheus.Collector](registerer prometheus.Registerer, c T) (T, error) {
	if err := registerer.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		var zero T
		return zero, err
	}
	return c, nil
}

// Cache holds series pairs by metric name so that every watcher exporting the same
// metric shares one set of collectors.
type Cache struct {
	mu    sync.Mutex
	pairs map[string]*SeriesPair
}

func NewCache() *Cache {
	return &Cache{pairs: make(map[string]*SeriesPair)}
}

var (
	defaultCacheOnce sync.Once
	defaultCache     *Cache
)

// DefaultCache is the process-wide cache used by watchers without WithCache.
func DefaultCache() *Cache {
	defaultCacheOnce.Do(func() { defaultCache = NewCache() })
	return defaultCache
}

// Get returns the pair for info.Name, creating and registering it on first use.
func (c *Cache) Get(info *Info, labelNames []string) (*SeriesPair, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if pair, ok := c.pairs[info.Name]; ok {
		return pair, nil
	}
	pair, err := newSeriesPair(info, labelNames)
	if err != nil {
		return nil, err
	}
	c.pairs[info.Name] = pair
	return pair, nil
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pairs)
}

// labelLayout orders watcher labels then info labels, each group sorted by name.
func labelLayout(common, specific prometheus.Labels) (names, values []string, err error) {
	for _, group := range []prometheus.Labels{common, specific} {
		keys := make([]string, 0, len(group))
		for key := range group {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			names = append(names, key)
			values = append(values, group[key])
		}
	}

	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if _, ok := seen[name]; ok {
			return nil, nil, fmt.Errorf("%w: %q", ErrLabelClash, name)
		}
		seen[name] = struct{}{}
	}
	return names, values, nil
}

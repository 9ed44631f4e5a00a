package mirror

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"sensor-proxy/internal/domain"
	"sensor-proxy/internal/infra"
	"sensor-proxy/internal/logging"
)

// Server is the destination the mirror projects sensors onto.
type Server interface {
	Sensors() *domain.SensorSet
	MassInform(name string, args ...string)
}

// ShadowProvider is implemented by servers that expose the pre-transform registry.
// When the server does not implement it the mirror keeps a private one.
type ShadowProvider interface {
	OrigSensors() *domain.SensorSet
}

// CloseAction selects what happens to mirrored sensors when the upstream closes.
type CloseAction int

const (
	CloseRemove CloseAction = iota
	CloseUnreachable
)

func (a CloseAction) String() string {
	switch a {
	case CloseRemove:
		return "remove"
	case CloseUnreachable:
		return "unreachable"
	default:
		return fmt.Sprintf("close-action(%d)", int(a))
	}
}

// ParseCloseAction accepts "remove" or "unreachable".
func ParseCloseAction(name string) (CloseAction, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "remove":
		return CloseRemove, nil
	case "unreachable":
		return CloseUnreachable, nil
	default:
		return CloseRemove, fmt.Errorf("unknown close action %q", name)
	}
}

// RewriteFunc computes the visible value of a .gui-urls sensor from its raw sensor.
type RewriteFunc func(raw *domain.Sensor) []byte

const (
	guiURLsSuffix      = ".gui-urls"
	deviceStatusSensor = "device-status"
	failValue          = "fail"
)

// sensorPair links the sensor in the orig registry with the one in the visible
// registry. Both point at the same object unless the value is rewritten.
type sensorPair struct {
	raw     *domain.Sensor
	visible *domain.Sensor
}

func (p *sensorPair) transformed() bool { return p.raw != p.visible }

// Mirror projects an upstream sensor set onto a server's registry.
//
// The domain.SensorWatcher methods must be called from a single goroutine.
// WaitSynced and State may be called concurrently with them.
type Mirror struct {
	server      Server
	sensors     *domain.SensorSet
	orig        *domain.SensorSet
	rename      RenameRule
	rewrite     RewriteFunc
	closeAction CloseAction
	notify      func()
	filter      FilterFunc
	logger      *logging.Logger

	renames map[string][]string
	pairs   map[string]*sensorPair
	dirty   bool

	stateMu sync.Mutex
	state   domain.SyncState
	synced  chan struct{}
}

type Option func(*Mirror)

// WithRenames installs explicit rename entries. Invalid entries are reported by New.
func WithRenames(renames map[string][]string) Option {
	return func(m *Mirror) { m.renames = renames }
}

func WithRewriteGUIURLs(fn RewriteFunc) Option {
	return func(m *Mirror) { m.rewrite = fn }
}

func WithCloseAction(action CloseAction) Option {
	return func(m *Mirror) { m.closeAction = action }
}

// WithNotify replaces the default interface-changed inform.
func WithNotify(fn func()) Option {
	return func(m *Mirror) { m.notify = fn }
}

func WithFilter(fn FilterFunc) Option {
	return func(m *Mirror) { m.filter = fn }
}

func WithLogger(logger *logging.Logger) Option {
	return func(m *Mirror) { m.logger = logger }
}

// New creates a mirror that publishes into server under prefix.
func New(server Server, prefix string, opts ...Option) (*Mirror, error) {
	m := &Mirror{
		server:  server,
		sensors: server.Sensors(),
		pairs:   make(map[string]*sensorPair),
		synced:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	rule, err := NewRenameRule(prefix, m.renames)
	if err != nil {
		return nil, err
	}
	m.rename = rule

	if shadow, ok := server.(ShadowProvider); ok && shadow.OrigSensors() != nil {
		m.orig = shadow.OrigSensors()
	} else {
		m.orig = domain.NewSensorSet()
	}
	if m.notify == nil {
		m.notify = func() { server.MassInform("interface-changed", "sensor-list") }
	}
	return m, nil
}

// OrigSensors returns the registry holding sensors before value rewriting.
func (m *Mirror) OrigSensors() *domain.SensorSet { return m.orig }

func (m *Mirror) Filter(def domain.SensorDefinition) bool {
	if len(m.rename.Names(def.Name)) == 0 {
		return false
	}
	if m.filter != nil {
		return m.filter(def)
	}
	return true
}

func (m *Mirror) BatchStart() {}

// BatchStop fires the notification once if the batch changed the sensor set.
func (m *Mirror) BatchStop() {
	if !m.dirty {
		return
	}
	defer func() { m.dirty = false }()

	infra.IncInterfaceChanged()
	infra.SetMirroredSensors(m.sensors.Len())
	m.notify()
}

func (m *Mirror) SensorAdded(def domain.SensorDefinition) {
	stype, err := domain.ParseSensorType(def.TypeName, def.Args)
	if err != nil {
		m.logger.Warn("mirror: skipping sensor with unsupported type", logging.AttachError(err, "sensor", def.Name)...)
		return
	}

	for _, name := range m.rename.Names(def.Name) {
		raw := domain.NewSensor(stype, name, def.Description, def.Units)
		visible := raw
		if m.rewritable(name, stype) {
			reading := raw.Reading()
			reading.Value = m.rewrite(raw)
			visible = domain.NewSensorWithReading(stype, name, def.Description, def.Units, reading)
		}

		m.orig.Add(raw)
		m.sensors.Add(visible)
		m.pairs[name] = &sensorPair{raw: raw, visible: visible}
		m.logger.Debug("mirror: sensor added", "sensor", name, "upstream", def.Name)
	}
	m.dirty = true
}

func (m *Mirror) SensorRemoved(name string) {
	for _, dest := range m.rename.Names(name) {
		m.remove(dest)
	}
}

func (m *Mirror) remove(name string) {
	if _, ok := m.pairs[name]; !ok {
		return
	}
	m.sensors.Pop(name)
	m.orig.Pop(name)
	delete(m.pairs, name)
	m.dirty = true
	m.logger.Debug("mirror: sensor removed", "sensor", name)
}

// SensorUpdated decodes the raw value once per destination and applies it. The
// orig sensor holds the authoritative value; a rewritten sibling only ever receives
// the rewrite of it.
func (m *Mirror) SensorUpdated(name string, value []byte, status domain.Status, timestamp time.Time) {
	for _, dest := range m.rename.Names(name) {
		pair, ok := m.pairs[dest]
		if !ok {
			continue
		}

		decoded, err := pair.raw.Type().Decode(value)
		if err != nil {
			infra.IncDecodeErrors()
			m.logger.Warn("mirror: dropping undecodable value", logging.AttachError(err, "sensor", dest)...)
			continue
		}
		pair.raw.SetValue(decoded, status, timestamp)

		if pair.transformed() {
			before := pair.visible.EncodedValue()
			rewritten := m.rewrite(pair.raw)
			pair.visible.SetValue(rewritten, status, timestamp)
			if !bytes.Equal(before, rewritten) {
				m.dirty = true
			}
		}
	}
}

func (m *Mirror) StateUpdated(state domain.SyncState) {
	m.setState(state)
	m.logger.Info("mirror: upstream state changed", "state", state.String())

	if state != domain.SyncStateClosed {
		return
	}

	m.BatchStart()
	for _, name := range m.pairNames() {
		switch m.closeAction {
		case CloseUnreachable:
			pair := m.pairs[name]
			m.markUnreachable(pair.visible)
			if pair.transformed() {
				m.markUnreachable(pair.raw)
			}
		default:
			m.remove(name)
		}
	}
	m.BatchStop()
}

// markUnreachable fails a discrete device-status sensor that knows "fail", and resets
// every other sensor to its default with status unreachable.
func (m *Mirror) markUnreachable(sensor *domain.Sensor) {
	if m.isDeviceStatus(sensor) {
		if fail, err := sensor.Type().Decode([]byte(failValue)); err == nil {
			sensor.SetValue(fail, domain.StatusError, time.Time{})
			return
		}
	}

	if sensor.Reading().Status != domain.StatusUnreachable {
		sensor.SetValue(sensor.Type().Default(), domain.StatusUnreachable, time.Time{})
	}
}

func (m *Mirror) isDeviceStatus(sensor *domain.Sensor) bool {
	if _, ok := sensor.Type().(domain.DiscreteType); !ok {
		return false
	}
	for _, name := range m.rename.Names(deviceStatusSensor) {
		if name == sensor.Name() {
			return true
		}
	}
	return false
}

func (m *Mirror) rewritable(name string, stype domain.SensorType) bool {
	if m.rewrite == nil || !strings.HasSuffix(name, guiURLsSuffix) {
		return false
	}
	_, ok := stype.(domain.StringType)
	return ok
}

func (m *Mirror) pairNames() []string {
	names := make([]string, 0, len(m.pairs))
	for name := range m.pairs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *Mirror) setState(state domain.SyncState) {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()

	m.state = state
	select {
	case <-m.synced:
		if state != domain.SyncStateSynced {
			m.synced = make(chan struct{})
		}
	default:
		if state == domain.SyncStateSynced {
			close(m.synced)
		}
	}
}

// State returns the last reported upstream state.
func (m *Mirror) State() domain.SyncState {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	return m.state
}

// WaitSynced blocks until the upstream reports it is synced or ctx is done.
func (m *Mirror) WaitSynced(ctx context.Context) error {
	m.stateMu.Lock()
	synced := m.synced
	m.stateMu.Unlock()

	select {
	case <-synced:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ domain.SensorWatcher = (*Mirror)(nil)

package simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/google/uuid"

	"sensor-proxy/internal/domain"
	"sensor-proxy/internal/infra"
	"sensor-proxy/internal/logging"
)

// Config describes the runtime characteristics of the simulated device.
type Config struct {
	Interval time.Duration
	// DisconnectEvery closes the session after this many update batches; zero never
	// disconnects.
	DisconnectEvery int
	// Host is advertised in the gui-urls sensor.
	Host       string
	RandSource rand.Source
}

// Simulator is a synthetic katcp device producing the event stream a sensor-list
// subscription would.
type Simulator struct {
	cfg    Config
	logger *logging.Logger
	rnd    *rand.Rand

	packets int64
	bootAt  time.Time
}

func New(cfg Config, logger *logging.Logger) *Simulator {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.DisconnectEvery < 0 {
		cfg.DisconnectEvery = 0
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}

	source := cfg.RandSource
	if source == nil {
		source = rand.NewSource(time.Now().UnixNano())
	}

	return &Simulator{cfg: cfg, logger: logger, rnd: rand.New(source)}
}

// Definitions lists the sensors the device exposes.
func Definitions() []domain.SensorDefinition {
	return []domain.SensorDefinition{
		{Name: "device-status", Description: "Overall device health", TypeName: "discrete", Args: args("ok", "degraded", "fail")},
		{Name: "packets", Description: "Packets received since start", TypeName: "integer", Args: args("0", "9223372036854775807")},
		{Name: "temperature", Description: "Board temperature", Units: "degC", TypeName: "float", Args: args("-40", "125")},
		{Name: "latency", Description: "Processing latency", Units: "s", TypeName: "float"},
		{Name: "enabled", Description: "Whether capture is enabled", TypeName: "boolean"},
		{Name: "boot-time", Description: "When the device last started", TypeName: "timestamp"},
		{Name: "gui.gui-urls", Description: "Links to device GUIs", TypeName: "string"},
	}
}

func args(values ...string) [][]byte {
	out := make([][]byte, len(values))
	for i, v := range values {
		out[i] = []byte(v)
	}
	return out
}

// Run emits sessions until the context is cancelled. The output channel is closed
// once generation stops.
func (s *Simulator) Run(ctx context.Context, out chan<- domain.Event) {
	defer close(out)

	for {
		if !s.session(ctx, out) {
			s.log("simulator: stopped", logging.AttachError(ctx.Err())...)
			return
		}
	}
}

// session runs one connection from sync to close. It returns false when the
// context ends.
func (s *Simulator) session(ctx context.Context, out chan<- domain.Event) bool {
	sessionID := uuid.NewString()
	infra.IncSimulatorSessions()
	s.packets = 0
	s.bootAt = time.Now().UTC()
	s.log("simulator: session started", "session", sessionID)

	if !s.send(ctx, out, domain.StateChangedEvent(domain.SyncStateSyncing)) {
		return false
	}

	batch := []domain.Event{domain.BatchStartEvent()}
	for _, def := range Definitions() {
		batch = append(batch, domain.SensorAddedEvent(def))
	}
	batch = append(batch, s.readings(sessionID, time.Now().UTC())...)
	batch = append(batch, domain.BatchStopEvent(), domain.StateChangedEvent(domain.SyncStateSynced))
	if !s.sendAll(ctx, out, batch) {
		return false
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for tick := 1; ; tick++ {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}

		batch := append([]domain.Event{domain.BatchStartEvent()}, s.readings(sessionID, time.Now().UTC())...)
		batch = append(batch, domain.BatchStopEvent())
		if !s.sendAll(ctx, out, batch) {
			return false
		}

		if s.cfg.DisconnectEvery > 0 && tick%s.cfg.DisconnectEvery == 0 {
			s.log("simulator: session closed", "session", sessionID, "batches", tick)
			return s.send(ctx, out, domain.StateChangedEvent(domain.SyncStateClosed))
		}
	}
}

func (s *Simulator) readings(sessionID string, now time.Time) []domain.Event {
	status, statusValue := domain.StatusNominal, "ok"
	switch roll := s.rnd.Float64(); {
	case roll < 0.02:
		status, statusValue = domain.StatusError, "fail"
	case roll < 0.10:
		status, statusValue = domain.StatusWarn, "degraded"
	}

	if s.rnd.Float64() < 0.05 {
		s.packets = 0
	} else {
		s.packets += int64(s.rnd.Intn(100))
	}

	temperature := 20 + s.rnd.Float64()*10
	tempStatus := domain.StatusNominal
	if temperature > 29 {
		tempStatus = domain.StatusWarn
	}

	links, _ := json.Marshal([]map[string]string{{
		"title":       "Dashboard",
		"description": "Session " + sessionID,
		"href":        fmt.Sprintf("http://%s:8080/", s.cfg.Host),
		"category":    "Dashboard",
	}})

	return []domain.Event{
		domain.SensorUpdatedEvent("device-status", []byte(statusValue), status, now),
		domain.SensorUpdatedEvent("packets", []byte(strconv.FormatInt(s.packets, 10)), domain.StatusNominal, now),
		domain.SensorUpdatedEvent("temperature", []byte(strconv.FormatFloat(temperature, 'f', 3, 64)), tempStatus, now),
		domain.SensorUpdatedEvent("latency", []byte(strconv.FormatFloat(s.rnd.ExpFloat64()*0.05, 'g', -1, 64)), domain.StatusNominal, now),
		domain.SensorUpdatedEvent("enabled", []byte("1"), domain.StatusNominal, now),
		domain.SensorUpdatedEvent("boot-time", domain.TimestampType{}.Encode(s.bootAt), domain.StatusNominal, now),
		domain.SensorUpdatedEvent("gui.gui-urls", links, domain.StatusNominal, now),
	}
}

func (s *Simulator) sendAll(ctx context.Context, out chan<- domain.Event, events []domain.Event) bool {
	for _, event := range events {
		if !s.send(ctx, out, event) {
			return false
		}
	}
	return true
}

func (s *Simulator) send(ctx context.Context, out chan<- domain.Event, event domain.Event) bool {
	select {
	case <-ctx.Done():
		return false
	case out <- event:
		return true
	}
}

func (s *Simulator) log(msg string, args ...any) {
	if s.logger == nil {
		return
	}
	s.logger.Debug(msg, args...)
}

var _ domain.EventSource = (*Simulator)(nil)

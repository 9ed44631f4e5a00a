package server

import (
	"strings"
	"time"

	"sensor-proxy/internal/domain"
	"sensor-proxy/internal/logging"
)

// Inform is an unsolicited katcp message sent to every connected client.
type Inform struct {
	Name      string    `json:"name"`
	Args      []string  `json:"args"`
	Timestamp time.Time `json:"timestamp"`
}

// Broadcaster delivers informs to subscribers.
type Broadcaster interface {
	BroadcastInform(inform Inform)
}

// DeviceServer owns the registries clients see: the visible sensors and the orig
// sensors holding values before rewriting.
type DeviceServer struct {
	sensors     *domain.SensorSet
	orig        *domain.SensorSet
	broadcaster Broadcaster
	logger      *logging.Logger
}

func NewDeviceServer(broadcaster Broadcaster, logger *logging.Logger) *DeviceServer {
	return &DeviceServer{
		sensors:     domain.NewSensorSet(),
		orig:        domain.NewSensorSet(),
		broadcaster: broadcaster,
		logger:      logger,
	}
}

func (s *DeviceServer) Sensors() *domain.SensorSet     { return s.sensors }
func (s *DeviceServer) OrigSensors() *domain.SensorSet { return s.orig }

// MassInform sends an inform to every subscriber.
func (s *DeviceServer) MassInform(name string, args ...string) {
	inform := Inform{Name: name, Args: append([]string(nil), args...), Timestamp: time.Now().UTC()}
	s.logger.Info("server: mass inform", "inform", "#"+name+" "+strings.Join(args, " "))
	if s.broadcaster != nil {
		s.broadcaster.BroadcastInform(inform)
	}
}

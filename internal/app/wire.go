//go:build wireinject
// +build wireinject

package app

import (
	"github.com/google/wire"

	"sensor-proxy/internal/api/websocket"
	"sensor-proxy/internal/application/dispatch"
	"sensor-proxy/internal/application/simulator"
	"sensor-proxy/internal/domain"
	"sensor-proxy/internal/server"
)

func InitializeApp() (*App, func(), error) {
	panic(wire.Build(
		provideConfig,
		provideLogger,
		provideShutdownManager,
		provideHub,
		wire.Bind(new(server.Broadcaster), new(*websocket.Hub)),
		wire.Bind(new(Broadcasting), new(*websocket.Hub)),
		server.NewDeviceServer,
		provideMirror,
		provideWatcher,
		provideRepository,
		provideRecorder,
		providePool,
		provideInspector,
		provideHTTPServer,
		provideGRPCServer,
		provideSimulator,
		wire.Bind(new(domain.EventSource), new(*simulator.Simulator)),
		provideDispatcher,
		wire.Bind(new(domain.EventDispatcher), new(*dispatch.Dispatcher)),
		New,
	))
}

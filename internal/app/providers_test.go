package app

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sensor-proxy/internal/api/websocket"
	"sensor-proxy/internal/application/inspector"
	"sensor-proxy/internal/application/mirror"
	"sensor-proxy/internal/config"
	"sensor-proxy/internal/infrastructure/repository/memory"
	"sensor-proxy/internal/logging"
	"sensor-proxy/internal/server"
)

func TestProvideHTTPServerLogsThroughZap(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := logging.New("info", logging.WithWriter(buf))
	require.NoError(t, err)

	device := server.NewDeviceServer(nil, logger)
	m, err := mirror.New(device, "dev.")
	require.NoError(t, err)
	cfg := &config.Config{HTTPPort: 9090}

	srv := provideHTTPServer(cfg, inspector.New(device, memory.New(1)), websocket.NewHub(logger), m, logger)

	assert.Equal(t, ":9090", srv.Addr)
	require.NotNil(t, srv.ErrorLog)
	srv.ErrorLog.Print("http: accept error")
	assert.Contains(t, buf.String(), `"msg":"http: accept error"`)
	assert.Contains(t, buf.String(), `"logger":"http"`)
}

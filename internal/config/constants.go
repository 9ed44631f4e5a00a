package config

import "time"

const (
	EnvHTTPPort   = "HTTP_PORT"
	EnvGRPCPort   = "GRPC_PORT"
	EnvLogLevel   = "LOG_LEVEL"
	EnvPolicyPath = "PROXY_CONFIG"

	EnvSimulatorInterval        = "SIM_INTERVAL"
	EnvSimulatorDisconnectEvery = "SIM_DISCONNECT_EVERY"
	EnvSimulatorHost            = "SIM_HOST"

	EnvArchiveDriver       = "ARCHIVE_DRIVER"
	EnvArchiveDSN          = "DB_DSN"
	EnvArchiveBatchSize    = "DB_BATCH_SIZE"
	EnvArchiveBatchTimeout = "DB_BATCH_TIMEOUT"
	EnvArchiveBufferSize   = "DB_BUFFER_SIZE"
	EnvArchiveWorkers      = "ARCHIVE_WORKERS"
	EnvArchiveQueueSize    = "ARCHIVE_QUEUE_SIZE"
	EnvArchiveMemoryLimit  = "ARCHIVE_MEMORY_LIMIT"

	DefaultHTTPPort = 8080
	DefaultGRPCPort = 50051
	DefaultLogLevel = "info"

	DefaultSimulatorInterval        = time.Second
	DefaultSimulatorDisconnectEvery = 0
	DefaultSimulatorHost            = "localhost"

	ArchiveDriverMemory   = "memory"
	ArchiveDriverPostgres = "postgres"

	DefaultArchiveDriver       = ArchiveDriverMemory
	DefaultArchiveBatchSize    = 100
	DefaultArchiveBatchTimeout = 500 * time.Millisecond
	DefaultArchiveBufferSize   = 1000
	DefaultArchiveWorkers      = 2
	DefaultArchiveQueueSize    = 1024
	DefaultArchiveMemoryLimit  = 1000

	DefaultPrefix          = "sim."
	DefaultCloseAction     = "unreachable"
	DefaultMetricNamespace = "katcp"
)

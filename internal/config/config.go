package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Simulator contains configuration for the synthetic upstream device.
type Simulator struct {
	Interval        time.Duration
	DisconnectEvery int
	Host            string
}

// Archive selects and tunes the reading archive.
type Archive struct {
	Driver       string
	DSN          string
	BatchSize    int
	BatchTimeout time.Duration
	BufferSize   int
	Workers      int
	QueueSize    int
	MemoryLimit  int
}

// Policy is the mirror and metric policy read from the YAML file.
type Policy struct {
	Prefix      string              `yaml:"prefix"`
	Renames     map[string]RenameTargets `yaml:"renames"`
	Include     []string            `yaml:"include"`
	Exclude     []string            `yaml:"exclude"`
	CloseAction string              `yaml:"close_action"`
	GUIURLBase  string              `yaml:"gui_url_base"`
	Labels      map[string]string   `yaml:"labels"`
	Metrics     Metrics             `yaml:"metrics"`
}

// RenameTargets lists the destination names of one upstream sensor. In YAML it is
// either a single name or a list; an empty list hides the sensor.
type RenameTargets []string

func (r *RenameTargets) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		if value.Tag == "!!null" {
			*r = RenameTargets{}
			return nil
		}
		*r = RenameTargets{value.Value}
		return nil
	case yaml.SequenceNode:
		var names []string
		if err := value.Decode(&names); err != nil {
			return err
		}
		*r = append(RenameTargets{}, names...)
		return nil
	default:
		return fmt.Errorf("line %d: rename target must be a name or a list of names", value.Line)
	}
}

// RenameMap returns the renames in the form the mirror takes.
func (p Policy) RenameMap() map[string][]string {
	if p.Renames == nil {
		return nil
	}
	out := make(map[string][]string, len(p.Renames))
	for name, targets := range p.Renames {
		out[name] = append([]string{}, targets...)
	}
	return out
}

type Metrics struct {
	Namespace string       `yaml:"namespace"`
	Rules     []MetricRule `yaml:"rules"`
}

// MetricRule maps sensors matching Pattern to a metric of the given kind.
type MetricRule struct {
	Pattern     string            `yaml:"pattern"`
	Kind        string            `yaml:"kind"`
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	Labels      map[string]string `yaml:"labels"`
	SensorLabel string            `yaml:"sensor_label"`
	Buckets     []float64         `yaml:"buckets"`
}

// Config holds the settings of the proxy, loaded from the environment and the
// optional policy file.
type Config struct {
	HTTPPort   int
	GRPCPort   int
	LogLevel   string
	PolicyPath string
	Simulator  Simulator
	Archive    Archive
	Policy     Policy
}

// LoadDotEnv loads variables from the given files (".env" when none) without
// overriding the environment. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

// Load reads the configuration from environment variables, applying defaults, and
// then the policy file named by PROXY_CONFIG if set.
func Load() (*Config, error) {
	httpPort, err := getEnvInt(EnvHTTPPort, DefaultHTTPPort)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", EnvHTTPPort, err)
	}

	grpcPort, err := getEnvInt(EnvGRPCPort, DefaultGRPCPort)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", EnvGRPCPort, err)
	}

	interval, err := getEnvDuration(EnvSimulatorInterval, DefaultSimulatorInterval)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", EnvSimulatorInterval, err)
	}

	disconnectEvery, err := getEnvInt(EnvSimulatorDisconnectEvery, DefaultSimulatorDisconnectEvery)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", EnvSimulatorDisconnectEvery, err)
	}

	archive, err := loadArchive()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPPort:   httpPort,
		GRPCPort:   grpcPort,
		LogLevel:   normalizeLogLevel(getEnvString(EnvLogLevel, DefaultLogLevel)),
		PolicyPath: getEnvString(EnvPolicyPath, ""),
		Simulator: Simulator{
			Interval:        interval,
			DisconnectEvery: disconnectEvery,
			Host:            getEnvString(EnvSimulatorHost, DefaultSimulatorHost),
		},
		Archive: archive,
		Policy:  DefaultPolicy(),
	}

	if cfg.PolicyPath != "" {
		policy, err := LoadPolicy(cfg.PolicyPath)
		if err != nil {
			return nil, err
		}
		cfg.Policy = *policy
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadArchive() (Archive, error) {
	archive := Archive{
		Driver: strings.ToLower(getEnvString(EnvArchiveDriver, DefaultArchiveDriver)),
		DSN:    getEnvString(EnvArchiveDSN, ""),
	}

	var err error
	if archive.BatchSize, err = getEnvInt(EnvArchiveBatchSize, DefaultArchiveBatchSize); err != nil {
		return Archive{}, fmt.Errorf("invalid %s: %w", EnvArchiveBatchSize, err)
	}
	if archive.BatchTimeout, err = getEnvDuration(EnvArchiveBatchTimeout, DefaultArchiveBatchTimeout); err != nil {
		return Archive{}, fmt.Errorf("invalid %s: %w", EnvArchiveBatchTimeout, err)
	}
	if archive.BufferSize, err = getEnvInt(EnvArchiveBufferSize, DefaultArchiveBufferSize); err != nil {
		return Archive{}, fmt.Errorf("invalid %s: %w", EnvArchiveBufferSize, err)
	}
	if archive.Workers, err = getEnvInt(EnvArchiveWorkers, DefaultArchiveWorkers); err != nil {
		return Archive{}, fmt.Errorf("invalid %s: %w", EnvArchiveWorkers, err)
	}
	if archive.QueueSize, err = getEnvInt(EnvArchiveQueueSize, DefaultArchiveQueueSize); err != nil {
		return Archive{}, fmt.Errorf("invalid %s: %w", EnvArchiveQueueSize, err)
	}
	if archive.MemoryLimit, err = getEnvInt(EnvArchiveMemoryLimit, DefaultArchiveMemoryLimit); err != nil {
		return Archive{}, fmt.Errorf("invalid %s: %w", EnvArchiveMemoryLimit, err)
	}
	return archive, nil
}

// DefaultPolicy mirrors the simulator under DefaultPrefix and exports every
// numeric sensor, with counters and histograms for the packet and latency sensors.
func DefaultPolicy() Policy {
	return Policy{
		Prefix:      DefaultPrefix,
		CloseAction: DefaultCloseAction,
		Metrics: Metrics{
			Namespace: DefaultMetricNamespace,
			Rules: []MetricRule{
				{Pattern: "*packets", Kind: "counter", Name: "packets_total", SensorLabel: "sensor"},
				{Pattern: "*latency", Kind: "histogram", Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5}},
				{Pattern: "*", Kind: "gauge"},
			},
		},
	}
}

// LoadPolicy parses a YAML policy file. Fields left empty take the defaults.
func LoadPolicy(path string) (*Policy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy %s: %w", path, err)
	}

	policy := DefaultPolicy()
	policy.Metrics.Rules = nil
	if err := yaml.Unmarshal(raw, &policy); err != nil {
		return nil, fmt.Errorf("parse policy %s: %w", path, err)
	}
	if len(policy.Metrics.Rules) == 0 {
		policy.Metrics.Rules = DefaultPolicy().Metrics.Rules
	}
	return &policy, nil
}

func (c *Config) validate() error {
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("%s out of range: %d", EnvHTTPPort, c.HTTPPort)
	}
	if c.GRPCPort <= 0 || c.GRPCPort > 65535 {
		return fmt.Errorf("%s out of range: %d", EnvGRPCPort, c.GRPCPort)
	}
	if c.Simulator.Interval <= 0 {
		return fmt.Errorf("%s must be positive", EnvSimulatorInterval)
	}
	if c.Archive.Workers <= 0 {
		return fmt.Errorf("%s must be positive: %d", EnvArchiveWorkers, c.Archive.Workers)
	}
	switch c.Archive.Driver {
	case ArchiveDriverMemory:
	case ArchiveDriverPostgres:
		if c.Archive.DSN == "" {
			return fmt.Errorf("%s is required for the postgres archive", EnvArchiveDSN)
		}
	default:
		return fmt.Errorf("unsupported %s %q", EnvArchiveDriver, c.Archive.Driver)
	}
	for i, rule := range c.Policy.Metrics.Rules {
		if rule.Pattern == "" {
			return fmt.Errorf("metric rule %d: pattern is required", i)
		}
	}
	return nil
}

// getEnvString returns the variable's value or the default.
func getEnvString(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}

	return parsed, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}

	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, err
	}

	return parsed, nil
}

// normalizeLogLevel maps a level name to a supported value.
func normalizeLogLevel(level string) string {
	switch level = strings.ToLower(level); level {
	case "debug", "info", "warn", "error":
		return level
	case "warning":
		return "warn"
	default:
		return DefaultLogLevel
	}
}

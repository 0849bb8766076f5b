package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultConfigPath = "config/config.yml"

var envConfigPaths = map[string]string{
	EnvironmentProduction: "config/config.production.yml",
	EnvironmentStaging:    "config/config.staging.yml",
}

type Config struct {
	Gateflow  GateflowConfig  `yaml:"gateflow"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Channels  ChannelsConfig  `yaml:"channels"`
	API       APIConfig       `yaml:"api"`
	Reader    ReaderConfig    `yaml:"reader"`
	Processor ProcessorConfig `yaml:"processor"`
	Writer    WriterConfig    `yaml:"writer"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type GateflowConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// MetricsConfig toggles metric families and sinks. PrometheusAddr serves
// /metrics when set, for example ":9102".
type MetricsConfig struct {
	RateLimit      bool   `yaml:"rate_limit"`
	ChannelSize    bool   `yaml:"channel_size"`
	Sequence       bool   `yaml:"sequence"`
	CloudWatch     bool   `yaml:"cloudwatch"`
	Region         string `yaml:"region"`
	PrometheusAddr string `yaml:"prometheus_addr"`
}

type ChannelsConfig struct {
	RawBuffer       int `yaml:"raw_buffer"`
	ProcessedBuffer int `yaml:"processed_buffer"`
	ErrorBuffer     int `yaml:"error_buffer"`
}

// APIConfig covers both the REST client and the stream endpoint.
type APIConfig struct {
	BaseURL        string               `yaml:"base_url"`
	WSURL          string               `yaml:"ws_url"`
	Timeout        time.Duration        `yaml:"timeout"`
	UserAgent      string               `yaml:"user_agent"`
	Proxy          string               `yaml:"proxy"`
	Key            string               `yaml:"key"`
	Secret         string               `yaml:"secret"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
	ConnectionPool ConnectionPoolConfig `yaml:"connection_pool"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second"`
	BurstSize         int `yaml:"burst_size"`
}

type ConnectionPoolConfig struct {
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxConnsPerHost int           `yaml:"max_conns_per_host"`
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout"`
}

type ReaderConfig struct {
	Orderbook OrderbookStreamConfig `yaml:"orderbook"`
	Snapshot  SnapshotConfig        `yaml:"snapshot"`
}

type OrderbookStreamConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Pairs          []string      `yaml:"pairs"`
	Level          int           `yaml:"level"`
	Interval       time.Duration `yaml:"interval"`
	PingInterval   time.Duration `yaml:"ping_interval"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
}

type SnapshotConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Pairs    []string      `yaml:"pairs"`
	Interval time.Duration `yaml:"interval"`
	Limit    int           `yaml:"limit"`
}

type ProcessorConfig struct {
	MaxWorkers   int           `yaml:"max_workers"`
	BatchSize    int           `yaml:"batch_size"`
	BatchTimeout time.Duration `yaml:"batch_timeout"`
}

type WriterConfig struct {
	MaxWorkers   int                `yaml:"max_workers"`
	Buffer       BufferConfig       `yaml:"buffer"`
	Partitioning PartitioningConfig `yaml:"partitioning"`
	Formats      FormatsConfig      `yaml:"formats"`
}

type BufferConfig struct {
	MaxSize       int           `yaml:"max_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

type PartitioningConfig struct {
	Scheme     string `yaml:"scheme"`
	TimeFormat string `yaml:"time_format"`
}

type FormatsConfig struct {
	Parquet ParquetConfig `yaml:"parquet"`
}

type ParquetConfig struct {
	Compression string `yaml:"compression"`
	PageSize    int    `yaml:"page_size"`
}

type StorageConfig struct {
	S3    S3Config    `yaml:"s3"`
	Kafka KafkaConfig `yaml:"kafka"`
}

type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	PathStyle       bool   `yaml:"path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type LoggingConfig struct {
	Level         string                 `yaml:"level"`
	Format        string                 `yaml:"format"`
	Output        string                 `yaml:"output"`
	MaxAge        int                    `yaml:"max_age"`
	Fields        map[string]interface{} `yaml:"fields"`
	DashboardName string                 `yaml:"dashboard_name"`
}

// ResolvePath returns the config file to load for the current APP_ENV.
// An explicit non-default path always wins.
func ResolvePath(path string) string {
	return resolveEnvSpecificPath(path, DefaultConfigPath, envConfigPaths)
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(ResolvePath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Config{
		Metrics: MetricsConfig{
			RateLimit:   true,
			ChannelSize: true,
			Sequence:    true,
		},
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(&config)

	config.Storage.S3.Bucket = strings.TrimSpace(config.Storage.S3.Bucket)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// APIFromEnv returns the Gate credentials and proxy set in the environment.
// GATE_API_* takes precedence over the CCX_GATE_API_* names.
func APIFromEnv() (key, secret, proxy string) {
	return firstEnv("GATE_API_KEY", "CCX_GATE_API_KEY"),
		firstEnv("GATE_API_SECRET", "CCX_GATE_API_SECRET"),
		firstEnv("GATE_API_PROXY", "CCX_GATE_API_PROXY")
}

func applyEnvOverrides(config *Config) {
	key, secret, proxy := APIFromEnv()
	if key != "" {
		config.API.Key = key
	}
	if secret != "" {
		config.API.Secret = secret
	}
	if proxy != "" {
		config.API.Proxy = proxy
	}

	if config.Storage.S3.Enabled {
		if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
			config.Storage.S3.AccessKeyID = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
			config.Storage.S3.SecretAccessKey = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_REGION"); v != "" {
			config.Storage.S3.Region = strings.TrimSpace(v)
		}
		if v := os.Getenv("S3_BUCKET"); v != "" {
			config.Storage.S3.Bucket = strings.TrimSpace(v)
		}
	}

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		var brokers []string
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
		config.Storage.Kafka.Brokers = brokers
	}
}

// firstEnv returns the first non-empty value among the given variables.
func firstEnv(names ...string) string {
	for _, name := range names {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return v
		}
	}
	return ""
}

func validateConfig(cfg *Config) error {
	if cfg.Gateflow.Name == "" {
		return fmt.Errorf("gateflow.name is required")
	}

	if cfg.Gateflow.Version == "" {
		return fmt.Errorf("gateflow.version is required")
	}

	if cfg.Channels.RawBuffer <= 0 {
		return fmt.Errorf("channels.raw_buffer must be greater than 0")
	}

	if (cfg.API.Key == "") != (cfg.API.Secret == "") {
		return fmt.Errorf("api.key and api.secret must be set together")
	}
	if cfg.API.RateLimit.RequestsPerSecond < 0 {
		return fmt.Errorf("api.rate_limit.requests_per_second must not be negative")
	}

	if ob := cfg.Reader.Orderbook; ob.Enabled {
		if len(ob.Pairs) == 0 {
			return fmt.Errorf("reader.orderbook.pairs is required when the order book stream is enabled")
		}
		if ob.PingInterval <= 0 {
			return fmt.Errorf("reader.orderbook.ping_interval must be greater than 0")
		}
	}
	if snap := cfg.Reader.Snapshot; snap.Enabled {
		if len(snap.Pairs) == 0 {
			return fmt.Errorf("reader.snapshot.pairs is required when snapshots are enabled")
		}
		if snap.Interval <= 0 {
			return fmt.Errorf("reader.snapshot.interval must be greater than 0")
		}
	}

	if cfg.Processor.MaxWorkers <= 0 {
		return fmt.Errorf("processor.max_workers must be greater than 0")
	}
	if cfg.Processor.BatchSize <= 0 {
		return fmt.Errorf("processor.batch_size must be greater than 0")
	}
	if cfg.Processor.BatchTimeout <= 0 {
		return fmt.Errorf("processor.batch_timeout must be greater than 0")
	}

	if cfg.Writer.Buffer.FlushInterval <= 0 {
		return fmt.Errorf("writer.buffer.flush_interval must be greater than 0")
	}

	if cfg.Storage.S3.Enabled {
		if cfg.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required when S3 is enabled")
		}
		if cfg.Storage.S3.Region == "" {
			return fmt.Errorf("storage.s3.region is required when S3 is enabled")
		}
		if cfg.Storage.S3.AccessKeyID == "" || cfg.Storage.S3.SecretAccessKey == "" {
			return fmt.Errorf("storage.s3.access_key_id and storage.s3.secret_access_key are required when S3 is enabled")
		}
		if !isValidS3Bucket(cfg.Storage.S3.Bucket) {
			return fmt.Errorf("storage.s3.bucket '%s' is invalid", cfg.Storage.S3.Bucket)
		}
	}

	if cfg.Storage.Kafka.Enabled {
		if len(cfg.Storage.Kafka.Brokers) == 0 {
			return fmt.Errorf("storage.kafka.brokers is required when Kafka is enabled")
		}
		if cfg.Storage.Kafka.Topic == "" {
			return fmt.Errorf("storage.kafka.topic is required when Kafka is enabled")
		}
	}

	return nil
}

var s3BucketRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

func isValidS3Bucket(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	if strings.Contains(name, "..") || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return false
	}
	return s3BucketRegexp.MatchString(name)
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const minimalConfig = `gateflow:
  name: "TestApp"
  version: "1.0"
channels:
  raw_buffer: 1
  processed_buffer: 1
  error_buffer: 1
reader:
  orderbook:
    enabled: true
    pairs: ["BTC_USDT"]
    ping_interval: 10s
processor:
  max_workers: 1
  batch_size: 1
  batch_timeout: 1s
writer:
  buffer:
    flush_interval: 1s
storage:
  s3:
    enabled: false
`

// writeTempConfig writes content to a config file under t.TempDir and
// returns its path.
func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.yml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func clearGateEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"GATE_API_KEY", "GATE_API_SECRET", "GATE_API_PROXY",
		"CCX_GATE_API_KEY", "CCX_GATE_API_SECRET", "CCX_GATE_API_PROXY",
		"KAFKA_BROKERS", "APP_ENV",
	} {
		t.Setenv(name, "")
	}
}

func TestLoadConfig(t *testing.T) {
	clearGateEnv(t)
	path := writeTempConfig(t, minimalConfig)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Gateflow.Name != "TestApp" {
		t.Errorf("unexpected name: %s", cfg.Gateflow.Name)
	}
	if len(cfg.Reader.Orderbook.Pairs) != 1 || cfg.Reader.Orderbook.Pairs[0] != "BTC_USDT" {
		t.Errorf("unexpected pairs: %v", cfg.Reader.Orderbook.Pairs)
	}
	if !cfg.Metrics.RateLimit || !cfg.Metrics.ChannelSize {
		t.Errorf("metrics features should default to enabled: %+v", cfg.Metrics)
	}
}

func TestLoadConfigRepositoryDefault(t *testing.T) {
	clearGateEnv(t)
	cfg, err := LoadConfig("config.yml")
	if err != nil {
		t.Fatalf("LoadConfig(config.yml) failed: %v", err)
	}
	if cfg.API.BaseURL != "https://api.gateio.ws/api/" {
		t.Errorf("unexpected base url: %s", cfg.API.BaseURL)
	}
	if cfg.API.ConnectionPool.MaxIdleConns != 100 {
		t.Errorf("unexpected pool size: %d", cfg.API.ConnectionPool.MaxIdleConns)
	}
}

func TestLoadConfigCredentialsFromEnv(t *testing.T) {
	clearGateEnv(t)
	t.Setenv("CCX_GATE_API_KEY", "ccx-key")
	t.Setenv("CCX_GATE_API_SECRET", "ccx-secret")
	t.Setenv("GATE_API_KEY", "gate-key")
	t.Setenv("GATE_API_SECRET", "gate-secret")
	t.Setenv("CCX_GATE_API_PROXY", "http://127.0.0.1:8080")

	cfg, err := LoadConfig(writeTempConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.API.Key != "gate-key" || cfg.API.Secret != "gate-secret" {
		t.Errorf("GATE_API_* should win over the CCX prefix, got %q/%q", cfg.API.Key, cfg.API.Secret)
	}
	if cfg.API.Proxy != "http://127.0.0.1:8080" {
		t.Errorf("unexpected proxy: %q", cfg.API.Proxy)
	}
}

func TestLoadConfigHalfCredential(t *testing.T) {
	clearGateEnv(t)
	t.Setenv("GATE_API_KEY", "only-key")

	_, err := LoadConfig(writeTempConfig(t, minimalConfig))
	if err == nil {
		t.Fatal("expected error for key without secret")
	}
	if !strings.Contains(err.Error(), "api.key and api.secret") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoadConfigKafkaBrokersFromEnv(t *testing.T) {
	clearGateEnv(t)
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,,")

	content := minimalConfig + `  kafka:
    enabled: true
    topic: "gate.orderbook"
`
	cfg, err := LoadConfig(writeTempConfig(t, content))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	want := []string{"k1:9092", "k2:9092"}
	if len(cfg.Storage.Kafka.Brokers) != len(want) {
		t.Fatalf("unexpected brokers: %v", cfg.Storage.Kafka.Brokers)
	}
	for i := range want {
		if cfg.Storage.Kafka.Brokers[i] != want[i] {
			t.Errorf("broker %d = %q, want %q", i, cfg.Storage.Kafka.Brokers[i], want[i])
		}
	}
}

func TestValidateConfigMissingPairs(t *testing.T) {
	clearGateEnv(t)
	content := strings.Replace(minimalConfig, `pairs: ["BTC_USDT"]`, `pairs: []`, 1)

	_, err := LoadConfig(writeTempConfig(t, content))
	if err == nil || !strings.Contains(err.Error(), "reader.orderbook.pairs is required") {
		t.Fatalf("expected missing pairs error, got %v", err)
	}
}

func TestResolvePathUsesAppEnv(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	if got := ResolvePath(""); got != "config/config.production.yml" {
		t.Errorf("ResolvePath(\"\") = %q", got)
	}
	if got := ResolvePath("custom.yml"); got != "custom.yml" {
		t.Errorf("explicit path should win, got %q", got)
	}

	t.Setenv("APP_ENV", "")
	if got := ResolvePath(""); got != DefaultConfigPath {
		t.Errorf("development should use the default path, got %q", got)
	}
}

func TestIsProductionLike(t *testing.T) {
	t.Setenv("APP_ENV", "stagging")
	if env := AppEnvironment(); env != EnvironmentStaging || !IsProductionLike(env) {
		t.Errorf("unexpected environment %q", env)
	}
	if IsProductionLike(EnvironmentDevelopment) {
		t.Error("development should not be production-like")
	}
}

func TestIsValidS3Bucket(t *testing.T) {
	cases := []struct {
		name  string
		valid bool
	}{
		{"valid-bucket", true},
		{"Invalid", false},
		{"ab", false},
		{"my..bucket", false},
	}
	for _, c := range cases {
		if got := isValidS3Bucket(c.name); got != c.valid {
			t.Errorf("isValidS3Bucket(%q) = %v, want %v", c.name, got, c.valid)
		}
	}
}

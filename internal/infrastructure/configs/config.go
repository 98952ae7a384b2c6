package configs

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	HTTP        HTTPConfig        `koanf:"http"`
	Instance    InstanceConfig    `koanf:"instance"`
	Matrix      MatrixConfig      `koanf:"matrix"`
	NATS        NATSConfig        `koanf:"nats"`
	Registry    RegistryConfig    `koanf:"registry"`
	Liveness    LivenessConfig    `koanf:"liveness"`
	Relay       RelayConfig       `koanf:"relay"`
	Assistant   AssistantConfig   `koanf:"assistant"`
	Logger      LoggerConfig      `koanf:"logger"`
	Tracing     TracingConfig     `koanf:"tracing"`
	RateLimiter RateLimiterConfig `koanf:"rateLimiter"`
}

type HTTPConfig struct {
	Host           string        `koanf:"host"`
	Port           uint16        `koanf:"port"`
	AllowedOrigins []string      `koanf:"allowed_origins"`
	ReadTimeout    time.Duration `koanf:"read_timeout"`
	WriteTimeout   time.Duration `koanf:"write_timeout"`
}

// InstanceConfig identifies this gateway to its peers. Address is what other
// instances probe, so it must be reachable from them.
type InstanceConfig struct {
	Address string `koanf:"address"`
}

type MatrixConfig struct {
	Homeserver       string        `koanf:"homeserver"`
	InviteSweepDelay time.Duration `koanf:"invite_sweep_delay"`
}

type NATSConfig struct {
	URL                 string        `koanf:"url"`
	Name                string        `koanf:"name"`
	Platform            string        `koanf:"platform"`
	QueueGroup          string        `koanf:"queue_group"`
	PingInterval        time.Duration `koanf:"ping_interval"`
	MaxPingsOutstanding int           `koanf:"max_pings_outstanding"`
	MailboxSize         int           `koanf:"mailbox_size"`
}

type RegistryConfig struct {
	Backend string              `koanf:"backend"`
	Redis   RedisRegistryConfig `koanf:"redis"`
	NATS    NATSRegistryConfig  `koanf:"nats"`
}

type RedisRegistryConfig struct {
	Addr      string `koanf:"addr"`
	Password  string `koanf:"password"`
	DB        int    `koanf:"db"`
	KeyPrefix string `koanf:"key_prefix"`
}

type NATSRegistryConfig struct {
	Bucket string `koanf:"bucket"`
}

type LivenessConfig struct {
	Timeout    time.Duration `koanf:"timeout"`
	HealthPath string        `koanf:"health_path"`
}

// RelayConfig points the orchestrator at a remote gateway when SessionsURL is
// set; otherwise sessions are managed in-process.
type RelayConfig struct {
	SessionsURL    string        `koanf:"sessions_url"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

type AssistantConfig struct {
	Host        string          `koanf:"host"`
	Port        uint16          `koanf:"port"`
	BotUsername string          `koanf:"bot_username"`
	BotPassword string          `koanf:"bot_password"`
	Replier     string          `koanf:"replier"`
	Anthropic   AnthropicConfig `koanf:"anthropic"`
}

type AnthropicConfig struct {
	APIKey       string        `koanf:"api_key"`
	BaseURL      string        `koanf:"base_url"`
	Model        string        `koanf:"model"`
	MaxTokens    int64         `koanf:"max_tokens"`
	SystemPrompt string        `koanf:"system_prompt"`
	Timeout      time.Duration `koanf:"timeout"`
}

type LoggerConfig struct {
	FilePath string `koanf:"file_path"`
	Encoding string `koanf:"encoding"`
	Level    string `koanf:"level"`
	Logger   string `koanf:"logger"`
}

type TracingConfig struct {
	Enabled     bool   `koanf:"enabled"`
	Endpoint    string `koanf:"endpoint"`
	ServiceName string `koanf:"service_name"`
	Environment string `koanf:"environment"`
}

type RateLimiterConfig struct {
	MaxRatePerSecond int           `koanf:"maxRatePerSecond"`
	MaxBurst         int           `koanf:"maxBurst"`
	CacheTTL         time.Duration `koanf:"cacheTTL"`
	SourceHeaderKey  string        `koanf:"sourceHeaderKey"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	applyDefaults(k)
	if err := applyEnvOverrides(k); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Instance.Address == "" {
		cfg.Instance.Address = defaultInstanceAddress(cfg.HTTP.Port)
	}

	return &cfg, nil
}

func applyDefaults(k *koanf.Koanf) {
	// HTTP defaults
	setDefault(k, "http.host", "0.0.0.0")
	setDefault(k, "http.port", 8000)
	setDefault(k, "http.read_timeout", 10*time.Second)
	setDefault(k, "http.write_timeout", 30*time.Second)
	setDefault(k, "http.allowed_origins", []string{"*"})

	// Matrix defaults
	setDefault(k, "matrix.homeserver", "https://matrix.org")
	setDefault(k, "matrix.invite_sweep_delay", 2*time.Second)

	// NATS defaults
	setDefault(k, "nats.url", "nats://localhost:4222")
	setDefault(k, "nats.name", "relay")
	setDefault(k, "nats.platform", "Matrix")
	setDefault(k, "nats.queue_group", "relay-orchestrator")
	setDefault(k, "nats.ping_interval", 20*time.Second)
	setDefault(k, "nats.max_pings_outstanding", 3)
	setDefault(k, "nats.mailbox_size", 256)

	// Registry defaults
	setDefault(k, "registry.backend", "redis")
	setDefault(k, "registry.redis.addr", "localhost:6379")
	setDefault(k, "registry.redis.db", 0)
	setDefault(k, "registry.redis.key_prefix", "")
	setDefault(k, "registry.nats.bucket", "relay_sessions")

	// Liveness defaults
	setDefault(k, "liveness.timeout", 3*time.Second)
	setDefault(k, "liveness.health_path", "/health")

	// Relay defaults
	setDefault(k, "relay.request_timeout", 10*time.Second)

	// Assistant defaults
	setDefault(k, "assistant.host", "0.0.0.0")
	setDefault(k, "assistant.port", 8090)
	setDefault(k, "assistant.replier", "echo")
	setDefault(k, "assistant.anthropic.model", "claude-sonnet-4-5")
	setDefault(k, "assistant.anthropic.max_tokens", 512)
	setDefault(k, "assistant.anthropic.timeout", 30*time.Second)

	// Logger defaults
	setDefault(k, "logger.encoding", "json")
	setDefault(k, "logger.level", "info")
	setDefault(k, "logger.logger", "zap")

	// Tracing defaults
	setDefault(k, "tracing.enabled", false)
	setDefault(k, "tracing.endpoint", "http://localhost:4318/v1/traces")
	setDefault(k, "tracing.service_name", "relay")
	setDefault(k, "tracing.environment", "development")

	// Rate limiter defaults
	setDefault(k, "rateLimiter.maxRatePerSecond", 10)
	setDefault(k, "rateLimiter.maxBurst", 20)
	setDefault(k, "rateLimiter.cacheTTL", 5*time.Minute)
	setDefault(k, "rateLimiter.sourceHeaderKey", "X-Forwarded-For")
}

// setDefault only sets the value if the key doesn't already exist
func setDefault(k *koanf.Koanf, key string, value any) {
	if !k.Exists(key) {
		k.Set(key, value)
	}
}

func defaultInstanceAddress(port uint16) string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "localhost"
	}
	return net.JoinHostPort(host, strconv.Itoa(int(port)))
}

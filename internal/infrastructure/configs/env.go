package configs

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/knadh/koanf/v2"
)

// envOverrides lists every setting that can be overridden from the
// environment. Zero values mean "not set".
type envOverrides struct {
	HTTPHost     string        `env:"HTTP_HOST"`
	HTTPPort     uint16        `env:"HTTP_PORT"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT"`

	InstanceAddress string `env:"INSTANCE_ADDRESS"`

	MatrixHomeserver string `env:"MATRIX_HOMESERVER"`

	NATSURL        string `env:"NATS_URL"`
	NATSPlatform   string `env:"NATS_PLATFORM"`
	NATSQueueGroup string `env:"NATS_QUEUE_GROUP"`

	RegistryBackend string `env:"REGISTRY_BACKEND"`
	RedisAddr       string `env:"REDIS_ADDR"`
	RedisPassword   string `env:"REDIS_PASSWORD"`
	RegistryBucket  string `env:"REGISTRY_BUCKET"`

	LivenessTimeout time.Duration `env:"LIVENESS_TIMEOUT"`

	SessionsURL string `env:"SESSIONS_URL"`

	BotUsername     string `env:"BOT_USERNAME"`
	BotPassword     string `env:"BOT_PASSWORD"`
	Replier         string `env:"ASSISTANT_REPLIER"`
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`
	AnthropicModel  string `env:"ANTHROPIC_MODEL"`

	LoggerLevel  string `env:"LOGGER_LEVEL"`
	LoggerLogger string `env:"LOGGER_LOGGER"`
	LoggerPath   string `env:"LOGGER_FILE_PATH"`

	TracingEnabled  bool   `env:"TRACING_ENABLED"`
	TracingEndpoint string `env:"TRACING_ENDPOINT"`

	RateLimitMaxRate int `env:"RATE_LIMIT_MAX_RATE_PER_SECOND"`
	RateLimitBurst   int `env:"RATE_LIMIT_MAX_BURST"`
}

const envPrefix = "RELAY_"

func applyEnvOverrides(k *koanf.Koanf) error {
	var o envOverrides
	if err := env.ParseWithOptions(&o, env.Options{Prefix: envPrefix}); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}

	setString(k, "http.host", o.HTTPHost)
	if o.HTTPPort > 0 {
		k.Set("http.port", o.HTTPPort)
	}
	setDuration(k, "http.read_timeout", o.ReadTimeout)
	setDuration(k, "http.write_timeout", o.WriteTimeout)

	setString(k, "instance.address", o.InstanceAddress)
	setString(k, "matrix.homeserver", o.MatrixHomeserver)

	setString(k, "nats.url", o.NATSURL)
	setString(k, "nats.platform", o.NATSPlatform)
	setString(k, "nats.queue_group", o.NATSQueueGroup)

	setString(k, "registry.backend", o.RegistryBackend)
	setString(k, "registry.redis.addr", o.RedisAddr)
	setString(k, "registry.redis.password", o.RedisPassword)
	setString(k, "registry.nats.bucket", o.RegistryBucket)

	setDuration(k, "liveness.timeout", o.LivenessTimeout)
	setString(k, "relay.sessions_url", o.SessionsURL)

	setString(k, "assistant.bot_username", o.BotUsername)
	setString(k, "assistant.bot_password", o.BotPassword)
	setString(k, "assistant.replier", o.Replier)
	setString(k, "assistant.anthropic.api_key", o.AnthropicAPIKey)
	setString(k, "assistant.anthropic.model", o.AnthropicModel)

	setString(k, "logger.level", o.LoggerLevel)
	setString(k, "logger.logger", o.LoggerLogger)
	setString(k, "logger.file_path", o.LoggerPath)

	if o.TracingEnabled {
		k.Set("tracing.enabled", true)
	}
	setString(k, "tracing.endpoint", o.TracingEndpoint)

	if o.RateLimitMaxRate > 0 {
		k.Set("rateLimiter.maxRatePerSecond", o.RateLimitMaxRate)
	}
	if o.RateLimitBurst > 0 {
		k.Set("rateLimiter.maxBurst", o.RateLimitBurst)
	}

	return nil
}

func setString(k *koanf.Koanf, key, value string) {
	if value != "" {
		k.Set(key, value)
	}
}

func setDuration(k *koanf.Koanf, key string, value time.Duration) {
	if value > 0 {
		k.Set(key, value)
	}
}

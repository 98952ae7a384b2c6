// Package internal holds what the relay subcommands share: flags, config
// loading and the bus stack.
package internal

import (
	"fmt"

	"github.com/hilthontt/relay/internal/infrastructure/configs"
	"github.com/hilthontt/relay/internal/infrastructure/events"
	"github.com/hilthontt/relay/internal/infrastructure/logging"
	"github.com/hilthontt/relay/internal/infrastructure/messaging"
	"github.com/hilthontt/relay/internal/infrastructure/metrics"
	"github.com/hilthontt/relay/internal/infrastructure/tracing"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	ConfigPath string
	Debug      bool

	version = "dev"
)

func GetVersion() string {
	return version
}

// Setup loads the config and builds the process logger.
func Setup() (*configs.Config, logging.Logger, error) {
	cfg, err := configs.Load(configs.DetermineConfigPath(ConfigPath))
	if err != nil {
		return nil, nil, err
	}

	level := cfg.Logger.Level
	if Debug {
		level = "debug"
	}
	logger := logging.NewLogger(&logging.LoggerConfig{
		FilePath: cfg.Logger.FilePath,
		Encoding: cfg.Logger.Encoding,
		Level:    level,
		Logger:   cfg.Logger.Logger,
	})
	return cfg, logger, nil
}

func TracingConfig(cfg *configs.Config, service string) tracing.Config {
	name := cfg.Tracing.ServiceName
	if name == "" {
		name = "relay"
	}
	return tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: name + "-" + service,
		Environment: cfg.Tracing.Environment,
		Endpoint:    cfg.Tracing.Endpoint,
	}
}

// NewMetrics returns the process registry with runtime collectors and the
// relay metrics registered on it.
func NewMetrics() (*prometheus.Registry, *metrics.Metrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, metrics.New(reg)
}

type BusStack struct {
	NATS      *messaging.NATS
	Bus       *messaging.Bus
	Codec     *events.Codec
	Publisher *events.Publisher
	Consumer  *events.Consumer
}

func ConnectBus(cfg *configs.Config, logger logging.Logger, m *metrics.Metrics) (*BusStack, error) {
	nc, err := messaging.NewNATS(messaging.Options{
		URL:                 cfg.NATS.URL,
		Name:                cfg.NATS.Name,
		PingInterval:        cfg.NATS.PingInterval,
		MaxPingsOutstanding: cfg.NATS.MaxPingsOutstanding,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("bus: %w", err)
	}

	bus := messaging.NewBus(nc.Conn, logger, cfg.NATS.MailboxSize)
	codec := events.NewCodec(logger, m)

	return &BusStack{
		NATS:      nc,
		Bus:       bus,
		Codec:     codec,
		Publisher: events.NewPublisher(bus, codec, logger, m),
		Consumer:  events.NewConsumer(bus, codec, logger, m),
	}, nil
}

// Close stops every subscription, then drains the connection.
func (s *BusStack) Close() {
	s.Bus.Close()
	s.NATS.Close()
}

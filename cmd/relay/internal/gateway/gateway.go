package gateway

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hilthontt/relay/cmd/relay/internal"
	"github.com/hilthontt/relay/internal/application/relay"
	"github.com/hilthontt/relay/internal/application/sessions"
	"github.com/hilthontt/relay/internal/domain"
	"github.com/hilthontt/relay/internal/infrastructure/configs"
	"github.com/hilthontt/relay/internal/infrastructure/gatewayclient"
	"github.com/hilthontt/relay/internal/infrastructure/liveness"
	"github.com/hilthontt/relay/internal/infrastructure/logging"
	"github.com/hilthontt/relay/internal/infrastructure/matrix"
	"github.com/hilthontt/relay/internal/infrastructure/messaging"
	"github.com/hilthontt/relay/internal/infrastructure/ratelimiter"
	"github.com/hilthontt/relay/internal/infrastructure/registry"
	"github.com/hilthontt/relay/internal/infrastructure/tracing"
	"github.com/hilthontt/relay/internal/presentation/api"
	botsHandler "github.com/hilthontt/relay/internal/presentation/handler/bots"
	healthHandler "github.com/hilthontt/relay/internal/presentation/handler/health"
	messagesHandler "github.com/hilthontt/relay/internal/presentation/handler/messages"
)

const shutdownTimeout = 10 * time.Second

type sessionBackend interface {
	relay.Sessions
	botsHandler.Sessions
}

func gatewayCmd(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}

	cfg, logger, err := internal.Setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := tracing.InitTracer(ctx, internal.TracingConfig(cfg, "gateway"))
	if err != nil {
		return fmt.Errorf("failed to initialize the tracer: %w", err)
	}
	defer shutdownTracer(context.Background())

	promRegistry, m := internal.NewMetrics()

	stack, err := internal.ConnectBus(cfg, logger, m)
	if err != nil {
		return err
	}
	defer stack.Close()

	orchestrator := relay.NewOrchestrator(stack.Publisher, stack.Consumer, stack.Codec, relay.Options{
		Platform:   cfg.NATS.Platform,
		QueueGroup: cfg.NATS.QueueGroup,
	}, logger, m)

	var (
		backend sessionBackend
		manager *sessions.Manager
	)
	if cfg.Relay.SessionsURL != "" {
		backend = gatewayclient.New(cfg.Relay.SessionsURL, cfg.Relay.RequestTimeout)
		logger.Info(logging.Relay, logging.Startup, "driving remote gateway sessions", map[logging.ExtraKey]any{
			"sessions_url": cfg.Relay.SessionsURL,
		})
	} else {
		reg, closeRegistry, err := openRegistry(ctx, cfg, stack.NATS)
		if err != nil {
			return err
		}
		defer closeRegistry()

		prober := liveness.NewProber(liveness.Options{
			Timeout:    cfg.Liveness.Timeout,
			HealthPath: cfg.Liveness.HealthPath,
		}, logger, m)
		connector := matrix.NewConnector(cfg.Matrix.Homeserver, cfg.Instance.Address, logger)

		manager = sessions.NewManager(reg, connector, prober, orchestrator, sessions.Options{
			Instance:         cfg.Instance.Address,
			InviteSweepDelay: cfg.Matrix.InviteSweepDelay,
		}, logger, m)
		backend = manager
	}
	orchestrator.UseSessions(backend)

	if _, err := orchestrator.Start(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", orchestrator.CommandSubject(), err)
	}

	if err := orchestrator.AnnouncePresence(ctx); err != nil {
		logger.Error(logging.Relay, logging.Startup, "failed to announce presence", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}

	rl := ratelimiter.New(ratelimiter.Options{
		MaxRatePerSecond: cfg.RateLimiter.MaxRatePerSecond,
		MaxBurst:         cfg.RateLimiter.MaxBurst,
		CacheTTL:         cfg.RateLimiter.CacheTTL,
		SourceHeaderKey:  cfg.RateLimiter.SourceHeaderKey,
	})
	defer rl.Close()

	app := api.NewApplication(
		cfg.HTTP,
		healthHandler.NewHandler(cfg.Instance.Address, healthHandler.GatewayBanner),
		botsHandler.NewHandler(orchestrator, backend, logger),
		messagesHandler.NewHandler(backend, logger),
		logger,
		rl,
		m,
		promRegistry,
	)

	logger.Info(logging.General, logging.Startup, "gateway started", map[logging.ExtraKey]any{
		logging.Instance: cfg.Instance.Address,
		logging.Subject:  orchestrator.CommandSubject(),
	})

	runErr := app.Run(ctx, app.Mount())

	if manager != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := manager.Shutdown(shutdownCtx); err != nil {
			logger.Error(logging.Session, logging.Shutdown, "failed to release sessions", map[logging.ExtraKey]any{
				logging.ErrorMessage: err.Error(),
			})
		}
	}

	return runErr
}

func openRegistry(ctx context.Context, cfg *configs.Config, nc *messaging.NATS) (domain.Registry, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Registry.Backend {
	case "memory":
		return registry.NewMemoryRegistry(), noop, nil
	case "redis", "":
		return registry.NewRedisRegistry(ctx, registry.RedisOptions{
			Addr:      cfg.Registry.Redis.Addr,
			Password:  cfg.Registry.Redis.Password,
			DB:        cfg.Registry.Redis.DB,
			KeyPrefix: cfg.Registry.Redis.KeyPrefix,
		})
	case "nats":
		js, err := nc.JetStream()
		if err != nil {
			return nil, nil, err
		}
		reg, err := registry.NewNATSRegistry(ctx, js, cfg.Registry.NATS.Bucket)
		if err != nil {
			return nil, nil, err
		}
		return reg, noop, nil
	default:
		return nil, nil, fmt.Errorf("unknown registry backend %q", cfg.Registry.Backend)
	}
}

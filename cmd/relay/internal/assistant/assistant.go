package assistant

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hilthontt/relay/cmd/relay/internal"
	"github.com/hilthontt/relay/internal/application/assistant"
	"github.com/hilthontt/relay/internal/infrastructure/configs"
	"github.com/hilthontt/relay/internal/infrastructure/logging"
	"github.com/hilthontt/relay/internal/infrastructure/tracing"
	"github.com/hilthontt/relay/internal/presentation/api"
	healthHandler "github.com/hilthontt/relay/internal/presentation/handler/health"
)

const banner = "Bot is running!"

func assistantCmd(parent context.Context, replierFlag string) error {
	if parent == nil {
		parent = context.Background()
	}

	cfg, logger, err := internal.Setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if replierFlag != "" {
		cfg.Assistant.Replier = replierFlag
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := tracing.InitTracer(ctx, internal.TracingConfig(cfg, "assistant"))
	if err != nil {
		return fmt.Errorf("failed to initialize the tracer: %w", err)
	}
	defer shutdownTracer(context.Background())

	promRegistry, m := internal.NewMetrics()

	replier, err := newReplier(cfg.Assistant)
	if err != nil {
		return err
	}

	stack, err := internal.ConnectBus(cfg, logger, m)
	if err != nil {
		return err
	}
	defer stack.Close()

	if cfg.Assistant.BotUsername == "" || cfg.Assistant.BotPassword == "" {
		logger.Warn(logging.Assistant, logging.Startup, "bot credentials are not configured; presence announcements will be ignored", nil)
	}

	responder := assistant.NewResponder(stack.Publisher, stack.Consumer, stack.Codec, replier, assistant.Options{
		Platform:    cfg.NATS.Platform,
		BotUsername: cfg.Assistant.BotUsername,
		BotPassword: cfg.Assistant.BotPassword,
	}, logger, m)
	if _, err := responder.Start(ctx); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	httpCfg := cfg.HTTP
	httpCfg.Host = cfg.Assistant.Host
	httpCfg.Port = cfg.Assistant.Port

	app := api.NewApplication(
		httpCfg,
		healthHandler.NewHandler("", banner),
		nil,
		nil,
		logger,
		nil,
		m,
		promRegistry,
	)

	logger.Info(logging.Assistant, logging.Startup, "assistant started", map[logging.ExtraKey]any{
		"replier": replier.Kind(),
	})

	return app.Run(ctx, app.Mount())
}

func newReplier(cfg configs.AssistantConfig) (assistant.Replier, error) {
	switch cfg.Replier {
	case "echo", "":
		return assistant.EchoReplier{}, nil
	case "anthropic":
		return assistant.NewAnthropicReplier(assistant.AnthropicOptions{
			APIKey:       cfg.Anthropic.APIKey,
			BaseURL:      cfg.Anthropic.BaseURL,
			Model:        cfg.Anthropic.Model,
			MaxTokens:    cfg.Anthropic.MaxTokens,
			SystemPrompt: cfg.Anthropic.SystemPrompt,
			Timeout:      cfg.Anthropic.Timeout,
		})
	default:
		return nil, fmt.Errorf("unknown replier %q", cfg.Replier)
	}
}

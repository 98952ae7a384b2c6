package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hilthontt/relay/internal/infrastructure/configs"
	"github.com/hilthontt/relay/internal/infrastructure/logging"
	"github.com/hilthontt/relay/internal/infrastructure/metrics"
	"github.com/hilthontt/relay/internal/infrastructure/ratelimiter"
	botsHandler "github.com/hilthontt/relay/internal/presentation/handler/bots"
	healthHandler "github.com/hilthontt/relay/internal/presentation/handler/health"
	messagesHandler "github.com/hilthontt/relay/internal/presentation/handler/messages"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const shutdownTimeout = 5 * time.Second

type Application struct {
	config          configs.HTTPConfig
	healthHandler   *healthHandler.Handler
	botsHandler     *botsHandler.Handler
	messagesHandler *messagesHandler.Handler
	logger          logging.Logger
	ratelimiter     ratelimiter.Limiter
	metrics         *metrics.Metrics
	gatherer        prometheus.Gatherer
}

// NewApplication builds the HTTP surface. botsHandler and messagesHandler
// may be nil when this process does not own sessions; their routes are then
// not mounted.
func NewApplication(
	config configs.HTTPConfig,
	healthHandler *healthHandler.Handler,
	botsHandler *botsHandler.Handler,
	messagesHandler *messagesHandler.Handler,
	logger logging.Logger,
	ratelimiter ratelimiter.Limiter,
	m *metrics.Metrics,
	gatherer prometheus.Gatherer,
) *Application {
	return &Application{
		config:          config,
		healthHandler:   healthHandler,
		botsHandler:     botsHandler,
		messagesHandler: messagesHandler,
		logger:          logger,
		ratelimiter:     ratelimiter,
		metrics:         m,
		gatherer:        gatherer,
	}
}

func (app *Application) Mount() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(app.loggerMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(app.prometheusMiddleware)
	r.Use(app.enableCors)

	r.Get("/", app.healthHandler.GetRoot)
	r.Get("/health", app.healthHandler.GetHealth)
	r.Get("/healthz", app.healthHandler.GetHealth)
	r.Get("/ready", app.healthHandler.GetHealth)
	r.Get("/live", app.healthHandler.GetHealth)

	if app.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(app.gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		if app.ratelimiter != nil {
			r.Use(app.rateLimiterMiddleware)
		}

		if app.botsHandler != nil {
			r.Route("/bots", func(r chi.Router) {
				r.Get("/", app.botsHandler.ListBotsHandler)
				r.Post("/ask_connection", app.botsHandler.AskConnectionHandler)
				r.Post("/chat_message", app.botsHandler.ChatMessageHandler)
				r.Post("/add", app.botsHandler.AddBotHandler)
				r.Post("/remove", app.botsHandler.RemoveBotHandler)
			})
		}

		if app.messagesHandler != nil {
			r.Post("/messages/send", app.messagesHandler.SendMessageHandler)
		}
	})

	return otelhttp.NewHandler(r, "relay-http")
}

// Run serves mux until ctx is cancelled, then shuts the server down
// gracefully.
func (app *Application) Run(ctx context.Context, mux http.Handler) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", app.config.Host, app.config.Port),
		Handler:      mux,
		WriteTimeout: app.config.WriteTimeout,
		ReadTimeout:  app.config.ReadTimeout,
		IdleTimeout:  time.Minute,
	}

	shutdown := make(chan error, 1)

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		app.logger.Info(logging.General, logging.Shutdown, "stopping server", map[logging.ExtraKey]any{
			"addr": srv.Addr,
		})
		shutdown <- srv.Shutdown(shutdownCtx)
	}()

	app.logger.Info(logging.General, logging.Startup, "server has started", map[logging.ExtraKey]any{
		"addr": srv.Addr,
	})

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	if err := <-shutdown; err != nil {
		return err
	}

	app.logger.Info(logging.General, logging.Shutdown, "server has stopped", map[logging.ExtraKey]any{
		"addr": srv.Addr,
	})
	return nil
}

package events

import (
	"context"
	"errors"

	"github.com/hilthontt/relay/internal/domain"
	"github.com/hilthontt/relay/internal/infrastructure/logging"
	"github.com/hilthontt/relay/internal/infrastructure/messaging"
	"github.com/hilthontt/relay/internal/infrastructure/metrics"
	"github.com/hilthontt/relay/internal/infrastructure/tracing"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type BusSubscriber interface {
	Subscribe(ctx context.Context, subject, queue string, handler messaging.Handler) (*messaging.Subscription, error)
}

// EnvelopeHandler is called once per decoded envelope. Returned errors are
// logged; they never reach the bus.
type EnvelopeHandler func(ctx context.Context, env domain.Envelope) error

type Consumer struct {
	bus     BusSubscriber
	codec   *Codec
	logger  logging.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

func NewConsumer(bus BusSubscriber, codec *Codec, logger logging.Logger, m *metrics.Metrics) *Consumer {
	return &Consumer{
		bus:     bus,
		codec:   codec,
		logger:  logger,
		metrics: m,
		tracer:  tracing.GetTracer(tracerName),
	}
}

func (c *Consumer) Subscribe(ctx context.Context, subject, queue string, handler EnvelopeHandler) (*messaging.Subscription, error) {
	return c.bus.Subscribe(ctx, subject, queue, func(ctx context.Context, msg *nats.Msg) {
		c.handle(ctx, msg, handler)
	})
}

func (c *Consumer) handle(ctx context.Context, msg *nats.Msg, handler EnvelopeHandler) {
	c.metrics.EnvelopeReceived(msg.Subject)

	env, err := c.codec.DecodeEnvelope(msg.Subject, msg.Data)
	if err != nil {
		c.metrics.EnvelopeMalformed(msg.Subject)
		c.logger.Warn(logging.Bus, logging.Decode, "dropping malformed message", map[logging.ExtraKey]any{
			logging.Subject:      msg.Subject,
			logging.ErrorMessage: err.Error(),
		})
		return
	}

	ctx, span := c.tracer.Start(ctx, "envelope.handle", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()
	span.SetAttributes(
		attribute.String("messaging.destination.name", msg.Subject),
		attribute.String("relay.service", env.Service),
		attribute.String("relay.event_id", env.EventID),
	)

	if err := handler(ctx, env); err != nil {
		span.RecordError(err)
		extra := map[logging.ExtraKey]any{
			logging.Subject:      msg.Subject,
			logging.Service:      env.Service,
			logging.EventID:      env.EventID,
			logging.ErrorMessage: err.Error(),
		}
		if errors.Is(err, domain.ErrUnroutableService) || errors.Is(err, domain.ErrMalformedEnvelope) {
			c.logger.Warn(logging.Bus, logging.Subscribe, "envelope dropped", extra)
			return
		}
		c.logger.Error(logging.Bus, logging.Subscribe, "envelope handler failed", extra)
	}
}

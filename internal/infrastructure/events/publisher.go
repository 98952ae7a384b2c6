package events

import (
	"context"

	"github.com/hilthontt/relay/internal/domain"
	"github.com/hilthontt/relay/internal/infrastructure/logging"
	"github.com/hilthontt/relay/internal/infrastructure/metrics"
	"github.com/hilthontt/relay/internal/infrastructure/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/hilthontt/relay/events"

type BusPublisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// Publisher sends envelopes once. Failures are returned to the caller and
// never retried.
type Publisher struct {
	bus     BusPublisher
	codec   *Codec
	logger  logging.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

func NewPublisher(bus BusPublisher, codec *Codec, logger logging.Logger, m *metrics.Metrics) *Publisher {
	return &Publisher{
		bus:     bus,
		codec:   codec,
		logger:  logger,
		metrics: m,
		tracer:  tracing.GetTracer(tracerName),
	}
}

func (p *Publisher) Publish(ctx context.Context, subject string, env domain.Envelope) error {
	ctx, span := p.tracer.Start(ctx, "envelope.publish", trace.WithSpanKind(trace.SpanKindProducer))
	defer span.End()
	span.SetAttributes(
		attribute.String("messaging.destination.name", subject),
		attribute.String("relay.service", env.Service),
		attribute.String("relay.event_id", env.EventID),
	)

	data, err := p.codec.Encode(env)
	if err == nil {
		err = p.bus.Publish(ctx, subject, data)
	}
	p.metrics.EnvelopePublished(subject, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.logger.Error(logging.Bus, logging.Publish, "failed to publish envelope", map[logging.ExtraKey]any{
			logging.Subject:      subject,
			logging.Service:      env.Service,
			logging.EventID:      env.EventID,
			logging.ErrorMessage: err.Error(),
		})
		return err
	}

	p.logger.Debug(logging.Bus, logging.Publish, "envelope published", map[logging.ExtraKey]any{
		logging.Subject: subject,
		logging.Service: env.Service,
		logging.EventID: env.EventID,
	})
	return nil
}

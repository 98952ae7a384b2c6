// Package relay routes command envelopes to the session manager and wraps
// outbound events in envelopes.
package relay

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/hilthontt/relay/internal/domain"
	"github.com/hilthontt/relay/internal/infrastructure/events"
	"github.com/hilthontt/relay/internal/infrastructure/logging"
	"github.com/hilthontt/relay/internal/infrastructure/messaging"
	"github.com/hilthontt/relay/internal/infrastructure/metrics"
)

type Sessions interface {
	Provision(ctx context.Context, identity, password string) (domain.ProvisionResult, error)
	SendMessage(ctx context.Context, identity, roomID, body string) error
}

type EnvelopePublisher interface {
	Publish(ctx context.Context, subject string, env domain.Envelope) error
}

type EnvelopeSubscriber interface {
	Subscribe(ctx context.Context, subject, queue string, handler events.EnvelopeHandler) (*messaging.Subscription, error)
}

type Options struct {
	Platform   string
	QueueGroup string
}

type Orchestrator struct {
	publisher  EnvelopePublisher
	subscriber EnvelopeSubscriber
	codec      *events.Codec
	sessions   Sessions
	validate   *validator.Validate
	logger     logging.Logger
	metrics    *metrics.Metrics

	platform   string
	queueGroup string
}

func NewOrchestrator(
	publisher EnvelopePublisher,
	subscriber EnvelopeSubscriber,
	codec *events.Codec,
	opts Options,
	logger logging.Logger,
	m *metrics.Metrics,
) *Orchestrator {
	if opts.Platform == "" {
		opts.Platform = domain.PlatformMatrix
	}
	return &Orchestrator{
		publisher:  publisher,
		subscriber: subscriber,
		codec:      codec,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		logger:     logger,
		metrics:    m,
		platform:   opts.Platform,
		queueGroup: opts.QueueGroup,
	}
}

// UseSessions sets the session backend. The session manager forwards room
// messages through the orchestrator, so the two are wired after construction.
func (o *Orchestrator) UseSessions(s Sessions) {
	o.sessions = s
}

// Start subscribes to the platform's command subject. With a queue group,
// each command is handled by exactly one gateway instance.
func (o *Orchestrator) Start(ctx context.Context) (*messaging.Subscription, error) {
	if o.sessions == nil {
		return nil, errors.New("orchestrator has no session backend")
	}
	return o.subscriber.Subscribe(ctx, o.CommandSubject(), o.queueGroup, o.HandleEnvelope)
}

func (o *Orchestrator) CommandSubject() string {
	return domain.SendSubject(o.platform)
}

// HandleEnvelope routes a command by its service. Unknown services are
// reported as ErrUnroutableService and dropped by the consumer.
func (o *Orchestrator) HandleEnvelope(ctx context.Context, env domain.Envelope) error {
	var err error
	switch env.Service {
	case domain.ServiceMatrixLogin:
		err = o.handleLogin(ctx, env)
	case domain.ServiceMatrixMessage:
		err = o.handleMessage(ctx, env)
	default:
		err = fmt.Errorf("%w: %q", domain.ErrUnroutableService, env.Service)
	}

	o.metrics.Routed(env.Service, err)
	return err
}

func (o *Orchestrator) handleLogin(ctx context.Context, env domain.Envelope) error {
	var req domain.LoginRequest
	if err := o.decode(env, &req); err != nil {
		return err
	}

	res, err := o.sessions.Provision(ctx, req.Username, req.Password)
	if err != nil {
		return fmt.Errorf("provision %s: %w", req.Username, err)
	}

	o.logger.Info(logging.Relay, logging.Route, "login handled", map[logging.ExtraKey]any{
		logging.Identity: req.Username,
		logging.EventID:  env.EventID,
		"result":         res.String(),
	})
	return nil
}

func (o *Orchestrator) handleMessage(ctx context.Context, env domain.Envelope) error {
	var reply domain.ChatReply
	if err := o.decode(env, &reply); err != nil {
		return err
	}

	if err := o.sessions.SendMessage(ctx, reply.Username, reply.RoomID, reply.Message); err != nil {
		return fmt.Errorf("send as %s: %w", reply.Username, err)
	}

	o.logger.Debug(logging.Relay, logging.Route, "message delivered", map[logging.ExtraKey]any{
		logging.Identity: reply.Username,
		logging.RoomID:   reply.RoomID,
		logging.EventID:  env.EventID,
	})
	return nil
}

func (o *Orchestrator) decode(env domain.Envelope, v any) error {
	if err := o.codec.DecodePayload(o.CommandSubject(), env.Payload, v); err != nil {
		return err
	}
	if err := o.validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMalformedEnvelope, err)
	}
	return nil
}

// AnnouncePresence tells listeners on bots.connection that a gateway is up.
func (o *Orchestrator) AnnouncePresence(ctx context.Context) error {
	env := domain.NewEnvelope(o.platform, domain.ServiceUpdate, domain.ActorGateway, domain.PresenceAnnouncement)
	return o.publisher.Publish(ctx, domain.SubjectConnection, env)
}

func (o *Orchestrator) ForwardRoomMessage(ctx context.Context, msg domain.RoomMessage) error {
	payload, err := o.codec.EncodePayload(msg)
	if err != nil {
		return err
	}
	env := domain.NewEnvelope(o.platform, domain.ServiceChatMessage, domain.ActorGateway, payload)
	return o.publisher.Publish(ctx, domain.SubjectChatMessages, env)
}

func (o *Orchestrator) ForwardChatReply(ctx context.Context, reply domain.ChatReply) error {
	payload, err := o.codec.EncodePayload(reply)
	if err != nil {
		return err
	}
	env := domain.NewEnvelope(o.platform, domain.ServiceMatrixMessage, domain.ActorGateway, payload)
	return o.publisher.Publish(ctx, o.CommandSubject(), env)
}

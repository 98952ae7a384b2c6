// Package assistant is the automation side of the bus: it hands bot
// credentials to gateways that announce themselves and answers room
// messages.
package assistant

import (
	"context"
	"errors"
	"fmt"

	"github.com/hilthontt/relay/internal/domain"
	"github.com/hilthontt/relay/internal/infrastructure/events"
	"github.com/hilthontt/relay/internal/infrastructure/logging"
	"github.com/hilthontt/relay/internal/infrastructure/messaging"
	"github.com/hilthontt/relay/internal/infrastructure/metrics"
)

var ErrNoCredentials = errors.New("bot credentials are not configured")

type EnvelopePublisher interface {
	Publish(ctx context.Context, subject string, env domain.Envelope) error
}

type EnvelopeSubscriber interface {
	Subscribe(ctx context.Context, subject, queue string, handler events.EnvelopeHandler) (*messaging.Subscription, error)
}

type Options struct {
	Platform    string
	QueueGroup  string
	BotUsername string
	BotPassword string
}

type Responder struct {
	publisher  EnvelopePublisher
	subscriber EnvelopeSubscriber
	codec      *events.Codec
	replier    Replier
	logger     logging.Logger
	metrics    *metrics.Metrics
	opts       Options
}

func NewResponder(
	publisher EnvelopePublisher,
	subscriber EnvelopeSubscriber,
	codec *events.Codec,
	replier Replier,
	opts Options,
	logger logging.Logger,
	m *metrics.Metrics,
) *Responder {
	if opts.Platform == "" {
		opts.Platform = domain.PlatformMatrix
	}
	return &Responder{
		publisher:  publisher,
		subscriber: subscriber,
		codec:      codec,
		replier:    replier,
		logger:     logger,
		metrics:    m,
		opts:       opts,
	}
}

func (r *Responder) Start(ctx context.Context) ([]*messaging.Subscription, error) {
	conn, err := r.subscriber.Subscribe(ctx, domain.SubjectConnection, r.opts.QueueGroup, r.HandleConnection)
	if err != nil {
		return nil, err
	}
	chat, err := r.subscriber.Subscribe(ctx, domain.SubjectChatMessages, r.opts.QueueGroup, r.HandleChatMessage)
	if err != nil {
		return []*messaging.Subscription{conn}, err
	}
	return []*messaging.Subscription{conn, chat}, nil
}

// HandleConnection answers a gateway presence announcement with a login
// command carrying the configured credentials.
func (r *Responder) HandleConnection(ctx context.Context, env domain.Envelope) error {
	if env.Payload != domain.PresenceAnnouncement {
		return nil
	}

	if r.opts.BotUsername == "" || r.opts.BotPassword == "" {
		return ErrNoCredentials
	}

	payload, err := r.codec.EncodePayload(domain.LoginRequest{
		Username: r.opts.BotUsername,
		Password: r.opts.BotPassword,
	})
	if err != nil {
		return err
	}

	login := domain.NewEnvelope(r.opts.Platform, domain.ServiceMatrixLogin, domain.ActorAssistant, payload)
	if err := r.publisher.Publish(ctx, domain.SendSubject(r.opts.Platform), login); err != nil {
		return err
	}

	r.metrics.Reply("login")
	r.logger.Info(logging.Assistant, logging.Reply, "sent bot credentials", map[logging.ExtraKey]any{
		logging.Identity: r.opts.BotUsername,
		logging.EventID:  env.EventID,
	})
	return nil
}

// HandleChatMessage replies into the room as the bot that received msg.
func (r *Responder) HandleChatMessage(ctx context.Context, env domain.Envelope) error {
	if env.Payload == domain.PresenceAnnouncement {
		return r.HandleConnection(ctx, env)
	}

	var msg domain.RoomMessage
	if err := r.codec.DecodePayload(domain.SubjectChatMessages, env.Payload, &msg); err != nil {
		return err
	}

	username := domain.NormalizeIdentity(msg.Receiver)
	if username == "" {
		username = "unknown"
	}
	roomID := msg.RoomID
	if roomID == "" {
		roomID = "unknown_room"
	}

	text, err := r.replier.Reply(ctx, msg)
	if err != nil {
		return fmt.Errorf("failed to compute reply: %w", err)
	}

	payload, err := r.codec.EncodePayload(domain.ChatReply{
		Username: username,
		RoomID:   roomID,
		Message:  text,
	})
	if err != nil {
		return err
	}

	reply := domain.NewEnvelope(r.opts.Platform, domain.ServiceMatrixMessage, domain.ActorAssistant, payload)
	if err := r.publisher.Publish(ctx, domain.SendSubject(r.opts.Platform), reply); err != nil {
		return err
	}

	r.metrics.Reply(r.replier.Kind())
	r.logger.Debug(logging.Assistant, logging.Reply, "replied to room message", map[logging.ExtraKey]any{
		logging.Identity: username,
		logging.RoomID:   roomID,
	})
	return nil
}

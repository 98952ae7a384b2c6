package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hilthontt/relay/internal/infrastructure/logging"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

const defaultMailboxSize = 256

var ErrBusClosed = errors.New("bus closed")

// Handler processes one message. Handlers of one subscription never run
// concurrently with each other.
type Handler func(ctx context.Context, msg *nats.Msg)

// Bus gives every subscription its own mailbox drained by a single goroutine,
// so messages on one subject are handled in order while subjects proceed
// independently.
type Bus struct {
	conn        *nats.Conn
	logger      logging.Logger
	mailboxSize int

	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

type Subscription struct {
	Subject string
	sub     *nats.Subscription
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewBus(conn *nats.Conn, logger logging.Logger, mailboxSize int) *Bus {
	if mailboxSize <= 0 {
		mailboxSize = defaultMailboxSize
	}
	return &Bus{
		conn:        conn,
		logger:      logger,
		mailboxSize: mailboxSize,
		subs:        make(map[*Subscription]struct{}),
	}
}

func (b *Bus) Publish(ctx context.Context, subject string, data []byte) error {
	msg := nats.NewMsg(subject)
	msg.Data = data
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(msg.Header))

	if err := b.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("failed to publish on %s: %w", subject, err)
	}
	return nil
}

// Subscribe starts a mailbox for subject. A non-empty queue joins a queue
// group so only one member receives each message.
func (b *Bus) Subscribe(ctx context.Context, subject, queue string, handler Handler) (*Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBusClosed
	}

	mailbox := make(chan *nats.Msg, b.mailboxSize)

	var (
		sub *nats.Subscription
		err error
	)
	if queue != "" {
		sub, err = b.conn.ChanQueueSubscribe(subject, queue, mailbox)
	} else {
		sub, err = b.conn.ChanSubscribe(subject, mailbox)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	s := &Subscription{
		Subject: subject,
		sub:     sub,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	b.subs[s] = struct{}{}

	go b.drain(subCtx, s, mailbox, handler)

	b.logger.Info(logging.Bus, logging.Subscribe, "subscribed", map[logging.ExtraKey]any{
		logging.Subject: subject,
		"queue":         queue,
	})

	return s, nil
}

func (b *Bus) drain(ctx context.Context, s *Subscription, mailbox <-chan *nats.Msg, handler Handler) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-mailbox:
			b.dispatch(ctx, msg, handler)
		}
	}
}

func (b *Bus) dispatch(ctx context.Context, msg *nats.Msg, handler Handler) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error(logging.Bus, logging.Subscribe, "handler panicked", map[logging.ExtraKey]any{
				logging.Subject:      msg.Subject,
				logging.ErrorMessage: fmt.Sprint(r),
			})
		}
	}()

	msgCtx := otel.GetTextMapPropagator().Extract(ctx, propagation.HeaderCarrier(msg.Header))
	handler(msgCtx, msg)
}

// Unsubscribe stops delivery and waits for the in-flight handler to return.
func (b *Bus) Unsubscribe(s *Subscription) error {
	b.mu.Lock()
	delete(b.subs, s)
	b.mu.Unlock()

	err := s.sub.Unsubscribe()
	s.cancel()
	<-s.done
	if err != nil && !errors.Is(err, nats.ErrConnectionClosed) && !errors.Is(err, nats.ErrBadSubscription) {
		return fmt.Errorf("failed to unsubscribe from %s: %w", s.Subject, err)
	}
	return nil
}

func (b *Bus) Close() {
	b.mu.Lock()
	b.closed = true
	subs := make([]*Subscription, 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		_ = b.Unsubscribe(s)
	}
}

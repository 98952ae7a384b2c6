package messaging

import (
	"fmt"
	"time"

	"github.com/hilthontt/relay/internal/infrastructure/logging"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

type Options struct {
	URL                 string
	Name                string
	PingInterval        time.Duration
	MaxPingsOutstanding int
}

type NATS struct {
	Conn   *nats.Conn
	logger logging.Logger
}

func NewNATS(opts Options, logger logging.Logger) (*NATS, error) {
	conn, err := nats.Connect(opts.URL,
		nats.Name(opts.Name),
		nats.PingInterval(opts.PingInterval),
		nats.MaxPingsOutstanding(opts.MaxPingsOutstanding),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn(logging.NATS, logging.ExternalService, "disconnected", map[logging.ExtraKey]any{
					logging.ErrorMessage: err.Error(),
				})
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info(logging.NATS, logging.ExternalService, "reconnected", map[logging.ExtraKey]any{
				"url": c.ConnectedUrl(),
			})
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATS{Conn: conn, logger: logger}, nil
}

func (n *NATS) JetStream() (jetstream.JetStream, error) {
	js, err := jetstream.New(n.Conn)
	if err != nil {
		return nil, fmt.Errorf("failed to open JetStream: %w", err)
	}
	return js, nil
}

// Close drains pending messages before closing the connection.
func (n *NATS) Close() {
	if n.Conn == nil {
		return
	}
	if err := n.Conn.Drain(); err != nil {
		n.Conn.Close()
	}
}

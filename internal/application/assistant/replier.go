package assistant

import (
	"context"

	"github.com/hilthontt/relay/internal/domain"
)

// Replier produces the text sent back into the room for msg.
type Replier interface {
	Reply(ctx context.Context, msg domain.RoomMessage) (string, error)
	Kind() string
}

// EchoReplier answers with the received message.
type EchoReplier struct{}

func (EchoReplier) Reply(_ context.Context, msg domain.RoomMessage) (string, error) {
	return msg.Message, nil
}

func (EchoReplier) Kind() string { return "echo" }

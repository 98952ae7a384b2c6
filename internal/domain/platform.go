package domain

import "context"

type ProvisionResult int

const (
	ProvisionCreated ProvisionResult = iota
	ProvisionAlreadyExists
)

func (r ProvisionResult) String() string {
	switch r {
	case ProvisionCreated:
		return "created"
	case ProvisionAlreadyExists:
		return "already_exists"
	default:
		return "unknown"
	}
}

// InboundMessage is a text message observed by a platform client.
type InboundMessage struct {
	RoomID    string
	RoomName  string
	Sender    string
	Body      string
	Timestamp int64
}

type EventHandlers struct {
	OnInvite  func(ctx context.Context, invite RoomInvite)
	OnMessage func(ctx context.Context, msg InboundMessage)
}

// PlatformClient is an authenticated connection to the chat platform.
type PlatformClient interface {
	UserID() string
	// Sync blocks delivering events to handlers until ctx is cancelled.
	Sync(ctx context.Context, handlers EventHandlers) error
	PendingInvites(ctx context.Context) ([]RoomInvite, error)
	JoinRoom(ctx context.Context, roomID string) error
	SendText(ctx context.Context, roomID, body string) error
	Close(ctx context.Context) error
}

type PlatformConnector interface {
	Login(ctx context.Context, identity, password string) (PlatformClient, Descriptor, error)
	Restore(ctx context.Context, descriptor Descriptor) (PlatformClient, error)
}

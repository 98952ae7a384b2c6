package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	TimestampLayout = "2006-01-02T15:04:05Z"

	PlatformMatrix = "Matrix"
	EventTypePost  = "post"

	ServiceUpdate        = "update"
	ServiceMatrixLogin   = "matrix-login"
	ServiceMatrixMessage = "matrix-message"
	ServiceChatMessage   = "chat-message"

	ActorGateway   = "Matrix-Gateway"
	ActorAssistant = "Chat Assistance"

	SubjectConnection   = "bots.connection"
	SubjectChatMessages = "chat.messages"

	PresenceAnnouncement = "A new Matrix-Gateway service is running"
)

// Envelope is the common wrapper of every bus message. Payload carries a
// string-encoded structure that receivers decode again.
type Envelope struct {
	EventID   string `json:"event_id"`
	Timestamp string `json:"timestamp"`
	Platform  string `json:"platform"`
	Service   string `json:"service"`
	EventType string `json:"event_type"`
	Actor     string `json:"actor"`
	Payload   string `json:"payload"`
}

func NewEnvelope(platform, service, actor, payload string) Envelope {
	return Envelope{
		EventID:   uuid.NewString(),
		Timestamp: time.Now().UTC().Format(TimestampLayout),
		Platform:  platform,
		Service:   service,
		EventType: EventTypePost,
		Actor:     actor,
		Payload:   payload,
	}
}

// SendSubject is the subject the gateway of a platform listens on for
// commands, e.g. "send.matrix.message".
func SendSubject(platform string) string {
	return "send." + strings.ToLower(platform) + ".message"
}

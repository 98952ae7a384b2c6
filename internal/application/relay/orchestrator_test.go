package relay

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/hilthontt/relay/internal/domain"
	"github.com/hilthontt/relay/internal/infrastructure/events"
	"github.com/hilthontt/relay/internal/infrastructure/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type provisionCall struct {
	identity string
	password string
}

type sendCall struct {
	identity string
	roomID   string
	body     string
}

type fakeSessions struct {
	mu         sync.Mutex
	provisions []provisionCall
	sends      []sendCall
	sendErr    error
	provisionC chan provisionCall
	sendC      chan sendCall
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{
		provisionC: make(chan provisionCall, 8),
		sendC:      make(chan sendCall, 8),
	}
}

func (f *fakeSessions) Provision(_ context.Context, identity, password string) (domain.ProvisionResult, error) {
	call := provisionCall{identity: identity, password: password}
	f.mu.Lock()
	f.provisions = append(f.provisions, call)
	f.mu.Unlock()
	f.provisionC <- call
	return domain.ProvisionCreated, nil
}

func (f *fakeSessions) SendMessage(_ context.Context, identity, roomID, body string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	call := sendCall{identity: identity, roomID: roomID, body: body}
	f.mu.Lock()
	f.sends = append(f.sends, call)
	f.mu.Unlock()
	f.sendC <- call
	return nil
}

type published struct {
	subject string
	env     domain.Envelope
}

type recordingPublisher struct {
	mu   sync.Mutex
	sent []published
}

func (p *recordingPublisher) Publish(_ context.Context, subject string, env domain.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, published{subject: subject, env: env})
	return nil
}

func newTestOrchestrator(pub EnvelopePublisher, sessions Sessions) *Orchestrator {
	codec := events.NewCodec(logging.NewNop(), nil)
	o := NewOrchestrator(pub, nil, codec, Options{}, logging.NewNop(), nil)
	if sessions != nil {
		o.UseSessions(sessions)
	}
	return o
}

func TestHandleEnvelopeRoutesLogin(t *testing.T) {
	sessions := newFakeSessions()
	o := newTestOrchestrator(&recordingPublisher{}, sessions)

	env := domain.NewEnvelope(domain.PlatformMatrix, domain.ServiceMatrixLogin, domain.ActorAssistant, `{"username":"helper","password":"pw"}`)
	require.NoError(t, o.HandleEnvelope(context.Background(), env))

	assert.Equal(t, []provisionCall{{identity: "helper", password: "pw"}}, sessions.provisions)
	assert.Empty(t, sessions.sends)
}

func TestHandleEnvelopeRoutesMessage(t *testing.T) {
	sessions := newFakeSessions()
	o := newTestOrchestrator(&recordingPublisher{}, sessions)

	env := domain.NewEnvelope(domain.PlatformMatrix, domain.ServiceMatrixMessage, domain.ActorAssistant, `{'username': 'helper', 'room_id': '!r:s', 'message': 'hi'}`)
	require.NoError(t, o.HandleEnvelope(context.Background(), env))

	assert.Equal(t, []sendCall{{identity: "helper", roomID: "!r:s", body: "hi"}}, sessions.sends)
}

func TestHandleEnvelopeRejectsUnknownService(t *testing.T) {
	sessions := newFakeSessions()
	o := newTestOrchestrator(&recordingPublisher{}, sessions)

	env := domain.NewEnvelope(domain.PlatformMatrix, "matrix-dance", domain.ActorAssistant, `{}`)
	err := o.HandleEnvelope(context.Background(), env)
	assert.ErrorIs(t, err, domain.ErrUnroutableService)
	assert.Empty(t, sessions.provisions)
	assert.Empty(t, sessions.sends)
}

func TestHandleEnvelopeRejectsIncompletePayload(t *testing.T) {
	sessions := newFakeSessions()
	o := newTestOrchestrator(&recordingPublisher{}, sessions)

	missing := domain.NewEnvelope(domain.PlatformMatrix, domain.ServiceMatrixLogin, domain.ActorAssistant, `{"username":"helper"}`)
	assert.ErrorIs(t, o.HandleEnvelope(context.Background(), missing), domain.ErrMalformedEnvelope)

	garbage := domain.NewEnvelope(domain.PlatformMatrix, domain.ServiceMatrixMessage, domain.ActorAssistant, "not json")
	assert.ErrorIs(t, o.HandleEnvelope(context.Background(), garbage), domain.ErrMalformedEnvelope)

	assert.Empty(t, sessions.provisions)
	assert.Empty(t, sessions.sends)
}

func TestHandleEnvelopeReportsDeliveryFailure(t *testing.T) {
	sessions := newFakeSessions()
	sessions.sendErr = domain.ErrSessionNotFound
	o := newTestOrchestrator(&recordingPublisher{}, sessions)

	env := domain.NewEnvelope(domain.PlatformMatrix, domain.ServiceMatrixMessage, domain.ActorAssistant, `{"username":"ghost","room_id":"!r:s","message":"hi"}`)
	err := o.HandleEnvelope(context.Background(), env)
	assert.True(t, errors.Is(err, domain.ErrSessionNotFound))
}

func TestStartRequiresSessions(t *testing.T) {
	o := newTestOrchestrator(&recordingPublisher{}, nil)
	_, err := o.Start(context.Background())
	assert.Error(t, err)
}

func TestAnnouncePresence(t *testing.T) {
	pub := &recordingPublisher{}
	o := newTestOrchestrator(pub, newFakeSessions())

	require.NoError(t, o.AnnouncePresence(context.Background()))

	require.Len(t, pub.sent, 1)
	assert.Equal(t, domain.SubjectConnection, pub.sent[0].subject)
	env := pub.sent[0].env
	assert.Equal(t, domain.ServiceUpdate, env.Service)
	assert.Equal(t, domain.ActorGateway, env.Actor)
	assert.Equal(t, domain.EventTypePost, env.EventType)
	assert.Equal(t, domain.PresenceAnnouncement, env.Payload)
	assert.NotEmpty(t, env.EventID)
}

func TestForwardRoomMessage(t *testing.T) {
	pub := &recordingPublisher{}
	o := newTestOrchestrator(pub, newFakeSessions())

	msg := domain.RoomMessage{
		RoomID:    "!r:s",
		RoomName:  "Lobby",
		Sender:    "@alice:s",
		Receiver:  "@helper:s",
		Message:   "hello",
		Timestamp: json.RawMessage("1736683200000"),
	}
	require.NoError(t, o.ForwardRoomMessage(context.Background(), msg))

	require.Len(t, pub.sent, 1)
	assert.Equal(t, domain.SubjectChatMessages, pub.sent[0].subject)
	assert.Equal(t, domain.ServiceChatMessage, pub.sent[0].env.Service)

	var got domain.RoomMessage
	require.NoError(t, json.Unmarshal([]byte(pub.sent[0].env.Payload), &got))
	assert.Equal(t, msg, got)
}

func TestForwardChatReply(t *testing.T) {
	pub := &recordingPublisher{}
	o := newTestOrchestrator(pub, newFakeSessions())

	require.NoError(t, o.ForwardChatReply(context.Background(), domain.ChatReply{Username: "helper", RoomID: "!r:s", Message: "yo"}))

	require.Len(t, pub.sent, 1)
	assert.Equal(t, "send.matrix.message", pub.sent[0].subject)
	assert.Equal(t, domain.ServiceMatrixMessage, pub.sent[0].env.Service)
}

package sessions

import (
	"context"
	"errors"
	"sync"

	"github.com/hilthontt/relay/internal/domain"
)

type fakeClient struct {
	userID  string
	invites []domain.RoomInvite
	sendErr error
	syncErr error

	mu       sync.Mutex
	handlers chan domain.EventHandlers
	joined   []string
	sent     []string
	closed   bool
	synced   bool
	stopped  chan struct{}
}

func newFakeClient(userID string) *fakeClient {
	return &fakeClient{
		userID:   userID,
		handlers: make(chan domain.EventHandlers, 1),
		stopped:  make(chan struct{}),
	}
}

func (c *fakeClient) UserID() string { return c.userID }

func (c *fakeClient) Sync(ctx context.Context, handlers domain.EventHandlers) error {
	c.mu.Lock()
	c.synced = true
	c.mu.Unlock()

	if c.syncErr != nil {
		close(c.stopped)
		return c.syncErr
	}

	c.handlers <- handlers
	<-ctx.Done()
	close(c.stopped)
	return nil
}

func (c *fakeClient) PendingInvites(ctx context.Context) ([]domain.RoomInvite, error) {
	return c.invites, nil
}

func (c *fakeClient) JoinRoom(ctx context.Context, roomID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.joined = append(c.joined, roomID)
	return nil
}

func (c *fakeClient) SendText(ctx context.Context, roomID, body string) error {
	if c.sendErr != nil {
		return c.sendErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, roomID+"|"+body)
	return nil
}

func (c *fakeClient) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeClient) joinedRooms() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.joined...)
}

func (c *fakeClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type fakeConnector struct {
	password string
	clients  map[string]*fakeClient

	mu       sync.Mutex
	logins   int
	restored []*fakeClient
	syncErr  error
}

func (f *fakeConnector) Login(ctx context.Context, identity, password string) (domain.PlatformClient, domain.Descriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logins++

	if password != f.password {
		return nil, domain.Descriptor{}, domain.ErrAuthentication
	}

	userID := "@" + identity + ":example.org"
	client := newFakeClient(userID)
	client.syncErr = f.syncErr
	f.clients[identity] = client
	return client, domain.Descriptor{
		Identity:    identity,
		UserID:      userID,
		DeviceID:    "DEV",
		AccessToken: "token-" + identity,
		Homeserver:  "https://example.org",
	}, nil
}

func (f *fakeConnector) Restore(ctx context.Context, d domain.Descriptor) (domain.PlatformClient, error) {
	if d.AccessToken == "" {
		return nil, errors.New("no token")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	client := newFakeClient(d.UserID)
	f.restored = append(f.restored, client)
	return client, nil
}

func (f *fakeConnector) failSync(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.syncErr = err
}

func (f *fakeConnector) client(identity string) *fakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clients[identity]
}

func (f *fakeConnector) loginCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logins
}

type fakeProber struct {
	alive map[string]bool
}

func (p fakeProber) IsOwnerAlive(ctx context.Context, address string) bool {
	return p.alive[address]
}

type recordingForwarder struct {
	mu   sync.Mutex
	msgs []domain.RoomMessage
}

func (r *recordingForwarder) ForwardRoomMessage(ctx context.Context, msg domain.RoomMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return nil
}

func (r *recordingForwarder) messages() []domain.RoomMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.RoomMessage(nil), r.msgs...)
}

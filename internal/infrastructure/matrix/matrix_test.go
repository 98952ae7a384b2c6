package matrix

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hilthontt/relay/internal/domain"
	"github.com/hilthontt/relay/internal/infrastructure/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeHomeserver(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/_matrix/client/v3/login":
			var body struct {
				Password string `json:"password"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body.Password != "secret" {
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"errcode":"M_FORBIDDEN","error":"Invalid password"}`))
				return
			}
			_, _ = w.Write([]byte(`{"user_id":"@bot:localhost","access_token":"tok","device_id":"DEV"}`))
		case strings.Contains(r.URL.Path, "/send/m.room.message/"):
			if strings.Contains(r.URL.Path, "broken") {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"errcode":"M_UNKNOWN","error":"boom"}`))
				return
			}
			_, _ = w.Write([]byte(`{"event_id":"$event"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"errcode":"M_UNRECOGNIZED","error":"unknown"}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestLoginBuildsDescriptor(t *testing.T) {
	srv := fakeHomeserver(t)
	conn := NewConnector(srv.URL, "gw-1:8000", logging.NewNop())

	client, d, err := conn.Login(context.Background(), "bot", "secret")
	require.NoError(t, err)

	assert.Equal(t, "@bot:localhost", client.UserID())
	assert.Equal(t, domain.Descriptor{
		Identity:      "bot",
		UserID:        "@bot:localhost",
		DeviceID:      "DEV",
		AccessToken:   "tok",
		Homeserver:    srv.URL,
		OwnerInstance: "gw-1:8000",
	}, d)
}

func TestLoginRejectedIsAuthenticationError(t *testing.T) {
	srv := fakeHomeserver(t)
	conn := NewConnector(srv.URL, "gw-1:8000", logging.NewNop())

	_, _, err := conn.Login(context.Background(), "bot", "wrong")
	assert.ErrorIs(t, err, domain.ErrAuthentication)
}

func TestRestoreAndSend(t *testing.T) {
	srv := fakeHomeserver(t)
	conn := NewConnector(srv.URL, "gw-1:8000", logging.NewNop())
	ctx := context.Background()

	client, err := conn.Restore(ctx, domain.Descriptor{
		UserID:      "@bot:localhost",
		DeviceID:    "DEV",
		AccessToken: "tok",
		Homeserver:  srv.URL,
	})
	require.NoError(t, err)
	assert.Equal(t, "@bot:localhost", client.UserID())

	require.NoError(t, client.SendText(ctx, "!room:localhost", "hello"))
	assert.ErrorIs(t, client.SendText(ctx, "!broken:localhost", "hello"), domain.ErrDelivery)
	require.NoError(t, client.Close(ctx))
}

func TestRestoreRejectsIncompleteDescriptor(t *testing.T) {
	conn := NewConnector("https://example.org", "gw-1:8000", logging.NewNop())

	_, err := conn.Restore(context.Background(), domain.Descriptor{UserID: "@bot:example.org"})
	assert.ErrorIs(t, err, domain.ErrInvalidDescriptor)
}

const initialSync = `{
	"next_batch": "s1",
	"rooms": {
		"invite": {
			"!pending:localhost": {"invite_state": {"events": [
				{"type": "m.room.member", "state_key": "@bot:localhost", "sender": "@dave:localhost", "content": {"membership": "invite"}}
			]}}
		},
		"join": {
			"!lobby:localhost": {"timeline": {"events": [
				{"type": "m.room.message", "event_id": "$old", "sender": "@alice:localhost", "origin_server_ts": 1699999999000, "content": {"msgtype": "m.text", "body": "old"}}
			]}}
		}
	}
}`

const nextSync = `{
	"next_batch": "s2",
	"rooms": {
		"invite": {
			"!new:localhost": {"invite_state": {"events": [
				{"type": "m.room.member", "state_key": "@bot:localhost", "sender": "@alice:localhost", "content": {"membership": "invite"}}
			]}}
		},
		"join": {
			"!lobby:localhost": {"timeline": {"events": [
				{"type": "m.room.member", "event_id": "$inv", "state_key": "@carol:localhost", "sender": "@alice:localhost", "origin_server_ts": 1700000000000, "content": {"membership": "invite"}},
				{"type": "m.room.message", "event_id": "$img", "sender": "@alice:localhost", "origin_server_ts": 1700000001000, "content": {"msgtype": "m.image", "body": "cat.png", "url": "mxc://localhost/cat"}},
				{"type": "m.room.message", "event_id": "$txt", "sender": "@alice:localhost", "origin_server_ts": 1700000002000, "content": {"msgtype": "m.text", "body": "hello"}}
			]}}
		}
	}
}`

func syncHomeserver(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/filter"):
			_, _ = w.Write([]byte(`{"filter_id":"f1"}`))
		case r.URL.Path == "/_matrix/client/v3/sync":
			switch r.URL.Query().Get("since") {
			case "":
				_, _ = w.Write([]byte(initialSync))
			case "s1":
				_, _ = w.Write([]byte(nextSync))
			default:
				select {
				case <-r.Context().Done():
				case <-time.After(20 * time.Millisecond):
				}
				_, _ = w.Write([]byte(`{"next_batch":"s2"}`))
			}
		case strings.Contains(r.URL.Path, "/state/m.room.name"):
			_, _ = w.Write([]byte(`{"name":"Lobby"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"errcode":"M_UNRECOGNIZED","error":"unknown"}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func restoreBot(t *testing.T, homeserver string) domain.PlatformClient {
	t.Helper()
	conn := NewConnector(homeserver, "gw-1:8000", logging.NewNop())
	client, err := conn.Restore(context.Background(), domain.Descriptor{
		UserID:      "@bot:localhost",
		DeviceID:    "DEV",
		AccessToken: "tok",
		Homeserver:  homeserver,
	})
	require.NoError(t, err)
	return client
}

func TestSyncDispatchesOwnInvitesAndTextMessages(t *testing.T) {
	srv := syncHomeserver(t)
	client := restoreBot(t, srv.URL)

	var (
		mu       sync.Mutex
		invites  []domain.RoomInvite
		messages []domain.InboundMessage
	)
	handlers := domain.EventHandlers{
		OnInvite: func(ctx context.Context, invite domain.RoomInvite) {
			mu.Lock()
			defer mu.Unlock()
			invites = append(invites, invite)
		},
		OnMessage: func(ctx context.Context, msg domain.InboundMessage) {
			mu.Lock()
			defer mu.Unlock()
			messages = append(messages, msg)
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = client.Sync(ctx, handlers)
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(messages) > 0
	}, 5*time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("sync did not stop after cancel")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []domain.RoomInvite{{RoomID: "!new:localhost", Inviter: "@alice:localhost"}}, invites)
	require.Len(t, messages, 1)
	assert.Equal(t, domain.InboundMessage{
		RoomID:    "!lobby:localhost",
		RoomName:  "Lobby",
		Sender:    "@alice:localhost",
		Body:      "hello",
		Timestamp: 1700000002000,
	}, messages[0])
}

func TestPendingInvitesReadsInviteState(t *testing.T) {
	srv := syncHomeserver(t)
	client := restoreBot(t, srv.URL)

	invites, err := client.PendingInvites(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.RoomInvite{{RoomID: "!pending:localhost", Inviter: "@dave:localhost"}}, invites)
}

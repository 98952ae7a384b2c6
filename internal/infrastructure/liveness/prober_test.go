package liveness

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hilthontt/relay/internal/infrastructure/logging"
	"github.com/stretchr/testify/assert"
)

func TestIsOwnerAlive(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer failing.Close()

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer slow.Close()

	closed := httptest.NewServer(http.NotFoundHandler())
	closedAddr := closed.URL
	closed.Close()

	p := NewProber(Options{Timeout: 200 * time.Millisecond}, logging.NewNop(), nil)
	ctx := context.Background()

	assert.True(t, p.IsOwnerAlive(ctx, healthy.URL))
	assert.True(t, p.IsOwnerAlive(ctx, strings.TrimPrefix(healthy.URL, "http://")))
	assert.False(t, p.IsOwnerAlive(ctx, failing.URL))
	assert.False(t, p.IsOwnerAlive(ctx, slow.URL))
	assert.False(t, p.IsOwnerAlive(ctx, closedAddr))
	assert.False(t, p.IsOwnerAlive(ctx, ""))
}

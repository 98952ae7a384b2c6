package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hilthontt/relay/internal/domain"
	"github.com/hilthontt/relay/internal/infrastructure/configs"
	"github.com/hilthontt/relay/internal/infrastructure/logging"
	"github.com/hilthontt/relay/internal/infrastructure/metrics"
	"github.com/hilthontt/relay/internal/infrastructure/ratelimiter"
	botsHandler "github.com/hilthontt/relay/internal/presentation/handler/bots"
	healthHandler "github.com/hilthontt/relay/internal/presentation/handler/health"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopRelay struct{ forwarded int }

func (*nopRelay) AnnouncePresence(context.Context) error { return nil }
func (n *nopRelay) ForwardRoomMessage(context.Context, domain.RoomMessage) error {
	n.forwarded++
	return nil
}

type nopSessions struct{}

func (nopSessions) Provision(context.Context, string, string) (domain.ProvisionResult, error) {
	return domain.ProvisionCreated, nil
}
func (nopSessions) Remove(context.Context, string) (bool, error) { return false, nil }
func (nopSessions) List(context.Context) ([]string, error)       { return []string{}, nil }

func newTestApp(t *testing.T, limiter ratelimiter.Limiter) (http.Handler, *nopRelay) {
	t.Helper()

	reg := prometheus.NewRegistry()
	relay := &nopRelay{}
	app := NewApplication(
		configs.HTTPConfig{},
		healthHandler.NewHandler("test:8000", healthHandler.GatewayBanner),
		botsHandler.NewHandler(relay, nopSessions{}, logging.NewNop()),
		nil,
		logging.NewNop(),
		limiter,
		metrics.New(reg),
		reg,
	)
	return app.Mount(), relay
}

func serve(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

func TestRoutes(t *testing.T) {
	h, _ := newTestApp(t, nil)

	for _, path := range []string{"/health", "/healthz", "/ready", "/live"} {
		assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, path, "").Code, path)
	}

	rec := serve(h, http.MethodGet, "/", "")
	assert.JSONEq(t, `{"message":"Matrix-Gateway Microservice is running!"}`, rec.Body.String())

	rec = serve(h, http.MethodGet, "/bots", "")
	assert.JSONEq(t, `{"bots":[]}`, rec.Body.String())

	// no session sender configured
	assert.Equal(t, http.StatusNotFound, serve(h, http.MethodPost, "/messages/send", "{}").Code)
}

func TestMetricsEndpointExposesRequests(t *testing.T) {
	h, _ := newTestApp(t, nil)

	serve(h, http.MethodGet, "/health", "")
	rec := serve(h, http.MethodGet, "/metrics", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "relay_http_requests_total")
}

func TestRateLimiterRejectsBurst(t *testing.T) {
	limiter := ratelimiter.New(ratelimiter.Options{MaxRatePerSecond: 1, MaxBurst: 1})
	t.Cleanup(limiter.Close)
	h, _ := newTestApp(t, limiter)

	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/bots", "").Code)

	rec := serve(h, http.MethodGet, "/bots", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	// health stays reachable for peer probes
	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/health", "").Code)
}

func TestPreflight(t *testing.T) {
	h, relay := newTestApp(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/bots/chat_message", nil)
	req.Header.Set("Origin", "https://ops.example.org")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://ops.example.org", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Zero(t, relay.forwarded)
}

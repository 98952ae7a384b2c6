package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHealth(t *testing.T) {
	h := NewHandler("10.0.0.5:8000", GatewayBanner)

	rec := httptest.NewRecorder()
	h.GetHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "10.0.0.5:8000", body.Instance)
	assert.NotEmpty(t, body.Uptime)
}

func TestGetRoot(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHandler("", GatewayBanner).GetRoot(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Matrix-Gateway Microservice is running!"}`, rec.Body.String())
}

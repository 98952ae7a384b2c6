package events

import (
	"testing"

	"github.com/hilthontt/relay/internal/domain"
	"github.com/hilthontt/relay/internal/infrastructure/logging"
	"github.com/hilthontt/relay/internal/infrastructure/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCodec(t *testing.T) (*Codec, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewCodec(logging.NewNop(), metrics.New(reg)), reg
}

func lenientCount(t *testing.T, reg *prometheus.Registry) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() == "relay_payload_lenient_decodes_total" {
			return mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	return 0
}

func TestDecodeEnvelopeStrict(t *testing.T) {
	codec, reg := newTestCodec(t)

	env := domain.NewEnvelope(domain.PlatformMatrix, domain.ServiceMatrixMessage, domain.ActorAssistant, `{"username":"bot"}`)
	data, err := codec.Encode(env)
	require.NoError(t, err)

	got, err := codec.DecodeEnvelope("send.matrix.message", data)
	require.NoError(t, err)
	assert.Equal(t, env, got)
	assert.Equal(t, 0.0, lenientCount(t, reg))
}

func TestDecodePayloadFallsBackToQuoteNormalisation(t *testing.T) {
	codec, reg := newTestCodec(t)

	var req domain.LoginRequest
	err := codec.DecodePayload("send.matrix.message", `{'username': 'bot', 'password': 'secret'}`, &req)
	require.NoError(t, err)

	assert.Equal(t, domain.LoginRequest{Username: "bot", Password: "secret"}, req)
	assert.Equal(t, 1.0, lenientCount(t, reg))
}

func TestDecodePayloadPrefersStrictJSON(t *testing.T) {
	codec, reg := newTestCodec(t)

	var reply domain.ChatReply
	err := codec.DecodePayload("x", `{"username":"bot","room_id":"!r:s","message":"it's fine"}`, &reply)
	require.NoError(t, err)

	assert.Equal(t, "it's fine", reply.Message)
	assert.Equal(t, 0.0, lenientCount(t, reg))
}

func TestDecodePayloadApostropheLimitation(t *testing.T) {
	codec, _ := newTestCodec(t)

	var reply domain.ChatReply
	err := codec.DecodePayload("x", `{'message': 'it's broken'}`, &reply)
	assert.ErrorIs(t, err, domain.ErrMalformedEnvelope)
}

func TestDecodeEnvelopeWrapsBareLegacyPayload(t *testing.T) {
	codec, _ := newTestCodec(t)

	data := []byte(`{'room_id': '!r:s', 'message': 'hi'}`)
	env, err := codec.DecodeEnvelope("chat.messages", data)
	require.NoError(t, err)
	assert.Empty(t, env.Service)

	var msg domain.RoomMessage
	require.NoError(t, codec.DecodePayload("chat.messages", env.Payload, &msg))
	assert.Equal(t, "!r:s", msg.RoomID)
	assert.Equal(t, "hi", msg.Message)
}

func TestDecodeEnvelopeAcceptsObjectPayload(t *testing.T) {
	codec, _ := newTestCodec(t)

	data := []byte(`{"event_id":"e1","service":"matrix-login","payload":{"username":"bot","password":"pw"}}`)
	env, err := codec.DecodeEnvelope("send.matrix.message", data)
	require.NoError(t, err)
	assert.Equal(t, "matrix-login", env.Service)
	assert.JSONEq(t, `{"username":"bot","password":"pw"}`, env.Payload)
}

func TestDecodeEnvelopeRejectsGarbage(t *testing.T) {
	codec, _ := newTestCodec(t)

	for _, data := range []string{"not json", `["a"]`, `{"payload":`} {
		_, err := codec.DecodeEnvelope("x", []byte(data))
		assert.ErrorIs(t, err, domain.ErrMalformedEnvelope, data)
	}
}

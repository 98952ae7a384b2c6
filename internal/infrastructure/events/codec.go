package events

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/hilthontt/relay/internal/domain"
	"github.com/hilthontt/relay/internal/infrastructure/logging"
	"github.com/hilthontt/relay/internal/infrastructure/metrics"
)

// Codec encodes envelopes and decodes envelopes and their payloads. Strict
// JSON is always tried first; single-quoted data is accepted as a fallback
// and every such decode is logged and counted. Values containing
// apostrophes do not survive the fallback.
type Codec struct {
	logger  logging.Logger
	metrics *metrics.Metrics
}

func NewCodec(logger logging.Logger, m *metrics.Metrics) *Codec {
	return &Codec{logger: logger, metrics: m}
}

func (c *Codec) Encode(env domain.Envelope) ([]byte, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal envelope: %w", err)
	}
	return data, nil
}

// EncodePayload renders v as the string carried in Envelope.Payload.
func (c *Codec) EncodePayload(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}
	return string(data), nil
}

// DecodeEnvelope parses a bus message. An object without a "payload" key is
// a bare legacy payload; it is wrapped so handlers see a uniform envelope.
func (c *Codec) DecodeEnvelope(subject string, data []byte) (domain.Envelope, error) {
	var fields map[string]json.RawMessage
	if err := c.unmarshal(subject, data, &fields); err != nil {
		return domain.Envelope{}, err
	}
	data = normalizedIfNeeded(data)

	raw, ok := fields["payload"]
	if !ok {
		return domain.Envelope{Payload: string(data)}, nil
	}

	var env domain.Envelope
	if err := json.Unmarshal(data, &env); err == nil {
		return env, nil
	}

	// payload may be a nested object rather than an encoded string
	var loose struct {
		domain.Envelope
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &loose); err != nil {
		return domain.Envelope{}, fmt.Errorf("%w: %v", domain.ErrMalformedEnvelope, err)
	}
	env = loose.Envelope
	env.Payload = string(raw)

	return env, nil
}

// DecodePayload parses an envelope payload into v.
func (c *Codec) DecodePayload(subject, payload string, v any) error {
	return c.unmarshal(subject, []byte(payload), v)
}

func (c *Codec) unmarshal(subject string, data []byte, v any) error {
	strictErr := json.Unmarshal(data, v)
	if strictErr == nil {
		return nil
	}

	if !bytes.ContainsRune(data, '\'') {
		return fmt.Errorf("%w: %v", domain.ErrMalformedEnvelope, strictErr)
	}

	if err := json.Unmarshal(normalizeQuotes(data), v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMalformedEnvelope, strictErr)
	}

	c.metrics.LenientDecode()
	c.logger.Warn(logging.Bus, logging.Decode, "decoded payload after quote normalisation", map[logging.ExtraKey]any{
		logging.Subject: subject,
	})
	return nil
}

func normalizeQuotes(data []byte) []byte {
	return bytes.ReplaceAll(data, []byte("'"), []byte(`"`))
}

func normalizedIfNeeded(data []byte) []byte {
	if json.Valid(data) {
		return data
	}
	return normalizeQuotes(data)
}

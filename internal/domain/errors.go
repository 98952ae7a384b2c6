package domain

import "errors"

var (
	ErrAuthentication     = errors.New("authentication failed")
	ErrSessionNotFound    = errors.New("session not found")
	ErrDelivery           = errors.New("message delivery failed")
	ErrMalformedEnvelope  = errors.New("malformed envelope")
	ErrUnroutableService  = errors.New("unroutable service")
	ErrInvalidDescriptor  = errors.New("invalid session descriptor")
	ErrMissingCredentials = errors.New("missing credentials")
)

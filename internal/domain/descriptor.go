package domain

import (
	"context"
	"strings"
)

// Descriptor is the registry record of a live bot session. The JSON shape is
// shared with every gateway instance reading the same registry.
type Descriptor struct {
	Identity      string `json:"-"`
	UserID        string `json:"user_id"`
	DeviceID      string `json:"device_id"`
	AccessToken   string `json:"access_token"`
	Homeserver    string `json:"homeserver"`
	OwnerInstance string `json:"instance_ip"`
}

func (d Descriptor) Validate() error {
	if d.UserID == "" || d.AccessToken == "" || d.Homeserver == "" {
		return ErrInvalidDescriptor
	}
	return nil
}

// Registry maps identities to descriptors. Writes are last-writer-wins.
type Registry interface {
	Put(ctx context.Context, identity string, descriptor Descriptor) error
	Get(ctx context.Context, identity string) (Descriptor, error)
	Delete(ctx context.Context, identity string) error
	Exists(ctx context.Context, identity string) (bool, error)
	List(ctx context.Context) ([]string, error)
}

// NormalizeIdentity reduces "@name:server" and "name" to "name".
func NormalizeIdentity(identity string) string {
	identity = strings.TrimSpace(identity)
	identity = strings.TrimPrefix(identity, "@")
	if i := strings.Index(identity, ":"); i >= 0 {
		identity = identity[:i]
	}
	return identity
}

// Package matrix adapts mautrix to the platform client used by the session
// manager.
package matrix

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hilthontt/relay/internal/domain"
	"github.com/hilthontt/relay/internal/infrastructure/logging"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/id"
)

const deviceDisplayName = "relay"

type Connector struct {
	homeserver string
	instance   string
	logger     logging.Logger
}

// NewConnector logs in against homeserver. instance is recorded as the owner
// of every session this process creates.
func NewConnector(homeserver, instance string, logger logging.Logger) *Connector {
	return &Connector{
		homeserver: strings.TrimRight(homeserver, "/"),
		instance:   instance,
		logger:     logger,
	}
}

func (c *Connector) Login(ctx context.Context, identity, password string) (domain.PlatformClient, domain.Descriptor, error) {
	cli, err := mautrix.NewClient(c.homeserver, "", "")
	if err != nil {
		return nil, domain.Descriptor{}, fmt.Errorf("failed to create matrix client: %w", err)
	}

	resp, err := cli.Login(ctx, &mautrix.ReqLogin{
		Type: mautrix.AuthTypePassword,
		Identifier: mautrix.UserIdentifier{
			Type: mautrix.IdentifierTypeUser,
			User: identity,
		},
		Password:                 password,
		InitialDeviceDisplayName: deviceDisplayName,
		StoreCredentials:         true,
	})
	if err != nil {
		if isAuthError(err) {
			return nil, domain.Descriptor{}, fmt.Errorf("%w: %v", domain.ErrAuthentication, err)
		}
		return nil, domain.Descriptor{}, fmt.Errorf("failed to login %s: %w", identity, err)
	}

	descriptor := domain.Descriptor{
		Identity:      identity,
		UserID:        resp.UserID.String(),
		DeviceID:      resp.DeviceID.String(),
		AccessToken:   resp.AccessToken,
		Homeserver:    c.homeserver,
		OwnerInstance: c.instance,
	}

	return newClient(cli, c.logger), descriptor, nil
}

// Restore rebuilds a client from a stored access token without logging in.
func (c *Connector) Restore(ctx context.Context, descriptor domain.Descriptor) (domain.PlatformClient, error) {
	if err := descriptor.Validate(); err != nil {
		return nil, err
	}

	cli, err := mautrix.NewClient(descriptor.Homeserver, id.UserID(descriptor.UserID), descriptor.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to restore matrix client: %w", err)
	}
	cli.DeviceID = id.DeviceID(descriptor.DeviceID)

	return newClient(cli, c.logger), nil
}

func isAuthError(err error) bool {
	return errors.Is(err, mautrix.MForbidden) ||
		errors.Is(err, mautrix.MUserDeactivated) ||
		errors.Is(err, mautrix.MUnknownToken)
}

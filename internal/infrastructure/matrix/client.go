package matrix

import (
	"context"
	"errors"
	"fmt"

	"github.com/hilthontt/relay/internal/domain"
	"github.com/hilthontt/relay/internal/infrastructure/logging"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

type Client struct {
	cli    *mautrix.Client
	logger logging.Logger
}

func newClient(cli *mautrix.Client, logger logging.Logger) *Client {
	return &Client{cli: cli, logger: logger}
}

func (c *Client) UserID() string {
	return c.cli.UserID.String()
}

// Sync runs the long-poll loop until ctx is cancelled. Events from before the
// first sync are skipped; PendingInvites covers invites received meanwhile.
func (c *Client) Sync(ctx context.Context, handlers domain.EventHandlers) error {
	syncer := mautrix.NewDefaultSyncer()
	syncer.OnSync(c.cli.DontProcessOldEvents)

	if handlers.OnInvite != nil {
		syncer.OnEventType(event.StateMember, func(ctx context.Context, evt *event.Event) {
			if !c.isInviteForMe(evt) {
				return
			}
			handlers.OnInvite(ctx, domain.RoomInvite{
				RoomID:  evt.RoomID.String(),
				Inviter: evt.Sender.String(),
			})
		})
	}

	if handlers.OnMessage != nil {
		syncer.OnEventType(event.EventMessage, func(ctx context.Context, evt *event.Event) {
			content := evt.Content.AsMessage()
			if content.MsgType != event.MsgText && content.MsgType != event.MsgNotice {
				return
			}
			handlers.OnMessage(ctx, domain.InboundMessage{
				RoomID:    evt.RoomID.String(),
				RoomName:  c.roomName(ctx, evt.RoomID),
				Sender:    evt.Sender.String(),
				Body:      content.Body,
				Timestamp: evt.Timestamp,
			})
		})
	}

	c.cli.Syncer = syncer

	err := c.cli.SyncWithContext(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("sync stopped: %w", err)
	}
	return nil
}

func (c *Client) isInviteForMe(evt *event.Event) bool {
	member := evt.Content.AsMember()
	return member.Membership == event.MembershipInvite && evt.GetStateKey() == c.cli.UserID.String()
}

// roomName falls back to the room ID when the room has no name.
func (c *Client) roomName(ctx context.Context, roomID id.RoomID) string {
	var content event.RoomNameEventContent
	if err := c.cli.StateEvent(ctx, roomID, event.StateRoomName, "", &content); err != nil || content.Name == "" {
		return roomID.String()
	}
	return content.Name
}

// PendingInvites lists rooms the user is currently invited to.
func (c *Client) PendingInvites(ctx context.Context) ([]domain.RoomInvite, error) {
	resp, err := c.cli.FullSyncRequest(ctx, mautrix.ReqSync{Timeout: 0})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch invites: %w", err)
	}

	invites := make([]domain.RoomInvite, 0, len(resp.Rooms.Invite))
	for roomID, room := range resp.Rooms.Invite {
		invite := domain.RoomInvite{RoomID: roomID.String()}
		for _, evt := range room.State.Events {
			if evt.Type.Type == event.StateMember.Type && evt.GetStateKey() == c.cli.UserID.String() {
				invite.Inviter = evt.Sender.String()
			}
		}
		invites = append(invites, invite)
	}
	return invites, nil
}

func (c *Client) JoinRoom(ctx context.Context, roomID string) error {
	if _, err := c.cli.JoinRoomByID(ctx, id.RoomID(roomID)); err != nil {
		return fmt.Errorf("failed to join %s: %w", roomID, err)
	}
	return nil
}

func (c *Client) SendText(ctx context.Context, roomID, body string) error {
	if _, err := c.cli.SendText(ctx, id.RoomID(roomID), body); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDelivery, err)
	}
	return nil
}

// Close stops syncing and releases idle connections. The access token stays
// valid so other instances can restore the session.
func (c *Client) Close(ctx context.Context) error {
	c.cli.StopSync()
	c.cli.Client.CloseIdleConnections()
	return nil
}

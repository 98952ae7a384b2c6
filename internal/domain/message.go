package domain

import (
	"encoding/json"
)

// RoomMessage is an inbound chat message forwarded to the bus. Timestamp is
// kept as raw JSON so numeric server timestamps and strings pass through as-is.
type RoomMessage struct {
	RoomID    string          `json:"room_id" validate:"required"`
	RoomName  string          `json:"room_name" validate:"required"`
	Sender    string          `json:"sender" validate:"required"`
	Receiver  string          `json:"receiver" validate:"required"`
	Message   string          `json:"message" validate:"required"`
	Timestamp json.RawMessage `json:"timestamp" validate:"required"`
}

type RoomInvite struct {
	RoomID  string
	Inviter string
}

// ChatReply asks the gateway to post Message into RoomID as Username.
type ChatReply struct {
	Username string `json:"username" validate:"required"`
	RoomID   string `json:"room_id" validate:"required"`
	Message  string `json:"message" validate:"required"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

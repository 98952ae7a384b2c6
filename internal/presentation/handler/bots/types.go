package bots

import (
	"bytes"
	stdjson "encoding/json"
)

type chatMessageRequest struct {
	RoomID    string             `json:"room_id" validate:"required"`
	RoomName  string             `json:"room_name" validate:"required"`
	Sender    string             `json:"sender" validate:"required"`
	Receiver  string             `json:"receiver" validate:"required"`
	Message   string             `json:"message" validate:"required"`
	Timestamp stdjson.RawMessage `json:"timestamp" validate:"required"`
}

// hasTimestamp treats null and the empty string as absent.
func (r chatMessageRequest) hasTimestamp() bool {
	ts := bytes.TrimSpace(r.Timestamp)
	return len(ts) > 0 && !bytes.Equal(ts, []byte("null")) && !bytes.Equal(ts, []byte(`""`))
}

type addBotRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type removeBotRequest struct {
	Username string `json:"username" validate:"required"`
}

type listBotsResponse struct {
	Bots []string `json:"bots"`
}

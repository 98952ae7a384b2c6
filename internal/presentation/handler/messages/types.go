package messages

type sendMessageRequest struct {
	Username string `json:"username" validate:"required"`
	RoomID   string `json:"room_id" validate:"required"`
	Message  string `json:"message" validate:"required"`
}

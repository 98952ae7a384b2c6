package messages

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/hilthontt/relay/internal/domain"
	"github.com/hilthontt/relay/internal/infrastructure/json"
	"github.com/hilthontt/relay/internal/infrastructure/logging"
)

type Sender interface {
	SendMessage(ctx context.Context, identity, roomID, body string) error
}

type Handler struct {
	sender   Sender
	validate *validator.Validate
	logger   logging.Logger
}

func NewHandler(sender Sender, logger logging.Logger) *Handler {
	return &Handler{
		sender:   sender,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

func (h *Handler) SendMessageHandler(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := json.Read(w, r, &req); err != nil || h.validate.Struct(req) != nil {
		json.WriteBadRequestError(w, "Missing required fields")
		return
	}

	err := h.sender.SendMessage(r.Context(), req.Username, req.RoomID, req.Message)
	switch {
	case err == nil:
		json.WriteMessage(w, http.StatusOK, fmt.Sprintf("Message sent to %s", req.RoomID))
	case errors.Is(err, domain.ErrSessionNotFound):
		json.WriteNotFoundError(w, fmt.Sprintf("Bot %s not found", req.Username))
	default:
		h.logger.Error(logging.Session, logging.Deliver, "failed to send message", map[logging.ExtraKey]any{
			logging.Identity:     req.Username,
			logging.RoomID:       req.RoomID,
			logging.ErrorMessage: err.Error(),
		})
		json.WriteInternalError(w, err.Error())
	}
}

package bots

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

const missingFields = "Missing required fields"

// Relay publishes gateway events on the bus.
type Relay interface {
	AnnouncePresence(ctx context.Context) error
	ForwardRoomMessage(ctx context.Context, msg domain.RoomMessage) error
}

type Sessions interface {
	Provision(ctx context.Context, identity, password string) (domain.ProvisionResult, error)
	Remove(ctx context.Context, identity string) (bool, error)
	List(ctx context.Context) ([]string, error)
}

type Handler struct {
	relay    Relay
	sessions Sessions
	validate *validator.Validate
	logger   logging.Logger
}

func NewHandler(relay Relay, sessions Sessions, logger logging.Logger) *Handler {
	return &Handler{
		relay:    relay,
		sessions: sessions,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

func (h *Handler) AskConnectionHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.relay.AnnouncePresence(r.Context()); err != nil {
		h.logger.Error(logging.Relay, logging.Publish, "failed to announce presence", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
		json.WriteInternalError(w, err.Error())
		return
	}
	json.WriteMessage(w, http.StatusOK, "Bot connection request sent")
}

// ChatMessageHandler injects a room message onto the bus as if a bot had
// observed it. Nothing is published unless every field is present.
func (h *Handler) ChatMessageHandler(w http.ResponseWriter, r *http.Request) {
	var req chatMessageRequest
	if err := json.Read(w, r, &req); err != nil {
		json.WriteBadRequestError(w, missingFields)
		return
	}
	if err := h.validate.Struct(req); err != nil || !req.hasTimestamp() {
		json.WriteBadRequestError(w, missingFields)
		return
	}

	msg := domain.RoomMessage{
		RoomID:    req.RoomID,
		RoomName:  req.RoomName,
		Sender:    req.Sender,
		Receiver:  req.Receiver,
		Message:   req.Message,
		Timestamp: req.Timestamp,
	}
	if err := h.relay.ForwardRoomMessage(r.Context(), msg); err != nil {
		h.logger.Error(logging.Relay, logging.Publish, "failed to forward chat message", map[logging.ExtraKey]any{
			logging.RoomID:       req.RoomID,
			logging.ErrorMessage: err.Error(),
		})
		json.WriteInternalError(w, err.Error())
		return
	}
	json.WriteMessage(w, http.StatusOK, "Chat message sent successfully")
}

func (h *Handler) AddBotHandler(w http.ResponseWriter, r *http.Request) {
	var req addBotRequest
	if err := json.Read(w, r, &req); err != nil || h.validate.Struct(req) != nil {
		json.WriteBadRequestError(w, missingFields)
		return
	}

	res, err := h.sessions.Provision(r.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrAuthentication), errors.Is(err, domain.ErrMissingCredentials):
			json.WriteBadRequestError(w, err.Error())
		default:
			h.logger.Error(logging.Session, logging.Provision, "failed to add bot", map[logging.ExtraKey]any{
				logging.Identity:     req.Username,
				logging.ErrorMessage: err.Error(),
			})
			json.WriteInternalError(w, err.Error())
		}
		return
	}

	if res == domain.ProvisionAlreadyExists {
		json.WriteMessage(w, http.StatusOK, "Bot already exists")
		return
	}
	json.WriteMessage(w, http.StatusOK, fmt.Sprintf("Bot %s added", req.Username))
}

func (h *Handler) RemoveBotHandler(w http.ResponseWriter, r *http.Request) {
	var req removeBotRequest
	if err := json.Read(w, r, &req); err != nil || h.validate.Struct(req) != nil {
		json.WriteBadRequestError(w, missingFields)
		return
	}

	removed, err := h.sessions.Remove(r.Context(), req.Username)
	if err != nil {
		h.logger.Error(logging.Session, logging.Remove, "failed to remove bot", map[logging.ExtraKey]any{
			logging.Identity:     req.Username,
			logging.ErrorMessage: err.Error(),
		})
		json.WriteInternalError(w, err.Error())
		return
	}

	if !removed {
		json.WriteMessage(w, http.StatusOK, "Bot not found")
		return
	}
	json.WriteMessage(w, http.StatusOK, fmt.Sprintf("Bot %s removed", req.Username))
}

func (h *Handler) ListBotsHandler(w http.ResponseWriter, r *http.Request) {
	identities, err := h.sessions.List(r.Context())
	if err != nil {
		h.logger.Error(logging.Session, logging.List, "failed to list bots", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
		json.WriteInternalError(w, "")
		return
	}
	_ = json.Write(w, http.StatusOK, listBotsResponse{Bots: identities})
}

package health

import (
	"net/http"
	"time"

	"github.com/hilthontt/relay/internal/infrastructure/json"
)

const GatewayBanner = "Matrix-Gateway Microservice is running!"

type Handler struct {
	instance  string
	banner    string
	startedAt time.Time
}

func NewHandler(instance, banner string) *Handler {
	return &Handler{instance: instance, banner: banner, startedAt: time.Now()}
}

// GetHealth is the target of peer liveness probes.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	data := healthResponse{
		Status:    "ok",
		Instance:  h.instance,
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(h.startedAt).Round(time.Second).String(),
	}
	_ = json.Write(w, http.StatusOK, data)
}

func (h *Handler) GetRoot(w http.ResponseWriter, r *http.Request) {
	json.WriteMessage(w, http.StatusOK, h.banner)
}

package health

import "time"

type healthResponse struct {
	Status    string    `json:"status"`
	Instance  string    `json:"instance,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    string    `json:"uptime"`
}

package json

import (
	"encoding/json"
	"net/http"
)

const maxBodyBytes = 1 << 20

func Write(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

func Read(w http.ResponseWriter, r *http.Request, data any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(data)
}

type MessageResponse struct {
	Message string `json:"message"`
}

func WriteMessage(w http.ResponseWriter, status int, msg string) {
	_ = Write(w, status, MessageResponse{Message: msg})
}

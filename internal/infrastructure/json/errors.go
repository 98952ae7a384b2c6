package json

import (
	"net/http"
	"strconv"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func WriteError(w http.ResponseWriter, status int, errMsg string) {
	_ = Write(w, status, ErrorResponse{Error: errMsg})
}

func WriteBadRequestError(w http.ResponseWriter, errMsg string) {
	WriteError(w, http.StatusBadRequest, errMsg)
}

func WriteNotFoundError(w http.ResponseWriter, errMsg string) {
	WriteError(w, http.StatusNotFound, errMsg)
}

// WriteInternalError hides err from the client; callers log it.
func WriteInternalError(w http.ResponseWriter, errMsg string) {
	if errMsg == "" {
		errMsg = "An unexpected error occurred"
	}
	WriteError(w, http.StatusInternalServerError, errMsg)
}

func WriteRateLimitError(w http.ResponseWriter, retryAfter int) {
	resp := ErrorResponse{
		Error:   http.StatusText(http.StatusTooManyRequests),
		Message: "Too many requests. Please try again later.",
	}

	if retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	}
	_ = Write(w, http.StatusTooManyRequests, resp)
}

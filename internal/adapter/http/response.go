package http

import (
	"encoding/json"
	"net/http"

	"github.com/noteflow/noteflow/pkg/apperror"
)

// Envelope is the uniform response body for all endpoints.
type Envelope struct {
	Status  bool        `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Code    string      `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// Success writes a 2xx envelope.
func Success(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, Envelope{Status: true, Message: "success", Data: data})
}

// Error writes an error envelope from any error, mapping it through the
// application error catalog so lock timeouts and rate limits keep their
// distinct codes.
func Error(w http.ResponseWriter, err error) {
	appErr := apperror.MapError(err)
	writeJSON(w, appErr.Status, Envelope{Status: false, Message: appErr.Message, Code: appErr.Code})
}

// ErrorMessage writes an error envelope with an explicit status and message.
func ErrorMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Envelope{Status: false, Message: message})
}

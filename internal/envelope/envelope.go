// Package envelope writes the standard {success, data|error} JSON response
// shape. It is a dependency-free leaf so packages that respond to HTTP
// requests without importing internal/httpserver (auth's middleware does
// this) still produce a response identical in shape to
// httpserver.Respond/RespondError, which write through it as well.
package envelope

import (
	"encoding/json"
	"net/http"
	"time"
)

type body struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Message string     `json:"message,omitempty"`
	Error   *errorBody `json:"error,omitempty"`
}

type errorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
	Timestamp string `json:"timestamp"`
}

// WriteData writes a success envelope.
func WriteData(w http.ResponseWriter, status int, data any) {
	write(w, status, body{Success: true, Data: data})
}

// WriteDataMessage writes a success envelope with an accompanying message.
func WriteDataMessage(w http.ResponseWriter, status int, data any, message string) {
	write(w, status, body{Success: true, Data: data, Message: message})
}

// WriteError writes a failure envelope with a machine-readable code.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteErrorDetails(w, status, code, message, nil)
}

// WriteErrorDetails writes a failure envelope including a details payload.
func WriteErrorDetails(w http.ResponseWriter, status int, code, message string, details any) {
	write(w, status, body{Error: &errorBody{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}})
}

func write(w http.ResponseWriter, status int, v body) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/beautymarket/backend/internal/apperror"
	"github.com/beautymarket/backend/internal/envelope"
)

// Respond writes a successful response wrapping data in the standard
// {success, data} envelope.
func Respond(w http.ResponseWriter, status int, data any) {
	envelope.WriteData(w, status, data)
}

// RespondMessage writes a successful response with an accompanying message
// (e.g. "shop approved") alongside data.
func RespondMessage(w http.ResponseWriter, status int, data any, message string) {
	envelope.WriteDataMessage(w, status, data, message)
}

// RespondError writes a failure envelope with a machine-readable code.
func RespondError(w http.ResponseWriter, status int, code string, message string) {
	envelope.WriteError(w, status, code, message)
}

// RespondErrorDetails writes a failure envelope including a details payload
// (validation field errors, conflicting resource IDs, etc).
func RespondErrorDetails(w http.ResponseWriter, status int, code string, message string, details any) {
	envelope.WriteErrorDetails(w, status, code, message, details)
}

// RespondAppError maps an apperror.Error (or any error) to the standard
// envelope, using the Kind's HTTP status. This is the single place request
// handling turns an internal error into a wire response.
func RespondAppError(w http.ResponseWriter, logger *slog.Logger, err error) {
	appErr, ok := apperror.As(err)
	if !ok {
		logger.Error("unclassified error reached HTTP edge", "error", err)
		RespondError(w, http.StatusInternalServerError, string(apperror.KindInternal), "internal error")
		return
	}

	if appErr.Kind == apperror.KindInternal {
		logger.Error("internal error", "error", appErr.Cause, "message", appErr.Message)
	}

	RespondError(w, appErr.Kind.HTTPStatus(), string(appErr.Kind), appErr.Message)
}

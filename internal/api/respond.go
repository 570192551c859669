package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Casting/internal/accounts"
	"github.com/MikeSquared-Agency/Casting/internal/analysis"
	"github.com/MikeSquared-Agency/Casting/internal/auth"
	"github.com/MikeSquared-Agency/Casting/internal/casting"
	"github.com/MikeSquared-Agency/Casting/internal/chat"
	"github.com/MikeSquared-Agency/Casting/internal/credits"
	"github.com/MikeSquared-Agency/Casting/internal/payment"
	"github.com/MikeSquared-Agency/Casting/internal/storage"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// statusFor maps domain errors to HTTP status codes. Unknown errors are 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, analysis.ErrEmptyPrompt),
		errors.Is(err, accounts.ErrValidation),
		errors.Is(err, casting.ErrValidation),
		errors.Is(err, casting.ErrInvalidStatus),
		errors.Is(err, chat.ErrEmptyMessage),
		errors.Is(err, chat.ErrMessageTooLong),
		errors.Is(err, chat.ErrSelfMessage),
		errors.Is(err, credits.ErrUnknownPackage),
		errors.Is(err, payment.ErrInvalidWebhook),
		errors.Is(err, storage.ErrUnsupportedType),
		errors.Is(err, storage.ErrFileTooLarge),
		errors.Is(err, storage.ErrInvalidSize),
		errors.Is(err, storage.ErrInvalidKind):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrExpiredToken):
		return http.StatusUnauthorized
	case errors.Is(err, credits.ErrInsufficientCredits):
		return http.StatusPaymentRequired
	case errors.Is(err, accounts.ErrForbidden), errors.Is(err, chat.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, accounts.ErrUserNotFound),
		errors.Is(err, accounts.ErrDancerNotFound),
		errors.Is(err, casting.ErrRequestNotFound),
		errors.Is(err, chat.ErrRecipientNotFound),
		errors.Is(err, chat.ErrMessageNotFound),
		errors.Is(err, credits.ErrUserNotFound),
		errors.Is(err, credits.ErrDancerNotFound),
		errors.Is(err, credits.ErrPurchaseNotFound):
		return http.StatusNotFound
	case errors.Is(err, accounts.ErrAlreadyRegistered):
		return http.StatusConflict
	case errors.Is(err, storage.ErrNotConfigured), errors.Is(err, credits.ErrWebhookUnsupported):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// fail writes err with its mapped status. Internal errors are logged and
// answered with a generic message.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, status, "internal server error")
		return
	}
	writeError(w, status, err.Error())
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(r *http.Request, name string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(name))
	return n
}

func caller(r *http.Request) *auth.Identity {
	return auth.FromContext(r.Context())
}

package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/capitalize-ai/chatrooms/internal/model"
	"github.com/capitalize-ai/chatrooms/internal/service"
	"github.com/capitalize-ai/chatrooms/pkg/logger"
)

const maxBodyBytes = 1 << 20

// retryAfterSeconds is suggested to callers when the model backend throttles.
const retryAfterSeconds = 30

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, &model.ErrorEvent{Code: code, Message: message})
}

// statusForCode maps service error codes to HTTP statuses.
var statusForCode = map[string]int{
	"invalid_room_id":       http.StatusBadRequest,
	"empty_prompt":          http.StatusBadRequest,
	"room_not_found":        http.StatusNotFound,
	"room_exists":           http.StatusConflict,
	"room_busy":             http.StatusConflict,
	"upstream_rejected":     http.StatusUnprocessableEntity,
	"upstream_rate_limited": http.StatusTooManyRequests,
	"upstream_unavailable":  http.StatusBadGateway,
	"store_unavailable":     http.StatusServiceUnavailable,
	"canceled":              http.StatusGatewayTimeout,
}

// writeServiceError writes the response for an error returned by the chat
// service. Unknown errors are logged and reported as internal.
func writeServiceError(w http.ResponseWriter, log *logger.Logger, err error) {
	code := service.Code(err)
	status, ok := statusForCode[code]
	if !ok {
		log.Error("unexpected service error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}

	body := &model.ErrorEvent{Code: code, Message: rootMessage(err)}
	if code == "upstream_rate_limited" {
		body.RetryAfter = retryAfterSeconds
		w.Header().Set("Retry-After", "30")
	}
	writeJSON(w, status, body)
}

// rootMessage returns the message of the caller-facing kind, hiding
// upstream and storage details.
func rootMessage(err error) string {
	for _, kind := range []error{
		service.ErrInvalidRoomID, service.ErrEmptyPrompt, service.ErrRoomNotFound,
		service.ErrRoomExists, service.ErrRoomBusy, service.ErrUpstreamRateLimited,
		service.ErrUpstreamUnavailable, service.ErrUpstreamRejected,
		service.ErrStoreUnavailable, service.ErrCanceled,
	} {
		if errors.Is(err, kind) {
			return kind.Error()
		}
	}
	return err.Error()
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return false
	}
	return true
}

// Package aic is the Agent Interface Contract: the JSON HTTP surface AI
// agents drive the world through. Every response is the two-armed wire
// envelope; no Go error ever crosses the boundary raw.
package aic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tilemud/server/internal/room"
)

// Error codes. Closed set; handlers never invent new ones.
const (
	CodeBadRequest       = "bad_request"
	CodeUnauthorized     = "unauthorized"
	CodeForbidden        = "forbidden"
	CodeNotFound         = "not_found"
	CodeRoomNotReady     = "room_not_ready"
	CodeAgentNotInRoom   = "agent_not_in_room"
	CodeInvalidDest      = "invalid_destination"
	CodeCollisionBlocked = "collision_blocked"
	CodeRateLimited      = "rate_limited"
	CodeConflict         = "conflict"
	CodeTimeout          = "timeout"
	CodeInternal         = "internal"
)

// apiError is an error destined for the wire envelope.
type apiError struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Retryable bool           `json:"retryable"`
	Details   map[string]any `json:"details,omitempty"`
}

func errOf(code, message string) *apiError {
	return &apiError{
		Code:      code,
		Message:   message,
		Retryable: retryable(code),
	}
}

// retryable is asserted only for the four transient codes.
func retryable(code string) bool {
	switch code {
	case CodeRoomNotReady, CodeRateLimited, CodeTimeout, CodeInternal:
		return true
	}
	return false
}

// httpStatus maps error codes to HTTP statuses. Action rejections never
// come through here; they ride in data on a 200.
func httpStatus(code string) int {
	switch code {
	case CodeBadRequest, CodeInvalidDest:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound, CodeAgentNotInRoom:
		return http.StatusNotFound
	case CodeConflict, CodeCollisionBlocked:
		return http.StatusConflict
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeRoomNotReady:
		return http.StatusServiceUnavailable
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

type okEnvelope struct {
	Status string `json:"status"`
	Data   any    `json:"data"`
}

type errEnvelope struct {
	Status string    `json:"status"`
	Error  *apiError `json:"error"`
}

// okBody marshals the success envelope. The bytes are what idempotent
// replays return verbatim.
func okBody(data any) ([]byte, error) {
	return json.Marshal(okEnvelope{Status: "ok", Data: data})
}

func writeOK(w http.ResponseWriter, data any) {
	body, err := okBody(data)
	if err != nil {
		writeErr(w, errOf(CodeInternal, "encode response"))
		return
	}
	writeRaw(w, http.StatusOK, body)
}

func writeErr(w http.ResponseWriter, e *apiError) {
	body, err := json.Marshal(errEnvelope{Status: "error", Error: e})
	if err != nil {
		http.Error(w, `{"status":"error","error":{"code":"internal","message":"encode error","retryable":true}}`, http.StatusInternalServerError)
		return
	}
	writeRaw(w, httpStatus(e.Code), body)
}

func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

// fromRoomErr converts room-layer errors to wire errors.
func fromRoomErr(err error) *apiError {
	switch {
	case errors.Is(err, room.ErrRoomNotReady):
		return errOf(CodeRoomNotReady, "room intent queue is full")
	case errors.Is(err, room.ErrNoSuchEntity):
		return errOf(CodeAgentNotInRoom, "entity is not in the room")
	case errors.Is(err, room.ErrRoomFull):
		return errOf(CodeForbidden, "channel is at capacity")
	case errors.Is(err, context.DeadlineExceeded):
		return errOf(CodeTimeout, "deadline exceeded before the intent replied")
	case errors.Is(err, context.Canceled):
		return errOf(CodeTimeout, "request cancelled")
	default:
		return errOf(CodeInternal, "internal room error")
	}
}

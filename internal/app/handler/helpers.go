// Package handler contains the HTTP handlers of the link service: link
// creation, listing, stats and deletion, the public redirect, account
// registration and login, and the health probes.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/atinyakov/tinylink/internal/errx"
	"github.com/atinyakov/tinylink/internal/middleware"
	"github.com/atinyakov/tinylink/internal/models"
)

const maxBodyBytes = 1 << 20

// malformedRequest represents an error with a malformed HTTP request.
type malformedRequest struct {
	status int
	msg    string
}

func (mr *malformedRequest) Error() string {
	return mr.msg
}

// decodeJSONBody decodes a single JSON value from the request body into dst.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	ct := r.Header.Get("Content-Type")
	if ct != "" {
		mediaType := strings.ToLower(strings.TrimSpace(strings.Split(ct, ";")[0]))
		if mediaType != "application/json" {
			msg := "Content-Type header is not application/json"
			return &malformedRequest{status: http.StatusUnsupportedMediaType, msg: msg}
		}
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	if err != nil {
		var syntaxError *json.SyntaxError
		var unmarshalTypeError *json.UnmarshalTypeError
		var maxBytesError *http.MaxBytesError

		switch {
		case errors.As(err, &syntaxError):
			msg := fmt.Sprintf("Request body contains badly-formed JSON (at position %d)", syntaxError.Offset)
			return &malformedRequest{status: http.StatusBadRequest, msg: msg}

		case errors.Is(err, io.ErrUnexpectedEOF):
			return &malformedRequest{status: http.StatusBadRequest, msg: "Request body contains badly-formed JSON"}

		case errors.As(err, &unmarshalTypeError):
			msg := fmt.Sprintf("Request body contains an invalid value for the %q field (at position %d)", unmarshalTypeError.Field, unmarshalTypeError.Offset)
			return &malformedRequest{status: http.StatusBadRequest, msg: msg}

		case strings.HasPrefix(err.Error(), "json: unknown field "):
			fieldName := strings.TrimPrefix(err.Error(), "json: unknown field ")
			msg := fmt.Sprintf("Request body contains unknown field %s", fieldName)
			return &malformedRequest{status: http.StatusBadRequest, msg: msg}

		case errors.Is(err, io.EOF):
			return &malformedRequest{status: http.StatusBadRequest, msg: "Request body must not be empty"}

		case errors.As(err, &maxBytesError):
			return &malformedRequest{status: http.StatusRequestEntityTooLarge, msg: "Request body must not be larger than 1MB"}

		default:
			return err
		}
	}

	err = dec.Decode(&struct{}{})
	if !errors.Is(err, io.EOF) {
		return &malformedRequest{status: http.StatusBadRequest, msg: "Request body must only contain a single JSON object"}
	}

	return nil
}

// decodeOrFail decodes the body and writes the error response itself.
// It reports whether the handler may continue.
func decodeOrFail(w http.ResponseWriter, r *http.Request, dst interface{}, logger *zap.Logger) bool {
	err := decodeJSONBody(w, r, dst)
	if err == nil {
		return true
	}

	var mr *malformedRequest
	if errors.As(err, &mr) {
		writeJSON(w, mr.status, models.ErrorResponse{Error: mr.msg})
		return false
	}

	logger.Error("decode request body", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "server error"})
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind errx.Kind) int {
	switch kind {
	case errx.InvalidTarget, errx.InvalidCode, errx.Invalid:
		return http.StatusBadRequest
	case errx.CodeConflict, errx.EmailTaken:
		return http.StatusConflict
	case errx.NotFound:
		return http.StatusNotFound
	case errx.Unauthorized:
		return http.StatusUnauthorized
	case errx.Forbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as {"error": ...}. Server-side failures are logged
// and their details hidden from the client.
func writeError(w http.ResponseWriter, err error, logger *zap.Logger) {
	kind := errx.KindOf(err)
	status := statusFor(kind)

	msg := err.Error()
	var e *errx.Error
	if errors.As(err, &e) && e.Err != nil {
		msg = e.Err.Error()
	}

	if status == http.StatusInternalServerError {
		logger.Error("request failed", zap.String("op", errx.OpOf(err)), zap.Stringer("kind", kind), zap.Error(err))
		msg = "server error"
	}

	writeJSON(w, status, models.ErrorResponse{Error: msg})
}

// userIDFrom returns the authenticated user injected by middleware.WithJWT.
func userIDFrom(r *http.Request) (string, bool) {
	userID, ok := r.Context().Value(middleware.UserIDKey).(string)
	return userID, ok && userID != ""
}

package apiutil

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/percussion/percussioncms-sub111/internal/activity"
	"github.com/percussion/percussioncms-sub111/internal/api/authz"
	"github.com/percussion/percussioncms-sub111/internal/content"
	"github.com/percussion/percussioncms-sub111/internal/data"
	"github.com/percussion/percussioncms-sub111/internal/directory"
	"github.com/percussion/percussioncms-sub111/internal/ems"
	"github.com/percussion/percussioncms-sub111/internal/users"
)

const maxJSONBody = 1 << 20

type HandlerError struct {
	Status  int
	Message string
	Err     error
}

func (e HandlerError) Error() string {
	return e.Message
}

func (e HandlerError) Unwrap() error {
	return e.Err
}

// BadRequest wraps err as a 400 carrying its own message.
func BadRequest(err error) HandlerError {
	return HandlerError{Status: http.StatusBadRequest, Message: err.Error(), Err: err}
}

// ErrorResponse is the JSON body of every non-2xx API response.
type ErrorResponse struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  []data.FieldError `json:"fields,omitempty"`
}

func DecodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return fmt.Errorf("missing request body")
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("missing request body")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func WriteJSON(w http.ResponseWriter, status int, payload any) error {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	if err := encoder.Encode(payload); err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err := w.Write(buf.Bytes())
	return err
}

// WriteError maps err to a status and writes it as an ErrorResponse.
// Server-side failures are logged with the request logger and reported
// without internal detail.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	logger := log.Ctx(r.Context())
	status, resp := classify(err)

	switch {
	case status >= http.StatusInternalServerError:
		logger.Error().Err(err).Int("status", status).Msg("Request failed")
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		logger.Warn().Err(err).Int("status", status).Msg("Request denied")
	default:
		logger.Debug().Err(err).Int("status", status).Msg("Request rejected")
	}

	if writeErr := WriteJSON(w, status, resp); writeErr != nil {
		logger.Error().Err(writeErr).Msg("Failed to write error response")
	}
}

func classify(err error) (int, ErrorResponse) {
	var handlerErr HandlerError
	if errors.As(err, &handlerErr) {
		return handlerErr.Status, ErrorResponse{Code: codeFor(handlerErr.Status), Message: handlerErr.Message}
	}

	var validationErr *data.ValidationError
	if errors.As(err, &validationErr) {
		return http.StatusBadRequest, ErrorResponse{
			Code:    codeFor(http.StatusBadRequest),
			Message: validationErr.Error(),
			Fields:  validationErr.Fields,
		}
	}

	var faultErr *ems.FaultError
	var apiErr *ems.APIError

	status := http.StatusInternalServerError
	message := "internal server error"
	switch {
	case errors.Is(err, authz.ErrUnauthenticated), errors.Is(err, users.ErrUnauthenticated):
		status, message = http.StatusUnauthorized, err.Error()
	case errors.Is(err, authz.ErrForbidden), errors.Is(err, users.ErrForbidden):
		status, message = http.StatusForbidden, err.Error()
	case errors.Is(err, users.ErrNotFound), errors.Is(err, content.ErrNotFound):
		status, message = http.StatusNotFound, err.Error()
	case errors.Is(err, users.ErrConflict):
		status, message = http.StatusConflict, err.Error()
	case errors.Is(err, users.ErrInvalid),
		errors.Is(err, users.ErrDirectoryDisabled),
		errors.Is(err, content.ErrInvalid),
		errors.Is(err, content.ErrMalformedDocument),
		errors.Is(err, activity.ErrInvalidRequest),
		errors.Is(err, activity.ErrTooManyBuckets),
		errors.Is(err, ems.ErrInvalidRange):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, ems.ErrUnavailable),
		errors.Is(err, ems.ErrNotConfigured),
		errors.As(err, &faultErr),
		errors.As(err, &apiErr):
		status, message = http.StatusBadGateway, "upstream event service failed"
	case errors.Is(err, directory.ErrUnavailable):
		status, message = http.StatusBadGateway, "upstream directory service failed"
	}
	return status, ErrorResponse{Code: codeFor(status), Message: message}
}

func codeFor(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid_request"
	case http.StatusUnauthorized:
		return "unauthenticated"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusTooManyRequests:
		return "rate_limited"
	case http.StatusBadGateway:
		return "upstream_error"
	default:
		return "internal_error"
	}
}

// RequireRole writes 401 or 403 and returns false unless the request user
// holds one of roles.
func RequireRole(w http.ResponseWriter, r *http.Request, roles ...string) bool {
	if err := authz.RequireRole(r.Context(), roles...); err != nil {
		WriteError(w, r, err)
		return false
	}
	return true
}

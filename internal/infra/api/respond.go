package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"vpn-key-subscription/internal/domain"
)

const maxBodyBytes = 1 << 16

var errMalformed = errors.New("malformed request body")

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps a domain error category to a status code and a stable
// error code. Unclassified errors are reported as 500 without details.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeJSON(w, status, errorBody{Error: code, Message: msg})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, errMalformed):
		return http.StatusBadRequest, "malformed_request"
	case errors.Is(err, errUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests, "rate_limited"

	case errors.Is(err, domain.ErrUnknownOwner):
		return http.StatusUnprocessableEntity, "unknown_owner"
	case errors.Is(err, domain.ErrUnknownCurrency):
		return http.StatusUnprocessableEntity, "unknown_currency"
	case errors.Is(err, domain.ErrUnsupportedPlan):
		return http.StatusUnprocessableEntity, "unsupported_plan"
	case errors.Is(err, domain.ErrInvalidPeriod):
		return http.StatusUnprocessableEntity, "invalid_period"
	case errors.Is(err, domain.ErrNotManualPayment):
		return http.StatusUnprocessableEntity, "not_manual_payment"
	case errors.Is(err, domain.ErrValidation):
		return http.StatusUnprocessableEntity, "validation_failed"

	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"

	case errors.Is(err, domain.ErrAlreadyHasTrial):
		return http.StatusConflict, "already_has_trial"
	case errors.Is(err, domain.ErrPaymentExpired):
		return http.StatusConflict, "payment_expired"
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "conflict"

	case errors.Is(err, domain.ErrTransient):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// decode reads a JSON body. Field level validation errors from custom
// unmarshalers (e.g. period) keep their domain category; everything else
// is a malformed request.
func decode(r *http.Request, dst any) error {
	err := decodeBody(r, dst)
	if errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: empty body", errMalformed)
	}
	return err
}

// decodeOptional accepts an empty body.
func decodeOptional(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	if err := decodeBody(r, dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	err := dec.Decode(dst)
	switch {
	case err == nil, err == io.EOF, errors.Is(err, domain.ErrValidation):
		return err
	default:
		return fmt.Errorf("%w: %v", errMalformed, err)
	}
}

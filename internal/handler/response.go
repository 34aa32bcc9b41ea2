package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"marketing-backend/internal/model"
	"marketing-backend/internal/outbound"
	"marketing-backend/pkg/apierror"
)

const maxBodyBytes = 1 << 20

func writeSuccess(w http.ResponseWriter, status int, data any, meta *model.Meta) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: true,
		Data:    data,
		Meta:    meta,
	})
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := &model.APIError{
		Code:    "INTERNAL_ERROR",
		Message: "Unexpected server error",
	}

	var (
		apiErr      *apierror.APIError
		rateErr     *outbound.RateLimitError
		upstreamErr *outbound.UpstreamError
		maxBytesErr *http.MaxBytesError
	)

	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatus
		body.Code = apiErr.Code
		body.Message = apiErr.Message
		body.Details = apiErr.Details
	case errors.As(err, &rateErr):
		status = http.StatusTooManyRequests
		body.Code = "RATE_LIMITED"
		body.Message = "Upstream rate limit reached, try again later"
		body.Details = rateErr.Target
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(rateErr.RetryAfter.Seconds()))))
	case errors.As(err, &upstreamErr) && errors.Is(err, model.ErrUpstreamRejected):
		status = http.StatusBadGateway
		body.Code = "UPSTREAM_REJECTED"
		body.Message = "The upstream service rejected the request"
		body.Details = upstreamErr.Target
	case errors.As(err, &upstreamErr):
		status = http.StatusServiceUnavailable
		body.Code = "UPSTREAM_UNAVAILABLE"
		body.Message = "The upstream service is unavailable"
		body.Details = upstreamErr.Target
	case errors.As(err, &maxBytesErr):
		status = http.StatusRequestEntityTooLarge
		body.Code = "PAYLOAD_TOO_LARGE"
		body.Message = "Request body is too large"
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
		body.Code = "TIMEOUT"
		body.Message = "The operation timed out"
	case errors.Is(err, model.ErrInvalidCredentials):
		status = http.StatusUnauthorized
		body.Code = "INVALID_CREDENTIALS"
		body.Message = "Invalid email or password"
	case errors.Is(err, model.ErrTokenExpired):
		status = http.StatusUnauthorized
		body.Code = "TOKEN_EXPIRED"
		body.Message = "Token has expired"
	case errors.Is(err, model.ErrInvalidToken):
		status = http.StatusUnauthorized
		body.Code = "INVALID_TOKEN"
		body.Message = "Invalid token"
	case errors.Is(err, model.ErrInsufficientPermissions):
		status = http.StatusForbidden
		body.Code = "INSUFFICIENT_PERMISSIONS"
		body.Message = "Insufficient permissions"
	case errors.Is(err, model.ErrNotFound):
		status = http.StatusNotFound
		body.Code = "NOT_FOUND"
		body.Message = "Resource not found"
	case errors.Is(err, model.ErrAlreadyExists):
		status = http.StatusConflict
		body.Code = "ALREADY_EXISTS"
		body.Message = "Resource already exists"
	case errors.Is(err, model.ErrInvalidInput):
		status = http.StatusBadRequest
		body.Code = "BAD_REQUEST"
		body.Message = "Invalid input"
	default:
		slog.Error("unhandled error in writeError", "error", err.Error())
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: false,
		Error:   body,
	})
}

// decodeJSON reads a single JSON value of at most maxBodyBytes into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	defer r.Body.Close()

	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := decoder.Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return err
		}
		if errors.Is(err, io.EOF) {
			return apierror.Wrap(model.ErrInvalidInput, "BAD_REQUEST", "request body is required", "", http.StatusBadRequest)
		}
		return apierror.Wrap(model.ErrInvalidInput, "BAD_REQUEST", "invalid JSON body", "", http.StatusBadRequest)
	}
	return nil
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

// queryBool returns nil when key is absent or not a boolean.
func queryBool(r *http.Request, key string) *bool {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return nil
	}
	return &value
}

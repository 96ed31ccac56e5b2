package http

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/DRSN-tech/taste-backend/pkg/e"
	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
)

type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func NewErrorResponse(code int, message string) *ErrorResponse {
	return &ErrorResponse{
		Code:    code,
		Message: message,
	}
}

func ToHTTPResponse(err error) (int, string) {
	switch {
	case errors.Is(err, e.ErrInvalidUserID):
		return http.StatusBadRequest, e.ErrInvalidUserID.Error()
	case errors.Is(err, e.ErrInvalidLimit):
		return http.StatusBadRequest, e.ErrInvalidLimit.Error()
	case errors.Is(err, e.ErrInvalidThreshold):
		return http.StatusBadRequest, e.ErrInvalidThreshold.Error()
	case errors.Is(err, e.ErrTooManyUsers):
		return http.StatusBadRequest, e.ErrTooManyUsers.Error()
	case errors.Is(err, e.ErrStatusBadRequest):
		return http.StatusBadRequest, e.ErrStatusBadRequest.Error()
	case errors.Is(err, e.ErrUserNotFound):
		return http.StatusNotFound, e.ErrUserNotFound.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, http.StatusText(http.StatusGatewayTimeout)
	default:
		return http.StatusInternalServerError, e.ErrInternalServerError.Error()
	}
}

func WriteError(w http.ResponseWriter, err error) {
	code, msg := ToHTTPResponse(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(NewErrorResponse(code, msg))
}

func WriteSuccess(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// parseUserID читает положительный id пользователя из параметра маршрута.
func parseUserID(r *http.Request, param string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		return 0, e.Wrap(param, e.ErrInvalidUserID)
	}
	return id, nil
}

// parseLimit читает ?limit=. Отсутствующий параметр даёт def.
func parseLimit(r *http.Request, def int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, e.Wrap(raw, e.ErrInvalidLimit)
	}
	return limit, nil
}

// parseThreshold читает ?threshold= в [-1, 1]. Отсутствующий параметр даёт NaN: порог по умолчанию.
func parseThreshold(r *http.Request) (float64, error) {
	raw := r.URL.Query().Get("threshold")
	if raw == "" {
		return math.NaN(), nil
	}

	threshold, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(threshold) || threshold < -1 || threshold > 1 {
		return 0, e.Wrap(raw, e.ErrInvalidThreshold)
	}
	return threshold, nil
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/emlakhub/apiserver/internal/services"
	"github.com/emlakhub/apiserver/types"
	"github.com/go-chi/chi/v5"
)

const (
	defaultPage  = 1
	defaultLimit = 20
	maxLimit     = 100
	maxJSONBody  = 1 << 20
)

type contextKey string

const contextUserKey contextKey = "user"

// ErrorResponse is a simple error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse acknowledges an operation that has nothing else to return.
type MessageResponse struct {
	Message string `json:"message"`
}

// PageResponse is the paginated list response payload.
type PageResponse[T any] struct {
	Items []T `json:"items"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

func withUser(ctx context.Context, user types.User) context.Context {
	return context.WithValue(ctx, contextUserKey, user)
}

// userFromContext returns the authenticated caller, if any.
func userFromContext(ctx context.Context) (types.User, bool) {
	user, ok := ctx.Value(contextUserKey).(types.User)
	return user, ok && user.ID > 0
}

// callerID returns the caller's id, or nil for anonymous requests.
func callerID(ctx context.Context) (*int, bool) {
	user, ok := userFromContext(ctx)
	if !ok {
		return nil, false
	}
	id := user.ID
	return &id, user.IsAdmin()
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeFailure reports a rejected business rule.
func writeFailure(w http.ResponseWriter, kind services.ErrorKind, message string) {
	writeError(w, statusForKind(kind), message)
}

// writeInternal logs err and answers 500 with a generic message.
func writeInternal(w http.ResponseWriter, r *http.Request, message string, err error) {
	slog.ErrorContext(r.Context(), message, "method", r.Method, "path", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, message)
}

func statusForKind(kind services.ErrorKind) int {
	switch kind {
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindForbidden:
		return http.StatusForbidden
	case services.KindValidation:
		return http.StatusBadRequest
	case services.KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(dst); err != nil {
		return errors.New("invalid request")
	}
	return nil
}

// decodeOptionalJSON accepts an empty body and leaves dst untouched.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(dst)
	if err != nil && !errors.Is(err, io.EOF) {
		return errors.New("invalid request")
	}
	return nil
}

func parsePagination(r *http.Request) (page, limit, offset int, err error) {
	page = defaultPage
	limit = defaultLimit

	if raw := strings.TrimSpace(r.URL.Query().Get("page")); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 1 {
			return 0, 0, 0, errors.New("invalid page")
		}
	}

	rawLimit := strings.TrimSpace(r.URL.Query().Get("limit"))
	if rawLimit == "" {
		rawLimit = strings.TrimSpace(r.URL.Query().Get("pageSize"))
	}
	if rawLimit != "" {
		limit, err = strconv.Atoi(rawLimit)
		if err != nil || limit < 1 {
			return 0, 0, 0, errors.New("invalid limit")
		}
	}

	if limit > maxLimit {
		limit = maxLimit
	}

	if page-1 > math.MaxInt/limit {
		return 0, 0, 0, errors.New("invalid page")
	}
	offset = (page - 1) * limit
	return page, limit, offset, nil
}

func parseIDParam(r *http.Request, name, label string) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || id < 1 {
		return 0, errors.New("invalid " + label + " id")
	}
	return id, nil
}

func parseBoolQuery(r *http.Request, name string) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, errors.New("invalid " + name)
	}
	return v, nil
}

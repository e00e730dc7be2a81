package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/francislegacy/legacy/internal/model"
	"github.com/francislegacy/legacy/internal/server/middleware"
	"github.com/francislegacy/legacy/internal/service"
	"github.com/francislegacy/legacy/internal/store"
	"github.com/francislegacy/legacy/internal/validation"
)

// writeJSON serializes v as JSON and writes it to the response with the given
// HTTP status code. The Content-Type header is set to application/json.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a structured error response using the standard error
// envelope. The optional ctx map provides additional context fields.
func writeError(w http.ResponseWriter, code int, message string, ctx ...map[string]interface{}) {
	var ctxMap map[string]interface{}
	if len(ctx) > 0 {
		ctxMap = ctx[0]
	}
	writeJSON(w, code, model.ErrorResponse{
		Error: model.ErrorDetail{
			Code:    code,
			Message: message,
			Context: ctxMap,
		},
	})
}

// writeData writes the {success, data, count} envelope used by the archive
// endpoints. count is included for slices.
func writeData(w http.ResponseWriter, status int, data interface{}, count int, message string) {
	resp := model.DataResponse{Success: true, Data: data, Message: message}
	if count >= 0 {
		resp.Count = &count
	}
	writeJSON(w, status, resp)
}

// writeMessage writes {"message": msg} with status 200.
func writeMessage(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"message": msg})
}

// readJSON decodes the request body as JSON into v. The body is closed after
// decoding regardless of success or failure.
func readJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// decodeValid reads the body into v and runs struct validation. On failure
// it writes a 400 and returns false.
func decodeValid(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := readJSON(r, v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	if err := validation.Struct(v); err != nil {
		writeValidation(w, err)
		return false
	}
	return true
}

// writeValidation reports validation failures as 400 "Validation failed"
// with the per-field details in the error context.
func writeValidation(w http.ResponseWriter, err error) {
	var verr *validation.Error
	if errors.As(err, &verr) {
		writeError(w, http.StatusBadRequest, "Validation failed", verr.Details())
		return
	}
	writeError(w, http.StatusBadRequest, err.Error())
}

// writeStoreError maps repository errors to HTTP responses. entity names the
// resource in client messages ("Family member", "Blog post").
func writeStoreError(w http.ResponseWriter, logger *slog.Logger, err error, entity string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, entity+" not found")
	case errors.Is(err, store.ErrConflict):
		writeError(w, http.StatusConflict, strings.ToLower(entity[:1])+entity[1:]+" already exists")
	case errors.Is(err, store.ErrInvalidReference):
		writeError(w, http.StatusBadRequest, "Referenced record does not exist")
	default:
		logger.Error("store operation failed", "entity", entity, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// writeServiceError maps account and auth service errors to HTTP responses.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error, entity string) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, entity+" not found")
	case errors.Is(err, service.ErrDuplicate):
		writeError(w, http.StatusConflict, strings.ToLower(entity[:1])+entity[1:]+" already exists")
	case errors.Is(err, service.ErrSelfAction):
		writeError(w, http.StatusBadRequest, "Cannot perform this action on your own account")
	case errors.Is(err, service.ErrNoLogin):
		writeError(w, http.StatusBadRequest, "Family member has no login credentials")
	case errors.Is(err, service.ErrStoreUnavailable):
		logger.Error("store unavailable", "error", err)
		writeError(w, http.StatusServiceUnavailable, "Service temporarily unavailable")
	default:
		writeStoreError(w, logger, err, entity)
	}
}

// principal returns the authenticated principal of the request, or nil.
func principal(r *http.Request) *model.Principal {
	return middleware.GetPrincipal(r.Context())
}

// actor identifies the caller for audit records.
func actor(r *http.Request) service.Actor {
	return service.ActorFrom(principal(r), middleware.ClientMeta(r))
}

// queryInt extracts an integer query parameter, returning defaultVal if the
// parameter is missing or cannot be parsed.
func queryInt(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

// queryString extracts a string query parameter.
func queryString(r *http.Request, key string) string {
	return r.URL.Query().Get(key)
}

// queryFilter extracts a filter value; "" and "All" mean no filter.
func queryFilter(r *http.Request, key string) string {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if strings.EqualFold(v, "all") {
		return ""
	}
	return v
}

// blankToNil turns empty or whitespace-only optional strings into nil.
func blankToNil(fields ...**string) {
	for _, f := range fields {
		if *f != nil && strings.TrimSpace(**f) == "" {
			*f = nil
		}
	}
}

// clampInt constrains val to be within [min, max].
func clampInt(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}

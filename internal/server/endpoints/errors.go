package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/jackzampolin/memoir/internal/content"
	"github.com/jackzampolin/memoir/internal/dispatch"
	"github.com/jackzampolin/memoir/internal/docstore"
	"github.com/jackzampolin/memoir/internal/history"
	"github.com/jackzampolin/memoir/internal/jobs"
	"github.com/jackzampolin/memoir/internal/svcctx"
	"github.com/jackzampolin/memoir/internal/workspace"
)

var validate = validator.New()

// maxRequestBytes bounds request bodies; chapter text is the largest field.
const maxRequestBytes = 1 << 20

// decodeJSON reads a JSON body into v and checks its validate tags.
// An empty body decodes to v's zero value.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: invalid JSON: %v", workspace.ErrInvalid, err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", workspace.ErrInvalid, err)
	}
	return nil
}

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, dispatch.ErrValidation), errors.Is(err, workspace.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, history.ErrNotFound),
		errors.Is(err, jobs.ErrNotFound),
		errors.Is(err, docstore.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, workspace.ErrNoSubject), errors.Is(err, workspace.ErrNoResult):
		return http.StatusConflict
	case errors.Is(err, dispatch.ErrNotConfigured),
		errors.Is(err, content.ErrNotConfigured),
		errors.Is(err, docstore.ErrUnhealthy):
		return http.StatusServiceUnavailable
	case errors.Is(err, dispatch.ErrCanceled):
		return http.StatusRequestTimeout
	case errors.Is(err, dispatch.ErrTimeout),
		errors.Is(err, dispatch.ErrNetwork),
		errors.Is(err, dispatch.ErrHTTP),
		errors.Is(err, jobs.ErrNoMedia),
		errors.Is(err, content.ErrEmptyResponse),
		errors.Is(err, content.ErrUpstream),
		errors.Is(err, docstore.ErrQuery):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeErr writes err with the status statusFor picks.
func writeErr(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}

func workspaceOrError(w http.ResponseWriter, r *http.Request) *workspace.Workspace {
	ws := svcctx.WorkspaceFrom(r.Context())
	if ws == nil {
		writeError(w, http.StatusServiceUnavailable, "workspace not initialized")
	}
	return ws
}

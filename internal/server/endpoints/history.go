package endpoints

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/memoir/internal/api"
	"github.com/jackzampolin/memoir/internal/history"
)

// ListHistoryResponse is the response for GET /api/history.
type ListHistoryResponse struct {
	Entries []history.Entry `json:"entries"`
}

// ListHistoryEndpoint handles GET /api/history.
type ListHistoryEndpoint struct{}

func (e *ListHistoryEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/history", e.handler
}

func (e *ListHistoryEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		List dispatch history
//	@Description	Recent dispatch attempts, newest first, each with its exact payload
//	@Tags			history
//	@Produce		json
//	@Success		200	{object}	ListHistoryResponse
//	@Router			/api/history [get]
func (e *ListHistoryEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	ws := workspaceOrError(w, r)
	if ws == nil {
		return
	}
	entries := ws.Ledger().Entries()
	if entries == nil {
		entries = []history.Entry{}
	}
	writeJSON(w, http.StatusOK, ListHistoryResponse{Entries: entries})
}

func (e *ListHistoryEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List recent dispatches",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ListHistoryResponse
			if err := client.Get(cmd.Context(), "/api/history", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// RetryEndpoint handles POST /api/history/{id}/retry.
type RetryEndpoint struct{}

func (e *RetryEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/history/{id}/retry", e.handler
}

func (e *RetryEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Retry a dispatch
//	@Description	Resends the entry's stored payload unchanged and updates the entry in place
//	@Tags			history
//	@Produce		json
//	@Param			id	path		string	true	"History entry ID"
//	@Success		200	{object}	GenerateResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		502	{object}	GenerateResponse
//	@Router			/api/history/{id}/retry [post]
func (e *RetryEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "entry id is required")
		return
	}
	ws := workspaceOrError(w, r)
	if ws == nil {
		return
	}

	gen, err := ws.Retry(r.Context(), id)
	switch {
	case err != nil && gen == nil:
		writeErr(w, err)
	case err != nil:
		writeJSON(w, statusFor(err), GenerateResponse{Generation: gen, Error: err.Error()})
	default:
		writeJSON(w, http.StatusOK, GenerateResponse{Generation: gen})
	}
}

func (e *RetryEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <entry-id>",
		Short: "Resend a recorded dispatch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp GenerateResponse
			if err := client.Post(cmd.Context(), "/api/history/"+args[0]+"/retry", nil, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

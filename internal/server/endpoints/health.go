package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/memoir/internal/api"
	"github.com/jackzampolin/memoir/internal/docstore"
	"github.com/jackzampolin/memoir/internal/jobs"
	"github.com/jackzampolin/memoir/internal/svcctx"
)

// HealthResponse is the response for health check endpoints.
type HealthResponse struct {
	Status   string `json:"status"`
	Docstore string `json:"docstore,omitempty"`
}

// HealthEndpoint handles GET /health.
type HealthEndpoint struct{}

func (e *HealthEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/health", e.handler
}

func (e *HealthEndpoint) RequiresInit() bool { return false }

func (e *HealthEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (e *HealthEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp HealthResponse
			if err := client.Get(cmd.Context(), "/health", &resp); err != nil {
				return err
			}
			fmt.Printf("Status: %s\n", resp.Status)
			return nil
		},
	}
}

// ReadyEndpoint handles GET /ready.
type ReadyEndpoint struct{}

func (e *ReadyEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/ready", e.handler
}

func (e *ReadyEndpoint) RequiresInit() bool { return false }

// handler reports ready once state is restored. A configured document store
// must also be healthy; running without one is allowed.
func (e *ReadyEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Docstore: "not_configured"}

	if svcctx.WorkspaceFrom(r.Context()) == nil {
		resp.Status = "starting"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	if client := svcctx.DocstoreFrom(r.Context()); client != nil {
		if err := client.HealthCheck(r.Context()); err != nil {
			resp.Status = "degraded"
			resp.Docstore = "unhealthy"
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
		resp.Docstore = "ok"
	}

	writeJSON(w, http.StatusOK, resp)
}

func (e *ReadyEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "ready",
		Short: "Check server readiness (includes the document store)",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp HealthResponse
			if err := client.Get(cmd.Context(), "/ready", &resp); err != nil {
				return err
			}
			fmt.Printf("Status:   %s\n", resp.Status)
			fmt.Printf("Docstore: %s\n", resp.Docstore)
			return nil
		},
	}
}

// StatusResponse is the detailed status response.
type StatusResponse struct {
	Server   string         `json:"server"`
	Webhook  WebhookStatus  `json:"webhook"`
	Content  string         `json:"content"`
	Docstore DocstoreStatus `json:"docstore"`
	Jobs     JobCounts      `json:"jobs"`
	History  int            `json:"history"`
}

// WebhookStatus shows the workflow-engine endpoint and its deadlines.
type WebhookStatus struct {
	Configured bool              `json:"configured"`
	Timeouts   map[string]string `json:"timeouts,omitempty"`
}

// DocstoreStatus shows document store container and health status.
type DocstoreStatus struct {
	Container string `json:"container,omitempty"`
	Health    string `json:"health"`
	URL       string `json:"url,omitempty"`
}

// JobCounts tallies the registry by status.
type JobCounts struct {
	Generating int `json:"generating"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

// StatusEndpoint handles GET /status.
type StatusEndpoint struct {
	// DockerManager is set by server when the document store is managed.
	DockerManager *docstore.DockerManager
	DocstoreURL   string
}

func (e *StatusEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/status", e.handler
}

func (e *StatusEndpoint) RequiresInit() bool { return false }

func (e *StatusEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := StatusResponse{Server: "running", Content: "not_configured"}

	services := svcctx.ServicesFrom(ctx)
	if services == nil {
		resp.Server = "starting"
		writeJSON(w, http.StatusOK, resp)
		return
	}

	if d := services.Dispatcher; d != nil {
		resp.Webhook.Configured = d.Configured()
		resp.Webhook.Timeouts = make(map[string]string)
		for kind, timeout := range d.Timeouts() {
			resp.Webhook.Timeouts[string(kind)] = timeout.String()
		}
	}
	if c := services.Content; c != nil && c.Configured() {
		resp.Content = "configured"
	}

	if e.DockerManager != nil {
		status, err := e.DockerManager.Status(ctx)
		if err != nil {
			resp.Docstore.Container = "error"
		} else {
			resp.Docstore.Container = string(status)
		}
	}
	if client := services.Docstore; client != nil {
		resp.Docstore.URL = e.DocstoreURL
		if err := client.HealthCheck(ctx); err != nil {
			resp.Docstore.Health = "unhealthy"
		} else {
			resp.Docstore.Health = "healthy"
		}
	} else {
		resp.Docstore.Health = "not_configured"
	}

	if ws := services.Workspace; ws != nil {
		for _, job := range ws.Jobs().List() {
			switch job.Status {
			case jobs.StatusGenerating:
				resp.Jobs.Generating++
			case jobs.StatusCompleted:
				resp.Jobs.Completed++
			case jobs.StatusFailed:
				resp.Jobs.Failed++
			}
		}
		resp.History = ws.Ledger().Len()
	}

	writeJSON(w, http.StatusOK, resp)
}

func (e *StatusEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Get detailed server status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp StatusResponse
			if err := client.Get(cmd.Context(), "/status", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

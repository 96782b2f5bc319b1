package endpoints

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/memoir/internal/api"
	"github.com/jackzampolin/memoir/internal/jobs"
	"github.com/jackzampolin/memoir/internal/svcctx"
)

func jobsGroup() (string, string) { return "jobs", "Background video jobs" }

func jobsOrError(w http.ResponseWriter, r *http.Request) *jobs.Manager {
	jm := svcctx.JobsFrom(r.Context())
	if jm == nil {
		writeError(w, http.StatusServiceUnavailable, "job registry not initialized")
	}
	return jm
}

// ListJobsResponse is the response for GET /api/jobs.
type ListJobsResponse struct {
	Jobs []jobs.Job `json:"jobs"`
}

// ListJobsEndpoint handles GET /api/jobs.
type ListJobsEndpoint struct{}

func (e *ListJobsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/jobs", e.handler
}

func (e *ListJobsEndpoint) RequiresInit() bool { return true }

func (e *ListJobsEndpoint) Group() (string, string) { return jobsGroup() }

// handler godoc
//
//	@Summary		List jobs
//	@Description	All jobs still in the registry, newest first. Filter by subject with ?subject_id=.
//	@Tags			jobs
//	@Produce		json
//	@Param			subject_id	query		string	false	"Chapter ID"
//	@Success		200			{object}	ListJobsResponse
//	@Router			/api/jobs [get]
func (e *ListJobsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	jm := jobsOrError(w, r)
	if jm == nil {
		return
	}

	var list []jobs.Job
	if subject := r.URL.Query().Get("subject_id"); subject != "" {
		list = jm.ListFor(subject)
	} else {
		list = jm.List()
	}
	if list == nil {
		list = []jobs.Job{}
	}
	writeJSON(w, http.StatusOK, ListJobsResponse{Jobs: list})
}

func (e *ListJobsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var subject string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/jobs"
			if subject != "" {
				path += "?subject_id=" + subject
			}
			client := api.NewClient(getServerURL())
			var resp ListJobsResponse
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "Only jobs for this chapter ID")
	return cmd
}

// GetJobEndpoint handles GET /api/jobs/{id}.
type GetJobEndpoint struct{}

func (e *GetJobEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/jobs/{id}", e.handler
}

func (e *GetJobEndpoint) RequiresInit() bool { return true }

func (e *GetJobEndpoint) Group() (string, string) { return jobsGroup() }

// handler godoc
//
//	@Summary		Get job by ID
//	@Tags			jobs
//	@Produce		json
//	@Param			id	path		string	true	"Job ID"
//	@Success		200	{object}	jobs.Job
//	@Failure		404	{object}	ErrorResponse
//	@Router			/api/jobs/{id} [get]
func (e *GetJobEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "job id is required")
		return
	}
	jm := jobsOrError(w, r)
	if jm == nil {
		return
	}

	job, err := jm.Get(id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (e *GetJobEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get a job by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp jobs.Job
			if err := client.Get(cmd.Context(), "/api/jobs/"+args[0], &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// DismissJobEndpoint handles DELETE /api/jobs/{id}.
type DismissJobEndpoint struct{}

func (e *DismissJobEndpoint) Route() (string, string, http.HandlerFunc) {
	return "DELETE", "/api/jobs/{id}", e.handler
}

func (e *DismissJobEndpoint) RequiresInit() bool { return true }

func (e *DismissJobEndpoint) Group() (string, string) { return jobsGroup() }

// handler godoc
//
//	@Summary		Dismiss a job
//	@Description	Removes a job from the registry. This is the only way a job is removed.
//	@Tags			jobs
//	@Param			id	path	string	true	"Job ID"
//	@Success		204	"No Content"
//	@Failure		404	{object}	ErrorResponse
//	@Router			/api/jobs/{id} [delete]
func (e *DismissJobEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "job id is required")
		return
	}
	jm := jobsOrError(w, r)
	if jm == nil {
		return
	}

	if err := jm.Dismiss(id); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (e *DismissJobEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "dismiss <id>",
		Short: "Dismiss a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			if err := client.Delete(cmd.Context(), "/api/jobs/"+args[0]); err != nil {
				return err
			}
			fmt.Println("Job dismissed")
			return nil
		},
	}
}

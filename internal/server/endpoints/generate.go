package endpoints

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/memoir/internal/api"
	"github.com/jackzampolin/memoir/internal/content"
	"github.com/jackzampolin/memoir/internal/svcctx"
	"github.com/jackzampolin/memoir/internal/types"
	"github.com/jackzampolin/memoir/internal/workspace"
)

// GenerateRequest is the body for POST /api/generate.
type GenerateRequest struct {
	Kind       string `json:"kind" validate:"required,oneof=post posts image video"`
	VideoScene string `json:"video_scene,omitempty" validate:"omitempty,max=2000"`
}

// GenerateResponse wraps a generation. Error is set when the dispatch failed
// after being recorded in history.
type GenerateResponse struct {
	*workspace.Generation
	Error string `json:"error,omitempty"`
}

// GenerateEndpoint handles POST /api/generate.
type GenerateEndpoint struct{}

func (e *GenerateEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/generate", e.handler
}

func (e *GenerateEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Generate content from the working text
//	@Description	Post and image requests wait for the workflow engine. Video requests start a background job and return 202 with its id.
//	@Tags			generate
//	@Accept			json
//	@Produce		json
//	@Param			request	body		GenerateRequest	true	"Kind to generate"
//	@Success		200		{object}	GenerateResponse
//	@Success		202		{object}	GenerateResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		502		{object}	GenerateResponse
//	@Router			/api/generate [post]
func (e *GenerateEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	ws := workspaceOrError(w, r)
	if ws == nil {
		return
	}

	var req GenerateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	kind, _ := types.ParseKind(req.Kind)

	gen, err := ws.Generate(r.Context(), kind, workspace.GenerateOptions{VideoScene: req.VideoScene})
	switch {
	case err != nil && (gen == nil || gen.EntryID == ""):
		writeErr(w, err)
	case err != nil:
		writeJSON(w, statusFor(err), GenerateResponse{Generation: gen, Error: err.Error()})
	case gen.JobID != "":
		writeJSON(w, http.StatusAccepted, GenerateResponse{Generation: gen})
	default:
		writeJSON(w, http.StatusOK, GenerateResponse{Generation: gen})
	}
}

func (e *GenerateEndpoint) Command(getServerURL func() string) *cobra.Command {
	var scene string
	cmd := &cobra.Command{
		Use:   "generate <post|image|video>",
		Short: "Generate content from the working text",
		Long: `Send the working text to the workflow engine.

Post and image wait for the result. Video starts a background job;
follow it with "memoir api jobs get <id>".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp GenerateResponse
			err := client.Post(cmd.Context(), "/api/generate", GenerateRequest{Kind: args[0], VideoScene: scene}, &resp)
			if err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&scene, "scene", "", "Video scene description (video only)")
	return cmd
}

// StudioImageRequest is the body for POST /api/studio/image.
type StudioImageRequest struct {
	Prompt string `json:"prompt" validate:"required,max=4000"`
}

// StudioImageEndpoint handles POST /api/studio/image.
type StudioImageEndpoint struct{}

func (e *StudioImageEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/studio/image", e.handler
}

func (e *StudioImageEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Generate an image directly
//	@Description	Generates an image with the content service instead of the workflow engine
//	@Tags			generate
//	@Accept			json
//	@Produce		json
//	@Param			request	body		StudioImageRequest	true	"Image prompt"
//	@Success		200		{object}	types.MediaResult
//	@Failure		400		{object}	ErrorResponse
//	@Failure		503		{object}	ErrorResponse
//	@Router			/api/studio/image [post]
func (e *StudioImageEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	ws := workspaceOrError(w, r)
	if ws == nil {
		return
	}

	var req StudioImageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, err)
		return
	}

	m, err := ws.StudioImage(r.Context(), req.Prompt)
	if err != nil {
		if logger := svcctx.LoggerFrom(r.Context()); logger != nil {
			logger.Warn("studio image failed", "error", err)
		}
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (e *StudioImageEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "studio-image <prompt>",
		Short: "Generate an image directly from a prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp types.MediaResult
			if err := client.Post(cmd.Context(), "/api/studio/image", StudioImageRequest{Prompt: args[0]}, &resp); err != nil {
				return err
			}
			fmt.Printf("Image: %s\n", abbreviate(resp.MediaURL, 80))
			return nil
		},
	}
}

// AnalyzeEndpoint handles POST /api/analyze.
type AnalyzeEndpoint struct{}

func (e *AnalyzeEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/analyze", e.handler
}

func (e *AnalyzeEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Analyze the working text
//	@Description	Fills the context fields from a structured reading of the text. Returns a canned analysis when the content service is unavailable.
//	@Tags			generate
//	@Produce		json
//	@Success		200	{object}	content.Analysis
//	@Router			/api/analyze [post]
func (e *AnalyzeEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	ws := workspaceOrError(w, r)
	if ws == nil {
		return
	}
	analysis, err := ws.Analyze(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func (e *AnalyzeEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze",
		Short: "Fill context fields from the working text",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp content.Analysis
			if err := client.Post(cmd.Context(), "/api/analyze", nil, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// abbreviate shortens long values such as data URIs for terminal output.
func abbreviate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

package endpoints

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/memoir/internal/api"
	"github.com/jackzampolin/memoir/internal/dispatch"
	"github.com/jackzampolin/memoir/internal/types"
	"github.com/jackzampolin/memoir/internal/workspace"
)

func stateGroup() (string, string) { return "state", "Inspect and edit the working state" }

// GetStateEndpoint handles GET /api/state.
type GetStateEndpoint struct{}

func (e *GetStateEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/state", e.handler
}

func (e *GetStateEndpoint) RequiresInit() bool { return true }

func (e *GetStateEndpoint) Group() (string, string) { return stateGroup() }

// handler godoc
//
//	@Summary		Get working state
//	@Description	Selection, text, context fields, latest results, and loading flags
//	@Tags			state
//	@Produce		json
//	@Success		200	{object}	workspace.State
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/state [get]
func (e *GetStateEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	ws := workspaceOrError(w, r)
	if ws == nil {
		return
	}
	writeJSON(w, http.StatusOK, ws.State())
}

func (e *GetStateEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Show the working state",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp workspace.State
			if err := client.Get(cmd.Context(), "/api/state", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// UpdateStateRequest is the body for PATCH /api/state.
type UpdateStateRequest struct {
	SubjectTitle *string           `json:"subject_title,omitempty"`
	Text         *string           `json:"text,omitempty"`
	Tone         *string           `json:"tone,omitempty" validate:"omitempty,max=200"`
	Context      *dispatch.Context `json:"context,omitempty"`
	ActiveTab    *string           `json:"active_tab,omitempty" validate:"omitempty,oneof=post posts image video"`
}

// UpdateStateEndpoint handles PATCH /api/state.
type UpdateStateEndpoint struct{}

func (e *UpdateStateEndpoint) Route() (string, string, http.HandlerFunc) {
	return "PATCH", "/api/state", e.handler
}

func (e *UpdateStateEndpoint) RequiresInit() bool { return true }

func (e *UpdateStateEndpoint) Group() (string, string) { return stateGroup() }

// handler godoc
//
//	@Summary		Update working state
//	@Description	Set text, tone, context fields, or the active tab. Omitted fields are unchanged.
//	@Tags			state
//	@Accept			json
//	@Produce		json
//	@Param			request	body		UpdateStateRequest	true	"Fields to change"
//	@Success		200		{object}	workspace.State
//	@Failure		400		{object}	ErrorResponse
//	@Router			/api/state [patch]
func (e *UpdateStateEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	ws := workspaceOrError(w, r)
	if ws == nil {
		return
	}

	var req UpdateStateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, err)
		return
	}

	patch := workspace.Patch{
		SubjectTitle: req.SubjectTitle,
		Text:         req.Text,
		Tone:         req.Tone,
		Context:      req.Context,
	}
	if req.ActiveTab != nil {
		kind, _ := types.ParseKind(*req.ActiveTab)
		patch.ActiveTab = &kind
	}

	state, err := ws.Update(r.Context(), patch)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (e *UpdateStateEndpoint) Command(getServerURL func() string) *cobra.Command {
	var (
		title, text, textFile, tone, tab string
		summary, framing, lessons, voice string
	)
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change fields of the working state",
		Long: `Change fields of the working state. Only flags that are given are sent.

Examples:
  memoir api state set --tone reflective
  memoir api state set --text-file chapter3.md --title "Chapter 3"
  memoir api state set --summary "..." --voice "plainspoken"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var req UpdateStateRequest
			flags := cmd.Flags()
			if flags.Changed("title") {
				req.SubjectTitle = &title
			}
			if flags.Changed("text") {
				req.Text = &text
			}
			if textFile != "" {
				data, err := os.ReadFile(textFile)
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", textFile, err)
				}
				s := string(data)
				req.Text = &s
			}
			if flags.Changed("tone") {
				req.Tone = &tone
			}
			if flags.Changed("tab") {
				req.ActiveTab = &tab
			}
			if flags.Changed("summary") || flags.Changed("framing") || flags.Changed("lessons") || flags.Changed("voice") {
				req.Context = &dispatch.Context{
					ChapterSummary:  summary,
					ThematicFraming: framing,
					KeyLessons:      lessons,
					AuthorVoice:     voice,
				}
			}

			client := api.NewClient(getServerURL())
			var resp workspace.State
			if err := client.Patch(cmd.Context(), "/api/state", req, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Subject title")
	cmd.Flags().StringVar(&text, "text", "", "Working text")
	cmd.Flags().StringVar(&textFile, "text-file", "", "Read working text from a file")
	cmd.Flags().StringVar(&tone, "tone", "", "Tone for generated content")
	cmd.Flags().StringVar(&tab, "tab", "", "Active result tab (post, image, video)")
	cmd.Flags().StringVar(&summary, "summary", "", "Chapter summary context")
	cmd.Flags().StringVar(&framing, "framing", "", "Thematic framing context")
	cmd.Flags().StringVar(&lessons, "lessons", "", "Key lessons context")
	cmd.Flags().StringVar(&voice, "voice", "", "Author voice context")
	return cmd
}

// SelectSubjectEndpoint handles POST /api/subjects/{id}/select.
type SelectSubjectEndpoint struct{}

func (e *SelectSubjectEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/subjects/{id}/select", e.handler
}

func (e *SelectSubjectEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Select a chapter
//	@Description	Load a chapter's text from the document store into the working state
//	@Tags			state
//	@Produce		json
//	@Param			id	path		string	true	"Chapter ID"
//	@Success		200	{object}	workspace.State
//	@Failure		404	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/subjects/{id}/select [post]
func (e *SelectSubjectEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "subject id is required")
		return
	}
	ws := workspaceOrError(w, r)
	if ws == nil {
		return
	}

	state, err := ws.SelectSubject(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (e *SelectSubjectEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "select <chapter-id>",
		Short: "Make a chapter the working subject",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp workspace.State
			if err := client.Post(cmd.Context(), "/api/subjects/"+args[0]+"/select", nil, &resp); err != nil {
				return err
			}
			fmt.Printf("Selected %q (%d characters)\n", resp.Selection.Title, len([]rune(resp.Text)))
			return nil
		},
	}
}

// GeneratingResponse answers whether a subject has a video job in flight.
type GeneratingResponse struct {
	SubjectID  string `json:"subject_id"`
	Generating bool   `json:"generating"`
}

// GeneratingEndpoint handles GET /api/subjects/{id}/generating.
type GeneratingEndpoint struct{}

func (e *GeneratingEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/subjects/{id}/generating", e.handler
}

func (e *GeneratingEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Check for an in-flight video
//	@Description	Advisory check used to avoid offering a duplicate generate action
//	@Tags			jobs
//	@Produce		json
//	@Param			id	path		string	true	"Chapter ID"
//	@Success		200	{object}	GeneratingResponse
//	@Router			/api/subjects/{id}/generating [get]
func (e *GeneratingEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ws := workspaceOrError(w, r)
	if ws == nil {
		return
	}
	writeJSON(w, http.StatusOK, GeneratingResponse{
		SubjectID:  id,
		Generating: ws.Jobs().IsGeneratingFor(id),
	})
}

func (e *GeneratingEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "generating <chapter-id>",
		Short: "Check whether a chapter has a video in flight",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp GeneratingResponse
			if err := client.Get(cmd.Context(), "/api/subjects/"+args[0]+"/generating", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

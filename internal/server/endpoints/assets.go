package endpoints

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/memoir/internal/api"
	"github.com/jackzampolin/memoir/internal/types"
)

// SaveAssetRequest is the body for POST /api/assets.
type SaveAssetRequest struct {
	Kind  string `json:"kind" validate:"required,oneof=image video"`
	Title string `json:"title,omitempty" validate:"omitempty,max=200"`
}

// SaveAssetResponse returns the new document id.
type SaveAssetResponse struct {
	ID string `json:"id"`
}

// SaveAssetEndpoint handles POST /api/assets.
type SaveAssetEndpoint struct{}

func (e *SaveAssetEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/assets", e.handler
}

func (e *SaveAssetEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Save generated media
//	@Description	Writes the working image or video result to the document store against the selected chapter
//	@Tags			assets
//	@Accept			json
//	@Produce		json
//	@Param			request	body		SaveAssetRequest	true	"Kind and optional title"
//	@Success		201		{object}	SaveAssetResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		409		{object}	ErrorResponse
//	@Failure		503		{object}	ErrorResponse
//	@Router			/api/assets [post]
func (e *SaveAssetEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	ws := workspaceOrError(w, r)
	if ws == nil {
		return
	}

	var req SaveAssetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, err)
		return
	}

	id, err := ws.SaveAsset(r.Context(), types.Kind(req.Kind), req.Title)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, SaveAssetResponse{ID: id})
}

func (e *SaveAssetEndpoint) Command(getServerURL func() string) *cobra.Command {
	var title string
	cmd := &cobra.Command{
		Use:   "save-asset <image|video>",
		Short: "Save the working image or video to the document store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp SaveAssetResponse
			if err := client.Post(cmd.Context(), "/api/assets", SaveAssetRequest{Kind: args[0], Title: title}, &resp); err != nil {
				return err
			}
			fmt.Printf("Saved asset %s\n", resp.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Asset title (defaults to the chapter title)")
	return cmd
}

package endpoints

import (
	"strings"
	"testing"
	"time"

	"github.com/jackzampolin/memoir/internal/dispatch"
	"github.com/jackzampolin/memoir/internal/history"
	"github.com/jackzampolin/memoir/internal/types"
	"github.com/jackzampolin/memoir/internal/workspace"
)

func TestGenerateResponse_Text(t *testing.T) {
	t.Run("posts", func(t *testing.T) {
		resp := GenerateResponse{Generation: &workspace.Generation{
			Kind:    types.KindPost,
			EntryID: "e1",
			Status:  history.StatusComplete,
			Result: &dispatch.Result{Posts: []types.Post{
				{Platform: "Twitter", Caption: "Starting over."},
				{Platform: "LinkedIn", Caption: "Lessons from the farm.", Link: "https://example.com"},
			}},
		}}
		text := resp.Text()
		for _, want := range []string{"history entry e1", "[Twitter]\nStarting over.", "https://example.com"} {
			if !strings.Contains(text, want) {
				t.Errorf("text missing %q:\n%s", want, text)
			}
		}
	})

	t.Run("video_job", func(t *testing.T) {
		resp := GenerateResponse{Generation: &workspace.Generation{Kind: types.KindVideo, JobID: "j1"}}
		if got := resp.Text(); !strings.Contains(got, "video job j1 started") {
			t.Errorf("unexpected text: %q", got)
		}
	})

	t.Run("unrecorded_error", func(t *testing.T) {
		resp := GenerateResponse{Error: "boom"}
		if got := resp.Text(); got != "error: boom\n" {
			t.Errorf("unexpected text: %q", got)
		}
	})
}

func TestListHistoryResponse_Text(t *testing.T) {
	if got := (ListHistoryResponse{}).Text(); got != "no history" {
		t.Errorf("empty = %q", got)
	}

	resp := ListHistoryResponse{Entries: []history.Entry{{
		ID:           "e1",
		Timestamp:    time.Now(),
		SubjectTitle: "The Farm",
		Kind:         types.KindImage,
		Status:       history.StatusError,
		ErrorMessage: "no media",
		RetryCount:   2,
	}}}
	text := resp.Text()
	for _, want := range []string{"e1", "The Farm", "(retried 2)", "no media"} {
		if !strings.Contains(text, want) {
			t.Errorf("text missing %q:\n%s", want, text)
		}
	}
}

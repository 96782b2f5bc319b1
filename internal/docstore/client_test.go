package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackzampolin/memoir/internal/types"
)

func graphQLServer(t *testing.T, handle func(query string) any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v0/graphql" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var req struct {
			Query string `json:"query"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(handle(req.Query))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_HealthCheck(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		wantErr    bool
	}{
		{"healthy", http.StatusOK, false},
		{"unhealthy_500", http.StatusInternalServerError, true},
		{"unhealthy_503", http.StatusServiceUnavailable, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/health-check" {
					t.Errorf("unexpected path: %s", r.URL.Path)
				}
				w.WriteHeader(tt.statusCode)
			}))
			defer server.Close()

			err := NewClient(server.URL).HealthCheck(context.Background())
			if (err != nil) != tt.wantErr {
				t.Errorf("HealthCheck() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrUnhealthy) {
				t.Errorf("expected ErrUnhealthy, got %v", err)
			}
		})
	}
}

func TestClient_Chapter(t *testing.T) {
	srv := graphQLServer(t, func(query string) any {
		if !strings.Contains(query, `Chapter(docID: "bae-1")`) {
			return map[string]any{"data": map[string]any{"Chapter": []any{}}}
		}
		return map[string]any{"data": map[string]any{"Chapter": []any{
			map[string]any{
				"_docID":   "bae-1",
				"title":    "The Farm",
				"position": 3,
				"content":  "We sold the farm in the spring.",
			},
		}}}
	})
	client := NewClient(srv.URL)

	ch, err := client.Chapter(context.Background(), "bae-1")
	if err != nil {
		t.Fatalf("Chapter() error = %v", err)
	}
	if ch.ID != "bae-1" || ch.Title != "The Farm" || ch.Position != 3 {
		t.Errorf("unexpected chapter: %+v", ch)
	}
	if ch.Content != "We sold the farm in the spring." {
		t.Errorf("Content = %q", ch.Content)
	}

	_, err = client.Chapter(context.Background(), "bae-missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestClient_SaveAsset(t *testing.T) {
	queries := make(chan string, 1)
	srv := graphQLServer(t, func(query string) any {
		queries <- query
		return map[string]any{"data": map[string]any{"create_MediaAsset": []any{
			map[string]any{"_docID": "bae-asset"},
		}}}
	})

	id, err := NewClient(srv.URL).SaveAsset(context.Background(), Asset{
		SubjectID: "bae-1",
		Kind:      types.KindImage,
		URL:       "data:image/png;base64,AAAA",
		Title:     "The Farm",
		Prompt:    "an empty barn",
	})
	if err != nil {
		t.Fatalf("SaveAsset() error = %v", err)
	}
	if id != "bae-asset" {
		t.Errorf("id = %q", id)
	}
	got := <-queries
	for _, want := range []string{`subject_id: "bae-1"`, `kind: "image"`, `prompt: "an empty barn"`} {
		if !strings.Contains(got, want) {
			t.Errorf("mutation missing %s: %s", want, got)
		}
	}

	// Rejected locally; the server is never called.
	if _, err := NewClient(srv.URL).SaveAsset(context.Background(), Asset{SubjectID: "x"}); err == nil {
		t.Error("expected error for asset without url")
	}
}

func TestClient_GraphQLError(t *testing.T) {
	srv := graphQLServer(t, func(string) any {
		return map[string]any{"errors": []any{map[string]any{"message": "boom"}}}
	})
	_, err := NewClient(srv.URL).Chapter(context.Background(), "x")
	if !errors.Is(err, ErrQuery) || !strings.Contains(err.Error(), "boom") {
		t.Errorf("expected ErrQuery carrying the message, got %v", err)
	}

	empty := graphQLServer(t, func(string) any {
		return map[string]any{"data": map[string]any{"create_MediaAsset": []any{}}}
	})
	_, err = NewClient(empty.URL).SaveAsset(context.Background(), Asset{SubjectID: "bae-1", URL: "https://cdn.example.com/a.png"})
	if !errors.Is(err, ErrQuery) {
		t.Errorf("expected ErrQuery for a create without an id, got %v", err)
	}
}

func TestClient_ChapterQuotesID(t *testing.T) {
	queries := make(chan string, 1)
	srv := graphQLServer(t, func(query string) any {
		queries <- query
		return map[string]any{"data": map[string]any{"Chapter": []any{}}}
	})

	_, err := NewClient(srv.URL).Chapter(context.Background(), `bae-"1"`)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if got := <-queries; !strings.Contains(got, `Chapter(docID: "bae-\"1\"")`) {
		t.Errorf("id not quoted as a GraphQL string: %s", got)
	}
}

func TestAsset_Input(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	got := Asset{
		SubjectID: "bae-1",
		Kind:      types.KindVideo,
		URL:       "https://cdn.example.com/farm.mp4",
		Title:     "The \"Farm\"",
		Prompt:    "line\nbreak",
	}.input(at)

	want := `{subject_id: "bae-1", kind: "video", url: "https://cdn.example.com/farm.mp4", ` +
		`title: "The \"Farm\"", prompt: "line\nbreak", created_at: "2024-05-01T12:00:00Z"}`
	if got != want {
		t.Errorf("input() =\n%s\nwant\n%s", got, want)
	}
}

func TestWaitHealthy(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := waitHealthy(context.Background(), NewClient(srv.URL), time.Second, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("waitHealthy() error = %v", err)
	}
	if n := calls.Load(); n != 3 {
		t.Errorf("expected 3 health checks, got %d", n)
	}
}

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jackzampolin/memoir/internal/config"
	"github.com/jackzampolin/memoir/internal/dispatch"
	"github.com/jackzampolin/memoir/internal/history"
	"github.com/jackzampolin/memoir/internal/home"
	"github.com/jackzampolin/memoir/internal/jobs"
	"github.com/jackzampolin/memoir/internal/server/endpoints"
	"github.com/jackzampolin/memoir/internal/testutil"
	"github.com/jackzampolin/memoir/internal/types"
	"github.com/jackzampolin/memoir/internal/workspace"
)

const postsBody = "### **Platform: Twitter**\n**Caption:** Starting over.\n\n### **Platform: LinkedIn**\n**Caption:** Lessons from the farm."

// webhook answers post requests with two captions, video requests with a
// video URL, and image requests with an image URL only once imagesReady is set.
type webhook struct {
	imagesReady atomic.Bool
	calls       atomic.Int32
}

func (wh *webhook) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	wh.calls.Add(1)
	var req struct {
		Kind string `json:"kind"`
	}
	json.NewDecoder(r.Body).Decode(&req)

	switch req.Kind {
	case "image":
		if wh.imagesReady.Load() {
			io.WriteString(w, "image_url: https://cdn.example.com/barn.png")
			return
		}
		io.WriteString(w, "still rendering")
	case "video":
		io.WriteString(w, "video_url: https://cdn.example.com/farm.mp4")
	default:
		io.WriteString(w, postsBody)
	}
}

type testServer struct {
	srv     *Server
	cfg     testutil.ServerConfig
	starter *testutil.StartServer
}

func writeConfig(t *testing.T, path, webhookURL string) {
	t.Helper()
	data := fmt.Sprintf(`webhook:
  url: %s
  video_timeout: 5s
docstore:
  url: ""
content:
  api_key: ""
log_level: debug
`, webhookURL)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
}

func startServer(t *testing.T, cfg testutil.ServerConfig) *testServer {
	t.Helper()

	cm, err := config.NewManager(cfg.ConfigFile)
	require.NoError(t, err)
	h, err := home.New(cfg.HomePath)
	require.NoError(t, err)

	srv, err := New(Config{
		Host:          cfg.Host,
		Port:          cfg.Port,
		Home:          h,
		ConfigManager: cm,
		Logger:        cfg.Logger,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Start(ctx)
	}()

	ts := &testServer{srv: srv, cfg: cfg, starter: &testutil.StartServer{Cancel: cancel, Done: done}}
	if err := testutil.WaitForServer(cfg.URL(), 10*time.Second); err != nil {
		ts.starter.Stop()
		t.Fatalf("server did not start: %v", err)
	}
	return ts
}

func TestServer_FullLifecycle(t *testing.T) {
	wh := &webhook{}
	hook := httptest.NewServer(wh)
	defer hook.Close()

	cfg := testutil.NewServerConfig(t)
	writeConfig(t, cfg.ConfigFile, hook.URL)
	ts := startServer(t, cfg)
	base := cfg.URL()

	t.Run("health", func(t *testing.T) {
		var resp endpoints.HealthResponse
		status := testutil.DoJSON(t, "GET", base+"/health", nil, &resp)
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "ok", resp.Status)
	})

	t.Run("ready_without_docstore", func(t *testing.T) {
		var resp endpoints.HealthResponse
		status := testutil.DoJSON(t, "GET", base+"/ready", nil, &resp)
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "not_configured", resp.Docstore)
	})

	t.Run("status", func(t *testing.T) {
		var resp endpoints.StatusResponse
		status := testutil.DoJSON(t, "GET", base+"/status", nil, &resp)
		assert.Equal(t, http.StatusOK, status)
		assert.True(t, resp.Webhook.Configured)
		assert.Equal(t, "5s", resp.Webhook.Timeouts["video"])
		assert.Equal(t, "not_configured", resp.Content)
	})

	t.Run("generate_rejects_short_text", func(t *testing.T) {
		testutil.DoJSON(t, "PATCH", base+"/api/state", map[string]any{"text": "too short"}, nil)

		var resp endpoints.ErrorResponse
		status := testutil.DoJSON(t, "POST", base+"/api/generate", endpoints.GenerateRequest{Kind: "post"}, &resp)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.NotEmpty(t, resp.Error)
	})

	t.Run("generate_rejects_unknown_kind", func(t *testing.T) {
		status := testutil.DoJSON(t, "POST", base+"/api/generate", map[string]string{"kind": "podcast"}, nil)
		assert.Equal(t, http.StatusBadRequest, status)
	})

	text := "The winter my father sold the farm, we learned what it meant to start over."
	t.Run("update_state", func(t *testing.T) {
		var s workspace.State
		status := testutil.DoJSON(t, "PATCH", base+"/api/state", map[string]any{
			"subject_title": "The Farm",
			"text":          text,
			"tone":          "warm",
		}, &s)
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, text, s.Text)
		assert.Equal(t, "The Farm", s.Selection.Title)
	})

	t.Run("generate_posts", func(t *testing.T) {
		var resp endpoints.GenerateResponse
		status := testutil.DoJSON(t, "POST", base+"/api/generate", endpoints.GenerateRequest{Kind: "post"}, &resp)
		require.Equal(t, http.StatusOK, status)
		require.NotNil(t, resp.Generation)
		assert.Equal(t, history.StatusComplete, resp.Status)
		require.NotNil(t, resp.Result)
		assert.Len(t, resp.Result.Posts, 2)

		var s workspace.State
		testutil.DoJSON(t, "GET", base+"/api/state", nil, &s)
		require.NotNil(t, s.Posts)
		assert.Equal(t, "Starting over.", s.Posts.Posts[0].Caption)
		assert.Equal(t, types.KindPost, s.ActiveTab)
	})

	var failedEntry string
	t.Run("image_without_media_is_recorded", func(t *testing.T) {
		var resp endpoints.GenerateResponse
		status := testutil.DoJSON(t, "POST", base+"/api/generate", endpoints.GenerateRequest{Kind: "image"}, &resp)
		require.Equal(t, http.StatusBadGateway, status)
		require.NotNil(t, resp.Generation)
		assert.Equal(t, history.StatusError, resp.Status)
		assert.NotEmpty(t, resp.Error)
		failedEntry = resp.EntryID
	})

	t.Run("retry_updates_entry_in_place", func(t *testing.T) {
		require.NotEmpty(t, failedEntry)
		wh.imagesReady.Store(true)

		var resp endpoints.GenerateResponse
		status := testutil.DoJSON(t, "POST", base+"/api/history/"+failedEntry+"/retry", nil, &resp)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, failedEntry, resp.EntryID)
		assert.Equal(t, history.StatusComplete, resp.Status)

		var list endpoints.ListHistoryResponse
		testutil.DoJSON(t, "GET", base+"/api/history", nil, &list)
		require.Len(t, list.Entries, 2)
		assert.Equal(t, failedEntry, list.Entries[0].ID)
		assert.Equal(t, 1, list.Entries[0].RetryCount)
	})

	t.Run("retry_unknown_entry", func(t *testing.T) {
		status := testutil.DoJSON(t, "POST", base+"/api/history/nope/retry", nil, nil)
		assert.Equal(t, http.StatusNotFound, status)
	})

	t.Run("video_job", func(t *testing.T) {
		var resp endpoints.GenerateResponse
		status := testutil.DoJSON(t, "POST", base+"/api/generate", endpoints.GenerateRequest{
			Kind:       "video",
			VideoScene: "A tractor at dusk, slow pan.",
		}, &resp)
		require.Equal(t, http.StatusAccepted, status)
		require.NotNil(t, resp.Generation)
		jobID := resp.JobID
		require.NotEmpty(t, jobID)

		require.Eventually(t, func() bool {
			job, err := ts.srv.Workspace().Jobs().Get(jobID)
			return err == nil && job.Status == jobs.StatusCompleted
		}, 5*time.Second, 20*time.Millisecond)

		var job jobs.Job
		status = testutil.DoJSON(t, "GET", base+"/api/jobs/"+jobID, nil, &job)
		require.Equal(t, http.StatusOK, status)
		require.NotNil(t, job.Result)
		assert.Equal(t, "https://cdn.example.com/farm.mp4", job.Result.URL)

		status = testutil.DoJSON(t, "DELETE", base+"/api/jobs/"+jobID, nil, nil)
		assert.Equal(t, http.StatusNoContent, status)
		status = testutil.DoJSON(t, "GET", base+"/api/jobs/"+jobID, nil, nil)
		assert.Equal(t, http.StatusNotFound, status)
	})

	t.Run("studio_image_not_configured", func(t *testing.T) {
		status := testutil.DoJSON(t, "POST", base+"/api/studio/image", endpoints.StudioImageRequest{Prompt: "a red barn"}, nil)
		assert.Equal(t, http.StatusServiceUnavailable, status)
	})

	t.Run("select_without_docstore", func(t *testing.T) {
		status := testutil.DoJSON(t, "POST", base+"/api/subjects/ch-1/select", nil, nil)
		assert.Equal(t, http.StatusServiceUnavailable, status)
	})

	ts.starter.Stop()
	assert.False(t, ts.srv.IsRunning())

	// A second server on the same home restores the working state.
	cfg.Port, _ = testutil.FindFreePort()
	restarted := startServer(t, cfg)
	defer restarted.starter.Stop()

	var s workspace.State
	testutil.DoJSON(t, "GET", cfg.URL()+"/api/state", nil, &s)
	assert.Equal(t, text, s.Text)
	assert.Equal(t, "warm", s.Tone)
	require.NotNil(t, s.Image)
	assert.Equal(t, "https://cdn.example.com/barn.png", s.Image.MediaURL)

	var list endpoints.ListHistoryResponse
	testutil.DoJSON(t, "GET", cfg.URL()+"/api/history", nil, &list)
	assert.Len(t, list.Entries, 3)
}

func TestServer_ContextCancellation(t *testing.T) {
	cfg := testutil.NewServerConfig(t)
	writeConfig(t, cfg.ConfigFile, "")
	ts := startServer(t, cfg)
	require.True(t, ts.srv.IsRunning())

	ts.starter.Cancel()
	require.NoError(t, testutil.WaitForShutdown(ts.starter.Done, 10*time.Second))
	assert.False(t, ts.srv.IsRunning())

	_, err := http.Get(cfg.URL() + "/health")
	assert.Error(t, err, "server should not accept connections after shutdown")
}

func TestServer_DoubleStart(t *testing.T) {
	cfg := testutil.NewServerConfig(t)
	writeConfig(t, cfg.ConfigFile, "")
	ts := startServer(t, cfg)
	defer ts.starter.Stop()

	err := ts.srv.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")
}

func TestServer_GenerateWithoutWebhook(t *testing.T) {
	cfg := testutil.NewServerConfig(t)
	writeConfig(t, cfg.ConfigFile, "")
	ts := startServer(t, cfg)
	defer ts.starter.Stop()

	testutil.DoJSON(t, "PATCH", cfg.URL()+"/api/state", map[string]any{
		"text": "The winter my father sold the farm, we learned what it meant to start over.",
	}, nil)
	status := testutil.DoJSON(t, "POST", cfg.URL()+"/api/generate", endpoints.GenerateRequest{Kind: "post"}, nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
}

func TestServer_WriteTimeoutOutlastsDispatch(t *testing.T) {
	cfg := testutil.NewServerConfig(t)
	writeConfig(t, cfg.ConfigFile, "")
	cm, err := config.NewManager(cfg.ConfigFile)
	require.NoError(t, err)
	h, err := home.New(cfg.HomePath)
	require.NoError(t, err)

	srv, err := New(Config{Host: cfg.Host, Port: cfg.Port, Home: h, ConfigManager: cm, Logger: cfg.Logger})
	require.NoError(t, err)

	// A reload can raise the video deadline as far as the cap without a restart.
	srv.dispatcher.Reload(dispatch.Config{VideoTimeout: 2 * time.Hour})
	require.Equal(t, dispatch.MaxTimeout, srv.dispatcher.Timeout(types.KindVideo))
	assert.Greater(t, srv.httpServer.WriteTimeout, srv.dispatcher.Timeout(types.KindVideo))
}

package workspace

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackzampolin/memoir/internal/dispatch"
	"github.com/jackzampolin/memoir/internal/docstore"
	"github.com/jackzampolin/memoir/internal/history"
	"github.com/jackzampolin/memoir/internal/jobs"
	"github.com/jackzampolin/memoir/internal/store"
	"github.com/jackzampolin/memoir/internal/types"
)

// GenerateOptions tunes a single Generate call.
type GenerateOptions struct {
	// VideoScene overrides the scene for video. When empty the content
	// service writes one from the working text.
	VideoScene string
}

// Generation describes a dispatch started or completed by Generate or Retry.
type Generation struct {
	Kind    types.Kind        `json:"kind"`
	EntryID string            `json:"entry_id,omitempty"`
	JobID   string            `json:"job_id,omitempty"`
	Status  history.Status    `json:"status,omitempty"`
	Request *dispatch.Request `json:"request"`
	Result  *dispatch.Result  `json:"result,omitempty"`
}

// Generate dispatches the working text as kind.
//
// Post and image requests are sent synchronously: the outcome is recorded in
// the ledger, a success replaces that kind's result, and a failure is
// returned along with the Generation naming its ledger entry. A request
// abandoned by the caller's ctx is not recorded.
//
// Video requests are handed to the job registry and Generate returns as soon
// as the job exists; the ledger entry is written when the job finishes.
func (w *Workspace) Generate(ctx context.Context, kind types.Kind, opts GenerateOptions) (*Generation, error) {
	s := w.State()
	in := dispatch.Input{
		SubjectTitle: s.Selection.Title,
		Tone:         s.Tone,
		Context:      s.Context,
		VideoScene:   opts.VideoScene,
	}

	if kind == types.KindVideo {
		return w.startVideo(ctx, s, in)
	}

	req, err := w.dispatcher.Build(kind, s.Text, in)
	if err != nil {
		return nil, err
	}

	gen := &Generation{Kind: kind, Request: req}
	res, sendErr := w.send(ctx, req)
	if errors.Is(sendErr, dispatch.ErrCanceled) {
		w.logger.Info("dispatch abandoned", "kind", kind)
		return gen, sendErr
	}

	entry := w.ledger.Record(kind, req.SubjectTitle, *req, sendErr)
	gen.EntryID = entry.ID
	gen.Status = entry.Status
	keys := []store.Key{store.KeyHistory}
	if sendErr == nil {
		gen.Result = res
		keys = append(keys, w.apply(kind, res)...)
	}
	w.persist(ctx, keys...)
	return gen, sendErr
}

func (w *Workspace) startVideo(ctx context.Context, s State, in dispatch.Input) (*Generation, error) {
	if in.VideoScene == "" && w.content != nil && s.Text != "" {
		in.VideoScene = w.content.ScenePrompt(ctx, s.Text)
	}
	req, err := w.dispatcher.Build(types.KindVideo, s.Text, in)
	if err != nil {
		return nil, err
	}

	jobID := w.jobs.Start(s.Selection.ID, s.Selection.Title, req.Prompt(), req)
	return &Generation{Kind: types.KindVideo, JobID: jobID, Request: req}, nil
}

// send dispatches req and result-checks media kinds, tracking the kind's
// loading flag while in flight.
func (w *Workspace) send(ctx context.Context, req *dispatch.Request) (*dispatch.Result, error) {
	counter := w.inflight[req.Kind]
	counter.Add(1)
	defer counter.Add(-1)

	res, err := w.dispatcher.Send(ctx, req)
	if err != nil {
		return nil, err
	}
	if req.Kind.IsMedia() && (res.Media == nil || res.Media.MediaURL == "") {
		return nil, jobs.ErrNoMedia
	}
	return res, nil
}

// videoFinished records a finished video job. The result becomes the working
// video only if its subject is still selected; the job keeps it either way.
func (w *Workspace) videoFinished(out jobs.Outcome) {
	ctx := context.Background()

	entry := w.ledger.Record(types.KindVideo, out.Job.Title, *out.Request, out.Err)
	keys := []store.Key{store.KeyHistory}

	if out.Err == nil && out.Result != nil {
		var applied bool
		w.mu.RLock()
		current := w.state.Selection.ID
		w.mu.RUnlock()
		if current == out.Job.SubjectID {
			keys = append(keys, w.apply(types.KindVideo, out.Result)...)
			applied = true
		}
		w.logger.Info("video job finished", "job_id", out.Job.ID, "entry_id", entry.ID, "applied", applied)
	} else {
		w.logger.Warn("video job failed", "job_id", out.Job.ID, "entry_id", entry.ID, "status", entry.Status, "error", out.Err)
	}
	w.persist(ctx, keys...)
}

// Retry resends the exact payload stored in ledger entry id and updates that
// entry in place. All kinds retry synchronously, video included, so the
// outcome lands on the original entry rather than a new one.
func (w *Workspace) Retry(ctx context.Context, id string) (*Generation, error) {
	entry, err := w.ledger.BeginRetry(id)
	if err != nil {
		return nil, err
	}
	w.persist(ctx, store.KeyHistory)

	req := entry.Payload
	res, sendErr := w.send(ctx, &req)

	entry, err = w.ledger.FinishRetry(id, sendErr)
	if err != nil {
		// Evicted while the retry was in flight.
		w.logger.Warn("retry outcome not recorded", "entry_id", id, "error", err)
	}

	gen := &Generation{Kind: req.Kind, EntryID: id, Status: entry.Status, Request: &req}
	keys := []store.Key{store.KeyHistory}
	if sendErr == nil {
		gen.Result = res
		keys = append(keys, w.apply(req.Kind, res)...)
	}
	w.persist(ctx, keys...)

	w.logger.Info("retry finished", "entry_id", id, "kind", req.Kind, "retry_count", entry.RetryCount, "status", entry.Status)
	return gen, sendErr
}

// apply stores res as the latest result for kind and returns the keys that
// changed.
func (w *Workspace) apply(kind types.Kind, res *dispatch.Result) []store.Key {
	var key store.Key
	w.mutate(func(s *State) {
		switch kind {
		case types.KindPost:
			s.Posts = &PostsResult{Posts: res.Posts, Raw: res.Text}
			key = store.KeyPostsResult
		case types.KindImage:
			s.Image = store.EncodeMedia(res.Media.Clone())
			key = store.KeyImageResult
		case types.KindVideo:
			s.Video = store.EncodeMedia(res.Media.Clone())
			key = store.KeyVideoResult
		}
		s.ActiveTab = kind
	})
	return []store.Key{key, store.KeyActiveTab}
}

// StudioImage generates an image through the content service rather than
// the workflow engine. The result replaces the working image; raw bytes are
// encoded into a data URI before anything is stored.
func (w *Workspace) StudioImage(ctx context.Context, prompt string) (*types.MediaResult, error) {
	if w.content == nil {
		return nil, fmt.Errorf("content service: %w", dispatch.ErrNotConfigured)
	}
	if prompt == "" {
		return nil, fmt.Errorf("%w: prompt is required", ErrInvalid)
	}

	counter := w.inflight[types.KindImage]
	counter.Add(1)
	m, err := w.content.GenerateImage(ctx, prompt)
	counter.Add(-1)
	if err != nil {
		return nil, err
	}

	m = store.EncodeMedia(m)
	w.mutate(func(s *State) {
		s.Image = m.Clone()
		s.ActiveTab = types.KindImage
	})
	w.persist(ctx, store.KeyImageResult, store.KeyActiveTab)
	return m, nil
}

// SaveAsset writes the working media result for kind to the document store
// and returns the new document id. An empty title uses the subject title.
func (w *Workspace) SaveAsset(ctx context.Context, kind types.Kind, title string) (string, error) {
	if !kind.IsMedia() {
		return "", fmt.Errorf("%w: kind %q has no media", ErrInvalid, kind)
	}
	if w.docs == nil {
		return "", fmt.Errorf("document store: %w", dispatch.ErrNotConfigured)
	}

	s := w.State()
	if s.Selection.ID == "" {
		return "", ErrNoSubject
	}
	m := s.media(kind)
	if m == nil || m.MediaURL == "" {
		return "", fmt.Errorf("%w: %s", ErrNoResult, kind)
	}
	if title == "" {
		title = s.Selection.Title
	}

	id, err := w.docs.SaveAsset(ctx, docstore.Asset{
		SubjectID: s.Selection.ID,
		Kind:      kind,
		URL:       m.MediaURL,
		Title:     title,
		Prompt:    m.OriginatingPrompt,
	})
	if err != nil {
		return "", err
	}
	w.logger.Info("asset saved", "subject_id", s.Selection.ID, "kind", kind, "asset_id", id)
	return id, nil
}

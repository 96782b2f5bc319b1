// Package workspace owns the pipeline's working state: the selected subject,
// its text and context fields, the latest result per kind, and the active
// tab. Every mutation goes through this package, which mirrors the changed
// slices to the store before returning.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/jackzampolin/memoir/internal/content"
	"github.com/jackzampolin/memoir/internal/dispatch"
	"github.com/jackzampolin/memoir/internal/docstore"
	"github.com/jackzampolin/memoir/internal/history"
	"github.com/jackzampolin/memoir/internal/jobs"
	"github.com/jackzampolin/memoir/internal/store"
	"github.com/jackzampolin/memoir/internal/types"
)

var (
	// ErrNoSubject is returned when an operation needs a selected subject.
	ErrNoSubject = errors.New("no subject selected")

	// ErrNoResult is returned by SaveAsset when the kind has no media yet.
	ErrNoResult = errors.New("no result to save")

	// ErrInvalid is returned for malformed caller input.
	ErrInvalid = errors.New("invalid input")
)

// Dispatcher builds and sends generation requests.
// *dispatch.Dispatcher satisfies it.
type Dispatcher interface {
	Build(kind types.Kind, content string, in dispatch.Input) (*dispatch.Request, error)
	Send(ctx context.Context, req *dispatch.Request) (*dispatch.Result, error)
}

// ContentService is the AI collaborator. *content.Service satisfies it.
type ContentService interface {
	Analyze(ctx context.Context, text string) (*content.Analysis, error)
	ScenePrompt(ctx context.Context, text string) string
	GenerateImage(ctx context.Context, prompt string) (*types.MediaResult, error)
}

// Documents is the document store collaborator. *docstore.Client satisfies it.
type Documents interface {
	Chapter(ctx context.Context, id string) (*docstore.Chapter, error)
	SaveAsset(ctx context.Context, asset docstore.Asset) (string, error)
}

// Persister saves and loads JSON values by key. *store.Store satisfies it.
type Persister interface {
	Save(ctx context.Context, key store.Key, v any) error
	Load(ctx context.Context, key store.Key, v any) error
}

// Config configures a Workspace.
type Config struct {
	Dispatcher Dispatcher
	Ledger     *history.Ledger
	Store      Persister
	Content    ContentService // Optional
	Documents  Documents      // Optional
	Logger     *slog.Logger
}

// Workspace is the single owner of working state.
type Workspace struct {
	mu    sync.RWMutex
	state State

	// In-flight synchronous dispatches per kind.
	inflight map[types.Kind]*atomic.Int32

	dispatcher Dispatcher
	ledger     *history.Ledger
	store      Persister
	content    ContentService
	docs       Documents
	jobs       *jobs.Manager
	logger     *slog.Logger
}

// New creates a Workspace and the job registry that backs video generation.
func New(cfg Config) *Workspace {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ledger := cfg.Ledger
	if ledger == nil {
		ledger = history.New(history.Config{Logger: logger})
	}

	w := &Workspace{
		inflight:   make(map[types.Kind]*atomic.Int32, len(types.Kinds)),
		dispatcher: cfg.Dispatcher,
		ledger:     ledger,
		store:      cfg.Store,
		content:    cfg.Content,
		docs:       cfg.Documents,
		logger:     logger,
	}
	for _, kind := range types.Kinds {
		w.inflight[kind] = new(atomic.Int32)
	}
	w.jobs = jobs.NewManager(jobs.Config{
		Sender:   cfg.Dispatcher,
		Logger:   logger,
		OnFinish: w.videoFinished,
	})
	return w
}

// Jobs returns the job registry.
func (w *Workspace) Jobs() *jobs.Manager {
	return w.jobs
}

// Ledger returns the history ledger.
func (w *Workspace) Ledger() *history.Ledger {
	return w.ledger
}

// State returns a copy of the current state.
func (w *Workspace) State() State {
	w.mu.RLock()
	s := w.state.clone()
	w.mu.RUnlock()

	s.Loading = Loading{
		Post:  w.inflight[types.KindPost].Load() > 0,
		Image: w.inflight[types.KindImage].Load() > 0,
		Video: w.inflight[types.KindVideo].Load() > 0,
	}
	if s.Selection.ID != "" && w.jobs.IsGeneratingFor(s.Selection.ID) {
		s.Loading.Video = true
	}
	return s
}

// Update applies a patch and persists the slices it touched.
func (w *Workspace) Update(ctx context.Context, p Patch) (State, error) {
	if p.ActiveTab != nil {
		if _, ok := types.ParseKind(string(*p.ActiveTab)); !ok {
			return State{}, fmt.Errorf("%w: active tab %q", ErrInvalid, *p.ActiveTab)
		}
	}

	var keys []store.Key
	w.mutate(func(s *State) {
		if p.SubjectTitle != nil {
			s.Selection.Title = *p.SubjectTitle
			keys = append(keys, store.KeySelectedSubject)
		}
		if p.Text != nil {
			s.Text = *p.Text
			keys = append(keys, store.KeySelectedText)
		}
		if p.Tone != nil {
			s.Tone = *p.Tone
			keys = append(keys, store.KeyTone)
		}
		if p.Context != nil {
			s.Context = *p.Context
			keys = append(keys, store.KeyContext)
		}
		if p.ActiveTab != nil {
			kind, _ := types.ParseKind(string(*p.ActiveTab))
			s.ActiveTab = kind
			keys = append(keys, store.KeyActiveTab)
		}
	})
	w.persist(ctx, keys...)
	return w.State(), nil
}

// SelectSubject loads chapter id from the document store and makes it the
// working subject. Results from a previous subject are kept.
func (w *Workspace) SelectSubject(ctx context.Context, id string) (State, error) {
	if w.docs == nil {
		return State{}, fmt.Errorf("document store: %w", dispatch.ErrNotConfigured)
	}
	ch, err := w.docs.Chapter(ctx, id)
	if err != nil {
		return State{}, err
	}

	w.mutate(func(s *State) {
		s.Selection = Selection{ID: ch.ID, Title: ch.Title}
		s.Text = ch.Content
	})
	w.persist(ctx, store.KeySelectedSubject, store.KeySelectedText)
	w.logger.Info("subject selected", "subject_id", ch.ID)
	return w.State(), nil
}

// Analyze runs the content service over the working text and stores the
// resulting context fields. Without a content service the canned analysis
// comes back from content.Service itself, so only cancellation fails here.
func (w *Workspace) Analyze(ctx context.Context) (*content.Analysis, error) {
	if w.content == nil {
		return nil, fmt.Errorf("content service: %w", dispatch.ErrNotConfigured)
	}
	text := w.State().Text
	analysis, err := w.content.Analyze(ctx, text)
	if err != nil {
		return nil, err
	}

	w.mutate(func(s *State) {
		s.Context = analysis.Context()
	})
	w.persist(ctx, store.KeyContext)
	return analysis, nil
}

// mutate applies fn to a copy of the state and swaps it in whole.
func (w *Workspace) mutate(fn func(*State)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	next := w.state.clone()
	fn(&next)
	w.state = next
}

// Shutdown stops background jobs.
func (w *Workspace) Shutdown(ctx context.Context) error {
	return w.jobs.Shutdown(ctx)
}

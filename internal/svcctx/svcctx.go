// Package svcctx provides service context for dependency injection via context.
// This package is separate from server to avoid import cycles with endpoints.
package svcctx

import (
	"context"
	"log/slog"

	"github.com/jackzampolin/memoir/internal/content"
	"github.com/jackzampolin/memoir/internal/dispatch"
	"github.com/jackzampolin/memoir/internal/docstore"
	"github.com/jackzampolin/memoir/internal/home"
	"github.com/jackzampolin/memoir/internal/jobs"
	"github.com/jackzampolin/memoir/internal/store"
	"github.com/jackzampolin/memoir/internal/workspace"
)

// Services holds all core services that flow through context.
// Components extract what they need via the individual extractors.
type Services struct {
	Workspace  *workspace.Workspace
	Dispatcher *dispatch.Dispatcher
	Store      *store.Store
	Content    *content.Service
	Docstore   *docstore.Client // nil when no document store is configured
	Logger     *slog.Logger
	Home       *home.Dir
}

type servicesKey struct{}

// WithServices returns a new context with services attached.
func WithServices(ctx context.Context, s *Services) context.Context {
	return context.WithValue(ctx, servicesKey{}, s)
}

// ServicesFrom extracts the full Services struct from context.
// Returns nil if not present.
func ServicesFrom(ctx context.Context) *Services {
	s, _ := ctx.Value(servicesKey{}).(*Services)
	return s
}

// WorkspaceFrom extracts the workspace from context.
func WorkspaceFrom(ctx context.Context) *workspace.Workspace {
	if s := ServicesFrom(ctx); s != nil {
		return s.Workspace
	}
	return nil
}

// JobsFrom extracts the job registry from context.
func JobsFrom(ctx context.Context) *jobs.Manager {
	if s := ServicesFrom(ctx); s != nil && s.Workspace != nil {
		return s.Workspace.Jobs()
	}
	return nil
}

// DocstoreFrom extracts the document store client from context.
func DocstoreFrom(ctx context.Context) *docstore.Client {
	if s := ServicesFrom(ctx); s != nil {
		return s.Docstore
	}
	return nil
}

// LoggerFrom extracts the logger from context.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if s := ServicesFrom(ctx); s != nil {
		return s.Logger
	}
	return nil
}

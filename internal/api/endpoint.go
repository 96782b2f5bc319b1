package api

import (
	"net/http"

	"github.com/spf13/cobra"
)

// Endpoint is one API operation: an HTTP route plus the CLI command that
// calls it.
type Endpoint interface {
	// Route returns the HTTP method, path, and handler.
	Route() (method, path string, handler http.HandlerFunc)

	// RequiresInit reports whether the handler needs restored state.
	// Such routes answer 503 until the workspace is loaded.
	RequiresInit() bool

	// Command returns a cobra command that calls the route over HTTP.
	// getServerURL is evaluated when the command runs, after flag parsing.
	Command(getServerURL func() string) *cobra.Command
}

// Grouped is implemented by endpoints whose command lives under a shared
// parent command, such as "memoir api jobs get".
type Grouped interface {
	Group() (name, short string)
}

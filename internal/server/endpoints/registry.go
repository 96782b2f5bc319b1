package endpoints

import (
	"github.com/jackzampolin/memoir/internal/api"
	"github.com/jackzampolin/memoir/internal/docstore"
)

// Config holds dependencies needed by some endpoints.
type Config struct {
	DockerManager *docstore.DockerManager
	DocstoreURL   string
}

// All returns all endpoint instances.
func All(cfg Config) []api.Endpoint {
	return []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&ReadyEndpoint{},
		&StatusEndpoint{DockerManager: cfg.DockerManager, DocstoreURL: cfg.DocstoreURL},

		// Working state
		&GetStateEndpoint{},
		&UpdateStateEndpoint{},
		&SelectSubjectEndpoint{},
		&AnalyzeEndpoint{},

		// Generation
		&GenerateEndpoint{},
		&StudioImageEndpoint{},
		&SaveAssetEndpoint{},

		// History
		&ListHistoryEndpoint{},
		&RetryEndpoint{},

		// Jobs
		&ListJobsEndpoint{},
		&GetJobEndpoint{},
		&DismissJobEndpoint{},
		&GeneratingEndpoint{},
	}
}

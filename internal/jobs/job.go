package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/jackzampolin/memoir/internal/dispatch"
)

var (
	// ErrNotFound is returned for an unknown or dismissed job id.
	ErrNotFound = errors.New("job not found")

	// ErrFinished is returned when a terminal transition is applied twice.
	ErrFinished = errors.New("job already finished")

	// ErrNoMedia is the failure recorded when the engine answered
	// successfully but the response carried no media URL.
	ErrNoMedia = errors.New("response contained no media URL")
)

// Status represents the current state of a job.
type Status string

const (
	StatusGenerating Status = "generating"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Result is the media produced by a completed job.
type Result struct {
	URL       string `json:"url"`
	Thumbnail string `json:"thumbnail,omitempty"`
}

// Job is a tracked background generation request. Values handed out by the
// Manager are copies; the registry replaces whole values on every change.
type Job struct {
	ID          string     `json:"id"`
	SubjectID   string     `json:"subject_id"`
	Title       string     `json:"title"`
	Prompt      string     `json:"prompt"`
	Status      Status     `json:"status"`
	Result      *Result    `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Finished reports whether the job has reached a terminal state.
func (j Job) Finished() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// Sender delivers a request to the workflow engine.
// *dispatch.Dispatcher satisfies it.
type Sender interface {
	Send(ctx context.Context, req *dispatch.Request) (*dispatch.Result, error)
}

// Outcome describes how a background dispatch ended.
type Outcome struct {
	Job     Job
	Request *dispatch.Request
	Result  *dispatch.Result // nil on failure
	Err     error
}

// FinishFunc is called once per job after its terminal transition.
type FinishFunc func(Outcome)

func resultFrom(res *dispatch.Result) (*Result, error) {
	if res == nil || res.Media == nil || res.Media.MediaURL == "" {
		return nil, ErrNoMedia
	}
	return &Result{URL: res.Media.MediaURL, Thumbnail: res.Media.ThumbnailURL}, nil
}

package dispatch

import (
	"strings"
	"unicode/utf8"

	"github.com/jackzampolin/memoir/internal/types"
)

// Context holds the structured chapter context passed through to the
// workflow engine unchanged.
type Context struct {
	ChapterSummary  string `json:"chapterSummary,omitempty" yaml:"chapter_summary,omitempty"`
	ThematicFraming string `json:"thematicFraming,omitempty" yaml:"thematic_framing,omitempty"`
	KeyLessons      string `json:"keyLessons,omitempty" yaml:"key_lessons,omitempty"`
	AuthorVoice     string `json:"authorVoice,omitempty" yaml:"author_voice,omitempty"`
}

// IsZero reports whether no context field is set.
func (c Context) IsZero() bool {
	return c == Context{}
}

// Input is everything a caller supplies besides kind and content.
type Input struct {
	SubjectTitle string
	Tone         string
	Context      Context
	// VideoScene overrides the scene description sent for video requests.
	VideoScene string
}

// Request is the outbound payload. It is built once and never mutated;
// a retry sends the identical value.
type Request struct {
	// Routing fields
	Kind         types.Kind `json:"kind"`
	Content      string     `json:"content"`
	SubjectTitle string     `json:"subjectTitle"`
	Tone         string     `json:"tone,omitempty"`

	// Structured context, flattened into the payload
	Context

	// Legacy fields still read by older consumers of the same endpoint
	Topic         string `json:"topic,omitempty"`
	VideoScene    string `json:"videoScene,omitempty"`
	SourceExcerpt string `json:"sourceExcerpt,omitempty"`
}

// Prompt returns the text that best describes what was asked for.
func (r *Request) Prompt() string {
	if r.Kind == types.KindVideo && r.VideoScene != "" {
		return r.VideoScene
	}
	return r.Content
}

// sourceExcerptLength bounds the legacy excerpt sent with video requests.
const sourceExcerptLength = 500

func newRequest(kind types.Kind, content string, in Input) *Request {
	req := &Request{
		Kind:         kind,
		Content:      content,
		SubjectTitle: strings.TrimSpace(in.SubjectTitle),
		Tone:         strings.TrimSpace(in.Tone),
		Context:      in.Context,
	}

	switch kind {
	case types.KindPost, types.KindImage:
		req.Topic = content
	case types.KindVideo:
		req.VideoScene = strings.TrimSpace(in.VideoScene)
		if req.VideoScene == "" {
			req.VideoScene = content
		}
		req.SourceExcerpt = truncateRunes(content, sourceExcerptLength)
	}
	return req
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

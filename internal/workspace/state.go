package workspace

import (
	"github.com/jackzampolin/memoir/internal/dispatch"
	"github.com/jackzampolin/memoir/internal/types"
)

// Selection identifies the subject content is generated from.
type Selection struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// PostsResult is the latest post-kind outcome. Raw holds the engine's text
// when it could not be split into posts.
type PostsResult struct {
	Posts []types.Post `json:"posts"`
	Raw   string       `json:"raw,omitempty"`
}

// Loading reports which kinds have a dispatch in flight.
type Loading struct {
	Post  bool `json:"post"`
	Image bool `json:"image"`
	Video bool `json:"video"`
}

// State is the working state mirrored to the store.
type State struct {
	Selection Selection          `json:"selection"`
	Text      string             `json:"text"`
	Tone      string             `json:"tone"`
	Context   dispatch.Context   `json:"context"`
	Posts     *PostsResult       `json:"posts,omitempty"`
	Image     *types.MediaResult `json:"image,omitempty"`
	Video     *types.MediaResult `json:"video,omitempty"`
	ActiveTab types.Kind         `json:"active_tab,omitempty"`
	Loading   Loading            `json:"loading"`
}

// Patch is a partial update; nil fields are left alone.
type Patch struct {
	SubjectTitle *string           `json:"subject_title,omitempty"`
	Text         *string           `json:"text,omitempty"`
	Tone         *string           `json:"tone,omitempty"`
	Context      *dispatch.Context `json:"context,omitempty"`
	ActiveTab    *types.Kind       `json:"active_tab,omitempty"`
}

func (s State) clone() State {
	out := s
	if s.Posts != nil {
		p := *s.Posts
		p.Posts = append([]types.Post(nil), s.Posts.Posts...)
		out.Posts = &p
	}
	out.Image = s.Image.Clone()
	out.Video = s.Video.Clone()
	return out
}

func (s *State) media(kind types.Kind) *types.MediaResult {
	switch kind {
	case types.KindImage:
		return s.Image
	case types.KindVideo:
		return s.Video
	}
	return nil
}

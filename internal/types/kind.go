// Package types provides shared types used across multiple packages.
// This package has no dependencies on other memoir packages to avoid import cycles.
package types

import "strings"

// Kind is the content kind a generation request asks the workflow engine for.
type Kind string

const (
	// KindPost asks for per-platform social captions.
	KindPost Kind = "post"
	// KindImage asks for a still image plus optional captions.
	KindImage Kind = "image"
	// KindVideo asks for a short video clip plus optional captions.
	KindVideo Kind = "video"
)

// Kinds lists every supported kind in display order.
var Kinds = []Kind{KindPost, KindImage, KindVideo}

// ParseKind converts a string to a Kind.
// Returns false if the string is not a recognized kind.
func ParseKind(s string) (Kind, bool) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindPost, "posts", "social":
		return KindPost, true
	case KindImage:
		return KindImage, true
	case KindVideo:
		return KindVideo, true
	default:
		return "", false
	}
}

// IsMedia reports whether the kind produces a media result.
func (k Kind) IsMedia() bool {
	return k == KindImage || k == KindVideo
}

func (k Kind) String() string {
	return string(k)
}

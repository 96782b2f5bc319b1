// Package normalize classifies raw workflow-engine responses and converts
// them into canonical posts or media results.
//
// The engine's output format is not under our control: the same endpoint may
// answer with binary media, JSON, markdown with per-platform sections, or
// freeform text. Classify decodes a body exactly once into a closed set of
// shapes so callers never probe raw payloads again. It never fails; anything
// unrecognized comes back as ShapeRawText with the original text intact.
package normalize

import (
	"strings"

	"github.com/jackzampolin/memoir/internal/types"
)

// Shape identifies which variant of Parsed is populated.
type Shape string

const (
	ShapeBinaryImage     Shape = "binary_image"
	ShapeBinaryVideo     Shape = "binary_video"
	ShapeMarkdownPosts   Shape = "markdown_posts"
	ShapeStructuredPosts Shape = "structured_posts"
	ShapeMediaWithPosts  Shape = "media_with_posts"
	ShapeRawText         Shape = "raw_text"
)

// Parsed is the classified form of a response body.
//
//	ShapeBinaryImage, ShapeBinaryVideo      -> DataURI
//	ShapeMarkdownPosts, ShapeStructuredPosts -> Posts
//	ShapeMediaWithPosts                      -> Media
//	ShapeRawText                             -> Text
type Parsed struct {
	Shape   Shape              `json:"shape"`
	DataURI string             `json:"data_uri,omitempty"`
	Posts   []types.Post       `json:"posts,omitempty"`
	Media   *types.MediaResult `json:"media,omitempty"`
	Text    string             `json:"text,omitempty"`
}

// IsBinary reports whether the body was binary media.
func (p Parsed) IsBinary() bool {
	return p.Shape == ShapeBinaryImage || p.Shape == ShapeBinaryVideo
}

// maxUnwrapDepth bounds how many {"output": "..."} envelopes are peeled.
const maxUnwrapDepth = 2

// Classify converts a raw response into its canonical shape.
// contentType is the declared media type of the response (may be empty);
// kind is the content kind that was requested.
func Classify(body []byte, contentType string, kind types.Kind) Parsed {
	if mime, ok := binaryMediaType(contentType, body, kind); ok {
		return binaryParsed(mime, body)
	}
	return classifyText(string(body), kind, 0)
}

// ClassifyText classifies a body that is already known to be text.
func ClassifyText(text string, kind types.Kind) Parsed {
	return Classify([]byte(text), "text/plain", kind)
}

func classifyText(text string, kind types.Kind, depth int) Parsed {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Parsed{Shape: ShapeRawText, Text: text}
	}

	if depth < maxUnwrapDepth {
		if inner, ok := unwrapEnvelope(trimmed); ok {
			return classifyText(inner, kind, depth+1)
		}
	}

	if kind.IsMedia() {
		if media, ok := ParseMedia(trimmed, kind); ok {
			return Parsed{Shape: ShapeMediaWithPosts, Media: media}
		}
	}

	if posts := ParseMarkdownPosts(trimmed); len(posts) > 0 {
		return Parsed{Shape: ShapeMarkdownPosts, Posts: posts}
	}

	if posts, ok := ParseStructuredPosts(trimmed); ok {
		return Parsed{Shape: ShapeStructuredPosts, Posts: posts}
	}

	return Parsed{Shape: ShapeRawText, Text: text}
}

func binaryParsed(mime string, body []byte) Parsed {
	uri := DataURI(mime, body)
	if strings.HasPrefix(mime, "video/") {
		return Parsed{Shape: ShapeBinaryVideo, DataURI: uri}
	}
	return Parsed{Shape: ShapeBinaryImage, DataURI: uri}
}

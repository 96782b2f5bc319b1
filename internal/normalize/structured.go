package normalize

import (
	"encoding/json"
	"strings"

	"github.com/jackzampolin/memoir/internal/types"
)

// platformSpec describes one well-known network and the JSON keys it may
// appear under. The slice order is the output order, which keeps repeated
// parses of the same body identical.
type platformSpec struct {
	Name string
	Keys []string
	Rich bool // pin-board style: title, description, link, alt text
}

var knownPlatforms = []platformSpec{
	{Name: "Twitter", Keys: []string{"twitter", "x"}},
	{Name: "LinkedIn", Keys: []string{"linkedin", "linked_in"}},
	{Name: "Facebook", Keys: []string{"facebook", "fb"}},
	{Name: "Instagram", Keys: []string{"instagram", "ig"}},
	{Name: "Pinterest", Keys: []string{"pinterest"}, Rich: true},
	{Name: "Threads", Keys: []string{"threads"}},
}

// postContainerKeys name the wrapper object holding per-platform posts.
var postContainerKeys = []string{"platform_posts", "platformPosts", "posts", "social_posts"}

// captionKeys are probed, in order, on a per-platform object.
var captionKeys = []string{"text", "caption", "post", "content", "body", "description"}

// envelopeKeys name single-field wrappers the workflow engine puts around
// its real output, e.g. [{"output": "..."}].
var envelopeKeys = map[string]bool{
	"output": true, "text": true, "message": true, "result": true, "content": true, "response": true,
}

// CanonicalPlatform maps a platform key or name onto its display name.
// Unknown names are returned trimmed but otherwise unchanged.
func CanonicalPlatform(name string) string {
	key := strings.ToLower(strings.TrimSpace(name))
	for _, p := range knownPlatforms {
		for _, k := range p.Keys {
			if key == k {
				return p.Name
			}
		}
	}
	return strings.TrimSpace(name)
}

// ParseStructuredPosts extracts posts from a JSON body. It accepts a
// platform_posts wrapper, per-platform keys at the root, or an array of
// objects carrying a "platform" field. Returns false if no posts were found.
func ParseStructuredPosts(text string) ([]types.Post, bool) {
	doc, err := parseStructuredJSON(text)
	if err != nil {
		return nil, false
	}

	switch v := doc.(type) {
	case map[string]any:
		if posts := postsFromObject(v); len(posts) > 0 {
			return posts, true
		}
	case []any:
		if posts := postsFromArray(v); len(posts) > 0 {
			return posts, true
		}
	}
	return nil, false
}

func postsFromObject(obj map[string]any) []types.Post {
	for _, key := range postContainerKeys {
		raw, ok := lookupFold(obj, key)
		if !ok {
			continue
		}
		switch inner := raw.(type) {
		case map[string]any:
			if posts := platformKeyedPosts(inner); len(posts) > 0 {
				return posts
			}
		case []any:
			if posts := postsFromArray(inner); len(posts) > 0 {
				return posts
			}
		}
	}
	return platformKeyedPosts(obj)
}

func platformKeyedPosts(obj map[string]any) []types.Post {
	var posts []types.Post
	for _, spec := range knownPlatforms {
		for _, key := range spec.Keys {
			raw, ok := lookupFold(obj, key)
			if !ok {
				continue
			}
			if post, ok := platformPost(spec, raw); ok {
				posts = append(posts, post)
			}
			break
		}
	}
	return posts
}

func platformPost(spec platformSpec, raw any) (types.Post, bool) {
	post := types.Post{Platform: spec.Name}
	switch v := raw.(type) {
	case string:
		post.Caption = strings.TrimSpace(v)
	case map[string]any:
		if spec.Rich {
			post.Title = stringField(v, "title")
			post.Caption = stringField(v, "description", "caption", "text")
			post.Link = stringField(v, "link", "url")
			post.AltText = stringField(v, "alt_text", "altText", "alt")
		} else {
			post.Caption = stringField(v, captionKeys...)
			post.Title = stringField(v, "title")
			post.Link = stringField(v, "link", "url")
		}
	default:
		return post, false
	}
	if post.Caption == "" && post.Title == "" {
		return post, false
	}
	return post, true
}

func postsFromArray(items []any) []types.Post {
	var posts []types.Post
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		name := stringField(obj, "platform", "network")
		if name == "" {
			continue
		}
		spec := platformSpec{Name: CanonicalPlatform(name)}
		if spec.Name == "Pinterest" {
			spec.Rich = true
		}
		if post, ok := platformPost(spec, obj); ok {
			posts = append(posts, post)
		}
	}
	return posts
}

// unwrapEnvelope peels a single-field {"output": "..."} wrapper, optionally
// inside a one-element array.
func unwrapEnvelope(text string) (string, bool) {
	if !strings.HasPrefix(text, "{") && !strings.HasPrefix(text, "[") {
		return "", false
	}
	var doc any
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return "", false
	}
	if arr, ok := doc.([]any); ok {
		if len(arr) != 1 {
			return "", false
		}
		doc = arr[0]
	}
	obj, ok := doc.(map[string]any)
	if !ok || len(obj) != 1 {
		return "", false
	}
	for k, v := range obj {
		s, ok := v.(string)
		if ok && envelopeKeys[strings.ToLower(k)] {
			return s, true
		}
	}
	return "", false
}

func lookupFold(obj map[string]any, key string) (any, bool) {
	if v, ok := obj[key]; ok {
		return v, true
	}
	for k, v := range obj {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}

func stringField(obj map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := lookupFold(obj, key); ok {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

// parseStructuredJSON parses JSON from engine output, with lightweight
// recovery for markdown code fences and surrounding text.
func parseStructuredJSON(content string) (any, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrNotJSON
	}

	candidates := []string{content}
	if stripped := stripCodeFences(content); stripped != "" && stripped != content {
		candidates = append(candidates, stripped)
	}
	if extracted := extractJSONCandidate(content); extracted != "" && extracted != content {
		candidates = append(candidates, extracted)
	}

	for _, candidate := range candidates {
		var parsed any
		if err := json.Unmarshal([]byte(candidate), &parsed); err == nil {
			return parsed, nil
		}
	}
	return nil, ErrNotJSON
}

func stripCodeFences(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return ""
	}

	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return ""
	}

	// Drop the opening fence line (may carry a language tag).
	lines = lines[1:]
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func extractJSONCandidate(content string) string {
	trimmed := strings.TrimSpace(content)
	objectStart := strings.Index(trimmed, "{")
	arrayStart := strings.Index(trimmed, "[")

	start := -1
	closeChar := ""
	switch {
	case objectStart >= 0 && (arrayStart < 0 || objectStart < arrayStart):
		start, closeChar = objectStart, "}"
	case arrayStart >= 0:
		start, closeChar = arrayStart, "]"
	default:
		return ""
	}

	end := strings.LastIndex(trimmed, closeChar)
	if end < start {
		return ""
	}
	return strings.TrimSpace(trimmed[start : end+1])
}

// ExtractJSON recovers a JSON document from model or engine output that may
// be wrapped in code fences or surrounded by prose.
func ExtractJSON(content string) (json.RawMessage, error) {
	parsed, err := parseStructuredJSON(content)
	if err != nil {
		return nil, err
	}
	return json.Marshal(parsed)
}

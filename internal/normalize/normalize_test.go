package normalize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jackzampolin/memoir/internal/types"
)

const twoSectionMarkdown = `Here are your posts!

### **Platform: Instagram**
**Caption:** The summer I learned to **swim** changed everything.
---

### **Platform: LinkedIn**
**Caption:**
Resilience is a *habit*, not a trait.
---
`

func TestClassify_MarkdownSections(t *testing.T) {
	parsed := ClassifyText(twoSectionMarkdown, types.KindPost)

	require.Equal(t, ShapeMarkdownPosts, parsed.Shape)
	require.Len(t, parsed.Posts, 2)
	assert.Equal(t, "Instagram", parsed.Posts[0].Platform)
	assert.Equal(t, "The summer I learned to swim changed everything.", parsed.Posts[0].Caption)
	assert.Equal(t, "LinkedIn", parsed.Posts[1].Platform)
	assert.Equal(t, "Resilience is a habit, not a trait.", parsed.Posts[1].Caption)
}

func TestParseMarkdownPosts(t *testing.T) {
	t.Run("caption beats post and text", func(t *testing.T) {
		text := "### Platform: Facebook\nText: wrong\nPost: also wrong\nCaption: right\n"
		posts := ParseMarkdownPosts(text)
		require.Len(t, posts, 1)
		assert.Equal(t, "right", posts[0].Caption)
	})

	t.Run("post used when no caption", func(t *testing.T) {
		text := "### Platform: Facebook\nText: wrong\n**Post:** right one\n"
		posts := ParseMarkdownPosts(text)
		require.Len(t, posts, 1)
		assert.Equal(t, "right one", posts[0].Caption)
	})

	t.Run("alt text is not a text label", func(t *testing.T) {
		text := "### Platform: Pinterest\nAlt Text: a lake at dawn\nText: the caption\n"
		posts := ParseMarkdownPosts(text)
		require.Len(t, posts, 1)
		assert.Equal(t, "the caption", posts[0].Caption)
	})

	t.Run("fallback strips noise blocks", func(t *testing.T) {
		text := "### **Platform: Twitter**\n**Title:** Lake days\n\n" +
			"Forty summers at the same lake.\n\n" +
			"**Visual Suggestion:** a faded photo of a dock\n\n---\n"
		posts := ParseMarkdownPosts(text)
		require.Len(t, posts, 1)
		assert.Equal(t, "Forty summers at the same lake.", posts[0].Caption)
		assert.Equal(t, "Lake days", posts[0].Title)
	})

	t.Run("duplicate platforms are preserved", func(t *testing.T) {
		text := "### Platform: X\nCaption: one\n### Platform: X\nCaption: two\n"
		posts := ParseMarkdownPosts(text)
		require.Len(t, posts, 2)
		assert.Equal(t, "one", posts[0].Caption)
		assert.Equal(t, "two", posts[1].Caption)
	})

	t.Run("caption stops at horizontal rule", func(t *testing.T) {
		text := "## Platform: Threads\nCaption: keep this\n***\ndrop this\n"
		posts := ParseMarkdownPosts(text)
		require.Len(t, posts, 1)
		assert.Equal(t, "keep this", posts[0].Caption)
	})

	t.Run("caption stops at next heading", func(t *testing.T) {
		text := "## Platform: Threads\nCaption: keep this\n\nand this\n#### Notes\ndrop this\n"
		posts := ParseMarkdownPosts(text)
		require.Len(t, posts, 1)
		assert.Equal(t, "keep this\n\nand this", posts[0].Caption)
	})

	t.Run("bare bold platform lines open sections", func(t *testing.T) {
		text := "Drafts below.\n\n**Platform: Facebook**\nCaption: first\n\n**Platform: Bluesky**\nCaption: second\n"
		posts := ParseMarkdownPosts(text)
		require.Len(t, posts, 2)
		assert.Equal(t, types.Post{Platform: "Facebook", Caption: "first"}, posts[0])
		assert.Equal(t, types.Post{Platform: "Bluesky", Caption: "second"}, posts[1])
	})

	t.Run("no platform sections", func(t *testing.T) {
		assert.Nil(t, ParseMarkdownPosts("# Chapter one\n\nPlatform engineering is a job title."))
	})
}

func TestParseMarkdownPosts_LiteralPunctuation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "asterisks and underscores outside emphasis",
			body: "### **Platform: Twitter**\n**Caption:** Bake at 2 * 3 * 60 minutes. Recipe: https://example.com/grandma__pie",
			want: "Bake at 2 * 3 * 60 minutes. Recipe: https://example.com/grandma__pie",
		},
		{
			name: "snake case identifiers",
			body: "### Platform: Mastodon\nCaption: my_first_post and __init__ files",
			want: "my_first_post and __init__ files",
		},
		{
			name: "escaped markup",
			body: "### Platform: Mastodon\nCaption: 5 \\* 5 is \\*not\\* 10",
			want: "5 * 5 is *not* 10",
		},
		{
			name: "code spans keep their text",
			body: "### Platform: LinkedIn\nCaption: run `make **all**` first",
			want: "run `make **all**` first",
		},
		{
			name: "links keep their destination",
			body: "### Platform: Facebook\nCaption: read [the chapter](https://example.com/ch-1) tonight",
			want: "read the chapter (https://example.com/ch-1) tonight",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed := ClassifyText(tt.body, types.KindPost)
			require.Equal(t, ShapeMarkdownPosts, parsed.Shape)
			require.Len(t, parsed.Posts, 1)
			assert.Equal(t, tt.want, parsed.Posts[0].Caption)
		})
	}
}

func TestPlainText(t *testing.T) {
	assert.Equal(t, "a dock at dawn", PlainText("**a dock at dawn**"))
	assert.Equal(t, "2 * 3", PlainText("_2 * 3_"))
}

func TestClassify_StructuredPosts(t *testing.T) {
	t.Run("platform_posts wrapper", func(t *testing.T) {
		parsed := ClassifyText(`{"platform_posts": {"X": {"text": "tweet"}}}`, types.KindPost)
		require.Equal(t, ShapeStructuredPosts, parsed.Shape)
		assert.Equal(t, []types.Post{{Platform: "Twitter", Caption: "tweet"}}, parsed.Posts)
	})

	t.Run("pinterest rich shape", func(t *testing.T) {
		body := `{"platform_posts": {
			"pinterest": {"title": "Lake", "description": "Dawn swim", "link": "https://ex.com", "alt_text": "a lake"},
			"linkedin": "Lessons from the lake"
		}}`
		parsed := ClassifyText(body, types.KindPost)
		require.Equal(t, ShapeStructuredPosts, parsed.Shape)
		require.Len(t, parsed.Posts, 2)
		assert.Equal(t, types.Post{Platform: "LinkedIn", Caption: "Lessons from the lake"}, parsed.Posts[0])
		assert.Equal(t, types.Post{
			Platform: "Pinterest",
			Title:    "Lake",
			Caption:  "Dawn swim",
			Link:     "https://ex.com",
			AltText:  "a lake",
		}, parsed.Posts[1])
	})

	t.Run("direct keys in code fence", func(t *testing.T) {
		body := "```json\n{\"facebook\": {\"caption\": \"hello\"}}\n```"
		parsed := ClassifyText(body, types.KindPost)
		require.Equal(t, ShapeStructuredPosts, parsed.Shape)
		assert.Equal(t, "Facebook", parsed.Posts[0].Platform)
		assert.Equal(t, "hello", parsed.Posts[0].Caption)
	})

	t.Run("array of platform objects", func(t *testing.T) {
		parsed := ClassifyText(`[{"platform": "instagram", "caption": "a"}, {"platform": "Mastodon", "text": "b"}]`, types.KindPost)
		require.Equal(t, ShapeStructuredPosts, parsed.Shape)
		assert.Equal(t, []types.Post{
			{Platform: "Instagram", Caption: "a"},
			{Platform: "Mastodon", Caption: "b"},
		}, parsed.Posts)
	})
}

func TestClassify_Envelope(t *testing.T) {
	inner := strings.ReplaceAll(twoSectionMarkdown, "\n", `\n`)
	inner = strings.ReplaceAll(inner, `"`, `\"`)
	parsed := ClassifyText(`[{"output": "`+inner+`"}]`, types.KindPost)

	require.Equal(t, ShapeMarkdownPosts, parsed.Shape)
	assert.Len(t, parsed.Posts, 2)
}

func TestClassify_Media(t *testing.T) {
	t.Run("image markdown link with captions", func(t *testing.T) {
		body := "![cover](https://cdn.example.com/a.png)\nprompt: a dock at dawn\n\n" +
			"### Platform: Instagram\nCaption: dawn\n"
		parsed := ClassifyText(body, types.KindImage)
		require.Equal(t, ShapeMediaWithPosts, parsed.Shape)
		assert.Equal(t, "https://cdn.example.com/a.png", parsed.Media.MediaURL)
		assert.Equal(t, "a dock at dawn", parsed.Media.OriginatingPrompt)
		require.Len(t, parsed.Media.Posts, 1)
		assert.Equal(t, "dawn", parsed.Media.Posts[0].Caption)
	})

	t.Run("image_url label in json", func(t *testing.T) {
		parsed := ClassifyText(`{"image_url": "https://cdn.example.com/b.jpg", "platform_posts": {"x": "hi"}}`, types.KindImage)
		require.Equal(t, ShapeMediaWithPosts, parsed.Shape)
		assert.Equal(t, "https://cdn.example.com/b.jpg", parsed.Media.MediaURL)
		assert.Equal(t, []types.Post{{Platform: "Twitter", Caption: "hi"}}, parsed.Media.Posts)
	})

	t.Run("video_url label and thumbnail", func(t *testing.T) {
		body := "video_url: https://cdn.example.com/v.mp4\nthumbnail_url: https://cdn.example.com/v.jpg"
		parsed := ClassifyText(body, types.KindVideo)
		require.Equal(t, ShapeMediaWithPosts, parsed.Shape)
		assert.Equal(t, "https://cdn.example.com/v.mp4", parsed.Media.MediaURL)
		assert.Equal(t, "https://cdn.example.com/v.jpg", parsed.Media.ThumbnailURL)
		assert.NotNil(t, parsed.Media.Posts)
	})

	t.Run("bare mp4 url", func(t *testing.T) {
		parsed := ClassifyText("Your clip is ready: https://cdn.example.com/clip.mp4?sig=1.", types.KindVideo)
		require.Equal(t, ShapeMediaWithPosts, parsed.Shape)
		assert.Equal(t, "https://cdn.example.com/clip.mp4?sig=1", parsed.Media.MediaURL)
	})

	t.Run("video url ignored for post kind", func(t *testing.T) {
		parsed := ClassifyText("video_url: https://cdn.example.com/v.mp4", types.KindPost)
		assert.Equal(t, ShapeRawText, parsed.Shape)
	})
}

func TestClassify_Binary(t *testing.T) {
	png := append([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, []byte("rest")...)

	tests := []struct {
		name        string
		body        []byte
		contentType string
		kind        types.Kind
		wantShape   Shape
		wantPrefix  string
	}{
		{"declared image", []byte("xx"), "image/jpeg", types.KindImage, ShapeBinaryImage, "data:image/jpeg;base64,"},
		{"declared image with params", []byte("xx"), "image/png; charset=binary", types.KindPost, ShapeBinaryImage, "data:image/png;base64,"},
		{"declared video", []byte("xx"), "video/mp4", types.KindVideo, ShapeBinaryVideo, "data:video/mp4;base64,"},
		{"octet stream sniffed", png, "application/octet-stream", types.KindVideo, ShapeBinaryImage, "data:image/png;base64,"},
		{"octet stream video fallback", []byte("xx"), "application/octet-stream", types.KindVideo, ShapeBinaryVideo, "data:video/mp4;base64,"},
		{"mislabeled png", png, "text/plain", types.KindImage, ShapeBinaryImage, "data:image/png;base64,"},
		{"mislabeled gif", []byte("GIF89a...."), "application/json", types.KindImage, ShapeBinaryImage, "data:image/gif;base64,"},
		{"mislabeled jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0}, "", types.KindImage, ShapeBinaryImage, "data:image/jpeg;base64,"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed := Classify(tt.body, tt.contentType, tt.kind)
			assert.Equal(t, tt.wantShape, parsed.Shape)
			assert.True(t, parsed.IsBinary())
			assert.True(t, strings.HasPrefix(parsed.DataURI, tt.wantPrefix), "got %q", parsed.DataURI)
		})
	}
}

func TestClassify_RawTextFallback(t *testing.T) {
	inputs := []string{
		"Just some thoughts about the chapter, nothing structured.",
		`{"unrelated": {"nested": true}}`,
		"### Heading without platform\n**bold**",
		"",
		"{not json",
	}
	for _, in := range inputs {
		parsed := ClassifyText(in, types.KindImage)
		assert.Equal(t, ShapeRawText, parsed.Shape, "input %q", in)
		assert.Equal(t, in, parsed.Text)
	}
}

func TestClassify_Idempotent(t *testing.T) {
	bodies := []string{
		twoSectionMarkdown,
		`{"platform_posts": {"x": "a", "linkedin": "b", "facebook": "c", "instagram": "d", "threads": "e"}}`,
		"![c](https://e.com/x.png)\n### Platform: X\nCaption: y",
		"plain",
	}
	for _, body := range bodies {
		first := ClassifyText(body, types.KindImage)
		second := ClassifyText(body, types.KindImage)
		assert.Equal(t, first, second)
	}
}

func TestSniffSignature(t *testing.T) {
	assert.Equal(t, "image/webp", SniffSignature([]byte("RIFF\x00\x00\x00\x00WEBPVP8 ")))
	assert.Equal(t, "video/mp4", SniffSignature([]byte("\x00\x00\x00\x18ftypmp42")))
	assert.Equal(t, "", SniffSignature([]byte("hello world")))
}

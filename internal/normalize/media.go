package normalize

import (
	"regexp"
	"strings"

	"github.com/jackzampolin/memoir/internal/types"
)

const urlChars = `[^\s"'<>)\]]+`

var (
	markdownImageRe = regexp.MustCompile(`!\[[^\]]*\]\(\s*(` + urlChars + `)`)
	imageURLLabelRe = labelRe(`image_?url`, `(?:https?://|data:image/)`)
	videoURLLabelRe = labelRe(`video_?url`, `(?:https?://|data:video/)`)
	thumbLabelRe    = labelRe(`thumbnail_?url`, `(?:https?://|data:image/)`)
	bareMP4Re       = regexp.MustCompile(`https?://[^\s"'<>)\]]+?\.mp4(?:\?[^\s"'<>)\]]*)?`)
	promptLabelRe   = regexp.MustCompile(
		`(?im)^[ \t]*[*_"]{0,2}[ \t]*(?:image_prompt|video_prompt|prompt)[ \t]*[*_"]{0,2}[ \t]*[:=][ \t]*[*_"]{0,2}[ \t]*(.+?)[ \t]*$`,
	)
)

// labelRe matches `label: value` in plain text, markdown, or JSON form and
// captures the value when it starts with one of the allowed schemes.
func labelRe(label, scheme string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b` + label + `\b["'*]*[ \t]*[:=][ \t]*["'*]*[ \t]*(` + scheme + urlChars + `)`)
}

// ParseMedia looks for a media URL appropriate to kind and, independently,
// for platform captions in the same text. Returns false if no URL is found.
func ParseMedia(text string, kind types.Kind) (*types.MediaResult, bool) {
	url := ""
	switch kind {
	case types.KindImage:
		url = firstCapture(text, markdownImageRe, imageURLLabelRe)
	case types.KindVideo:
		url = firstCapture(text, videoURLLabelRe)
		if url == "" {
			url = cleanURL(bareMP4Re.FindString(text))
		}
	}
	if url == "" {
		return nil, false
	}

	media := &types.MediaResult{
		MediaURL:     url,
		ThumbnailURL: firstCapture(text, thumbLabelRe),
		Posts:        []types.Post{},
	}
	if m := promptLabelRe.FindStringSubmatch(text); m != nil {
		media.OriginatingPrompt = strings.Trim(PlainText(m[1]), `",`)
	}

	if posts := ParseMarkdownPosts(text); len(posts) > 0 {
		media.Posts = posts
	} else if posts, ok := ParseStructuredPosts(text); ok {
		media.Posts = posts
	}
	return media, true
}

func firstCapture(text string, res ...*regexp.Regexp) string {
	for _, re := range res {
		if m := re.FindStringSubmatch(text); m != nil {
			if u := cleanURL(m[1]); u != "" {
				return u
			}
		}
	}
	return ""
}

// cleanURL drops trailing punctuation picked up from surrounding prose.
func cleanURL(u string) string {
	return strings.TrimRight(strings.TrimSpace(u), ".,;*")
}

package types

// Post is a normalized, platform-tagged piece of social content.
// Platform names are not unique within a result: duplicate sections in a
// response are preserved as separate posts.
type Post struct {
	Platform string `json:"platform"`
	Caption  string `json:"caption"`
	Title    string `json:"title,omitempty"`
	Link     string `json:"link,omitempty"`
	AltText  string `json:"alt_text,omitempty"`
}

// MediaResult is a normalized image or video result.
type MediaResult struct {
	// MediaURL is a remote URL or a self-contained data URI.
	MediaURL          string `json:"media_url"`
	ThumbnailURL      string `json:"thumbnail_url,omitempty"`
	OriginatingPrompt string `json:"originating_prompt"`
	Posts             []Post `json:"posts"`

	// Data holds raw bytes for results that have not been encoded yet.
	// It never survives serialization; persistence encodes it into MediaURL.
	Data        []byte `json:"-"`
	ContentType string `json:"-"`
}

// Clone returns a deep copy of the result.
func (m *MediaResult) Clone() *MediaResult {
	if m == nil {
		return nil
	}
	out := *m
	out.Posts = append([]Post(nil), m.Posts...)
	if m.Data != nil {
		out.Data = append([]byte(nil), m.Data...)
	}
	return &out
}

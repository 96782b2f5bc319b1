package docstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackzampolin/memoir/internal/types"
)

// Collection names, matching schemas/*.graphql.
const (
	ChapterCollection = "Chapter"
	AssetCollection   = "MediaAsset"
)

// Chapter is a subject the pipeline can generate content from.
type Chapter struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Position int    `json:"position"`
	Content  string `json:"content,omitempty"`
}

// chapterDoc is a Chapter as DefraDB returns it.
type chapterDoc struct {
	DocID    string `json:"_docID"`
	Title    string `json:"title"`
	Position int    `json:"position"`
	Content  string `json:"content"`
}

func (d chapterDoc) chapter() Chapter {
	return Chapter{ID: d.DocID, Title: d.Title, Position: d.Position, Content: d.Content}
}

// Asset is a generated media item saved against a chapter.
type Asset struct {
	SubjectID string     `json:"subject_id"`
	Kind      types.Kind `json:"kind"`
	URL       string     `json:"url"`
	Title     string     `json:"title"`
	Prompt    string     `json:"prompt"`
}

// input renders the asset as a MediaAsset create input, fields in schema
// order.
func (a Asset) input(createdAt time.Time) string {
	fields := []struct{ name, value string }{
		{"subject_id", a.SubjectID},
		{"kind", string(a.Kind)},
		{"url", a.URL},
		{"title", a.Title},
		{"prompt", a.Prompt},
		{"created_at", createdAt.UTC().Format(time.RFC3339)},
	}
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f.name+": "+quote(f.value))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Chapter returns the current text of chapter id.
func (c *Client) Chapter(ctx context.Context, id string) (*Chapter, error) {
	query := fmt.Sprintf(`{
		%s(docID: %s) {
			_docID
			title
			position
			content
		}
	}`, ChapterCollection, quote(id))

	var data struct {
		Chapters []chapterDoc `json:"Chapter"`
	}
	if err := c.graphql(ctx, query, &data); err != nil {
		return nil, err
	}
	if len(data.Chapters) == 0 {
		return nil, fmt.Errorf("%w: chapter %s", ErrNotFound, id)
	}
	ch := data.Chapters[0].chapter()
	return &ch, nil
}

// SaveAsset records a generated media item and returns its document ID.
func (c *Client) SaveAsset(ctx context.Context, asset Asset) (string, error) {
	if asset.SubjectID == "" || asset.URL == "" {
		return "", fmt.Errorf("asset requires a subject and a url")
	}
	mutation := fmt.Sprintf(`mutation { create_%s(input: %s) { _docID } }`,
		AssetCollection, asset.input(time.Now()))

	var data struct {
		Created []struct {
			DocID string `json:"_docID"`
		} `json:"create_MediaAsset"`
	}
	if err := c.graphql(ctx, mutation, &data); err != nil {
		return "", fmt.Errorf("failed to save asset: %w", err)
	}
	if len(data.Created) == 0 || data.Created[0].DocID == "" {
		return "", fmt.Errorf("%w: create returned no document id", ErrQuery)
	}
	return data.Created[0].DocID, nil
}

package endpoints

import (
	"fmt"
	"strings"
	"time"
)

// Text renders generated posts as captions and media as its URL, for
// --output text.
func (r GenerateResponse) Text() string {
	var b strings.Builder
	if r.Error != "" {
		fmt.Fprintf(&b, "error: %s\n", r.Error)
	}
	if r.Generation == nil {
		return b.String()
	}
	if r.JobID != "" {
		fmt.Fprintf(&b, "video job %s started\n", r.JobID)
	}
	if r.EntryID != "" {
		fmt.Fprintf(&b, "history entry %s (%s)\n", r.EntryID, r.Status)
	}
	if r.Result == nil {
		return b.String()
	}
	for _, p := range r.Result.Posts {
		fmt.Fprintf(&b, "\n[%s]\n%s\n", p.Platform, p.Caption)
		if p.Link != "" {
			fmt.Fprintf(&b, "%s\n", p.Link)
		}
	}
	if m := r.Result.Media; m != nil {
		fmt.Fprintf(&b, "\n%s\n", abbreviate(m.MediaURL, 120))
	}
	return b.String()
}

// Text renders one line per entry, newest first.
func (r ListHistoryResponse) Text() string {
	if len(r.Entries) == 0 {
		return "no history"
	}
	var b strings.Builder
	for _, e := range r.Entries {
		fmt.Fprintf(&b, "%s  %s  %-5s  %-8s  %s", e.ID, e.Timestamp.Local().Format(time.DateTime), e.Kind, e.Status, e.SubjectTitle)
		if e.RetryCount > 0 {
			fmt.Fprintf(&b, "  (retried %d)", e.RetryCount)
		}
		if e.ErrorMessage != "" {
			fmt.Fprintf(&b, "\n    %s", e.ErrorMessage)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

package normalize

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"

	"github.com/jackzampolin/memoir/internal/types"
)

var markdown = goldmark.New()

var (
	platformLineRe = regexp.MustCompile(`(?i)^\s*Platform\s*:\s*(\S.*?)\s*$`)
	titleLineRe    = regexp.MustCompile(`(?i)^\s*(?:[-+]\s+)?Title\s*:\s*(.+?)\s*$`)
	noiseLineRe    = regexp.MustCompile(`(?i)^\s*(?:[-+]\s+)?(?:Visual Suggestion|Title)\s*:`)

	// Caption beats Post beats Text.
	captionLabels = []*regexp.Regexp{
		captionLabelRe("Caption"),
		captionLabelRe("Post"),
		captionLabelRe("Text"),
	}
)

func captionLabelRe(label string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)^\s*(?:[-+]\s+)?` + label + `\s*:\s*`)
}

type blockKind int

const (
	blockText blockKind = iota
	blockHeading
	blockRule
)

// block is one rendered top-level block: paragraph text with inline markup
// removed, a heading, or a rule.
type block struct {
	kind  blockKind
	lines []string
}

type section struct {
	platform string
	blocks   []block
}

// ParseMarkdownPosts splits a markdown body into one post per platform
// section. A section opens at a heading (or a line of its own) reading
// "Platform: X". It returns nil when the body has no platform sections.
func ParseMarkdownPosts(body string) []types.Post {
	sections := splitSections(parseBlocks(body))
	if len(sections) == 0 {
		return nil
	}

	posts := make([]types.Post, 0, len(sections))
	for _, s := range sections {
		posts = append(posts, types.Post{
			Platform: s.platform,
			Title:    s.title(),
			Caption:  s.caption(),
		})
	}
	return posts
}

// PlainText renders a markdown fragment as plain text, dropping emphasis and
// other inline markup while keeping the words and literal punctuation.
func PlainText(s string) string {
	var paras []string
	for _, b := range parseBlocks(s) {
		if b.kind == blockRule {
			continue
		}
		if p := strings.TrimSpace(strings.Join(b.lines, "\n")); p != "" {
			paras = append(paras, p)
		}
	}
	return strings.Join(paras, "\n\n")
}

func parseBlocks(body string) []block {
	source := []byte(body)
	doc := markdown.Parser().Parse(text.NewReader(source))
	return flattenBlocks(doc, source, "", nil)
}

func flattenBlocks(parent ast.Node, source []byte, prefix string, out []block) []block {
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		switch n := n.(type) {
		case *ast.Heading:
			out = append(out, block{kind: blockHeading, lines: prefixLines(inlineText(n, source), prefix)})
			if isSetext(n, source) {
				out = append(out, block{kind: blockRule})
			}
		case *ast.ThematicBreak:
			out = append(out, block{kind: blockRule})
		case *ast.Paragraph, *ast.TextBlock:
			out = append(out, block{kind: blockText, lines: prefixLines(inlineText(n, source), prefix)})
		case *ast.List:
			out = append(out, block{kind: blockText, lines: listLines(n, source, prefix)})
		case *ast.Blockquote:
			out = flattenBlocks(n, source, prefix+"> ", out)
		case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.HTMLBlock:
			out = append(out, block{kind: blockText, lines: prefixLines(rawText(n, source), prefix)})
		default:
			out = flattenBlocks(n, source, prefix, out)
		}
	}
	return out
}

func listLines(l *ast.List, source []byte, prefix string) []string {
	var lines []string
	num := l.Start
	for item := l.FirstChild(); item != nil; item = item.NextSibling() {
		marker := "- "
		if l.IsOrdered() {
			marker = fmt.Sprintf("%d. ", num)
			num++
		}
		indent := strings.Repeat(" ", len(marker))
		first := true
		for _, b := range flattenBlocks(item, source, "", nil) {
			for _, line := range b.lines {
				if first {
					lines = append(lines, prefix+marker+line)
					first = false
					continue
				}
				lines = append(lines, prefix+indent+line)
			}
		}
		if first {
			lines = append(lines, prefix+strings.TrimSpace(marker))
		}
	}
	return lines
}

// inlineText renders the inline children of n. Emphasis wrappers are
// dropped and everything else keeps its literal text.
func inlineText(n ast.Node, source []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch n := n.(type) {
		case *ast.Text:
			if !entering {
				break
			}
			value := n.Segment.Value(source)
			if !n.IsRaw() {
				value = util.UnescapePunctuations(value)
			}
			b.Write(value)
			if n.SoftLineBreak() || n.HardLineBreak() {
				b.WriteByte('\n')
			}
		case *ast.String:
			if entering {
				b.Write(n.Value)
			}
		case *ast.CodeSpan:
			b.WriteByte('`')
		case *ast.AutoLink:
			if entering {
				b.Write(n.URL(source))
			}
			return ast.WalkSkipChildren, nil
		case *ast.Link:
			if !entering {
				break
			}
			label := childText(n, source)
			b.WriteString(label)
			if dest := string(n.Destination); dest != "" && dest != label {
				b.WriteString(" (" + dest + ")")
			}
			return ast.WalkSkipChildren, nil
		case *ast.RawHTML:
			if !entering {
				break
			}
			for i := 0; i < n.Segments.Len(); i++ {
				seg := n.Segments.At(i)
				b.Write(seg.Value(source))
			}
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}

func childText(n ast.Node, source []byte) string {
	var b strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		b.WriteString(inlineText(c, source))
	}
	return b.String()
}

func rawText(n ast.Node, source []byte) string {
	var b bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(source))
	}
	return strings.TrimRight(b.String(), "\n")
}

// isSetext reports whether h was written as text underlined with '=' or '-'.
// The underline ends the heading the same way a rule would.
func isSetext(h *ast.Heading, source []byte) bool {
	lines := h.Lines()
	if lines.Len() == 0 {
		return false
	}
	rest := source[lines.At(lines.Len()-1).Start:]
	nl := bytes.IndexByte(rest, '\n')
	if nl < 0 {
		return false
	}
	next := rest[nl+1:]
	if end := bytes.IndexByte(next, '\n'); end >= 0 {
		next = next[:end]
	}
	next = bytes.TrimSpace(next)
	if len(next) == 0 {
		return false
	}
	return len(bytes.Trim(next, "=")) == 0 || len(bytes.Trim(next, "-")) == 0
}

func prefixLines(s, prefix string) []string {
	lines := strings.Split(s, "\n")
	if prefix == "" {
		return lines
	}
	for i := range lines {
		lines[i] = prefix + lines[i]
	}
	return lines
}

// splitSections groups blocks under the platform line that precedes them.
// Anything before the first platform line is dropped.
func splitSections(blocks []block) []section {
	var (
		sections []section
		current  *section
	)
	open := func(platform string) {
		sections = append(sections, section{platform: platform})
		current = &sections[len(sections)-1]
	}

	for _, b := range blocks {
		if b.kind == blockHeading && len(b.lines) == 1 {
			if m := platformLineRe.FindStringSubmatch(b.lines[0]); m != nil {
				open(m[1])
				continue
			}
		}
		if b.kind != blockText {
			if current != nil {
				current.blocks = append(current.blocks, b)
			}
			continue
		}

		var pending []string
		for _, line := range b.lines {
			if m := platformLineRe.FindStringSubmatch(line); m != nil {
				if current != nil && len(pending) > 0 {
					current.blocks = append(current.blocks, block{kind: blockText, lines: pending})
				}
				pending = nil
				open(m[1])
				continue
			}
			pending = append(pending, line)
		}
		if current != nil && len(pending) > 0 {
			current.blocks = append(current.blocks, block{kind: blockText, lines: pending})
		}
	}
	return sections
}

func (s section) title() string {
	for _, b := range s.blocks {
		for _, line := range b.lines {
			if m := titleLineRe.FindStringSubmatch(line); m != nil {
				return m[1]
			}
		}
	}
	return ""
}

func (s section) caption() string {
	for _, re := range captionLabels {
		if caption, ok := s.labelled(re); ok {
			return caption
		}
	}
	return s.unlabelled()
}

// labelled returns the text after the first line carrying the label, running
// to the next rule or heading.
func (s section) labelled(re *regexp.Regexp) (string, bool) {
	for i, b := range s.blocks {
		for j, line := range b.lines {
			loc := re.FindStringIndex(line)
			if loc == nil {
				continue
			}

			first := append([]string{line[loc[1]:]}, b.lines[j+1:]...)
			paras := []string{strings.TrimSpace(strings.Join(first, "\n"))}
			for _, next := range s.blocks[i+1:] {
				if next.kind != blockText {
					break
				}
				paras = append(paras, strings.TrimSpace(strings.Join(next.lines, "\n")))
			}
			return strings.TrimSpace(strings.Join(paras, "\n\n")), true
		}
	}
	return "", false
}

// unlabelled is the section body minus rules and any title or visual
// suggestion notes, each of which runs to the end of its paragraph.
func (s section) unlabelled() string {
	var paras []string
	for _, b := range s.blocks {
		if b.kind == blockRule {
			continue
		}
		lines := b.lines
		for j, line := range lines {
			if noiseLineRe.MatchString(line) {
				lines = lines[:j]
				break
			}
		}
		if p := strings.TrimSpace(strings.Join(lines, "\n")); p != "" {
			paras = append(paras, p)
		}
	}
	return strings.Join(paras, "\n\n")
}

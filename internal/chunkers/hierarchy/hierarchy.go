// Package hierarchy provides a chunking strategy that follows the Markdown
// heading tree. Headings are located with the goldmark parser so that lines
// starting with '#' inside code blocks are not mistaken for headings.
package hierarchy

import (
	"bytes"
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/custodia-labs/docpipe/internal/chunkers/options"
	"github.com/custodia-labs/docpipe/internal/core/domain"
)

const (
	// Name is the strategy identifier.
	Name = "hierarchy_v1"

	// Version is the strategy version.
	Version = "1.0"

	// DefaultMaxChunkSize is the section length above which a section is
	// split on blank lines.
	DefaultMaxChunkSize = 2000
)

var atxPrefix = regexp.MustCompile(`^ {0,3}#{1,6}(?:[ \t]|$)`)

// Strategy emits one chunk per heading section.
type Strategy struct {
	md goldmark.Markdown
}

// New creates the hierarchy strategy.
func New() *Strategy {
	return &Strategy{md: goldmark.New()}
}

// Name returns the strategy name.
func (s *Strategy) Name() string { return Name }

// Version returns the strategy version.
func (s *Strategy) Version() string { return Version }

// DefaultConfig returns the default configuration.
func (s *Strategy) DefaultConfig() domain.ChunkerConfig {
	return domain.ChunkerConfig{
		"max_chunk_size": DefaultMaxChunkSize,
		"include_path":   true,
	}
}

// Chunk walks the top-level headings. Content under a heading becomes a
// chunk, prefixed with "Context: A > B" when include_path is set.
func (s *Strategy) Chunk(ctx context.Context, markdown string, cfg domain.ChunkerConfig) (domain.ChunkResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.ChunkResult{}, err
	}
	maxSize, err := options.PositiveInt(cfg, "max_chunk_size", DefaultMaxChunkSize)
	if err != nil {
		return domain.ChunkResult{}, err
	}
	includePath, err := options.Bool(cfg, "include_path", true)
	if err != nil {
		return domain.ChunkResult{}, err
	}

	var (
		contents []string
		stack    []heading
	)
	flush := func(body string) {
		body = strings.TrimSpace(body)
		if body == "" {
			return
		}
		path := make([]string, len(stack))
		for i, h := range stack {
			path[i] = h.text
		}
		for _, part := range splitOversized(body, maxSize) {
			if includePath && len(path) > 0 {
				part = "Context: " + strings.Join(path, " > ") + "\n\n" + part
			}
			contents = append(contents, part)
		}
	}

	src := []byte(markdown)
	pos := 0
	for _, h := range s.headings(src) {
		flush(string(src[pos:h.start]))
		pos = h.end
		for len(stack) > 0 && stack[len(stack)-1].level >= h.level {
			stack = stack[:len(stack)-1]
		}
		stack = append(stack, h)
	}
	flush(string(src[pos:]))

	return domain.NewChunkResult(contents), nil
}

type heading struct {
	level int
	text  string
	start int // first byte of the heading line
	end   int // first byte after the heading block
}

// headings returns the document level headings in source order.
func (s *Strategy) headings(src []byte) []heading {
	doc := s.md.Parser().Parse(text.NewReader(src))

	var out []heading
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		h, ok := n.(*ast.Heading)
		if !ok || h.Lines().Len() == 0 {
			continue
		}
		lines := h.Lines()
		first := lines.At(0)
		last := lines.At(lines.Len() - 1)

		parts := make([]string, 0, lines.Len())
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			if p := strings.TrimSpace(string(seg.Value(src))); p != "" {
				parts = append(parts, p)
			}
		}

		start := bytes.LastIndexByte(src[:first.Start], '\n') + 1
		end := nextLine(src, max(last.Start, last.Stop-1))
		if !atxPrefix.Match(src[start:]) {
			// Setext headings are followed by an underline row.
			end = nextLine(src, end)
		}
		out = append(out, heading{
			level: h.Level,
			text:  strings.Join(parts, " "),
			start: start,
			end:   end,
		})
	}
	return out
}

// nextLine returns the offset just past the newline at or after pos.
func nextLine(src []byte, pos int) int {
	if pos >= len(src) {
		return len(src)
	}
	i := bytes.IndexByte(src[pos:], '\n')
	if i < 0 {
		return len(src)
	}
	return pos + i + 1
}

// splitOversized groups blank-line separated parts so that each group stays
// within maxSize characters where possible.
func splitOversized(body string, maxSize int) []string {
	if utf8.RuneCountInString(body) <= maxSize {
		return []string{body}
	}
	var (
		out     []string
		current []string
		length  int
	)
	for _, part := range strings.Split(body, "\n\n") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n := utf8.RuneCountInString(part)
		if length+n > maxSize && len(current) > 0 {
			out = append(out, strings.Join(current, "\n\n"))
			current = nil
			length = 0
		}
		current = append(current, part)
		length += n
	}
	if len(current) > 0 {
		out = append(out, strings.Join(current, "\n\n"))
	}
	return out
}

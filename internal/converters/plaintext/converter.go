// Package plaintext converts plain text documents to Markdown.
package plaintext

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/docpipe/internal/core/domain"
	"github.com/custodia-labs/docpipe/internal/core/ports/driven"
)

// Ensure Converter implements the interface.
var _ driven.Converter = (*Converter)(nil)

const (
	// Name identifies the converter.
	Name = "plaintext"

	// Version is recorded with every conversion.
	Version = "1.0"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Converter passes text through with normalised line endings.
type Converter struct{}

// New creates a new plain text converter.
func New() *Converter {
	return &Converter{}
}

// Name returns the converter name.
func (c *Converter) Name() string { return Name }

// Version returns the converter version.
func (c *Converter) Version() string { return Version }

// SupportedMIMETypes returns the MIME types this converter handles.
func (c *Converter) SupportedMIMETypes() []string {
	return []string{domain.FormatTXT.MIMEType}
}

// Priority returns the selection priority.
func (c *Converter) Priority() int {
	return 5 // Fallback converter
}

// Convert strips a byte order mark, replaces invalid UTF-8 and converts
// CRLF and CR line endings to LF. Trailing whitespace is removed per line.
func (c *Converter) Convert(_ context.Context, in driven.ConvertInput) (*driven.ConvertResult, error) {
	if in.Content == nil {
		return nil, fmt.Errorf("%w: no content", domain.ErrInvalidInput)
	}
	content := bytes.TrimPrefix(in.Content, utf8BOM)
	text := string(content)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "�")
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	text = strings.TrimSpace(strings.Join(lines, "\n"))

	return &driven.ConvertResult{
		Markdown:    []byte(text + "\n"),
		Tool:        Name,
		ToolVersion: Version,
	}, nil
}

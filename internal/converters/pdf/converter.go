// Package pdf converts PDF documents to Markdown.
//
// When pdftotext from poppler-utils is installed it is used for extraction.
// Otherwise the pure Go reader from github.com/ledongthuc/pdf is used. The
// backend that produced the text is recorded as the conversion tool, and the
// poppler release is folded into the tool version.
package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"github.com/custodia-labs/docpipe/internal/core/domain"
	"github.com/custodia-labs/docpipe/internal/core/ports/driven"
)

// Ensure Converter implements the interface.
var _ driven.Converter = (*Converter)(nil)

const (
	// Name identifies the converter.
	Name = "pdf"

	// Version is recorded with every conversion.
	Version = "1.0"

	// ToolPdftotext is recorded when poppler did the extraction.
	ToolPdftotext = "pdftotext"

	// ToolNative is recorded when the pure Go reader did the extraction.
	ToolNative = "ledongthuc-pdf"
)

// versionTimeout bounds the pdftotext -v call made at construction.
const versionTimeout = 2 * time.Second

var popplerVersionRe = regexp.MustCompile(`version\s+(\d[\w.\-]*)`)

// ErrPDFToolNotFound indicates pdftotext is not installed.
var ErrPDFToolNotFound = errors.New("pdftotext not found in PATH")

// CommandRunner executes external commands.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// execRunner runs commands with os/exec.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return out, nil
}

// Converter extracts text from PDF documents.
type Converter struct {
	runner  CommandRunner
	poppler string
}

// New creates a PDF converter. pdftotext is used when it is installed, and
// its version is read once here.
func New() *Converter {
	if CheckAvailable() != nil {
		return &Converter{}
	}
	ctx, cancel := context.WithTimeout(context.Background(), versionTimeout)
	defer cancel()
	// pdftotext prints its version to stderr.
	out, _ := exec.CommandContext(ctx, "pdftotext", "-v").CombinedOutput()
	return &Converter{runner: execRunner{}, poppler: parsePopplerVersion(out)}
}

// NewWithRunner creates a PDF converter that always extracts with runner.
// The poppler version is asked of runner once.
func NewWithRunner(runner CommandRunner) *Converter {
	ctx, cancel := context.WithTimeout(context.Background(), versionTimeout)
	defer cancel()
	out, _ := runner.Run(ctx, "pdftotext", "-v")
	return &Converter{runner: runner, poppler: parsePopplerVersion(out)}
}

// NewNative creates a PDF converter that only uses the pure Go reader.
func NewNative() *Converter {
	return &Converter{}
}

// Name returns the converter name.
func (c *Converter) Name() string { return Name }

// Version returns the converter version.
func (c *Converter) Version() string { return Version }

// SupportedMIMETypes returns the MIME types this converter handles.
func (c *Converter) SupportedMIMETypes() []string {
	return []string{domain.FormatPDF.MIMEType}
}

// Priority returns the selection priority.
func (c *Converter) Priority() int {
	return 50
}

// Convert extracts the text of every page. Pages are separated by a blank
// line.
func (c *Converter) Convert(ctx context.Context, in driven.ConvertInput) (*driven.ConvertResult, error) {
	if len(in.Content) == 0 {
		return nil, fmt.Errorf("%w: empty PDF", domain.ErrInvalidInput)
	}

	var (
		pages       []string
		tool        string
		toolVersion = Version
		err         error
	)
	if c.runner != nil {
		pages, err = c.extractWithRunner(ctx, in.Content)
		tool = ToolPdftotext
		toolVersion = Version + "+poppler-" + c.poppler
	} else {
		pages, err = extractNative(in.Content)
		tool = ToolNative
	}
	if err != nil {
		return nil, err
	}

	return &driven.ConvertResult{
		Markdown:    []byte(pagesToMarkdown(pages)),
		Tool:        tool,
		ToolVersion: toolVersion,
	}, nil
}

// extractWithRunner writes the PDF to a temporary file and runs pdftotext.
func (c *Converter) extractWithRunner(ctx context.Context, content []byte) ([]string, error) {
	tmp, err := os.CreateTemp("", "docpipe-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close temp file: %w", err)
	}

	out, err := c.runner.Run(ctx, "pdftotext", "-layout", "-enc", "UTF-8", tmp.Name(), "-")
	if err != nil {
		return nil, fmt.Errorf("pdftotext failed: %w", err)
	}
	return strings.Split(string(out), "\f"), nil
}

// extractNative reads page text with the pure Go reader. The reader panics
// on some malformed files, which is reported as an error.
func extractNative(content []byte) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: malformed PDF: %v", domain.ErrInvalidInput, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("%w: open PDF: %w", domain.ErrInvalidInput, err)
	}
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}

// pagesToMarkdown trims trailing whitespace, collapses runs of blank lines
// and joins pages with a blank line.
func pagesToMarkdown(pages []string) string {
	var blocks []string
	for _, page := range pages {
		page = strings.ReplaceAll(page, "\r\n", "\n")
		var lines []string
		blank := false
		for _, line := range strings.Split(page, "\n") {
			line = strings.TrimRight(line, " \t")
			if line == "" {
				if blank || len(lines) == 0 {
					continue
				}
				blank = true
			} else {
				blank = false
			}
			lines = append(lines, line)
		}
		if text := strings.TrimSpace(strings.Join(lines, "\n")); text != "" {
			blocks = append(blocks, text)
		}
	}
	if len(blocks) == 0 {
		return ""
	}
	return strings.Join(blocks, "\n\n") + "\n"
}

// parsePopplerVersion extracts the release from pdftotext -v output, or
// returns "unknown".
func parsePopplerVersion(out []byte) string {
	if m := popplerVersionRe.FindSubmatch(out); m != nil {
		return string(m[1])
	}
	return "unknown"
}

// CheckAvailable reports whether pdftotext is on PATH.
func CheckAvailable() error {
	if _, err := exec.LookPath("pdftotext"); err != nil {
		return ErrPDFToolNotFound
	}
	return nil
}

// InstallInstructions returns platform-specific install instructions.
func InstallInstructions() string {
	return `pdftotext is optional but gives better PDF text extraction.

Install poppler-utils:
  macOS:         brew install poppler
  Ubuntu/Debian: sudo apt install poppler-utils
  Fedora:        sudo dnf install poppler-utils
  Windows:       choco install poppler`
}

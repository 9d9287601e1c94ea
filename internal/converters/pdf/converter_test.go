package pdf

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docpipe/internal/core/domain"
	"github.com/custodia-labs/docpipe/internal/core/ports/driven"
)

// mockRunner is a test double for CommandRunner.
type mockRunner struct {
	output  []byte
	version []byte
	err     error
	name    string
	args    []string
}

func (m *mockRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	if len(args) == 1 && args[0] == "-v" {
		return m.version, nil
	}
	m.name = name
	m.args = args
	return m.output, m.err
}

const popplerBanner = "pdftotext version 24.02.0\n" +
	"Copyright 2005-2024 The Poppler Developers - http://poppler.freedesktop.org\n" +
	"Copyright 1996-2011, 2022 Glyph & Cog, LLC\n"

func testInput() driven.ConvertInput {
	return driven.ConvertInput{
		Filename: "report.pdf",
		MIMEType: "application/pdf",
		Content:  []byte("%PDF-1.4 fake pdf content"),
	}
}

func TestNew(t *testing.T) {
	c := New()
	require.NotNil(t, c)
	assert.Equal(t, "pdf", c.Name())
	assert.Equal(t, []string{"application/pdf"}, c.SupportedMIMETypes())
	assert.Equal(t, 50, c.Priority())
}

func TestNewWithRunner(t *testing.T) {
	runner := &mockRunner{output: []byte("test output")}
	c := NewWithRunner(runner)
	require.NotNil(t, c)
	assert.Equal(t, runner, c.runner)
}

func TestConvert_WithMockRunner(t *testing.T) {
	runner := &mockRunner{
		output:  []byte("Page one title\n\nBody text.   \n\fPage two.\n\f"),
		version: []byte(popplerBanner),
	}
	c := NewWithRunner(runner)

	res, err := c.Convert(context.Background(), testInput())
	require.NoError(t, err)
	assert.Equal(t, "Page one title\n\nBody text.\n\nPage two.\n", string(res.Markdown))
	assert.Equal(t, ToolPdftotext, res.Tool)
	assert.Equal(t, "1.0+poppler-24.02.0", res.ToolVersion)
	assert.Equal(t, "pdftotext", runner.name)
	assert.Equal(t, "-", runner.args[len(runner.args)-1])
}

func TestConvert_UnknownPopplerVersion(t *testing.T) {
	c := NewWithRunner(&mockRunner{output: []byte("text")})

	res, err := c.Convert(context.Background(), testInput())
	require.NoError(t, err)
	assert.Equal(t, Version+"+poppler-unknown", res.ToolVersion)
}

func TestParsePopplerVersion(t *testing.T) {
	tests := []struct {
		name string
		out  string
		want string
	}{
		{"poppler", popplerBanner, "24.02.0"},
		{"xpdf style", "pdftotext version 4.04 [www.xpdfreader.com]\n", "4.04"},
		{"empty", "", "unknown"},
		{"no version", "pdftotext: command failed\n", "unknown"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, parsePopplerVersion([]byte(tc.out)))
		})
	}
}

func TestConvert_RunnerError(t *testing.T) {
	c := NewWithRunner(&mockRunner{err: errors.New("pdftotext crashed")})

	res, err := c.Convert(context.Background(), testInput())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "pdftotext failed")
	assert.Nil(t, res)
}

func TestConvert_NativeRejectsGarbage(t *testing.T) {
	c := NewNative()
	in := testInput()
	in.Content = []byte("definitely not a pdf")

	res, err := c.Convert(context.Background(), in)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Nil(t, res)
}

func TestConvert_Empty(t *testing.T) {
	in := testInput()
	in.Content = nil
	_, err := NewNative().Convert(context.Background(), in)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestPagesToMarkdown(t *testing.T) {
	tests := []struct {
		name     string
		pages    []string
		expected string
	}{
		{"no pages", nil, ""},
		{"blank pages dropped", []string{"  \n", "text"}, "text\n"},
		{"blank runs collapse", []string{"a\n\n\n\nb"}, "a\n\nb\n"},
		{"crlf", []string{"a\r\nb"}, "a\nb\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, pagesToMarkdown(tc.pages))
		})
	}
}

func TestInstallInstructions(t *testing.T) {
	instructions := InstallInstructions()
	assert.Contains(t, instructions, "pdftotext")
	assert.Contains(t, instructions, "brew install poppler")
	assert.Contains(t, instructions, "apt install poppler-utils")
}

func TestErrPDFToolNotFound(t *testing.T) {
	assert.Contains(t, ErrPDFToolNotFound.Error(), "pdftotext")
}

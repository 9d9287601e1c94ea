package driven

import "context"

// ConvertInput is an original document handed to a converter.
type ConvertInput struct {
	// Filename is the original file name.
	Filename string

	// MIMEType is the declared format.
	MIMEType string

	// Content is the original bytes.
	Content []byte
}

// ConvertResult is the Markdown produced by a converter.
type ConvertResult struct {
	// Markdown is the converted text. It must be a pure function of the
	// input bytes and the converter version.
	Markdown []byte

	// Tool is the converter or external tool that did the work.
	Tool string

	// ToolVersion is the version recorded in metadata.
	ToolVersion string
}

// Converter transforms an original document into Markdown.
type Converter interface {
	// Name identifies the converter.
	Name() string

	// Version is recorded with every conversion.
	Version() string

	// SupportedMIMETypes returns the MIME types this converter handles.
	SupportedMIMETypes() []string

	// Priority orders converters for the same MIME type (higher wins).
	//   - 50-89: format-specific converters
	//   - 1-9: fallback converters
	Priority() int

	// Convert produces Markdown from the original.
	Convert(ctx context.Context, in ConvertInput) (*ConvertResult, error)
}

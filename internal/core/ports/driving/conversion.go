package driving

import (
	"context"

	"github.com/custodia-labs/docpipe/internal/core/domain"
)

// ConversionResult describes a finished conversion.
type ConversionResult struct {
	// DocumentID is the converted document.
	DocumentID string

	// Tool and ToolVersion identify the converter.
	Tool        string
	ToolVersion string

	// Filename is the Markdown file name inside converted/.
	Filename string

	// Bytes is the Markdown size.
	Bytes int

	// Archived is set when a previous Markdown was snapshotted first.
	Archived *domain.ArchiveEntry
}

// ConversionService turns originals into Markdown.
type ConversionService interface {
	// Convert runs the converter for a document. An empty converter name
	// selects by MIME type. Failures are recorded in metadata and returned
	// as domain.ErrConversionFailed; nothing is retried.
	Convert(ctx context.Context, documentID, converter string) (*ConversionResult, error)
}

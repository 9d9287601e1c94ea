package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/docpipe/internal/core/domain"
	"github.com/custodia-labs/docpipe/internal/core/ports/driven"
	"github.com/custodia-labs/docpipe/internal/core/ports/driving"
	"github.com/custodia-labs/docpipe/internal/logger"
)

// Ensure ConversionService implements the interface.
var _ driving.ConversionService = (*ConversionService)(nil)

// DefaultConversionTimeout bounds one converter call.
const DefaultConversionTimeout = 2 * time.Minute

// ConversionService turns originals into Markdown.
type ConversionService struct {
	store      driven.ArtifactStore
	meta       *MetadataService
	archive    *ArchiveService
	converters driven.ConverterRegistry
	timeout    time.Duration
	metrics    driven.PipelineMetrics
	now        func() time.Time
}

// NewConversionService creates a conversion orchestrator.
// A zero timeout uses DefaultConversionTimeout. metrics may be nil.
func NewConversionService(
	store driven.ArtifactStore,
	meta *MetadataService,
	archive *ArchiveService,
	converters driven.ConverterRegistry,
	timeout time.Duration,
	metrics driven.PipelineMetrics,
) *ConversionService {
	if timeout <= 0 {
		timeout = DefaultConversionTimeout
	}
	return &ConversionService{
		store:      store,
		meta:       meta,
		archive:    archive,
		converters: converters,
		timeout:    timeout,
		metrics:    metrics,
		now:        time.Now,
	}
}

// Convert runs a converter for a document. The converter runs outside the
// document lock; the result is committed only if the original did not
// change meanwhile.
//
//nolint:gocyclo // Sequential conversion steps
func (s *ConversionService) Convert(ctx context.Context, documentID, converter string) (_ *driving.ConversionResult, err error) {
	start := time.Now()
	defer func() { observe(s.metrics, driven.StageConvert, start, err, false) }()

	if s.converters == nil {
		return nil, fmt.Errorf("convert: %w", domain.ErrNotImplemented)
	}

	unlock, err := s.meta.locks.Lock(ctx, "convert:"+documentID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	ref, err := s.store.FindDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	meta, err := s.store.ReadMetadata(ctx, ref)
	if err != nil {
		return nil, err
	}
	originalName, original, err := s.readOriginal(ctx, ref, meta)
	if err != nil {
		return nil, err
	}
	originalDigest := domain.MarkdownDigest(original)

	in := driven.ConvertInput{Filename: originalName, MIMEType: meta.MIMEType, Content: original}
	res, convErr := callWithTimeout(ctx, s.timeout, func(cctx context.Context) (*driven.ConvertResult, error) {
		return s.runConverter(cctx, converter, in)
	})
	if convErr == nil && len(bytes.TrimSpace(res.Markdown)) == 0 {
		convErr = errors.New("converter produced no output")
	}
	if convErr != nil {
		return nil, s.recordFailure(ctx, documentID, convErr)
	}
	markdown := normaliseMarkdown(res.Markdown)

	result := &driving.ConversionResult{
		DocumentID:  documentID,
		Tool:        res.Tool,
		ToolVersion: res.ToolVersion,
		Filename:    ref.Name + ".md",
		Bytes:       len(markdown),
	}
	err = s.meta.Exclusive(ctx, documentID, func(tx *DocumentTx) error {
		_, current, err := s.readOriginal(ctx, tx.Ref, tx.Meta)
		if err != nil {
			return err
		}
		if domain.MarkdownDigest(current) != originalDigest {
			return fmt.Errorf("%w: original of %s was replaced", domain.ErrConflict, documentID)
		}

		existing, err := s.store.ReadArtifact(ctx, tx.Ref, driven.ArtifactConverted, result.Filename)
		switch {
		case err == nil && bytes.Equal(existing, markdown) && sameConverter(tx.Meta.Conversion, res):
			// Identical output: keep the file and its history.
		case err == nil:
			entry, err := s.archive.snapshotLocked(ctx, tx, domain.ReasonReconvert)
			if err != nil {
				return err
			}
			result.Archived = &entry
			fallthrough
		case errors.Is(err, domain.ErrNotFound):
			if err := s.store.WriteArtifact(ctx, tx.Ref, driven.ArtifactConverted, result.Filename, markdown); err != nil {
				return err
			}
			now := s.now().UTC()
			tx.Meta.ConvertedAt = &now
		default:
			return err
		}

		tx.Meta.Conversion = &domain.ConversionRecord{
			Tool:     res.Tool,
			Version:  res.ToolVersion,
			Filename: result.Filename,
		}
		if tx.Meta.ConvertedAt == nil {
			now := s.now().UTC()
			tx.Meta.ConvertedAt = &now
		}
		tx.Meta.LastError = ""
		tx.Meta.Status = domain.StatusConverted
		tx.Meta.RefreshStatus()
		tx.Touch()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("commit conversion: %w", err)
	}
	logger.Info("Converted document %s with %s %s (%d bytes)", documentID, res.Tool, res.ToolVersion, len(markdown))
	return result, nil
}

func (s *ConversionService) runConverter(ctx context.Context, name string, in driven.ConvertInput) (*driven.ConvertResult, error) {
	if name != "" {
		return s.converters.ConvertWith(ctx, name, in)
	}
	return s.converters.Convert(ctx, in)
}

// recordFailure marks the document as failed. The previous Markdown, if any,
// is left untouched.
func (s *ConversionService) recordFailure(ctx context.Context, documentID string, cause error) error {
	err := s.meta.Exclusive(ctx, documentID, func(tx *DocumentTx) error {
		tx.Meta.Status = domain.StatusConversionFailed
		tx.Meta.LastError = cause.Error()
		tx.Touch()
		return nil
	})
	if err != nil {
		logger.Warn("Document %s: could not record conversion failure: %v", documentID, err)
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrConversionFailed, documentID, cause)
}

func (s *ConversionService) readOriginal(ctx context.Context, ref domain.DocumentRef, meta *domain.Metadata) (string, []byte, error) {
	format, ok := domain.FormatForMIME(meta.MIMEType)
	if !ok {
		return "", nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedType, meta.MIMEType)
	}
	name := ref.Name + format.Extension
	data, err := s.store.ReadArtifact(ctx, ref, driven.ArtifactOriginal, name)
	if err != nil {
		return "", nil, fmt.Errorf("read original: %w", err)
	}
	return name, data, nil
}

func sameConverter(rec *domain.ConversionRecord, res *driven.ConvertResult) bool {
	return rec != nil && rec.Tool == res.Tool && rec.Version == res.ToolVersion
}

// normaliseMarkdown uses LF line endings and exactly one trailing newline.
func normaliseMarkdown(md []byte) []byte {
	md = bytes.ReplaceAll(md, []byte("\r\n"), []byte("\n"))
	md = bytes.TrimRight(md, " \t\n")
	return append(md, '\n')
}

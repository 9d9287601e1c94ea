package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/docpipe/internal/core/domain"
	"github.com/custodia-labs/docpipe/internal/core/ports/driven"
	"github.com/custodia-labs/docpipe/internal/core/ports/driving"
	"github.com/custodia-labs/docpipe/internal/logger"
)

// Ensure CatalogService implements the interface.
var _ driving.CatalogService = (*CatalogService)(nil)

// CatalogOption configures a CatalogService.
type CatalogOption func(*CatalogService)

// WithAutoConvert converts every new or replaced original right away.
func WithAutoConvert(conv driving.ConversionService) CatalogOption {
	return func(s *CatalogService) {
		s.converter = conv
	}
}

// WithCatalogMetrics reports uploads to metrics.
func WithCatalogMetrics(m driven.PipelineMetrics) CatalogOption {
	return func(s *CatalogService) {
		s.metrics = m
	}
}

// CatalogService manages the catalog hierarchy and document uploads.
type CatalogService struct {
	store     driven.ArtifactStore
	meta      *MetadataService
	archive   *ArchiveService
	limits    Limits
	converter driving.ConversionService
	metrics   driven.PipelineMetrics
	newID     func() string
	now       func() time.Time
}

// NewCatalogService creates a catalog service.
func NewCatalogService(
	store driven.ArtifactStore,
	meta *MetadataService,
	archive *ArchiveService,
	limits Limits,
	opts ...CatalogOption,
) *CatalogService {
	s := &CatalogService{
		store:   store,
		meta:    meta,
		archive: archive,
		limits:  limits.withDefaults(),
		newID:   uuid.NewString,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateCatalog creates a top-level catalog.
func (s *CatalogService) CreateCatalog(ctx context.Context, name string) error {
	if err := domain.ValidateName(name); err != nil {
		return err
	}
	if err := s.store.CreateCatalog(ctx, name); err != nil {
		return fmt.Errorf("create catalog: %w", err)
	}
	return nil
}

// CreateSubcatalog creates a subcatalog in an existing catalog.
func (s *CatalogService) CreateSubcatalog(ctx context.Context, path domain.SubcatalogPath) error {
	if err := domain.ValidateName(path.Catalog); err != nil {
		return err
	}
	if err := domain.ValidateName(path.Subcatalog); err != nil {
		return err
	}
	if err := s.store.CreateSubcatalog(ctx, path); err != nil {
		return fmt.Errorf("create subcatalog: %w", err)
	}
	return nil
}

// ListCatalogs returns all catalog names.
func (s *CatalogService) ListCatalogs(ctx context.Context) ([]string, error) {
	return s.store.ListCatalogs(ctx)
}

// ListSubcatalogs returns the subcatalog names of a catalog.
func (s *CatalogService) ListSubcatalogs(ctx context.Context, catalog string) ([]string, error) {
	return s.store.ListSubcatalogs(ctx, catalog)
}

// Tree returns every catalog with its subcatalogs and documents.
func (s *CatalogService) Tree(ctx context.Context) ([]domain.CatalogNode, error) {
	catalogs, err := s.store.ListCatalogs(ctx)
	if err != nil {
		return nil, err
	}
	tree := make([]domain.CatalogNode, 0, len(catalogs))
	for _, c := range catalogs {
		subs, err := s.store.ListSubcatalogs(ctx, c)
		if err != nil {
			return nil, err
		}
		node := domain.CatalogNode{Name: c}
		for _, sub := range subs {
			docs, err := s.ListDocuments(ctx, domain.SubcatalogPath{Catalog: c, Subcatalog: sub})
			if err != nil {
				return nil, err
			}
			node.Subcatalogs = append(node.Subcatalogs, domain.SubcatalogNode{Name: sub, Documents: docs})
		}
		tree = append(tree, node)
	}
	return tree, nil
}

// AddDocument validates and stores an upload. Checks run in the order
// name, format, size, count, duplicate name; the first failure wins and
// nothing is written.
func (s *CatalogService) AddDocument(ctx context.Context, req driving.AddDocumentRequest) (_ *domain.Metadata, err error) {
	start := time.Now()
	defer func() { observe(s.metrics, driven.StageUpload, start, err, false) }()

	name := domain.DocumentName(req.Filename)
	if err := domain.ValidateName(name); err != nil {
		return nil, err
	}
	format, err := domain.ResolveFormat(req.Filename, req.MIMEType)
	if err != nil {
		return nil, err
	}
	if err := s.checkSize(int64(len(req.Content))); err != nil {
		return nil, err
	}

	meta, err := s.createDocument(ctx, req, name, format)
	if err != nil {
		return nil, err
	}
	logger.Info("Added document %s as %s", meta.Ref(), meta.DocumentID)

	if req.SkipConversion {
		return meta, nil
	}
	return s.autoConvert(ctx, meta)
}

func (s *CatalogService) createDocument(
	ctx context.Context,
	req driving.AddDocumentRequest,
	name string,
	format domain.Format,
) (*domain.Metadata, error) {
	unlock, err := s.meta.locks.Lock(ctx, subcatalogLockKey(req.Subcatalog))
	if err != nil {
		return nil, err
	}
	defer unlock()

	names, err := s.store.ListDocuments(ctx, req.Subcatalog)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	if len(names) >= s.limits.MaxDocuments {
		return nil, domain.NewValidationError(domain.ViolationCount,
			"%s already holds %d of %d documents", req.Subcatalog, len(names), s.limits.MaxDocuments)
	}
	if contains(names, name) {
		return nil, domain.NewValidationError(domain.ViolationDuplicateName,
			"%s already contains %q", req.Subcatalog, name)
	}

	now := s.now().UTC()
	meta := &domain.Metadata{
		DocumentID:       s.newID(),
		Catalog:          req.Subcatalog.Catalog,
		Subcatalog:       req.Subcatalog.Subcatalog,
		Name:             name,
		OriginalFilename: req.Filename,
		MIMEType:         format.MIMEType,
		FileSizeMB:       domain.SizeInMB(int64(len(req.Content))),
		CreatedAt:        now,
		UpdatedAt:        now,
		Status:           domain.StatusUploaded,
		Chunking:         []domain.ChunkingRecord{},
	}
	if err := s.store.CreateDocument(ctx, meta, name+format.Extension, req.Content); err != nil {
		return nil, fmt.Errorf("store document: %w", err)
	}
	return meta, nil
}

func (s *CatalogService) checkSize(size int64) error {
	if size > s.limits.MaxFileSize {
		return domain.NewValidationError(domain.ViolationSize,
			"%.2f MB exceeds the %.2f MB limit", float64(size)/(1024*1024), float64(s.limits.MaxFileSize)/(1024*1024))
	}
	return nil
}

// autoConvert runs the configured converter. A failed conversion is already
// recorded in metadata and does not fail the upload.
func (s *CatalogService) autoConvert(ctx context.Context, meta *domain.Metadata) (*domain.Metadata, error) {
	if s.converter == nil {
		return meta, nil
	}
	if _, err := s.converter.Convert(ctx, meta.DocumentID, ""); err != nil {
		if !errors.Is(err, domain.ErrConversionFailed) {
			return nil, err
		}
		logger.Warn("Document %s: %v", meta.DocumentID, err)
	}
	return s.meta.Get(ctx, meta.DocumentID)
}

// ListDocuments returns the metadata of every document in a subcatalog.
func (s *CatalogService) ListDocuments(ctx context.Context, path domain.SubcatalogPath) ([]domain.Metadata, error) {
	names, err := s.store.ListDocuments(ctx, path)
	if err != nil {
		return nil, err
	}
	docs := make([]domain.Metadata, 0, len(names))
	for _, name := range names {
		ref := domain.DocumentRef{Catalog: path.Catalog, Subcatalog: path.Subcatalog, Name: name}
		meta, err := s.store.ReadMetadata(ctx, ref)
		if err != nil {
			logger.Warn("Skipping %s: %v", ref, err)
			continue
		}
		docs = append(docs, *meta)
	}
	return docs, nil
}

// GetDocument returns the metadata of one document.
func (s *CatalogService) GetDocument(ctx context.Context, documentID string) (*domain.Metadata, error) {
	return s.meta.Get(ctx, documentID)
}

// ReplaceOriginal archives the document, installs a new original and drops
// every artifact derived from the old one.
func (s *CatalogService) ReplaceOriginal(
	ctx context.Context,
	documentID, filename string,
	content []byte,
	mimeType string,
) (*domain.Metadata, error) {
	format, err := domain.ResolveFormat(filename, mimeType)
	if err != nil {
		return nil, err
	}
	if err := s.checkSize(int64(len(content))); err != nil {
		return nil, err
	}

	var updated *domain.Metadata
	err = s.meta.Exclusive(ctx, documentID, func(tx *DocumentTx) error {
		if _, err := s.archive.snapshotLocked(ctx, tx, domain.ReasonReplaceOriginal); err != nil {
			return err
		}
		originalName := tx.Ref.Name + format.Extension
		if err := s.store.WriteArtifact(ctx, tx.Ref, driven.ArtifactOriginal, originalName, content); err != nil {
			return err
		}
		if err := s.removeAllExcept(ctx, tx.Ref, driven.ArtifactOriginal, originalName); err != nil {
			return err
		}
		for _, kind := range []driven.ArtifactKind{driven.ArtifactConverted, driven.ArtifactChunked} {
			if err := s.removeAllExcept(ctx, tx.Ref, kind, ""); err != nil {
				return err
			}
		}

		m := tx.Meta
		m.OriginalFilename = filename
		m.MIMEType = format.MIMEType
		m.FileSizeMB = domain.SizeInMB(int64(len(content)))
		m.Status = domain.StatusUploaded
		m.LastError = ""
		m.ClearConversion()
		tx.Touch()
		updated = m
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("replace original: %w", err)
	}
	logger.Info("Replaced original of document %s", documentID)
	return s.autoConvert(ctx, updated)
}

func (s *CatalogService) removeAllExcept(ctx context.Context, ref domain.DocumentRef, kind driven.ArtifactKind, keep string) error {
	names, err := s.store.ListArtifacts(ctx, ref, kind)
	if err != nil {
		return err
	}
	for _, name := range names {
		if name == keep {
			continue
		}
		if err := s.store.RemoveArtifact(ctx, ref, kind, name); err != nil {
			return err
		}
	}
	return nil
}

// DeleteDocument archives and removes a document.
func (s *CatalogService) DeleteDocument(ctx context.Context, documentID string) error {
	err := s.meta.Exclusive(ctx, documentID, func(tx *DocumentTx) error {
		if _, err := s.archive.snapshotLocked(ctx, tx, domain.ReasonDeleteDocument); err != nil {
			return err
		}
		if err := s.store.DeleteDocument(ctx, tx.Ref); err != nil {
			return err
		}
		tx.changed = false
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	logger.Info("Deleted document %s", documentID)
	return nil
}

// ReadConverted returns the converted Markdown.
func (s *CatalogService) ReadConverted(ctx context.Context, documentID string) ([]byte, error) {
	ref, err := s.store.FindDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	meta, err := s.store.ReadMetadata(ctx, ref)
	if err != nil {
		return nil, err
	}
	if meta.Conversion == nil {
		return nil, fmt.Errorf("document %s has no converted Markdown: %w", documentID, domain.ErrNotFound)
	}
	return s.store.ReadArtifact(ctx, ref, driven.ArtifactConverted, meta.Conversion.Filename)
}

// ReadChunks returns the chunks of one chunking run. An empty version
// selects the most recent run of the chunker.
func (s *CatalogService) ReadChunks(ctx context.Context, documentID, chunker, version string) ([]domain.Chunk, error) {
	ref, err := s.store.FindDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	meta, err := s.store.ReadMetadata(ctx, ref)
	if err != nil {
		return nil, err
	}
	rec := findRun(meta, chunker, version)
	if rec == nil {
		return nil, fmt.Errorf("chunking run %s@%s: %w", chunker, version, domain.ErrNotFound)
	}
	data, err := s.store.ReadArtifact(ctx, ref, driven.ArtifactChunked, rec.Filename)
	if err != nil {
		return nil, err
	}
	return domain.ParseChunks(data)
}

// findRun returns the record for chunker@version, or the newest record of
// the chunker when version is empty.
func findRun(meta *domain.Metadata, chunker, version string) *domain.ChunkingRecord {
	if version != "" {
		return meta.ChunkingRun(chunker, version)
	}
	var runs []*domain.ChunkingRecord
	for i := range meta.Chunking {
		if meta.Chunking[i].Chunker == chunker {
			runs = append(runs, &meta.Chunking[i])
		}
	}
	if len(runs) == 0 {
		return nil
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].CreatedAt.After(runs[j].CreatedAt) })
	return runs[0]
}

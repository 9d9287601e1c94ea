package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/docpipe/internal/core/domain"
	"github.com/custodia-labs/docpipe/internal/core/ports/driving"
	"github.com/custodia-labs/docpipe/internal/logger"
)

// Ensure BatchService implements the interface.
var _ driving.BatchService = (*BatchService)(nil)

// Default batch concurrency.
const (
	DefaultBatchWorkers   = 4
	DefaultChunkerWorkers = 2
)

// BatchService converts and chunks whole catalogs.
type BatchService struct {
	catalog    driving.CatalogService
	conversion driving.ConversionService
	chunking   driving.ChunkingService
	defaults   driving.BatchOptions
}

// NewBatchService creates a batch coordinator. defaults supplies the worker
// counts used when a run does not set them.
func NewBatchService(
	catalog driving.CatalogService,
	conversion driving.ConversionService,
	chunking driving.ChunkingService,
	defaults driving.BatchOptions,
) *BatchService {
	if defaults.Workers <= 0 {
		defaults.Workers = DefaultBatchWorkers
	}
	if defaults.ChunkerWorkers <= 0 {
		defaults.ChunkerWorkers = DefaultChunkerWorkers
	}
	return &BatchService{
		catalog:    catalog,
		conversion: conversion,
		chunking:   chunking,
		defaults:   defaults,
	}
}

// ProcessCatalog converts unconverted documents and runs every selection on
// each of them. Cancelling ctx stops scheduling new documents; operations
// already running finish on a context detached from the cancellation and
// are still bounded by their own timeouts.
func (b *BatchService) ProcessCatalog(
	ctx context.Context,
	catalogPath string,
	selections []driving.ChunkerSelection,
	opts driving.BatchOptions,
) (*driving.BatchReport, error) {
	if opts.Workers <= 0 {
		opts.Workers = b.defaults.Workers
	}
	if opts.ChunkerWorkers <= 0 {
		opts.ChunkerWorkers = b.defaults.ChunkerWorkers
	}
	if err := b.checkSelections(selections); err != nil {
		return nil, err
	}
	for _, pattern := range opts.Include {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("%w: include pattern %q", domain.ErrInvalidInput, pattern)
		}
	}

	docs, err := b.collect(ctx, catalogPath, opts.Include)
	if err != nil {
		return nil, err
	}

	report := &driving.BatchReport{Catalog: catalogPath, Total: len(docs)}
	logger.Info("Batch %s: %d documents, %d chunker selections", catalogPath, len(docs), len(selections))

	detached := context.WithoutCancel(ctx)
	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(opts.Workers)
	for i := range docs {
		if ctx.Err() != nil {
			break
		}
		doc := docs[i]
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			items := b.processDocument(ctx, detached, doc, selections, opts)

			mu.Lock()
			defer mu.Unlock()
			report.Items = append(report.Items, items...)
			report.Processed++
			if opts.OnProgress != nil {
				opts.OnProgress(report.Processed, report.Total)
			}
			return nil
		})
	}
	_ = g.Wait()

	report.Cancelled = ctx.Err() != nil && report.Processed < report.Total
	sortItems(report.Items)
	logger.Info("Batch %s: processed %d/%d, %d failed", catalogPath, report.Processed, report.Total, report.Failed())
	return report, nil
}

func (b *BatchService) checkSelections(selections []driving.ChunkerSelection) error {
	known := make(map[string]bool)
	for _, info := range b.chunking.Chunkers() {
		known[info.Name] = true
		known[info.Name+"@"+info.Version] = true
	}
	for _, sel := range selections {
		key := sel.Chunker
		if sel.Version != "" {
			key += "@" + sel.Version
		}
		if !known[key] {
			return fmt.Errorf("chunker %s: %w", key, domain.ErrNotFound)
		}
	}
	return nil
}

// collect lists the documents of a catalog or of one subcatalog.
func (b *BatchService) collect(ctx context.Context, catalogPath string, include []string) ([]domain.Metadata, error) {
	catalog, sub, _ := strings.Cut(strings.Trim(catalogPath, "/"), "/")
	if err := domain.ValidateName(catalog); err != nil {
		return nil, err
	}
	subs := []string{sub}
	if sub == "" {
		var err error
		subs, err = b.catalog.ListSubcatalogs(ctx, catalog)
		if err != nil {
			return nil, err
		}
	}

	var docs []domain.Metadata
	for _, s := range subs {
		listed, err := b.catalog.ListDocuments(ctx, domain.SubcatalogPath{Catalog: catalog, Subcatalog: s})
		if err != nil {
			return nil, err
		}
		for _, d := range listed {
			if included(include, d.Subcatalog+"/"+d.Name) {
				docs = append(docs, d)
			}
		}
	}
	return docs, nil
}

func included(patterns []string, name string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
	}
	return false
}

// processDocument converts (if needed) and chunks one document. Work runs
// on detached; ctx only decides whether the next stage starts.
func (b *BatchService) processDocument(
	ctx, detached context.Context,
	doc domain.Metadata,
	selections []driving.ChunkerSelection,
	opts driving.BatchOptions,
) []driving.BatchItem {
	var items []driving.BatchItem
	label := doc.Ref().String()
	converted := doc.Conversion != nil

	if !converted {
		item := driving.BatchItem{DocumentID: doc.DocumentID, Document: label, Stage: driving.BatchStageConvert}
		switch {
		case doc.Status == domain.StatusConversionFailed && !opts.RetryFailed:
			item.Status = driving.BatchStatusSkipped
			item.Error = "previous conversion failed: " + doc.LastError
		default:
			if _, err := b.conversion.Convert(detached, doc.DocumentID, ""); err != nil {
				item.Status = driving.BatchStatusFailed
				item.Error = err.Error()
			} else {
				item.Status = driving.BatchStatusOK
				converted = true
			}
		}
		items = append(items, item)
	}

	if len(selections) == 0 || ctx.Err() != nil {
		return items
	}
	if !converted {
		for _, sel := range selections {
			items = append(items, driving.BatchItem{
				DocumentID: doc.DocumentID,
				Document:   label,
				Stage:      driving.BatchStageChunk,
				Chunker:    sel.Chunker,
				Version:    sel.Version,
				Status:     driving.BatchStatusSkipped,
				Error:      domain.ErrPrerequisiteMissing.Error(),
			})
		}
		return items
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(opts.ChunkerWorkers)
	for _, sel := range selections {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			item := b.runSelection(detached, doc, label, sel, opts.Force)
			mu.Lock()
			items = append(items, item)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return items
}

func (b *BatchService) runSelection(
	ctx context.Context,
	doc domain.Metadata,
	label string,
	sel driving.ChunkerSelection,
	force bool,
) driving.BatchItem {
	item := driving.BatchItem{
		DocumentID: doc.DocumentID,
		Document:   label,
		Stage:      driving.BatchStageChunk,
		Chunker:    sel.Chunker,
		Version:    sel.Version,
	}
	res, err := b.chunking.Run(ctx, driving.ChunkRequest{
		DocumentID: doc.DocumentID,
		Chunker:    sel.Chunker,
		Version:    sel.Version,
		Config:     sel.Config,
		Force:      force,
	})
	switch {
	case err != nil:
		item.Status = driving.BatchStatusFailed
		item.Error = err.Error()
		if errors.Is(err, domain.ErrStrategyContractViolation) {
			logger.Warn("Document %s: %v", doc.DocumentID, err)
		}
	case res.Skipped:
		item.Status = driving.BatchStatusSkipped
		item.Version = res.Record.ChunkerVersion
		item.NumChunks = res.Record.NumChunks
	default:
		item.Status = driving.BatchStatusOK
		item.Version = res.Record.ChunkerVersion
		item.NumChunks = res.Record.NumChunks
	}
	return item
}

func sortItems(items []driving.BatchItem) {
	stageOrder := map[string]int{driving.BatchStageConvert: 0, driving.BatchStageChunk: 1}
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Document != b.Document {
			return a.Document < b.Document
		}
		if stageOrder[a.Stage] != stageOrder[b.Stage] {
			return stageOrder[a.Stage] < stageOrder[b.Stage]
		}
		if a.Chunker != b.Chunker {
			return a.Chunker < b.Chunker
		}
		return a.Version < b.Version
	})
}

// Command docpipe is the versioned document pipeline CLI.
package main

import (
	"fmt"
	"os"

	"github.com/custodia-labs/docpipe/internal/adapters/driven/ai"
	"github.com/custodia-labs/docpipe/internal/adapters/driven/metrics"
	"github.com/custodia-labs/docpipe/internal/adapters/driven/storage/filesystem"
	"github.com/custodia-labs/docpipe/internal/adapters/driving/cli"
	"github.com/custodia-labs/docpipe/internal/chunkers"
	"github.com/custodia-labs/docpipe/internal/config"
	"github.com/custodia-labs/docpipe/internal/converters"
	"github.com/custodia-labs/docpipe/internal/core/ports/driving"
	"github.com/custodia-labs/docpipe/internal/core/services"
	"github.com/custodia-labs/docpipe/internal/logger"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cli.SetVersion(version)
	cli.SetBootstrap(bootstrap)

	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// bootstrap wires adapters and services from the loaded configuration.
func bootstrap(cfg *config.Config) (*cli.Services, func(), error) {
	store, err := filesystem.NewStore(cfg.DataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("opening data dir: %w", err)
	}
	archives, err := filesystem.NewArchiveStore(cfg.ArchiveDir, store)
	if err != nil {
		return nil, nil, fmt.Errorf("opening archive dir: %w", err)
	}

	// Not pinged: an unreachable provider only fails semantic runs.
	embedder, err := ai.CreateEmbeddingService(cfg.Embedding)
	if err != nil {
		logger.Warn("semantic chunking disabled: %v", err)
		embedder = nil
	}
	registry, err := chunkers.Defaults(embedder)
	if err != nil {
		return nil, nil, err
	}

	m := metrics.New()
	limits := services.Limits{
		MaxFileSize:  cfg.MaxFileSize(),
		MaxDocuments: cfg.Limits.MaxDocumentsPerSubcatalog,
	}

	meta := services.NewMetadataService(store)
	archive := services.NewArchiveService(meta, store, archives, limits, m)
	conversion := services.NewConversionService(store, meta, archive, converters.Defaults(), cfg.Timeouts.Conversion, m)
	chunking := services.NewChunkingService(store, meta, archive, registry, cfg.Timeouts.Chunking, m)
	catalog := services.NewCatalogService(store, meta, archive, limits,
		services.WithAutoConvert(conversion), services.WithCatalogMetrics(m))
	batch := services.NewBatchService(catalog, conversion, chunking, driving.BatchOptions{
		Workers:        cfg.Batch.Workers,
		ChunkerWorkers: cfg.Batch.ChunkerWorkers,
	})

	release := func() {
		if embedder != nil {
			if err := embedder.Close(); err != nil {
				logger.Warn("closing embedder: %v", err)
			}
		}
	}

	return &cli.Services{
		Catalog:    catalog,
		Conversion: conversion,
		Chunking:   chunking,
		Archive:    archive,
		Batch:      batch,
		Metrics:    m,
	}, release, nil
}

// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - ArtifactStore: The catalog directory tree and its files
//   - ArchiveStore: Document snapshots
//   - Converter: Transforms an original into Markdown
//   - ConverterRegistry: Selects the converter for a MIME type
//   - ChunkStrategy: Splits Markdown into chunks
//   - ChunkerRegistry: Resolves strategies by name and version
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - EmbeddingService: Sentence vectors for the semantic chunker.
//   - PipelineMetrics: Counters and timings for pipeline stages.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, converter, or chunker package
package driven

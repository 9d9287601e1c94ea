// Package domain defines the core entities of the document pipeline.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - DocumentRef: The catalog/subcatalog/name location of a document
//   - Metadata: The JSON system of record kept beside each document
//   - Chunk: One ordered unit of a chunked Markdown file
//   - ArchiveEntry: An immutable snapshot of a document directory
//
// It also owns the pure rules every layer shares: name and format
// validation, the chunk file format and the chunking fingerprint.
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain

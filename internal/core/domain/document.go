package domain

import (
	"fmt"
	"strings"
	"time"
)

// maxNameLength bounds catalog, subcatalog and document names.
const maxNameLength = 200

// Status is the lifecycle stage of a document.
type Status string

// Document lifecycle stages.
const (
	StatusUploaded         Status = "uploaded"
	StatusConverted        Status = "converted"
	StatusConversionFailed Status = "conversion_failed"
	StatusChunked          Status = "chunked"
)

// DocumentRef locates a document inside the two-level hierarchy.
type DocumentRef struct {
	Catalog    string `json:"catalog"`
	Subcatalog string `json:"subcatalog"`
	Name       string `json:"name"`
}

// String returns the slash separated location.
func (r DocumentRef) String() string {
	return r.Catalog + "/" + r.Subcatalog + "/" + r.Name
}

// SubcatalogPath identifies a subcatalog.
type SubcatalogPath struct {
	Catalog    string
	Subcatalog string
}

func (p SubcatalogPath) String() string {
	return p.Catalog + "/" + p.Subcatalog
}

// ParseSubcatalogPath parses "catalog/subcatalog".
func ParseSubcatalogPath(s string) (SubcatalogPath, error) {
	parts := strings.Split(strings.Trim(s, "/"), "/")
	if len(parts) != 2 {
		return SubcatalogPath{}, fmt.Errorf("%w: subcatalog path must be catalog/subcatalog, got %q", ErrInvalidInput, s)
	}
	p := SubcatalogPath{Catalog: parts[0], Subcatalog: parts[1]}
	if err := p.Validate(); err != nil {
		return SubcatalogPath{}, err
	}
	return p, nil
}

// Validate checks both path elements with ValidateName.
func (p SubcatalogPath) Validate() error {
	if err := ValidateName(p.Catalog); err != nil {
		return err
	}
	return ValidateName(p.Subcatalog)
}

// ValidateName checks that a catalog, subcatalog or document name is a
// single visible path element.
func ValidateName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return NewValidationError(ViolationInvalidName, "name is empty")
	case len(name) > maxNameLength:
		return NewValidationError(ViolationInvalidName, "name longer than %d bytes", maxNameLength)
	case strings.ContainsAny(name, `/\`):
		return NewValidationError(ViolationInvalidName, "%q contains a path separator", name)
	case strings.HasPrefix(name, "."):
		return NewValidationError(ViolationInvalidName, "%q starts with a dot", name)
	case strings.Contains(name, "__"):
		return NewValidationError(ViolationInvalidName, "%q contains the reserved sequence __", name)
	case strings.ContainsRune(name, 0):
		return NewValidationError(ViolationInvalidName, "name contains a NUL byte")
	}
	return nil
}

// ConversionRecord describes the converter that produced the Markdown.
type ConversionRecord struct {
	// Tool is the converter name.
	Tool string `json:"tool"`

	// Version is the converter version.
	Version string `json:"version"`

	// Filename is the Markdown file name inside converted/.
	Filename string `json:"filename"`
}

// ChunkingRecord describes one chunking run.
// At most one record exists per (Chunker, ChunkerVersion).
type ChunkingRecord struct {
	// Chunker is the strategy name.
	Chunker string `json:"chunker"`

	// ChunkerVersion is the strategy version.
	ChunkerVersion string `json:"chunker_version"`

	// Variant is the effective configuration the strategy ran with.
	Variant ChunkerConfig `json:"variant"`

	// CreatedAt is when the chunked file was written.
	CreatedAt time.Time `json:"created_at"`

	// NumChunks is the number of chunk markers in the file.
	NumChunks int `json:"num_chunks"`

	// Filename is the chunked file name inside chunked/.
	Filename string `json:"filename"`

	// Fingerprint is the hash of the Markdown and variant the file was built from.
	Fingerprint string `json:"fingerprint"`
}

// Metadata is the metadata.json record of a document.
type Metadata struct {
	// DocumentID is the generated identifier.
	DocumentID string `json:"document_id"`

	// Catalog, Subcatalog and Name locate the document directory.
	Catalog    string `json:"catalog"`
	Subcatalog string `json:"subcatalog"`
	Name       string `json:"name"`

	// OriginalFilename is the filename given at upload.
	OriginalFilename string `json:"original_filename"`

	// MIMEType is the declared format of the original.
	MIMEType string `json:"mime_type"`

	// FileSizeMB is the original size in megabytes, rounded to two decimals.
	FileSizeMB float64 `json:"file_size_mb"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ConvertedAt *time.Time `json:"converted_at"`

	// Conversion is nil until a conversion succeeds.
	Conversion *ConversionRecord `json:"conversion"`

	Status Status `json:"status"`

	// LastError holds the most recent conversion failure.
	LastError string `json:"last_error,omitempty"`

	Chunking []ChunkingRecord `json:"chunking"`
}

// Ref returns the document location.
func (m *Metadata) Ref() DocumentRef {
	return DocumentRef{Catalog: m.Catalog, Subcatalog: m.Subcatalog, Name: m.Name}
}

// ChunkingRun returns the record for a chunker version, or nil.
func (m *Metadata) ChunkingRun(chunker, version string) *ChunkingRecord {
	for i := range m.Chunking {
		if m.Chunking[i].Chunker == chunker && m.Chunking[i].ChunkerVersion == version {
			return &m.Chunking[i]
		}
	}
	return nil
}

// LatestChunking returns the most recent run of a chunker across versions, or nil.
func (m *Metadata) LatestChunking(chunker string) *ChunkingRecord {
	var latest *ChunkingRecord
	for i := range m.Chunking {
		rec := &m.Chunking[i]
		if rec.Chunker == chunker && (latest == nil || rec.CreatedAt.After(latest.CreatedAt)) {
			latest = rec
		}
	}
	return latest
}

// SetChunkingRun replaces the record with the same chunker and version,
// or appends it.
func (m *Metadata) SetChunkingRun(rec ChunkingRecord) {
	if existing := m.ChunkingRun(rec.Chunker, rec.ChunkerVersion); existing != nil {
		*existing = rec
	} else {
		m.Chunking = append(m.Chunking, rec)
	}
	m.RefreshStatus()
}

// RemoveChunkingRun drops the record for a chunker version.
// It reports whether a record was removed.
func (m *Metadata) RemoveChunkingRun(chunker, version string) bool {
	for i := range m.Chunking {
		if m.Chunking[i].Chunker == chunker && m.Chunking[i].ChunkerVersion == version {
			m.Chunking = append(m.Chunking[:i], m.Chunking[i+1:]...)
			m.RefreshStatus()
			return true
		}
	}
	return false
}

// ClearConversion forgets the converted Markdown and everything derived from it.
func (m *Metadata) ClearConversion() {
	m.Conversion = nil
	m.ConvertedAt = nil
	m.Chunking = []ChunkingRecord{}
	m.RefreshStatus()
}

// RefreshStatus derives the status from the recorded artifacts.
// A failed conversion stays visible until the next conversion attempt.
func (m *Metadata) RefreshStatus() {
	if m.Status == StatusConversionFailed {
		return
	}
	switch {
	case m.Conversion == nil:
		m.Status = StatusUploaded
	case len(m.Chunking) > 0:
		m.Status = StatusChunked
	default:
		m.Status = StatusConverted
	}
}

// SizeInMB converts a byte count to megabytes rounded to two decimals.
func SizeInMB(size int64) float64 {
	mb := float64(size) / (1024 * 1024)
	return float64(int64(mb*100+0.5)) / 100
}

// SubcatalogNode lists the documents of one subcatalog.
type SubcatalogNode struct {
	Name      string
	Documents []Metadata
}

// CatalogNode lists the subcatalogs of one catalog.
type CatalogNode struct {
	Name        string
	Subcatalogs []SubcatalogNode
}

package domain

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// chunkMarkerPrefix starts every chunk marker line.
const chunkMarkerPrefix = "<!-- chunk_id: "

var chunkMarkerPattern = regexp.MustCompile(`(?m)^<!-- chunk_id: (chunk_\d{3,}) -->\n`)

// ChunkerConfig is the free-form configuration of a chunking strategy.
type ChunkerConfig map[string]any

// Clone returns a shallow copy.
func (c ChunkerConfig) Clone() ChunkerConfig {
	out := make(ChunkerConfig, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Merge returns defaults overlaid by c.
func (c ChunkerConfig) Merge(defaults ChunkerConfig) ChunkerConfig {
	out := defaults.Clone()
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Chunk is one ordered unit of chunked Markdown.
type Chunk struct {
	// ID is chunk_NNN where NNN is the zero padded order.
	ID string

	// Order is the 1-based position within the document.
	Order int

	// Content is the chunk text.
	Content string
}

// ChunkResult is the output of a chunking strategy.
type ChunkResult struct {
	Chunks []Chunk
	Count  int
}

// ChunkID returns the identifier for a 1-based order.
func ChunkID(order int) string {
	return fmt.Sprintf("chunk_%03d", order)
}

// NewChunkResult numbers contents from 1 and builds a result.
func NewChunkResult(contents []string) ChunkResult {
	chunks := make([]Chunk, len(contents))
	for i, c := range contents {
		chunks[i] = Chunk{ID: ChunkID(i + 1), Order: i + 1, Content: c}
	}
	return ChunkResult{Chunks: chunks, Count: len(chunks)}
}

// ValidateChunkResult checks that orders are contiguous from 1, ids are
// unique and match their order, and the count agrees with the chunk list.
func ValidateChunkResult(r ChunkResult) error {
	if r.Count != len(r.Chunks) {
		return fmt.Errorf("%w: count %d does not match %d chunks", ErrStrategyContractViolation, r.Count, len(r.Chunks))
	}
	seen := make(map[string]struct{}, len(r.Chunks))
	for i, c := range r.Chunks {
		if c.Order != i+1 {
			return fmt.Errorf("%w: chunk %d has order %d", ErrStrategyContractViolation, i+1, c.Order)
		}
		if c.ID != ChunkID(c.Order) {
			return fmt.Errorf("%w: chunk %d has id %q", ErrStrategyContractViolation, c.Order, c.ID)
		}
		if _, dup := seen[c.ID]; dup {
			return fmt.Errorf("%w: duplicate chunk id %q", ErrStrategyContractViolation, c.ID)
		}
		seen[c.ID] = struct{}{}
		if strings.Contains(c.Content, chunkMarkerPrefix) {
			return fmt.Errorf("%w: chunk %s contains a chunk marker", ErrStrategyContractViolation, c.ID)
		}
	}
	return nil
}

// FormatChunks serializes chunks as marker blocks separated by a blank line.
func FormatChunks(chunks []Chunk) []byte {
	var buf bytes.Buffer
	for i, c := range chunks {
		if i > 0 {
			buf.WriteString("\n\n")
		}
		fmt.Fprintf(&buf, "%s%s -->\n%s", chunkMarkerPrefix, c.ID, c.Content)
	}
	if len(chunks) > 0 {
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// ParseChunks reads a chunked file written by FormatChunks.
func ParseChunks(data []byte) ([]Chunk, error) {
	s := string(data)
	locs := chunkMarkerPattern.FindAllStringSubmatchIndex(s, -1)
	if len(locs) == 0 {
		if strings.TrimSpace(s) != "" {
			return nil, fmt.Errorf("%w: no chunk markers found", ErrInvalidInput)
		}
		return nil, nil
	}
	if locs[0][0] != 0 {
		return nil, fmt.Errorf("%w: content before first chunk marker", ErrInvalidInput)
	}
	chunks := make([]Chunk, 0, len(locs))
	for i, loc := range locs {
		end := len(s)
		suffix := "\n"
		if i+1 < len(locs) {
			end = locs[i+1][0]
			suffix = "\n\n"
		}
		chunks = append(chunks, Chunk{
			ID:      s[loc[2]:loc[3]],
			Order:   i + 1,
			Content: strings.TrimSuffix(s[loc[1]:end], suffix),
		})
	}
	return chunks, nil
}

// CountChunkMarkers counts marker lines in a chunked file.
func CountChunkMarkers(data []byte) int {
	return len(chunkMarkerPattern.FindAllIndex(data, -1))
}

// ChunkedFilename names the output of one chunker version for a document.
func ChunkedFilename(document, chunker, version string) string {
	return document + "__" + chunker + "__" + version + ".md"
}

// Fingerprint hashes the Markdown together with the canonical JSON of the
// effective chunker configuration. Map keys marshal in sorted order.
func Fingerprint(markdown []byte, cfg ChunkerConfig) (string, error) {
	if cfg == nil {
		cfg = ChunkerConfig{}
	}
	canonical, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("%w: chunker config is not JSON serializable: %w", ErrInvalidInput, err)
	}
	h := sha256.New()
	h.Write(markdown)
	h.Write([]byte{0})
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// MarkdownDigest hashes converted Markdown.
func MarkdownDigest(markdown []byte) string {
	sum := sha256.Sum256(markdown)
	return hex.EncodeToString(sum[:])
}

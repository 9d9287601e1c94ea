package converters

import (
	"context"
	"fmt"
	"mime"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/docpipe/internal/converters/docx"
	"github.com/custodia-labs/docpipe/internal/converters/pdf"
	"github.com/custodia-labs/docpipe/internal/converters/plaintext"
	"github.com/custodia-labs/docpipe/internal/core/domain"
	"github.com/custodia-labs/docpipe/internal/core/ports/driven"
)

var _ driven.ConverterRegistry = (*Registry)(nil)

// Registry dispatches conversions by MIME type and priority.
type Registry struct {
	mu         sync.RWMutex
	converters []driven.Converter
}

// NewRegistry creates a registry holding the given converters.
func NewRegistry(converters ...driven.Converter) *Registry {
	r := &Registry{}
	for _, c := range converters {
		r.Register(c)
	}
	return r
}

// Defaults returns a registry with the PDF, DOCX and plain text converters.
func Defaults() *Registry {
	return NewRegistry(pdf.New(), docx.New(), plaintext.New())
}

// Register adds a converter. Converters with equal priority keep
// registration order.
func (r *Registry) Register(c driven.Converter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.converters = append(r.converters, c)
	sort.SliceStable(r.converters, func(i, j int) bool {
		return r.converters[i].Priority() > r.converters[j].Priority()
	})
}

// Convert runs the highest priority converter for in.MIMEType.
func (r *Registry) Convert(ctx context.Context, in driven.ConvertInput) (*driven.ConvertResult, error) {
	mediaType := baseMediaType(in.MIMEType)

	r.mu.RLock()
	var selected driven.Converter
	for _, c := range r.converters {
		if supports(c, mediaType) {
			selected = c
			break
		}
	}
	r.mu.RUnlock()

	if selected == nil {
		return nil, fmt.Errorf("%w: no converter for %q", domain.ErrUnsupportedType, in.MIMEType)
	}
	return selected.Convert(ctx, in)
}

// ConvertWith runs the named converter. It must support in.MIMEType.
func (r *Registry) ConvertWith(ctx context.Context, name string, in driven.ConvertInput) (*driven.ConvertResult, error) {
	c, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: unknown converter: %s", domain.ErrNotFound, name)
	}
	if !supports(c, baseMediaType(in.MIMEType)) {
		return nil, fmt.Errorf("%w: converter %s does not handle %q", domain.ErrUnsupportedType, name, in.MIMEType)
	}
	return c.Convert(ctx, in)
}

// Get returns a converter by name.
func (r *Registry) Get(name string) (driven.Converter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.converters {
		if c.Name() == name {
			return c, true
		}
	}
	return nil, false
}

// Converters returns the registered converters in priority order.
func (r *Registry) Converters() []driven.Converter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]driven.Converter, len(r.converters))
	copy(out, r.converters)
	return out
}

// SupportedMIMETypes returns all MIME types that can be converted, sorted.
func (r *Registry) SupportedMIMETypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]struct{})
	var out []string
	for _, c := range r.converters {
		for _, m := range c.SupportedMIMETypes() {
			if _, ok := seen[m]; !ok {
				seen[m] = struct{}{}
				out = append(out, m)
			}
		}
	}
	sort.Strings(out)
	return out
}

func supports(c driven.Converter, mediaType string) bool {
	for _, m := range c.SupportedMIMETypes() {
		if m == mediaType {
			return true
		}
	}
	return false
}

func baseMediaType(mimeType string) string {
	if mediaType, _, err := mime.ParseMediaType(mimeType); err == nil {
		return mediaType
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}

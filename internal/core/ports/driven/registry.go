package driven

import "context"

// ConverterRegistry selects the converter for a document.
type ConverterRegistry interface {
	// Convert runs the highest priority converter for the input MIME type.
	Convert(ctx context.Context, in ConvertInput) (*ConvertResult, error)

	// ConvertWith runs a converter chosen by name.
	ConvertWith(ctx context.Context, name string, in ConvertInput) (*ConvertResult, error)

	// Register adds a converter to the registry.
	Register(c Converter)

	// SupportedMIMETypes returns all MIME types that can be converted.
	SupportedMIMETypes() []string
}

// ChunkerKey identifies a strategy implementation.
type ChunkerKey struct {
	Name    string
	Version string
}

func (k ChunkerKey) String() string {
	return k.Name + "@" + k.Version
}

// ChunkerRegistry is an immutable table of strategies built at startup.
type ChunkerRegistry interface {
	// Lookup resolves a strategy. An empty version selects the latest.
	Lookup(name, version string) (ChunkStrategy, error)

	// Keys returns all registered keys in sorted order.
	Keys() []ChunkerKey
}

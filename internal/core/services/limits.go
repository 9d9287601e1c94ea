package services

// Default upload limits.
const (
	DefaultMaxFileSize  int64 = 10 * 1024 * 1024
	DefaultMaxDocuments       = 15
)

// Limits bounds what a subcatalog accepts.
type Limits struct {
	// MaxFileSize is the largest original accepted, in bytes.
	MaxFileSize int64

	// MaxDocuments is the most documents one subcatalog may hold.
	MaxDocuments int
}

// DefaultLimits returns the standard upload limits.
func DefaultLimits() Limits {
	return Limits{MaxFileSize: DefaultMaxFileSize, MaxDocuments: DefaultMaxDocuments}
}

func (l Limits) withDefaults() Limits {
	if l.MaxFileSize <= 0 {
		l.MaxFileSize = DefaultMaxFileSize
	}
	if l.MaxDocuments <= 0 {
		l.MaxDocuments = DefaultMaxDocuments
	}
	return l
}

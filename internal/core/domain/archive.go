package domain

import (
	"fmt"
	"time"
)

// archiveIDLayout names snapshots so lexical order matches creation order.
const archiveIDLayout = "20060102T150405.000000000Z"

// ArchiveEntry is an immutable snapshot of a document directory.
type ArchiveEntry struct {
	// ID is the UTC timestamp of the snapshot.
	ID string

	// DocumentID is the document the snapshot belongs to.
	DocumentID string

	// Ref is where the document lived when the snapshot was taken.
	Ref DocumentRef

	// Reason names the mutation that triggered the snapshot.
	Reason string

	CreatedAt time.Time

	// Path is the zip file location.
	Path string

	// Size is the zip size in bytes.
	Size int64
}

// ArchiveID formats a snapshot time as an archive identifier.
func ArchiveID(t time.Time) string {
	return t.UTC().Format(archiveIDLayout)
}

// ParseArchiveID recovers the snapshot time from an identifier.
func ParseArchiveID(id string) (time.Time, error) {
	t, err := time.Parse(archiveIDLayout, id)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: archive id %q", ErrInvalidInput, id)
	}
	return t, nil
}

// Snapshot reasons.
const (
	ReasonManual           = "manual"
	ReasonReplaceOriginal  = "replace_original"
	ReasonReconvert        = "reconvert"
	ReasonRechunk          = "rechunk"
	ReasonDeleteChunkedRun = "delete_chunked"
	ReasonDeleteDocument   = "delete_document"
	ReasonRestore          = "restore"
)

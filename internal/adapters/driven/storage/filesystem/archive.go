package filesystem

import (
	"archive/zip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/docpipe/internal/core/domain"
	"github.com/custodia-labs/docpipe/internal/core/ports/driven"
)

// Ensure ArchiveStore implements the interface.
var _ driven.ArchiveStore = (*ArchiveStore)(nil)

// archiveComment is stored as the zip comment so a snapshot can be restored
// after its document was deleted.
type archiveComment struct {
	DocumentID string             `json:"document_id"`
	Ref        domain.DocumentRef `json:"ref"`
	Reason     string             `json:"reason"`
}

// ArchiveStore writes zip snapshots of document directories.
type ArchiveStore struct {
	dir  string
	docs *Store
	now  func() time.Time
}

// NewArchiveStore creates the archive root if needed.
func NewArchiveStore(dir string, docs *Store) (*ArchiveStore, error) {
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("create archive root: %w", err)
	}
	return &ArchiveStore{dir: dir, docs: docs, now: time.Now}, nil
}

// Dir returns the archive root.
func (a *ArchiveStore) Dir() string {
	return a.dir
}

func (a *ArchiveStore) documentArchiveDir(documentID string) (string, error) {
	if documentID == "" || filepath.Base(documentID) != documentID || strings.HasPrefix(documentID, ".") {
		return "", fmt.Errorf("%w: document id %q", domain.ErrInvalidInput, documentID)
	}
	return filepath.Join(a.dir, documentID), nil
}

// Snapshot zips the document directory into <id>/<timestamp>.zip.
func (a *ArchiveStore) Snapshot(ctx context.Context, meta *domain.Metadata, reason string) (domain.ArchiveEntry, error) {
	entry, err := a.snapshot(ctx, meta, reason)
	if err != nil {
		return domain.ArchiveEntry{}, fmt.Errorf("%w: %s: %w", domain.ErrArchiveFailed, meta.DocumentID, err)
	}
	return entry, nil
}

func (a *ArchiveStore) snapshot(ctx context.Context, meta *domain.Metadata, reason string) (domain.ArchiveEntry, error) {
	ref := meta.Ref()
	docDir := a.docs.DocumentDir(ref)
	if !isDir(docDir) {
		return domain.ArchiveEntry{}, fmt.Errorf("document %s: %w", ref, domain.ErrNotFound)
	}
	archDir, err := a.documentArchiveDir(meta.DocumentID)
	if err != nil {
		return domain.ArchiveEntry{}, err
	}
	if err := os.MkdirAll(archDir, dirPerm); err != nil {
		return domain.ArchiveEntry{}, fmt.Errorf("create archive dir: %w", err)
	}

	// Snapshots taken within the same nanosecond tick still get distinct ids.
	created := a.now().UTC()
	id := domain.ArchiveID(created)
	path := filepath.Join(archDir, id+".zip")
	for exists(path) {
		created = created.Add(time.Nanosecond)
		id = domain.ArchiveID(created)
		path = filepath.Join(archDir, id+".zip")
	}

	comment, err := json.Marshal(archiveComment{DocumentID: meta.DocumentID, Ref: ref, Reason: reason})
	if err != nil {
		return domain.ArchiveEntry{}, err
	}
	err = writeAtomic(path, filePerm, func(w io.Writer) error {
		zw := zip.NewWriter(w)
		if err := zw.SetComment(string(comment)); err != nil {
			return err
		}
		if err := addDirToZip(ctx, zw, docDir); err != nil {
			return err
		}
		return zw.Close()
	})
	if err != nil {
		return domain.ArchiveEntry{}, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return domain.ArchiveEntry{}, err
	}
	return domain.ArchiveEntry{
		ID:         id,
		DocumentID: meta.DocumentID,
		Ref:        ref,
		Reason:     reason,
		CreatedAt:  created,
		Path:       path,
		Size:       info.Size(),
	}, nil
}

func addDirToZip(ctx context.Context, zw *zip.Writer, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path == root {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		header, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(rel)
		if d.IsDir() {
			header.Name += "/"
			_, err = zw.CreateHeader(header)
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		header.Method = zip.Deflate
		w, err := zw.CreateHeader(header)
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(w, f)
		return err
	})
}

// List returns the snapshots of a document, oldest first.
func (a *ArchiveStore) List(_ context.Context, documentID string) ([]domain.ArchiveEntry, error) {
	archDir, err := a.documentArchiveDir(documentID)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(archDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list archives: %w", err)
	}
	var out []domain.ArchiveEntry
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != ".zip" {
			continue
		}
		entry, err := a.readEntry(documentID, strings.TrimSuffix(name, ".zip"))
		if err != nil {
			continue
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Get returns one snapshot.
func (a *ArchiveStore) Get(_ context.Context, documentID, archiveID string) (domain.ArchiveEntry, error) {
	if _, err := domain.ParseArchiveID(archiveID); err != nil {
		return domain.ArchiveEntry{}, fmt.Errorf("archive %s: %w", archiveID, domain.ErrNotFound)
	}
	if _, err := a.documentArchiveDir(documentID); err != nil {
		return domain.ArchiveEntry{}, err
	}
	return a.readEntry(documentID, archiveID)
}

func (a *ArchiveStore) readEntry(documentID, archiveID string) (domain.ArchiveEntry, error) {
	created, err := domain.ParseArchiveID(archiveID)
	if err != nil {
		return domain.ArchiveEntry{}, err
	}
	path := filepath.Join(a.dir, documentID, archiveID+".zip")
	zr, err := zip.OpenReader(path)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.ArchiveEntry{}, fmt.Errorf("archive %s: %w", archiveID, domain.ErrNotFound)
	}
	if err != nil {
		return domain.ArchiveEntry{}, fmt.Errorf("open archive %s: %w", archiveID, err)
	}
	defer zr.Close()

	var comment archiveComment
	if err := json.Unmarshal([]byte(zr.Comment), &comment); err != nil {
		return domain.ArchiveEntry{}, fmt.Errorf("archive %s has no location: %w", archiveID, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return domain.ArchiveEntry{}, err
	}
	return domain.ArchiveEntry{
		ID:         archiveID,
		DocumentID: documentID,
		Ref:        comment.Ref,
		Reason:     comment.Reason,
		CreatedAt:  created,
		Path:       path,
		Size:       info.Size(),
	}, nil
}

// Extract unpacks the snapshot beside the target directory and swaps it in.
func (a *ArchiveStore) Extract(ctx context.Context, entry domain.ArchiveEntry, ref domain.DocumentRef) (err error) {
	subDir := filepath.Join(a.docs.Root(), ref.Catalog, ref.Subcatalog)
	if err := os.MkdirAll(subDir, dirPerm); err != nil {
		return fmt.Errorf("create subcatalog: %w", err)
	}
	staging := filepath.Join(subDir, ".restore-"+uuid.NewString())
	defer func() {
		if err != nil {
			_ = os.RemoveAll(staging)
		}
	}()
	if err = unzipInto(ctx, entry.Path, staging); err != nil {
		return fmt.Errorf("extract archive %s: %w", entry.ID, err)
	}
	for _, kind := range artifactKinds {
		if err = os.MkdirAll(filepath.Join(staging, string(kind)), dirPerm); err != nil {
			return err
		}
	}

	docDir := a.docs.DocumentDir(ref)
	var trash string
	if isDir(docDir) {
		trash = filepath.Join(subDir, ".trash-"+uuid.NewString())
		if err = os.Rename(docDir, trash); err != nil {
			return fmt.Errorf("move current document aside: %w", err)
		}
	}
	if err = os.Rename(staging, docDir); err != nil {
		if trash != "" {
			_ = os.Rename(trash, docDir)
		}
		return fmt.Errorf("move restored document into place: %w", err)
	}
	if err = syncDir(subDir); err != nil {
		return err
	}
	a.docs.remember(entry.DocumentID, ref)
	if trash != "" {
		if err := os.RemoveAll(trash); err != nil {
			return fmt.Errorf("remove replaced document: %w", err)
		}
	}
	return nil
}

func unzipInto(ctx context.Context, zipPath, dest string) error {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return err
	}
	defer zr.Close()

	if err := os.MkdirAll(dest, dirPerm); err != nil {
		return err
	}
	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := filepath.FromSlash(f.Name)
		if !filepath.IsLocal(name) {
			return fmt.Errorf("%w: unsafe path %q in archive", domain.ErrInvalidInput, f.Name)
		}
		target := filepath.Join(dest, name)
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, dirPerm); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), dirPerm); err != nil {
			return err
		}
		if err := extractFile(f, target); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePerm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

package filesystem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/custodia-labs/docpipe/internal/core/domain"
	"github.com/custodia-labs/docpipe/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.ArtifactStore = (*Store)(nil)

const (
	metadataFile = "metadata.json"
	dirPerm      = 0o755
	filePerm     = 0o644
)

var artifactKinds = []driven.ArtifactKind{
	driven.ArtifactOriginal,
	driven.ArtifactConverted,
	driven.ArtifactChunked,
}

// Store is the directory tree that holds every catalog and document.
type Store struct {
	root string

	mu    sync.RWMutex
	index map[string]domain.DocumentRef
}

// NewStore creates the data root if needed.
func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(root, dirPerm); err != nil {
		return nil, fmt.Errorf("create data root: %w", err)
	}
	return &Store{root: root, index: make(map[string]domain.DocumentRef)}, nil
}

// Root returns the data root.
func (s *Store) Root() string {
	return s.root
}

func (s *Store) catalogDir(name string) string {
	return filepath.Join(s.root, name)
}

func (s *Store) subcatalogDir(p domain.SubcatalogPath) string {
	return filepath.Join(s.root, p.Catalog, p.Subcatalog)
}

// DocumentDir returns the document directory path.
func (s *Store) DocumentDir(ref domain.DocumentRef) string {
	return filepath.Join(s.root, ref.Catalog, ref.Subcatalog, ref.Name)
}

func (s *Store) artifactPath(ref domain.DocumentRef, kind driven.ArtifactKind, filename string) (string, error) {
	if filename == "" || filepath.Base(filename) != filename || strings.HasPrefix(filename, ".") {
		return "", fmt.Errorf("%w: artifact filename %q", domain.ErrInvalidInput, filename)
	}
	return filepath.Join(s.DocumentDir(ref), string(kind), filename), nil
}

// CreateCatalog creates a top-level catalog.
func (s *Store) CreateCatalog(_ context.Context, name string) error {
	return mkdirNew(s.catalogDir(name))
}

// CreateSubcatalog creates a subcatalog inside an existing catalog.
func (s *Store) CreateSubcatalog(_ context.Context, p domain.SubcatalogPath) error {
	if !isDir(s.catalogDir(p.Catalog)) {
		return fmt.Errorf("catalog %q: %w", p.Catalog, domain.ErrNotFound)
	}
	return mkdirNew(s.subcatalogDir(p))
}

// ListCatalogs returns catalog names in lexical order.
func (s *Store) ListCatalogs(_ context.Context) ([]string, error) {
	return listDirs(s.root)
}

// ListSubcatalogs returns subcatalog names in lexical order.
func (s *Store) ListSubcatalogs(_ context.Context, catalog string) ([]string, error) {
	dir := s.catalogDir(catalog)
	if !isDir(dir) {
		return nil, fmt.Errorf("catalog %q: %w", catalog, domain.ErrNotFound)
	}
	return listDirs(dir)
}

// ListDocuments returns the document names of a subcatalog.
func (s *Store) ListDocuments(_ context.Context, p domain.SubcatalogPath) ([]string, error) {
	dir := s.subcatalogDir(p)
	if !isDir(dir) {
		return nil, fmt.Errorf("subcatalog %q: %w", p.String(), domain.ErrNotFound)
	}
	return listDirs(dir)
}

// CreateDocument assembles the document in a hidden staging directory and
// renames it into place.
func (s *Store) CreateDocument(_ context.Context, meta *domain.Metadata, originalFilename string, original []byte) (err error) {
	ref := meta.Ref()
	subDir := s.subcatalogDir(domain.SubcatalogPath{Catalog: ref.Catalog, Subcatalog: ref.Subcatalog})
	if !isDir(subDir) {
		return fmt.Errorf("subcatalog %s/%s: %w", ref.Catalog, ref.Subcatalog, domain.ErrNotFound)
	}
	docDir := s.DocumentDir(ref)
	if exists(docDir) {
		return fmt.Errorf("document %s: %w", ref, domain.ErrAlreadyExists)
	}
	if filepath.Base(originalFilename) != originalFilename {
		return fmt.Errorf("%w: original filename %q", domain.ErrInvalidInput, originalFilename)
	}

	staging := filepath.Join(subDir, ".staging-"+uuid.NewString())
	defer func() {
		if err != nil {
			_ = os.RemoveAll(staging)
		}
	}()
	for _, kind := range artifactKinds {
		if err = os.MkdirAll(filepath.Join(staging, string(kind)), dirPerm); err != nil {
			return fmt.Errorf("create staging dir: %w", err)
		}
	}
	if err = WriteFileAtomic(filepath.Join(staging, string(driven.ArtifactOriginal), originalFilename), original, filePerm); err != nil {
		return fmt.Errorf("write original: %w", err)
	}
	if err = writeMetadataFile(filepath.Join(staging, metadataFile), meta); err != nil {
		return err
	}
	if err = os.Rename(staging, docDir); err != nil {
		return fmt.Errorf("move document into place: %w", err)
	}
	if err = syncDir(subDir); err != nil {
		return err
	}
	s.remember(meta.DocumentID, ref)
	return nil
}

// FindDocument locates a document by id, scanning the tree on a cache miss.
func (s *Store) FindDocument(ctx context.Context, documentID string) (domain.DocumentRef, error) {
	s.mu.RLock()
	ref, ok := s.index[documentID]
	s.mu.RUnlock()
	if ok && exists(filepath.Join(s.DocumentDir(ref), metadataFile)) {
		return ref, nil
	}
	if err := s.rebuildIndex(ctx); err != nil {
		return domain.DocumentRef{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if ref, ok := s.index[documentID]; ok {
		return ref, nil
	}
	return domain.DocumentRef{}, fmt.Errorf("document %s: %w", documentID, domain.ErrNotFound)
}

func (s *Store) rebuildIndex(ctx context.Context) error {
	index := make(map[string]domain.DocumentRef)
	catalogs, err := listDirs(s.root)
	if err != nil {
		return err
	}
	for _, c := range catalogs {
		subs, err := listDirs(s.catalogDir(c))
		if err != nil {
			return err
		}
		for _, sub := range subs {
			if err := ctx.Err(); err != nil {
				return err
			}
			p := domain.SubcatalogPath{Catalog: c, Subcatalog: sub}
			docs, err := listDirs(s.subcatalogDir(p))
			if err != nil {
				return err
			}
			for _, name := range docs {
				ref := domain.DocumentRef{Catalog: c, Subcatalog: sub, Name: name}
				meta, err := readMetadataFile(filepath.Join(s.DocumentDir(ref), metadataFile))
				if err != nil {
					continue
				}
				index[meta.DocumentID] = ref
			}
		}
	}
	s.mu.Lock()
	s.index = index
	s.mu.Unlock()
	return nil
}

func (s *Store) remember(documentID string, ref domain.DocumentRef) {
	s.mu.Lock()
	s.index[documentID] = ref
	s.mu.Unlock()
}

func (s *Store) forget(ref domain.DocumentRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range s.index {
		if r == ref {
			delete(s.index, id)
		}
	}
}

// ReadMetadata reads metadata.json.
func (s *Store) ReadMetadata(_ context.Context, ref domain.DocumentRef) (*domain.Metadata, error) {
	return readMetadataFile(filepath.Join(s.DocumentDir(ref), metadataFile))
}

// WriteMetadata atomically replaces metadata.json.
func (s *Store) WriteMetadata(_ context.Context, ref domain.DocumentRef, meta *domain.Metadata) error {
	if !isDir(s.DocumentDir(ref)) {
		return fmt.Errorf("document %s: %w", ref, domain.ErrNotFound)
	}
	return writeMetadataFile(filepath.Join(s.DocumentDir(ref), metadataFile), meta)
}

// ReadArtifact reads a file from an artifact directory.
func (s *Store) ReadArtifact(_ context.Context, ref domain.DocumentRef, kind driven.ArtifactKind, filename string) ([]byte, error) {
	path, err := s.artifactPath(ref, kind, filename)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s/%s: %w", kind, filename, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s/%s: %w", kind, filename, err)
	}
	return data, nil
}

// WriteArtifact atomically writes a file into an artifact directory.
func (s *Store) WriteArtifact(_ context.Context, ref domain.DocumentRef, kind driven.ArtifactKind, filename string, data []byte) error {
	path, err := s.artifactPath(ref, kind, filename)
	if err != nil {
		return err
	}
	if !isDir(s.DocumentDir(ref)) {
		return fmt.Errorf("document %s: %w", ref, domain.ErrNotFound)
	}
	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return fmt.Errorf("create %s dir: %w", kind, err)
	}
	if err := WriteFileAtomic(path, data, filePerm); err != nil {
		return fmt.Errorf("write %s/%s: %w", kind, filename, err)
	}
	return nil
}

// RemoveArtifact deletes a file. Missing files are not an error.
func (s *Store) RemoveArtifact(_ context.Context, ref domain.DocumentRef, kind driven.ArtifactKind, filename string) error {
	path, err := s.artifactPath(ref, kind, filename)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s/%s: %w", kind, filename, err)
	}
	return syncDir(filepath.Dir(path))
}

// ListArtifacts returns the visible file names in an artifact directory.
func (s *Store) ListArtifacts(_ context.Context, ref domain.DocumentRef, kind driven.ArtifactKind) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.DocumentDir(ref), string(kind)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// DeleteDocument moves the document out of sight and removes it.
func (s *Store) DeleteDocument(_ context.Context, ref domain.DocumentRef) error {
	docDir := s.DocumentDir(ref)
	if !isDir(docDir) {
		return fmt.Errorf("document %s: %w", ref, domain.ErrNotFound)
	}
	trash := filepath.Join(filepath.Dir(docDir), ".trash-"+uuid.NewString())
	if err := os.Rename(docDir, trash); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	s.forget(ref)
	if err := syncDir(filepath.Dir(docDir)); err != nil {
		return err
	}
	if err := os.RemoveAll(trash); err != nil {
		return fmt.Errorf("remove deleted document: %w", err)
	}
	return nil
}

func readMetadataFile(path string) (*domain.Metadata, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("metadata: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	var meta domain.Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("decode metadata %s: %w", path, err)
	}
	if meta.Chunking == nil {
		meta.Chunking = []domain.ChunkingRecord{}
	}
	return &meta, nil
}

func writeMetadataFile(path string, meta *domain.Metadata) error {
	if meta.Chunking == nil {
		meta.Chunking = []domain.ChunkingRecord{}
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	data = append(data, '\n')
	if err := WriteFileAtomic(path, data, filePerm); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}

func mkdirNew(dir string) error {
	if err := os.Mkdir(dir, dirPerm); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%s: %w", filepath.Base(dir), domain.ErrAlreadyExists)
		}
		return fmt.Errorf("create %s: %w", filepath.Base(dir), err)
	}
	return syncDir(filepath.Dir(dir))
}

func listDirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

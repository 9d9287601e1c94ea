// Package watch ingests files dropped into an inbox directory.
//
// Every file created or written in the inbox that matches one of the
// patterns is uploaded into a subcatalog once it has been quiet for the
// debounce interval. With Replace set, a file whose document already
// exists replaces that document's original instead of being rejected.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/docpipe/internal/core/domain"
	"github.com/custodia-labs/docpipe/internal/core/ports/driving"
	"github.com/custodia-labs/docpipe/internal/logger"
)

// DefaultDebounce is how long a file must stay unchanged before ingestion.
const DefaultDebounce = 500 * time.Millisecond

// Result reports one ingestion attempt.
type Result struct {
	Path     string
	Replaced bool
	Metadata *domain.Metadata
	Err      error
}

// Options configures a Watcher.
type Options struct {
	// Dir is the inbox directory. Only its direct children are watched.
	Dir string

	// Into is the subcatalog receiving uploads.
	Into domain.SubcatalogPath

	// Patterns are doublestar patterns matched against file names.
	// Empty matches every file.
	Patterns []string

	// Ignore patterns win over Patterns.
	Ignore []string

	// Debounce is the quiet period before a file is ingested.
	Debounce time.Duration

	// Existing ingests files already in the inbox at start.
	Existing bool

	// Replace swaps the original of an existing document with the same name.
	Replace bool

	// OnResult is called after every ingestion attempt.
	OnResult func(Result)
}

// Watcher uploads inbox files into a subcatalog.
type Watcher struct {
	opts    Options
	catalog driving.CatalogService
	watcher *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]*time.Timer
	ready   chan string
	done    chan struct{}
}

// New creates a watcher on opts.Dir. Call Run to start ingesting.
func New(catalog driving.CatalogService, opts Options) (*Watcher, error) {
	if catalog == nil {
		return nil, errors.New("watch: catalog service is required")
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	for _, p := range append(append([]string{}, opts.Patterns...), opts.Ignore...) {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("%w: invalid pattern %q", domain.ErrInvalidInput, p)
		}
	}

	info, err := os.Stat(opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", domain.ErrInvalidInput, opts.Dir)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fw.Add(opts.Dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", opts.Dir, err)
	}

	return &Watcher{
		opts:    opts,
		catalog: catalog,
		watcher: fw,
		pending: make(map[string]*time.Timer),
		ready:   make(chan string, 64),
		done:    make(chan struct{}),
	}, nil
}

// Run processes events until ctx is done. Uploads run one at a time.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.stop()

	if w.opts.Existing {
		if err := w.queueExisting(); err != nil {
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch: %v", err)
		case path := <-w.ready:
			w.report(w.ingest(ctx, path))
		}
	}
}

func (w *Watcher) stop() {
	close(w.done)
	w.watcher.Close()
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) queueExisting() error {
	entries, err := os.ReadDir(w.opts.Dir)
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	for _, e := range entries {
		if e.Type().IsRegular() && w.Matches(e.Name()) {
			w.schedule(filepath.Join(w.opts.Dir, e.Name()))
		}
	}
	return nil
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	if !w.Matches(filepath.Base(event.Name)) {
		return
	}
	w.schedule(event.Name)
}

// schedule restarts the quiet-period timer of path.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok {
		t.Reset(w.opts.Debounce)
		return
	}
	w.pending[path] = time.AfterFunc(w.opts.Debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		select {
		case w.ready <- path:
		case <-w.done:
		}
	})
}

// Matches reports whether a file name is eligible for ingestion.
// Hidden files and editor lock files never match.
func (w *Watcher) Matches(name string) bool {
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~$") {
		return false
	}
	for _, p := range w.opts.Ignore {
		if ok, _ := doublestar.Match(p, name); ok {
			return false
		}
	}
	if len(w.opts.Patterns) == 0 {
		return true
	}
	for _, p := range w.opts.Patterns {
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
	}
	return false
}

func (w *Watcher) ingest(ctx context.Context, path string) Result {
	res := Result{Path: path}

	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		res.Err = fmt.Errorf("watch: %s is no longer a regular file", path)
		return res
	}
	content, err := os.ReadFile(path)
	if err != nil {
		res.Err = fmt.Errorf("watch: read %s: %w", path, err)
		return res
	}

	filename := filepath.Base(path)
	meta, err := w.catalog.AddDocument(ctx, driving.AddDocumentRequest{
		Subcatalog: w.opts.Into,
		Filename:   filename,
		Content:    content,
	})

	var verr *domain.ValidationError
	if err != nil && w.opts.Replace && errors.As(err, &verr) && verr.Violation == domain.ViolationDuplicateName {
		meta, err = w.replace(ctx, filename, content)
		res.Replaced = err == nil
	}
	res.Metadata = meta
	res.Err = err
	return res
}

func (w *Watcher) replace(ctx context.Context, filename string, content []byte) (*domain.Metadata, error) {
	name := domain.DocumentName(filename)
	docs, err := w.catalog.ListDocuments(ctx, w.opts.Into)
	if err != nil {
		return nil, err
	}
	for i := range docs {
		if docs[i].Name == name {
			return w.catalog.ReplaceOriginal(ctx, docs[i].DocumentID, filename, content, "")
		}
	}
	return nil, fmt.Errorf("%w: document %s in %s", domain.ErrNotFound, name, w.opts.Into)
}

func (w *Watcher) report(res Result) {
	switch {
	case res.Err != nil:
		logger.Warn("watch: %s: %v", filepath.Base(res.Path), res.Err)
	case res.Replaced:
		logger.Info("watch: replaced %s (%s)", res.Metadata.Name, res.Metadata.DocumentID)
	default:
		logger.Info("watch: added %s (%s)", res.Metadata.Name, res.Metadata.DocumentID)
	}
	if w.opts.OnResult != nil {
		w.opts.OnResult(res)
	}
}

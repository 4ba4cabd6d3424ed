// Package watch classifies HTML files as they appear or change under a set
// of directories, writing each result next to its source.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/fsnotify/fsnotify"

	"github.com/amitmahapatrav5/genai-sop-generator/internal/logger"
	"github.com/amitmahapatrav5/genai-sop-generator/internal/output"
	"github.com/amitmahapatrav5/genai-sop-generator/pkg/classify"
)

// OutputSuffix replaces the source extension in result file names. The
// result file holds only the Features document.
const OutputSuffix = ".features.json"

// MetadataSuffix names the sidecar holding how a result was produced.
const MetadataSuffix = ".features.meta.json"

var defaultExts = []string{".html", ".htm"}

// Classifier classifies raw page markup. *sopgen.Sopgen implements it.
type Classifier interface {
	ExtractHTML(ctx context.Context, html string) (*classify.Result, error)
}

// Config describes what to watch.
type Config struct {
	Roots       []string      // directories to watch (recursive)
	Exts        []string      // file extensions to classify, default .html and .htm
	InitialScan bool          // classify existing files before watching
	Debounce    time.Duration // coalesce rapid write bursts

	// OnResult is called after each processed file. res is nil when the
	// file was skipped or failed.
	OnResult func(path string, res *classify.Result, err error)
}

// Watcher classifies changed files.
type Watcher struct {
	cfg        Config
	classifier Classifier
	exts       map[string]bool

	mu     sync.Mutex
	hashes map[string]uint64
}

// New creates a watcher.
func New(c Classifier, cfg Config) (*Watcher, error) {
	if c == nil {
		return nil, errors.New("watch requires a classifier")
	}
	if len(cfg.Roots) == 0 {
		return nil, errors.New("no roots provided")
	}
	if len(cfg.Exts) == 0 {
		cfg.Exts = defaultExts
	}
	exts := make(map[string]bool, len(cfg.Exts))
	for _, e := range cfg.Exts {
		e = strings.ToLower(e)
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts[e] = true
	}
	return &Watcher{
		cfg:        cfg,
		classifier: c,
		exts:       exts,
		hashes:     make(map[string]uint64),
	}, nil
}

// OutputPath returns where the result for path is written:
// login.html becomes login.features.json.
func OutputPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + OutputSuffix
}

// MetadataPath returns the metadata sidecar path for a source page.
func MetadataPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + MetadataSuffix
}

func (w *Watcher) matches(path string) bool {
	return w.exts[strings.ToLower(filepath.Ext(path))]
}

// Run watches the roots until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	var initial []string
	for _, root := range w.cfg.Roots {
		files, err := w.addTree(fw, root)
		if err != nil {
			return fmt.Errorf("watch %s: %w", root, err)
		}
		initial = append(initial, files...)
	}
	logger.Info("watching for page changes", "roots", w.cfg.Roots, "debounce", w.cfg.Debounce)

	if w.cfg.InitialScan {
		for _, path := range initial {
			if ctx.Err() != nil {
				return nil
			}
			w.handle(ctx, path)
		}
	}

	pending := make(map[string]struct{})
	var timer *time.Timer
	var timerC <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	flush := func() {
		for path := range pending {
			delete(pending, path)
			if ctx.Err() != nil {
				return
			}
			w.handle(ctx, path)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
					files, err := w.addTree(fw, ev.Name)
					if err != nil {
						logger.Warn("failed to watch new directory", "path", ev.Name, "error", err)
					}
					for _, f := range files {
						pending[f] = struct{}{}
					}
				}
			}
			if w.matches(ev.Name) && ev.Has(fsnotify.Create|fsnotify.Write) {
				pending[ev.Name] = struct{}{}
			}
			if len(pending) == 0 {
				continue
			}
			if w.cfg.Debounce <= 0 {
				flush()
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.cfg.Debounce)
			} else {
				timer.Reset(w.cfg.Debounce)
			}
			timerC = timer.C

		case <-timerC:
			timerC = nil
			flush()

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher error", "error", err)
		}
	}
}

// addTree watches root and its subdirectories and returns the matching
// files found.
func (w *Watcher) addTree(fw *fsnotify.Watcher, root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return fw.Add(path)
		}
		if w.matches(path) {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func (w *Watcher) handle(ctx context.Context, path string) {
	res, err := w.Process(ctx, path)
	if err != nil {
		logger.Warn("page classification failed", "path", path, "error", err)
	} else if res != nil {
		logger.Info("page classified",
			"path", path,
			"output", OutputPath(path),
			"actions", len(res.Features.Actions),
			"info", len(res.Features.Info))
	}
	if w.cfg.OnResult != nil {
		w.cfg.OnResult(path, res, err)
	}
}

// Process classifies one file and writes its result. It returns a nil
// result without error when the file is unchanged since it was last
// processed, or when an existing result is newer than the file.
func (w *Watcher) Process(ctx context.Context, path string) (*classify.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	sum := xxhash.Sum64(data)
	if !w.changed(path, sum) {
		logger.Debug("page unchanged, skipping", "path", path)
		return nil, nil
	}

	res, err := w.classifier.ExtractHTML(ctx, string(data))
	if err != nil {
		w.forget(path)
		return nil, err
	}

	// The result is written last; its mtime marks the page as done.
	rec := output.NewRecord(path, res, true)
	if err := writeJSON(MetadataPath(path), rec.Metadata); err != nil {
		w.forget(path)
		return nil, err
	}
	if err := writeJSON(OutputPath(path), output.NewRecord(path, res, false)); err != nil {
		w.forget(path)
		return nil, err
	}
	return res, nil
}

// changed records sum for path and reports whether it differs from the
// previous one. With no previous hash, a result file newer than the source
// counts as unchanged.
func (w *Watcher) changed(path string, sum uint64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	prev, seen := w.hashes[path]
	w.hashes[path] = sum
	if seen {
		return prev != sum
	}
	return !resultIsFresh(path)
}

func (w *Watcher) forget(path string) {
	w.mu.Lock()
	delete(w.hashes, path)
	w.mu.Unlock()
}

func resultIsFresh(path string) bool {
	src, err := os.Stat(path)
	if err != nil {
		return false
	}
	out, err := os.Stat(OutputPath(path))
	if err != nil {
		return false
	}
	return !out.ModTime().Before(src.ModTime())
}

// writeJSON writes v through a temporary file so readers never see a
// partial document.
func writeJSON(path string, v any) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".sopgen-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	jw := output.NewJSONWriter(tmp, true, "  ")
	if err := jw.Write(v); err != nil {
		tmp.Close()
		return err
	}
	if err := jw.Close(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

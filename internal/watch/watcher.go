// SPDX-License-Identifier: MPL-2.0

// Package watch turns a local directory into an install inbox.
//
// Archives dropped into the directory (or any subdirectory) are collected
// until the filesystem has been quiet for the debounce period, then handed to
// a callback one at a time in lexical order.
package watch

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

const (
	// DefaultPattern selects mod archives.
	DefaultPattern = "**/*.{qmod,zip}"

	defaultDebounce = 500 * time.Millisecond
)

// ErrInvalidWatchConfig is the sentinel wrapped by InvalidWatchConfigError.
var ErrInvalidWatchConfig = errors.New("invalid watch config")

type (
	// Config holds the parameters for a Watcher.
	Config struct {
		// Dir is the inbox directory. It must exist.
		Dir string
		// Pattern is a doublestar glob, relative to Dir, that selects
		// archives. Empty uses DefaultPattern.
		Pattern string
		// Debounce is the quiet period after the last event before archives
		// are handed over. Zero or negative uses 500ms.
		Debounce time.Duration
		// ScanExisting hands over matching files already present in Dir
		// when Run starts.
		ScanExisting bool
		// OnArchive receives the absolute path of each settled archive.
		// Errors are logged and do not stop the watcher.
		OnArchive func(ctx context.Context, path string) error
		// Logger receives diagnostics. nil uses the default charm logger.
		Logger *log.Logger
	}

	// InvalidWatchConfigError lists every problem found by Config.Validate.
	InvalidWatchConfigError struct {
		FieldErrors []error
	}

	// Watcher monitors an inbox directory. Run must be called exactly once.
	Watcher struct {
		cfg      Config
		fsw      *fsnotify.Watcher
		logger   *log.Logger
		pattern  string
		debounce time.Duration
		dir      string
		started  atomic.Bool
	}
)

func (e *InvalidWatchConfigError) Error() string {
	return fmt.Sprintf("invalid watch config: %d field error(s): %v", len(e.FieldErrors), errors.Join(e.FieldErrors...))
}

func (e *InvalidWatchConfigError) Unwrap() error { return ErrInvalidWatchConfig }

// Validate checks the config without touching the filesystem.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Dir) == "" {
		errs = append(errs, errors.New("dir must not be empty"))
	}
	if c.Pattern != "" && !doublestar.ValidatePattern(c.Pattern) {
		errs = append(errs, fmt.Errorf("pattern %q is not a valid glob", c.Pattern))
	}
	if c.OnArchive == nil {
		errs = append(errs, errors.New("an archive callback is required"))
	}
	if len(errs) > 0 {
		return &InvalidWatchConfigError{FieldErrors: errs}
	}
	return nil
}

// New validates cfg and registers Dir and every directory below it.
func New(cfg Config) (*Watcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dir, err := filepath.Abs(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("watch: resolve inbox directory: %w", err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("watch: inbox directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch: %s is not a directory", dir)
	}

	pattern := cfg.Pattern
	if pattern == "" {
		pattern = DefaultPattern
	}
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default().WithPrefix("watch")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		cfg:      cfg,
		fsw:      fsw,
		logger:   logger,
		pattern:  pattern,
		debounce: debounce,
		dir:      dir,
	}
	if err := w.addDirectories(); err != nil {
		if closeErr := fsw.Close(); closeErr != nil {
			logger.Warn("close after init failure", "err", closeErr)
		}
		return nil, err
	}
	return w, nil
}

// Dir returns the absolute inbox directory.
func (w *Watcher) Dir() string { return w.dir }

// Pattern returns the effective archive glob.
func (w *Watcher) Pattern() string { return w.pattern }

// Run blocks until ctx is cancelled. It returns nil on cancellation and an
// error when the underlying watcher breaks.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return errors.New("watch: Run called more than once")
	}

	var (
		mu      sync.Mutex
		pending = make(map[string]struct{})
		timer   *time.Timer
		running atomic.Bool
	)

	// fire drains the pending set. Only one drain runs at a time; a drain
	// that finds another in progress reschedules itself.
	fire := func() {
		if ctx.Err() != nil {
			return
		}
		if !running.CompareAndSwap(false, true) {
			mu.Lock()
			if timer != nil {
				timer.Reset(w.debounce)
			}
			mu.Unlock()
			return
		}
		defer running.Store(false)

		mu.Lock()
		batch := slices.Sorted(maps.Keys(pending))
		clear(pending)
		mu.Unlock()

		for _, path := range batch {
			if ctx.Err() != nil {
				return
			}
			w.deliver(ctx, path)
		}
	}

	schedule := func(path string) {
		mu.Lock()
		defer mu.Unlock()
		pending[path] = struct{}{}
		if timer == nil {
			timer = time.AfterFunc(w.debounce, fire)
		} else {
			timer.Reset(w.debounce)
		}
	}

	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
		if closeErr := w.fsw.Close(); closeErr != nil {
			w.logger.Warn("close fsnotify", "err", closeErr)
		}
	}()

	if w.cfg.ScanExisting {
		existing, err := w.scan()
		if err != nil {
			return err
		}
		for _, path := range existing {
			schedule(path)
		}
	}

	w.logger.Info("watching", "dir", w.dir, "pattern", w.pattern)

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watch: fsnotify event channel closed unexpectedly")
			}
			if !evt.Has(fsnotify.Create) && !evt.Has(fsnotify.Write) {
				continue
			}
			if evt.Has(fsnotify.Create) && w.maybeAddDir(evt.Name) {
				continue
			}
			if !w.matches(evt.Name) {
				continue
			}
			w.logger.Debug("archive event", "path", evt.Name, "op", evt.Op.String())
			schedule(evt.Name)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watch: fsnotify error channel closed unexpectedly")
			}
			if isFatalFsnotifyError(err) {
				return fmt.Errorf("watch: fatal fsnotify error: %w", err)
			}
			w.logger.Warn("fsnotify error", "err", err)
		}
	}
}

// deliver hands one archive to the callback if it still exists.
func (w *Watcher) deliver(ctx context.Context, path string) {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		w.logger.Debug("archive vanished before delivery", "path", path)
		return
	}
	w.logger.Info("archive settled", "path", path)
	if err := w.cfg.OnArchive(ctx, path); err != nil {
		w.logger.Error("archive failed", "path", path, "err", err)
	}
}

// scan lists matching regular files already in the inbox.
func (w *Watcher) scan() ([]string, error) {
	var found []string
	err := filepath.WalkDir(w.dir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			w.logger.Warn("skipping inaccessible path", "path", path, "err", walkErr)
			return nil //nolint:nilerr // inaccessible paths are skipped
		}
		if d.Type().IsRegular() && w.matches(path) {
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("watch: scan inbox: %w", err)
	}
	return found, nil
}

func (w *Watcher) addDirectories() error {
	walkErr := filepath.WalkDir(w.dir, func(path string, d os.DirEntry, walkDirErr error) error {
		if walkDirErr != nil {
			w.logger.Warn("skipping inaccessible path", "path", path, "err", walkDirErr)
			return nil //nolint:nilerr // inaccessible paths are skipped
		}
		if !d.IsDir() {
			return nil
		}
		if addErr := w.fsw.Add(path); addErr != nil {
			return fmt.Errorf("watch: add directory %q: %w", path, addErr)
		}
		return nil
	})
	if walkErr != nil {
		return fmt.Errorf("watch: walk inbox: %w", walkErr)
	}
	return nil
}

// maybeAddDir registers path if it is a new directory and reports whether it
// was one.
func (w *Watcher) maybeAddDir(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return false
	}
	if addErr := w.fsw.Add(path); addErr != nil {
		w.logger.Warn("add new directory", "path", path, "err", addErr)
	}
	return true
}

// matches reports whether path, absolute or relative to the inbox, is
// selected by the pattern.
func (w *Watcher) matches(path string) bool {
	rel := path
	if filepath.IsAbs(path) {
		r, err := filepath.Rel(w.dir, path)
		if err != nil {
			return false
		}
		rel = r
	}
	matched, err := doublestar.Match(w.pattern, filepath.ToSlash(rel))
	return err == nil && matched
}

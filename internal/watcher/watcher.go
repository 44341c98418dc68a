// Package watcher reports batches of changed document files using fsnotify.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/conneroisu/bbcode/internal/errors"
	"github.com/conneroisu/bbcode/internal/logging"
	"github.com/conneroisu/bbcode/internal/validation"
)

// EventType represents the type of file change
type EventType int

const (
	EventTypeCreated EventType = iota
	EventTypeModified
	EventTypeDeleted
	EventTypeRenamed
)

// String returns the string representation of the EventType
func (e EventType) String() string {
	switch e {
	case EventTypeCreated:
		return "created"
	case EventTypeModified:
		return "modified"
	case EventTypeDeleted:
		return "deleted"
	case EventTypeRenamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// ChangeEvent is one changed file. ModTime and Size are zero once the file
// is gone.
type ChangeEvent struct {
	Type    EventType
	Path    string
	ModTime time.Time
	Size    int64
}

// FileFilter reports whether a changed path is of interest.
type FileFilter func(path string) bool

// ChangeHandler receives one debounced batch of changes.
type ChangeHandler func(ctx context.Context, events []ChangeEvent) error

// FileWatcher watches directory trees and hands debounced batches of
// changes to its handlers.
type FileWatcher struct {
	watcher   *fsnotify.Watcher
	debouncer *Debouncer
	logger    logging.Logger

	mu       sync.RWMutex
	roots    []string
	filters  []FileFilter
	ignore   []string
	handlers []ChangeHandler
}

// NewFileWatcher creates a watcher whose batches close after delay of quiet.
func NewFileWatcher(delay time.Duration, logger logging.Logger) (*FileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.NewInternalError(errors.ErrCodeInternalError, "cannot create file watcher", err)
	}
	return &FileWatcher{
		watcher:   w,
		debouncer: NewDebouncer(delay),
		logger:    logger.WithComponent("watcher"),
	}, nil
}

// AddFilter adds a filter; a change must pass every filter.
func (fw *FileWatcher) AddFilter(filter FileFilter) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	fw.filters = append(fw.filters, filter)
}

// SetIgnore sets the name patterns of directories that are never watched
// and files that are never reported. Patterns are matched against the path
// below its watch root, so the directories above a root never match.
func (fw *FileWatcher) SetIgnore(patterns []string) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	fw.ignore = append([]string(nil), patterns...)
}

// AddHandler adds a change handler
func (fw *FileWatcher) AddHandler(handler ChangeHandler) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	fw.handlers = append(fw.handlers, handler)
}

// AddRecursive watches root and every directory below it that is not
// ignored. A root naming a file watches the file's directory.
func (fw *FileWatcher) AddRecursive(root string) error {
	if err := validation.ValidatePath(root); err != nil {
		return errors.Wrap(err, errors.ErrorTypeValidation, errors.ErrCodeInvalidPath, "invalid watch path").
			WithLocation(root, 0, 0)
	}
	root = filepath.Clean(root)

	info, err := os.Stat(root)
	if err != nil {
		return errors.FileError("read", root, err)
	}
	if !info.IsDir() {
		dir := filepath.Dir(root)
		fw.addRoot(dir)
		return fw.watcher.Add(dir)
	}

	fw.addRoot(root)
	return fw.addTree(root)
}

func (fw *FileWatcher) addRoot(root string) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	for _, r := range fw.roots {
		if r == root {
			return
		}
	}
	fw.roots = append(fw.roots, root)
}

// addTree watches dir and the directories below it that are not ignored.
func (fw *FileWatcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && fw.ignored(path) {
			return filepath.SkipDir
		}
		return fw.watcher.Add(path)
	})
}

// relative returns path below the deepest watch root containing it. A path
// outside every root is reduced to its base name.
func (fw *FileWatcher) relative(path string) string {
	fw.mu.RLock()
	defer fw.mu.RUnlock()

	best := ""
	for _, root := range fw.roots {
		if len(root) <= len(best) {
			continue
		}
		if root == "." && !filepath.IsAbs(path) {
			best = root
			continue
		}
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			best = root
		}
	}
	if best == "" {
		return filepath.Base(path)
	}
	rel, err := filepath.Rel(best, path)
	if err != nil {
		return filepath.Base(path)
	}
	return rel
}

// ignored reports whether path, taken below its watch root, matches an
// ignore pattern.
func (fw *FileWatcher) ignored(path string) bool {
	fw.mu.RLock()
	keep := IgnoreFilter(fw.ignore)
	fw.mu.RUnlock()

	rel := fw.relative(path)
	return rel != "." && !keep(rel)
}

// WatchList returns the directories currently watched.
func (fw *FileWatcher) WatchList() []string {
	list := fw.watcher.WatchList()
	sort.Strings(list)
	return list
}

// Start runs the watcher until ctx is done.
func (fw *FileWatcher) Start(ctx context.Context) {
	go fw.debouncer.Run(ctx)
	go fw.processBatches(ctx)
	go fw.watchLoop(ctx)
}

// Stop releases the underlying watcher.
func (fw *FileWatcher) Stop() error {
	fw.debouncer.Stop()
	return fw.watcher.Close()
}

func (fw *FileWatcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handleFsnotifyEvent(ctx, event)
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Warn(ctx, err, "File watcher error")
		}
	}
}

func (fw *FileWatcher) handleFsnotifyEvent(ctx context.Context, event fsnotify.Event) {
	info, statErr := os.Stat(event.Name)

	// New directories are watched as they appear.
	if statErr == nil && info.IsDir() {
		if event.Has(fsnotify.Create) && !fw.ignored(event.Name) {
			if err := fw.addTree(event.Name); err != nil {
				fw.logger.Warn(ctx, err, "Cannot watch new directory", "path", event.Name)
			}
		}
		return
	}

	if fw.ignored(event.Name) {
		return
	}

	fw.mu.RLock()
	filters := fw.filters
	fw.mu.RUnlock()
	for _, filter := range filters {
		if !filter(event.Name) {
			return
		}
	}

	change := ChangeEvent{Path: event.Name, Type: eventType(event.Op)}
	if statErr == nil {
		change.ModTime = info.ModTime()
		change.Size = info.Size()
	}
	fw.debouncer.Add(change)
}

func eventType(op fsnotify.Op) EventType {
	switch {
	case op.Has(fsnotify.Create):
		return EventTypeCreated
	case op.Has(fsnotify.Remove):
		return EventTypeDeleted
	case op.Has(fsnotify.Rename):
		return EventTypeRenamed
	default:
		return EventTypeModified
	}
}

func (fw *FileWatcher) processBatches(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case events := <-fw.debouncer.Output():
			fw.mu.RLock()
			handlers := fw.handlers
			fw.mu.RUnlock()

			for _, handler := range handlers {
				if err := handler(ctx, events); err != nil {
					fw.logger.Error(ctx, err, "Change handler failed", "events", len(events))
				}
			}
		}
	}
}

// ExtensionFilter accepts paths with one of exts, compared without case.
func ExtensionFilter(exts []string) FileFilter {
	return func(path string) bool {
		return validation.ValidateFileExtension(path, exts) == nil
	}
}

// IgnoreFilter rejects paths with an element matching one of patterns.
func IgnoreFilter(patterns []string) FileFilter {
	return func(path string) bool {
		for _, part := range strings.Split(filepath.ToSlash(path), "/") {
			for _, pattern := range patterns {
				if ok, _ := filepath.Match(pattern, part); ok {
					return false
				}
			}
		}
		return true
	}
}

// NoEditorFilter rejects editor swap and backup files.
func NoEditorFilter(path string) bool {
	base := filepath.Base(path)
	return !strings.HasPrefix(base, ".#") &&
		!strings.HasSuffix(base, "~") &&
		!strings.HasSuffix(base, ".swp") &&
		!strings.HasSuffix(base, ".swx")
}

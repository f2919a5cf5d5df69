// Package walker enumerates the files under a root as forward-slash paths
// relative to that root.
//
// Directories are traversed but never yielded. Entries that cannot be read
// are not dropped: they are yielded as Skipped entries carrying the reason,
// so callers decide whether to warn or abort.
package walker

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"path"
	"path/filepath"
	"strings"
)

// ErrIrregular marks entries that are neither regular files nor links to them.
var ErrIrregular = errors.New("not a regular file")

var errStop = errors.New("stop walking")

// Entry is one walk outcome: a file path, or a skipped path with a reason.
type Entry struct {
	Path string
	Err  error
}

// Skipped reports whether the entry could not be read.
func (e Entry) Skipped() bool { return e.Err != nil && e.Path != "" }

// Aborted reports whether the walk itself failed: the root was unreadable
// or the context was cancelled. It is always the last entry.
func (e Entry) Aborted() bool { return e.Err != nil && e.Path == "" }

type config struct {
	ctx   context.Context
	prune func(dir string) bool
}

// Option configures Walk.
type Option func(*config)

// WithContext stops the walk before the next entry once ctx is done. The
// final yielded entry then carries ctx.Err() with an empty path.
func WithContext(ctx context.Context) Option {
	return func(c *config) { c.ctx = ctx }
}

// WithPrune skips descent into every directory for which fn returns true.
// The root is never pruned.
func WithPrune(fn func(dir string) bool) Option {
	return func(c *config) { c.prune = fn }
}

// Walk lazily enumerates files in fsys in lexical order.
func Walk(fsys fs.FS, opts ...Option) iter.Seq[Entry] {
	cfg := config{ctx: context.Background()}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(yield func(Entry) bool) {
		err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
			if ctxErr := cfg.ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if err != nil {
				if p == "." {
					return err
				}
				// WalkDir already skips the subtree of an unreadable directory.
				if !yield(Entry{Path: Normalize(p), Err: err}) {
					return errStop
				}
				return nil
			}
			if d.IsDir() {
				if p != "." && cfg.prune != nil && cfg.prune(Normalize(p)) {
					return fs.SkipDir
				}
				return nil
			}

			e, ok := classify(fsys, p, d)
			if !ok {
				return nil
			}
			if !yield(e) {
				return errStop
			}
			return nil
		})
		if err != nil && !errors.Is(err, errStop) {
			yield(Entry{Err: err})
		}
	}
}

// classify turns a non-directory entry into an Entry. ok is false for
// symlinks to directories, which are neither followed nor yielded.
func classify(fsys fs.FS, p string, d fs.DirEntry) (Entry, bool) {
	name := Normalize(p)
	mode := d.Type()
	switch {
	case mode.IsRegular():
		return Entry{Path: name}, true
	case mode&fs.ModeSymlink != 0:
		target, err := fs.Stat(fsys, p)
		if err != nil {
			return Entry{Path: name, Err: fmt.Errorf("broken symlink: %w", err)}, true
		}
		if target.IsDir() {
			return Entry{}, false
		}
		if !target.Mode().IsRegular() {
			return Entry{Path: name, Err: ErrIrregular}, true
		}
		return Entry{Path: name}, true
	default:
		return Entry{Path: name, Err: fmt.Errorf("%w (%s)", ErrIrregular, mode.Type())}, true
	}
}

// Normalize converts an OS path to forward slashes, cleans it and strips
// any leading "./".
func Normalize(p string) string {
	p = path.Clean(filepath.ToSlash(p))
	for strings.HasPrefix(p, "./") {
		p = p[2:]
	}
	return p
}

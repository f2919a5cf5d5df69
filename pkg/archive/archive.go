// Package archive packs selected files into a single deflate-compressed zip
// held in memory.
//
// Entries are written strictly in the order given, one file at a time. Each
// file is read fully into memory before it is compressed, so peak memory
// grows with the largest file; WithMaxFileSize puts a ceiling on that.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"time"

	"github.com/klauspost/compress/zip"
)

// FileName is the name the archive is uploaded under.
const FileName = "submit.zip"

// ErrTooLarge is wrapped by a read failure when a file exceeds the
// configured size limit.
var ErrTooLarge = errors.New("file exceeds size limit")

// Op identifies the stage of archive construction that failed.
type Op int

const (
	OpOpen Op = iota + 1
	OpRead
	OpWrite
	OpFinalize
)

func (o Op) String() string {
	switch o {
	case OpOpen:
		return "open"
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	case OpFinalize:
		return "finalize"
	default:
		return fmt.Sprintf("Op(%d)", int(o))
	}
}

// Error is returned for any failure while building an archive. Path is
// empty for OpFinalize.
type Error struct {
	Op   Op
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Op {
	case OpOpen:
		return fmt.Sprintf("could not open file %q: %v", e.Path, e.Err)
	case OpRead:
		return fmt.Sprintf("could not read file %q: %v", e.Path, e.Err)
	case OpWrite:
		return fmt.Sprintf("failed to add %q to %s: %v", e.Path, FileName, e.Err)
	default:
		return fmt.Sprintf("unable to write %s: %v", FileName, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// ProgressFunc is called once per entry after it has been written.
type ProgressFunc func(name string)

type options struct {
	progress    ProgressFunc
	modTime     time.Time
	maxFileSize int64
}

// Option configures Build.
type Option func(*options)

// WithProgress registers fn as the progress sink.
func WithProgress(fn ProgressFunc) Option {
	return func(o *options) { o.progress = fn }
}

// WithModTime stamps every entry with t instead of the time Build started.
func WithModTime(t time.Time) Option {
	return func(o *options) { o.modTime = t }
}

// WithMaxFileSize rejects files larger than n bytes. Zero means no limit.
func WithMaxFileSize(n int64) Option {
	return func(o *options) { o.maxFileSize = n }
}

// Build reads every path from fsys and returns the finished archive. The
// first failure aborts the build and no partial archive is returned.
// Cancellation is checked before each entry, never mid-file.
func Build(ctx context.Context, fsys fs.FS, paths []string, opts ...Option) ([]byte, error) {
	o := options{modTime: time.Now()}
	for _, opt := range opts {
		opt(&o)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, name := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := readEntry(fsys, name, o.maxFileSize)
		if err != nil {
			return nil, err
		}
		if err := writeEntry(zw, name, data, o.modTime); err != nil {
			return nil, err
		}
		if o.progress != nil {
			o.progress(name)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, &Error{Op: OpFinalize, Err: err}
	}
	return buf.Bytes(), nil
}

func readEntry(fsys fs.FS, name string, maxSize int64) (_ []byte, err error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, &Error{Op: OpOpen, Path: name, Err: err}
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = &Error{Op: OpRead, Path: name, Err: closeErr}
		}
	}()

	var r io.Reader = f
	if maxSize > 0 {
		r = io.LimitReader(f, maxSize+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &Error{Op: OpRead, Path: name, Err: err}
	}
	if maxSize > 0 && int64(len(data)) > maxSize {
		return nil, &Error{Op: OpRead, Path: name, Err: fmt.Errorf("%w of %d bytes", ErrTooLarge, maxSize)}
	}
	return data, nil
}

func writeEntry(zw *zip.Writer, name string, data []byte, modTime time.Time) error {
	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: modTime,
	})
	if err != nil {
		return &Error{Op: OpWrite, Path: name, Err: err}
	}
	if _, err := w.Write(data); err != nil {
		return &Error{Op: OpWrite, Path: name, Err: err}
	}
	return nil
}

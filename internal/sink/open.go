package sink

import (
	"context"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/sells-group/prg-convert/internal/model"
	"github.com/sells-group/prg-convert/internal/prgerr"
)

type formatSink interface {
	Sink
	BytesWritten() int64
}

// File is a sink bound to a file it owns.
type File struct {
	path   string
	f      *os.File
	inner  formatSink
	closed bool
}

// Open creates path and returns a sink writing format into it. The parent
// directory must exist. Close finalizes the format, then closes the file.
func Open(path string, format Format, opts Options) (*File, error) {
	if format == FormatGeoParquet {
		if err := opts.Validate(); err != nil {
			return nil, err
		}
	} else if format != FormatCSV {
		return nil, prgerr.Unsupported("sink: unsupported format %q", format)
	}

	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return nil, prgerr.Output(err, "sink: create output file")
	}

	var inner formatSink
	if format == FormatCSV {
		inner = NewCSV(f)
	} else if inner, err = NewGeoParquet(f, opts); err != nil {
		_ = f.Close()
		return nil, err
	}

	zap.L().Debug("sink opened",
		zap.String("component", "sink"),
		zap.String("path", path),
		zap.String("format", string(format)),
	)
	return &File{path: path, f: f, inner: inner}, nil
}

// WriteBatch forwards to the format writer.
func (s *File) WriteBatch(ctx context.Context, rows []model.Address) error {
	return s.inner.WriteBatch(ctx, rows)
}

// Close flushes the format writer and closes the file. The first error wins.
func (s *File) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	err := s.inner.Close()
	if cerr := s.f.Close(); cerr != nil && err == nil {
		err = prgerr.Output(cerr, "sink: close output file")
	}
	return err
}

// BytesWritten returns the size of the output so far.
func (s *File) BytesWritten() int64 {
	return s.inner.BytesWritten()
}

// Path returns the output path.
func (s *File) Path() string {
	return s.path
}

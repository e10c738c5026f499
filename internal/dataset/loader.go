package dataset

import (
	"context"
	"io"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/oceanstats/mpas-diag/internal/streams"
	"github.com/oceanstats/mpas-diag/internal/timekeeping"
)

// Options control the per-file preprocessing applied to every chunk.
type Options struct {
	// Variables are the canonical names to keep. Empty keeps every numeric
	// variable that shares the time dimension.
	Variables []string
	// VariableMap renames file variables to canonical names, including the
	// time coordinate under streams.TimeVariable.
	VariableMap streams.NameMap
	// YearOffset is added to every decoded year.
	YearOffset int
	// TimeReference anchors numeric time variables counted in days.
	TimeReference timekeeping.Date
}

// Chunk is one file's records after preprocessing.
type Chunk struct {
	Source string
	Times  []time.Time
	Fields map[string]*Field
}

// ChunkReader reads and preprocesses one file.
type ChunkReader interface {
	ReadChunk(ctx context.Context, path string, opts Options) (*Chunk, error)
}

// ChunkSource yields chunks in merge order and returns io.EOF when done.
type ChunkSource interface {
	Next(ctx context.Context) (*Chunk, error)
}

// Loader opens file lists as single datasets.
type Loader struct {
	reader      ChunkReader
	concurrency int
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithConcurrency bounds how many files Open reads at once.
func WithConcurrency(n int) LoaderOption {
	return func(l *Loader) {
		if n > 0 {
			l.concurrency = n
		}
	}
}

// NewLoader creates a Loader reading files through r.
func NewLoader(r ChunkReader, opts ...LoaderOption) *Loader {
	l := &Loader{reader: r, concurrency: 4}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Open reads the files and merges them in the order given. With a
// concurrency of 1 files are read lazily, one per merge step, through
// Iterate; otherwise they are read eagerly, several at a time. Both give
// the same dataset.
func (l *Loader) Open(ctx context.Context, files []string, opts Options) (*Dataset, error) {
	if len(files) == 0 {
		return nil, eris.New("dataset: no files to open")
	}

	var src ChunkSource
	if l.concurrency == 1 {
		src = l.Iterate(files, opts)
	} else {
		chunks, err := l.readAll(ctx, files, opts)
		if err != nil {
			return nil, err
		}
		src = Chunks(chunks...)
	}

	ds, err := Merge(ctx, src)
	if err != nil {
		return nil, err
	}
	zap.L().Debug("opened dataset",
		zap.String("component", "dataset"),
		zap.Int("files", len(files)),
		zap.Int("records", ds.Len()),
		zap.Strings("variables", ds.Names()),
	)
	return ds, nil
}

func (l *Loader) readAll(ctx context.Context, files []string, opts Options) ([]*Chunk, error) {
	chunks := make([]*Chunk, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for i, path := range files {
		g.Go(func() error {
			c, err := l.reader.ReadChunk(gctx, path, opts)
			if err != nil {
				return eris.Wrapf(err, "dataset: read %s", path)
			}
			chunks[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return chunks, nil
}

// Iterate returns a source that reads one file per Next call, in order.
func (l *Loader) Iterate(files []string, opts Options) ChunkSource {
	return &fileSource{reader: l.reader, files: files, opts: opts}
}

type fileSource struct {
	reader ChunkReader
	files  []string
	opts   Options
	next   int
}

func (s *fileSource) Next(ctx context.Context) (*Chunk, error) {
	if s.next >= len(s.files) {
		return nil, io.EOF
	}
	path := s.files[s.next]
	s.next++
	c, err := s.reader.ReadChunk(ctx, path, s.opts)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: read %s", path)
	}
	return c, nil
}

type sliceSource struct {
	chunks []*Chunk
	next   int
}

func (s *sliceSource) Next(context.Context) (*Chunk, error) {
	if s.next >= len(s.chunks) {
		return nil, io.EOF
	}
	c := s.chunks[s.next]
	s.next++
	return c, nil
}

// Chunks wraps already-read chunks as a ChunkSource.
func Chunks(chunks ...*Chunk) ChunkSource {
	return &sliceSource{chunks: chunks}
}

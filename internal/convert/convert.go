// Package convert runs the record pipeline: decode, normalize, batch, write.
package convert

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prg-convert/internal/batch"
	"github.com/sells-group/prg-convert/internal/crs"
	"github.com/sells-group/prg-convert/internal/fetcher"
	"github.com/sells-group/prg-convert/internal/model"
	"github.com/sells-group/prg-convert/internal/normalize"
	"github.com/sells-group/prg-convert/internal/prg2012"
	"github.com/sells-group/prg-convert/internal/prg2021"
	"github.com/sells-group/prg-convert/internal/prgerr"
	"github.com/sells-group/prg-convert/internal/sink"
	"github.com/sells-group/prg-convert/internal/teryt"
)

// ctxCheckEvery is how many records pass between context checks.
const ctxCheckEvery = 4096

// Options configures a conversion run.
type Options struct {
	Inputs     []fetcher.Source
	Schema     normalize.Schema
	Format     sink.Format // recorded in logs only; the sink decides the encoding
	CRS        crs.EPSG    // target CRS of the geometry column (default EPSG:2180)
	BatchSize  int
	Dictionary *teryt.Dictionary // required for schema 2021

	// ComponentPass reads each source twice: first to index locality, street
	// and administrative unit components, then to decode addresses.
	ComponentPass bool

	// RunID tags log lines and output metadata. Generated when empty.
	RunID string
}

// Stats summarizes a run.
type Stats struct {
	RunID    string
	Files    int
	Rows     int64
	Batches  int
	Bytes    int64 // uncompressed input size
	Duration time.Duration
}

// Validate checks options that do not depend on the inputs' content.
func (o Options) Validate() error {
	if len(o.Inputs) == 0 {
		return prgerr.Unsupported("convert: no input documents")
	}
	if o.BatchSize < 1 {
		return prgerr.Unsupported("convert: batch size must be at least 1, got %d", o.BatchSize)
	}
	if o.CRS != 0 && !o.CRS.Valid() {
		return prgerr.Unsupported("convert: unsupported CRS %s", o.CRS)
	}
	switch o.Schema {
	case normalize.Schema2012:
	case normalize.Schema2021:
		if o.Dictionary == nil {
			return prgerr.Unsupported("convert: schema 2021 requires a TERYT dictionary (--teryt-path or --download-teryt)")
		}
	default:
		return prgerr.Unsupported("convert: unsupported schema version %q, expected one of: 2012, 2021", o.Schema)
	}
	return nil
}

// streamFunc decodes every address of one open document into the accumulator.
type streamFunc func(ctx context.Context, src fetcher.Source, r io.Reader) (int64, error)

type runner struct {
	opts Options
	norm *normalize.Normalizer
	acc  *batch.Accumulator
	log  *zap.Logger
}

// Run converts every input into s, in order, and closes s. A failure stops the
// run; s is still closed and the first error is returned.
func Run(ctx context.Context, opts Options, s sink.Sink) (stats Stats, err error) {
	start := time.Now()
	defer func() {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = cerr
		}
		stats.Duration = time.Since(start)
	}()

	if err := opts.Validate(); err != nil {
		return stats, err
	}
	if opts.CRS == 0 {
		opts.CRS = crs.Native
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	stats.RunID = opts.RunID

	log := zap.L().With(
		zap.String("component", "convert"),
		zap.String("run_id", opts.RunID),
	)
	log.Info("conversion started",
		zap.Int("inputs", len(opts.Inputs)),
		zap.String("schema", string(opts.Schema)),
		zap.String("format", string(opts.Format)),
		zap.Stringer("crs", opts.CRS),
		zap.Int("batch_size", opts.BatchSize),
		zap.Bool("component_pass", opts.ComponentPass),
	)

	acc, err := batch.NewAccumulator(opts.BatchSize, s)
	if err != nil {
		return stats, err
	}
	r := &runner{
		opts: opts,
		norm: normalize.New(opts.Dictionary, opts.CRS),
		acc:  acc,
		log:  log,
	}

	stream := r.stream2012
	if opts.Schema == normalize.Schema2021 {
		stream = r.stream2021
	}

	for _, src := range opts.Inputs {
		if err := r.convertSource(ctx, src, stream); err != nil {
			return r.fill(stats), err
		}
		stats.Files++
		stats.Bytes += src.Size
	}
	if err := acc.Flush(ctx); err != nil {
		return r.fill(stats), err
	}

	stats = r.fill(stats)
	log.Info("conversion finished",
		zap.Int("files", stats.Files),
		zap.Int64("rows", stats.Rows),
		zap.Int("batches", stats.Batches),
		zap.Int64("input_bytes", stats.Bytes),
		zap.Duration("elapsed", time.Since(start)),
	)
	return stats, nil
}

func (r *runner) fill(stats Stats) Stats {
	stats.Batches, stats.Rows = r.acc.Emitted()
	return stats
}

func (r *runner) convertSource(ctx context.Context, src fetcher.Source, stream streamFunc) error {
	r.log.Info("reading input", zap.Stringer("source", src), zap.Int64("bytes", src.Size))
	rc, err := src.Open()
	if err != nil {
		return eris.Wrapf(err, "convert: open %s", src)
	}
	defer func() { _ = rc.Close() }()

	n, err := stream(ctx, src, rc)
	if err != nil {
		return prgerr.Wrapf(err, "convert: %s", src)
	}
	r.log.Info("input done", zap.Stringer("source", src), zap.Int64("records", n))
	return nil
}

func (r *runner) stream2012(ctx context.Context, src fetcher.Source, rd io.Reader) (int64, error) {
	var comps *prg2012.Components
	if r.opts.ComponentPass {
		var err error
		if comps, err = scan(src, prg2012.ScanComponents); err != nil {
			return 0, err
		}
		r.log.Debug("components indexed", zap.Stringer("source", src), zap.Int("components", comps.Len()))
	}

	dec := prg2012.NewDecoder(rd, comps)
	return r.drain(ctx, func() (model.Address, error) {
		raw, err := dec.Next()
		if err != nil {
			return model.Address{}, err
		}
		return r.norm.Normalize2012(raw)
	})
}

func (r *runner) stream2021(ctx context.Context, src fetcher.Source, rd io.Reader) (int64, error) {
	var comps *prg2021.Components
	if r.opts.ComponentPass {
		var err error
		if comps, err = scan(src, prg2021.ScanComponents); err != nil {
			return 0, err
		}
		r.log.Debug("components indexed", zap.Stringer("source", src), zap.Int("components", comps.Len()))
	}

	dec := prg2021.NewDecoder(rd, comps)
	return r.drain(ctx, func() (model.Address, error) {
		raw, err := dec.Next()
		if err != nil {
			return model.Address{}, err
		}
		return r.norm.Normalize2021(raw)
	})
}

// drain pulls records until io.EOF and feeds them to the accumulator.
func (r *runner) drain(ctx context.Context, next func() (model.Address, error)) (int64, error) {
	var n int64
	for {
		if n%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return n, err
			}
		}
		rec, err := next()
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		if err := r.acc.Add(ctx, rec); err != nil {
			return n, err
		}
		n++
	}
}

// scan runs a component pass over a fresh reader of src.
func scan[C any](src fetcher.Source, fn func(io.Reader) (C, error)) (C, error) {
	var zero C
	rc, err := src.Open()
	if err != nil {
		return zero, eris.Wrapf(err, "convert: reopen %s for component pass", src)
	}
	defer func() { _ = rc.Close() }()
	return fn(rc)
}

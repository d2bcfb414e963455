// Package batch groups canonical records into fixed-size batches for a sink.
package batch

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/prg-convert/internal/model"
	"github.com/sells-group/prg-convert/internal/prgerr"
)

// Writer receives full or final partial batches. Implementations may retain
// the slice; the accumulator never touches it again.
type Writer interface {
	WriteBatch(ctx context.Context, rows []model.Address) error
}

// Accumulator buffers records and hands them to a Writer in batches of at
// most size records. Batches are never empty.
type Accumulator struct {
	size    int
	w       Writer
	buf     []model.Address
	batches int
	rows    int64
	log     *zap.Logger
}

// NewAccumulator returns an Accumulator emitting batches of size records.
func NewAccumulator(size int, w Writer) (*Accumulator, error) {
	if size < 1 {
		return nil, prgerr.Unsupported("batch: size must be at least 1, got %d", size)
	}
	return &Accumulator{
		size: size,
		w:    w,
		buf:  make([]model.Address, 0, initialCap(size)),
		log:  zap.L().With(zap.String("component", "batch")),
	}, nil
}

// Add buffers a record and emits the batch once it reaches the configured size.
func (a *Accumulator) Add(ctx context.Context, rec model.Address) error {
	a.buf = append(a.buf, rec)
	if len(a.buf) >= a.size {
		return a.emit(ctx)
	}
	return nil
}

// Flush emits whatever is buffered. It is a no-op on an empty buffer.
func (a *Accumulator) Flush(ctx context.Context) error {
	if len(a.buf) == 0 {
		return nil
	}
	return a.emit(ctx)
}

// Emitted returns the number of batches and rows handed to the writer.
func (a *Accumulator) Emitted() (batches int, rows int64) {
	return a.batches, a.rows
}

// Pending returns the number of buffered records not yet emitted.
func (a *Accumulator) Pending() int {
	return len(a.buf)
}

func (a *Accumulator) emit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	out := a.buf
	a.buf = make([]model.Address, 0, initialCap(a.size))
	if err := a.w.WriteBatch(ctx, out); err != nil {
		return prgerr.Wrapf(err, "batch: write batch %d (%d rows)", a.batches+1, len(out))
	}
	a.batches++
	a.rows += int64(len(out))
	a.log.Debug("batch flushed",
		zap.Int("batch", a.batches),
		zap.Int("batch_rows", len(out)),
		zap.Int64("total_rows", a.rows),
	)
	return nil
}

// initialCap bounds the up-front allocation for very large batch sizes.
func initialCap(size int) int {
	const maxInitial = 1 << 16
	if size > maxInitial {
		return maxInitial
	}
	return size
}

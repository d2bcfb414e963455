// Package sink writes batches of canonical address records as CSV or GeoParquet.
package sink

import (
	"context"
	"io"

	"github.com/twpayne/go-geom"

	"github.com/sells-group/prg-convert/internal/model"
)

// Sink consumes record batches in order. Close finalizes the output and must
// be called exactly once, also after a failed WriteBatch.
type Sink interface {
	WriteBatch(ctx context.Context, rows []model.Address) error
	Close() error
}

// countingWriter tracks bytes written and hides any Close method of the
// underlying writer from format encoders.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

func point(p *model.Point) *geom.Point {
	return geom.NewPointFlat(geom.XY, []float64{p.X, p.Y})
}

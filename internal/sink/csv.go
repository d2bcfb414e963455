package sink

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/twpayne/go-geom/encoding/wkt"

	"github.com/sells-group/prg-convert/internal/model"
	"github.com/sells-group/prg-convert/internal/prgerr"
)

// CSV writes records as comma separated values with a header row. Nulls are
// empty fields and the geometry column holds WKT.
type CSV struct {
	out    *countingWriter
	w      *csv.Writer
	header bool
	closed bool
}

// NewCSV returns a CSV sink writing to w. w is not closed by the sink.
func NewCSV(w io.Writer) *CSV {
	out := &countingWriter{w: w}
	return &CSV{out: out, w: csv.NewWriter(out)}
}

// WriteBatch writes one row per record.
func (c *CSV) WriteBatch(ctx context.Context, rows []model.Address) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.writeHeader(); err != nil {
		return err
	}
	record := make([]string, len(columns))
	for i := range rows {
		if err := csvRecord(record, &rows[i]); err != nil {
			return err
		}
		if err := c.w.Write(record); err != nil {
			return prgerr.Output(err, "sink: write csv row")
		}
	}
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		return prgerr.Output(err, "sink: flush csv")
	}
	return nil
}

// Close writes the header if no batch was written and flushes buffered rows.
func (c *CSV) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if err := c.writeHeader(); err != nil {
		return err
	}
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		return prgerr.Output(err, "sink: flush csv")
	}
	return nil
}

// BytesWritten returns the number of bytes handed to the underlying writer.
func (c *CSV) BytesWritten() int64 {
	return c.out.n
}

func (c *CSV) writeHeader() error {
	if c.header {
		return nil
	}
	c.header = true
	if err := c.w.Write(Columns()); err != nil {
		return prgerr.Output(err, "sink: write csv header")
	}
	return nil
}

func csvRecord(dst []string, a *model.Address) error {
	dst[0] = model.Deref(a.Namespace)
	dst[1] = a.LocalID
	dst[2] = formatTime(a.VersionID)
	dst[3] = formatTime(a.LifecycleStart)
	dst[4] = formatTime(a.ValidFrom)
	dst[5] = formatTime(a.ValidTo)
	dst[6] = model.Deref(a.VoivodeshipTeryt)
	dst[7] = a.Voivodeship
	dst[8] = model.Deref(a.CountyTeryt)
	dst[9] = model.Deref(a.County)
	dst[10] = model.Deref(a.MunicipalityTeryt)
	dst[11] = model.Deref(a.Municipality)
	dst[12] = model.Deref(a.CityTeryt)
	dst[13] = a.City
	dst[14] = model.Deref(a.CityPart)
	dst[15] = model.Deref(a.StreetTeryt)
	dst[16] = model.Deref(a.Street)
	dst[17] = a.HouseNumber
	dst[18] = model.Deref(a.PostalCode)
	dst[19] = model.Deref(a.Status)
	dst[20] = formatFloat(a.Lon)
	dst[21] = formatFloat(a.Lat)
	dst[22] = ""
	if a.Geometry != nil {
		s, err := wkt.Marshal(point(a.Geometry))
		if err != nil {
			return prgerr.Output(err, "sink: encode WKT")
		}
		dst[22] = s
	}
	return nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(TimestampLayout)
}

func formatFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

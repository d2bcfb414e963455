package sink

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/wkb"

	"github.com/sells-group/prg-convert/internal/crs"
	"github.com/sells-group/prg-convert/internal/model"
	"github.com/sells-group/prg-convert/internal/prgerr"
)

const (
	geoMetadataKey   = "geo"
	runIDMetadataKey = "prg_convert:run_id"
	geoParquetVer    = "1.1.0"
)

type geoMetadata struct {
	Version       string               `json:"version"`
	PrimaryColumn string               `json:"primary_column"`
	Columns       map[string]geoColumn `json:"columns"`
}

type geoColumn struct {
	Encoding      string          `json:"encoding"`
	GeometryTypes []string        `json:"geometry_types"`
	CRS           json.RawMessage `json:"crs,omitempty"`
	BBox          []float64       `json:"bbox,omitempty"`
}

// GeoParquet writes records as a GeoParquet 1.1 file. Each batch becomes one
// or more row groups; the geometry column holds WKB points.
type GeoParquet struct {
	out    *countingWriter
	opts   Options
	fw     *pqarrow.FileWriter
	b      *array.RecordBuilder
	bbox   [4]float64
	points int64
	closed bool
}

// NewGeoParquet returns a GeoParquet sink writing to w. w is not closed by the sink.
func NewGeoParquet(w io.Writer, opts Options) (*GeoParquet, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	codec, level, err := opts.codec()
	if err != nil {
		return nil, err
	}

	props := parquet.NewWriterProperties(
		parquet.WithCompression(codec),
		parquet.WithCompressionLevel(level),
		parquet.WithMaxRowGroupLength(opts.rowGroupLength()),
		parquet.WithVersion(versions[opts.version()]),
		parquet.WithCreatedBy("prg-convert"),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema())

	schema := ArrowSchema()
	out := &countingWriter{w: w}
	fw, err := pqarrow.NewFileWriter(schema, out, props, arrowProps)
	if err != nil {
		return nil, prgerr.Output(err, "sink: create parquet writer")
	}
	return &GeoParquet{
		out:  out,
		opts: opts,
		fw:   fw,
		b:    array.NewRecordBuilder(memory.DefaultAllocator, schema),
		bbox: [4]float64{math.Inf(1), math.Inf(1), math.Inf(-1), math.Inf(-1)},
	}, nil
}

// WriteBatch appends the batch as row groups.
func (g *GeoParquet) WriteBatch(ctx context.Context, rows []model.Address) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	for i := range rows {
		if err := g.append(&rows[i]); err != nil {
			return err
		}
	}
	rec := g.b.NewRecord()
	defer rec.Release()
	if err := g.fw.Write(rec); err != nil {
		return prgerr.Output(err, "sink: write parquet row group")
	}
	return nil
}

// Close appends the geo metadata and writes the footer.
func (g *GeoParquet) Close() error {
	if g.closed {
		return nil
	}
	g.closed = true
	defer g.b.Release()

	meta, err := g.geoMetadata()
	if err != nil {
		return prgerr.Output(err, "sink: encode geo metadata")
	}
	if err := g.fw.AppendKeyValueMetadata(geoMetadataKey, string(meta)); err != nil {
		return prgerr.Output(err, "sink: append geo metadata")
	}
	if g.opts.RunID != "" {
		if err := g.fw.AppendKeyValueMetadata(runIDMetadataKey, g.opts.RunID); err != nil {
			return prgerr.Output(err, "sink: append run id")
		}
	}
	if err := g.fw.Close(); err != nil {
		return prgerr.Output(err, "sink: close parquet writer")
	}
	return nil
}

// BytesWritten returns the number of bytes handed to the underlying writer.
func (g *GeoParquet) BytesWritten() int64 {
	return g.out.n
}

func (g *GeoParquet) geoMetadata() ([]byte, error) {
	col := geoColumn{
		Encoding:      "WKB",
		GeometryTypes: []string{"Point"},
		CRS:           crs.PROJJSON(g.opts.targetCRS()),
	}
	if g.points > 0 {
		col.BBox = g.bbox[:]
	}
	b, err := json.Marshal(geoMetadata{
		Version:       geoParquetVer,
		PrimaryColumn: GeometryColumn,
		Columns:       map[string]geoColumn{GeometryColumn: col},
	})
	if err != nil {
		return nil, eris.Wrap(err, "sink: marshal geo metadata")
	}
	return b, nil
}

func (g *GeoParquet) append(a *model.Address) error {
	appendString(g.b.Field(0), a.Namespace)
	g.b.Field(1).(*array.StringBuilder).Append(a.LocalID)
	appendTime(g.b.Field(2), a.VersionID)
	appendTime(g.b.Field(3), a.LifecycleStart)
	appendTime(g.b.Field(4), a.ValidFrom)
	appendTime(g.b.Field(5), a.ValidTo)
	appendString(g.b.Field(6), a.VoivodeshipTeryt)
	g.b.Field(7).(*array.StringBuilder).Append(a.Voivodeship)
	appendString(g.b.Field(8), a.CountyTeryt)
	appendString(g.b.Field(9), a.County)
	appendString(g.b.Field(10), a.MunicipalityTeryt)
	appendString(g.b.Field(11), a.Municipality)
	appendString(g.b.Field(12), a.CityTeryt)
	g.b.Field(13).(*array.StringBuilder).Append(a.City)
	appendString(g.b.Field(14), a.CityPart)
	appendString(g.b.Field(15), a.StreetTeryt)
	appendString(g.b.Field(16), a.Street)
	g.b.Field(17).(*array.StringBuilder).Append(a.HouseNumber)
	appendString(g.b.Field(18), a.PostalCode)
	appendString(g.b.Field(19), a.Status)
	appendFloat(g.b.Field(20), a.Lon)
	appendFloat(g.b.Field(21), a.Lat)

	geomB := g.b.Field(22).(*array.BinaryBuilder)
	if a.Geometry == nil {
		geomB.AppendNull()
		return nil
	}
	data, err := wkb.Marshal(point(a.Geometry), wkb.NDR)
	if err != nil {
		return prgerr.Output(err, "sink: encode WKB")
	}
	geomB.Append(data)
	g.extend(a.Geometry)
	return nil
}

func (g *GeoParquet) extend(p *model.Point) {
	g.points++
	g.bbox[0] = math.Min(g.bbox[0], p.X)
	g.bbox[1] = math.Min(g.bbox[1], p.Y)
	g.bbox[2] = math.Max(g.bbox[2], p.X)
	g.bbox[3] = math.Max(g.bbox[3], p.Y)
}

func appendString(b array.Builder, s *string) {
	sb := b.(*array.StringBuilder)
	if s == nil {
		sb.AppendNull()
		return
	}
	sb.Append(*s)
}

func appendFloat(b array.Builder, f *float64) {
	fb := b.(*array.Float64Builder)
	if f == nil {
		fb.AppendNull()
		return
	}
	fb.Append(*f)
}

func appendTime(b array.Builder, t *time.Time) {
	tb := b.(*array.TimestampBuilder)
	if t == nil {
		tb.AppendNull()
		return
	}
	tb.Append(arrow.Timestamp(t.UnixMilli()))
}

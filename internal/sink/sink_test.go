package sink

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prg-convert/internal/crs"
	"github.com/sells-group/prg-convert/internal/model"
	"github.com/sells-group/prg-convert/internal/prgerr"
)

func ptr[T any](v T) *T { return &v }

func sample(id, status string) model.Address {
	v := time.Date(2021, 3, 4, 5, 6, 7, 891_000_000, time.UTC)
	a := model.Address{
		Namespace:   ptr("PL.PZGIK.200"),
		LocalID:     id,
		VersionID:   &v,
		Voivodeship: "małopolskie",
		County:      ptr("Kraków"),
		City:        "Kraków",
		Street:      ptr("ulica Floriańska, \"Brama\""),
		HouseNumber: "12A",
		Status:      model.StringOrNil(status),
		Lon:         ptr(19.9398),
		Lat:         ptr(50.0647),
		Geometry:    &model.Point{X: 566000.5, Y: 244000.25},
	}
	return a
}

func readCSV(t *testing.T, data string) [][]string {
	t.Helper()
	rows, err := csv.NewReader(strings.NewReader(data)).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestColumns_MatchArrowSchema(t *testing.T) {
	names := Columns()
	require.Len(t, names, 23)
	schema := ArrowSchema()
	for i, n := range names {
		assert.Equal(t, n, schema.Field(i).Name)
	}
	assert.Equal(t, "lokalny_id", names[1])
	assert.Equal(t, GeometryColumn, names[22])
	assert.False(t, schema.Field(1).Nullable)
	assert.True(t, schema.Field(19).Nullable)
}

func TestCSV_StatusValues(t *testing.T) {
	var buf bytes.Buffer
	s := NewCSV(&buf)
	ctx := context.Background()

	require.NoError(t, s.WriteBatch(ctx, []model.Address{sample("a", "istniejacy"), sample("b", "")}))
	require.NoError(t, s.WriteBatch(ctx, []model.Address{sample("c", "")}))
	require.NoError(t, s.Close())

	rows := readCSV(t, buf.String())
	require.Len(t, rows, 4)
	assert.Equal(t, Columns(), rows[0], "header written once")
	assert.Equal(t, []string{"istniejacy", "", ""}, []string{rows[1][19], rows[2][19], rows[3][19]})
	assert.Equal(t, int64(buf.Len()), s.BytesWritten())
}

func TestCSV_ValueFormatting(t *testing.T) {
	var buf bytes.Buffer
	s := NewCSV(&buf)
	require.NoError(t, s.WriteBatch(context.Background(), []model.Address{sample("a", "istniejacy")}))
	require.NoError(t, s.Close())

	row := readCSV(t, buf.String())[1]
	assert.Equal(t, "PL.PZGIK.200", row[0])
	assert.Equal(t, "2021-03-04T05:06:07.891Z", row[2])
	assert.Empty(t, row[3])
	assert.Equal(t, "ulica Floriańska, \"Brama\"", row[16])
	assert.Equal(t, "19.9398", row[20])
	assert.Equal(t, "50.0647", row[21])
	assert.Equal(t, "POINT (566000.5 244000.25)", row[22])
}

func TestCSV_NullGeometry(t *testing.T) {
	var buf bytes.Buffer
	s := NewCSV(&buf)
	a := sample("a", "")
	a.Geometry, a.Lon, a.Lat = nil, nil, nil
	require.NoError(t, s.WriteBatch(context.Background(), []model.Address{a}))
	require.NoError(t, s.Close())

	row := readCSV(t, buf.String())[1]
	assert.Equal(t, []string{"", "", ""}, row[20:23])
}

func TestCSV_EmptyOutputHasHeader(t *testing.T) {
	var buf bytes.Buffer
	s := NewCSV(&buf)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	rows := readCSV(t, buf.String())
	require.Len(t, rows, 1)
	assert.Equal(t, Columns(), rows[0])
}

func openParquet(t *testing.T, data []byte) *file.Reader {
	t.Helper()
	rdr, err := file.NewParquetReader(bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdr.Close() })
	return rdr
}

func TestGeoParquet_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	s, err := NewGeoParquet(&buf, Options{BatchSize: 3, RowGroupSize: 2, RunID: "run-1"})
	require.NoError(t, err)

	ctx := context.Background()
	far := sample("c", "")
	far.Geometry = &model.Point{X: 700000, Y: 100000}
	noGeom := sample("d", "")
	noGeom.Geometry, noGeom.Lon, noGeom.Lat = nil, nil, nil
	require.NoError(t, s.WriteBatch(ctx, []model.Address{sample("a", "istniejacy"), sample("b", ""), far}))
	require.NoError(t, s.WriteBatch(ctx, []model.Address{noGeom}))
	require.NoError(t, s.Close())
	assert.Equal(t, int64(buf.Len()), s.BytesWritten())

	rdr := openParquet(t, buf.Bytes())
	assert.Equal(t, int64(4), rdr.NumRows())
	assert.Equal(t, 3, rdr.NumRowGroups(), "row groups are capped at 2 rows")

	cc, err := rdr.MetaData().RowGroup(0).ColumnChunk(0)
	require.NoError(t, err)
	assert.Equal(t, compress.Codecs.Zstd, cc.Compression())

	kv := rdr.MetaData().KeyValueMetadata()
	runID := kv.FindValue(runIDMetadataKey)
	require.NotNil(t, runID)
	assert.Equal(t, "run-1", *runID)

	raw := kv.FindValue(geoMetadataKey)
	require.NotNil(t, raw)
	var meta geoMetadata
	require.NoError(t, json.Unmarshal([]byte(*raw), &meta))
	assert.Equal(t, "1.1.0", meta.Version)
	assert.Equal(t, GeometryColumn, meta.PrimaryColumn)
	col := meta.Columns[GeometryColumn]
	assert.Equal(t, "WKB", col.Encoding)
	assert.Equal(t, []string{"Point"}, col.GeometryTypes)
	assert.Equal(t, []float64{566000.5, 100000, 700000, 244000.25}, col.BBox)
	assert.Contains(t, string(col.CRS), `"code":2180`)

	fr, err := pqarrow.NewFileReader(rdr, pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	require.NoError(t, err)
	tbl, err := fr.ReadTable(ctx)
	require.NoError(t, err)
	defer tbl.Release()

	require.Equal(t, int64(23), tbl.NumCols())
	ids := tbl.Column(1).Data().Chunk(0).(*array.String)
	assert.Equal(t, "a", ids.Value(0))

	status := tbl.Column(19).Data().Chunk(0).(*array.String)
	assert.Equal(t, "istniejacy", status.Value(0))
	assert.True(t, status.IsNull(1))

	ts := tbl.Column(2).Data().Chunk(0).(*array.Timestamp)
	assert.Equal(t, arrow.Timestamp(time.Date(2021, 3, 4, 5, 6, 7, 891_000_000, time.UTC).UnixMilli()), ts.Value(0))

	last := tbl.Column(22).Data().Chunks()
	geomCol := last[len(last)-1].(*array.Binary)
	assert.True(t, geomCol.IsNull(geomCol.Len()-1))
}

func TestGeoParquet_WGS84Metadata(t *testing.T) {
	var buf bytes.Buffer
	s, err := NewGeoParquet(&buf, Options{BatchSize: 10, CRS: crs.EPSG4326, Compression: "snappy", Version: "v1"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	rdr := openParquet(t, buf.Bytes())
	assert.Zero(t, rdr.NumRows())
	raw := rdr.MetaData().KeyValueMetadata().FindValue(geoMetadataKey)
	require.NotNil(t, raw)
	var meta geoMetadata
	require.NoError(t, json.Unmarshal([]byte(*raw), &meta))
	col := meta.Columns[GeometryColumn]
	assert.Empty(t, col.BBox)
	assert.Contains(t, string(col.CRS), `"code":4326`)
	assert.Nil(t, rdr.MetaData().KeyValueMetadata().FindValue(runIDMetadataKey))
}

func TestOptions_Validate(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		ok   bool
	}{
		{"defaults", Options{BatchSize: 10}, true},
		{"brotli default level", Options{BatchSize: 10, Compression: "brotli"}, true},
		{"zstd max level", Options{BatchSize: 10, Compression: "ZSTD", CompressionLevel: 22}, true},
		{"snappy ignores level", Options{BatchSize: 10, Compression: "snappy", CompressionLevel: 99}, true},
		{"row group equals batch", Options{BatchSize: 10, RowGroupSize: 10}, true},
		{"zero batch", Options{}, false},
		{"zstd level too high", Options{BatchSize: 10, CompressionLevel: 23}, false},
		{"brotli level too high", Options{BatchSize: 10, Compression: "brotli", CompressionLevel: 12}, false},
		{"unknown codec", Options{BatchSize: 10, Compression: "lzo"}, false},
		{"unknown version", Options{BatchSize: 10, Version: "v3"}, false},
		{"row group above batch", Options{BatchSize: 10, RowGroupSize: 11}, false},
		{"negative row group", Options{BatchSize: 10, RowGroupSize: -1}, false},
		{"unknown crs", Options{BatchSize: 10, CRS: 3857}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, prgerr.Is(err, prgerr.UnsupportedConfiguration), err.Error())
		})
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(" GeoParquet ")
	require.NoError(t, err)
	assert.Equal(t, FormatGeoParquet, f)

	_, err = ParseFormat("flatgeobuf")
	assert.True(t, prgerr.Is(err, prgerr.UnsupportedConfiguration))
}

func TestOpen_CSVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	s, err := Open(path, FormatCSV, Options{})
	require.NoError(t, err)
	require.NoError(t, s.WriteBatch(context.Background(), []model.Address{sample("a", "")}))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, readCSV(t, string(data)), 2)
	assert.Equal(t, int64(len(data)), s.BytesWritten())
	assert.Equal(t, path, s.Path())
}

func TestOpen_GeoParquetFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.parquet")
	s, err := Open(path, FormatGeoParquet, Options{BatchSize: 5})
	require.NoError(t, err)
	require.NoError(t, s.WriteBatch(context.Background(), []model.Address{sample("a", "")}))
	require.NoError(t, s.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "PAR1", string(data[:4]))
	assert.Equal(t, "PAR1", string(data[len(data)-4:]))
	assert.Equal(t, int64(1), openParquet(t, data).NumRows())
}

func TestOpen_Errors(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing", "out.csv"), FormatCSV, Options{})
	require.Error(t, err)
	assert.True(t, prgerr.Is(err, prgerr.OutputIOFailure))

	_, err = Open(filepath.Join(t.TempDir(), "out.parquet"), FormatGeoParquet, Options{BatchSize: 0})
	assert.True(t, prgerr.Is(err, prgerr.UnsupportedConfiguration))

	_, err = Open(filepath.Join(t.TempDir(), "out.json"), Format("geojson"), Options{})
	assert.True(t, prgerr.Is(err, prgerr.UnsupportedConfiguration))
}

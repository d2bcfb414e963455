package sink

import (
	"strings"

	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"

	"github.com/sells-group/prg-convert/internal/crs"
	"github.com/sells-group/prg-convert/internal/prgerr"
)

// Format is an output file format.
type Format string

const (
	FormatCSV        Format = "csv"
	FormatGeoParquet Format = "geoparquet"
)

// ParseFormat accepts "csv" and "geoparquet" in any case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatGeoParquet:
		return f, nil
	}
	return "", prgerr.Unsupported("sink: unsupported format %q, expected one of: csv, geoparquet", s)
}

// Options configures an output sink. Parquet fields are ignored for CSV.
type Options struct {
	// CRS of the geometry column.
	CRS crs.EPSG
	// BatchSize caps the row group length.
	BatchSize int

	Compression string // zstd, snappy, gzip, brotli, lz4, none
	// CompressionLevel of 0 selects the codec default (zstd 11, brotli 6).
	CompressionLevel int
	// RowGroupSize of 0 means one row group per batch.
	RowGroupSize int
	Version      string // v1 or v2

	// RunID is recorded in the file metadata when set.
	RunID string
}

type codecSpec struct {
	codec        compress.Compression
	defaultLevel int
	minLevel     int
	maxLevel     int
	leveled      bool
}

var codecs = map[string]codecSpec{
	"zstd":   {codec: compress.Codecs.Zstd, defaultLevel: 11, minLevel: 1, maxLevel: 22, leveled: true},
	"brotli": {codec: compress.Codecs.Brotli, defaultLevel: 6, minLevel: 0, maxLevel: 11, leveled: true},
	"gzip":   {codec: compress.Codecs.Gzip, defaultLevel: 6, minLevel: 1, maxLevel: 9, leveled: true},
	"snappy": {codec: compress.Codecs.Snappy},
	"lz4":    {codec: compress.Codecs.Lz4Raw},
	"none":   {codec: compress.Codecs.Uncompressed},
}

var versions = map[string]parquet.Version{
	"v1": parquet.V1_0,
	"v2": parquet.V2_LATEST,
}

// Validate reports option values no writer can honour.
func (o Options) Validate() error {
	if o.CRS != 0 && !o.CRS.Valid() {
		return prgerr.Unsupported("sink: unsupported CRS %s", o.CRS)
	}
	if o.BatchSize < 1 {
		return prgerr.Unsupported("sink: batch size must be at least 1, got %d", o.BatchSize)
	}
	if _, _, err := o.codec(); err != nil {
		return err
	}
	if _, ok := versions[o.version()]; !ok {
		return prgerr.Unsupported("sink: unsupported parquet version %q, expected one of: v1, v2", o.Version)
	}
	if o.RowGroupSize < 0 || o.RowGroupSize > o.BatchSize {
		return prgerr.Unsupported("sink: row group size %d must be between 0 and the batch size %d", o.RowGroupSize, o.BatchSize)
	}
	return nil
}

func (o Options) compressionName() string {
	name := strings.ToLower(strings.TrimSpace(o.Compression))
	if name == "" {
		return "zstd"
	}
	return name
}

// codec resolves the compression codec and the level to apply.
func (o Options) codec() (compress.Compression, int, error) {
	name := o.compressionName()
	spec, ok := codecs[name]
	if !ok {
		return 0, 0, prgerr.Unsupported("sink: unsupported compression %q, expected one of: zstd, snappy, gzip, brotli, lz4, none", o.Compression)
	}
	if !spec.leveled {
		return spec.codec, compress.DefaultCompressionLevel, nil
	}
	level := o.CompressionLevel
	if level == 0 {
		level = spec.defaultLevel
	}
	if level < spec.minLevel || level > spec.maxLevel {
		return 0, 0, prgerr.Unsupported("sink: %s compression level %d out of range [%d, %d]", name, level, spec.minLevel, spec.maxLevel)
	}
	return spec.codec, level, nil
}

func (o Options) version() string {
	v := strings.ToLower(strings.TrimSpace(o.Version))
	if v == "" {
		return "v2"
	}
	return v
}

func (o Options) rowGroupLength() int64 {
	if o.RowGroupSize > 0 && o.RowGroupSize < o.BatchSize {
		return int64(o.RowGroupSize)
	}
	return int64(o.BatchSize)
}

func (o Options) targetCRS() crs.EPSG {
	if o.CRS == 0 {
		return crs.Native
	}
	return o.CRS
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/prg-convert/internal/config"
	"github.com/sells-group/prg-convert/internal/convert"
	"github.com/sells-group/prg-convert/internal/crs"
	"github.com/sells-group/prg-convert/internal/fetcher"
	"github.com/sells-group/prg-convert/internal/normalize"
	"github.com/sells-group/prg-convert/internal/prgerr"
	"github.com/sells-group/prg-convert/internal/sink"
	"github.com/sells-group/prg-convert/internal/teryt"
)

// entryExt maps a schema version to the extension of documents selected from ZIP archives.
var entryExt = map[normalize.Schema]string{
	normalize.Schema2012: "xml",
	normalize.Schema2021: "gml",
}

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert PRG address files to CSV or GeoParquet",
	Long: `Reads every input document in order and writes all address points into one output
file. Inputs may be .xml/.gml files or .zip archives; archive entries are selected by
extension (.xml for schema 2012, .gml for schema 2021). Glob patterns are expanded.

Schema 2021 stores administrative units as TERC codes only, so it needs the TERYT
dictionary: pass --teryt-path with the TERC file (.xml or .zip) or --download-teryt.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		log := zap.L().With(zap.String("command", "convert"))

		c := *cfg
		applyConvertFlags(cmd, &c)
		if err := c.Validate(); err != nil {
			return err
		}

		inputs, _ := cmd.Flags().GetStringSlice("input-paths")
		inputs = append(inputs, args...)
		outputPath, _ := cmd.Flags().GetString("output-path")
		terytPath, _ := cmd.Flags().GetString("teryt-path")
		downloadTeryt, _ := cmd.Flags().GetBool("download-teryt")

		schema := normalize.Schema(c.Convert.SchemaVersion)
		format, err := sink.ParseFormat(c.Convert.OutputFormat)
		if err != nil {
			return err
		}

		res, err := fetcher.ResolveInputs(inputs, entryExt[schema])
		if err != nil {
			return err
		}
		printParameters(cmd.OutOrStdout(), inputs, res, outputPath, &c)

		var dict *teryt.Dictionary
		if schema == normalize.Schema2021 {
			dict, err = loadDictionary(ctx, &c, terytPath, downloadTeryt)
			if err != nil {
				return err
			}
		} else if terytPath != "" || downloadTeryt {
			log.Warn("schema 2012 carries administrative names inline, ignoring TERYT dictionary")
		}

		runID := uuid.NewString()
		sinkOpts := c.SinkOptions()
		sinkOpts.RunID = runID

		out, err := sink.Open(outputPath, format, sinkOpts)
		if err != nil {
			return err
		}

		stats, err := convert.Run(ctx, convert.Options{
			Inputs:        res.Sources,
			Schema:        schema,
			Format:        format,
			CRS:           crs.EPSG(c.Convert.CRS),
			BatchSize:     c.Convert.BatchSize,
			Dictionary:    dict,
			ComponentPass: c.Convert.ComponentPass,
			RunID:         runID,
		}, out)
		if err != nil {
			return err
		}

		printSummary(cmd.OutOrStdout(), stats, out.BytesWritten())
		return nil
	},
}

// applyConvertFlags copies every flag the user set onto c. Unset flags keep
// the configured value.
func applyConvertFlags(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("output-format") {
		c.Convert.OutputFormat, _ = flags.GetString("output-format")
	}
	if flags.Changed("schema-version") {
		c.Convert.SchemaVersion, _ = flags.GetString("schema-version")
	}
	if flags.Changed("crs") {
		c.Convert.CRS, _ = flags.GetInt("crs")
	}
	if flags.Changed("batch-size") {
		c.Convert.BatchSize, _ = flags.GetInt("batch-size")
	}
	if flags.Changed("parquet-compression") {
		c.Parquet.Compression, _ = flags.GetString("parquet-compression")
	}
	if flags.Changed("compression-level") {
		c.Parquet.CompressionLevel, _ = flags.GetInt("compression-level")
	}
	if flags.Changed("parquet-row-group-size") {
		c.Parquet.RowGroupSize, _ = flags.GetInt("parquet-row-group-size")
	}
	if flags.Changed("parquet-version") {
		c.Parquet.Version, _ = flags.GetString("parquet-version")
	}
	if flags.Changed("no-component-pass") {
		skip, _ := flags.GetBool("no-component-pass")
		c.Convert.ComponentPass = !skip
	}
}

// loadDictionary opens the TERC file at path, or downloads it first when
// download is set.
func loadDictionary(ctx context.Context, c *config.Config, path string, download bool) (*teryt.Dictionary, error) {
	if path == "" && download {
		if err := os.MkdirAll(c.Teryt.TempDir, 0o755); err != nil {
			return nil, eris.Wrapf(err, "convert: create %s", c.Teryt.TempDir)
		}
		path = filepath.Join(c.Teryt.TempDir, "terc.zip")
		if _, err := downloadTERC(ctx, c, path); err != nil {
			return nil, err
		}
	}
	if path == "" {
		return nil, prgerr.Unsupported("convert: schema 2021 needs the TERYT dictionary, pass --teryt-path or --download-teryt")
	}
	return teryt.Open(ctx, path)
}

func printParameters(w io.Writer, patterns []string, res fetcher.Resolution, outputPath string, c *config.Config) {
	fmt.Fprintln(w, "Parameters:")
	fmt.Fprintln(w, "  Input paths/patterns:")
	for _, p := range patterns {
		fmt.Fprintf(w, "    - %s\n", p)
	}
	fmt.Fprintf(w, "  Input (%d documents, %s uncompressed):\n", len(res.Sources), megabytes(res.Bytes()))
	for _, s := range res.Sources {
		fmt.Fprintf(w, "    ✓ %s  %s\n", s, megabytes(s.Size))
	}
	for _, s := range res.Skipped {
		fmt.Fprintf(w, "    ✗ %s  %s\n", s, megabytes(s.Size))
	}
	fmt.Fprintf(w, "  Output file:        %s\n", outputPath)
	fmt.Fprintf(w, "  Output format:      %s\n", c.Convert.OutputFormat)
	fmt.Fprintf(w, "  Schema version:     %s\n", c.Convert.SchemaVersion)
	fmt.Fprintf(w, "  CRS:                EPSG:%d\n", c.Convert.CRS)
	fmt.Fprintf(w, "  Batch size:         %d\n", c.Convert.BatchSize)
	fmt.Fprintf(w, "  Component pass:     %t\n", c.Convert.ComponentPass)
	if c.Convert.OutputFormat == string(sink.FormatGeoParquet) {
		opts := c.SinkOptions()
		fmt.Fprintf(w, "  Parquet compression: %s", c.Parquet.Compression)
		if c.Parquet.CompressionLevel != 0 {
			fmt.Fprintf(w, " (level %d)", c.Parquet.CompressionLevel)
		}
		fmt.Fprintln(w)
		rowGroup := opts.RowGroupSize
		if rowGroup == 0 {
			rowGroup = opts.BatchSize
		}
		fmt.Fprintf(w, "  Parquet row group:  %d\n", rowGroup)
		fmt.Fprintf(w, "  Parquet version:    %s\n", c.Parquet.Version)
	}
	fmt.Fprintln(w, "----------------------------------------")
}

func printSummary(w io.Writer, stats convert.Stats, written int64) {
	fmt.Fprintln(w, "----------------------------------------")
	fmt.Fprintf(w, "Run %s\n", stats.RunID)
	fmt.Fprintf(w, "  Files:     %d\n", stats.Files)
	fmt.Fprintf(w, "  Addresses: %d in %d batches\n", stats.Rows, stats.Batches)
	fmt.Fprintf(w, "  Read:      %s\n", megabytes(stats.Bytes))
	fmt.Fprintf(w, "  Written:   %s\n", megabytes(written))
	fmt.Fprintf(w, "  Duration:  %s\n", stats.Duration.Round(time.Millisecond))
}

func megabytes(n int64) string {
	return fmt.Sprintf("%.2f MB", float64(n)/1024/1024)
}

// addConvertFlags registers the convert flags on cmd.
func addConvertFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringSlice("input-paths", nil, "input .xml, .gml or .zip files; glob patterns allowed, repeat or comma-separate")
	f.String("output-path", "", "output file path")
	f.String("output-format", "", "output format: csv, geoparquet (default from config)")
	f.String("schema-version", "", "source schema: 2012, 2021 (default from config)")
	f.String("teryt-path", "", "TERC dictionary file (.xml or .zip), required for schema 2021")
	f.Bool("download-teryt", false, "download the TERC dictionary before converting")
	f.Int("crs", 0, "geometry CRS: 2180, 4326 (default from config)")
	f.Int("batch-size", 0, "rows kept in memory before each write (default from config)")
	f.String("parquet-compression", "", "parquet codec: zstd, snappy, gzip, brotli, lz4, none")
	f.Int("compression-level", 0, "codec level; 0 uses the codec default")
	f.Int("parquet-row-group-size", 0, "max rows per row group; 0 uses the batch size")
	f.String("parquet-version", "", "parquet format version: v1, v2")
	f.Bool("no-component-pass", false, "skip the component pass that resolves TERYT ids and linked names")

	_ = cmd.MarkFlagRequired("output-path")
	cmd.MarkFlagsMutuallyExclusive("teryt-path", "download-teryt")
}

func init() {
	addConvertFlags(convertCmd)
	rootCmd.AddCommand(convertCmd)
}

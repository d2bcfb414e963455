package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/prg-convert/internal/crs"
	"github.com/sells-group/prg-convert/internal/normalize"
	"github.com/sells-group/prg-convert/internal/prgerr"
	"github.com/sells-group/prg-convert/internal/sink"
)

// DefaultTerytURL is the public TERC download of the GUS registry.
const DefaultTerytURL = "https://eteryt.stat.gov.pl/eTeryt/rejestr_teryt/udostepnianie_danych/baza_teryt/uzytkownicy_indywidualni/pobieranie/pliki_pelne.aspx?contrast=default&rejestr=TERC&typ=urzedowy"

// Config holds the full application configuration.
type Config struct {
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
	Convert ConvertConfig `yaml:"convert" mapstructure:"convert"`
	Parquet ParquetConfig `yaml:"parquet" mapstructure:"parquet"`
	Teryt   TerytConfig   `yaml:"teryt" mapstructure:"teryt"`
	HTTP    HTTPConfig    `yaml:"http" mapstructure:"http"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ConvertConfig holds the conversion defaults the convert command starts from.
type ConvertConfig struct {
	BatchSize     int    `yaml:"batch_size" mapstructure:"batch_size"`
	SchemaVersion string `yaml:"schema_version" mapstructure:"schema_version"`
	OutputFormat  string `yaml:"output_format" mapstructure:"output_format"`
	CRS           int    `yaml:"crs_epsg" mapstructure:"crs_epsg"`
	ComponentPass bool   `yaml:"component_pass" mapstructure:"component_pass"`
}

// ParquetConfig configures the GeoParquet writer.
type ParquetConfig struct {
	Compression      string `yaml:"compression" mapstructure:"compression"`
	CompressionLevel int    `yaml:"compression_level" mapstructure:"compression_level"`
	RowGroupSize     int    `yaml:"row_group_size" mapstructure:"row_group_size"`
	Version          string `yaml:"version" mapstructure:"version"`
}

// TerytConfig configures the TERC dictionary download.
type TerytConfig struct {
	URL     string `yaml:"url" mapstructure:"url"`
	TempDir string `yaml:"temp_dir" mapstructure:"temp_dir"`
}

// HTTPConfig configures outbound downloads.
type HTTPConfig struct {
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries" mapstructure:"max_retries"`
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("prg-convert")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PRG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("convert.batch_size", 100000)
	v.SetDefault("convert.schema_version", string(normalize.Schema2012))
	v.SetDefault("convert.output_format", string(sink.FormatGeoParquet))
	v.SetDefault("convert.crs_epsg", int(crs.EPSG2180))
	v.SetDefault("convert.component_pass", true)
	v.SetDefault("parquet.compression", "zstd")
	v.SetDefault("parquet.compression_level", 0)
	v.SetDefault("parquet.row_group_size", 0)
	v.SetDefault("parquet.version", "v2")
	v.SetDefault("teryt.url", DefaultTerytURL)
	v.SetDefault("teryt.temp_dir", filepath.Join(os.TempDir(), "prg-convert"))
	v.SetDefault("http.timeout_secs", 120)
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("http.user_agent", "prg-convert/1.0")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// SinkOptions maps the conversion and parquet settings onto writer options.
func (c *Config) SinkOptions() sink.Options {
	return sink.Options{
		CRS:              crs.EPSG(c.Convert.CRS),
		BatchSize:        c.Convert.BatchSize,
		Compression:      c.Parquet.Compression,
		CompressionLevel: c.Parquet.CompressionLevel,
		RowGroupSize:     c.Parquet.RowGroupSize,
		Version:          c.Parquet.Version,
	}
}

// Validate reports every invalid setting at once. The error is an
// UnsupportedConfiguration.
func (c *Config) Validate() error {
	var problems []string

	if c.Convert.BatchSize < 1 {
		problems = append(problems, "convert.batch_size must be >= 1")
	}
	switch normalize.Schema(c.Convert.SchemaVersion) {
	case normalize.Schema2012, normalize.Schema2021:
	default:
		problems = append(problems, "convert.schema_version must be one of: 2012, 2021")
	}
	format, err := sink.ParseFormat(c.Convert.OutputFormat)
	if err != nil {
		problems = append(problems, "convert.output_format must be one of: csv, geoparquet")
	}
	if !crs.EPSG(c.Convert.CRS).Valid() {
		problems = append(problems, "convert.crs_epsg must be one of: 2180, 4326")
	}
	if format == sink.FormatGeoParquet && c.Convert.BatchSize >= 1 {
		if err := c.SinkOptions().Validate(); err != nil {
			msg := err.Error()
			var perr *prgerr.Error
			if errors.As(err, &perr) {
				msg = perr.Err.Error()
			}
			problems = append(problems, "parquet: "+strings.TrimPrefix(msg, "sink: "))
		}
	}
	if c.HTTP.TimeoutSecs < 1 {
		problems = append(problems, "http.timeout_secs must be > 0")
	}
	if c.HTTP.MaxRetries < 0 {
		problems = append(problems, "http.max_retries must be >= 0")
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		problems = append(problems, "log.level is not a valid level")
	}

	if len(problems) > 0 {
		return prgerr.Unsupported("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

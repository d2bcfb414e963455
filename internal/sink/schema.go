package sink

import (
	"github.com/apache/arrow-go/v18/arrow"
)

// GeometryColumn is the name of the point column in both output formats.
const GeometryColumn = "geometry"

// TimestampLayout is how timestamp columns are written to CSV.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

var timestampType = &arrow.TimestampType{Unit: arrow.Millisecond, TimeZone: "UTC"}

type column struct {
	name     string
	typ      arrow.DataType
	nullable bool
}

// columns is the output layout shared by CSV and GeoParquet. Order matters.
var columns = []column{
	{"przestrzen_nazw", arrow.BinaryTypes.String, true},
	{"lokalny_id", arrow.BinaryTypes.String, false},
	{"wersja_id", timestampType, true},
	{"poczatek_wersji_obiektu", timestampType, true},
	{"wazny_od_lub_data_nadania", timestampType, true},
	{"wazny_do", timestampType, true},
	{"teryt_wojewodztwo", arrow.BinaryTypes.String, true},
	{"wojewodztwo", arrow.BinaryTypes.String, false},
	{"teryt_powiat", arrow.BinaryTypes.String, true},
	{"powiat", arrow.BinaryTypes.String, true},
	{"teryt_gmina", arrow.BinaryTypes.String, true},
	{"gmina", arrow.BinaryTypes.String, true},
	{"teryt_miejscowosc", arrow.BinaryTypes.String, true},
	{"miejscowosc", arrow.BinaryTypes.String, false},
	{"czesc_miejscowosci", arrow.BinaryTypes.String, true},
	{"teryt_ulica", arrow.BinaryTypes.String, true},
	{"ulica", arrow.BinaryTypes.String, true},
	{"numer_porzadkowy", arrow.BinaryTypes.String, false},
	{"kod_pocztowy", arrow.BinaryTypes.String, true},
	{"status", arrow.BinaryTypes.String, true},
	{"dlugosc_geograficzna", arrow.PrimitiveTypes.Float64, true},
	{"szerokosc_geograficzna", arrow.PrimitiveTypes.Float64, true},
	{GeometryColumn, arrow.BinaryTypes.Binary, true},
}

// Columns returns the output column names in order.
func Columns() []string {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.name
	}
	return names
}

// ArrowSchema returns the Arrow schema written to GeoParquet files.
func ArrowSchema() *arrow.Schema {
	fields := make([]arrow.Field, len(columns))
	for i, c := range columns {
		fields[i] = arrow.Field{Name: c.name, Type: c.typ, Nullable: c.nullable}
	}
	return arrow.NewSchema(fields, nil)
}

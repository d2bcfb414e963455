// Package normalize maps schema-specific address points onto model.Address.
package normalize

import (
	"github.com/sells-group/prg-convert/internal/crs"
	"github.com/sells-group/prg-convert/internal/model"
	"github.com/sells-group/prg-convert/internal/prg2012"
	"github.com/sells-group/prg-convert/internal/prg2021"
	"github.com/sells-group/prg-convert/internal/prgerr"
	"github.com/sells-group/prg-convert/internal/teryt"
)

// Schema identifies a source document layout.
type Schema string

const (
	Schema2012 Schema = "2012"
	Schema2021 Schema = "2021"
)

// axisOrder records how each schema writes gml:pos. Both publish EPSG:2180
// points as (northing, easting).
var axisOrder = map[Schema]crs.AxisOrder{
	Schema2012: crs.YX,
	Schema2021: crs.YX,
}

// AxisOrder returns the gml:pos order of a schema.
func AxisOrder(s Schema) crs.AxisOrder {
	return axisOrder[s]
}

// Normalizer turns raw address points into canonical records.
type Normalizer struct {
	dict   *teryt.Dictionary
	target crs.EPSG
}

// New returns a Normalizer projecting geometry into target. dict is only
// consulted for the 2021 schema and may be nil for 2012 runs.
func New(dict *teryt.Dictionary, target crs.EPSG) *Normalizer {
	return &Normalizer{dict: dict, target: target}
}

// Normalize2012 converts a 2012 address point. Administrative names are taken
// from the document as written.
func (n *Normalizer) Normalize2012(raw *prg2012.RawAddress) (model.Address, error) {
	a := model.Address{
		Namespace:      model.StringOrNil(raw.Namespace),
		LocalID:        raw.LocalID,
		VersionID:      raw.VersionID,
		LifecycleStart: raw.LifecycleStart,
		ValidFrom:      raw.ValidFrom,
		ValidTo:        raw.ValidTo,

		VoivodeshipTeryt:  model.StringOrNil(raw.VoivodeshipTeryt),
		Voivodeship:       raw.Voivodeship,
		CountyTeryt:       model.StringOrNil(raw.CountyTeryt),
		County:            model.StringOrNil(raw.County),
		MunicipalityTeryt: model.StringOrNil(raw.MunicipalityTeryt),
		Municipality:      model.StringOrNil(raw.Municipality),

		CityTeryt:   model.StringOrNil(raw.CityTeryt),
		City:        raw.City,
		CityPart:    model.StringOrNil(raw.CityPart),
		StreetTeryt: model.StringOrNil(raw.StreetTeryt),
		Street:      model.StringOrNil(raw.Street),

		HouseNumber: raw.HouseNumber,
		PostalCode:  model.StringOrNil(raw.PostalCode),
		Status:      model.StringOrNil(raw.Status),
	}
	if err := n.place(&a, raw.Pos, Schema2012); err != nil {
		return model.Address{}, prgerr.Malformed("normalize: %s (gml:id %q, line %d): %v", raw.LocalID, raw.GmlID, raw.Line, err)
	}
	return a, nil
}

// Normalize2021 converts a 2021 address point, resolving its administrative
// unit code against the TERC dictionary. A code the dictionary does not know
// fails the record with MissingDictionaryEntry.
func (n *Normalizer) Normalize2021(raw *prg2021.RawAddress) (model.Address, error) {
	if n.dict == nil {
		return model.Address{}, prgerr.Unsupported("normalize: schema 2021 requires a TERYT dictionary")
	}
	names, err := n.dict.Resolve(raw.AdminCode)
	if err != nil {
		return model.Address{}, prgerr.Wrapf(err, "normalize: address %q (gml:id %q, line %d)", raw.LocalID, raw.GmlID, raw.Line)
	}

	a := model.Address{
		Namespace:      model.StringOrNil(raw.Namespace),
		LocalID:        raw.LocalID,
		VersionID:      raw.VersionID,
		LifecycleStart: raw.LifecycleStart,
		ValidFrom:      raw.ValidFrom,
		ValidTo:        raw.ValidTo,

		VoivodeshipTeryt:  model.StringOrNil(names.VoivodeshipCode),
		Voivodeship:       names.Voivodeship,
		CountyTeryt:       model.StringOrNil(names.CountyCode),
		County:            model.StringOrNil(names.County),
		MunicipalityTeryt: model.StringOrNil(names.MunicipalityCode),
		Municipality:      model.StringOrNil(names.Municipality),

		CityTeryt:   model.StringOrNil(raw.CityTeryt),
		City:        raw.City,
		CityPart:    model.StringOrNil(raw.CityPart),
		StreetTeryt: model.StringOrNil(raw.StreetTeryt),
		Street:      model.StringOrNil(raw.Street),

		HouseNumber: raw.HouseNumber,
		PostalCode:  model.StringOrNil(raw.PostalCode),
		Status:      model.StringOrNil(raw.Status),
	}
	if err := n.place(&a, raw.Pos, Schema2021); err != nil {
		return model.Address{}, prgerr.Malformed("normalize: %s (gml:id %q, line %d): %v", raw.LocalID, raw.GmlID, raw.Line, err)
	}
	return a, nil
}

// place fills geometry and lon/lat from a raw document-order pair. A nil pos
// leaves all three null.
func (n *Normalizer) place(a *model.Address, pos *crs.Point, schema Schema) error {
	if pos == nil {
		return nil
	}
	native := AxisOrder(schema).Apply(pos.X, pos.Y)

	lon, lat, err := crs.Transform(native.X, native.Y, crs.Native, crs.EPSG4326)
	if err != nil {
		return err
	}
	x, y := native.X, native.Y
	if n.target != crs.Native {
		if x, y, err = crs.Transform(native.X, native.Y, crs.Native, n.target); err != nil {
			return err
		}
	}

	a.Lon, a.Lat = &lon, &lat
	a.Geometry = &model.Point{X: x, Y: y}
	return nil
}

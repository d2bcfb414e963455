package normalize

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prg-convert/internal/crs"
	"github.com/sells-group/prg-convert/internal/prg2012"
	"github.com/sells-group/prg-convert/internal/prg2021"
	"github.com/sells-group/prg-convert/internal/prgerr"
	"github.com/sells-group/prg-convert/internal/teryt"
)

const terc = `<teryt><catalog name="TERC">
<row><WOJ>02</WOJ><NAZWA>Dolnośląskie</NAZWA><NAZWA_DOD>województwo</NAZWA_DOD><STAN_NA>2024-01-01</STAN_NA></row>
<row><WOJ>02</WOJ><POW>64</POW><NAZWA>Wrocław</NAZWA><NAZWA_DOD>miasto na prawach powiatu</NAZWA_DOD><STAN_NA>2024-01-01</STAN_NA></row>
<row><WOJ>02</WOJ><POW>64</POW><GMI>01</GMI><RODZ>1</RODZ><NAZWA>Wrocław</NAZWA><NAZWA_DOD>gmina miejska</NAZWA_DOD><STAN_NA>2024-01-01</STAN_NA></row>
</catalog></teryt>`

func dictionary(t *testing.T) *teryt.Dictionary {
	t.Helper()
	d, err := teryt.Build(context.Background(), strings.NewReader(terc))
	require.NoError(t, err)
	return d
}

func raw2012() *prg2012.RawAddress {
	v := time.Date(2012, 9, 27, 10, 0, 0, 0, time.UTC)
	return &prg2012.RawAddress{
		GmlID:            "PRG_PA.1",
		Namespace:        "PL.PZGIK.200",
		LocalID:          "0e2b6a42-0b0a-4c65-9c85-39d4b57ac1d3",
		VersionID:        &v,
		Country:          "Polska",
		Voivodeship:      "mazowieckie",
		County:           "Warszawa",
		Municipality:     "Warszawa",
		City:             "Warszawa",
		Street:           "ulica Marszałkowska",
		HouseNumber:      "10",
		Status:           "istniejacy",
		Pos:              &crs.Point{X: 487000, Y: 637000},
		VoivodeshipTeryt: "14",
	}
}

func TestNormalize2012_NativeCRS(t *testing.T) {
	n := New(nil, crs.EPSG2180)
	a, err := n.Normalize2012(raw2012())
	require.NoError(t, err)

	assert.Equal(t, "PL.PZGIK.200", *a.Namespace)
	assert.Equal(t, "0e2b6a42-0b0a-4c65-9c85-39d4b57ac1d3", a.LocalID)
	assert.Equal(t, "mazowieckie", a.Voivodeship)
	assert.Equal(t, "14", *a.VoivodeshipTeryt)
	assert.Equal(t, "Warszawa", *a.County)
	assert.Equal(t, "istniejacy", *a.Status)
	assert.Nil(t, a.CityPart)
	assert.Nil(t, a.PostalCode)
	assert.Nil(t, a.CountyTeryt)

	require.NotNil(t, a.Geometry)
	assert.Equal(t, 637000.0, a.Geometry.X, "easting comes from the second number")
	assert.Equal(t, 487000.0, a.Geometry.Y)
	require.NotNil(t, a.Lon)
	require.NotNil(t, a.Lat)
	assert.InDelta(t, 21.0, *a.Lon, 0.05)
	assert.InDelta(t, 52.2, *a.Lat, 0.05)
}

func TestNormalize2012_WGS84Target(t *testing.T) {
	n := New(nil, crs.EPSG4326)
	a, err := n.Normalize2012(raw2012())
	require.NoError(t, err)
	require.NotNil(t, a.Geometry)
	assert.Equal(t, *a.Lon, a.Geometry.X)
	assert.Equal(t, *a.Lat, a.Geometry.Y)
}

func TestNormalize2012_NoPosition(t *testing.T) {
	raw := raw2012()
	raw.Pos = nil
	raw.Status = ""
	a, err := New(nil, crs.EPSG2180).Normalize2012(raw)
	require.NoError(t, err)
	assert.Nil(t, a.Geometry)
	assert.Nil(t, a.Lon)
	assert.Nil(t, a.Lat)
	assert.Nil(t, a.Status)
}

func TestNormalize_AxisOrderIsInvolution(t *testing.T) {
	for _, s := range []Schema{Schema2012, Schema2021} {
		order := AxisOrder(s)
		p := order.Apply(123.5, 456.25)
		back := order.Apply(p.Y, p.X)
		if order == crs.YX {
			assert.Equal(t, crs.Point{X: 456.25, Y: 123.5}, p, s)
		}
		assert.Equal(t, crs.Point{X: 123.5, Y: 456.25}, order.Apply(back.X, back.Y), s)
	}
}

func TestNormalize2021_ResolvesVoivodeship(t *testing.T) {
	n := New(dictionary(t), crs.EPSG2180)
	a, err := n.Normalize2021(&prg2021.RawAddress{
		GmlID:       "AD.1",
		LocalID:     "abc",
		AdminCode:   "02",
		City:        "Wrocław",
		HouseNumber: "5",
	})
	require.NoError(t, err)
	assert.Equal(t, "Dolnośląskie", a.Voivodeship)
	assert.Equal(t, "02", *a.VoivodeshipTeryt)
	assert.Nil(t, a.County)
	assert.Nil(t, a.Municipality)
	assert.Nil(t, a.Geometry)
}

func TestNormalize2021_FullHierarchy(t *testing.T) {
	n := New(dictionary(t), crs.EPSG2180)
	a, err := n.Normalize2021(&prg2021.RawAddress{
		LocalID:     "abc",
		AdminCode:   "0264011",
		City:        "Wrocław",
		CityTeryt:   "0986283",
		Street:      "plac Grunwaldzki",
		HouseNumber: "5",
		Pos:         &crs.Point{X: 360000, Y: 640000},
	})
	require.NoError(t, err)
	assert.Equal(t, "0264", *a.CountyTeryt)
	assert.Equal(t, "Wrocław", *a.County)
	assert.Equal(t, "0264011", *a.MunicipalityTeryt)
	assert.Equal(t, "0986283", *a.CityTeryt)
	assert.Equal(t, "plac Grunwaldzki", *a.Street)
	require.NotNil(t, a.Geometry)
	assert.Equal(t, 640000.0, a.Geometry.X)
	assert.Equal(t, 360000.0, a.Geometry.Y)
}

func TestNormalize2021_MissingEntry(t *testing.T) {
	n := New(dictionary(t), crs.EPSG2180)
	_, err := n.Normalize2021(&prg2021.RawAddress{LocalID: "abc", AdminCode: "0401011", City: "x", HouseNumber: "1"})
	require.Error(t, err)
	assert.True(t, prgerr.Is(err, prgerr.MissingDictionaryEntry), err.Error())
	assert.Contains(t, err.Error(), `"abc"`)
}

func TestNormalize2021_RequiresDictionary(t *testing.T) {
	_, err := New(nil, crs.EPSG2180).Normalize2021(&prg2021.RawAddress{AdminCode: "02"})
	require.Error(t, err)
	assert.True(t, prgerr.Is(err, prgerr.UnsupportedConfiguration))
}

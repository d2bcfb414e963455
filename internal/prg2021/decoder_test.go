package prg2021

import (
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prg-convert/internal/crs"
	"github.com/sells-group/prg-convert/internal/prgerr"
)

const gmlHeader = `<?xml version="1.0" encoding="UTF-8"?>
<gml:FeatureCollection xmlns:gml="http://www.opengis.net/gml/3.2" xmlns:prg-ad="urn:gugik:prg:ad:2021" xmlns:bt="urn:gugik:bt" xmlns:xlink="http://www.w3.org/1999/xlink">
`

const gmlFooter = `</gml:FeatureCollection>
`

const inlinePoint = `<gml:featureMember><prg-ad:AD_PunktAdresowy gml:id="PL.PZGiK.994.AD.1">
  <prg-ad:idIIP><prg-ad:AD_IdentyfikatorIIP>
    <prg-ad:lokalnyId>11111111-2222-3333-4444-555555555555</prg-ad:lokalnyId>
    <prg-ad:przestrzenNazw>PL.PZGiK.994.PRG</prg-ad:przestrzenNazw>
    <prg-ad:wersjaId>2022-05-04T12:00:00Z</prg-ad:wersjaId>
  </prg-ad:AD_IdentyfikatorIIP></prg-ad:idIIP>
  <prg-ad:cyklZycia><prg-ad:AD_CyklZycia>
    <prg-ad:poczatekWersjiObiektu>2022-05-04T12:00:00Z</prg-ad:poczatekWersjiObiektu>
  </prg-ad:AD_CyklZycia></prg-ad:cyklZycia>
  <prg-ad:dataNadania>2021-11-30</prg-ad:dataNadania>
  <prg-ad:jednostkaAdministracyjna>02</prg-ad:jednostkaAdministracyjna>
  <prg-ad:miejscowosc>Wrocław</prg-ad:miejscowosc>
  <prg-ad:ulica>Legnicka</prg-ad:ulica>
  <prg-ad:numerPorzadkowy>5</prg-ad:numerPorzadkowy>
  <prg-ad:kodPocztowy>54-203</prg-ad:kodPocztowy>
  <prg-ad:status>istniejacy</prg-ad:status>
  <prg-ad:pozycja><gml:Point srsName="urn:ogc:def:crs:EPSG::2180"><gml:pos>362000.1 640000.2</gml:pos></gml:Point></prg-ad:pozycja>
</prg-ad:AD_PunktAdresowy></gml:featureMember>
`

const linkedPoint = `<gml:featureMember><prg-ad:AD_PunktAdresowy gml:id="PL.PZGiK.994.AD.2">
  <prg-ad:idIIP><prg-ad:AD_IdentyfikatorIIP>
    <prg-ad:lokalnyId>abc</prg-ad:lokalnyId>
  </prg-ad:AD_IdentyfikatorIIP></prg-ad:idIIP>
  <prg-ad:waznyOd>2013-01-02</prg-ad:waznyOd>
  <prg-ad:jednostkaAdministracyjna xlink:href="http://geoportal.gov.pl/PZGIK/dane/PL.PZGiK.994.JA.02"/>
  <prg-ad:jednostkaAdministracyjna xlink:href="http://geoportal.gov.pl/PZGIK/dane/PL.PZGiK.994.JA.0264011"/>
  <prg-ad:miejscowosc xlink:href="http://geoportal.gov.pl/PZGIK/dane/PL.PZGiK.994.M.1"/>
  <prg-ad:czescMiejscowosci xlink:href="#PL.PZGiK.994.CM.1"/>
  <prg-ad:ulica xlink:href="PL.PZGiK.994.U.1"/>
  <prg-ad:numerPorzadkowy>7/9</prg-ad:numerPorzadkowy>
  <prg-ad:pozycja><gml:Point><gml:pos>NaN NaN</gml:pos></gml:Point></prg-ad:pozycja>
</prg-ad:AD_PunktAdresowy></gml:featureMember>
`

const gmlComponents = `<gml:featureMember><prg-ad:AD_Miejscowosc gml:id="PL.PZGiK.994.M.1">
  <prg-ad:nazwa>Wrocław</prg-ad:nazwa>
  <prg-ad:idTERYT>0986283</prg-ad:idTERYT>
</prg-ad:AD_Miejscowosc></gml:featureMember>
<gml:featureMember><prg-ad:AD_CzescMiejscowosci gml:id="PL.PZGiK.994.CM.1">
  <prg-ad:nazwa>Leśnica</prg-ad:nazwa>
</prg-ad:AD_CzescMiejscowosci></gml:featureMember>
<gml:featureMember><prg-ad:AD_Ulica gml:id="PL.PZGiK.994.U.1">
  <prg-ad:nazwaGlownaCzesc>Jana Pawła II</prg-ad:nazwaGlownaCzesc>
  <prg-ad:typ>3</prg-ad:typ>
  <prg-ad:idTERYT>07651</prg-ad:idTERYT>
</prg-ad:AD_Ulica></gml:featureMember>
`

func gmlDoc(parts ...string) string {
	return gmlHeader + strings.Join(parts, "") + gmlFooter
}

func decodeAll(t *testing.T, d *Decoder) ([]*RawAddress, error) {
	t.Helper()
	var out []*RawAddress
	for {
		a, err := d.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, a)
	}
}

func TestDecoder_InlineValues(t *testing.T) {
	got, err := decodeAll(t, NewDecoder(strings.NewReader(gmlDoc(inlinePoint)), nil))
	require.NoError(t, err)
	require.Len(t, got, 1)

	a := got[0]
	assert.Equal(t, "PL.PZGiK.994.AD.1", a.GmlID)
	assert.Equal(t, "11111111-2222-3333-4444-555555555555", a.LocalID)
	assert.Equal(t, "PL.PZGiK.994.PRG", a.Namespace)
	require.NotNil(t, a.VersionID)
	assert.True(t, time.Date(2022, 5, 4, 12, 0, 0, 0, time.UTC).Equal(*a.VersionID))
	require.NotNil(t, a.LifecycleStart)
	require.NotNil(t, a.ValidFrom)
	assert.True(t, time.Date(2021, 11, 30, 0, 0, 0, 0, time.UTC).Equal(*a.ValidFrom))
	assert.Equal(t, "02", a.AdminCode)
	assert.Equal(t, "Wrocław", a.City)
	assert.Equal(t, "Legnicka", a.Street)
	assert.Empty(t, a.CityPart)
	assert.Equal(t, "5", a.HouseNumber)
	assert.Equal(t, "istniejacy", a.Status)
	require.NotNil(t, a.Pos)
	assert.Equal(t, crs.Point{X: 362000.1, Y: 640000.2}, *a.Pos)
}

func TestDecoder_LinkedComponents(t *testing.T) {
	input := gmlDoc(linkedPoint, gmlComponents)
	comps, err := ScanComponents(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 3, comps.Len())

	got, err := decodeAll(t, NewDecoder(strings.NewReader(input), comps))
	require.NoError(t, err)
	require.Len(t, got, 1)

	a := got[0]
	assert.Equal(t, "0264011", a.AdminCode, "most specific code wins")
	assert.Equal(t, "Wrocław", a.City)
	assert.Equal(t, "0986283", a.CityTeryt)
	assert.Equal(t, "Leśnica", a.CityPart)
	assert.Equal(t, "plac Jana Pawła II", a.Street)
	assert.Equal(t, "07651", a.StreetTeryt)
	assert.Equal(t, "7/9", a.HouseNumber)
	require.NotNil(t, a.ValidFrom, "waznyOd is accepted when dataNadania is absent")
	assert.Nil(t, a.Pos)
	assert.Nil(t, a.VersionID)
}

func TestDecoder_LegacyElementNames(t *testing.T) {
	legacy := strings.NewReplacer(
		"AD_PunktAdresowy", "PRG_PunktAdresowy",
		"jednostkaAdministracyjna", "jednostkaAdmnistracyjna",
	).Replace(inlinePoint)
	got, err := decodeAll(t, NewDecoder(strings.NewReader(gmlDoc(legacy)), nil))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "02", got[0].AdminCode)

	coded := strings.Replace(inlinePoint,
		"<prg-ad:jednostkaAdministracyjna>02</prg-ad:jednostkaAdministracyjna>",
		"<prg-ad:kodTerytorialny>0201011</prg-ad:kodTerytorialny>", 1)
	got, err = decodeAll(t, NewDecoder(strings.NewReader(gmlDoc(coded)), nil))
	require.NoError(t, err)
	assert.Equal(t, "0201011", got[0].AdminCode)
}

func TestDecoder_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		message string
	}{
		{"missing code", strings.Replace(inlinePoint, "<prg-ad:jednostkaAdministracyjna>02</prg-ad:jednostkaAdministracyjna>", "", 1), "administrative unit code"},
		{"code of wrong length", strings.Replace(inlinePoint, ">02</prg-ad:jednostkaAdministracyjna>", ">020</prg-ad:jednostkaAdministracyjna>", 1), "administrative unit code"},
		{"unresolved city", linkedPoint, "miejscowosc references unknown component"},
		{"bad date", strings.Replace(inlinePoint, "2021-11-30", "30-11-2021", 1), "dataNadania"},
		{"pos with one number", strings.Replace(inlinePoint, "362000.1 640000.2", "362000.1", 1), "gml:pos"},
		{"missing house number", strings.Replace(inlinePoint, "<prg-ad:numerPorzadkowy>5</prg-ad:numerPorzadkowy>", "", 1), "numerPorzadkowy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeAll(t, NewDecoder(strings.NewReader(gmlDoc(tt.input)), nil))
			require.Error(t, err)
			assert.True(t, prgerr.Is(err, prgerr.MalformedInput), err.Error())
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestScanComponents_NamelessComponent(t *testing.T) {
	bad := `<gml:featureMember><prg-ad:AD_Miejscowosc gml:id="M9"><prg-ad:idTERYT>1</prg-ad:idTERYT></prg-ad:AD_Miejscowosc></gml:featureMember>`
	_, err := ScanComponents(strings.NewReader(gmlDoc(bad)))
	require.Error(t, err)
	assert.True(t, prgerr.Is(err, prgerr.MalformedInput))
}

func TestComponents_GetForms(t *testing.T) {
	c := NewComponents()
	c.Add("X.1", Component{Kind: KindCity, Name: "Gdańsk"})

	for _, href := range []string{"X.1", "#X.1", "http://geoportal.gov.pl/PZGIK/dane/X.1"} {
		comp, ok := c.Get(href)
		require.True(t, ok, href)
		assert.Equal(t, "Gdańsk", comp.Name)
	}

	var nilIndex *Components
	_, ok := nilIndex.Get("X.1")
	assert.False(t, ok)
}

func TestStreetName(t *testing.T) {
	tests := []struct {
		part1, part2, typ string
		want              string
	}{
		{"Test", "", "1", "Test"},
		{"Test", "Test2", "1", "Test2 Test"},
		{"Test", "", "3", "plac Test"},
		{"Test", "Test2", "3", "plac Test2 Test"},
		{"plac Test", "", "3", "plac Test"},
		{"pl. Test", "", "3", "pl. Test"},
		{"Os. Słoneczne", "", "11", "Os. Słoneczne"},
		{"Kwiatowe", "", "11", "osiedle Kwiatowe"},
		{"Al. Róż", "", "2", "Al. Róż"},
		{"Grunwaldzkie", "", "6", "rondo Grunwaldzkie"},
		{"Rondo ONZ", "", "6", "Rondo ONZ"},
		{"Wiślane", "", "14", "wybrzeże Wiślane"},
		{"Mickiewicza", "Adama", "15", "Adama Mickiewicza"},
		{"Zielona", "", "99", "Zielona"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StreetName(tt.part1, tt.part2, tt.typ), "%q %q %q", tt.part1, tt.part2, tt.typ)
	}
}

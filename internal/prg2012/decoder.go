// Package prg2012 decodes address points from PRG XML exports in the 2012 schema.
package prg2012

import (
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/prg-convert/internal/crs"
	"github.com/sells-group/prg-convert/internal/gml"
	"github.com/sells-group/prg-convert/internal/prgerr"
)

const addressTag = "PRG_PunktAdresowy"

// RawAddress is one PRG_PunktAdresowy as written in the document.
type RawAddress struct {
	GmlID string
	Line  int

	Namespace      string
	LocalID        string
	VersionID      *time.Time
	LifecycleStart *time.Time
	ValidFrom      *time.Time
	ValidTo        *time.Time

	Country      string
	Voivodeship  string
	County       string
	Municipality string
	City         string
	CityPart     string
	Street       string
	HouseNumber  string
	PostalCode   string
	Status       string

	// Pos holds the gml:pos numbers in document order (X = first, Y = second).
	// Nil when the position is absent or NaN.
	Pos *crs.Point

	VoivodeshipTeryt  string
	CountyTeryt       string
	MunicipalityTeryt string
	CityTeryt         string
	StreetTeryt       string
}

type addressElement struct {
	ID             string     `xml:"id,attr"`
	Identifier     string     `xml:"identifier"`
	LocalID        string     `xml:"idIIP>BT_Identyfikator>lokalnyId"`
	Namespace      string     `xml:"idIIP>BT_Identyfikator>przestrzenNazw"`
	VersionID      string     `xml:"idIIP>BT_Identyfikator>wersjaId"`
	LifecycleStart string     `xml:"cyklZycia>BT_CyklZyciaInfo>poczatekWersjiObiektu"`
	ValidFrom      string     `xml:"waznyOd"`
	ValidTo        string     `xml:"waznyDo"`
	AdminUnits     []string   `xml:"jednostkaAdmnistracyjna"`
	AdminUnitsAlt  []string   `xml:"jednostkaAdministracyjna"`
	City           string     `xml:"miejscowosc"`
	CityPart       string     `xml:"czescMiejscowosci"`
	Street         string     `xml:"ulica"`
	HouseNumber    string     `xml:"numerPorzadkowy"`
	PostalCode     string     `xml:"kodPocztowy"`
	Status         string     `xml:"status"`
	Pos            *string    `xml:"pozycja>Point>pos"`
	Components     []gml.Href `xml:"komponent"`
	Ignored        []gml.Href `xml:"obiektEMUiA"`
	Unknown        []gml.Any  `xml:",any"`
}

// Decoder yields address points one at a time in document order.
type Decoder struct {
	rd    *gml.Reader
	comps *Components
	log   *zap.Logger
	seen  map[string]struct{}
}

// NewDecoder reads address points from r. comps may be nil, in which case
// TERYT ids of referenced components stay empty.
func NewDecoder(r io.Reader, comps *Components) *Decoder {
	return &Decoder{
		rd:    gml.NewReader(r),
		comps: comps,
		log:   zap.L().With(zap.String("component", "prg2012")),
		seen:  make(map[string]struct{}),
	}
}

// Next returns the next address point, or io.EOF after the last one.
func (d *Decoder) Next() (*RawAddress, error) {
	se, line, err := d.rd.Next(addressTag)
	if err != nil {
		return nil, err
	}

	var el addressElement
	if err := d.rd.Decode(&el, &se, line); err != nil {
		return nil, err
	}
	for _, u := range el.Unknown {
		if _, ok := d.seen[u.XMLName.Local]; !ok {
			d.seen[u.XMLName.Local] = struct{}{}
			d.log.Debug("ignoring unknown address element", zap.String("element", u.XMLName.Local), zap.Int("line", line))
		}
	}
	return d.convert(&el, line)
}

func (d *Decoder) convert(el *addressElement, line int) (*RawAddress, error) {
	malformed := func(format string, args ...any) error {
		return prgerr.Malformed("prg2012: <%s gml:id=%q> at line %d: "+format,
			append([]any{addressTag, el.ID, line}, args...)...)
	}

	a := &RawAddress{
		GmlID:       el.ID,
		Line:        line,
		Namespace:   strings.TrimSpace(el.Namespace),
		LocalID:     strings.TrimSpace(el.LocalID),
		City:        strings.TrimSpace(el.City),
		CityPart:    strings.TrimSpace(el.CityPart),
		Street:      strings.TrimSpace(el.Street),
		HouseNumber: strings.TrimSpace(el.HouseNumber),
		PostalCode:  strings.TrimSpace(el.PostalCode),
		Status:      strings.TrimSpace(el.Status),
	}

	var err error
	if a.VersionID, err = gml.ParseTimestamp(el.VersionID); err != nil {
		return nil, malformed("wersjaId: %v", err)
	}
	if a.LifecycleStart, err = gml.ParseTimestamp(el.LifecycleStart); err != nil {
		return nil, malformed("poczatekWersjiObiektu: %v", err)
	}
	if a.ValidFrom, err = gml.ParseDate(el.ValidFrom); err != nil {
		return nil, malformed("waznyOd: %v", err)
	}
	if a.ValidTo, err = gml.ParseDate(el.ValidTo); err != nil {
		return nil, malformed("waznyDo: %v", err)
	}

	units := el.AdminUnits
	if len(units) == 0 {
		units = el.AdminUnitsAlt
	}
	switch {
	case len(units) < 2:
		return nil, malformed("expected at least 2 jednostkaAdmnistracyjna values, got %d", len(units))
	case len(units) > 4:
		return nil, malformed("expected at most 4 jednostkaAdmnistracyjna values, got %d", len(units))
	}
	a.Country = strings.TrimSpace(units[0])
	a.Voivodeship = strings.TrimSpace(units[1])
	if len(units) > 2 {
		a.County = strings.TrimSpace(units[2])
	}
	if len(units) > 3 {
		a.Municipality = strings.TrimSpace(units[3])
	}

	switch {
	case a.LocalID == "":
		return nil, malformed("missing lokalnyId")
	case a.Voivodeship == "":
		return nil, malformed("empty voivodeship")
	case a.City == "":
		return nil, malformed("missing miejscowosc")
	case a.HouseNumber == "":
		return nil, malformed("missing numerPorzadkowy")
	}

	if el.Pos != nil {
		p, ok, err := crs.ParsePos(*el.Pos, crs.XY)
		if err != nil {
			return nil, malformed("gml:pos: %v", err)
		}
		if ok {
			a.Pos = &p
		}
	}

	for _, ref := range el.Components {
		comp, ok := d.comps.Get(ref.Href)
		if !ok || comp.Teryt == "" {
			continue
		}
		switch comp.Kind {
		case KindVoivodeship:
			a.VoivodeshipTeryt = comp.Teryt
		case KindCounty:
			a.CountyTeryt = comp.Teryt
		case KindMunicipality:
			a.MunicipalityTeryt = comp.Teryt
		case KindCity:
			a.CityTeryt = comp.Teryt
		case KindStreet:
			a.StreetTeryt = comp.Teryt
		}
	}
	return a, nil
}

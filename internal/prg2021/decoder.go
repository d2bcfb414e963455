// Package prg2021 decodes address points from PRG GML exports in the 2021 schema.
package prg2021

import (
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/prg-convert/internal/crs"
	"github.com/sells-group/prg-convert/internal/gml"
	"github.com/sells-group/prg-convert/internal/prgerr"
)

var addressTags = []string{"AD_PunktAdresowy", "PRG_PunktAdresowy"}

// RawAddress is one address point as written in the document. Administrative
// names are not part of the schema; AdminCode is resolved against TERC later.
type RawAddress struct {
	GmlID string
	Line  int

	Namespace      string
	LocalID        string
	VersionID      *time.Time
	LifecycleStart *time.Time
	ValidFrom      *time.Time // dataNadania, or waznyOd in older files
	ValidTo        *time.Time

	AdminCode string

	City        string
	CityTeryt   string
	CityPart    string
	Street      string
	StreetTeryt string
	HouseNumber string
	PostalCode  string
	Status      string

	// Pos holds the gml:pos numbers in document order (X = first, Y = second).
	Pos *crs.Point
}

type identifier struct {
	LocalID   string `xml:"lokalnyId"`
	Namespace string `xml:"przestrzenNazw"`
	VersionID string `xml:"wersjaId"`
}

type lifecycle struct {
	Start string `xml:"poczatekWersjiObiektu"`
}

type addressElement struct {
	ID    string `xml:"id,attr"`
	IDIIP struct {
		Ident identifier `xml:",any"`
	} `xml:"idIIP"`
	Lifecycle struct {
		Info lifecycle `xml:",any"`
	} `xml:"cyklZycia"`
	Identifier       string     `xml:"identifier"`
	AssignedAt       string     `xml:"dataNadania"`
	ValidFrom        string     `xml:"waznyOd"`
	ValidTo          string     `xml:"waznyDo"`
	AdminUnits       []gml.Text `xml:"jednostkaAdministracyjna"`
	AdminUnitsLegacy []gml.Text `xml:"jednostkaAdmnistracyjna"`
	TerritorialCode  string     `xml:"kodTerytorialny"`
	City             gml.Text   `xml:"miejscowosc"`
	CityPart         gml.Text   `xml:"czescMiejscowosci"`
	Street           gml.Text   `xml:"ulica"`
	HouseNumber      string     `xml:"numerPorzadkowy"`
	PostalCode       string     `xml:"kodPocztowy"`
	Status           string     `xml:"status"`
	Pos              *string    `xml:"pozycja>Point>pos"`
	GeometryPos      *string    `xml:"geometria>Point>pos"`
	Components       []gml.Href `xml:"komponent"`
	Unknown          []gml.Any  `xml:",any"`
}

// Decoder yields address points one at a time in document order.
type Decoder struct {
	rd    *gml.Reader
	comps *Components
	log   *zap.Logger
	seen  map[string]struct{}
}

// NewDecoder reads address points from r. comps resolves xlink references of
// miejscowosc, czescMiejscowosci and ulica; it may be nil when every value is inline.
func NewDecoder(r io.Reader, comps *Components) *Decoder {
	return &Decoder{
		rd:    gml.NewReader(r),
		comps: comps,
		log:   zap.L().With(zap.String("component", "prg2021")),
		seen:  make(map[string]struct{}),
	}
}

// Next returns the next address point, or io.EOF after the last one.
func (d *Decoder) Next() (*RawAddress, error) {
	se, line, err := d.rd.Next(addressTags...)
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
	return d.convert(&el, se.Name.Local, line)
}

func (d *Decoder) convert(el *addressElement, tag string, line int) (*RawAddress, error) {
	malformed := func(format string, args ...any) error {
		return prgerr.Malformed("prg2021: <%s gml:id=%q> at line %d: "+format,
			append([]any{tag, el.ID, line}, args...)...)
	}

	a := &RawAddress{
		GmlID:       el.ID,
		Line:        line,
		Namespace:   strings.TrimSpace(el.IDIIP.Ident.Namespace),
		LocalID:     strings.TrimSpace(el.IDIIP.Ident.LocalID),
		HouseNumber: strings.TrimSpace(el.HouseNumber),
		PostalCode:  strings.TrimSpace(el.PostalCode),
		Status:      strings.TrimSpace(el.Status),
	}

	var err error
	if a.VersionID, err = gml.ParseTimestamp(el.IDIIP.Ident.VersionID); err != nil {
		return nil, malformed("wersjaId: %v", err)
	}
	if a.LifecycleStart, err = gml.ParseTimestamp(el.Lifecycle.Info.Start); err != nil {
		return nil, malformed("poczatekWersjiObiektu: %v", err)
	}
	validFrom, field := el.AssignedAt, "dataNadania"
	if strings.TrimSpace(validFrom) == "" {
		validFrom, field = el.ValidFrom, "waznyOd"
	}
	if a.ValidFrom, err = gml.ParseDate(validFrom); err != nil {
		return nil, malformed("%s: %v", field, err)
	}
	if a.ValidTo, err = gml.ParseDate(el.ValidTo); err != nil {
		return nil, malformed("waznyDo: %v", err)
	}

	a.AdminCode = adminCode(el)
	if a.AdminCode == "" {
		return nil, malformed("missing administrative unit code")
	}

	var ok bool
	if a.City, a.CityTeryt, ok = d.resolve(el.City); !ok {
		return nil, malformed("miejscowosc references unknown component %q", el.City.Href)
	}
	if a.CityPart, _, ok = d.resolve(el.CityPart); !ok {
		return nil, malformed("czescMiejscowosci references unknown component %q", el.CityPart.Href)
	}
	if a.Street, a.StreetTeryt, ok = d.resolve(el.Street); !ok {
		return nil, malformed("ulica references unknown component %q", el.Street.Href)
	}

	switch {
	case a.LocalID == "":
		return nil, malformed("missing lokalnyId")
	case a.City == "":
		return nil, malformed("missing miejscowosc")
	case a.HouseNumber == "":
		return nil, malformed("missing numerPorzadkowy")
	}

	pos := el.Pos
	if pos == nil {
		pos = el.GeometryPos
	}
	if pos != nil {
		p, ok, err := crs.ParsePos(*pos, crs.XY)
		if err != nil {
			return nil, malformed("gml:pos: %v", err)
		}
		if ok {
			a.Pos = &p
		}
	}
	return a, nil
}

// resolve returns the inline value of t, or the name of the component its
// href points at. ok is false only for an href that cannot be resolved when
// no inline value is present.
func (d *Decoder) resolve(t gml.Text) (name, teryt string, ok bool) {
	name = t.Trimmed()
	if t.Href == "" {
		return name, "", true
	}
	comp, found := d.comps.Get(t.Href)
	if !found {
		return name, "", name != ""
	}
	if name == "" {
		name = comp.Name
	}
	return name, comp.Teryt, true
}

// adminCode picks the most specific TERC code among the administrative unit
// references of an address: inline digits or the numeric tail of an href.
func adminCode(el *addressElement) string {
	best := strings.TrimSpace(el.TerritorialCode)
	if !isTercCode(best) {
		best = ""
	}
	units := append(append([]gml.Text{}, el.AdminUnits...), el.AdminUnitsLegacy...)
	for _, u := range units {
		for _, c := range []string{u.Trimmed(), hrefCode(u.Href)} {
			if isTercCode(c) && len(c) > len(best) {
				best = c
			}
		}
	}
	return best
}

func hrefCode(href string) string {
	end := len(href)
	start := end
	for start > 0 && href[start-1] >= '0' && href[start-1] <= '9' {
		start--
	}
	return href[start:end]
}

func isTercCode(s string) bool {
	switch len(s) {
	case 2, 4, 7:
	default:
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

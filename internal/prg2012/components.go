package prg2012

import (
	"io"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/prg-convert/internal/gml"
	"github.com/sells-group/prg-convert/internal/prgerr"
)

// ComponentKind tells which address field a component describes.
type ComponentKind int

const (
	KindUnknown ComponentKind = iota
	KindCountry
	KindVoivodeship
	KindCounty
	KindMunicipality
	KindCity
	KindStreet
)

const (
	adminUnitTag = "PRG_JednostkaAdministracyjnaNazwa"
	cityTag      = "PRG_MiejscowoscNazwa"
	streetTag    = "PRG_UlicaNazwa"
)

// Component is a named object referenced from address points via prg-ad:komponent.
type Component struct {
	Kind  ComponentKind
	Name  string
	Teryt string
}

// Components indexes components by the href address points use to reference them.
type Components struct {
	byHref map[string]Component
}

// NewComponents returns an empty index.
func NewComponents() *Components {
	return &Components{byHref: make(map[string]Component)}
}

// Add registers a component under the href derived from its gml:id.
func (c *Components) Add(gmlID string, comp Component) {
	c.byHref[gml.ComponentBase+gmlID] = comp
}

// Get returns the component referenced by href.
func (c *Components) Get(href string) (Component, bool) {
	if c == nil {
		return Component{}, false
	}
	comp, ok := c.byHref[href]
	return comp, ok
}

// Len returns the number of indexed components.
func (c *Components) Len() int {
	if c == nil {
		return 0
	}
	return len(c.byHref)
}

type componentElement struct {
	ID      string `xml:"id,attr"`
	Name    string `xml:"nazwa"`
	Teryt   string `xml:"idTERYT"`
	Level   string `xml:"poziom"`
	Prefix1 string `xml:"przedrostek1Czesc"`
	Prefix2 string `xml:"przedrostek2Czesc"`
	Part    string `xml:"nazwaCzesc"`
	Main    string `xml:"nazwaGlownaCzesc"`
}

// ScanComponents reads every administrative unit, locality and street
// component of a document. It is a separate pass over the same file because
// components may follow the address points that reference them.
func ScanComponents(r io.Reader) (*Components, error) {
	comps := NewComponents()
	rd := gml.NewReader(r)
	for {
		se, line, err := rd.Next(adminUnitTag, cityTag, streetTag)
		if err == io.EOF {
			return comps, nil
		}
		if err != nil {
			return nil, err
		}

		var el componentElement
		if err := rd.Decode(&el, &se, line); err != nil {
			return nil, err
		}
		if el.ID == "" {
			return nil, prgerr.Malformed("prg2012: <%s> at line %d has no gml:id", se.Name.Local, line)
		}

		comp := Component{Teryt: strings.TrimSpace(el.Teryt)}
		switch se.Name.Local {
		case adminUnitTag:
			comp.Name = strings.TrimSpace(el.Name)
			comp.Kind, err = levelKind(strings.TrimSpace(el.Level))
			if err != nil {
				return nil, prgerr.Malformed("prg2012: <%s gml:id=%q> at line %d: %v", se.Name.Local, el.ID, line, err)
			}
		case cityTag:
			comp.Kind = KindCity
			comp.Name = strings.TrimSpace(el.Name)
		case streetTag:
			comp.Kind = KindStreet
			comp.Name = StreetName(el.Prefix1, el.Prefix2, el.Part, el.Main)
		}
		comps.Add(el.ID, comp)
	}
}

func levelKind(level string) (ComponentKind, error) {
	switch level {
	case "1poziom":
		return KindCountry, nil
	case "2poziom":
		return KindVoivodeship, nil
	case "3poziom":
		return KindCounty, nil
	case "4poziom":
		return KindMunicipality, nil
	default:
		return KindUnknown, eris.Errorf("unexpected prg-ad:poziom %q", level)
	}
}

// StreetName joins the non-empty parts of a street name with single spaces.
func StreetName(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}

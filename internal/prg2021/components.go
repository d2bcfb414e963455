package prg2021

import (
	"io"
	"strings"

	"github.com/sells-group/prg-convert/internal/gml"
	"github.com/sells-group/prg-convert/internal/prgerr"
)

// ComponentKind tells which address field a component describes.
type ComponentKind int

const (
	KindCity ComponentKind = iota + 1
	KindCityPart
	KindStreet
)

const (
	cityTag     = "AD_Miejscowosc"
	cityPartTag = "AD_CzescMiejscowosci"
	streetTag   = "AD_Ulica"
)

// Component is a named locality, locality part or street.
type Component struct {
	Kind  ComponentKind
	Name  string
	Teryt string // SIMC for localities, ULIC for streets
}

// Components indexes components by gml:id.
type Components struct {
	byID map[string]Component
}

// NewComponents returns an empty index.
func NewComponents() *Components {
	return &Components{byID: make(map[string]Component)}
}

// Add registers a component.
func (c *Components) Add(gmlID string, comp Component) {
	c.byID[gmlID] = comp
}

// Get resolves an xlink:href. Full geoportal URLs, local "#id" fragments and
// bare ids all name the same component.
func (c *Components) Get(href string) (Component, bool) {
	if c == nil {
		return Component{}, false
	}
	id := strings.TrimSpace(href)
	id = strings.TrimPrefix(id, gml.ComponentBase)
	id = strings.TrimPrefix(id, "#")
	comp, ok := c.byID[id]
	return comp, ok
}

// Len returns the number of indexed components.
func (c *Components) Len() int {
	if c == nil {
		return 0
	}
	return len(c.byID)
}

type componentElement struct {
	ID        string `xml:"id,attr"`
	Name      string `xml:"nazwa"`
	Teryt     string `xml:"idTERYT"`
	Main      string `xml:"nazwaGlownaCzesc"`
	MainAlt   string `xml:"nazwa1"`
	Second    string `xml:"nazwaCzesc"`
	SecondAlt string `xml:"nazwa2"`
	Type      string `xml:"typ"`
}

// ScanComponents reads every AD_Miejscowosc, AD_CzescMiejscowosci and AD_Ulica
// of a document.
func ScanComponents(r io.Reader) (*Components, error) {
	comps := NewComponents()
	rd := gml.NewReader(r)
	for {
		se, line, err := rd.Next(cityTag, cityPartTag, streetTag)
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
			return nil, prgerr.Malformed("prg2021: <%s> at line %d has no gml:id", se.Name.Local, line)
		}

		comp := Component{Teryt: strings.TrimSpace(el.Teryt)}
		switch se.Name.Local {
		case cityTag:
			comp.Kind = KindCity
			comp.Name = strings.TrimSpace(el.Name)
		case cityPartTag:
			comp.Kind = KindCityPart
			comp.Name = strings.TrimSpace(el.Name)
		case streetTag:
			comp.Kind = KindStreet
			comp.Name = StreetName(firstNonEmpty(el.Main, el.MainAlt, el.Name), firstNonEmpty(el.Second, el.SecondAlt), el.Type)
		}
		if comp.Name == "" {
			return nil, prgerr.Malformed("prg2021: <%s gml:id=%q> at line %d has no name", se.Name.Local, el.ID, line)
		}
		comps.Add(el.ID, comp)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

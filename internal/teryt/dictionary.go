// Package teryt builds the administrative-unit dictionary from a TERC registry export.
package teryt

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prg-convert/internal/fetcher"
	"github.com/sells-group/prg-convert/internal/prgerr"
)

// Level is the tier of an administrative unit, derived from its code length.
type Level int

const (
	Voivodeship  Level = 2
	County       Level = 4
	Municipality Level = 7
)

func (l Level) String() string {
	switch l {
	case Voivodeship:
		return "wojewodztwo"
	case County:
		return "powiat"
	case Municipality:
		return "gmina"
	default:
		return "unknown"
	}
}

// Unit is one TERC entry.
type Unit struct {
	Code  string
	Name  string
	Level Level
	Kind  string // NAZWA_DOD, e.g. "gmina miejska"
	AsOf  string // STAN_NA
}

// row mirrors a <row> of the TERC catalog.
type row struct {
	WOJ      string `xml:"WOJ"`
	POW      string `xml:"POW"`
	GMI      string `xml:"GMI"`
	RODZ     string `xml:"RODZ"`
	NAZWA    string `xml:"NAZWA"`
	NAZWADOD string `xml:"NAZWA_DOD"`
	STANNA   string `xml:"STAN_NA"`
}

// Dictionary maps TERC codes to units. It is immutable once built and safe
// for concurrent reads.
type Dictionary struct {
	units map[string]Unit
}

// Build streams the <row> elements of a TERC XML document.
func Build(ctx context.Context, r io.Reader) (*Dictionary, error) {
	rows, errs := fetcher.StreamXML[row](ctx, r, "row")

	d := &Dictionary{units: make(map[string]Unit, 2600)}
	var buildErr error
	for rw := range rows {
		if buildErr != nil {
			continue // drain so the decoder goroutine can exit
		}
		u, err := rw.unit()
		if err != nil {
			buildErr = err
			continue
		}
		d.units[u.Code] = u
	}
	for err := range errs {
		if err != nil && buildErr == nil {
			buildErr = prgerr.New(prgerr.MalformedInput, eris.Wrap(err, "teryt: read TERC"))
		}
	}
	if buildErr != nil {
		return nil, buildErr
	}
	if len(d.units) == 0 {
		return nil, prgerr.Malformed("teryt: no <row> elements in TERC document")
	}
	return d, nil
}

func (rw row) unit() (Unit, error) {
	code := strings.TrimSpace(rw.WOJ) + strings.TrimSpace(rw.POW) +
		strings.TrimSpace(rw.GMI) + strings.TrimSpace(rw.RODZ)
	lvl := Level(len(code))
	switch lvl {
	case Voivodeship, County, Municipality:
	default:
		return Unit{}, prgerr.Malformed("teryt: unrecognized TERC code %q (length %d)", code, len(code))
	}
	return Unit{
		Code:  code,
		Name:  strings.TrimSpace(rw.NAZWA),
		Level: lvl,
		Kind:  strings.TrimSpace(rw.NAZWADOD),
		AsOf:  strings.TrimSpace(rw.STANNA),
	}, nil
}

// Open builds a dictionary from a .xml file or a .zip holding exactly one .xml.
func Open(ctx context.Context, path string) (*Dictionary, error) {
	log := zap.L().With(zap.String("component", "teryt"))

	var (
		rc  io.ReadCloser
		err error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xml":
		rc, err = fetcher.Source{Path: path}.Open()
	case ".zip":
		var entry fetcher.ZIPEntry
		entry, err = fetcher.SingleZIPEntry(path, "xml")
		if err != nil {
			return nil, prgerr.Unsupported("teryt: %v", err)
		}
		rc, err = fetcher.OpenZIPEntry(path, entry.Name)
	default:
		return nil, prgerr.Unsupported("teryt: file %q is not .xml or .zip", path)
	}
	if err != nil {
		return nil, prgerr.Unsupported("teryt: open %s: %v", path, err)
	}
	defer rc.Close() //nolint:errcheck

	d, err := Build(ctx, rc)
	if err != nil {
		return nil, prgerr.Wrapf(err, "teryt: build from %s", path)
	}
	log.Info("teryt dictionary loaded", zap.String("path", path), zap.Int("units", d.Len()))
	return d, nil
}

// Lookup returns the unit with the exact code.
func (d *Dictionary) Lookup(code string) (Unit, bool) {
	u, ok := d.units[code]
	return u, ok
}

// Len returns the number of units.
func (d *Dictionary) Len() int {
	return len(d.units)
}

// AdminNames holds the resolved hierarchy of a code. Fields below the code's
// level are empty.
type AdminNames struct {
	VoivodeshipCode  string
	Voivodeship      string
	CountyCode       string
	County           string
	MunicipalityCode string
	Municipality     string
}

// Resolve returns the names of every level the code covers. A 7-character
// municipality code yields the voivodeship (first 2), county (first 4) and
// municipality names. Any missing level is a MissingDictionaryEntry error.
func (d *Dictionary) Resolve(code string) (AdminNames, error) {
	var names AdminNames
	lvl := Level(len(code))
	switch lvl {
	case Voivodeship, County, Municipality:
	default:
		return names, prgerr.Malformed("teryt: administrative code %q has length %d, expected 2, 4 or 7", code, len(code))
	}

	lookup := func(prefix string) (string, error) {
		u, ok := d.units[prefix]
		if !ok {
			return "", prgerr.MissingEntry("teryt: no %s %q in dictionary (code %q)", Level(len(prefix)), prefix, code)
		}
		return u.Name, nil
	}

	var err error
	names.VoivodeshipCode = code[:2]
	if names.Voivodeship, err = lookup(names.VoivodeshipCode); err != nil {
		return AdminNames{}, err
	}
	if lvl >= County {
		names.CountyCode = code[:4]
		if names.County, err = lookup(names.CountyCode); err != nil {
			return AdminNames{}, err
		}
	}
	if lvl == Municipality {
		names.MunicipalityCode = code
		if names.Municipality, err = lookup(code); err != nil {
			return AdminNames{}, err
		}
	}
	return names, nil
}

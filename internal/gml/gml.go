// Package gml holds the XML plumbing shared by the PRG schema decoders:
// element scanning with input positions, xlink references and the
// date/time lexical forms used by the registry.
package gml

import (
	"encoding/xml"
	"io"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/prg-convert/internal/fetcher"
	"github.com/sells-group/prg-convert/internal/prgerr"
)

// ComponentBase prefixes a component's gml:id to form the xlink:href used by address points.
const ComponentBase = "http://geoportal.gov.pl/PZGIK/dane/"

// Href is an element that carries only an xlink:href attribute.
type Href struct {
	Href string `xml:"href,attr"`
}

// Text is an element that may carry inline text, an xlink:href, or both.
type Text struct {
	Href  string `xml:"href,attr"`
	Value string `xml:",chardata"`
}

// Trimmed returns the inline text without surrounding whitespace.
func (t Text) Trimmed() string {
	return strings.TrimSpace(t.Value)
}

// Any records the name of a child element that no field claimed.
type Any struct {
	XMLName xml.Name
}

// Reader walks a document and stops at start elements with selected local names.
type Reader struct {
	dec *xml.Decoder
}

// NewReader wraps r with a charset-aware decoder.
func NewReader(r io.Reader) *Reader {
	return &Reader{dec: fetcher.NewXMLDecoder(r)}
}

// Next advances to the next start element whose local name is in names and
// returns it with the line it starts on. It returns io.EOF at the end of the
// document. Namespaces are ignored: PRG exports bind the same prefixes to
// different URIs across releases.
func (r *Reader) Next(names ...string) (xml.StartElement, int, error) {
	for {
		tok, err := r.dec.Token()
		if err == io.EOF {
			return xml.StartElement{}, 0, io.EOF
		}
		if err != nil {
			line, _ := r.dec.InputPos()
			return xml.StartElement{}, line, prgerr.New(prgerr.MalformedInput,
				eris.Wrapf(err, "gml: read token at line %d", line))
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		for _, n := range names {
			if se.Name.Local == n {
				line, _ := r.dec.InputPos()
				return se, line, nil
			}
		}
	}
}

// Decode reads the element started by se into v.
func (r *Reader) Decode(v any, se *xml.StartElement, line int) error {
	if err := r.dec.DecodeElement(v, se); err != nil {
		return prgerr.New(prgerr.MalformedInput,
			eris.Wrapf(err, "gml: decode <%s> starting at line %d", se.Name.Local, line))
	}
	return nil
}

// Attr returns the value of the attribute with the given local name.
func Attr(se xml.StartElement, local string) string {
	for _, a := range se.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// ParseTimestamp parses an xs:dateTime. Values without a zone are taken as UTC.
// Empty input yields nil.
func ParseTimestamp(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC().Truncate(time.Millisecond)
			return &t, nil
		}
	}
	return nil, eris.Errorf("gml: invalid timestamp %q", s)
}

// ParseDate parses an xs:date (YYYY-MM-DD, optionally zoned) as midnight UTC.
// Full timestamps are accepted too. Empty input yields nil.
func ParseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if len(s) > 10 && !strings.Contains(s, "T") {
		s = s[:10] // 2012-09-27Z, 2012-09-27+02:00
	}
	return ParseTimestamp(s)
}

package fetcher

import (
	"context"
	"encoding/xml"
	"io"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
)

// NewXMLDecoder returns a decoder that understands the non-UTF-8 encodings
// (windows-1250, iso-8859-2) found in older PRG and TERC exports.
func NewXMLDecoder(r io.Reader) *xml.Decoder {
	decoder := xml.NewDecoder(r)
	decoder.CharsetReader = charsetReader
	return decoder
}

func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, eris.Wrapf(err, "xml: unsupported charset %q", charset)
	}
	return enc.NewDecoder().Reader(input), nil
}

// StreamXML decodes XML elements matching the given local name and sends them to a channel.
// The type parameter T must be a struct with appropriate xml tags.
// Both channels are closed when processing completes.
func StreamXML[T any](ctx context.Context, r io.Reader, elementName string) (<-chan T, <-chan error) {
	outCh := make(chan T, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(outCh)
		defer close(errCh)

		decoder := NewXMLDecoder(r)
		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "xml: context cancelled")
				return
			}

			tok, err := decoder.Token()
			if err == io.EOF {
				return
			}
			if err != nil {
				line, _ := decoder.InputPos()
				errCh <- eris.Wrapf(err, "xml: read token at line %d", line)
				return
			}

			se, ok := tok.(xml.StartElement)
			if !ok || se.Name.Local != elementName {
				continue
			}

			var item T
			if err := decoder.DecodeElement(&item, &se); err != nil {
				line, _ := decoder.InputPos()
				errCh <- eris.Wrapf(err, "xml: decode <%s> at line %d", elementName, line)
				return
			}

			select {
			case outCh <- item:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "xml: context cancelled")
				return
			}
		}
	}()

	return outCh, errCh
}

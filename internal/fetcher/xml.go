package fetcher

import (
	"context"
	"encoding/xml"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
)

// charsetReader decodes non-UTF-8 feeds using the WHATWG encoding index,
// which covers the labels feeds declare in practice (iso-8859-1,
// windows-1252, ...).
func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(strings.TrimSpace(charset))
	if err != nil {
		return nil, eris.Wrapf(err, "xml: unsupported charset %q", charset)
	}
	return enc.NewDecoder().Reader(input), nil
}

// StreamXML decodes every element with the given local name into T and
// sends it on the returned channel. Elements nested inside a match are
// consumed with it. Both channels are closed when the input is exhausted;
// at most one error is sent.
func StreamXML[T any](ctx context.Context, r io.Reader, elementName string) (<-chan T, <-chan error) {
	out := make(chan T, 32)
	errc := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errc)

		dec := xml.NewDecoder(r)
		dec.CharsetReader = charsetReader
		dec.Strict = false
		dec.Entity = xml.HTMLEntity

		for {
			tok, err := dec.Token()
			if err == io.EOF {
				return
			}
			if err != nil {
				errc <- eris.Wrap(err, "xml: read token")
				return
			}
			se, ok := tok.(xml.StartElement)
			if !ok || se.Name.Local != elementName {
				continue
			}

			var v T
			if err := dec.DecodeElement(&v, &se); err != nil {
				errc <- eris.Wrapf(err, "xml: decode <%s>", elementName)
				return
			}
			select {
			case out <- v:
			case <-ctx.Done():
				errc <- eris.Wrap(ctx.Err(), "xml: cancelled")
				return
			}
		}
	}()

	return out, errc
}

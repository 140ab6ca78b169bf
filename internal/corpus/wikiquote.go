// Package corpus streams documents out of MediaWiki XML dumps (such as the
// wikiquote pages-meta-current exports) so they can be fed to the engine
// one page at a time without loading the dump into memory.
package corpus

import (
	"compress/bzip2"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"
)

// Document is one page of the dump. The page title doubles as the
// document id.
type Document struct {
	ID    string
	Title string
	Body  string
}

// Reader streams pages from a MediaWiki XML export.
type Reader struct {
	decoder *xml.Decoder
	closer  io.Closer
}

// page mirrors the subset of the MediaWiki <page> element the engine
// consumes.
type page struct {
	Title    string `xml:"title"`
	Revision struct {
		Text string `xml:"text"`
	} `xml:"revision"`
}

// NewReader streams pages from r, which must yield uncompressed XML.
func NewReader(r io.Reader) *Reader {
	return &Reader{decoder: xml.NewDecoder(r)}
}

// OpenDump opens a dump file, transparently decompressing .bz2 files.
func OpenDump(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening dump: %w", err)
	}
	var src io.Reader = f
	if strings.HasSuffix(path, ".bz2") {
		src = bzip2.NewReader(f)
	}
	reader := NewReader(src)
	reader.closer = f
	return reader, nil
}

// Next returns the next page of the dump, or io.EOF when exhausted. Pages
// without a title or text are skipped.
func (r *Reader) Next() (*Document, error) {
	for {
		tok, err := r.decoder.Token()
		if err != nil {
			if err == io.EOF {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("reading dump: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "page" {
			continue
		}
		var p page
		if err := r.decoder.DecodeElement(&p, &start); err != nil {
			return nil, fmt.Errorf("decoding page: %w", err)
		}
		if p.Title == "" || p.Revision.Text == "" {
			continue
		}
		return &Document{
			ID:    p.Title,
			Title: p.Title,
			Body:  p.Revision.Text,
		}, nil
	}
}

// Close releases the underlying file, if the reader owns one.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

package textextract

import (
	"image"

	"github.com/gen2brain/go-fitz"
)

// Source abstracts a decoded paged document so extraction strategy selection
// can be tested without real files.
type Source interface {
	PageCount() int
	// PageText returns the embedded selectable text of page n, "" if the
	// page carries none.
	PageText(n int) (string, error)
	// RenderPage rasterizes page n at the given DPI for recognition.
	RenderPage(n int, dpi float64) (image.Image, error)
	Close() error
}

// OpenFunc opens a document at path. Production uses openFitz; tests inject
// fakes.
type OpenFunc func(path string) (Source, error)

type fitzSource struct {
	doc *fitz.Document
}

func openFitz(path string) (Source, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, err
	}
	return &fitzSource{doc: doc}, nil
}

func (s *fitzSource) PageCount() int { return s.doc.NumPage() }

func (s *fitzSource) PageText(n int) (string, error) { return s.doc.Text(n) }

func (s *fitzSource) RenderPage(n int, dpi float64) (image.Image, error) {
	return s.doc.ImageDPI(n, dpi)
}

func (s *fitzSource) Close() error { return s.doc.Close() }

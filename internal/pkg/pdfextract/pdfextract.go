package pdfextract

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"docchat/internal/model"
)

// Extractor is the default page extractor used by the document service.
type Extractor struct{}

func (Extractor) ExtractPages(r io.Reader) ([]model.Page, error) {
	return ExtractPages(r)
}

// ExtractPages reads a whole PDF and returns the trimmed text of every page
// in order. Pages without extractable text come back with empty content.
// Malformed input yields an error wrapping model.ErrExtraction.
func ExtractPages(r io.Reader) (pages []model.Page, err error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read pdf failed: %w: %w", model.ErrExtraction, err)
	}
	if len(b) == 0 {
		return nil, fmt.Errorf("pdf is empty: %w", model.ErrExtraction)
	}

	// the pdf reader panics on some corrupt cross-reference tables
	defer func() {
		if rec := recover(); rec != nil {
			pages = nil
			err = fmt.Errorf("parse pdf failed: %v: %w", rec, model.ErrExtraction)
		}
	}()

	pdfReader, err := pdf.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return nil, fmt.Errorf("open pdf failed: %w: %w", model.ErrExtraction, err)
	}

	numPages := pdfReader.NumPage()
	pages = make([]model.Page, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := pdfReader.Page(i)
		text := ""
		if !page.V.IsNull() {
			if plain, err := page.GetPlainText(nil); err == nil {
				text = strings.TrimSpace(plain)
			}
		}
		pages = append(pages, model.Page{PageNumber: i, Content: text})
	}
	return pages, nil
}

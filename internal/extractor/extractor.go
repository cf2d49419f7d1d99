// Package extractor converts document bytes into per-page text.
package extractor

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrExtraction is returned when a document cannot be parsed.
var ErrExtraction = errors.New("failed to extract text from document")

// Page is one page of extracted text. Number is 1-based.
type Page struct {
	Number int
	Text   string
}

// Extractor converts raw document bytes into ordered pages of trimmed
// text. Pages whose trimmed text is empty are skipped.
type Extractor interface {
	Extract(data []byte) ([]Page, error)
}

// PDF extracts text from PDF documents.
type PDF struct{}

// NewPDF creates a PDF extractor.
func NewPDF() *PDF {
	return &PDF{}
}

// Extract returns the non-empty pages of the PDF in order.
//
// The underlying parser panics on some malformed inputs, so parsing is
// wrapped in a recover that converts panics into ErrExtraction.
func (e *PDF) Extract(data []byte) (pages []Page, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("%w: %v", ErrExtraction, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtraction, err)
	}

	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("%w: page %d: %v", ErrExtraction, i, err)
		}

		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		pages = append(pages, Page{Number: i, Text: text})
	}

	return pages, nil
}

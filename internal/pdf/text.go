// Package pdf extracts plain text from PDF documents.
package pdf

import (
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Text is the plain text of a PDF and how much of it could be read.
type Text struct {
	Body        string `json:"-"`
	Pages       int    `json:"pages"`
	PagesRead   int    `json:"pages_read"`
	PagesFailed int    `json:"pages_failed"`
}

// ExtractText extracts text from the first maxPages pages of the PDF at
// filePath; maxPages <= 0 means all pages. Unreadable pages are counted,
// not fatal.
func ExtractText(filePath string, maxPages int) (*Text, error) {
	f, r, err := pdf.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("opening PDF %s: %w", filePath, err)
	}
	defer f.Close()

	return extract(r, maxPages), nil
}

// ExtractTextReader is ExtractText for an in-memory or seekable source.
func ExtractTextReader(ra io.ReaderAt, size int64, maxPages int) (*Text, error) {
	r, err := pdf.NewReader(ra, size)
	if err != nil {
		return nil, fmt.Errorf("reading PDF: %w", err)
	}
	return extract(r, maxPages), nil
}

func extract(r *pdf.Reader, maxPages int) *Text {
	out := &Text{Pages: r.NumPage()}
	if maxPages <= 0 || maxPages > out.Pages {
		maxPages = out.Pages
	}

	var builder strings.Builder
	for i := 1; i <= maxPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			out.PagesFailed++
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			out.PagesFailed++
			continue
		}
		builder.WriteString(text)
		builder.WriteString("\n")
		out.PagesRead++
	}

	out.Body = builder.String()
	return out
}

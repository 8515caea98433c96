package pdfextract

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat/internal/model"
)

func TestExtractPagesRejectsEmptyInput(t *testing.T) {
	_, err := ExtractPages(bytes.NewReader(nil))
	assert.True(t, errors.Is(err, model.ErrExtraction))
}

func TestExtractPagesRejectsGarbage(t *testing.T) {
	_, err := ExtractPages(strings.NewReader("this is certainly not a pdf document"))
	assert.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrExtraction))
}

// buildPDF writes a minimal PDF with one Helvetica text line per page.
func buildPDF(pageTexts ...string) []byte {
	var objects []string
	pageCount := len(pageTexts)
	kids := make([]string, 0, pageCount)
	for i := range pageTexts {
		kids = append(kids, fmt.Sprintf("%d 0 R", 4+2*i))
	}
	objects = append(objects,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), pageCount),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	)
	for i, text := range pageTexts {
		stream := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
		)
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestExtractPagesReadsEveryPage(t *testing.T) {
	pages, err := ExtractPages(bytes.NewReader(buildPDF("Revenue grew", "Costs fell")))
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, 1, pages[0].PageNumber)
	assert.Equal(t, 2, pages[1].PageNumber)
	assert.Contains(t, pages[0].Content, "Revenue")
	assert.Contains(t, pages[1].Content, "Costs")
}

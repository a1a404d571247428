package bank

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ExtractPDFLines returns the text rows of a statement PDF, page by page and
// top to bottom within a page.
func ExtractPDFLines(r io.ReaderAt, size int64) (lines []string, err error) {
	const op = "ExtractPDFLines"

	defer func() {
		if rec := recover(); rec != nil {
			lines = nil
			err = fmt.Errorf("%s: %w: pdf reader panicked: %v", op, ErrInvalidPDF, rec)
		}
	}()

	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrInvalidPDF, err)
	}

	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			return nil, fmt.Errorf("%s: failed to read page %d: %w", op, i, err)
		}
		for _, row := range rows {
			parts := make([]string, 0, len(row.Content))
			for _, word := range row.Content {
				parts = append(parts, word.S)
			}
			if line := strings.TrimSpace(strings.Join(parts, " ")); line != "" {
				lines = append(lines, line)
			}
		}
	}
	return lines, nil
}

// SplitLines splits plain statement text (an OCR result, a pasted export)
// into lines, dropping blank ones.
func SplitLines(text string) []string {
	var lines []string
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// LineSource turns a statement document into text lines by other means than
// its text layer, such as OCR of a scanned statement.
type LineSource interface {
	StatementLines(ctx context.Context, r io.Reader) ([]string, error)
}

// ReadStatement extracts the lines of a statement PDF. When the PDF has no
// text layer and fallback is not nil, the document is handed to fallback.
func ReadStatement(ctx context.Context, data []byte, fallback LineSource) ([]string, error) {
	const op = "ReadStatement"

	lines, err := ExtractPDFLines(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	if len(lines) > 0 || fallback == nil {
		return lines, nil
	}

	lines, err = fallback.StatementLines(ctx, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: fallback extraction failed: %w", op, err)
	}
	return lines, nil
}

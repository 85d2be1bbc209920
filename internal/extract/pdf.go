package extract

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// extractPDF pulls plain text out of a PDF, page by page. Pages that fail
// to decode are skipped; a document where every page fails is an error.
func extractPDF(ctx context.Context, data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var pages []string
	for i := 1; i <= reader.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if strings.TrimSpace(text) != "" {
			pages = append(pages, text)
		}
	}

	if len(pages) == 0 && reader.NumPage() > 0 {
		// Fall back to the whole-document reader; some encodings only
		// decode through this path.
		if r, err := reader.GetPlainText(); err == nil {
			if out, err := io.ReadAll(r); err == nil && strings.TrimSpace(string(out)) != "" {
				return string(out), nil
			}
		}
		return "", errors.New("no extractable text in any page")
	}

	return strings.Join(pages, "\n\n"), nil
}

package extract

import (
	"context"
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

// extractText decodes plain text payloads. Valid UTF-8 passes through;
// anything else is retried as GB18030, which covers GBK and GB2312 uploads.
func extractText(_ context.Context, data []byte) (string, error) {
	if utf8.Valid(data) {
		return string(data), nil
	}

	decoded, _, err := transform.Bytes(simplifiedchinese.GB18030.NewDecoder(), data)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

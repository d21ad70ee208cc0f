package extract

import (
	"context"
	"strings"
	"unicode/utf8"
)

// textExtractor handles .txt and .md payloads. Payloads that are not valid
// UTF-8 are re-decoded as Latin-1 so legacy exports still ingest.
type textExtractor struct{}

func (textExtractor) Extract(_ context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", &Error{Reason: "text document is empty"}
	}

	if utf8.Valid(data) {
		return string(data), nil
	}

	var builder strings.Builder
	builder.Grow(len(data))
	for _, b := range data {
		builder.WriteRune(rune(b))
	}
	return builder.String(), nil
}

package extract

import (
	"bytes"
	"context"
	"io"

	"github.com/ledongthuc/pdf"
)

type pdfExtractor struct{}

func (pdfExtractor) Extract(_ context.Context, data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", &Error{Reason: "could not open PDF (corrupt or password-protected)", Err: err}
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", &Error{Reason: "could not read PDF text", Err: err}
	}

	buf := &bytes.Buffer{}
	if _, err := io.Copy(buf, plain); err != nil {
		return "", &Error{Reason: "could not read PDF text", Err: err}
	}

	if buf.Len() == 0 {
		return "", &Error{Reason: "PDF contains no extractable text"}
	}

	return buf.String(), nil
}

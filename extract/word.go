package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"io"
	"strings"
)

// wordExtractor reads .docx payloads. A docx file is a zip archive whose main
// body lives in word/document.xml; paragraphs become lines and table rows
// become cell texts joined with " | ".
type wordExtractor struct{}

func (wordExtractor) Extract(_ context.Context, data []byte) (string, error) {
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", &Error{Reason: "could not open Word document (corrupt or legacy .doc format)", Err: err}
	}

	var document *zip.File
	for _, file := range archive.File {
		if file.Name == "word/document.xml" {
			document = file
			break
		}
	}
	if document == nil {
		return "", &Error{Reason: "Word document has no body (unsupported sub-format)"}
	}

	body, err := document.Open()
	if err != nil {
		return "", &Error{Reason: "could not read Word document body", Err: err}
	}
	defer body.Close()

	text, err := wordBodyText(body)
	if err != nil {
		return "", &Error{Reason: "could not parse Word document body", Err: err}
	}

	if strings.TrimSpace(text) == "" {
		return "", &Error{Reason: "Word document contains no extractable text"}
	}

	return text, nil
}

func wordBodyText(r io.Reader) (string, error) {
	decoder := xml.NewDecoder(r)

	var (
		out       strings.Builder
		paragraph strings.Builder
		cells     []string
		row       []string
		inText    bool
		cellDepth int
	)

	flushParagraph := func() {
		text := paragraph.String()
		paragraph.Reset()
		if cellDepth > 0 {
			if len(cells) == 0 {
				cells = append(cells, text)
			} else {
				cells[len(cells)-1] += text
			}
			return
		}
		out.WriteString(text)
		out.WriteString("\n")
	}

	for {
		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}

		switch element := token.(type) {
		case xml.StartElement:
			switch element.Name.Local {
			case "t":
				inText = true
			case "tc":
				cellDepth++
				cells = append(cells, "")
			case "tab":
				paragraph.WriteString("\t")
			case "br":
				paragraph.WriteString("\n")
			}
		case xml.EndElement:
			switch element.Name.Local {
			case "t":
				inText = false
			case "p":
				flushParagraph()
			case "tc":
				if cellDepth > 0 {
					cellDepth--
					if len(cells) > 0 {
						row = append(row, strings.TrimSpace(cells[len(cells)-1]))
						cells = cells[:len(cells)-1]
					}
				}
			case "tr":
				out.WriteString(strings.Join(row, " | "))
				out.WriteString("\n")
				row = nil
			case "tbl":
				out.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				paragraph.WriteString(string(element))
			}
		}
	}

	return out.String(), nil
}

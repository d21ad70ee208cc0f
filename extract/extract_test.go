package extract_test

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fasterchat/ragcore/extract"
)

func TestParseFileType(t *testing.T) {
	cases := map[string]extract.FileType{
		"pdf":   extract.FileTypePDF,
		"Word":  extract.FileTypeWord,
		" text": extract.FileTypeText,
	}
	for input, want := range cases {
		got, err := extract.ParseFileType(input)
		if err != nil {
			t.Fatalf("ParseFileType(%q): %v", input, err)
		}
		if got != want {
			t.Fatalf("ParseFileType(%q) = %q, want %q", input, got, want)
		}
	}

	if _, err := extract.ParseFileType("image"); err == nil {
		t.Fatal("expected error for unsupported file type")
	}
}

func TestDetectFileType(t *testing.T) {
	cases := map[string]extract.FileType{
		"report.PDF": extract.FileTypePDF,
		"notes.docx": extract.FileTypeWord,
		"legacy.doc": extract.FileTypeWord,
		"readme.md":  extract.FileTypeText,
		"plain.txt":  extract.FileTypeText,
	}
	for filename, want := range cases {
		got, err := extract.DetectFileType(filename)
		if err != nil {
			t.Fatalf("DetectFileType(%q): %v", filename, err)
		}
		if got != want {
			t.Fatalf("DetectFileType(%q) = %q, want %q", filename, got, want)
		}
	}

	if _, err := extract.DetectFileType("photo.png"); err == nil {
		t.Fatal("expected error for unsupported extension")
	}
}

func TestExtractPlainText(t *testing.T) {
	text, err := extract.Extract(context.Background(), []byte("Hello,   world.\r\nSecond line.\n\n\n\nThird."), extract.FileTypeText)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "Hello, world.\nSecond line.\n\nThird." {
		t.Fatalf("unexpected normalized text: %q", text)
	}
}

func TestExtractTextLatin1Fallback(t *testing.T) {
	// 0xE9 is é in Latin-1 and invalid as a standalone UTF-8 byte.
	text, err := extract.Extract(context.Background(), []byte{'c', 'a', 'f', 0xE9}, extract.FileTypeText)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "café" {
		t.Fatalf("expected latin-1 fallback decode, got %q", text)
	}
}

func TestExtractEmptyTextFails(t *testing.T) {
	_, err := extract.Extract(context.Background(), nil, extract.FileTypeText)
	var extractionErr *extract.Error
	if !errors.As(err, &extractionErr) {
		t.Fatalf("expected *extract.Error, got %v", err)
	}
}

func TestExtractWordDocument(t *testing.T) {
	body := `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>First paragraph.</w:t></w:r></w:p>
    <w:p><w:r><w:t>Second </w:t></w:r><w:r><w:t>paragraph.</w:t></w:r></w:p>
    <w:tbl>
      <w:tr>
        <w:tc><w:p><w:r><w:t>Name</w:t></w:r></w:p></w:tc>
        <w:tc><w:p><w:r><w:t>Role</w:t></w:r></w:p></w:tc>
      </w:tr>
    </w:tbl>
  </w:body>
</w:document>`

	text, err := extract.Extract(context.Background(), buildDocx(t, body), extract.FileTypeWord)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{"First paragraph.", "Second paragraph.", "Name | Role"} {
		if !strings.Contains(text, want) {
			t.Fatalf("extracted text missing %q:\n%s", want, text)
		}
	}
}

func TestExtractWordRejectsCorruptPayload(t *testing.T) {
	_, err := extract.Extract(context.Background(), []byte("not a zip archive"), extract.FileTypeWord)
	var extractionErr *extract.Error
	if !errors.As(err, &extractionErr) {
		t.Fatalf("expected *extract.Error, got %v", err)
	}
	if extractionErr.Reason == "" {
		t.Fatal("expected a user-visible failure reason")
	}
}

func TestExtractWordRejectsArchiveWithoutBody(t *testing.T) {
	buf := &bytes.Buffer{}
	writer := zip.NewWriter(buf)
	entry, err := writer.Create("other.xml")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := entry.Write([]byte("<x/>")); err != nil {
		t.Fatal(err)
	}
	if err := writer.Close(); err != nil {
		t.Fatal(err)
	}

	_, err = extract.Extract(context.Background(), buf.Bytes(), extract.FileTypeWord)
	var extractionErr *extract.Error
	if !errors.As(err, &extractionErr) {
		t.Fatalf("expected *extract.Error, got %v", err)
	}
}

func TestExtractPDFRejectsCorruptPayload(t *testing.T) {
	_, err := extract.Extract(context.Background(), []byte("definitely not a pdf"), extract.FileTypePDF)
	var extractionErr *extract.Error
	if !errors.As(err, &extractionErr) {
		t.Fatalf("expected *extract.Error, got %v", err)
	}
}

func buildDocx(t *testing.T, documentXML string) []byte {
	t.Helper()

	buf := &bytes.Buffer{}
	writer := zip.NewWriter(buf)
	entry, err := writer.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := entry.Write([]byte(documentXML)); err != nil {
		t.Fatal(err)
	}
	if err := writer.Close(); err != nil {
		t.Fatal(err)
	}

	return buf.Bytes()
}

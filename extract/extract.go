// Package extract converts raw document payloads into normalized plain text.
package extract

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// FileType enumerates the supported document payload formats.
type FileType string

const (
	FileTypePDF  FileType = "pdf"
	FileTypeWord FileType = "word"
	FileTypeText FileType = "text"
)

// ParseFileType validates a file type string coming from a caller.
func ParseFileType(value string) (FileType, error) {
	switch FileType(strings.ToLower(strings.TrimSpace(value))) {
	case FileTypePDF:
		return FileTypePDF, nil
	case FileTypeWord:
		return FileTypeWord, nil
	case FileTypeText:
		return FileTypeText, nil
	default:
		return "", fmt.Errorf("unsupported file type %q", value)
	}
}

// DetectFileType infers a file type from a filename extension.
func DetectFileType(filename string) (FileType, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return FileTypePDF, nil
	case ".doc", ".docx":
		return FileTypeWord, nil
	case ".txt", ".md":
		return FileTypeText, nil
	default:
		return "", fmt.Errorf("unsupported file extension %q", filepath.Ext(filename))
	}
}

// Error reports a document that could not be extracted. Reason is safe to show
// to users; Err keeps the underlying cause for logs.
type Error struct {
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extraction failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("extraction failed: %s", e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// Extractor converts one payload format into plain text.
type Extractor interface {
	Extract(ctx context.Context, data []byte) (string, error)
}

// ForType returns the extractor handling the given file type.
func ForType(fileType FileType) (Extractor, error) {
	switch fileType {
	case FileTypePDF:
		return pdfExtractor{}, nil
	case FileTypeWord:
		return wordExtractor{}, nil
	case FileTypeText:
		return textExtractor{}, nil
	default:
		return nil, &Error{Reason: fmt.Sprintf("unsupported file type %q", fileType)}
	}
}

// Extract runs the extractor for fileType and normalizes the result.
func Extract(ctx context.Context, data []byte, fileType FileType) (string, error) {
	extractor, err := ForType(fileType)
	if err != nil {
		return "", err
	}
	text, err := extractor.Extract(ctx, data)
	if err != nil {
		return "", err
	}
	return Normalize(text), nil
}

package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"tender-backend/internal/shared/storage/object"
)

const (
	mimePDF  = "application/pdf"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeText = "text/plain"
)

// Page is one page of extracted document text. Formats without page structure
// produce a single page numbered 1.
type Page struct {
	Number int
	Text   string
}

// ExtractionError marks a failure to derive text from a document. Callers use
// it to distinguish extraction failures from storage errors.
type ExtractionError struct {
	FileName string
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.FileName, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Extractor derives per-page text from a stored document.
type Extractor interface {
	Extract(ctx context.Context, storageKey, mimeType, fileName string) ([]Page, error)
}

// StoreExtractor reads documents from an ObjectStore and extracts their text.
// PDF handling uses github.com/ledongthuc/pdf.
type StoreExtractor struct {
	Store object.ObjectStore
}

// Extract loads the object and returns its pages. A storage read failure is
// returned as-is; a parse failure is wrapped in *ExtractionError.
func (x *StoreExtractor) Extract(ctx context.Context, storageKey, mimeType, fileName string) ([]Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	body, err := x.Store.Open(ctx, storageKey)
	if err != nil {
		return nil, fmt.Errorf("open object key=%s: %w", storageKey, err)
	}
	defer body.Close()

	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read object key=%s: %w", storageKey, err)
	}

	pages, err := FromBytes(ctx, raw, mimeType, fileName)
	if err != nil {
		return nil, err
	}
	return pages, nil
}

// FromBytes extracts pages from an in-memory payload.
func FromBytes(ctx context.Context, data []byte, mimeType string, fileName string) ([]Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	normalized := normalizeMimeType(mimeType, fileName, data)
	var (
		pages []Page
		err   error
	)
	switch normalized {
	case mimePDF:
		pages, err = extractPDF(data)
	case mimeDOCX:
		pages, err = extractDOCX(data)
	case mimeText, "text/markdown":
		pages, err = extractPlain(data)
	default:
		// Octet-stream uploads fall back to the file extension.
		switch strings.ToLower(filepath.Ext(fileName)) {
		case ".pdf":
			pages, err = extractPDF(data)
		case ".docx":
			pages, err = extractDOCX(data)
		case ".txt", ".md":
			pages, err = extractPlain(data)
		default:
			err = fmt.Errorf("unsupported mime type: %s", normalized)
		}
	}
	if err != nil {
		return nil, &ExtractionError{FileName: fileName, Err: err}
	}
	if emptyPages(pages) {
		return nil, &ExtractionError{FileName: fileName, Err: errors.New("document contains no extractable text")}
	}
	return pages, nil
}

func emptyPages(pages []Page) bool {
	for _, p := range pages {
		if strings.TrimSpace(p.Text) != "" {
			return false
		}
	}
	return true
}

func extractPDF(data []byte) ([]Page, error) {
	reader := bytes.NewReader(data)
	pdfReader, err := pdf.NewReader(reader, int64(len(data)))
	if err != nil {
		return nil, err
	}

	total := pdfReader.NumPage()
	pages := make([]Page, 0, total)
	for i := 1; i <= total; i++ {
		page := pdfReader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single unreadable page does not void the document.
			continue
		}
		pages = append(pages, Page{Number: i, Text: text})
	}
	if len(pages) == 0 {
		return nil, errors.New("no readable pages")
	}
	return pages, nil
}

func extractDOCX(data []byte) ([]Page, error) {
	if len(data) == 0 {
		return nil, errors.New("empty docx data")
	}
	readerAt := bytes.NewReader(data)
	zr, err := zip.NewReader(readerAt, int64(len(data)))
	if err != nil {
		return nil, err
	}

	var docFile *zip.File
	for _, f := range zr.File {
		name := strings.ReplaceAll(f.Name, "\\", "/")
		if name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return nil, errors.New("document.xml file not found")
	}

	rc, err := docFile.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}

	return []Page{{Number: 1, Text: stripDocxXML(string(raw))}}, nil
}

func extractPlain(data []byte) ([]Page, error) {
	return []Page{{Number: 1, Text: string(data)}}, nil
}

func stripDocxXML(raw string) string {
	decoder := xml.NewDecoder(strings.NewReader(raw))
	var buf strings.Builder
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return raw
		}
		switch t := tok.(type) {
		case xml.CharData:
			buf.WriteString(string(t))
		case xml.EndElement:
			if t.Name.Local == "p" || t.Name.Local == "br" {
				if last := buf.Len(); last > 0 {
					buf.WriteString("\n")
				}
			}
		}
	}
	return strings.TrimSpace(buf.String())
}

func normalizeMimeType(mimeType string, fileName string, data []byte) string {
	clean := strings.ToLower(strings.TrimSpace(strings.Split(mimeType, ";")[0]))
	if clean != "application/zip" {
		return clean
	}

	if mapped := mapOOXMLFromZip(data); mapped != "" {
		return mapped
	}

	if strings.ToLower(filepath.Ext(fileName)) == ".docx" {
		return mimeDOCX
	}
	return clean
}

func mapOOXMLFromZip(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	readerAt := bytes.NewReader(data)
	zr, err := zip.NewReader(readerAt, int64(len(data)))
	if err != nil {
		return ""
	}
	for _, f := range zr.File {
		name := strings.ReplaceAll(f.Name, "\\", "/")
		if name == "word/document.xml" {
			return mimeDOCX
		}
	}
	return ""
}

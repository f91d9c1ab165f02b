// Package extract pulls plain text out of uploaded files. Two formats are
// supported: PDF (page-oriented) and DOCX (paragraph-oriented). The true
// format is sniffed from magic bytes, not trusted from the filename.
package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	pdflib "github.com/ledongthuc/pdf"

	"github.com/dataguard/compliguard/internal/errs"
)

// Text reads the file at path and returns its extracted plain text.
func Text(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("file %s: %w", path, errs.ErrNotFound)
		}
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return FromBytes(data)
}

// FromBytes extracts plain text from raw file bytes.
func FromBytes(data []byte) (string, error) {
	if len(data) == 0 {
		return "", errs.ErrEmptyContent
	}
	if isPDF(data) {
		return extractPDF(data)
	}
	if isZip(data) {
		ok, err := hasDocxParts(data)
		if err != nil {
			return "", fmt.Errorf("openxml detect failed: %w", err)
		}
		if !ok {
			return "", fmt.Errorf("zip container is not a docx: %w", errs.ErrUnsupportedFormat)
		}
		return extractDOCX(data)
	}
	return "", errs.ErrUnsupportedFormat
}

func isPDF(b []byte) bool {
	return len(b) >= 5 && string(b[:5]) == "%PDF-"
}

func isZip(b []byte) bool {
	return len(b) >= 4 && b[0] == 'P' && b[1] == 'K' && b[2] == 3 && b[3] == 4
}

func hasDocxParts(data []byte) (bool, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return false, err
	}
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			return true, nil
		}
	}
	return false, nil
}

func extractPDF(data []byte) (string, error) {
	r, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("pdf reader: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("pdf plaintext: %w", err)
	}
	b, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("pdf read: %w", err)
	}
	return collapseWhitespace(string(b)), nil
}

// documentXML mirrors the parts of word/document.xml we read.
type documentXML struct {
	Body struct {
		Paragraphs []paragraph `xml:"p"`
	} `xml:"body"`
}

type paragraph struct {
	Runs []run `xml:"r"`
}

type run struct {
	Text []textElement `xml:"t"`
}

type textElement struct {
	Content string `xml:",chardata"`
}

func extractDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("docx open: %w", err)
	}
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("docx document.xml open: %w", err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("docx document.xml read: %w", err)
		}

		var doc documentXML
		if err := xml.Unmarshal(content, &doc); err != nil {
			return "", fmt.Errorf("docx document.xml parse: %w", err)
		}

		var out strings.Builder
		for i, para := range doc.Body.Paragraphs {
			if i > 0 {
				out.WriteString("\n")
			}
			for _, r := range para.Runs {
				for _, t := range r.Text {
					out.WriteString(t.Content)
				}
			}
		}
		return strings.TrimSpace(out.String()), nil
	}
	return "", fmt.Errorf("docx missing word/document.xml: %w", errs.ErrUnsupportedFormat)
}

var multiBlank = regexp.MustCompile(`\n{3,}`)

func collapseWhitespace(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = multiBlank.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// Package extract pulls plain text out of uploaded resumes. Only PDF and
// DOCX files are accepted; anything else is rejected before any parsing.
package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

var (
	// ErrUnsupportedFileType indicates the upload is neither PDF nor DOCX.
	ErrUnsupportedFileType = errors.New("unsupported file type: only PDF and DOCX resumes are accepted")
	// ErrEmptyDocument indicates the file parsed but yielded no text.
	ErrEmptyDocument = errors.New("document contains no extractable text")
)

// Supported reports whether the filename has an accepted resume extension.
func Supported(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf", ".docx":
		return true
	}
	return false
}

// Text extracts plain text from a resume, dispatching on the file extension.
func Text(filename string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".pdf":
		return pdfText(data)
	case ".docx":
		return docxText(data)
	}
	slog.Warn("extract.Text: rejected upload", "filename", filename, "ext", ext)
	return "", ErrUnsupportedFileType
}

// pdfText concatenates the plain text of every page.
func pdfText(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to parse PDF: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to read PDF text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("failed to read PDF text: %w", err)
	}
	text := strings.TrimSpace(buf.String())
	if text == "" {
		return "", ErrEmptyDocument
	}
	return text, nil
}

// docxText reads word/document.xml out of the DOCX archive and collects the
// text runs, inserting a newline at each paragraph boundary.
func docxText(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open DOCX archive: %w", err)
	}
	var doc io.ReadCloser
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			doc, err = f.Open()
			if err != nil {
				return "", fmt.Errorf("failed to open DOCX document: %w", err)
			}
			break
		}
	}
	if doc == nil {
		return "", errors.New("DOCX archive has no word/document.xml")
	}
	defer doc.Close()

	var sb strings.Builder
	dec := xml.NewDecoder(doc)
	inText := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to parse DOCX document: %w", err)
		}
		switch el := tok.(type) {
		case xml.StartElement:
			if el.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch el.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				sb.Write(el)
			}
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", ErrEmptyDocument
	}
	return text, nil
}

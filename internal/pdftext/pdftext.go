// Package pdftext pulls plain text out of uploaded PDF files.
package pdftext

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// MaxFiles is the most PDFs accepted for one study.
const MaxFiles = 20

var (
	ErrNoFiles      = errors.New("Please upload at least one PDF")
	ErrTooManyFiles = fmt.Errorf("Maximum %d PDF files allowed", MaxFiles)
	ErrNoText       = errors.New("no text could be extracted from the uploaded PDFs")
)

// File is one uploaded document.
type File struct {
	Name string
	Data []byte
}

// Extract returns the plain text of a single PDF.
func Extract(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// Extractor turns one PDF into text. Extract is the production implementation.
type Extractor func(data []byte) (string, error)

// Combine extracts every file and joins the results, each under a level-one
// heading with the file name so topic splitting keeps documents apart. Files
// that fail or yield no text are reported in skipped.
func Combine(files []File, extract Extractor) (content string, names []string, skipped []string, err error) {
	if len(files) == 0 {
		return "", nil, nil, ErrNoFiles
	}
	if len(files) > MaxFiles {
		return "", nil, nil, ErrTooManyFiles
	}
	if extract == nil {
		extract = Extract
	}
	var parts []string
	for _, f := range files {
		names = append(names, f.Name)
		text, xerr := extract(f.Data)
		if xerr != nil || text == "" {
			skipped = append(skipped, f.Name)
			continue
		}
		parts = append(parts, fmt.Sprintf("# %s\n\n%s", strings.TrimSuffix(f.Name, ".pdf"), text))
	}
	if len(parts) == 0 {
		return "", names, skipped, ErrNoText
	}
	return strings.Join(parts, "\n\n"), names, skipped, nil
}

package cvreview

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kalambet/collegeai/internal/turn"
)

// MaxResumeChars caps the resume text sent to the oracle.
const MaxResumeChars = 20000

var pdfMagic = []byte("%PDF-")

// LoadResume reads a resume file as plain text. PDFs are detected by
// extension or header; anything else is read as UTF-8 text.
func LoadResume(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading resume: %w", err)
	}
	return ResumeText(data, strings.EqualFold(filepath.Ext(path), ".pdf"))
}

// ResumeText extracts text from resume bytes, collapses whitespace and caps
// the result at MaxResumeChars.
func ResumeText(data []byte, isPDF bool) (string, error) {
	text := string(data)
	if isPDF || bytes.HasPrefix(data, pdfMagic) {
		var err error
		if text, err = extractPDF(data); err != nil {
			return "", err
		}
	}
	return turn.Truncate(strings.Join(strings.Fields(text), " "), MaxResumeChars), nil
}

func extractPDF(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
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
	return string(b), nil
}

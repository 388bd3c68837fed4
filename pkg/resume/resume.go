// Package resume turns uploaded résumé documents into bounded plain text.
package resume

import (
	"bytes"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

const (
	// MaxTextLength caps extracted text, in runes.
	MaxTextLength = 3000

	// Unreadable is returned for documents that yield no text.
	Unreadable = "unreadable"

	// NotProvided stands in for a résumé the user never uploaded.
	NotProvided = "not provided"
)

var pdfMagic = []byte("%PDF-")

// Extractor adapts ExtractText to the interfaces that take an extractor.
type Extractor struct{}

// ExtractText implements the extractor contract.
func (Extractor) ExtractText(data []byte) string {
	return ExtractText(data)
}

// ExtractText decodes a PDF or plain-text document. Corrupt, binary or
// empty input yields Unreadable; it never panics.
func ExtractText(data []byte) string {
	var text string
	switch {
	case bytes.HasPrefix(bytes.TrimLeft(data, " \t\r\n"), pdfMagic):
		text = pdfText(data)
	case isPlainText(data):
		text = string(data)
	}

	text = collapse(text)
	if text == "" {
		return Unreadable
	}
	return truncate(text, MaxTextLength)
}

func pdfText(data []byte) (text string) {
	defer func() {
		if recover() != nil {
			text = ""
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return ""
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return ""
	}

	// bound the read; multi-byte runes and collapsed whitespace need headroom
	out, err := io.ReadAll(io.LimitReader(plain, int64(MaxTextLength*8)))
	if err != nil {
		return ""
	}
	return string(out)
}

// isPlainText accepts valid UTF-8 with at most 5% control characters.
func isPlainText(data []byte) bool {
	if len(data) == 0 || !utf8.Valid(data) {
		return false
	}

	control, total := 0, 0
	for _, r := range string(data) {
		total++
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			control++
		}
	}
	return control*20 <= total
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}

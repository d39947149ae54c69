// Package document converts uploaded CV files to plain text.
package document

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
)

// ErrUnsupportedType is returned for files other than PDF, DOCX and TXT.
var ErrUnsupportedType = errors.New("unsupported file type")

// Kind is a supported document format.
type Kind string

const (
	KindPDF  Kind = "pdf"
	KindDOCX Kind = "docx"
	KindTXT  Kind = "txt"
)

var (
	paragraphEnd = regexp.MustCompile(`</w:p>`)
	lineBreak    = regexp.MustCompile(`<w:(?:br|tab)[^>]*/>`)
	xmlTag       = regexp.MustCompile(`<[^>]+>`)
)

// KindOf returns the document kind implied by the filename extension.
func KindOf(filename string) (Kind, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(strings.TrimSpace(filename)), "."))
	switch Kind(ext) {
	case KindPDF, KindDOCX, KindTXT:
		return Kind(ext), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, filepath.Ext(filename))
	}
}

// ContentType returns the MIME type for a kind.
func (k Kind) ContentType() string {
	switch k {
	case KindPDF:
		return "application/pdf"
	case KindDOCX:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	default:
		return "text/plain; charset=utf-8"
	}
}

// ExtractText returns the plain text of an uploaded file. Only an unsupported extension
// is an error. A file that cannot be parsed yields empty text, which the caller treats
// as a document without skills.
func ExtractText(filename string, data []byte) (string, error) {
	kind, err := KindOf(filename)
	if err != nil {
		return "", err
	}

	var text string
	switch kind {
	case KindPDF:
		text, err = extractPDF(data)
	case KindDOCX:
		text, err = extractDOCX(data)
	case KindTXT:
		text = string(bytes.ToValidUTF8(data, []byte(" ")))
	}
	if err != nil {
		return "", nil
	}

	return strings.TrimSpace(text), nil
}

func extractPDF(data []byte) (text string, err error) {
	// The pdf reader panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("reading pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("reading pdf: %w", err)
	}

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(content)
		b.WriteString("\n")
	}
	return b.String(), nil
}

func extractDOCX(data []byte) (string, error) {
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("reading docx: %w", err)
	}
	defer doc.Close()

	return stripWordXML(doc.Editable().GetContent()), nil
}

// stripWordXML turns WordprocessingML into plain text with one line per paragraph.
func stripWordXML(content string) string {
	content = paragraphEnd.ReplaceAllString(content, "\n")
	content = lineBreak.ReplaceAllString(content, " ")
	content = xmlTag.ReplaceAllString(content, "")

	return html.UnescapeString(content)
}

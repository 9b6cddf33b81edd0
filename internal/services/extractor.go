package services

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"

	"resuchain/resume-pipeline/internal/apperror"
)

type DocumentFormat string

const (
	FormatPDF  DocumentFormat = "pdf"
	FormatDOCX DocumentFormat = "docx"
)

var supportedExtensions = map[string]DocumentFormat{
	".pdf":  FormatPDF,
	".docx": FormatDOCX,
	".doc":  FormatDOCX,
}

// FormatFromFilename maps a file name to its declared format using a
// case-insensitive extension match.
func FormatFromFilename(name string) (DocumentFormat, error) {
	ext := strings.ToLower(filepath.Ext(name))
	format, ok := supportedExtensions[ext]
	if !ok {
		return "", apperror.UnsupportedFormat(ext)
	}
	return format, nil
}

type TextExtractor interface {
	Extract(blob []byte, format DocumentFormat) (string, error)
}

type textExtractor struct{}

func NewTextExtractor() TextExtractor {
	return &textExtractor{}
}

// Extract implements TextExtractor.
func (e *textExtractor) Extract(blob []byte, format DocumentFormat) (text string, err error) {
	// Both decoders can panic on malformed input.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = apperror.CorruptDocument(fmt.Errorf("decoder panic: %v", r))
		}
	}()

	switch format {
	case FormatPDF:
		return extractPDF(blob)
	case FormatDOCX:
		return extractDOCX(blob)
	default:
		return "", apperror.UnsupportedFormat(string(format))
	}
}

func extractPDF(blob []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(blob), int64(len(blob)))
	if err != nil {
		return "", apperror.CorruptDocument(fmt.Errorf("failed to open PDF: %w", err))
	}

	var textBuilder strings.Builder
	totalPage := reader.NumPage()

	for pageIndex := 1; pageIndex <= totalPage; pageIndex++ {
		page := reader.Page(pageIndex)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", apperror.CorruptDocument(fmt.Errorf("failed to read page %d: %w", pageIndex, err))
		}

		textBuilder.WriteString(text)
		textBuilder.WriteString("\n")
	}

	return textBuilder.String(), nil
}

func extractDOCX(blob []byte) (string, error) {
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(blob), int64(len(blob)))
	if err != nil {
		return "", apperror.CorruptDocument(fmt.Errorf("failed to open DOCX: %w", err))
	}
	defer doc.Close()

	return paragraphText(doc.Editable().GetContent()), nil
}

// paragraphText turns WordprocessingML body markup into plain text with one
// line per paragraph, in document order.
func paragraphText(content string) string {
	var out strings.Builder
	var line strings.Builder

	for len(content) > 0 {
		start := strings.IndexByte(content, '<')
		if start < 0 {
			line.WriteString(content)
			break
		}
		line.WriteString(content[:start])

		end := strings.IndexByte(content[start:], '>')
		if end < 0 {
			break
		}
		tag := content[start+1 : start+end]
		content = content[start+end+1:]

		switch {
		case tag == "/w:p" || (strings.HasPrefix(tag, "w:p") && strings.HasSuffix(tag, "/") && isParagraphTag(tag)):
			out.WriteString(strings.TrimSpace(unescapeXML(line.String())))
			out.WriteString("\n")
			line.Reset()
		case tag == "w:tab/" || tag == "w:tab":
			line.WriteString("\t")
		case strings.HasPrefix(tag, "w:br"), strings.HasPrefix(tag, "w:cr"):
			line.WriteString("\n")
		}
	}

	if rest := strings.TrimSpace(unescapeXML(line.String())); rest != "" {
		out.WriteString(rest)
		out.WriteString("\n")
	}

	return out.String()
}

func isParagraphTag(tag string) bool {
	name := strings.TrimSuffix(tag, "/")
	if i := strings.IndexByte(name, ' '); i >= 0 {
		name = name[:i]
	}
	return name == "w:p"
}

var xmlEntities = strings.NewReplacer(
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&apos;", "'",
	"&amp;", "&",
)

func unescapeXML(s string) string {
	return xmlEntities.Replace(s)
}

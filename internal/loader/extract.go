package loader

import (
	"archive/zip"
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/lu4p/cat"
	"github.com/xuri/excelize/v2"
	"golang.org/x/net/html"
)

// Format names returned in Document.Format.
const (
	formatPDF  = "pdf"
	formatText = "text"
	formatHTML = "html"
	formatDOCX = "docx"
	formatODT  = "odt"
	formatRTF  = "rtf"
	formatXLSX = "xlsx"
)

// formatForExt maps a file extension to an extractor. Unknown extensions are
// read as plain text.
func formatForExt(ext string) string {
	switch strings.ToLower(ext) {
	case ".pdf":
		return formatPDF
	case ".docx":
		return formatDOCX
	case ".odt":
		return formatODT
	case ".rtf":
		return formatRTF
	case ".xlsx":
		return formatXLSX
	case ".html", ".htm":
		return formatHTML
	case ".doc", ".xls", ".ppt", ".pptx", ".epub", ".zip", ".png", ".jpg", ".jpeg":
		return ""
	default:
		return formatText
	}
}

// formatForContentType maps a response media type to an extractor, or ""
// when the type says nothing useful.
func formatForContentType(mediaType string) string {
	switch mediaType {
	case "application/pdf", "application/x-pdf":
		return formatPDF
	case "text/html", "application/xhtml+xml":
		return formatHTML
	case "application/rtf", "text/rtf":
		return formatRTF
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return formatDOCX
	case "application/vnd.oasis.opendocument.text":
		return formatODT
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return formatXLSX
	}
	if strings.HasPrefix(mediaType, "text/") {
		return formatText
	}
	return ""
}

// Extract converts content of the given format to plain text.
func Extract(format string, content []byte) (string, error) {
	var (
		text string
		err  error
	)
	switch format {
	case formatPDF:
		text, err = extractPDF(content)
	case formatDOCX:
		text, err = extractDOCX(content)
	case formatODT, formatRTF:
		text, err = cat.FromBytes(content)
		if err != nil {
			err = fmt.Errorf("extract %s: %w", format, err)
		}
	case formatXLSX:
		text, err = extractExcel(content)
	case formatHTML:
		text = extractHTML(content)
	case formatText:
		text = extractPlain(content)
	default:
		return "", ErrUnsupportedFormat
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func extractPDF(content []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open PDF: %w", err)
	}
	var buf strings.Builder
	numPages := r.NumPage()
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("extract page %d: %w", i, err)
		}
		buf.WriteString(text)
		if i < numPages {
			buf.WriteByte('\n')
		}
	}
	return buf.String(), nil
}

// wtTag matches <w:t>text</w:t> with any attributes.
var wtTag = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)

// wpEnd marks paragraph ends so paragraphs stay on separate lines.
var wpEnd = regexp.MustCompile(`</w:p>`)

// extractDOCX reads word/document.xml from the zip container and joins its
// text runs, one line per paragraph.
func extractDOCX(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("extract DOCX: not a zip: %w", err)
	}
	var docXML []byte
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("extract DOCX: open %s: %w", f.Name, err)
		}
		var buf bytes.Buffer
		_, err = buf.ReadFrom(rc)
		_ = rc.Close()
		if err != nil {
			return "", fmt.Errorf("extract DOCX: read %s: %w", f.Name, err)
		}
		docXML = buf.Bytes()
		break
	}
	if docXML == nil {
		return "", fmt.Errorf("extract DOCX: word/document.xml not found")
	}

	var lines []string
	for _, para := range wpEnd.Split(string(docXML), -1) {
		var b strings.Builder
		for _, m := range wtTag.FindAllStringSubmatch(para, -1) {
			b.WriteString(html.UnescapeString(m[1]))
		}
		if line := strings.TrimSpace(b.String()); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n"), nil
}

func extractExcel(content []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("open Excel: %w", err)
	}
	defer f.Close()

	var buf strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("get rows for sheet %q: %w", sheet, err)
		}
		for _, row := range rows {
			buf.WriteString(strings.Join(row, "\t"))
			buf.WriteByte('\n')
		}
	}
	return buf.String(), nil
}

// htmlSkipped elements contribute no text.
var htmlSkipped = map[string]bool{"script": true, "style": true, "noscript": true}

// htmlBlockEnds end a line when closed.
var htmlBlockEnds = map[string]bool{
	"p": true, "div": true, "li": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

var blankRuns = regexp.MustCompile(`\n\s*\n+`)

// extractHTML strips markup from an HTML page, keeping block boundaries as
// line breaks. Comments, doctypes and the bodies of script-like elements
// are dropped.
func extractHTML(content []byte) string {
	z := html.NewTokenizer(bytes.NewReader(content))
	var (
		b    strings.Builder
		skip string
	)
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			// io.EOF or a read error; either way the text so far is kept.
			return blankRuns.ReplaceAllString(b.String(), "\n\n")
		case html.TextToken:
			if skip == "" {
				b.Write(z.Text())
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := string(name)
			switch {
			case skip != "":
			case tag == "br":
				b.WriteByte('\n')
			case tt == html.StartTagToken && htmlSkipped[tag]:
				skip = tag
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if skip != "" {
				if tag == skip {
					skip = ""
				}
				continue
			}
			if htmlBlockEnds[tag] {
				b.WriteByte('\n')
			}
		}
	}
}

// extractPlain returns content as text, replacing invalid UTF-8.
func extractPlain(content []byte) string {
	if utf8.Valid(content) {
		return string(content)
	}
	return strings.ToValidUTF8(string(content), "�")
}

package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// docxBodyPath is the main document part inside a .docx package.
const docxBodyPath = "word/document.xml"

var (
	// paragraphEnd splits the body into paragraphs.
	paragraphEnd = regexp.MustCompile(`</w:p>`)
	// textRun matches <w:t>text</w:t> with any attributes.
	textRun = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)
)

// extractDOCX returns the document body with one line per non-empty paragraph.
// Runs within a paragraph are concatenated as-is; Word splits words across runs freely.
func extractDOCX(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("extract DOCX: not a zip: %w", err)
	}
	var body []byte
	for _, f := range zr.File {
		if f.Name != docxBodyPath {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("extract DOCX: open %s: %w", f.Name, err)
		}
		body, err = io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return "", fmt.Errorf("extract DOCX: read %s: %w", f.Name, err)
		}
		break
	}
	if body == nil {
		return "", fmt.Errorf("extract DOCX: %s not found", docxBodyPath)
	}

	var lines []string
	for _, para := range paragraphEnd.Split(string(body), -1) {
		var line strings.Builder
		for _, m := range textRun.FindAllStringSubmatch(para, -1) {
			line.WriteString(m[1])
		}
		if s := strings.TrimSpace(line.String()); s != "" {
			lines = append(lines, s)
		}
	}
	return strings.Join(lines, "\n"), nil
}

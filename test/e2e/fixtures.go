package e2e

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Extensions is the set of file types the end-to-end corpus uses.
var Extensions = []string{".txt", ".md", ".docx", ".xlsx"}

// WriteCorpus writes every corpus document to dir in the format named by its extension,
// plus the skipped and broken files.
func WriteCorpus(dir string, c *Corpus) error {
	for _, doc := range c.Documents {
		content, err := encode(filepath.Ext(doc.Path), doc.Text)
		if err != nil {
			return fmt.Errorf("encode %s: %w", doc.Path, err)
		}
		if err := writeFile(filepath.Join(dir, filepath.FromSlash(doc.Path)), content); err != nil {
			return err
		}
	}
	for _, name := range c.Skipped {
		if err := writeFile(filepath.Join(dir, name), []byte(" \n\t\n")); err != nil {
			return err
		}
	}
	for _, name := range c.Broken {
		if err := writeFile(filepath.Join(dir, name), []byte("this is not a zip archive")); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(path string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, content, 0600)
}

func encode(ext, text string) ([]byte, error) {
	switch ext {
	case ".docx":
		return docx(text)
	case ".xlsx":
		return xlsx(text)
	default:
		return []byte(text), nil
	}
}

// docx writes one paragraph per line.
func docx(text string) ([]byte, error) {
	var body strings.Builder
	for _, line := range strings.Split(text, "\n") {
		var escaped bytes.Buffer
		if err := xml.EscapeText(&escaped, []byte(line)); err != nil {
			return nil, err
		}
		body.WriteString(`<w:p><w:r><w:t xml:space="preserve">` + escaped.String() + `</w:t></w:r></w:p>`)
	}
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, err := w.Create("word/document.xml")
	if err != nil {
		return nil, err
	}
	_, err = fw.Write([]byte(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body.String() + `</w:body></w:document>`))
	if err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// xlsx writes one row per line and one cell per tab-separated field.
func xlsx(text string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	for r, line := range strings.Split(text, "\n") {
		for c, field := range strings.Split(line, "\t") {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue("Sheet1", cell, field); err != nil {
				return nil, err
			}
		}
	}
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

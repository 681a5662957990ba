package docsource

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var (
	pdfMagic = []byte("%PDF")

	// pageFileRe matches the page number in files written by api.ExtractContentFile,
	// e.g. "schedule_Content_page_3.txt".
	pageFileRe = regexp.MustCompile(`_page_(\d+)`)

	disableConfigDir sync.Once
)

// IsPDF reports whether data starts with the PDF header.
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(bytes.TrimLeft(data, "\x00\t\r\n "), pdfMagic)
}

// PDFText extracts plain text from PDF documents. pdfcpu decodes the page
// content streams; the text-showing operators are then interpreted here.
type PDFText struct {
	conf *model.Configuration
}

// NewPDFText creates an extractor with pdfcpu's default configuration.
func NewPDFText() *PDFText {
	disableConfigDir.Do(api.DisableConfigDir)
	return &PDFText{conf: model.NewDefaultConfiguration()}
}

// Extract returns the document text, pages in order, one text line per line.
func (p *PDFText) Extract(data []byte) (string, error) {
	dir, err := os.MkdirTemp("", "rally-pdf-*")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	inFile := filepath.Join(dir, "schedule.pdf")
	if err := os.WriteFile(inFile, data, 0o600); err != nil {
		return "", fmt.Errorf("write temp pdf: %w", err)
	}

	outDir := filepath.Join(dir, "content")
	if err := os.Mkdir(outDir, 0o700); err != nil {
		return "", fmt.Errorf("create content dir: %w", err)
	}

	if err := api.ExtractContentFile(inFile, outDir, nil, p.conf); err != nil {
		return "", fmt.Errorf("extract pdf content: %w", err)
	}

	files, err := os.ReadDir(outDir)
	if err != nil {
		return "", fmt.Errorf("read content dir: %w", err)
	}

	type page struct {
		num  int
		text string
	}
	var pages []page
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		m := pageFileRe.FindStringSubmatch(f.Name())
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		stream, err := os.ReadFile(filepath.Join(outDir, f.Name()))
		if err != nil {
			return "", fmt.Errorf("read page %d content: %w", n, err)
		}
		pages = append(pages, page{num: n, text: ContentStreamText(stream)})
	}
	sort.SliceStable(pages, func(i, j int) bool { return pages[i].num < pages[j].num })

	var b strings.Builder
	for i, pg := range pages {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(pg.text)
	}
	return b.String(), nil
}

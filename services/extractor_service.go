package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/unidoc/unipdf/v3/common/license"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"

	"github.com/bootiful-ai/carina-rag/models"
)

// DocumentLoader turns a document on disk into formatted pages.
type DocumentLoader interface {
	Load(ctx context.Context, path string) ([]models.Page, error)
}

// PDFLoaderConfig controls how extracted page text is trimmed.
type PDFLoaderConfig struct {
	// BottomLines is the number of trailing lines (footers, page numbers) removed from each page.
	BottomLines int
	// TopLines is the number of leading lines removed from each page.
	TopLines int
	// SkipPages is how many leading pages are left untouched by line removal.
	SkipPages int
}

// PDFLoader reads PDFs page by page with UniPDF.
type PDFLoader struct {
	config PDFLoaderConfig
	log    *logrus.Entry
}

func NewPDFLoader(config PDFLoaderConfig) *PDFLoader {
	return &PDFLoader{
		config: config,
		log:    logrus.WithField("component", "loader"),
	}
}

// ConfigurePDFLicense registers the UniPDF metered key. PDF extraction fails without one.
func ConfigurePDFLicense(key string) error {
	if key == "" {
		logrus.WithField("component", "loader").Warn("UNIDOC_LICENSE_KEY not set, PDF processing will fail.")
		return nil
	}
	if err := license.SetMeteredKey(key); err != nil {
		return fmt.Errorf("failed to set unidoc license key: %w", err)
	}
	return nil
}

// Load extracts every non-blank page of the PDF at path.
func (l *PDFLoader) Load(ctx context.Context, path string) ([]models.Page, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrResourceNotFound, path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrResourceNotFound, path)
	}

	hash, err := calculateFileHash(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrResourceNotFound, path, err)
	}
	documentID := hash[:16]

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrResourceNotFound, path, err)
	}
	defer f.Close()

	pdfReader, err := model.NewPdfReader(f)
	if err != nil {
		return nil, fmt.Errorf("%w: reading pdf %s: %w", ErrResourceNotFound, path, err)
	}

	numPages, err := pdfReader.GetNumPages()
	if err != nil {
		return nil, fmt.Errorf("%w: counting pages of %s: %w", ErrResourceNotFound, path, err)
	}

	fileName := filepath.Base(path)
	pages := make([]models.Page, 0, numPages)
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := pdfReader.GetPage(i)
		if err != nil {
			return nil, fmt.Errorf("%w: page %d of %s: %w", ErrResourceNotFound, i, path, err)
		}
		ex, err := extractor.New(page)
		if err != nil {
			return nil, fmt.Errorf("%w: page %d of %s: %w", ErrResourceNotFound, i, path, err)
		}
		text, err := ex.ExtractText()
		if err != nil {
			return nil, fmt.Errorf("%w: page %d of %s: %w", ErrResourceNotFound, i, path, err)
		}

		text = FormatPageText(text, i-1, l.config)
		if strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, models.Page{
			Number:     i,
			Text:       text,
			FileName:   fileName,
			DocumentID: documentID,
		})
	}

	l.log.Infof("Extracted %d of %d pages from %s", len(pages), numPages, fileName)
	return pages, nil
}

// FormatPageText normalises line endings and removes the configured header
// and footer lines. pageIndex is 0-based.
func FormatPageText(text string, pageIndex int, config PDFLoaderConfig) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	if pageIndex < config.SkipPages {
		return text
	}
	text = deleteTopTextLines(text, config.TopLines)
	return deleteBottomTextLines(text, config.BottomLines)
}

// deleteTopTextLines cuts at the n-th line separator. The separator itself is kept.
func deleteTopTextLines(text string, n int) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	truncate := 0
	for count := 0; count < n; count++ {
		if truncate+1 > len(text) {
			break
		}
		next := strings.Index(text[truncate+1:], "\n")
		if next < 0 {
			break
		}
		truncate += 1 + next
	}
	return text[truncate:]
}

// deleteBottomTextLines walks back over n line separators. The first line
// always survives and a trailing newline counts as an empty line.
func deleteBottomTextLines(text string, n int) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	truncate := len(text)
	for count := 0; count < n; count++ {
		next := strings.LastIndex(text[:truncate], "\n")
		if next < 0 {
			break
		}
		truncate = next
	}
	return text[:truncate]
}

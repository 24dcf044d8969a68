package service

import (
	"context"
	"fmt"
	"os"
	"unicode/utf8"

	"statement-parser/pkg/config"

	"github.com/dslipak/pdf"
	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"
)

// MinFirstPageChars is the page-1 text length below which page 2 is read too.
const MinFirstPageChars = 100

// PDFDocument is the slice of a PDF library the extractor needs.
// Page numbers are zero-based.
type PDFDocument interface {
	NumPage() int
	Text(page int) (string, error)
	Close() error
}

// PDFOpener opens the PDF at path.
type PDFOpener func(path string) (PDFDocument, error)

// NewPDFOpener returns the opener for a config.PDFBackend* name.
func NewPDFOpener(backend string) (PDFOpener, error) {
	switch backend {
	case config.PDFBackendFitz, "":
		return OpenFitz, nil
	case config.PDFBackendPure:
		return OpenPure, nil
	default:
		return nil, fmt.Errorf("unknown PDF backend %q", backend)
	}
}

// OpenFitz opens a document with MuPDF through go-fitz.
func OpenFitz(path string) (PDFDocument, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

type purePDF struct {
	file   *os.File
	reader *pdf.Reader
}

// OpenPure opens a document with the pure-Go dslipak/pdf reader.
func OpenPure(path string) (PDFDocument, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	r, err := pdf.NewReader(f, fi.Size())
	if err != nil {
		f.Close()
		return nil, err
	}
	return &purePDF{file: f, reader: r}, nil
}

func (p *purePDF) NumPage() int { return p.reader.NumPage() }

func (p *purePDF) Text(page int) (string, error) {
	pg := p.reader.Page(page + 1)
	if pg.V.IsNull() {
		return "", nil
	}
	return pg.GetPlainText(nil)
}

func (p *purePDF) Close() error { return p.file.Close() }

type TextExtractor struct {
	open   PDFOpener
	logger *zap.Logger
}

func NewTextExtractor(open PDFOpener, logger *zap.Logger) *TextExtractor {
	return &TextExtractor{
		open:   open,
		logger: logger,
	}
}

// Extract returns the text of page 1, plus page 2 when page 1 is shorter
// than MinFirstPageChars. Later pages are never read. Failures are
// *ProcessingError of KindExtraction; an empty result is not an error.
func (e *TextExtractor) Extract(ctx context.Context, path string) (text string, err error) {
	if err := ctx.Err(); err != nil {
		return "", newProcessingError(KindExtraction, err)
	}

	// PDF readers panic on some malformed files
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = newProcessingError(KindExtraction, fmt.Errorf("pdf reader panic: %v", r))
		}
	}()

	e.logger.Debug("Opening PDF for text extraction", zap.String("file", path))

	doc, err := e.open(path)
	if err != nil {
		e.logger.Error("Failed to open PDF", zap.String("file", path), zap.Error(err))
		return "", newProcessingError(KindExtraction, fmt.Errorf("failed to open PDF: %w", err))
	}
	defer doc.Close()

	pages := doc.NumPage()
	if pages > 0 {
		text, err = doc.Text(0)
		if err != nil {
			return "", newProcessingError(KindExtraction, fmt.Errorf("failed to extract page 1: %w", err))
		}
	}

	if utf8.RuneCountInString(text) < MinFirstPageChars && pages > 1 {
		e.logger.Info("First page text insufficient, extracting second page",
			zap.String("file", path),
			zap.Int("first_page_chars", utf8.RuneCountInString(text)),
		)
		second, err := doc.Text(1)
		if err != nil {
			return "", newProcessingError(KindExtraction, fmt.Errorf("failed to extract page 2: %w", err))
		}
		text += second
	}

	text = sanitizeUTF8(text)

	e.logger.Info("PDF text extracted",
		zap.String("file", path),
		zap.Int("pages", pages),
		zap.Int("text_length", utf8.RuneCountInString(text)),
	)

	return text, nil
}

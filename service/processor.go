package service

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
)

const (
	mimePDF  = "application/pdf"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeText = "text/plain"
)

// CommandRunner executes an external command and returns its stdout.
// It exists so tests can substitute a fake for pdftotext.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Validation is the outcome of upload validation
type Validation struct {
	Size     int64
	MimeType string
}

// ProcessResult is the output of the full document-processing step
type ProcessResult struct {
	Size        int64
	MimeType    string
	Fingerprint string
	RawText     string
	WordCount   int
	CharCount   int
}

// Processor validates uploads, extracts text, and computes content fingerprints
type Processor struct {
	cfg    Config
	runner CommandRunner
}

// ProcessorOption is a functional option for Processor
type ProcessorOption func(*Processor)

// WithCommandRunner sets the runner used for external extraction tools
func WithCommandRunner(r CommandRunner) ProcessorOption {
	return func(p *Processor) {
		p.runner = r
	}
}

// NewProcessor creates a new document processor
func NewProcessor(cfg Config, opts ...ProcessorOption) *Processor {
	p := &Processor{cfg: cfg, runner: execRunner{}}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Validate checks size and content type of an upload. The MIME type is
// determined by sniffing the bytes, never by the declared filename; a
// declared hint that disagrees with the content is reported in the error.
func (p *Processor) Validate(data []byte, declaredName string) (*Validation, error) {
	if len(data) == 0 {
		return nil, &ValidationError{Reason: "file is empty"}
	}
	if int64(len(data)) > p.cfg.MaxFileSize {
		return nil, &ValidationError{
			Reason: fmt.Sprintf("file too large: %d bytes exceeds maximum of %d", len(data), p.cfg.MaxFileSize),
		}
	}

	detected := mimetype.Detect(data)
	mimeType := baseMimeType(detected.String())

	if declared := declaredMimeType(declaredName); declared != "" && declared != mimeType {
		return nil, &ValidationError{
			Reason: fmt.Sprintf("content type %s does not match declared type %s for %q", mimeType, declared, declaredName),
		}
	}
	if !p.cfg.AllowedMimeTypes[mimeType] {
		return nil, &ValidationError{
			Reason: fmt.Sprintf("unsupported file format: %s (allowed: PDF, DOCX, TXT)", mimeType),
		}
	}

	return &Validation{Size: int64(len(data)), MimeType: mimeType}, nil
}

// Fingerprint computes the SHA-256 content hash used as the dedup key.
// It is deterministic for identical bytes and is not a security credential.
func (p *Processor) Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ExtractText extracts plain text from the document bytes based on MIME type
func (p *Processor) ExtractText(ctx context.Context, data []byte, mimeType string) (string, error) {
	switch mimeType {
	case mimePDF:
		return p.extractPDF(ctx, data)
	case mimeDOCX:
		return p.extractDOCX(data)
	case mimeText:
		return p.extractPlainText(data)
	default:
		return "", &ExtractionError{MimeType: mimeType, Err: errors.New("unsupported MIME type")}
	}
}

// Process runs validation, fingerprinting, and extraction over raw bytes
func (p *Processor) Process(ctx context.Context, data []byte, declaredName string) (*ProcessResult, error) {
	validation, err := p.Validate(data, declaredName)
	if err != nil {
		return nil, err
	}

	fingerprint := p.Fingerprint(data)

	text, err := p.ExtractText(ctx, data, validation.MimeType)
	if err != nil {
		return nil, err
	}

	return &ProcessResult{
		Size:        validation.Size,
		MimeType:    validation.MimeType,
		Fingerprint: fingerprint,
		RawText:     text,
		WordCount:   len(strings.Fields(text)),
		CharCount:   len([]rune(text)),
	}, nil
}

// extractPDF extracts text via pdftotext. The bytes are written to a
// temporary file because pdftotext does not read PDF input from stdin.
func (p *Processor) extractPDF(ctx context.Context, data []byte) (string, error) {
	tmp, err := os.CreateTemp("", "auditsync-*.pdf")
	if err != nil {
		return "", &ExtractionError{MimeType: mimePDF, Err: err}
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", &ExtractionError{MimeType: mimePDF, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return "", &ExtractionError{MimeType: mimePDF, Err: err}
	}

	out, err := p.runner.Run(ctx, "pdftotext", "-layout", "-q", tmp.Name(), "-")
	if err != nil {
		return "", &ExtractionError{MimeType: mimePDF, Err: fmt.Errorf("pdftotext: %w", err)}
	}

	text := strings.TrimSpace(string(out))
	if text == "" {
		return "", &ExtractionError{MimeType: mimePDF, Err: errors.New("no extractable text (scanned or encrypted document?)")}
	}
	return text, nil
}

// docx XML structure: paragraphs (w:p) containing text runs (w:t)
type docxDocument struct {
	Body docxBody `xml:"body"`
}

type docxBody struct {
	Paragraphs []docxParagraph `xml:"p"`
}

type docxParagraph struct {
	Runs []string `xml:"r>t"`
}

// extractDOCX extracts text from the DOCX ZIP container's word/document.xml
func (p *Processor) extractDOCX(data []byte) (string, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", &ExtractionError{MimeType: mimeDOCX, Err: fmt.Errorf("not a valid DOCX archive: %w", err)}
	}

	var docXML []byte
	for _, f := range reader.File {
		if filepath.ToSlash(f.Name) == "word/document.xml" {
			rc, err := f.Open()
			if err != nil {
				return "", &ExtractionError{MimeType: mimeDOCX, Err: err}
			}
			docXML, err = io.ReadAll(rc)
			rc.Close()
			if err != nil {
				return "", &ExtractionError{MimeType: mimeDOCX, Err: err}
			}
			break
		}
	}
	if docXML == nil {
		return "", &ExtractionError{MimeType: mimeDOCX, Err: errors.New("word/document.xml missing from archive")}
	}

	var doc docxDocument
	if err := xml.Unmarshal(docXML, &doc); err != nil {
		return "", &ExtractionError{MimeType: mimeDOCX, Err: fmt.Errorf("malformed document.xml: %w", err)}
	}

	var builder strings.Builder
	for i, para := range doc.Body.Paragraphs {
		if i > 0 {
			builder.WriteString("\n")
		}
		for _, run := range para.Runs {
			builder.WriteString(run)
		}
	}

	return strings.TrimSpace(builder.String()), nil
}

// extractPlainText validates and returns UTF-8 text content
func (p *Processor) extractPlainText(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", &ExtractionError{MimeType: mimeText, Err: errors.New("content is not valid UTF-8")}
	}
	return strings.TrimSpace(string(data)), nil
}

// baseMimeType strips parameters like "; charset=utf-8" from a MIME string
func baseMimeType(m string) string {
	if idx := strings.Index(m, ";"); idx >= 0 {
		m = m[:idx]
	}
	return strings.TrimSpace(m)
}

// declaredMimeType maps a filename extension to the type the client implied
func declaredMimeType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return mimePDF
	case ".docx":
		return mimeDOCX
	case ".txt":
		return mimeText
	default:
		return ""
	}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"statement-parser/internal/models"
	"statement-parser/pkg/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// User-facing error markers for failed rows.
const (
	MessageEmptyText        = "Empty text. File might be an image."
	MessageExtractionFailed = "Processing failed: unreadable PDF"
	MessageInferenceFailed  = "Processing failed: inference server unavailable"
	MessageDecodeFailed     = "Processing failed: unusable model response"
	MessageFailed           = "Processing failed"
)

// UploadedFile is one file of a batch. Open is called once.
type UploadedFile struct {
	Filename string
	Open     func() (io.ReadCloser, error)
}

// Extractor pulls the leading text out of a PDF on disk.
type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

type StatementService struct {
	extractor  Extractor
	inferencer Inferencer
	metrics    *metrics.Metrics
	uploadDir  string
	logger     *zap.Logger
}

func NewStatementService(
	extractor Extractor,
	inferencer Inferencer,
	m *metrics.Metrics,
	uploadDir string,
	logger *zap.Logger,
) (*StatementService, error) {
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	return &StatementService{
		extractor:  extractor,
		inferencer: inferencer,
		metrics:    m,
		uploadDir:  uploadDir,
		logger:     logger,
	}, nil
}

// ProcessBatch runs every file through the pipeline, one at a time, and
// returns one record per file in upload order. A failing file becomes an
// error record; it never stops the batch.
func (s *StatementService) ProcessBatch(ctx context.Context, model string, files []UploadedFile) *models.ResultSet {
	s.logger.Info("Starting batch processing",
		zap.Int("files", len(files)),
		zap.String("model", model),
	)

	rs := &models.ResultSet{Model: model}
	for _, file := range files {
		rs.Add(s.ProcessFile(ctx, model, file))
	}

	s.logger.Info("Batch processing complete",
		zap.Int("files", len(files)),
		zap.Int("failed", rs.FailedCount()),
	)
	return rs
}

// ProcessFile saves the upload to a uniquely named scratch file, runs
// extract → infer → validate on it, and removes the scratch file on every
// exit path.
func (s *StatementService) ProcessFile(ctx context.Context, model string, file UploadedFile) *models.StatementRecord {
	log := s.logger.With(zap.String("filename", file.Filename))
	log.Info("Received file")

	path, err := s.saveScratch(file)
	if err != nil {
		log.Error("Failed to save upload", zap.Error(err))
		return s.finish(log, failedRecord(file.Filename, models.StatusFailed, MessageFailed))
	}
	defer s.removeScratch(log, path)

	text, err := s.extractor.Extract(ctx, path)
	if err != nil {
		log.Error("Text extraction failed", zap.Error(err))
		return s.finish(log, failedRecord(file.Filename, models.StatusExtractionFailed, MessageExtractionFailed))
	}
	if strings.TrimSpace(text) == "" {
		log.Warn("No text found, possibly a scanned image")
		return s.finish(log, failedRecord(file.Filename, models.StatusEmptyText, MessageEmptyText))
	}

	start := time.Now()
	fields, err := s.inferencer.Infer(ctx, model, BuildPrompt(text))
	if err != nil {
		s.metrics.ObserveInference(model, "error", time.Since(start))
		log.Error("Inference failed", zap.Error(err))
		return s.finish(log, inferenceFailure(file.Filename, err))
	}
	s.metrics.ObserveInference(model, "ok", time.Since(start))

	record := &models.StatementRecord{
		Filename: file.Filename,
		Fields:   fields,
		Status:   models.StatusOK,
	}
	if ValidateIssuer(fields, text) {
		record.IssuerGuessed = true
		s.metrics.IssuerGuessed()
		log.Warn("Extracted issuer not found in text, flagged as guess")
	}

	return s.finish(log, record)
}

func (s *StatementService) finish(log *zap.Logger, record *models.StatementRecord) *models.StatementRecord {
	s.metrics.FileProcessed(string(record.Status))
	log.Info("File recorded", zap.String("status", string(record.Status)))
	return record
}

func (s *StatementService) saveScratch(file UploadedFile) (string, error) {
	src, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open upload: %w", err)
	}
	defer src.Close()

	// never derived from the client-supplied name
	path := filepath.Join(s.uploadDir, uuid.New().String()+".pdf")

	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("failed to create scratch file: %w", err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to save file: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to save file: %w", err)
	}
	return path, nil
}

func (s *StatementService) removeScratch(log *zap.Logger, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("Failed to remove temporary file", zap.String("path", path), zap.Error(err))
		return
	}
	log.Debug("Temporary file removed", zap.String("path", path))
}

func failedRecord(filename string, status models.RecordStatus, message string) *models.StatementRecord {
	return &models.StatementRecord{
		Filename: filename,
		Status:   status,
		Error:    message,
	}
}

func inferenceFailure(filename string, err error) *models.StatementRecord {
	kind, _ := FailureKindOf(err)
	switch kind {
	case KindInferenceDecode:
		return failedRecord(filename, models.StatusInferenceFailed, MessageDecodeFailed)
	case KindInferenceConnection:
		return failedRecord(filename, models.StatusInferenceFailed, MessageInferenceFailed)
	default:
		return failedRecord(filename, models.StatusFailed, MessageFailed)
	}
}

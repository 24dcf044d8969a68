package handlers

import (
	"context"
	"io"
	"mime/multipart"
	"strings"

	"statement-parser/internal/models"
	"statement-parser/internal/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	csvFilename  = "parsed_statements.csv"
	xlsxFilename = "parsed_statements.xlsx"
	xlsxMIME     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// BatchProcessor runs uploaded statements through the extraction pipeline.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, model string, files []service.UploadedFile) *models.ResultSet
}

type StatementHandler struct {
	processor    BatchProcessor
	defaultModel string
	logger       *zap.Logger
}

func NewStatementHandler(processor BatchProcessor, defaultModel string, logger *zap.Logger) *StatementHandler {
	return &StatementHandler{
		processor:    processor,
		defaultModel: defaultModel,
		logger:       logger,
	}
}

// Index renders the empty upload form.
func (h *StatementHandler) Index(c *fiber.Ctx) error {
	return renderPage(c, fiber.StatusOK, PageData{ModelName: h.defaultModel})
}

// Upload parses every file of the multipart "files" field with the model
// named in "model_name" and renders the result table plus its CSV text.
func (h *StatementHandler) Upload(c *fiber.Ctx) error {
	modelName := strings.TrimSpace(c.FormValue("model_name"))
	if modelName == "" {
		modelName = h.defaultModel
	}

	form, err := c.MultipartForm()
	if err != nil {
		h.logger.Warn("POST without a multipart body", zap.Error(err))
		return fiber.NewError(fiber.StatusBadRequest, "No files selected")
	}

	headers := form.File["files"]
	if len(headers) == 0 || headers[0].Filename == "" {
		h.logger.Warn("POST request received but no files were selected")
		return fiber.NewError(fiber.StatusBadRequest, "No files selected")
	}

	files := make([]service.UploadedFile, 0, len(headers))
	for _, fh := range headers {
		files = append(files, uploadedFile(fh))
	}

	rs := h.processor.ProcessBatch(c.UserContext(), modelName, files)

	csvText, err := service.EncodeCSV(rs)
	if err != nil {
		return &RequestError{Op: "encode results", Err: err}
	}

	h.logger.Info("Rendering results table",
		zap.Int("rows", len(rs.Records)),
		zap.Int("failed", rs.FailedCount()),
	)
	return renderPage(c, fiber.StatusOK, resultPage(rs, csvText))
}

// Download returns the posted CSV text unchanged as an attachment.
func (h *StatementHandler) Download(c *fiber.Ctx) error {
	csvContent := c.FormValue("csv_content")
	if csvContent == "" {
		h.logger.Warn("Download requested but no CSV content found in form data")
		return fiber.NewError(fiber.StatusBadRequest, "No data to download")
	}

	c.Attachment(csvFilename)
	c.Set(fiber.HeaderContentType, "text/csv")
	return c.Send([]byte(csvContent))
}

// DownloadXLSX converts the posted CSV text into a workbook.
func (h *StatementHandler) DownloadXLSX(c *fiber.Ctx) error {
	csvContent := c.FormValue("csv_content")
	if csvContent == "" {
		return fiber.NewError(fiber.StatusBadRequest, "No data to download")
	}

	header, rows, err := service.DecodeCSV(csvContent)
	if err != nil {
		h.logger.Warn("Invalid CSV posted for XLSX export", zap.Error(err))
		return fiber.NewError(fiber.StatusBadRequest, "Invalid CSV data")
	}

	b, err := service.EncodeXLSX(header, rows)
	if err != nil {
		return &RequestError{Op: "encode workbook", Err: err}
	}

	c.Attachment(xlsxFilename)
	c.Set(fiber.HeaderContentType, xlsxMIME)
	return c.Send(b)
}

func uploadedFile(fh *multipart.FileHeader) service.UploadedFile {
	return service.UploadedFile{
		Filename: fh.Filename,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

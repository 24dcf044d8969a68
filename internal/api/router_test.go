package api

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"statement-parser/internal/api/handlers"
	"statement-parser/internal/models"
	"statement-parser/internal/service"
	"statement-parser/pkg/config"
	"statement-parser/pkg/metrics"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

type fakeProcessor struct {
	model    string
	files    []string
	contents []string
	result   func(model string, names []string) *models.ResultSet
}

func (p *fakeProcessor) ProcessBatch(_ context.Context, model string, files []service.UploadedFile) *models.ResultSet {
	p.model = model
	for _, f := range files {
		p.files = append(p.files, f.Filename)
		rc, err := f.Open()
		if err == nil {
			b, _ := io.ReadAll(rc)
			rc.Close()
			p.contents = append(p.contents, string(b))
		}
	}
	if p.result != nil {
		return p.result(model, p.files)
	}

	rs := &models.ResultSet{Model: model}
	for _, name := range p.files {
		fields := models.NewFields()
		fields.Set("issuer", models.StringValue("ABC Bank"))
		fields.Set("total_balance", models.StringValue("1,234.56"))
		rs.Add(&models.StatementRecord{Filename: name, Fields: fields, Status: models.StatusOK})
	}
	return rs
}

func newTestApp(t *testing.T, p handlers.BatchProcessor) *fiber.App {
	t.Helper()
	reg := prometheus.NewRegistry()
	metrics.New(reg).FileProcessed("ok")

	cfg := &config.ServerConfig{
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		BodyLimit:    4 * 1024 * 1024,
	}
	h := handlers.NewStatementHandler(p, "llama3.2:1b", zap.NewNop())
	return SetupRouter(h, reg, cfg, "llama3.2:1b", zap.NewNop())
}

type formFile struct {
	name    string
	content string
}

func multipartRequest(t *testing.T, model string, files ...formFile) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if model != "" {
		require.NoError(t, w.WriteField("model_name", model))
	}
	for _, f := range files {
		part, err := w.CreateFormFile("files", f.name)
		require.NoError(t, err)
		_, err = part.Write([]byte(f.content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func formRequest(path string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func TestRouter_IndexRendersForm(t *testing.T) {
	app := newTestApp(t, &fakeProcessor{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	body := readBody(t, resp)
	assert.Contains(t, body, `name="files"`)
	assert.Contains(t, body, `value="llama3.2:1b"`)
	assert.NotContains(t, body, "<table")
}

func TestRouter_UploadRendersTableAndCSV(t *testing.T) {
	p := &fakeProcessor{}
	app := newTestApp(t, p)

	req := multipartRequest(t, "qwen2.5:3b",
		formFile{"jan.pdf", "%PDF-jan"},
		formFile{"feb.pdf", "%PDF-feb"},
	)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := readBody(t, resp)
	assert.Equal(t, "qwen2.5:3b", p.model)
	assert.Equal(t, []string{"jan.pdf", "feb.pdf"}, p.files)
	assert.Equal(t, []string{"%PDF-jan", "%PDF-feb"}, p.contents)

	assert.Contains(t, body, `class="table table-striped"`)
	assert.Contains(t, body, "<th>filename</th><th>issuer</th><th>total_balance</th>")
	assert.Contains(t, body, "<td>jan.pdf</td><td>ABC Bank</td><td>1,234.56</td>")
	assert.Contains(t, body, `name="csv_content"`)
	assert.Contains(t, body, "&#34;1,234.56&#34;")
}

func TestRouter_UploadDefaultsModel(t *testing.T) {
	p := &fakeProcessor{}
	app := newTestApp(t, p)

	resp, err := app.Test(multipartRequest(t, "", formFile{"a.pdf", "x"}), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "llama3.2:1b", p.model)
}

func TestRouter_UploadWithoutFiles(t *testing.T) {
	tests := []struct {
		name string
		req  func(t *testing.T) *http.Request
	}{
		{"no file parts", func(t *testing.T) *http.Request { return multipartRequest(t, "m") }},
		{"empty filename", func(t *testing.T) *http.Request { return multipartRequest(t, "m", formFile{"", ""}) }},
		{"not multipart", func(*testing.T) *http.Request { return formRequest("/", url.Values{"model_name": {"m"}}) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakeProcessor{}
			app := newTestApp(t, p)

			resp, err := app.Test(tt.req(t), -1)
			require.NoError(t, err)

			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
			assert.Contains(t, readBody(t, resp), "No files selected")
			assert.Empty(t, p.files)
		})
	}
}

func TestRouter_DownloadEchoesCSV(t *testing.T) {
	app := newTestApp(t, &fakeProcessor{})

	resp, err := app.Test(formRequest("/download", url.Values{"csv_content": {"a,b\n1,2"}}), -1)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), `filename="parsed_statements.csv"`)
	assert.Equal(t, "a,b\n1,2", readBody(t, resp))
}

func TestRouter_DownloadWithoutContent(t *testing.T) {
	app := newTestApp(t, &fakeProcessor{})

	for _, path := range []string{"/download", "/download/xlsx"} {
		resp, err := app.Test(formRequest(path, url.Values{}), -1)
		require.NoError(t, err)

		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode, path)
		assert.Contains(t, readBody(t, resp), "No data to download", path)
	}
}

func TestRouter_DownloadXLSX(t *testing.T) {
	app := newTestApp(t, &fakeProcessor{})

	csvText := "filename,issuer,total_balance\njan.pdf,ABC Bank,1234.56\n"
	resp, err := app.Test(formRequest("/download/xlsx", url.Values{"csv_content": {csvText}}), -1)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), `filename="parsed_statements.xlsx"`)

	f, err := excelize.OpenReader(strings.NewReader(readBody(t, resp)))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"filename", "issuer", "total_balance"}, rows[0])
	assert.Equal(t, "jan.pdf", rows[1][0])
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	app := newTestApp(t, &fakeProcessor{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/healthz", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, readBody(t, resp))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "statement_parser_files_processed_total")
}

func TestRouter_PanicRendersGenericError(t *testing.T) {
	p := &fakeProcessor{result: func(string, []string) *models.ResultSet { panic("boom") }}
	app := newTestApp(t, p)

	resp, err := app.Test(multipartRequest(t, "m", formFile{"a.pdf", "x"}), -1)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	body := readBody(t, resp)
	assert.Contains(t, body, genericFailureMessage)
	assert.NotContains(t, body, "boom")
}

func TestRouter_UnknownRoute(t *testing.T) {
	app := newTestApp(t, &fakeProcessor{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/missing", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

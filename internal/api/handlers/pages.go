package handlers

import (
	"bytes"
	"embed"
	"html/template"

	"statement-parser/internal/models"

	"github.com/gofiber/fiber/v2"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// PageData feeds the index template.
type PageData struct {
	ModelName    string
	ErrorMessage string
	Columns      []string
	Rows         []PageRow
	Failed       int
	CSV          string
}

type PageRow struct {
	Cells  []string
	Failed bool
}

func resultPage(rs *models.ResultSet, csvText string) PageData {
	cells := rs.Rows()
	rows := make([]PageRow, len(cells))
	for i, r := range cells {
		rows[i] = PageRow{Cells: r, Failed: rs.Records[i].Failed()}
	}
	return PageData{
		ModelName: rs.Model,
		Columns:   rs.Columns(),
		Rows:      rows,
		Failed:    rs.FailedCount(),
		CSV:       csvText,
	}
}

func renderPage(c *fiber.Ctx, status int, data PageData) error {
	var buf bytes.Buffer
	if err := pageTemplates.ExecuteTemplate(&buf, "index", data); err != nil {
		return &RequestError{Op: "render page", Err: err}
	}
	c.Status(status).Type("html", "utf-8")
	return c.Send(buf.Bytes())
}

// RenderError writes the upload page with an error banner.
func RenderError(c *fiber.Ctx, status int, message, modelName string) error {
	return renderPage(c, status, PageData{ModelName: modelName, ErrorMessage: message})
}

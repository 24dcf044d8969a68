package main

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"statement-parser/internal/models"
	"statement-parser/internal/service"
	"statement-parser/pkg/config"
	"statement-parser/pkg/logger"
	"statement-parser/pkg/metrics"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := NewMain()
	if err := m.Run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// CLI is the command line of parse-statements.
type CLI struct {
	Paths   []string `arg:"" name:"path" help:"PDF files or directories containing PDF files." type:"path"`
	Model   string   `short:"m" help:"Model name. Defaults to INFERENCE_MODEL."`
	Out     string   `short:"o" help:"Output file. Defaults to stdout for CSV." type:"path"`
	Format  string   `short:"f" enum:"csv,xlsx" default:"csv" help:"Output format (csv, xlsx)."`
	Backend string   `help:"PDF text backend (fitz, pure). Defaults to PDF_BACKEND."`
}

// Main represents the program.
type Main struct {
	// Optional overrides used by tests. Built from config when nil.
	Config     *config.Config
	Logger     *zap.Logger
	Extractor  service.Extractor
	Inferencer service.Inferencer
}

func NewMain() *Main {
	return &Main{}
}

// Run parses args, processes every PDF they name and writes one table.
func (m *Main) Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cli := &CLI{}
	parser, err := kong.New(cli,
		kong.Name("parse-statements"),
		kong.Description("Extract statement fields from bank and credit card PDFs with a local model."),
		kong.Writers(stdout, stderr),
		kong.Exit(func(int) {}),
	)
	if err != nil {
		return fmt.Errorf("failed to create parser: %w", err)
	}

	if len(args) == 0 || args[0] == "help" || args[0] == "--help" || args[0] == "-h" {
		_, _ = parser.Parse([]string{"--help"})
		if len(args) == 0 {
			return fmt.Errorf("no files specified. Run 'parse-statements --help' for usage")
		}
		return nil
	}

	if _, err := parser.Parse(args); err != nil {
		return err
	}

	if cli.Format == "xlsx" && cli.Out == "" {
		return fmt.Errorf("--out is required for xlsx output")
	}

	if err := m.init(ctx, cli); err != nil {
		return err
	}
	defer logger.Sync(m.Logger)
	if c, ok := m.Inferencer.(io.Closer); ok {
		defer c.Close()
	}

	files, err := collectPDFs(cli.Paths)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no PDF files found")
	}

	scratch, err := os.MkdirTemp("", "parse-statements-")
	if err != nil {
		return fmt.Errorf("failed to create scratch directory: %w", err)
	}
	defer os.RemoveAll(scratch)

	svc, err := service.NewStatementService(m.Extractor, m.Inferencer, metrics.New(prometheus.NewRegistry()), scratch, m.Logger)
	if err != nil {
		return err
	}

	model := cli.Model
	if model == "" {
		model = m.Config.Inference.DefaultModel
	}

	uploads := make([]service.UploadedFile, len(files))
	for i, path := range files {
		uploads[i] = localFile(path)
	}
	rs := svc.ProcessBatch(ctx, model, uploads)

	if err := writeResult(rs, cli.Format, cli.Out, stdout); err != nil {
		return err
	}

	fmt.Fprintf(stderr, "%d file(s) processed with %s, %d failed\n", len(rs.Records), model, rs.FailedCount())
	return nil
}

// init fills every dependency not set by the caller.
func (m *Main) init(ctx context.Context, cli *CLI) error {
	if m.Config == nil {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		m.Config = cfg
	}

	if m.Logger == nil {
		l, err := logger.New(m.Config.Logger.Level)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		m.Logger = l
	}

	if m.Extractor == nil {
		backend := cli.Backend
		if backend == "" {
			backend = m.Config.PDF.Backend
		}
		open, err := service.NewPDFOpener(backend)
		if err != nil {
			return err
		}
		m.Extractor = service.NewTextExtractor(open, m.Logger)
	}

	if m.Inferencer == nil {
		switch m.Config.Inference.Provider {
		case config.ProviderGigaChat:
			client, err := service.NewGigaChatClient(ctx, &m.Config.GigaChat, m.Logger)
			if err != nil {
				return fmt.Errorf("failed to initialize GigaChat client: %w", err)
			}
			m.Inferencer = client
		default:
			m.Inferencer = service.NewOllamaClient(&m.Config.Inference, m.Logger)
		}
	}
	return nil
}

// collectPDFs expands directories into the .pdf files below them. Files
// named explicitly are kept whatever their extension.
func collectPDFs(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read %q: %w", p, err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}

		var found []string
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".pdf") {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %q: %w", p, err)
		}
		sort.Strings(found)
		files = append(files, found...)
	}
	return files, nil
}

func localFile(path string) service.UploadedFile {
	return service.UploadedFile{
		Filename: filepath.Base(path),
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}
}

func writeResult(rs *models.ResultSet, format, out string, stdout io.Writer) error {
	var data []byte
	switch format {
	case "xlsx":
		b, err := service.EncodeXLSX(rs.Columns(), rs.Rows())
		if err != nil {
			return err
		}
		data = b
	default:
		text, err := service.EncodeCSV(rs)
		if err != nil {
			return err
		}
		data = []byte(text)
	}

	if out == "" {
		_, err := stdout.Write(data)
		return err
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %q: %w", out, err)
	}
	return nil
}

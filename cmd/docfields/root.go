package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/docfields/internal/common"
	"github.com/joseph-ayodele/docfields/internal/extract"
	"github.com/joseph-ayodele/docfields/internal/imageproc"
	"github.com/joseph-ayodele/docfields/internal/metrics"
	"github.com/joseph-ayodele/docfields/internal/ocr"
	"github.com/joseph-ayodele/docfields/internal/pipeline"
	"github.com/joseph-ayodele/docfields/internal/raster"
	repo "github.com/joseph-ayodele/docfields/internal/repository"
	"github.com/joseph-ayodele/docfields/internal/runner"
)

var (
	// Global flags
	logLevel string
	envFile  string
	dbURL    string
	ocrLang  string

	cfg    *common.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "docfields",
	Short: "Extract schema-defined fields from scanned documents",
	Long: `docfields runs OCR over PDFs and images and pulls out the fields a
schema describes, by regex, by page region or by an anchor text and offset.

Configuration comes from the environment (a .env file is read when present);
flags override it.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadEnv(envFile); err != nil {
			return err
		}
		logger = newLogger(cmd.ErrOrStderr(), logLevel)
		slog.SetDefault(logger)

		cfg = common.LoadConfig()
		if dbURL != "" {
			cfg.Database.DSN = dbURL
		}
		if ocrLang != "" {
			cfg.OCR.Lang = ocrLang
		}
		if err := cfg.Validate(); err != nil {
			logger.Error("invalid configuration", "error", err)
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "",
		"env file to load (default .env when present)")
	rootCmd.PersistentFlags().StringVar(&dbURL, "db", "",
		"status store: sqlite path, :memory: or postgres:// DSN (overrides DB_URL)")
	rootCmd.PersistentFlags().StringVar(&ocrLang, "lang", "",
		"OCR language (overrides OCR_LANG)")

	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(inferRegexCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(thumbnailCmd)
	rootCmd.AddCommand(documentsCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(dbHealthCmd)
}

func loadEnv(path string) error {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
		return nil
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// newLogger writes JSON records to w. Commands print results on stdout, so
// logs go to stderr.
func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// app bundles the components a command needs.
type app struct {
	db        *repo.DB
	docs      repo.DocumentRepository
	extractor *extract.Extractor
	images    *imageproc.Processor
	raster    *raster.Rasterizer
	processor *pipeline.Processor
	registry  *prometheus.Registry
	metrics   *metrics.Metrics
}

func newApp(ctx context.Context) (*app, error) {
	run := runner.NewExecRunner(logger)
	engine, err := ocr.NewEngine(cfg.OCR.Engine, cfg.OCR.Tesseract, run, logger)
	if err != nil {
		logger.Error("failed to create ocr engine", "engine", cfg.OCR.Engine, "error", err)
		return nil, err
	}

	db, err := repo.Open(ctx, repo.Config{
		DSN:              cfg.Database.DSN,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		MaxConnLifetime:  cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
		DialTimeout:      cfg.Database.DialTimeout,
		StatementTimeout: cfg.Database.StatementTimeout,
	}, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		return nil, err
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	images := imageproc.NewProcessor(imageproc.Config{
		Threshold: cfg.Preprocess.Threshold,
		RefWidth:  cfg.Preprocess.RefWidth,
		RefHeight: cfg.Preprocess.RefHeight,
		Upscale:   cfg.Preprocess.Upscale,
		WorkDir:   cfg.WorkDir,
	}, logger)
	rz := raster.NewRasterizer(raster.Config{
		Pdftoppm: cfg.OCR.Pdftoppm,
		DPI:      cfg.OCR.DPI,
		Width:    cfg.Preprocess.RefWidth,
		Height:   cfg.Preprocess.RefHeight,
		MaxPages: cfg.OCR.MaxPages,
		WorkDir:  cfg.WorkDir,
	}, run, logger)
	x := extract.NewExtractor(engine, images, ocr.Options{
		Lang:        cfg.OCR.Lang,
		DPI:         cfg.OCR.DPI,
		PSM:         cfg.OCR.PSM,
		OEM:         cfg.OCR.OEM,
		Whitelist:   cfg.OCR.Whitelist,
		TessdataDir: cfg.OCR.TessdataDir,
	}, logger, m)

	docs := db.Documents()
	return &app{
		db:        db,
		docs:      docs,
		extractor: x,
		images:    images,
		raster:    rz,
		processor: pipeline.NewProcessor(logger, x, rz, docs, m),
		registry:  reg,
		metrics:   m,
	}, nil
}

func (a *app) Close() {
	a.db.Close()
}

// Package pipeline runs schema extraction for whole documents and records
// each run's status on the document.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docfields/constants"
	"github.com/joseph-ayodele/docfields/internal/common"
	"github.com/joseph-ayodele/docfields/internal/metrics"
	"github.com/joseph-ayodele/docfields/internal/ocr"
	"github.com/joseph-ayodele/docfields/internal/raster"
	"github.com/joseph-ayodele/docfields/internal/repository"
	"github.com/joseph-ayodele/docfields/internal/schema"
)

// FieldExtractor resolves one field against a document's page images.
type FieldExtractor interface {
	Field(ctx context.Context, pages []string, f schema.Field) (string, bool, error)
	RecognizePage(ctx context.Context, page string) (ocr.Result, error)
}

// Rasterizer turns a source file into page images.
type Rasterizer interface {
	Rasterize(ctx context.Context, path string) (*raster.Pages, error)
}

// Result is the field mapping of one completed run. Fields that resolved to
// nothing are absent.
type Result struct {
	DocumentID uuid.UUID
	Fields     map[string]string
	PageCount  int
}

// Processor coordinates rasterization, field extraction and status updates.
type Processor struct {
	Logger    *slog.Logger
	Extractor FieldExtractor
	Raster    Rasterizer
	Documents repository.DocumentRepository
	Metrics   *metrics.Metrics
}

func NewProcessor(logger *slog.Logger, ex FieldExtractor, rz Rasterizer, docs repository.DocumentRepository, m *metrics.Metrics) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{Logger: logger, Extractor: ex, Raster: rz, Documents: docs, Metrics: m}
}

func errSchemaRequired() error {
	return common.NewAppError("SCHEMA_REQUIRED", "extraction needs a schema", common.ErrInvalidInput)
}

// Extract evaluates every field of s, in order, against pages. The document
// moves to processing first, then to completed with the field mapping, or to
// failed with the error message. A failed run returns no partial result.
func (p *Processor) Extract(ctx context.Context, docID uuid.UUID, pages []string, s *schema.Schema) (Result, error) {
	if s == nil {
		return Result{}, errSchemaRequired()
	}
	start := time.Now()
	log := p.Logger.With("document_id", docID, "schema", s.Name)

	if err := p.Documents.MarkProcessing(ctx, docID); err != nil {
		log.Error("processor.status.failed", "status", constants.StatusProcessing, "err", err)
		return Result{}, fmt.Errorf("mark processing: %w", err)
	}
	log.Info("processor.run.start", "pages", len(pages), "fields", len(s.Fields))

	fields, err := p.evaluate(common.WithDocumentID(ctx, docID.String()), pages, s.Fields)
	if err != nil {
		return Result{}, p.fail(ctx, log, docID, start, err)
	}

	if err := p.Documents.MarkCompleted(ctx, docID, fields, len(pages)); err != nil {
		return Result{}, p.fail(ctx, log, docID, start, fmt.Errorf("mark completed: %w", err))
	}
	p.Metrics.RecordRun(string(constants.StatusCompleted), time.Since(start))
	log.Info("processor.run.ok",
		"fields_found", len(fields),
		"pages", len(pages),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return Result{DocumentID: docID, Fields: fields, PageCount: len(pages)}, nil
}

// ExtractFile rasterizes path and runs Extract on its pages. The page images
// are removed before returning.
func (p *Processor) ExtractFile(ctx context.Context, docID uuid.UUID, path string, s *schema.Schema) (Result, error) {
	start := time.Now()
	pages, err := p.Raster.Rasterize(ctx, path)
	if err != nil {
		log := p.Logger.With("document_id", docID, "path", path)
		return Result{}, p.fail(ctx, log, docID, start, fmt.Errorf("rasterize %s: %w", path, err))
	}
	defer func() {
		if cerr := pages.Close(); cerr != nil {
			p.Logger.Warn("processor.pages.cleanup_failed", "document_id", docID, "err", cerr)
		}
	}()
	return p.Extract(ctx, docID, pages.Paths, s)
}

func (p *Processor) evaluate(ctx context.Context, pages []string, fields []schema.Field) (map[string]string, error) {
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		value, found, err := p.Extractor.Field(ctx, pages, f)
		if err != nil {
			return nil, err
		}
		if !found {
			p.Logger.Debug("processor.field.missing", "field", f.Name, "mode", f.Mode().String())
			continue
		}
		out[f.Name] = value
	}
	return out, nil
}

// fail records the run as failed and returns err unchanged.
func (p *Processor) fail(ctx context.Context, log *slog.Logger, docID uuid.UUID, start time.Time, err error) error {
	p.Metrics.RecordRun(string(constants.StatusFailed), time.Since(start))
	log.Error("processor.run.failed", "err", err, "duration_ms", time.Since(start).Milliseconds())
	// the status must land even when ctx was cancelled mid-run
	if merr := p.Documents.MarkFailed(context.WithoutCancel(ctx), docID, err.Error()); merr != nil {
		log.Error("processor.status.failed", "status", constants.StatusFailed, "err", merr)
	}
	return err
}

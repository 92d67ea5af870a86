package export

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/docfields/constants"
	"github.com/joseph-ayodele/docfields/internal/entity"
	"github.com/joseph-ayodele/docfields/internal/repository"
	"github.com/joseph-ayodele/docfields/internal/schema"
)

// Leading columns of a document export.
const (
	ColumnDocument = "Document"
	ColumnSource   = "Source Path"
	ColumnStatus   = "Status"
	ColumnPages    = "Pages"
	ColumnError    = "Error"
)

// Service produces exports of stored documents.
type Service struct {
	docs   repository.DocumentRepository
	logger *slog.Logger
}

func NewService(docs repository.DocumentRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{docs: docs, logger: logger}
}

var documentMeta = []string{ColumnDocument, ColumnSource, ColumnStatus, ColumnPages, ColumnError}

// DocumentColumns is the column layout used for document exports.
func DocumentColumns(s *schema.Schema) []string {
	cols := Columns(s, documentMeta[:len(documentMeta)-1]...)
	return append(cols, ColumnError)
}

// DocumentRow flattens a document into an export row.
func DocumentRow(d *entity.Document) Row {
	row := Row{
		ColumnDocument: d.Name,
		ColumnSource:   d.SourcePath,
		ColumnStatus:   string(d.Status),
		ColumnPages:    fmt.Sprint(d.PageCount),
		ColumnError:    truncate(d.ErrorMessage, 140),
	}
	for k, v := range d.Fields {
		if _, taken := row[k]; !taken {
			row[k] = v
		}
	}
	return row
}

// ExportDocumentsXLSX returns a workbook (as bytes) of the documents with the
// given status, or of every document when status is empty.
func (s *Service) ExportDocumentsXLSX(ctx context.Context, status constants.ProcessingStatus, sc *schema.Schema) ([]byte, error) {
	if err := CheckColumns(sc, documentMeta...); err != nil {
		return nil, err
	}
	start := time.Now()
	docs, err := s.docs.List(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}

	rows := make([]Row, 0, len(docs))
	for _, d := range docs {
		if sc != nil && d.SchemaName != "" && sc.Name != "" && d.SchemaName != sc.Name {
			continue
		}
		rows = append(rows, DocumentRow(d))
	}

	var buf bytes.Buffer
	if err := WriteXLSX(&buf, DocumentColumns(sc), rows); err != nil {
		return nil, err
	}

	s.logger.Info("export.xlsx.ok",
		"status", status,
		"rows", len(rows),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

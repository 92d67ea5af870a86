package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/docfields/constants"
	"github.com/joseph-ayodele/docfields/internal/common"
	"github.com/joseph-ayodele/docfields/internal/entity"
)

const documentsTable = "documents"

var documentColumns = []string{
	"id", "name", "source_path", "schema_name", "status",
	"page_count", "fields", "error_message", "created_at", "updated_at",
}

// CreateDocumentRequest registers a document in the pending state.
type CreateDocumentRequest struct {
	ID         uuid.UUID // optional; generated when zero
	Name       string
	SourcePath string
	SchemaName string
}

// DocumentRepository tracks documents and their processing status.
// Mark* on an unknown id returns common.ErrNotFound.
type DocumentRepository interface {
	Create(ctx context.Context, req CreateDocumentRequest) (*entity.Document, error)
	Get(ctx context.Context, id uuid.UUID) (*entity.Document, error)
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	MarkCompleted(ctx context.Context, id uuid.UUID, fields map[string]string, pageCount int) error
	MarkFailed(ctx context.Context, id uuid.UUID, message string) error
	List(ctx context.Context, status constants.ProcessingStatus) ([]*entity.Document, error)
}

type documentRepository struct {
	drv *entsql.Driver
	log *slog.Logger
	now func() time.Time
}

func NewDocumentRepository(drv *entsql.Driver, log *slog.Logger) DocumentRepository {
	if log == nil {
		log = slog.Default()
	}
	return &documentRepository{drv: drv, log: log, now: func() time.Time { return time.Now().UTC() }}
}

func (r *documentRepository) builder() *entsql.DialectBuilder {
	return entsql.Dialect(r.drv.Dialect())
}

func (r *documentRepository) Create(ctx context.Context, req CreateDocumentRequest) (*entity.Document, error) {
	id := req.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	now := r.now()
	doc := &entity.Document{
		ID:         id,
		Name:       req.Name,
		SourcePath: req.SourcePath,
		SchemaName: req.SchemaName,
		Status:     constants.StatusPending,
		Fields:     map[string]string{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	query, args := r.builder().Insert(documentsTable).
		Columns(documentColumns...).
		Values(doc.ID.String(), doc.Name, doc.SourcePath, doc.SchemaName, string(doc.Status),
			0, "{}", "", now, now).
		Query()
	if _, err := r.drv.DB().ExecContext(ctx, query, args...); err != nil {
		r.log.Error("document create failed", "document_id", id, "err", err)
		return nil, common.WrapError(fmt.Errorf("%w: %v", common.ErrDatabase, err), "create document")
	}
	r.log.Info("document created", "document_id", id, "name", doc.Name)
	return doc, nil
}

func (r *documentRepository) Get(ctx context.Context, id uuid.UUID) (*entity.Document, error) {
	query, args := r.builder().Select(documentColumns...).
		From(entsql.Table(documentsTable)).
		Where(entsql.EQ("id", id.String())).
		Query()
	row := r.drv.DB().QueryRowContext(ctx, query, args...)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NewAppError("DOCUMENT_NOT_FOUND", "document "+id.String()+" not found", common.ErrNotFound)
	}
	if err != nil {
		r.log.Error("document get failed", "document_id", id, "err", err)
		return nil, common.WrapError(fmt.Errorf("%w: %v", common.ErrDatabase, err), "get document")
	}
	return doc, nil
}

func (r *documentRepository) List(ctx context.Context, status constants.ProcessingStatus) ([]*entity.Document, error) {
	sel := r.builder().Select(documentColumns...).From(entsql.Table(documentsTable))
	if status != "" {
		sel = sel.Where(entsql.EQ("status", string(status)))
	}
	query, args := sel.OrderBy("created_at", "id").Query()

	rows, err := r.drv.DB().QueryContext(ctx, query, args...)
	if err != nil {
		r.log.Error("document list failed", "status", status, "err", err)
		return nil, common.WrapError(fmt.Errorf("%w: %v", common.ErrDatabase, err), "list documents")
	}
	defer rows.Close()

	var out []*entity.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, common.WrapError(fmt.Errorf("%w: %v", common.ErrDatabase, err), "scan document")
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, common.WrapError(fmt.Errorf("%w: %v", common.ErrDatabase, err), "list documents")
	}
	return out, nil
}

func (r *documentRepository) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	err := r.update(ctx, id, map[string]any{
		"status":        string(constants.StatusProcessing),
		"error_message": "",
	})
	if err != nil {
		return err
	}
	r.log.Info("document processing", "document_id", id)
	return nil
}

func (r *documentRepository) MarkCompleted(ctx context.Context, id uuid.UUID, fields map[string]string, pageCount int) error {
	if fields == nil {
		fields = map[string]string{}
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}
	err = r.update(ctx, id, map[string]any{
		"status":        string(constants.StatusCompleted),
		"fields":        string(b),
		"page_count":    pageCount,
		"error_message": "",
	})
	if err != nil {
		return err
	}
	r.log.Info("document completed", "document_id", id, "fields", len(fields), "pages", pageCount)
	return nil
}

func (r *documentRepository) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	err := r.update(ctx, id, map[string]any{
		"status":        string(constants.StatusFailed),
		"error_message": message,
	})
	if err != nil {
		return err
	}
	r.log.Warn("document failed", "document_id", id, "error", message)
	return nil
}

func (r *documentRepository) update(ctx context.Context, id uuid.UUID, set map[string]any) error {
	u := r.builder().Update(documentsTable).Set("updated_at", r.now())
	for _, col := range documentColumns {
		if v, ok := set[col]; ok {
			u = u.Set(col, v)
		}
	}
	query, args := u.Where(entsql.EQ("id", id.String())).Query()
	res, err := r.drv.DB().ExecContext(ctx, query, args...)
	if err != nil {
		r.log.Error("document update failed", "document_id", id, "err", err)
		return common.WrapError(fmt.Errorf("%w: %v", common.ErrDatabase, err), "update document")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return common.WrapError(fmt.Errorf("%w: %v", common.ErrDatabase, err), "update document")
	}
	if n == 0 {
		return common.NewAppError("DOCUMENT_NOT_FOUND", "document "+id.String()+" not found", common.ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*entity.Document, error) {
	var (
		doc                  entity.Document
		id, status, fields   string
		createdAt, updatedAt dbTime
	)
	if err := row.Scan(&id, &doc.Name, &doc.SourcePath, &doc.SchemaName, &status,
		&doc.PageCount, &fields, &doc.ErrorMessage, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("document id %q: %w", id, err)
	}
	doc.ID = parsed
	st, ok := constants.ParseStatus(status)
	if !ok {
		return nil, fmt.Errorf("document %s: unknown status %q", id, status)
	}
	doc.Status = st
	doc.Fields = map[string]string{}
	if fields != "" {
		if err := json.Unmarshal([]byte(fields), &doc.Fields); err != nil {
			return nil, fmt.Errorf("document %s fields: %w", id, err)
		}
	}
	doc.CreatedAt, doc.UpdatedAt = createdAt.Time, updatedAt.Time
	return &doc, nil
}

// dbTime scans timestamps stored natively (Postgres) or as text (SQLite).
type dbTime struct{ time.Time }

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05",
}

func (t *dbTime) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		t.Time = v.UTC()
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	case nil:
		t.Time = time.Time{}
		return nil
	default:
		return fmt.Errorf("unsupported timestamp type %T", src)
	}
}

func (t *dbTime) parse(s string) error {
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			t.Time = ts.UTC()
			return nil
		}
	}
	return fmt.Errorf("unparseable timestamp %q", s)
}

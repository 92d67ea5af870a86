package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/docfields/constants"
	"github.com/joseph-ayodele/docfields/internal/common"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), Config{DSN: ":memory:"}, nil)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db
}

func TestDocumentLifecycle(t *testing.T) {
	ctx := context.Background()
	docs := openTestDB(t).Documents()

	doc, err := docs.Create(ctx, CreateDocumentRequest{Name: "invoice.pdf", SourcePath: "/in/invoice.pdf", SchemaName: "invoice"})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, doc.ID)
	assert.Equal(t, constants.StatusPending, doc.Status)

	require.NoError(t, docs.MarkProcessing(ctx, doc.ID))
	got, err := docs.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusProcessing, got.Status)

	fields := map[string]string{"invoice_number": "INV-12345", "notes": ""}
	require.NoError(t, docs.MarkCompleted(ctx, doc.ID, fields, 2))
	got, err = docs.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusCompleted, got.Status)
	assert.Equal(t, fields, got.Fields)
	assert.Equal(t, 2, got.PageCount)
	assert.Equal(t, "invoice.pdf", got.Name)
	assert.Equal(t, "/in/invoice.pdf", got.SourcePath)
	assert.Equal(t, "invoice", got.SchemaName)
	assert.WithinDuration(t, doc.CreatedAt, got.CreatedAt, time.Second)
	assert.False(t, got.UpdatedAt.Before(got.CreatedAt))
}

func TestMarkFailedThenRetry(t *testing.T) {
	ctx := context.Background()
	docs := openTestDB(t).Documents()

	doc, err := docs.Create(ctx, CreateDocumentRequest{Name: "scan.png", SourcePath: "scan.png"})
	require.NoError(t, err)
	require.NoError(t, docs.MarkProcessing(ctx, doc.ID))
	require.NoError(t, docs.MarkFailed(ctx, doc.ID, "tesseract: exit status 1"))

	got, err := docs.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusFailed, got.Status)
	assert.Equal(t, "tesseract: exit status 1", got.ErrorMessage)
	assert.Empty(t, got.Fields)

	// a new run clears the previous failure
	require.NoError(t, docs.MarkProcessing(ctx, doc.ID))
	got, err = docs.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusProcessing, got.Status)
	assert.Empty(t, got.ErrorMessage)
}

func TestUnknownDocument(t *testing.T) {
	ctx := context.Background()
	docs := openTestDB(t).Documents()
	id := uuid.New()

	_, err := docs.Get(ctx, id)
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.ErrorIs(t, docs.MarkProcessing(ctx, id), common.ErrNotFound)
	assert.ErrorIs(t, docs.MarkCompleted(ctx, id, nil, 0), common.ErrNotFound)
	assert.ErrorIs(t, docs.MarkFailed(ctx, id, "x"), common.ErrNotFound)
}

func TestListByStatus(t *testing.T) {
	ctx := context.Background()
	docs := openTestDB(t).Documents()

	var ids []uuid.UUID
	for _, name := range []string{"a.pdf", "b.pdf", "c.pdf"} {
		doc, err := docs.Create(ctx, CreateDocumentRequest{Name: name, SourcePath: name})
		require.NoError(t, err)
		ids = append(ids, doc.ID)
	}
	require.NoError(t, docs.MarkFailed(ctx, ids[1], "boom"))

	all, err := docs.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	pending, err := docs.List(ctx, constants.StatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	names := []string{pending[0].Name, pending[1].Name}
	assert.ElementsMatch(t, []string{"a.pdf", "c.pdf"}, names)

	failed, err := docs.List(ctx, constants.StatusFailed)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, ids[1], failed[0].ID)
}

func TestCreateWithExplicitID(t *testing.T) {
	ctx := context.Background()
	docs := openTestDB(t).Documents()
	id := uuid.New()

	doc, err := docs.Create(ctx, CreateDocumentRequest{ID: id, Name: "x.png", SourcePath: "x.png"})
	require.NoError(t, err)
	assert.Equal(t, id, doc.ID)

	_, err = docs.Create(ctx, CreateDocumentRequest{ID: id, Name: "x.png", SourcePath: "x.png"})
	assert.ErrorIs(t, err, common.ErrDatabase)
}

func TestOpenFileDatabase(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "status.db")

	db, err := Open(ctx, Config{DSN: path}, nil)
	require.NoError(t, err)
	doc, err := db.Documents().Create(ctx, CreateDocumentRequest{Name: "a.png", SourcePath: "a.png"})
	require.NoError(t, err)
	require.NoError(t, db.HealthCheck(ctx, time.Second))
	db.Close()

	// schema creation is idempotent and rows survive reopen
	db, err = Open(ctx, Config{DSN: path}, nil)
	require.NoError(t, err)
	defer db.Close()
	got, err := db.Documents().Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "a.png", got.Name)
}

func TestIsPostgres(t *testing.T) {
	assert.True(t, IsPostgres("postgres://u:p@localhost/db"))
	assert.True(t, IsPostgres("postgresql://localhost/db"))
	assert.False(t, IsPostgres("status.db"))
	assert.False(t, IsPostgres(":memory:"))
}

func TestDBTimeScan(t *testing.T) {
	want := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
	tests := []struct {
		name string
		src  any
	}{
		{"native", want},
		{"rfc3339", "2024-03-15T10:30:00Z"},
		{"sqlite text", "2024-03-15 10:30:00+00:00"},
		{"bytes", []byte("2024-03-15 10:30:00")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ts dbTime
			require.NoError(t, ts.Scan(tt.src))
			assert.True(t, want.Equal(ts.Time), "got %v", ts.Time)
		})
	}

	var ts dbTime
	assert.Error(t, ts.Scan("yesterday"))
	assert.Error(t, ts.Scan(42))
}

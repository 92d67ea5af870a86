package pipeline

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/docfields/constants"
	"github.com/joseph-ayodele/docfields/internal/common"
	"github.com/joseph-ayodele/docfields/internal/extract"
	"github.com/joseph-ayodele/docfields/internal/imageproc"
	"github.com/joseph-ayodele/docfields/internal/metrics"
	"github.com/joseph-ayodele/docfields/internal/ocr"
	"github.com/joseph-ayodele/docfields/internal/raster"
	"github.com/joseph-ayodele/docfields/internal/repository"
	"github.com/joseph-ayodele/docfields/internal/schema"
)

type fieldOutcome struct {
	value string
	found bool
	err   error
}

// fakeExtractor answers per field name, or per "<field>@<page>" when set.
type fakeExtractor struct {
	outcomes map[string]fieldOutcome
	pages    map[string]ocr.Result
	pageErrs map[string]error
	calls    []string
}

func (f *fakeExtractor) Field(_ context.Context, pages []string, fl schema.Field) (string, bool, error) {
	f.calls = append(f.calls, fl.Name)
	if len(pages) == 1 {
		if o, ok := f.outcomes[fl.Name+"@"+pages[0]]; ok {
			return o.value, o.found, o.err
		}
	}
	o := f.outcomes[fl.Name]
	return o.value, o.found, o.err
}

func (f *fakeExtractor) RecognizePage(_ context.Context, page string) (ocr.Result, error) {
	if err := f.pageErrs[page]; err != nil {
		return ocr.Result{}, err
	}
	return f.pages[page], nil
}

type fakeRasterizer struct {
	pages []string
	err   error
}

func (f fakeRasterizer) Rasterize(context.Context, string) (*raster.Pages, error) {
	if f.err != nil {
		return nil, f.err
	}
	return raster.NewPages(f.pages...), nil
}

func newDocs(t *testing.T) repository.DocumentRepository {
	t.Helper()
	db, err := repository.Open(context.Background(), repository.Config{DSN: ":memory:"}, nil)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db.Documents()
}

func createDoc(t *testing.T, docs repository.DocumentRepository) uuid.UUID {
	t.Helper()
	doc, err := docs.Create(context.Background(), repository.CreateDocumentRequest{Name: "doc.pdf", SourcePath: "doc.pdf"})
	require.NoError(t, err)
	return doc.ID
}

var invoiceSchema = &schema.Schema{
	Name: "invoice",
	Fields: []schema.Field{
		{Name: "number", Regex: `INV-\d{4}-\d{3}`},
		{Name: "total", Template: &schema.Template{ReferenceText: "Total"}},
		{Name: "po", Region: &schema.Region{X: 0, Y: 0, Width: 10, Height: 10}},
	},
}

func TestExtractCompletes(t *testing.T) {
	ctx := context.Background()
	docs := newDocs(t)
	id := createDoc(t, docs)
	reg := prometheus.NewRegistry()
	ex := &fakeExtractor{outcomes: map[string]fieldOutcome{
		"number": {"INV-2024-001", true, nil},
		"total":  {"", true, nil},
		"po":     {"", false, nil},
	}}
	p := NewProcessor(nil, ex, nil, docs, metrics.New(reg))

	res, err := p.Extract(ctx, id, []string{"p1", "p2"}, invoiceSchema)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"number": "INV-2024-001", "total": ""}, res.Fields)
	assert.Equal(t, 2, res.PageCount)
	assert.Equal(t, []string{"number", "total", "po"}, ex.calls)

	doc, err := docs.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusCompleted, doc.Status)
	assert.Equal(t, res.Fields, doc.Fields)
	assert.Equal(t, 2, doc.PageCount)

	n, err := testutil.GatherAndCount(reg, "docfields_runs_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestExtractIsIdempotent(t *testing.T) {
	ctx := context.Background()
	docs := newDocs(t)
	id := createDoc(t, docs)
	ex := &fakeExtractor{outcomes: map[string]fieldOutcome{
		"number": {"INV-2024-001", true, nil},
		"total":  {"45.00", true, nil},
		"po":     {"PO-9", true, nil},
	}}
	p := NewProcessor(nil, ex, nil, docs, nil)

	first, err := p.Extract(ctx, id, []string{"p1"}, invoiceSchema)
	require.NoError(t, err)
	second, err := p.Extract(ctx, id, []string{"p1"}, invoiceSchema)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	doc, err := docs.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusCompleted, doc.Status)
}

func TestExtractFailureDiscardsPartialResult(t *testing.T) {
	ctx := context.Background()
	docs := newDocs(t)
	id := createDoc(t, docs)
	boom := errors.New("tesseract: exit status 1")
	ex := &fakeExtractor{outcomes: map[string]fieldOutcome{
		"number": {"INV-2024-001", true, nil},
		"total":  {"", false, boom},
	}}
	p := NewProcessor(nil, ex, nil, docs, nil)

	res, err := p.Extract(ctx, id, []string{"p1"}, invoiceSchema)
	require.ErrorIs(t, err, boom)
	assert.Nil(t, res.Fields)
	assert.Equal(t, []string{"number", "total"}, ex.calls, "stops at the failing field")

	doc, err := docs.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusFailed, doc.Status)
	assert.Equal(t, boom.Error(), doc.ErrorMessage)
	assert.Empty(t, doc.Fields)
}

func TestExtractFailsOnCancelledContextStillMarksFailed(t *testing.T) {
	docs := newDocs(t)
	id := createDoc(t, docs)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ex := &fakeExtractor{outcomes: map[string]fieldOutcome{
		"number": {"", false, context.Canceled},
	}}
	p := NewProcessor(nil, ex, nil, docs, nil)

	// cancel after the run has started
	p.Extractor = cancelOnField{ex, cancel}
	_, err := p.Extract(ctx, id, []string{"p1"}, invoiceSchema)
	require.ErrorIs(t, err, context.Canceled)

	doc, err := docs.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusFailed, doc.Status)
}

type cancelOnField struct {
	*fakeExtractor
	cancel context.CancelFunc
}

func (c cancelOnField) Field(ctx context.Context, pages []string, f schema.Field) (string, bool, error) {
	c.cancel()
	return c.fakeExtractor.Field(ctx, pages, f)
}

func TestExtractUnknownDocument(t *testing.T) {
	p := NewProcessor(nil, &fakeExtractor{}, nil, newDocs(t), nil)
	_, err := p.Extract(context.Background(), uuid.New(), []string{"p1"}, invoiceSchema)
	assert.Error(t, err)
}

func TestExtractFile(t *testing.T) {
	ctx := context.Background()
	docs := newDocs(t)
	id := createDoc(t, docs)
	ex := &fakeExtractor{outcomes: map[string]fieldOutcome{"number": {"INV-2024-001", true, nil}}}

	p := NewProcessor(nil, ex, fakeRasterizer{pages: []string{"p1", "p2", "p3"}}, docs, nil)
	res, err := p.ExtractFile(ctx, id, "doc.pdf", invoiceSchema)
	require.NoError(t, err)
	assert.Equal(t, 3, res.PageCount)

	failing := NewProcessor(nil, ex, fakeRasterizer{err: raster.ErrUnsupportedFormat}, docs, nil)
	_, err = failing.ExtractFile(ctx, id, "doc.docx", invoiceSchema)
	require.ErrorIs(t, err, raster.ErrUnsupportedFormat)

	doc, err := docs.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusFailed, doc.Status)
	assert.Contains(t, doc.ErrorMessage, "doc.docx")
}

func TestExtractPages(t *testing.T) {
	ex := &fakeExtractor{outcomes: map[string]fieldOutcome{
		"number@p1": {"INV-2024-001", true, nil},
		"number@p2": {"INV-2024-002", true, nil},
		"total@p2":  {"45.00", true, nil},
	}}
	p := NewProcessor(nil, ex, nil, newDocs(t), nil)

	rows, err := p.ExtractPages(context.Background(), []string{"p1", "p2"}, invoiceSchema)
	require.NoError(t, err)
	assert.Equal(t, []PageResult{
		{Page: 1, Fields: map[string]string{"number": "INV-2024-001"}},
		{Page: 2, Fields: map[string]string{"number": "INV-2024-002", "total": "45.00"}},
	}, rows)
}

func TestExtractPagesRequiresSchema(t *testing.T) {
	p := NewProcessor(nil, &fakeExtractor{}, nil, newDocs(t), nil)

	rows, err := p.ExtractPages(context.Background(), []string{"p1"}, nil)
	require.ErrorIs(t, err, common.ErrInvalidInput)
	assert.Nil(t, rows)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "SCHEMA_REQUIRED", appErr.Code)
}

func TestExtractBatch(t *testing.T) {
	ctx := context.Background()
	docs := newDocs(t)
	a, b := createDoc(t, docs), createDoc(t, docs)
	ex := &fakeExtractor{outcomes: map[string]fieldOutcome{"number": {"INV-2024-001", true, nil}}}
	p := NewProcessor(nil, ex, fakeRasterizer{pages: []string{"p1"}}, docs, nil)

	results := p.ExtractBatch(ctx, []BatchItem{
		{DocumentID: a, Path: "a.png"},
		{DocumentID: uuid.New(), Path: "missing.png"},
		{DocumentID: b, Path: "b.png"},
	}, invoiceSchema)

	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err)
	assert.NoError(t, results[2].Err)
	assert.Equal(t, "INV-2024-001", results[2].Result.Fields["number"])
}

func TestReadText(t *testing.T) {
	ex := &fakeExtractor{
		pages: map[string]ocr.Result{
			"p1": {Text: "Invoice\t 42\r\n", Confidence: 0.9},
			"p3": {Text: "Total 45.00", Confidence: 0.7},
		},
		pageErrs: map[string]error{"p2": errors.New("blurry")},
	}
	p := NewProcessor(nil, ex, fakeRasterizer{pages: []string{"p1", "p2", "p3"}}, newDocs(t), nil)

	res, err := p.ReadText(context.Background(), "doc.pdf")
	require.NoError(t, err)
	assert.Equal(t, 3, res.PageCount)
	assert.Equal(t, "Invoice 42\n\nTotal 45.00", res.Text)
	assert.InDelta(t, 0.8, res.Confidence, 1e-6)

	ex.pageErrs["p1"] = errors.New("blurry")
	ex.pageErrs["p3"] = errors.New("blurry")
	_, err = p.ReadText(context.Background(), "doc.pdf")
	assert.Error(t, err)
}

// crop engine: every crop of the page reads "ID: 777".
type cropEngine struct{}

func (cropEngine) Recognize(context.Context, string, ocr.Options) (ocr.Result, error) {
	return ocr.Result{Text: "ID: 777\n"}, nil
}

func TestRegionFieldEndToEnd(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	page := filepath.Join(dir, "scan.png")
	img := image.NewGray(image.Rect(0, 0, 600, 400))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	img.Set(20, 20, color.Black)
	f, err := os.Create(page)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	work := t.TempDir()
	x := extract.NewExtractor(cropEngine{}, imageproc.NewProcessor(imageproc.Config{WorkDir: work}, nil), ocr.Options{}, nil, nil)
	rz := raster.NewRasterizer(raster.Config{WorkDir: work}, nil, nil)
	docs := newDocs(t)
	id := createDoc(t, docs)
	p := NewProcessor(nil, x, rz, docs, nil)

	s := &schema.Schema{Fields: []schema.Field{{Name: "id", Region: &schema.Region{X: 0, Y: 0, Width: 300, Height: 60}}}}
	res, err := p.ExtractFile(ctx, id, page, s)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"id": "ID: 777"}, res.Fields)

	entries, err := os.ReadDir(work)
	require.NoError(t, err)
	assert.Empty(t, entries)
	_, err = os.Stat(page)
	assert.NoError(t, err, "input image is left in place")
}

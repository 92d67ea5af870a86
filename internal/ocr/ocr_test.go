package ocr

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/docfields/internal/common"
)

type fakeRunner struct {
	stdout []byte
	stderr []byte
	err    error
	name   string
	args   []string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.name = name
	f.args = args
	return f.stdout, f.stderr, f.err
}

const sampleTSV = "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
	"1\t1\t0\t0\t0\t0\t0\t0\t1654\t2339\t-1\t\n" +
	"2\t1\t1\t0\t0\t0\t100\t50\t400\t40\t-1\t\n" +
	"5\t1\t1\t1\t1\t1\t100\t50\t120\t40\t96.5\tInvoice\n" +
	"5\t1\t1\t1\t1\t2\t230\t50\t140\t40\t91\tNumber:\n" +
	"5\t1\t1\t1\t1\t3\t380\t50\t200\t40\t88.5\tINV-2024-001\n" +
	"5\t1\t1\t1\t2\t1\t100\t100\t80\t40\t-1\tTotal\n" +
	"5\t1\t2\t1\t1\t1\t100\t400\t80\t40\t90\t   \n" +
	"5\t1\t2\t1\t1\t2\t100\t400\t80\t40\t80\tThanks\n"

func TestParseTSV(t *testing.T) {
	res, err := ParseTSV(sampleTSV)
	require.NoError(t, err)

	require.Len(t, res.Words, 5)
	assert.Equal(t, "Invoice", res.Words[0].Text)
	assert.Equal(t, BBox{X0: 100, Y0: 50, X1: 220, Y1: 90}, res.Words[0].BBox)
	assert.InDelta(t, 0.965, res.Words[0].Confidence, 1e-6)
	assert.Equal(t, float32(0), res.Words[3].Confidence, "negative conf clamps to zero")

	assert.Equal(t, "Invoice Number: INV-2024-001\nTotal\n\nThanks", res.Text)
	assert.InDelta(t, (0.965+0.91+0.885+0+0.8)/5, res.Confidence, 1e-6)
}

func TestParseTSVEmpty(t *testing.T) {
	res, err := ParseTSV("level\tpage_num\n")
	require.NoError(t, err)
	assert.Empty(t, res.Words)
	assert.Empty(t, res.Text)
	assert.Zero(t, res.Confidence)
}

func TestParseTSVBadColumn(t *testing.T) {
	_, err := ParseTSV("header\n5\t1\t1\t1\t1\t1\tx\t50\t120\t40\t96\tword\n")
	assert.Error(t, err)
}

func TestTesseractEngineArgs(t *testing.T) {
	r := &fakeRunner{stdout: []byte(sampleTSV)}
	e := NewTesseractEngine("/usr/bin/tesseract", r, nil)

	res, err := e.Recognize(context.Background(), "/tmp/page-1.png", Options{
		Lang:      "deu",
		DPI:       300,
		PSM:       6,
		OEM:       1,
		Whitelist: "0123456789",
	})
	require.NoError(t, err)
	assert.Len(t, res.Words, 5)

	assert.Equal(t, "/usr/bin/tesseract", r.name)
	assert.Equal(t, []string{
		"/tmp/page-1.png", "stdout", "-l", "deu", "--psm", "6",
		"--oem", "1", "--dpi", "300",
		"-c", "tessedit_char_whitelist=0123456789",
		"-c", "preserve_interword_spaces=1", "tsv",
	}, r.args)
}

func TestTesseractEngineDefaults(t *testing.T) {
	r := &fakeRunner{stdout: []byte(sampleTSV)}
	_, err := NewTesseractEngine("", r, nil).Recognize(context.Background(), "a.png", Options{})
	require.NoError(t, err)
	assert.Equal(t, "tesseract", r.name)
	assert.Equal(t, []string{"a.png", "stdout", "-l", "eng", "--psm", "3", "-c", "preserve_interword_spaces=1", "tsv"}, r.args)
}

func TestTesseractEngineFailure(t *testing.T) {
	r := &fakeRunner{err: errors.New("exit status 1"), stderr: []byte("Error opening data file eng.traineddata")}
	_, err := NewTesseractEngine("", r, nil).Recognize(context.Background(), "a.png", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "traineddata")
}

func TestTesseractEngineCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := &fakeRunner{err: errors.New("signal: killed")}
	_, err := NewTesseractEngine("", r, nil).Recognize(ctx, "a.png", Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewEngine(t *testing.T) {
	e, err := NewEngine("", "", &fakeRunner{}, nil)
	require.NoError(t, err)
	assert.IsType(t, &TesseractEngine{}, e)

	_, err = NewEngine("abbyy", "", nil, nil)
	assert.Error(t, err)
}

func TestBBox(t *testing.T) {
	a := BBox{X0: 10, Y0: 20, X1: 50, Y1: 40}
	assert.Equal(t, 40, a.Width())
	assert.Equal(t, 20, a.Height())
	assert.Equal(t, BBox{X0: 5, Y0: 10, X1: 25, Y1: 20}, a.Unscale(2, 2))
	assert.Equal(t, a, a.Unscale(1, 1))
	assert.Equal(t, a, a.Unscale(0, 2))
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"crlf", "a\r\nb\rc", "a\nb\nc"},
		{"tabs and spaces", "a\t\tb    c", "a b c"},
		{"blank runs", "a\n\n\n\n\nb", "a\n\nb"},
		{"trailing", "  a  \nb   \n", "a\nb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestGosseractStubOrEngine(t *testing.T) {
	_, err := NewGosseractEngine(nil)
	if err != nil {
		assert.ErrorIs(t, err, common.ErrOCRUnavailable)
	}
}

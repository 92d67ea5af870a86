package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/docfields/internal/runner"
)

// tsvWordLevel is the TSV "level" column value for single words.
const tsvWordLevel = 5

// TesseractEngine shells out to the tesseract CLI in TSV mode.
type TesseractEngine struct {
	bin    string
	runner runner.Runner
	logger *slog.Logger
}

func NewTesseractEngine(bin string, r runner.Runner, logger *slog.Logger) *TesseractEngine {
	if logger == nil {
		logger = slog.Default()
	}
	if bin == "" {
		bin = "tesseract"
	}
	if r == nil {
		r = runner.NewExecRunner(logger)
	}
	return &TesseractEngine{bin: bin, runner: r, logger: logger}
}

func (e *TesseractEngine) Recognize(ctx context.Context, imagePath string, opts Options) (Result, error) {
	start := time.Now()
	opts = opts.WithDefaults()

	// tesseract <file> stdout -l <lang> --psm N ... tsv
	out, errb, err := e.runner.Run(ctx, e.bin, e.args(imagePath, opts)...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		return Result{}, fmt.Errorf("tesseract %s: %w: %s", imagePath, err, runner.Truncate(strings.TrimSpace(string(errb)), 512))
	}

	res, err := ParseTSV(string(out))
	if err != nil {
		return Result{}, fmt.Errorf("tesseract %s: %w", imagePath, err)
	}
	e.logger.Debug("tesseract recognized image",
		"path", imagePath,
		"words", len(res.Words),
		"confidence", res.Confidence,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

func (e *TesseractEngine) args(imagePath string, opts Options) []string {
	args := []string{imagePath, "stdout", "-l", opts.Lang, "--psm", strconv.Itoa(opts.PSM)}
	if opts.OEM > 0 {
		args = append(args, "--oem", strconv.Itoa(opts.OEM))
	}
	if opts.DPI > 0 {
		args = append(args, "--dpi", strconv.Itoa(opts.DPI))
	}
	if opts.TessdataDir != "" {
		args = append(args, "--tessdata-dir", opts.TessdataDir)
	}
	if opts.Whitelist != "" {
		args = append(args, "-c", "tessedit_char_whitelist="+opts.Whitelist)
	}
	args = append(args, "-c", "preserve_interword_spaces=1", "tsv")
	return args
}

type lineKey struct{ page, block, par, line int }

// ParseTSV reads tesseract TSV output into words and line-structured text.
// Columns: level page_num block_num par_num line_num word_num left top width height conf text.
func ParseTSV(tsv string) (Result, error) {
	var (
		words []Word
		text  strings.Builder
		last  lineKey
		lastB = -1
		first = true
	)
	for i, ln := range strings.Split(tsv, "\n") {
		ln = strings.TrimRight(ln, "\r")
		if i == 0 || ln == "" {
			continue // header
		}
		cols := strings.SplitN(ln, "\t", 12)
		if len(cols) < 12 {
			continue
		}
		level, err := strconv.Atoi(cols[0])
		if err != nil {
			return Result{}, fmt.Errorf("tsv line %d: bad level %q", i+1, cols[0])
		}
		if level != tsvWordLevel {
			continue
		}
		txt := strings.TrimSpace(cols[11])
		if txt == "" {
			continue
		}
		nums := make([]int, 10)
		for j := 1; j <= 9; j++ {
			if nums[j], err = strconv.Atoi(cols[j]); err != nil {
				return Result{}, fmt.Errorf("tsv line %d: bad column %d %q", i+1, j, cols[j])
			}
		}
		conf, err := strconv.ParseFloat(cols[10], 64)
		if err != nil {
			return Result{}, fmt.Errorf("tsv line %d: bad conf %q", i+1, cols[10])
		}
		if conf < 0 {
			conf = 0
		}
		left, top, width, height := nums[6], nums[7], nums[8], nums[9]
		words = append(words, Word{
			Text:       txt,
			Confidence: float32(conf / 100.0),
			BBox:       BBox{X0: left, Y0: top, X1: left + width, Y1: top + height},
		})

		key := lineKey{page: nums[1], block: nums[2], par: nums[3], line: nums[4]}
		switch {
		case first:
			first = false
		case key == last:
			text.WriteByte(' ')
		case key.block != lastB:
			text.WriteString("\n\n")
		default:
			text.WriteByte('\n')
		}
		text.WriteString(txt)
		last, lastB = key, key.block
	}
	return Result{Text: text.String(), Words: words, Confidence: meanConfidence(words)}, nil
}

package authoring

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/docfields/internal/ocr"
)

// PageRecognizer preprocesses and recognizes a page, reporting word boxes in
// page-image coordinates.
type PageRecognizer interface {
	RecognizePage(ctx context.Context, page string) (ocr.Result, error)
}

// Box is a word position as x, y, width and height.
type Box struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

type AnalyzedWord struct {
	Text       string  `json:"text"`
	Confidence float32 `json:"confidence"`
	BBox       Box     `json:"bbox"`
}

// PageAnalysis lists the words of one page with their positions.
type PageAnalysis struct {
	Page     int            `json:"page"`
	Words    []AnalyzedWord `json:"words"`
	FullText string         `json:"fullText"`
}

// Analyzer reports word positions so template fields can be authored.
type Analyzer struct {
	recognizer PageRecognizer
	logger     *slog.Logger
}

func NewAnalyzer(r PageRecognizer, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{recognizer: r, logger: logger}
}

// Analyze recognizes every page in order. Any page failure aborts.
func (a *Analyzer) Analyze(ctx context.Context, pages []string) ([]PageAnalysis, error) {
	out := make([]PageAnalysis, 0, len(pages))
	for i, page := range pages {
		res, err := a.recognizer.RecognizePage(ctx, page)
		if err != nil {
			return nil, fmt.Errorf("analyze page %d: %w", i+1, err)
		}
		words := make([]AnalyzedWord, 0, len(res.Words))
		for _, w := range res.Words {
			words = append(words, AnalyzedWord{
				Text:       w.Text,
				Confidence: w.Confidence,
				BBox:       Box{X: w.BBox.X0, Y: w.BBox.Y0, Width: w.BBox.Width(), Height: w.BBox.Height()},
			})
		}
		out = append(out, PageAnalysis{Page: i + 1, Words: words, FullText: res.Text})
		a.logger.Debug("authoring.analyze.page", "page", i+1, "words", len(words))
	}
	return out, nil
}

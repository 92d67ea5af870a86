package constants

// Rendering and preprocessing defaults (A4 at 300 DPI).
const (
	DefaultDPI          = 300
	ReferenceWidth      = 1654
	ReferenceHeight     = 2339
	DefaultUpscale      = 2
	DefaultThreshold    = 150
	DefaultLang         = "eng"
	DefaultPSM          = 3 // fully automatic page segmentation
	DefaultContextChars = 30
)

// Matching thresholds.
const (
	// AnchorSimilarity is the minimum (exclusive) similarity for fuzzy anchor words.
	AnchorSimilarity = 0.8
	// FuzzyTextSimilarity is the minimum average similarity for the regex fallback search.
	FuzzyTextSimilarity = 0.6
)

// Template extraction rectangle defaults when width/height are not set.
const (
	TemplateDefaultWidth  = 200
	TemplateDefaultHeight = 50
)

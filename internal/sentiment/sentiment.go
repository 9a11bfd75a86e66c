// Package sentiment provides lexical sentiment classification for inbound
// messages: polarity/subjectivity scoring over a Portuguese-centric lexicon,
// plus doubt and disinterest keyword detection.
//
// The classification boundaries are a hard contract relied on by the trigger
// rule engine: polarity >= 0.1 is positive, <= -0.1 is negative, anything in
// between is neutral.
package sentiment

import (
	"log/slog"
	"math"
	"strings"

	"github.com/jrdesigniub9/novoitm2/internal/models"
)

// Threshold constants for the classification contract.
const (
	// PolarityThreshold is the boundary between neutral and positive/negative.
	PolarityThreshold = 0.1
	// DefaultConfidence is returned when polarity magnitude does not exceed the
	// threshold. Low-magnitude polarity does not imply low confidence.
	DefaultConfidence = 0.5
)

// Default keyword sets, matched as lowercased substrings.
var (
	DefaultDoubtKeywords       = []string{"dúvida", "não entendi", "confuso", "como", "o que", "por que", "?"}
	DefaultDisinterestKeywords = []string{"não quero", "desistir", "cancelar", "chato", "pare", "parar"}
)

// Classifier scores message text. The zero value is not usable; construct via New.
type Classifier struct {
	doubtKeywords       []string
	disinterestKeywords []string
}

// Option defines a configuration option for the Classifier.
type Option func(*Classifier)

// WithDoubtKeywords overrides the doubt keyword set.
func WithDoubtKeywords(keywords []string) Option {
	return func(c *Classifier) {
		if len(keywords) > 0 {
			c.doubtKeywords = keywords
		}
	}
}

// WithDisinterestKeywords overrides the disinterest keyword set.
func WithDisinterestKeywords(keywords []string) Option {
	return func(c *Classifier) {
		if len(keywords) > 0 {
			c.disinterestKeywords = keywords
		}
	}
}

// New creates a Classifier with the default keyword sets, applying any options.
func New(opts ...Option) *Classifier {
	c := &Classifier{
		doubtKeywords:       DefaultDoubtKeywords,
		disinterestKeywords: DefaultDisinterestKeywords,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify scores the given text. It never panics through to the caller: any
// internal failure yields a neutral, zero-confidence result.
func (c *Classifier) Classify(text string) (result models.SentimentResult) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Classifier.Classify: recovered from panic, returning neutral result", "panic", r)
			result = models.SentimentResult{SentimentClass: models.SentimentNeutral}
		}
	}()

	lower := strings.ToLower(text)
	polarity, subjectivity := score(lower)

	result = models.SentimentResult{
		Polarity:       polarity,
		Subjectivity:   subjectivity,
		SentimentClass: ClassifyPolarity(polarity),
		HasDoubt:       containsAny(lower, c.doubtKeywords),
		HasDisinterest: containsAny(lower, c.disinterestKeywords),
		Confidence:     ConfidenceFor(polarity),
	}
	slog.Debug("Classifier.Classify: scored text",
		"polarity", result.Polarity, "class", result.SentimentClass,
		"doubt", result.HasDoubt, "disinterest", result.HasDisinterest)
	return result
}

// ClassifyPolarity buckets a polarity score. The boundaries are inclusive:
// exactly 0.1 classifies positive and exactly -0.1 classifies negative.
func ClassifyPolarity(polarity float64) models.SentimentClass {
	switch {
	case polarity >= PolarityThreshold:
		return models.SentimentPositive
	case polarity <= -PolarityThreshold:
		return models.SentimentNegative
	default:
		return models.SentimentNeutral
	}
}

// ConfidenceFor derives confidence from polarity magnitude. Magnitude at or
// below the threshold yields the fixed default rather than a low value.
func ConfidenceFor(polarity float64) float64 {
	if abs := math.Abs(polarity); abs > PolarityThreshold {
		return abs
	}
	return DefaultConfidence
}

// containsAny reports whether any keyword occurs as a substring of text.
// Matching is substring, not token, matching.
func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(text, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// score tokenizes the lowercased text and averages lexicon hits, applying
// negation and intensity modifiers to the following scored word.
func score(lower string) (polarity, subjectivity float64) {
	tokens := tokenize(lower)

	var polSum, subjSum float64
	var hits int
	negate := false
	boost := 1.0

	for _, tok := range tokens {
		if negators[tok] {
			negate = true
			continue
		}
		if factor, ok := intensifiers[tok]; ok {
			boost = factor
			continue
		}

		entry, ok := lexicon[tok]
		if !ok {
			// Unscored words do not consume a pending modifier.
			continue
		}

		p := entry.polarity * boost
		if negate {
			// Negation dampens and flips, it does not mirror.
			p = -0.5 * p
		}
		polSum += clamp(p)
		subjSum += entry.subjectivity
		hits++
		negate = false
		boost = 1.0
	}

	if hits == 0 {
		return 0, 0
	}
	return clamp(polSum / float64(hits)), subjSum / float64(hits)
}

// tokenize splits on anything that is not a letter, keeping accented runes.
func tokenize(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !isLetter(r)
	})
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r > 127
}

func clamp(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}

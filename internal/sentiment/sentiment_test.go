package sentiment

import (
	"math"
	"testing"

	"github.com/jrdesigniub9/novoitm2/internal/models"
)

func TestClassifyPolarity_InclusiveBoundaries(t *testing.T) {
	cases := []struct {
		polarity float64
		want     models.SentimentClass
	}{
		{0.1, models.SentimentPositive},
		{-0.1, models.SentimentNegative},
		{0.0999, models.SentimentNeutral},
		{-0.0999, models.SentimentNeutral},
		{0, models.SentimentNeutral},
		{0.9, models.SentimentPositive},
		{-0.9, models.SentimentNegative},
	}
	for _, tc := range cases {
		if got := ClassifyPolarity(tc.polarity); got != tc.want {
			t.Errorf("ClassifyPolarity(%v) = %q, want %q", tc.polarity, got, tc.want)
		}
	}
}

func TestConfidenceFor_DefaultsBelowThreshold(t *testing.T) {
	if got := ConfidenceFor(0.05); got != DefaultConfidence {
		t.Errorf("expected default confidence %v for low polarity, got %v", DefaultConfidence, got)
	}
	if got := ConfidenceFor(0.1); got != DefaultConfidence {
		t.Errorf("expected default confidence at exactly the threshold, got %v", got)
	}
	if got := ConfidenceFor(0.8); got != 0.8 {
		t.Errorf("expected confidence 0.8, got %v", got)
	}
	if got := ConfidenceFor(-0.8); got != 0.8 {
		t.Errorf("expected confidence from magnitude for negative polarity, got %v", got)
	}
}

func TestClassify_PositiveMessage(t *testing.T) {
	c := New()
	result := c.Classify("Adorei o produto! Está perfeito, muito obrigado!")

	if result.SentimentClass != models.SentimentPositive {
		t.Errorf("expected positive class, got %q (polarity %v)", result.SentimentClass, result.Polarity)
	}
	if result.Polarity <= PolarityThreshold {
		t.Errorf("expected polarity above threshold, got %v", result.Polarity)
	}
	if result.HasDoubt || result.HasDisinterest {
		t.Errorf("expected no doubt/disinterest flags, got doubt=%v disinterest=%v", result.HasDoubt, result.HasDisinterest)
	}
	if math.Abs(result.Confidence-result.Polarity) > 1e-9 {
		t.Errorf("expected confidence to equal polarity magnitude, got %v vs %v", result.Confidence, result.Polarity)
	}
}

func TestClassify_DisinterestMessage(t *testing.T) {
	c := New()
	result := c.Classify("Não quero mais isso, cancelar tudo agora!")

	if result.SentimentClass != models.SentimentNegative {
		t.Errorf("expected negative class, got %q (polarity %v)", result.SentimentClass, result.Polarity)
	}
	if !result.HasDisinterest {
		t.Error("expected disinterest flag for 'não quero' and 'cancelar'")
	}
}

func TestClassify_DoubtMessage(t *testing.T) {
	c := New()
	result := c.Classify("Não entendi como funciona isso, pode me explicar?")

	if !result.HasDoubt {
		t.Error("expected doubt flag for 'não entendi', 'como', and '?'")
	}
	if result.HasDisinterest {
		t.Error("did not expect disinterest flag")
	}
}

func TestClassify_NeutralWhenNoLexiconHits(t *testing.T) {
	c := New()
	result := c.Classify("o pacote chegou ontem")

	if result.SentimentClass != models.SentimentNeutral {
		t.Errorf("expected neutral class, got %q", result.SentimentClass)
	}
	if result.Polarity != 0 {
		t.Errorf("expected zero polarity, got %v", result.Polarity)
	}
	if result.Confidence != DefaultConfidence {
		t.Errorf("expected default confidence, got %v", result.Confidence)
	}
}

func TestClassify_EmptyText(t *testing.T) {
	c := New()
	result := c.Classify("")

	if result.SentimentClass != models.SentimentNeutral {
		t.Errorf("expected neutral class for empty text, got %q", result.SentimentClass)
	}
	if result.HasDoubt || result.HasDisinterest {
		t.Error("expected no keyword flags for empty text")
	}
}

func TestClassify_KeywordMatchIsSubstringNotToken(t *testing.T) {
	c := New(WithDoubtKeywords([]string{"como"}))
	// "como" occurs inside "incomodado"; substring matching flags it anyway.
	result := c.Classify("estou incomodado")
	if !result.HasDoubt {
		t.Error("expected substring keyword match inside a larger word")
	}
}

func TestClassify_KeywordMatchIsCaseInsensitive(t *testing.T) {
	c := New()
	result := c.Classify("CANCELAR TUDO")
	if !result.HasDisinterest {
		t.Error("expected case-insensitive disinterest match")
	}
}

func TestClassify_CustomKeywordsOverrideDefaults(t *testing.T) {
	c := New(
		WithDoubtKeywords([]string{"help me"}),
		WithDisinterestKeywords([]string{"unsubscribe"}),
	)
	result := c.Classify("não entendi nada")
	if result.HasDoubt {
		t.Error("default doubt keywords should be replaced by the override")
	}
	result = c.Classify("please unsubscribe")
	if !result.HasDisinterest {
		t.Error("expected custom disinterest keyword to match")
	}
}

func TestClassify_EmptyOverrideKeepsDefaults(t *testing.T) {
	c := New(WithDoubtKeywords(nil))
	result := c.Classify("tenho uma dúvida")
	if !result.HasDoubt {
		t.Error("nil override should keep the default doubt keywords")
	}
}

func TestScore_NegationFlipsAndDampens(t *testing.T) {
	// "bom" alone scores positive; "não bom" flips to a dampened negative.
	plain := New().Classify("bom")
	negated := New().Classify("não bom")

	if plain.Polarity <= 0 {
		t.Fatalf("expected positive polarity for 'bom', got %v", plain.Polarity)
	}
	want := -0.5 * plain.Polarity
	if math.Abs(negated.Polarity-want) > 1e-9 {
		t.Errorf("expected negated polarity %v, got %v", want, negated.Polarity)
	}
}

func TestScore_IntensifierBoosts(t *testing.T) {
	plain := New().Classify("obrigado")
	boosted := New().Classify("muito obrigado")
	if boosted.Polarity <= plain.Polarity {
		t.Errorf("expected intensifier to raise polarity: %v vs %v", boosted.Polarity, plain.Polarity)
	}
}

func TestScore_ClampsToUnitRange(t *testing.T) {
	result := New().Classify("extremamente perfeito")
	if result.Polarity > 1 || result.Polarity < -1 {
		t.Errorf("polarity out of range: %v", result.Polarity)
	}
}

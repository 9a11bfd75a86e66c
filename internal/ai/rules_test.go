package ai

import (
	"testing"

	"github.com/jrdesigniub9/novoitm2/internal/models"
)

func TestSelectAction_DisinterestBeatsEverything(t *testing.T) {
	result := models.SentimentResult{
		SentimentClass: models.SentimentNegative,
		HasDoubt:       true,
		HasDisinterest: true,
		Confidence:     0.95,
	}
	action, ok := SelectAction(result, 0.7)
	if !ok || action != ActionDisinterestRetention {
		t.Errorf("expected disinterest_retention, got %q (ok=%v)", action, ok)
	}
}

func TestSelectAction_DoubtBeatsEscalation(t *testing.T) {
	result := models.SentimentResult{
		SentimentClass: models.SentimentNegative,
		HasDoubt:       true,
		Confidence:     0.95,
	}
	action, ok := SelectAction(result, 0.7)
	if !ok || action != ActionDoubtHelp {
		t.Errorf("expected doubt_help, got %q (ok=%v)", action, ok)
	}
}

func TestSelectAction_EscalationRequiresConfidenceAboveThreshold(t *testing.T) {
	result := models.SentimentResult{
		SentimentClass: models.SentimentNegative,
		Confidence:     0.7,
	}
	if action, ok := SelectAction(result, 0.7); ok {
		t.Errorf("confidence at the threshold must not escalate, got %q", action)
	}

	result.Confidence = 0.71
	action, ok := SelectAction(result, 0.7)
	if !ok || action != ActionNegativeEscalation {
		t.Errorf("expected negative_escalation above threshold, got %q (ok=%v)", action, ok)
	}
}

func TestSelectAction_EscalationRequiresNegativeClass(t *testing.T) {
	result := models.SentimentResult{
		SentimentClass: models.SentimentPositive,
		Confidence:     0.95,
	}
	if action, ok := SelectAction(result, 0.7); ok {
		t.Errorf("positive sentiment must not escalate, got %q", action)
	}
}

func TestSelectAction_NoneForNeutral(t *testing.T) {
	result := models.SentimentResult{
		SentimentClass: models.SentimentNeutral,
		Confidence:     0.5,
	}
	if action, ok := SelectAction(result, 0.7); ok {
		t.Errorf("expected no action for a neutral result, got %q", action)
	}
}

func TestActionMessage_KnownActionsHaveCopy(t *testing.T) {
	for _, action := range []Action{ActionDisinterestRetention, ActionDoubtHelp, ActionNegativeEscalation} {
		if ActionMessage(action) == "" {
			t.Errorf("missing follow-up copy for %q", action)
		}
	}
	if ActionMessage("bogus") != "" {
		t.Error("unknown action should have empty copy")
	}
}

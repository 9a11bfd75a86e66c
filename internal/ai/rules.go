// Package ai implements the inbound AI pipeline: conversation sessions,
// sentiment-driven trigger rules, and the responder that ties classification,
// reply generation, and messaging together.
package ai

import (
	"github.com/jrdesigniub9/novoitm2/internal/models"
)

// Action identifies a sentiment-triggered follow-up.
type Action string

const (
	// ActionDisinterestRetention fires when the contact signals disinterest.
	ActionDisinterestRetention Action = "disinterest_retention"
	// ActionDoubtHelp fires when the contact signals doubt or confusion.
	ActionDoubtHelp Action = "doubt_help"
	// ActionNegativeEscalation fires on confidently negative sentiment.
	ActionNegativeEscalation Action = "negative_escalation"
)

// actionMessages is the follow-up copy sent for each action.
var actionMessages = map[Action]string{
	ActionDisinterestRetention: "Percebi que talvez você não esteja interessado no momento. " +
		"Posso te oferecer uma condição especial ou tirar alguma dúvida antes de encerrarmos?",
	ActionDoubtHelp: "Parece que ficou alguma dúvida. Quer que eu explique de outra forma " +
		"ou te envie mais detalhes?",
	ActionNegativeEscalation: "Sinto muito pela experiência negativa. Vou encaminhar seu caso " +
		"para um de nossos atendentes, que entrará em contato em breve.",
}

// ActionMessage returns the follow-up message for an action, or "" for an
// unknown action.
func ActionMessage(a Action) string {
	return actionMessages[a]
}

// SelectAction maps a sentiment result to at most one action. Rules are
// evaluated in strict priority order: disinterest beats doubt, and doubt beats
// negative escalation. Escalation additionally requires the sentiment to be
// negative with confidence strictly above the configured threshold.
func SelectAction(result models.SentimentResult, confidenceThreshold float64) (Action, bool) {
	switch {
	case result.HasDisinterest:
		return ActionDisinterestRetention, true
	case result.HasDoubt:
		return ActionDoubtHelp, true
	case result.SentimentClass == models.SentimentNegative && result.Confidence > confidenceThreshold:
		return ActionNegativeEscalation, true
	default:
		return "", false
	}
}

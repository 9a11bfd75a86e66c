package flow

import (
	"context"
	"log/slog"
	"strings"

	"github.com/jrdesigniub9/novoitm2/internal/models"
	"github.com/jrdesigniub9/novoitm2/internal/store"
)

// Router matches inbound messages against flow triggers and runs every
// matching flow with the sender as the recipient.
type Router struct {
	store  store.Store
	engine *Engine
}

// NewRouter creates a router over the given store and engine.
func NewRouter(st store.Store, engine *Engine) *Router {
	return &Router{store: st, engine: engine}
}

// HandleInbound runs every flow whose trigger matches the message. Failures of
// one flow never prevent the others from running.
func (r *Router) HandleInbound(ctx context.Context, msg models.InboundMessage) {
	if msg.FromMe || msg.Text == "" {
		return
	}

	flows, err := r.store.GetFlows()
	if err != nil {
		slog.Error("Router.HandleInbound failed to load flows", "error", err)
		return
	}

	matched := MatchFlows(flows, msg)
	if len(matched) == 0 {
		return
	}
	slog.Info("Router.HandleInbound matched flows",
		"count", len(matched), "instance_id", msg.InstanceID, "sender_id", msg.SenderID)

	for _, f := range matched {
		if _, err := r.engine.Execute(ctx, f.ID, msg.SenderID, msg.InstanceID); err != nil {
			slog.Error("Router.HandleInbound flow execution failed",
				"error", err, "flow_id", f.ID, "instance_id", msg.InstanceID)
		}
	}
}

// MatchFlows selects the active flows whose trigger keywords match the message
// text and whose instance binding admits the message's instance. A flow bound
// to a specific instance only fires for that instance; an unbound flow fires
// for any instance.
func MatchFlows(flows []models.Flow, msg models.InboundMessage) []models.Flow {
	var matched []models.Flow
	for _, f := range flows {
		if !f.IsActive {
			continue
		}
		if f.SelectedInstance != "" && f.SelectedInstance != msg.InstanceID {
			continue
		}
		trigger := firstTrigger(&f)
		if trigger == nil {
			continue
		}
		if triggerMatches(*trigger, msg.Text) {
			matched = append(matched, f)
		}
	}
	return matched
}

// triggerMatches reports whether any of the trigger node's keywords occurs as
// a case-insensitive substring of the message text. A trigger without
// keywords matches every message.
func triggerMatches(trigger models.FlowNode, text string) bool {
	keywords := models.DataStringSlice(trigger.Data, "keywords")
	if kw := models.DataString(trigger.Data, "keyword"); kw != "" {
		keywords = append(keywords, kw)
	}
	if len(keywords) == 0 {
		return true
	}

	lower := strings.ToLower(text)
	for _, kw := range keywords {
		kw = strings.TrimSpace(strings.ToLower(kw))
		if kw != "" && strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

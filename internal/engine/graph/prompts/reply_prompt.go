package prompts

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/parceldesk/core/internal/engine/model"
)

//go:embed template/reply_persona.txt
var replyPersonaPrompt string

//go:embed template/summarizer_prompt.txt
var summarizerSystemPrompt string

// SummarizerSystem returns the static summarizer instruction.
func SummarizerSystem() string {
	return summarizerSystemPrompt
}

// RenderReplySystem assembles the layered reply system prompt, most general
// first: (1) persona for the resolved specialist, or the generic persona when
// none matched; (2) retrieved policy summary; (3) tracking snapshot facts.
// Conversation history and the current message are appended as messages by
// the caller, not folded into the system prompt.
func RenderReplySystem(
	ctx context.Context,
	persona model.PersonaConfig,
	decision *model.RoutingDecision,
	knowledge *model.KnowledgeSummary,
	tracking *model.TrackingSnapshot,
) (string, error) {
	base, err := renderPersonaBlock(ctx, persona, decision)
	if err != nil {
		return "", err
	}

	blocks := []string{base}

	if knowledge != nil && strings.TrimSpace(knowledge.Summary) != "" {
		blocks = append(blocks, "Relevant policies for this request:\n"+strings.TrimSpace(knowledge.Summary))
	}

	if tracking != nil {
		blocks = append(blocks, trackingBlock(tracking))
	}

	return strings.Join(blocks, "\n\n"), nil
}

func renderPersonaBlock(ctx context.Context, persona model.PersonaConfig, decision *model.RoutingDecision) (string, error) {
	vars := map[string]any{
		"BusinessType":  persona.BusinessType,
		"BusinessName":  persona.BusinessName,
		"HasSpecialist": false,
	}
	if decision != nil && decision.EffectiveSpecialist != nil {
		sp := decision.EffectiveSpecialist
		vars["HasSpecialist"] = true
		vars["SpecialistName"] = sp.Name
		vars["SpecialistDescription"] = sp.Description
		vars["PersonaNotes"] = sp.PersonaNotes
		vars["RequiredFields"] = strings.Join(sp.RequiredFields, ", ")
		vars["KnowledgeNotes"] = sp.KnowledgeNotes
		vars["EscalationRules"] = sp.EscalationRules
	}

	// Render via Eino prompt component (Go template) to both format and emit callbacks
	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(replyPersonaPrompt),
	)
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("reply persona render: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("reply persona render: empty result")
	}
	return msgs[0].Content, nil
}

// trackingBlock frames the snapshot as factual shipment data with up to the 3
// most recent scan events.
func trackingBlock(t *model.TrackingSnapshot) string {
	var b strings.Builder
	b.WriteString("Factual shipment data for this conversation (do not invent beyond it):\n")
	b.WriteString("- Tracking id: " + t.TrackingID + "\n")
	if t.Carrier != "" {
		b.WriteString("- Carrier: " + t.Carrier + "\n")
	}
	if t.Status != "" {
		b.WriteString("- Status: " + t.Status + "\n")
	}
	if t.ETA != nil {
		b.WriteString("- Estimated delivery: " + t.ETA.Format("2006-01-02") + "\n")
	}
	if t.LastEvent != "" {
		b.WriteString("- Last event: " + t.LastEvent)
		if t.LastLocation != "" {
			b.WriteString(" (" + t.LastLocation + ")")
		}
		b.WriteString("\n")
	}
	recent := t.RecentScans(3)
	if len(recent) > 0 {
		b.WriteString("- Recent scans:\n")
		for _, sc := range recent {
			b.WriteString("  - " + sc.Time.Format("2006-01-02 15:04") + " " + sc.Status)
			if sc.Location != "" {
				b.WriteString(" @ " + sc.Location)
			}
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

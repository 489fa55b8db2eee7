// Package router applies confidence thresholds and conversational memory to
// resolve the effective intent and specialist for one turn, producing an
// ordered rationale trail consumed by the reply composer and the run logger.
package router

import (
	"fmt"

	"github.com/parceldesk/core/internal/engine/model"
	logx "github.com/parceldesk/core/pkg/logger"
)

// DefaultConfidenceThreshold gates whether a classification is trusted for
// routing. Below it, the classification is discarded for routing purposes but
// still recorded in the rationale.
const DefaultConfidenceThreshold = 0.6

type Router struct {
	threshold float64
}

func New(cfg model.RouterConfig) *Router {
	th := cfg.ConfidenceThreshold
	if th <= 0 || th > 1 {
		th = DefaultConfidenceThreshold
	}
	return &Router{threshold: th}
}

// Decide resolves the effective intent and specialist for the current turn.
// priorTurn is nil on the first turn of a conversation; its presence is the
// only signal that prior context exists. Rationale notes are appended in
// chronological decision order: classification outcome, fallback applied or
// not, specialist resolution, tagging hints.
func (r *Router) Decide(
	classification model.Classification,
	intents *model.IntentCatalog,
	specialists *model.SpecialistCatalog,
	priorTurn *model.PriorTurn,
) model.RoutingDecision {
	d := model.RoutingDecision{}

	trusted := r.trustedIntent(classification, intents, &d)

	if trusted == nil {
		if priorTurn != nil {
			r.applyFallback(priorTurn, intents, &d)
		} else {
			d.Note("first turn without a trusted classification; no specialist matched")
		}
	} else {
		d.EffectiveIntent = trusted
		d.Note(fmt.Sprintf("routing on intent %q", trusted.ID))
	}

	r.resolveSpecialist(specialists, &d)
	r.tagHints(&d)

	logx.Debug().
		Str("intent_id", classification.IntentID).
		Float64("confidence", classification.Confidence).
		Bool("is_fallback", d.IsFallback).
		Bool("handover", d.Handover).
		Msg("routing decision made")

	return d
}

// trustedIntent records the classification outcome and returns the intent the
// engine may route on, or nil when the classification is untrustworthy.
func (r *Router) trustedIntent(
	c model.Classification,
	intents *model.IntentCatalog,
	d *model.RoutingDecision,
) *model.Intent {
	if c.Unknown() {
		d.Note(fmt.Sprintf("classifier returned no usable intent (confidence %.2f)", c.Confidence))
		return nil
	}

	it, ok := intents.Lookup(c.IntentID)
	if !ok {
		// never trust an out-of-catalog id, whatever confidence it reported
		d.Note(fmt.Sprintf("classified intent %q is not in the catalog; treated as unknown", c.IntentID))
		return nil
	}

	if c.Confidence < r.threshold {
		d.Note(fmt.Sprintf("classified intent %q below threshold (%.2f < %.2f)", c.IntentID, c.Confidence, r.threshold))
		return nil
	}

	d.Note(fmt.Sprintf("classified intent %q with confidence %.2f", c.IntentID, c.Confidence))
	return &it
}

// applyFallback retains the prior turn's intent, and transitively its
// specialist, when the current classification cannot be trusted.
func (r *Router) applyFallback(priorTurn *model.PriorTurn, intents *model.IntentCatalog, d *model.RoutingDecision) {
	it, ok := intents.Lookup(priorTurn.IntentID)
	if !ok {
		d.Note(fmt.Sprintf("prior intent %q is no longer configured; no specialist matched", priorTurn.IntentID))
		return
	}
	d.EffectiveIntent = &it
	d.IsFallback = true
	d.Note("low confidence; retaining prior intent/specialist for context")
}

// resolveSpecialist maps the effective intent to its specialist. An intent
// whose specialist reference does not resolve is a distinct terminal outcome
// from "intent unknown" and is logged as a handover.
func (r *Router) resolveSpecialist(specialists *model.SpecialistCatalog, d *model.RoutingDecision) {
	if d.EffectiveIntent == nil {
		d.Handover = true
		d.Note("no specialist matched; conversation flagged for human handover")
		return
	}

	if d.EffectiveIntent.SpecialistID == "" {
		d.Handover = true
		d.Note(fmt.Sprintf("intent %q has no specialist configured; conversation flagged for human handover", d.EffectiveIntent.ID))
		return
	}

	sp, ok := specialists.Lookup(d.EffectiveIntent.SpecialistID)
	if !ok {
		d.Handover = true
		d.Note(fmt.Sprintf("specialist %q referenced by intent %q is not configured; conversation flagged for human handover",
			d.EffectiveIntent.SpecialistID, d.EffectiveIntent.ID))
		return
	}

	d.EffectiveSpecialist = &sp
	d.Note(fmt.Sprintf("assigned specialist %q", sp.ID))
}

// tagHints appends the closing rationale entry with the labels the run logger
// attaches to the ticket.
func (r *Router) tagHints(d *model.RoutingDecision) {
	switch {
	case d.EffectiveSpecialist != nil && d.IsFallback:
		d.Note(fmt.Sprintf("tags: intent=%s specialist=%s fallback", d.EffectiveIntent.ID, d.EffectiveSpecialist.ID))
	case d.EffectiveSpecialist != nil:
		d.Note(fmt.Sprintf("tags: intent=%s specialist=%s", d.EffectiveIntent.ID, d.EffectiveSpecialist.ID))
	default:
		d.Note("tags: handover")
	}
}

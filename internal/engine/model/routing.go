package model

// Classification is the classifier's best guess for one conversation turn.
// Produced fresh per call and never mutated afterwards.
type Classification struct {
	IntentID   string  `json:"intent_id"`
	Confidence float64 `json:"confidence"`
}

// Unknown reports whether the classification carries no usable intent.
func (c Classification) Unknown() bool {
	return c.IntentID == "" || c.IntentID == UnknownIntentID
}

// PriorTurn carries the previous turn's routing outcome for a ticket. The
// caller passes it explicitly; its presence marks the call as a non-first
// turn.
type PriorTurn struct {
	IntentID     string `json:"intent_id"`
	SpecialistID string `json:"specialist_id,omitempty"`
}

// RoutingDecision is built once per call and consumed by the reply composer
// and the run logger. When IsFallback is true the effective intent and
// specialist come from the prior turn, never from a low-confidence current
// classification.
type RoutingDecision struct {
	EffectiveIntent     *Intent
	EffectiveSpecialist *Specialist
	Rationale           []string
	IsFallback          bool
	Handover            bool
}

// Matched reports whether a specialist was resolved for this turn.
func (d *RoutingDecision) Matched() bool {
	return d.EffectiveSpecialist != nil
}

// Note appends a rationale entry. Entries are kept in chronological decision
// order; tests assert on the sequence.
func (d *RoutingDecision) Note(s string) {
	d.Rationale = append(d.Rationale, s)
}

package model

// UnknownIntentID is the sentinel the classifier returns when no configured
// intent fits the conversation.
const UnknownIntentID = "unknown"

// Intent is a named category of customer request, mapped to at most one
// specialist. Catalogs are owned by the external config collaborator and are
// read-only inputs to a routing call.
type Intent struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	SpecialistID string `json:"specialist_id,omitempty"`
}

// Specialist is a configured persona used to frame generated replies.
type Specialist struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	PersonaNotes    string   `json:"persona_notes"`
	RequiredFields  []string `json:"required_fields,omitempty"`
	KnowledgeNotes  string   `json:"knowledge_notes,omitempty"`
	EscalationRules string   `json:"escalation_rules,omitempty"`
}

// IntentCatalog is a typed lookup over configured intents keyed by stable id.
type IntentCatalog struct {
	byID    map[string]Intent
	ordered []Intent
}

// NewIntentCatalog builds a catalog from the collaborator-supplied list.
// Order is preserved for prompt rendering.
func NewIntentCatalog(intents []Intent) *IntentCatalog {
	c := &IntentCatalog{
		byID:    make(map[string]Intent, len(intents)),
		ordered: make([]Intent, 0, len(intents)),
	}
	for _, it := range intents {
		if it.ID == "" {
			continue
		}
		if _, dup := c.byID[it.ID]; dup {
			continue
		}
		c.byID[it.ID] = it
		c.ordered = append(c.ordered, it)
	}
	return c
}

func (c *IntentCatalog) Lookup(id string) (Intent, bool) {
	it, ok := c.byID[id]
	return it, ok
}

func (c *IntentCatalog) Len() int { return len(c.ordered) }

// All returns the intents in configuration order.
func (c *IntentCatalog) All() []Intent {
	out := make([]Intent, len(c.ordered))
	copy(out, c.ordered)
	return out
}

// SpecialistCatalog is a typed lookup over configured specialists.
type SpecialistCatalog struct {
	byID map[string]Specialist
}

func NewSpecialistCatalog(specialists []Specialist) *SpecialistCatalog {
	c := &SpecialistCatalog{byID: make(map[string]Specialist, len(specialists))}
	for _, sp := range specialists {
		if sp.ID == "" {
			continue
		}
		if _, dup := c.byID[sp.ID]; dup {
			continue
		}
		c.byID[sp.ID] = sp
	}
	return c
}

func (c *SpecialistCatalog) Lookup(id string) (Specialist, bool) {
	sp, ok := c.byID[id]
	return sp, ok
}

func (c *SpecialistCatalog) Len() int { return len(c.byID) }

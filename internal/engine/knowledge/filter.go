package knowledge

import "github.com/parceldesk/core/internal/engine/model"

// FilterScoped enforces scope eligibility over a ranked candidate set. The
// underlying index may not support the combined filter signature in every
// deployment, so the index-level pre-filter is best-effort and this in-process
// pass is the source of truth:
//
//   - a chunk scoped to a specific specialist is eligible only when it matches
//     the requested specialist;
//   - a chunk scoped to a specific intent is excluded only when it names a
//     different intent than the one requested; chunks with no intent scope are
//     always eligible.
//
// Ranking order is preserved. The filter is idempotent: filtering an
// already-filtered set changes nothing.
func FilterScoped(chunks []model.KnowledgeChunk, specialistScope, intentScope string) []model.KnowledgeChunk {
	out := make([]model.KnowledgeChunk, 0, len(chunks))
	for _, ch := range chunks {
		if ch.ScopeSpecialistID != "" && ch.ScopeSpecialistID != specialistScope {
			continue
		}
		if ch.ScopeIntentID != "" && intentScope != "" && ch.ScopeIntentID != intentScope {
			continue
		}
		out = append(out, ch)
	}
	return out
}

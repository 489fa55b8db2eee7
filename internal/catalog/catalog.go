// Package catalog supplies the configured intents and specialists for a
// tenant. Catalogs are owned by the admin surface; the routing engine only
// reads them.
package catalog

import (
	"context"

	"github.com/parceldesk/core/internal/engine/model"
)

// Provider returns the configured catalogs for a tenant.
type Provider interface {
	Intents(ctx context.Context, orgID string) ([]model.Intent, error)
	Specialists(ctx context.Context, orgID string) ([]model.Specialist, error)
}

// StaticProvider serves fixed catalogs, used in tests and single-tenant runs.
type StaticProvider struct {
	IntentList     []model.Intent
	SpecialistList []model.Specialist
}

func NewStaticProvider(intents []model.Intent, specialists []model.Specialist) *StaticProvider {
	return &StaticProvider{IntentList: intents, SpecialistList: specialists}
}

func (p *StaticProvider) Intents(_ context.Context, _ string) ([]model.Intent, error) {
	out := make([]model.Intent, len(p.IntentList))
	copy(out, p.IntentList)
	return out, nil
}

func (p *StaticProvider) Specialists(_ context.Context, _ string) ([]model.Specialist, error) {
	out := make([]model.Specialist, len(p.SpecialistList))
	copy(out, p.SpecialistList)
	return out, nil
}

var _ Provider = (*StaticProvider)(nil)

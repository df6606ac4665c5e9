// Package identity validates references to users and agents.
package identity

import (
	"context"

	"github.com/capitalize-ai/support-chat/internal/model"
	"github.com/capitalize-ai/support-chat/internal/store"
)

// Resolver checks that identifiers denote existing parties of an expected role.
type Resolver struct {
	parties store.PartyStore
}

// NewResolver creates a resolver backed by a party store.
func NewResolver(parties store.PartyStore) *Resolver {
	return &Resolver{parties: parties}
}

// Resolve returns nil when id is well formed and names a party with role.
// Malformed ids yield an invalid identifier error, unknown ids a not found error.
func (r *Resolver) Resolve(ctx context.Context, id string, role model.Role) error {
	if !model.ValidID(id) {
		return model.InvalidIdentifierf("invalid %s ID", role)
	}

	ok, err := r.parties.PartyExists(ctx, id, role)
	if err != nil {
		return err
	}
	if !ok {
		return model.NotFoundf("%s not found", role)
	}
	return nil
}

// Summaries loads the minimal profiles for ids. Unknown ids are omitted.
func (r *Resolver) Summaries(ctx context.Context, ids ...string) (map[string]*model.PartySummary, error) {
	parties, err := r.parties.GetParties(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make(map[string]*model.PartySummary, len(parties))
	for id, p := range parties {
		out[id] = p.Summary()
	}
	return out, nil
}

// Agents returns the agent directory ordered by name.
func (r *Resolver) Agents(ctx context.Context) ([]model.PartySummary, error) {
	agents, err := r.parties.ListParties(ctx, model.RoleAgent)
	if err != nil {
		return nil, err
	}

	out := make([]model.PartySummary, len(agents))
	for i := range agents {
		out[i] = *agents[i].Summary()
	}
	return out, nil
}

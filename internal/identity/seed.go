package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/capitalize-ai/support-chat/internal/model"
	"github.com/capitalize-ai/support-chat/internal/store"
)

// LoadSeed reads a JSON array of parties from path and upserts each one.
// It returns the number of parties written.
func LoadSeed(ctx context.Context, parties store.PartyStore, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read party seed: %w", err)
	}

	var seed []model.Party
	if err := json.Unmarshal(data, &seed); err != nil {
		return 0, fmt.Errorf("failed to parse party seed: %w", err)
	}

	for i := range seed {
		p := &seed[i]
		if !model.ValidID(p.ID) {
			return i, fmt.Errorf("party %d: invalid id %q", i, p.ID)
		}
		if !p.Role.Valid() {
			return i, fmt.Errorf("party %s: invalid role %q", p.ID, p.Role)
		}
		if err := parties.UpsertParty(ctx, p); err != nil {
			return i, fmt.Errorf("party %s: %w", p.ID, err)
		}
	}
	return len(seed), nil
}

package game

// DeltaKind tags a change record in a tick's delta batch.
type DeltaKind string

const (
	DeltaPlayerJoined        DeltaKind = "player_joined"
	DeltaPlayerUpdated       DeltaKind = "player_updated"
	DeltaPlayerLeft          DeltaKind = "player_left"
	DeltaProjectileCreated   DeltaKind = "projectile_created"
	DeltaProjectileUpdated   DeltaKind = "projectile_updated"
	DeltaProjectileDestroyed DeltaKind = "projectile_destroyed"
	DeltaPowerUpState        DeltaKind = "powerup_state"
	DeltaGameEvent           DeltaKind = "game_event"
)

// Delta is one change record. Update records carry only the fields
// whose value changed since the last commit; create records carry the
// full entity.
type Delta struct {
	Kind     DeltaKind      `json:"kind"`
	EntityID string         `json:"id,omitempty"`
	Changes  map[string]any `json:"changes,omitempty"`
	Event    *GameEvent     `json:"event,omitempty"`
}

// isUpdate reports whether the record is mergeable by entity id.
func (d Delta) isUpdate() bool {
	return d.Kind == DeltaPlayerUpdated || d.Kind == DeltaProjectileUpdated
}

// CompactDeltas merges update records by entity id with later writes
// winning per field. Create/destroy/event records pass through
// unmerged; a merged update keeps the position of the entity's first
// update in the batch, so ordering relative to creates and destroys
// in the same tick is preserved.
func CompactDeltas(batch []Delta) []Delta {
	if len(batch) < 2 {
		return batch
	}

	type slot struct{ kind DeltaKind }
	out := make([]Delta, 0, len(batch))
	pending := make(map[slot]map[string]int) // kind -> entity id -> index in out

	for _, d := range batch {
		if !d.isUpdate() {
			out = append(out, d)
			continue
		}

		byID := pending[slot{d.Kind}]
		if byID == nil {
			byID = make(map[string]int)
			pending[slot{d.Kind}] = byID
		}

		if idx, ok := byID[d.EntityID]; ok {
			merged := out[idx].Changes
			for field, value := range d.Changes {
				merged[field] = value
			}
			continue
		}

		// First update for this entity: copy changes so later merges
		// cannot alias the caller's map.
		changes := make(map[string]any, len(d.Changes))
		for field, value := range d.Changes {
			changes[field] = value
		}
		out = append(out, Delta{Kind: d.Kind, EntityID: d.EntityID, Changes: changes})
		byID[d.EntityID] = len(out) - 1
	}

	return out
}

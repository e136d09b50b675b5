package store

import (
	"fmt"

	"github.com/tinode/groups/server/store/types"
)

// SyncGroups reconciles groups from the configuration with the database: groups
// not yet in the database are added, existing groups get their name and
// description updated. Groups missing from the configuration are left alone.
// Returns the number of processed groups.
func SyncGroups(s Storage, groups []types.Group) (int, error) {
	seen := make(map[string]bool, len(groups))
	for i := range groups {
		g := &groups[i]
		if !g.IsValid() {
			return i, fmt.Errorf("store: group #%d has no node id", i)
		}
		if seen[g.Node] {
			return i, fmt.Errorf("store: group '%s' is configured more than once", g.Node)
		}
		seen[g.Node] = true

		if err := s.UpsertGroup(g.Node, g.Name, g.Description); err != nil {
			return i, fmt.Errorf("store: failed to sync group '%s': %w", g.Node, err)
		}
	}
	return len(groups), nil
}

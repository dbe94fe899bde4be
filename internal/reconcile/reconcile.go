// Package reconcile computes drift between optimistic local state and the
// authoritative server state. Engines use it when a server snapshot replaces a
// local one, to log and count what the optimistic updates got wrong.
package reconcile

import (
	"sort"

	"storefront-proxy/internal/model"
)

// Line is one cart line reduced to what drift cares about.
type Line struct {
	ProductID string
	Count     int
	UnitPrice model.Money
}

// Change is a line present on both sides whose count or price differs.
type Change struct {
	ProductID   string
	LocalCount  int
	ServerCount int
	LocalPrice  model.Money
	ServerPrice model.Money
}

// LineDrift describes how the server's lines differ from the local ones.
// Slices are sorted by product id.
type LineDrift struct {
	Appeared []Line   // on the server only
	Vanished []Line   // local only
	Changed  []Change // on both with different count or price
}

// IsEmpty returns true if local and server agree.
func (d *LineDrift) IsEmpty() bool {
	return len(d.Appeared) == 0 && len(d.Vanished) == 0 && len(d.Changed) == 0
}

// Size is the number of lines that differ.
func (d *LineDrift) Size() int {
	return len(d.Appeared) + len(d.Vanished) + len(d.Changed)
}

// DiffLines compares local lines against server lines, matching by product id.
// A product listed twice on one side keeps its last entry.
func DiffLines(local, server []Line) *LineDrift {
	diff := &LineDrift{}

	localByID := make(map[string]Line, len(local))
	for _, l := range local {
		localByID[l.ProductID] = l
	}
	serverByID := make(map[string]Line, len(server))
	for _, l := range server {
		serverByID[l.ProductID] = l
	}

	for id, s := range serverByID {
		l, exists := localByID[id]
		if !exists {
			diff.Appeared = append(diff.Appeared, s)
			continue
		}
		if l.Count != s.Count || l.UnitPrice != s.UnitPrice {
			diff.Changed = append(diff.Changed, Change{
				ProductID:   id,
				LocalCount:  l.Count,
				ServerCount: s.Count,
				LocalPrice:  l.UnitPrice,
				ServerPrice: s.UnitPrice,
			})
		}
	}

	for id, l := range localByID {
		if _, exists := serverByID[id]; !exists {
			diff.Vanished = append(diff.Vanished, l)
		}
	}

	sort.Slice(diff.Appeared, func(i, j int) bool { return diff.Appeared[i].ProductID < diff.Appeared[j].ProductID })
	sort.Slice(diff.Vanished, func(i, j int) bool { return diff.Vanished[i].ProductID < diff.Vanished[j].ProductID })
	sort.Slice(diff.Changed, func(i, j int) bool { return diff.Changed[i].ProductID < diff.Changed[j].ProductID })

	return diff
}

// SetDrift describes how a server id set differs from the local one.
type SetDrift struct {
	Added   []string // on the server only
	Removed []string // local only
}

// IsEmpty returns true if both sets hold the same ids.
func (d *SetDrift) IsEmpty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0
}

// DiffSets computes the set difference in both directions. Output is sorted.
func DiffSets(local, server []string) *SetDrift {
	diff := &SetDrift{}

	localSet := make(map[string]bool, len(local))
	for _, id := range local {
		localSet[id] = true
	}
	serverSet := make(map[string]bool, len(server))
	for _, id := range server {
		serverSet[id] = true
	}

	for id := range serverSet {
		if !localSet[id] {
			diff.Added = append(diff.Added, id)
		}
	}
	for id := range localSet {
		if !serverSet[id] {
			diff.Removed = append(diff.Removed, id)
		}
	}

	sort.Strings(diff.Added)
	sort.Strings(diff.Removed)
	return diff
}

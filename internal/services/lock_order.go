package services

import (
	"sort"
)

type LockKind int

const (
	LockProfile LockKind = iota
	LockTeam
)

// LockTarget is one row to lock
type LockTarget struct {
	Kind LockKind
	ID   int64
}

// LockOrder returns the order rows must be locked in: profiles by ascending
// id, each once, then the team. Every batch follows the same global order, so
// two batches sharing profiles can block each other but never deadlock.
func LockOrder(profileIDs []int64, teamID int64) []LockTarget {
	ids := make([]int64, len(profileIDs))
	copy(ids, profileIDs)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	order := make([]LockTarget, 0, len(ids)+1)
	for i, id := range ids {
		if i > 0 && id == ids[i-1] {
			continue
		}
		order = append(order, LockTarget{Kind: LockProfile, ID: id})
	}
	return append(order, LockTarget{Kind: LockTeam, ID: teamID})
}

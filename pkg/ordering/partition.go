// Package ordering is the single source of truth for participant ordering.
// The API layer, the gateway's embed renderer, notification targeting, and
// promotion detection all call Partition; nothing else may sort or split a
// roster.
package ordering

import (
	"sort"

	"github.com/gamenightbot/gamenight/pkg/models"
)

// Partitioned is the result of splitting a sorted roster at the confirmed cap.
type Partitioned struct {
	// SortedAll is the full roster sorted by (position_type, position,
	// joined_at), stable.
	SortedAll []models.Participant

	// Confirmed are the first max_players entries of SortedAll. Placeholders
	// occupy confirmed seats like everyone else.
	Confirmed []models.Participant

	// Overflow is the waitlist: everything past the cap.
	Overflow []models.Participant

	// ConfirmedUserIDs and OverflowUserIDs are the real Discord user ids in
	// each bucket. Placeholders contribute no ids.
	ConfirmedUserIDs map[string]struct{}
	OverflowUserIDs  map[string]struct{}
}

// Partition sorts participants and splits them at maxPlayers.
//
// Placeholders count toward the confirmed cap and keep whatever
// (position_type, position) slot they were assigned; there is no trailing
// placeholder tier. Treating them as non-occupying produced
// waitlist-promotion bugs: a real user queued behind a placeholder was
// considered confirmed and never promoted when the placeholder left.
func Partition(participants []models.Participant, maxPlayers int) Partitioned {
	sorted := make([]models.Participant, len(participants))
	copy(sorted, participants)

	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.PositionType != b.PositionType {
			return a.PositionType < b.PositionType
		}
		if a.Position != b.Position {
			return a.Position < b.Position
		}
		return a.JoinedAt.Before(b.JoinedAt)
	})

	cap := maxPlayers
	if cap < 0 {
		cap = 0
	}
	if cap > len(sorted) {
		cap = len(sorted)
	}

	p := Partitioned{
		SortedAll:        sorted,
		Confirmed:        sorted[:cap],
		Overflow:         sorted[cap:],
		ConfirmedUserIDs: make(map[string]struct{}),
		OverflowUserIDs:  make(map[string]struct{}),
	}
	for _, c := range p.Confirmed {
		if c.DiscordID != nil {
			p.ConfirmedUserIDs[*c.DiscordID] = struct{}{}
		}
	}
	for _, o := range p.Overflow {
		if o.DiscordID != nil {
			p.OverflowUserIDs[*o.DiscordID] = struct{}{}
		}
	}
	return p
}

// Promoted returns the Discord user ids that moved from the old overflow to
// the new confirmed set: old.OverflowUserIDs ∩ new.ConfirmedUserIDs.
//
// Callers compute the old partition before mutating, apply the mutation,
// compute the new partition, and DM every returned id.
func Promoted(old, updated Partitioned) []string {
	var ids []string
	for id := range old.OverflowUserIDs {
		if _, ok := updated.ConfirmedUserIDs[id]; ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

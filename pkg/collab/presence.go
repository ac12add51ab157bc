package collab

import (
	"sort"
	"time"
)

// Palette is the fixed set of collaborator colors. Assignment cycles, so
// colors are stable while relative join order is unchanged but are not
// globally unique once more users join than the palette holds.
var Palette = []string{
	"#FF6B6B", "#4ECDC4", "#45B7D1", "#96CEB4",
	"#FFEAA7", "#DDA0DD", "#98D8C8", "#F7DC6F",
}

// CursorPos is a collaborator's caret position, 1-based line, 0-based col.
type CursorPos struct {
	Line int `json:"line"`
	Col  int `json:"col"`
}

// Presence is one connected user's ephemeral state on a document
// channel. It exists only while the session is connected.
type Presence struct {
	UserID      string     `json:"userId"`
	DisplayName string     `json:"displayName"`
	Color       string     `json:"color"`
	Cursor      *CursorPos `json:"cursor"`
	LastSeen    time.Time  `json:"lastSeen"`
}

// ColorForRank returns the palette color for a join-order rank.
func ColorForRank(rank int) string {
	if rank < 0 {
		rank = 0
	}
	return Palette[rank%len(Palette)]
}

// AssignColors recomputes every presence's color from its rank in the
// roster sorted by LastSeen (join order). A user's color can therefore
// change when earlier-joined users disconnect; that is intentional.
func AssignColors(roster []*Presence) {
	sorted := make([]*Presence, len(roster))
	copy(sorted, roster)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].LastSeen.Equal(sorted[j].LastSeen) {
			return sorted[i].UserID < sorted[j].UserID
		}
		return sorted[i].LastSeen.Before(sorted[j].LastSeen)
	})
	for rank, p := range sorted {
		p.Color = ColorForRank(rank)
	}
}

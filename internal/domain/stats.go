package domain

import "sort"

// StatRecord holds per-player, per-spell usage counters.
type StatRecord struct {
	PlayerID   PlayerID `json:"player_id"`
	SpellID    string   `json:"spell_id"`
	CastCount  int64    `json:"cast_count"`
	BindCount  int64    `json:"bind_count"`
	LastCastMs int64    `json:"last_cast_ms"`
}

// SortStatRecords orders records by cast count descending, then spell id.
func SortStatRecords(records []StatRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].CastCount != records[j].CastCount {
			return records[i].CastCount > records[j].CastCount
		}
		return records[i].SpellID < records[j].SpellID
	})
}

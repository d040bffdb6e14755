package analysis

import "sort"

// ConditionEntry is one operating point to evaluate. ID is assigned by the
// server and is 1-based after sorting.
type ConditionEntry struct {
	ID                   int     `json:"ID"`
	WindSpeed            float64 `json:"WindSpeed"`            // m/s
	RotorSpeed           float64 `json:"RotorSpeed"`           // rpm
	BladePitch           float64 `json:"BladePitch"`           // deg
	TowerTopDispForeAft  float64 `json:"TowerTopDispForeAft"`  // m
	TowerTopDispSideSide float64 `json:"TowerTopDispSideSide"` // m
}

// SortConditions orders conditions by wind speed, then rotor speed. Equal
// entries keep their relative order.
func SortConditions(cs []ConditionEntry) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].WindSpeed != cs[j].WindSpeed {
			return cs[i].WindSpeed < cs[j].WindSpeed
		}
		return cs[i].RotorSpeed < cs[j].RotorSpeed
	})
}

// NumberConditions assigns IDs 1..n in slice order.
func NumberConditions(cs []ConditionEntry) {
	for i := range cs {
		cs[i].ID = i + 1
	}
}

// RemoveCondition returns cs without the element at i. ok is false when i
// is out of range, in which case cs is returned unchanged.
func RemoveCondition(cs []ConditionEntry, i int) ([]ConditionEntry, bool) {
	if i < 0 || i >= len(cs) {
		return cs, false
	}
	out := make([]ConditionEntry, 0, len(cs)-1)
	out = append(out, cs[:i]...)
	return append(out, cs[i+1:]...), true
}

package relation

// FilterState holds the caller's visibility criteria for relation edges.
// Allow-list fields treat an empty list as "pass everything". The zero
// FilterState passes every valid record.
type FilterState struct {
	Types         []RelationType
	Bands         []StrengthBand
	Valences      []Valence
	MinStrength   float64
	ConfirmedOnly bool
}

// Visible reports whether a record passes every active criterion.
// Checks run cheapest first and short-circuit: strength threshold
// (inclusive), valence allow-list, type allow-list (untyped records
// always pass), band allow-list, confirmed-only. Pure; evaluation order
// never changes the outcome, only how soon a record is rejected.
func (f FilterState) Visible(rec Record) bool {
	if rec.Strength < f.MinStrength {
		return false
	}
	if len(f.Valences) > 0 && !containsValence(f.Valences, rec.Valence) {
		return false
	}
	if rec.Type != "" && len(f.Types) > 0 && !containsType(f.Types, rec.Type) {
		return false
	}
	if len(f.Bands) > 0 && !containsBand(f.Bands, rec.Band()) {
		return false
	}
	if f.ConfirmedOnly && !rec.Confirmed {
		return false
	}
	return true
}

// DropReason explains why a record was excluded before filtering.
type DropReason string

const (
	DropMissingID     DropReason = "missing_id"
	DropUnknownEntity DropReason = "unknown_entity"
)

// Drop is one excluded record plus the reason, for diagnostics.
type Drop struct {
	Record Record
	Reason DropReason
}

// VisibleRelations returns the records that reference known entities and
// pass the filter, preserving input order, together with the records
// dropped for structural reasons. Records filtered out by FilterState
// are not reported as drops; they are an expected steady state.
func VisibleRelations(entities map[int64]Entity, records []Record, f FilterState) ([]Record, []Drop) {
	visible := make([]Record, 0, len(records))
	var dropped []Drop
	for _, rec := range records {
		if !rec.Valid() {
			dropped = append(dropped, Drop{Record: rec, Reason: DropMissingID})
			continue
		}
		if _, ok := entities[rec.SourceID]; !ok {
			dropped = append(dropped, Drop{Record: rec, Reason: DropUnknownEntity})
			continue
		}
		if _, ok := entities[rec.TargetID]; !ok {
			dropped = append(dropped, Drop{Record: rec, Reason: DropUnknownEntity})
			continue
		}
		if f.Visible(rec) {
			visible = append(visible, rec)
		}
	}
	return visible, dropped
}

func containsValence(list []Valence, v Valence) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func containsType(list []RelationType, t RelationType) bool {
	for _, item := range list {
		if item == t {
			return true
		}
	}
	return false
}

func containsBand(list []StrengthBand, b StrengthBand) bool {
	for _, item := range list {
		if item == b {
			return true
		}
	}
	return false
}

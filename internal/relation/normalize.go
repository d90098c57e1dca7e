package relation

import (
	"math"
	"strconv"
	"strings"
)

// defaultStrength is what a relation gets when no usable strength signal
// is present. A resolved value equal to it can still be replaced by the
// record's co-occurrence score.
const defaultStrength = 0.5

const defaultConfidence = 0.5

// strengthLabels maps categorical strength labels to the midpoint of
// their band.
var strengthLabels = map[string]float64{
	"weak":        0.25,
	"moderate":    0.5,
	"strong":      0.75,
	"very_strong": 0.95,
}

// relationSynonyms folds the free-text relation vocabulary (English and
// Spanish, as the backend's manuscripts produce both) onto canonical
// tags. Lookup keys are lower-cased and trimmed; anything unmapped stays
// untyped.
var relationSynonyms = map[string]RelationType{
	"friend":     TypeFriend,
	"friendship": TypeFriend,
	"amigo":      TypeFriend,
	"amiga":      TypeFriend,
	"amistad":    TypeFriend,

	"family":   TypeFamily,
	"relative": TypeFamily,
	"familia":  TypeFamily,
	"familiar": TypeFamily,
	"pariente": TypeFamily,

	"enemy":     TypeEnemy,
	"nemesis":   TypeEnemy,
	"enemigo":   TypeEnemy,
	"enemiga":   TypeEnemy,
	"enemistad": TypeEnemy,

	"love":    TypeLove,
	"lover":   TypeLove,
	"romance": TypeLove,
	"amor":    TypeLove,
	"amante":  TypeLove,
	"pareja":  TypeLove,

	"colleague": TypeColleague,
	"coworker":  TypeColleague,
	"colega":    TypeColleague,
	"companero": TypeColleague,
	"compañero": TypeColleague,
	"compañera": TypeColleague,

	"mentor":  TypeMentor,
	"teacher": TypeMentor,
	"maestro": TypeMentor,
	"maestra": TypeMentor,

	"rival":      TypeRival,
	"rivalry":    TypeRival,
	"competitor": TypeRival,
	"rivalidad":  TypeRival,

	"ally":     TypeAlly,
	"alliance": TypeAlly,
	"aliado":   TypeAlly,
	"aliada":   TypeAlly,
	"alianza":  TypeAlly,

	"acquaintance": TypeAcquaintance,
	"conocido":     TypeAcquaintance,
	"conocida":     TypeAcquaintance,
}

// Normalize converts one raw relation into its canonical form. It is
// total: malformed or missing fields degrade to documented defaults and
// never produce an error. Records whose endpoints could not be resolved
// come back with zero ids and fail Valid.
func Normalize(raw RawRelation) Record {
	rec := Record{
		SourceID: firstID(raw.SourceID, raw.SourceEntityID, raw.Entity1ID),
		TargetID: firstID(raw.TargetID, raw.TargetEntityID, raw.Entity2ID),
		Strength: resolveStrength(raw),
		Valence:  normalizeValence(raw.Valence),
		Type:     CanonicalType(raw.RelationType),
	}
	if raw.UserConfirmed != nil {
		rec.Confirmed = *raw.UserConfirmed
	}
	rec.EvidenceCount = resolveEvidenceCount(raw)
	return rec
}

// CanonicalType folds a free-text relation label onto its canonical tag.
// Unmapped labels return the empty (untyped) tag.
func CanonicalType(label string) RelationType {
	key := strings.ToLower(strings.TrimSpace(label))
	if key == "" {
		return ""
	}
	return relationSynonyms[key]
}

func normalizeValence(v string) Valence {
	s := strings.ToLower(strings.TrimSpace(v))
	if s == "" {
		return ValenceNeutral
	}
	return Valence(s)
}

// resolveStrength picks the strength signal in precedence order: numeric
// strength, categorical label, the separate intensity field, then the
// default. A result sitting at the default is replaced by the record's
// co-occurrence score (capped at 1) when one is present.
func resolveStrength(raw RawRelation) float64 {
	strength := defaultStrength
	switch v := raw.Strength.(type) {
	case float64:
		strength = v
	case string:
		strength = strengthFromLabel(v)
	default:
		if raw.Intensity != nil {
			strength = *raw.Intensity
		}
	}
	if strength == defaultStrength && raw.Cooccurrence != nil {
		strength = math.Min(1, *raw.Cooccurrence)
	}
	return clamp01(strength)
}

// strengthFromLabel maps a categorical label ("STRONG", "very strong",
// "very-strong") to its midpoint. Labels that are really numbers parse as
// such; anything else falls back to the default.
func strengthFromLabel(label string) float64 {
	key := strings.ToLower(strings.TrimSpace(label))
	key = strings.ReplaceAll(key, "-", "_")
	key = strings.Join(strings.Fields(key), "_")
	if v, ok := strengthLabels[key]; ok {
		return v
	}
	if v, err := strconv.ParseFloat(key, 64); err == nil {
		return v
	}
	return defaultStrength
}

func resolveEvidenceCount(raw RawRelation) int {
	if raw.EvidenceCount != nil {
		if *raw.EvidenceCount < 0 {
			return 0
		}
		return *raw.EvidenceCount
	}
	confidence := defaultConfidence
	if raw.Confidence != nil {
		confidence = *raw.Confidence
	}
	n := int(math.Round(confidence * 10))
	if n < 0 {
		return 0
	}
	return n
}

// NormalizeEntity reconciles the two upstream entity shapes.
func NormalizeEntity(raw RawEntity) Entity {
	name := strings.TrimSpace(raw.Name)
	if name == "" {
		name = strings.TrimSpace(raw.CanonicalName)
	}
	typ := strings.ToLower(strings.TrimSpace(raw.Type))
	if typ == "" {
		typ = strings.ToLower(strings.TrimSpace(raw.EntityType))
	}
	mentions := raw.MentionCount
	if mentions == 0 {
		mentions = raw.Mentions
	}
	return Entity{
		ID:           raw.ID,
		Name:         name,
		Type:         typ,
		Importance:   strings.TrimSpace(raw.Importance),
		MentionCount: mentions,
	}
}

// NormalizeCluster converts one raw cluster, preferring the backend's
// display_name over its internal name and clamping cohesion into [0,1].
func NormalizeCluster(raw RawCluster) Cluster {
	name := strings.TrimSpace(raw.DisplayName)
	if name == "" {
		name = strings.TrimSpace(raw.Name)
	}
	return Cluster{
		ID:               raw.ID,
		Name:             name,
		EntityIDs:        append([]int64(nil), raw.EntityIDs...),
		CentroidEntityID: raw.CentroidEntityID,
		CohesionScore:    clamp01(raw.CohesionScore),
	}
}

// Graph is a fully normalized relationship payload.
type Graph struct {
	Entities map[int64]Entity
	Records  []Record
	Clusters []Cluster
}

// BuildGraph normalizes a whole payload. Every raw relation produces a
// record, including invalid ones; validity and visibility are decided
// later so drops can be reported.
func BuildGraph(p Payload) Graph {
	g := Graph{
		Entities: make(map[int64]Entity, len(p.Entities)),
		Records:  make([]Record, 0, len(p.Relations)),
		Clusters: make([]Cluster, 0, len(p.Clusters)),
	}
	for _, raw := range p.Entities {
		e := NormalizeEntity(raw)
		if e.ID > 0 {
			g.Entities[e.ID] = e
		}
	}
	for _, raw := range p.Relations {
		g.Records = append(g.Records, Normalize(raw))
	}
	for _, raw := range p.Clusters {
		g.Clusters = append(g.Clusters, NormalizeCluster(raw))
	}
	return g
}

func firstID(candidates ...*int64) int64 {
	for _, c := range candidates {
		if c != nil && *c != 0 {
			return *c
		}
	}
	return 0
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Package relation defines the canonical relationship model shared by the
// outline pipeline, the snapshot store, and the preview server, plus the
// normalizer that reconciles the analysis backend's heterogeneous wire
// shapes into it and the filter engine that decides edge visibility.
package relation

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Valence classifies the emotional tone of a relation. Wire values are
// lower-cased on normalization; absent values default to ValenceNeutral.
type Valence string

const (
	ValencePositive Valence = "positive"
	ValenceNeutral  Valence = "neutral"
	ValenceNegative Valence = "negative"
)

// RelationType is a canonical relation tag. The empty string means the
// relation is untyped; untyped relations always pass type filtering.
type RelationType string

const (
	TypeFriend       RelationType = "friend"
	TypeFamily       RelationType = "family"
	TypeEnemy        RelationType = "enemy"
	TypeLove         RelationType = "love"
	TypeColleague    RelationType = "colleague"
	TypeMentor       RelationType = "mentor"
	TypeRival        RelationType = "rival"
	TypeAlly         RelationType = "ally"
	TypeAcquaintance RelationType = "acquaintance"
)

// StrengthBand is the display bucket a relation's strength falls into.
type StrengthBand string

const (
	BandWeak       StrengthBand = "weak"
	BandModerate   StrengthBand = "moderate"
	BandStrong     StrengthBand = "strong"
	BandVeryStrong StrengthBand = "very_strong"
)

// BandFor maps a normalized strength to its band. The same boundaries
// back both the normalizer and the filter engine, so a relation can never
// land in different bands on different code paths.
func BandFor(strength float64) StrengthBand {
	switch {
	case strength < 0.35:
		return BandWeak
	case strength < 0.6:
		return BandModerate
	case strength < 0.85:
		return BandStrong
	default:
		return BandVeryStrong
	}
}

// Entity is one node of the relationship graph. Entities are read-only
// inputs to this package; they are produced upstream by entity extraction.
type Entity struct {
	ID           int64
	Name         string
	Type         string
	Importance   string
	MentionCount int
}

// Record is the canonical form of one relation edge.
type Record struct {
	SourceID      int64
	TargetID      int64
	Strength      float64
	Valence       Valence
	Type          RelationType
	Confirmed     bool
	EvidenceCount int
}

// Valid reports whether both endpoint ids resolved. Records with a zero
// or negative endpoint are dropped (with a diagnostic) before filtering.
func (r Record) Valid() bool {
	return r.SourceID > 0 && r.TargetID > 0
}

// Band returns the strength band of the record.
func (r Record) Band() StrengthBand {
	return BandFor(r.Strength)
}

// Cluster is a detected or curated group of entities. EntityIDs preserve
// the upstream order. Outline geometry needs at least two members with
// known positions; smaller clusters are skipped by the renderer.
type Cluster struct {
	ID               int64
	Name             string
	EntityIDs        []int64
	CentroidEntityID int64
	CohesionScore    float64
}

const maxBackendLabelRunes = 25

// DisplayLabel resolves the label drawn next to a cluster outline, in
// priority order: a caller-supplied override, a reasonably short upstream
// name, a generated "Group around X" anchored on the centroid member
// (falling back to the most-mentioned member), then "Group {id}".
// Overrides are transient caller state and are never persisted here.
func (c Cluster) DisplayLabel(override string, entities map[int64]Entity) string {
	if s := strings.TrimSpace(override); s != "" {
		return s
	}
	if name := strings.TrimSpace(c.Name); name != "" && utf8.RuneCountInString(name) < maxBackendLabelRunes {
		return name
	}
	if anchor, ok := c.anchorEntity(entities); ok {
		return "Group around " + firstName(anchor.Name)
	}
	return fmt.Sprintf("Group %d", c.ID)
}

// anchorEntity picks the member the generated label is built around:
// the centroid entity when known, otherwise the most-mentioned member.
// Mention ties keep the earliest member in cluster order.
func (c Cluster) anchorEntity(entities map[int64]Entity) (Entity, bool) {
	if e, ok := entities[c.CentroidEntityID]; ok && strings.TrimSpace(e.Name) != "" {
		return e, true
	}
	best := Entity{}
	found := false
	for _, id := range c.EntityIDs {
		e, ok := entities[id]
		if !ok || strings.TrimSpace(e.Name) == "" {
			continue
		}
		if !found || e.MentionCount > best.MentionCount {
			best = e
			found = true
		}
	}
	return best, found
}

func firstName(full string) string {
	fields := strings.Fields(full)
	if len(fields) == 0 {
		return full
	}
	return fields[0]
}

package relation

import (
	"encoding/json"
	"fmt"
)

// RawRelation is the loose wire shape of one relation as emitted by the
// analysis backend. Inferred relations and manually curated relations use
// different field names for the same facts; normalization reconciles
// them. Strength may arrive as a number or as a categorical label.
type RawRelation struct {
	SourceID       *int64   `json:"sourceId,omitempty"`
	TargetID       *int64   `json:"targetId,omitempty"`
	SourceEntityID *int64   `json:"source_entity_id,omitempty"`
	TargetEntityID *int64   `json:"target_entity_id,omitempty"`
	Entity1ID      *int64   `json:"entity1_id,omitempty"`
	Entity2ID      *int64   `json:"entity2_id,omitempty"`
	Strength       any      `json:"strength,omitempty"`
	Intensity      *float64 `json:"intensity,omitempty"`
	Valence        string   `json:"valence,omitempty"`
	RelationType   string   `json:"relation_type,omitempty"`
	Confidence     *float64 `json:"confidence,omitempty"`
	Cooccurrence   *float64 `json:"cooccurrence_score,omitempty"`
	EvidenceCount  *int     `json:"evidence_count,omitempty"`
	UserConfirmed  *bool    `json:"user_confirmed,omitempty"`
}

// RawEntity tolerates both upstream entity shapes (camelCase graph export
// and snake_case analysis records).
type RawEntity struct {
	ID            int64  `json:"id"`
	Name          string `json:"name,omitempty"`
	CanonicalName string `json:"canonical_name,omitempty"`
	Type          string `json:"type,omitempty"`
	EntityType    string `json:"entity_type,omitempty"`
	Importance    string `json:"importance,omitempty"`
	MentionCount  int    `json:"mentionCount,omitempty"`
	Mentions      int    `json:"mention_count,omitempty"`
}

// RawCluster is the wire shape of one upstream cluster.
type RawCluster struct {
	ID               int64   `json:"id"`
	Name             string  `json:"name,omitempty"`
	DisplayName      string  `json:"display_name,omitempty"`
	EntityIDs        []int64 `json:"entity_ids"`
	CentroidEntityID int64   `json:"centroid_entity_id,omitempty"`
	CohesionScore    float64 `json:"cohesion_score"`
}

// RawCooccurrence is one pair sighting from the co-occurrence analysis.
// Payloads may ship raw sightings instead of (or alongside) precomputed
// clusters; the cluster engine turns them into clusters at import.
type RawCooccurrence struct {
	Entity1ID     int64  `json:"entity1_id"`
	Entity2ID     int64  `json:"entity2_id"`
	Chapter       int    `json:"chapter,omitempty"`
	DistanceChars int    `json:"distance_chars,omitempty"`
	Context       string `json:"context,omitempty"`
}

// Payload is a complete relationship payload: the graph export the
// backend produces for one manuscript analysis run. Either "relations"
// or the older "relationships" key may carry the edge list.
type Payload struct {
	Entities      []RawEntity       `json:"entities"`
	Relations     []RawRelation     `json:"relations"`
	Relationships []RawRelation     `json:"relationships,omitempty"`
	Clusters      []RawCluster      `json:"clusters,omitempty"`
	Cooccurrences []RawCooccurrence `json:"cooccurrences,omitempty"`
}

// DecodePayload parses a raw relationship payload. Unknown fields are
// ignored; malformed JSON is the only error condition.
func DecodePayload(data []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return Payload{}, fmt.Errorf("decode relationship payload: %w", err)
	}
	if len(p.Relations) == 0 && len(p.Relationships) > 0 {
		p.Relations = p.Relationships
	}
	p.Relationships = nil
	return p, nil
}

// EncodePayload serializes a payload back to JSON. Used when import
// augments a payload with inferred clusters before storing it; fields
// the decoder ignores are not preserved.
func EncodePayload(p Payload) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode relationship payload: %w", err)
	}
	return data, nil
}

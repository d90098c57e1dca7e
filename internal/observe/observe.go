// Package observe provides graph observability for storyweb.
//
// Summarize aggregates what a snapshot actually contains: entity and
// relation composition, confirmed share, dangling references, cluster
// cohesion. It answers the question "what does this graph actually look
// like?" before anything is drawn, so backend drift (broken references,
// collapsed cohesion, runaway edge counts) shows up in a stats report
// instead of a ruined render.
package observe

import (
	"fmt"
	"sort"

	"github.com/inkwise/storyweb/internal/relation"
)

// Stats holds aggregate graph statistics for observability.
type Stats struct {
	TotalEntities      int            `json:"entities"`
	TotalRelations     int            `json:"relations"`
	ConfirmedRelations int            `json:"confirmed_relations"`
	DanglingRelations  int            `json:"dangling_relations"`
	IsolatedEntities   int            `json:"isolated_entities"`
	AvgStrength        float64        `json:"avg_strength"`
	EntitiesByType     map[string]int `json:"entities_by_type"`
	RelationsByBand    map[string]int `json:"relations_by_band"`
	RelationsByValence map[string]int `json:"relations_by_valence"`
	Clusters           ClusterStats   `json:"clusters"`
	Alerts             []string       `json:"alerts,omitempty"`
}

// ClusterStats holds aggregate cluster composition.
type ClusterStats struct {
	Total       int     `json:"total"`
	Drawable    int     `json:"drawable"` // clusters with at least two members
	LowCohesion int     `json:"low_cohesion"`
	AvgCohesion float64 `json:"avg_cohesion"`
	MinCohesion float64 `json:"min_cohesion"`
	LargestSize int     `json:"largest_size"`
}

// lowCohesionThreshold marks clusters whose grouping is likely noise.
const lowCohesionThreshold = 0.3

// Summarize computes graph statistics over a normalized payload.
func Summarize(entities []relation.Entity, records []relation.Record, clusters []relation.Cluster) *Stats {
	stats := &Stats{
		TotalEntities:      len(entities),
		EntitiesByType:     make(map[string]int),
		RelationsByBand:    make(map[string]int),
		RelationsByValence: make(map[string]int),
	}

	byID := make(map[int64]relation.Entity, len(entities))
	for _, e := range entities {
		byID[e.ID] = e
		key := e.Type
		if key == "" {
			key = "unknown"
		}
		stats.EntitiesByType[key]++
	}

	// A zero filter passes everything valid; what remains dropped is
	// structurally dangling.
	valid, dropped := relation.VisibleRelations(byID, records, relation.FilterState{})
	stats.TotalRelations = len(valid)
	stats.DanglingRelations = len(dropped)

	connected := make(map[int64]bool)
	strengthSum := 0.0
	for _, rec := range valid {
		stats.RelationsByBand[string(rec.Band())]++
		stats.RelationsByValence[string(rec.Valence)]++
		if rec.Confirmed {
			stats.ConfirmedRelations++
		}
		strengthSum += rec.Strength
		connected[rec.SourceID] = true
		connected[rec.TargetID] = true
	}
	if len(valid) > 0 {
		stats.AvgStrength = strengthSum / float64(len(valid))
	}

	for _, e := range entities {
		if !connected[e.ID] {
			stats.IsolatedEntities++
		}
	}

	stats.Clusters = summarizeClusters(clusters)
	stats.Alerts = buildGraphAlerts(stats)
	return stats
}

func summarizeClusters(clusters []relation.Cluster) ClusterStats {
	cs := ClusterStats{Total: len(clusters)}
	if len(clusters) == 0 {
		return cs
	}

	cohesionSum := 0.0
	cs.MinCohesion = clusters[0].CohesionScore
	for _, c := range clusters {
		if len(c.EntityIDs) >= 2 {
			cs.Drawable++
		}
		if len(c.EntityIDs) > cs.LargestSize {
			cs.LargestSize = len(c.EntityIDs)
		}
		if c.CohesionScore < cs.MinCohesion {
			cs.MinCohesion = c.CohesionScore
		}
		if c.CohesionScore < lowCohesionThreshold {
			cs.LowCohesion++
		}
		cohesionSum += c.CohesionScore
	}
	cs.AvgCohesion = cohesionSum / float64(len(clusters))
	return cs
}

func buildGraphAlerts(stats *Stats) []string {
	alerts := make([]string, 0)

	if stats.DanglingRelations > 0 {
		alerts = append(alerts, fmt.Sprintf(
			"dangling_relations: %d relations reference entities missing from the payload; re-export from the backend",
			stats.DanglingRelations))
	}

	if stats.Clusters.LowCohesion > 0 {
		alerts = append(alerts, fmt.Sprintf(
			"low_cohesion: %d clusters are below %.1f cohesion; their groupings may be noise",
			stats.Clusters.LowCohesion, lowCohesionThreshold))
	}

	if stats.TotalEntities > 0 && stats.IsolatedEntities*2 > stats.TotalEntities {
		alerts = append(alerts, "isolated_entities: over half the entities have no visible relations; check filters and extraction quality")
	}

	return alerts
}

// TopTypes returns entity type counts ordered by count descending, ties
// broken alphabetically. Useful for report rendering.
func (s *Stats) TopTypes() []TypeCount {
	out := make([]TypeCount, 0, len(s.EntitiesByType))
	for k, v := range s.EntitiesByType {
		out = append(out, TypeCount{Type: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Type < out[j].Type
	})
	return out
}

// TypeCount is one entity type bucket.
type TypeCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// Package cluster infers character relations and membership clusters
// from raw co-occurrence observations, standing in for the upstream
// analysis when a payload arrives without clusters or when the caller
// asks for a fresh pass.
//
// The engine keeps the production analysis behavior: observations are
// distance-weighted, pair scores normalize against the strongest pair,
// a relation needs enough voting confidence to be reported, and cluster
// names follow the manuscripts' language ("María y Juan", "Círculo de
// María"). Inferred relations come back in wire shape so they flow
// through the same normalizer as upstream data.
package cluster

import (
	"fmt"
	"math"
	"sort"

	"github.com/inkwise/storyweb/internal/relation"
)

const (
	// Raw pair weight needed before a pair is scored at all.
	cooccurrenceThreshold = 3.0
	// Mentions further apart than this many characters get the floor weight.
	distanceThreshold = 500.0
	// Minimum voting confidence for a relation to be reported.
	confidenceThreshold = 0.5
	// Components smaller than this merge into their best-linked neighbor.
	minComponentSize = 3

	// Vote weights for the two methods the engine runs.
	cooccurrenceVoteWeight = 0.55
	communityVoteWeight    = 0.45
)

type observation struct {
	a, b     int64 // ordered a < b
	chapter  int
	distance int
	context  string
}

// Engine accumulates co-occurrence observations for one analysis pass.
// It is not safe for concurrent use.
type Engine struct {
	entities map[int64]relation.Entity
	obs      []observation
}

// NewEngine creates an engine over the given entity set. Entities are
// only consulted for display names; observations may reference ids
// outside the set.
func NewEngine(entities map[int64]relation.Entity) *Engine {
	return &Engine{entities: entities}
}

// Observe records that two entities appeared together. distanceChars is
// the character distance between their mentions (zero if unknown);
// closer mentions weigh more. Self-pairs and unresolved ids are ignored.
func (e *Engine) Observe(entity1ID, entity2ID int64, chapter, distanceChars int, context string) {
	if entity1ID <= 0 || entity2ID <= 0 || entity1ID == entity2ID {
		return
	}
	a, b := entity1ID, entity2ID
	if a > b {
		a, b = b, a
	}
	e.obs = append(e.obs, observation{a: a, b: b, chapter: chapter, distance: distanceChars, context: context})
}

// ObserveCooccurrences feeds a payload's raw pair sightings into the
// engine.
func (e *Engine) ObserveCooccurrences(list []relation.RawCooccurrence) {
	for _, c := range list {
		e.Observe(c.Entity1ID, c.Entity2ID, c.Chapter, c.DistanceChars, c.Context)
	}
}

// Observations reports how many pair sightings have been recorded.
func (e *Engine) Observations() int {
	return len(e.obs)
}

// Detected is one inferred cluster plus analysis-only metadata the
// canonical cluster model does not carry.
type Detected struct {
	Cluster        relation.Cluster
	MemberNames    []string
	ChaptersActive []int
}

// Result of one analysis pass. Relations are in wire shape, ready for
// relation.Normalize; ordering is deterministic (confidence descending,
// then by entity pair).
type Result struct {
	Relations []relation.RawRelation
	Clusters  []Detected
}

// Analyze derives relations and clusters from the recorded
// observations. The pass is pure: calling it twice on the same engine
// state returns the same result.
func (e *Engine) Analyze() Result {
	weights := e.pairWeights()
	scores := normalizeScores(weights)
	components := e.components(scores, weights)
	membership := componentMembership(components)

	return Result{
		Relations: e.inferRelations(scores, membership),
		Clusters:  e.buildClusters(components),
	}
}

type pair struct {
	a, b int64
}

// pairWeights accumulates the distance-weighted co-occurrence matrix.
func (e *Engine) pairWeights() map[pair]float64 {
	weights := make(map[pair]float64)
	for _, o := range e.obs {
		w := 1.0
		if o.distance > 0 {
			w = math.Max(0.1, 1.0-float64(o.distance)/distanceThreshold)
		}
		weights[pair{o.a, o.b}] += w
	}
	return weights
}

// normalizeScores keeps pairs above the raw threshold and scales them
// against the strongest pair.
func normalizeScores(weights map[pair]float64) map[pair]float64 {
	maxWeight := 0.0
	for _, w := range weights {
		if w > maxWeight {
			maxWeight = w
		}
	}
	if maxWeight <= 0 {
		maxWeight = 1
	}
	scores := make(map[pair]float64)
	for p, w := range weights {
		if w >= cooccurrenceThreshold {
			scores[p] = w / maxWeight
		}
	}
	return scores
}

// components finds connected components over the scored pair graph,
// then folds components below minComponentSize into their best-linked
// neighbor. Merge links consider every raw pair weight, including
// sub-threshold contact, so a loosely attached duo joins its group;
// fully isolated small groups stay as they are.
func (e *Engine) components(scores, weights map[pair]float64) []map[int64]struct{} {
	adjacency := make(map[int64]map[int64]float64)
	link := func(a, b int64, w float64) {
		if adjacency[a] == nil {
			adjacency[a] = make(map[int64]float64)
		}
		adjacency[a][b] = w
	}
	for p, w := range scores {
		link(p.a, p.b, w)
		link(p.b, p.a, w)
	}

	nodes := make([]int64, 0, len(adjacency))
	for id := range adjacency {
		nodes = append(nodes, id)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })

	visited := make(map[int64]bool, len(nodes))
	var components []map[int64]struct{}
	for _, start := range nodes {
		if visited[start] {
			continue
		}
		component := make(map[int64]struct{})
		stack := []int64{start}
		visited[start] = true
		for len(stack) > 0 {
			current := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			component[current] = struct{}{}
			for next := range adjacency[current] {
				if visited[next] {
					continue
				}
				visited[next] = true
				stack = append(stack, next)
			}
		}
		components = append(components, component)
	}

	return mergeSmallComponents(components, weights)
}

func mergeSmallComponents(components []map[int64]struct{}, weights map[pair]float64) []map[int64]struct{} {
	for {
		changed := false
		for i := range components {
			if len(components[i]) == 0 || len(components[i]) >= minComponentSize {
				continue
			}
			bestIdx := -1
			bestLink := 0.0
			for j := range components {
				if i == j || len(components[j]) == 0 {
					continue
				}
				link := componentLink(components[i], components[j], weights)
				if link > bestLink {
					bestLink = link
					bestIdx = j
				}
			}
			if bestIdx >= 0 && bestLink > 0 {
				for id := range components[i] {
					components[bestIdx][id] = struct{}{}
				}
				components[i] = map[int64]struct{}{}
				changed = true
			}
		}
		if !changed {
			break
		}
	}

	merged := make([]map[int64]struct{}, 0, len(components))
	for _, c := range components {
		if len(c) > 0 {
			merged = append(merged, c)
		}
	}
	sort.Slice(merged, func(i, j int) bool {
		if len(merged[i]) != len(merged[j]) {
			return len(merged[i]) > len(merged[j])
		}
		return minID(merged[i]) < minID(merged[j])
	})
	return merged
}

func componentLink(a, b map[int64]struct{}, weights map[pair]float64) float64 {
	total := 0.0
	for ida := range a {
		for idb := range b {
			p := pair{ida, idb}
			if idb < ida {
				p = pair{idb, ida}
			}
			total += weights[p]
		}
	}
	return total
}

func componentMembership(components []map[int64]struct{}) map[int64]int {
	membership := make(map[int64]int)
	for idx, component := range components {
		for id := range component {
			membership[id] = idx
		}
	}
	return membership
}

// inferRelations votes every scored pair into a reported relation or
// drops it. Two methods vote: the co-occurrence score itself and shared
// community membership.
func (e *Engine) inferRelations(scores map[pair]float64, membership map[int64]int) []relation.RawRelation {
	type scored struct {
		p          pair
		score      float64
		confidence float64
		label      string
	}

	pairs := make([]pair, 0, len(scores))
	for p := range scores {
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].a != pairs[j].a {
			return pairs[i].a < pairs[j].a
		}
		return pairs[i].b < pairs[j].b
	})

	reported := make([]scored, 0, len(pairs))
	for _, p := range pairs {
		score := scores[p]
		confidence := 0.0
		if score > 0.3 {
			confidence += cooccurrenceVoteWeight
		}
		ca, okA := membership[p.a]
		cb, okB := membership[p.b]
		if okA && okB && ca == cb {
			confidence += communityVoteWeight
		}
		if confidence < confidenceThreshold {
			continue
		}
		label := strengthLabel((score + confidence) / 2)
		if label == "" {
			continue
		}
		reported = append(reported, scored{p: p, score: score, confidence: confidence, label: label})
	}

	sort.SliceStable(reported, func(i, j int) bool {
		return reported[i].confidence > reported[j].confidence
	})

	relations := make([]relation.RawRelation, 0, len(reported))
	for _, s := range reported {
		a, b, score, confidence := s.p.a, s.p.b, s.score, s.confidence
		relations = append(relations, relation.RawRelation{
			Entity1ID:    &a,
			Entity2ID:    &b,
			Strength:     s.label,
			Confidence:   &confidence,
			Cooccurrence: &score,
		})
	}
	return relations
}

// buildClusters turns every component with at least two members into a
// Detected cluster with centroid, cohesion, chapters, and a generated
// name. Cluster ids are 1-based positions in the deterministic
// component order.
func (e *Engine) buildClusters(components []map[int64]struct{}) []Detected {
	clusters := make([]Detected, 0, len(components))
	for idx, component := range components {
		if len(component) < 2 {
			continue
		}
		members := make([]int64, 0, len(component))
		for id := range component {
			members = append(members, id)
		}
		sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })

		names := make([]string, 0, len(members))
		for _, id := range members {
			names = append(names, e.entityName(id))
		}

		centroid := e.findCentroid(members)
		centroidName := ""
		if centroid > 0 {
			centroidName = e.entityName(centroid)
		}

		clusters = append(clusters, Detected{
			Cluster: relation.Cluster{
				ID:               int64(idx + 1),
				Name:             clusterName(names, centroidName),
				EntityIDs:        members,
				CentroidEntityID: centroid,
				CohesionScore:    e.cohesion(members),
			},
			MemberNames:    names,
			ChaptersActive: e.activeChapters(members),
		})
	}
	return clusters
}

// findCentroid picks the member with the most within-group
// observations. Ties keep the lowest id.
func (e *Engine) findCentroid(members []int64) int64 {
	if len(members) == 0 {
		return 0
	}
	memberSet := make(map[int64]struct{}, len(members))
	for _, id := range members {
		memberSet[id] = struct{}{}
	}
	counts := make(map[int64]int)
	for _, o := range e.obs {
		_, inA := memberSet[o.a]
		_, inB := memberSet[o.b]
		if inA && inB {
			counts[o.a]++
			counts[o.b]++
		}
	}
	if len(counts) == 0 {
		return members[0]
	}
	best := members[0]
	for _, id := range members {
		if counts[id] > counts[best] {
			best = id
		}
	}
	return best
}

// cohesion is the observed fraction of possible member pairs, counting
// repeated sightings and capping at 1.
func (e *Engine) cohesion(members []int64) float64 {
	if len(members) < 2 {
		return 1.0
	}
	memberSet := make(map[int64]struct{}, len(members))
	for _, id := range members {
		memberSet[id] = struct{}{}
	}
	existing := 0
	for _, o := range e.obs {
		_, inA := memberSet[o.a]
		_, inB := memberSet[o.b]
		if inA && inB {
			existing++
		}
	}
	n := len(members)
	possible := float64(n*(n-1)) / 2
	return math.Min(1.0, float64(existing)/possible)
}

func (e *Engine) activeChapters(members []int64) []int {
	memberSet := make(map[int64]struct{}, len(members))
	for _, id := range members {
		memberSet[id] = struct{}{}
	}
	chapterSet := make(map[int]struct{})
	for _, o := range e.obs {
		_, inA := memberSet[o.a]
		_, inB := memberSet[o.b]
		if inA || inB {
			chapterSet[o.chapter] = struct{}{}
		}
	}
	chapters := make([]int, 0, len(chapterSet))
	for ch := range chapterSet {
		chapters = append(chapters, ch)
	}
	sort.Ints(chapters)
	return chapters
}

func (e *Engine) entityName(id int64) string {
	if ent, ok := e.entities[id]; ok && ent.Name != "" {
		return ent.Name
	}
	return fmt.Sprintf("%d", id)
}

func strengthLabel(combined float64) string {
	switch {
	case combined >= 0.8:
		return "very_strong"
	case combined >= 0.6:
		return "strong"
	case combined >= 0.4:
		return "moderate"
	case combined >= 0.2:
		return "weak"
	default:
		return ""
	}
}

// clusterName follows the manuscripts' naming conventions: pairs and
// trios list the members, larger groups anchor on the centroid.
func clusterName(names []string, centroidName string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	case 2:
		return names[0] + " y " + names[1]
	case 3:
		return fmt.Sprintf("%s, %s y %s", names[0], names[1], names[2])
	}
	if centroidName != "" {
		return "Círculo de " + centroidName
	}
	return fmt.Sprintf("%s, %s y %d más", names[0], names[1], len(names)-2)
}

func minID(component map[int64]struct{}) int64 {
	first := true
	var lowest int64
	for id := range component {
		if first || id < lowest {
			lowest = id
			first = false
		}
	}
	return lowest
}

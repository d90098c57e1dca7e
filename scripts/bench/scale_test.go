// scale_test.go — Scale & performance testing with synthetic payloads.
// Run: go test ./scripts/bench/ -run TestScale -v -timeout 10m
//
// Generates synthetic relationship payloads at 200 and 2000 entities,
// then benchmarks import, placement, outline geometry, rendering, and
// stats.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"testing"
	"time"

	"github.com/inkwise/storyweb/internal/observe"
	"github.com/inkwise/storyweb/internal/relation"
	"github.com/inkwise/storyweb/internal/render"
	"github.com/inkwise/storyweb/internal/store"
	"github.com/inkwise/storyweb/internal/viz"
)

// ScaleTier defines a test tier.
type ScaleTier struct {
	Name     string `json:"name"`
	Entities int    `json:"entities"`
	Clusters int    `json:"clusters"`
}

// ScaleResult stores benchmark results for a tier.
type ScaleResult struct {
	Tier         string  `json:"tier"`
	Entities     int     `json:"entities"`
	Relations    int     `json:"relations"`
	Clusters     int     `json:"clusters"`
	PayloadBytes int     `json:"payload_bytes"`
	DBSizeBytes  int64   `json:"db_size_bytes"`
	ImportMs     float64 `json:"import_ms"`
	DecodeMs     float64 `json:"decode_ms"`
	PlacementMs  float64 `json:"placement_ms"`
	OutlineP50   float64 `json:"outline_p50_ms"`
	OutlineP99   float64 `json:"outline_p99_ms"`
	SVGMs        float64 `json:"svg_render_ms"`
	PNGMs        float64 `json:"png_render_ms"`
	StatsMs      float64 `json:"stats_ms"`
}

var tiers = []ScaleTier{
	{"small", 200, 8},
	{"medium", 2000, 40},
}

// Names follow the corpus the payloads come from: Spanish-language
// manuscripts. Duplicates are fine, ids are the identity.
var givenNames = []string{
	"María", "Juan", "Pedro", "Ana", "Luis", "Carmen", "José", "Isabel",
	"Miguel", "Elena", "Rosa", "Diego", "Clara", "Pablo", "Lucía",
	"Andrés", "Sofía", "Javier", "Marta", "Tomás",
}

var surnames = []string{
	"García", "Pérez", "López", "Ruiz", "Gómez", "Fernández", "Torres",
	"Vargas", "Morales", "Ortega", "Castro", "Delgado", "Ramos",
	"Flores", "Navarro", "Medina",
}

var relationTypes = []string{"friend", "family", "rival", "ally", "mentor", ""}

var valences = []string{"positive", "positive", "neutral", "neutral", "negative"}

func i64ptr(v int64) *int64 { return &v }

func boolptr(v bool) *bool { return &v }

func intptr(v int) *int { return &v }

// generateSyntheticPayload builds a payload with a realistic shape: a
// few protagonists with heavy mention counts, clusters covering most of
// the cast, strong in-cluster edges, sparse cross-cluster contact, and
// a trickle of dangling edges like real backend exports have.
func generateSyntheticPayload(rng *rand.Rand, tier ScaleTier) relation.Payload {
	var p relation.Payload

	for i := 0; i < tier.Entities; i++ {
		id := int64(i + 1)
		mentions := 1 + rng.Intn(6)
		if i < tier.Entities/20+1 {
			mentions = 20 + rng.Intn(60)
		}
		p.Entities = append(p.Entities, relation.RawEntity{
			ID:           id,
			Name:         fmt.Sprintf("%s %s", givenNames[rng.Intn(len(givenNames))], surnames[rng.Intn(len(surnames))]),
			Type:         "character",
			MentionCount: mentions,
		})
	}

	// Partition a prefix of the cast into clusters; the tail stays
	// isolated.
	next := int64(1)
	for k := 0; k < tier.Clusters && next <= int64(tier.Entities); k++ {
		size := 4 + rng.Intn(18)
		var members []int64
		for len(members) < size && next <= int64(tier.Entities) {
			members = append(members, next)
			next++
		}
		if len(members) < 2 {
			break
		}
		p.Clusters = append(p.Clusters, relation.RawCluster{
			ID:               int64(k + 1),
			Name:             fmt.Sprintf("Grupo %d", k+1),
			EntityIDs:        members,
			CentroidEntityID: members[0],
			CohesionScore:    0.4 + 0.6*rng.Float64(),
		})

		// In-cluster edges: a chain plus random extra pairs.
		for i := 1; i < len(members); i++ {
			p.Relations = append(p.Relations, syntheticRelation(rng, members[i-1], members[i], 0.5+0.5*rng.Float64()))
		}
		for i := 0; i < len(members)/2; i++ {
			a := members[rng.Intn(len(members))]
			b := members[rng.Intn(len(members))]
			if a == b {
				continue
			}
			p.Relations = append(p.Relations, syntheticRelation(rng, a, b, 0.3+0.7*rng.Float64()))
		}
	}

	// Sparse cross-cluster contact.
	for i := 0; i < tier.Entities/10; i++ {
		a := int64(1 + rng.Intn(tier.Entities))
		b := int64(1 + rng.Intn(tier.Entities))
		if a == b {
			continue
		}
		p.Relations = append(p.Relations, syntheticRelation(rng, a, b, 0.1+0.4*rng.Float64()))
	}

	// Dangling edges: references to entities the export dropped.
	for i := 0; i < tier.Entities/100+1; i++ {
		a := int64(1 + rng.Intn(tier.Entities))
		ghost := int64(tier.Entities + 1000 + i)
		p.Relations = append(p.Relations, syntheticRelation(rng, a, ghost, rng.Float64()))
	}

	return p
}

func syntheticRelation(rng *rand.Rand, a, b int64, strength float64) relation.RawRelation {
	r := relation.RawRelation{
		SourceID:      i64ptr(a),
		TargetID:      i64ptr(b),
		Strength:      strength,
		Valence:       valences[rng.Intn(len(valences))],
		RelationType:  relationTypes[rng.Intn(len(relationTypes))],
		EvidenceCount: intptr(1 + rng.Intn(12)),
	}
	if rng.Intn(10) == 0 {
		r.UserConfirmed = boolptr(true)
	}
	return r
}

func benchmarkAtScale(t *testing.T, tier ScaleTier) ScaleResult {
	t.Helper()

	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "storyweb.db")

	s, err := store.Open(store.Config{DBPath: dbPath})
	if err != nil {
		t.Fatalf("[%s] Failed to open store: %v", tier.Name, err)
	}
	defer s.Close()

	ctx := context.Background()
	rng := rand.New(rand.NewSource(42)) // deterministic for reproducibility

	result := ScaleResult{
		Tier:     tier.Name,
		Entities: tier.Entities,
	}

	payload := generateSyntheticPayload(rng, tier)
	data, err := relation.EncodePayload(payload)
	if err != nil {
		t.Fatalf("[%s] Failed to encode payload: %v", tier.Name, err)
	}
	result.PayloadBytes = len(data)
	result.Relations = len(payload.Relations)
	result.Clusters = len(payload.Clusters)

	// --- IMPORT BENCHMARK ---
	t.Logf("[%s] Importing %d entities, %d relations, %d clusters (%.1f KB)...",
		tier.Name, tier.Entities, result.Relations, result.Clusters, float64(len(data))/1024)
	importStart := time.Now()
	snap, err := s.AddSnapshot(ctx, "bench", tier.Name, data)
	if err != nil {
		t.Fatalf("[%s] Failed to import snapshot: %v", tier.Name, err)
	}
	result.ImportMs = msSince(importStart)
	t.Logf("[%s] Import: %.1fms", tier.Name, result.ImportMs)

	// --- DECODE + GRAPH BENCHMARK ---
	decodeStart := time.Now()
	decoded, err := relation.DecodePayload(snap.Payload)
	if err != nil {
		t.Fatalf("[%s] Failed to decode payload: %v", tier.Name, err)
	}
	g := relation.BuildGraph(decoded)
	result.DecodeMs = msSince(decodeStart)
	t.Logf("[%s] Decode+graph: %.1fms (%d entities)", tier.Name, result.DecodeMs, len(g.Entities))

	// --- PLACEMENT BENCHMARK ---
	placementStart := time.Now()
	positions, radii, err := viz.Placement(ctx, s, snap.ID, g, viz.DefaultCanvasWidth, viz.DefaultCanvasHeight)
	if err != nil {
		t.Fatalf("[%s] Placement failed: %v", tier.Name, err)
	}
	result.PlacementMs = msSince(placementStart)
	t.Logf("[%s] Placement: %.1fms (%d positions)", tier.Name, result.PlacementMs, len(positions))

	// --- OUTLINE BENCHMARK ---
	pipeline := render.NewPipeline(render.Options{}, nil)
	var outlineTimes []float64
	iterations := 200
	for i := 0; i < iterations; i++ {
		c := g.Clusters[i%len(g.Clusters)]
		start := time.Now()
		pipeline.Outline(c, positions, radii)
		outlineTimes = append(outlineTimes, msSince(start))
	}
	sort.Float64s(outlineTimes)
	result.OutlineP50 = outlineTimes[len(outlineTimes)/2]
	result.OutlineP99 = outlineTimes[int(float64(len(outlineTimes))*0.99)]
	t.Logf("[%s] Outline: P50=%.3fms P99=%.3fms", tier.Name, result.OutlineP50, result.OutlineP99)

	// --- RENDER BENCHMARKS ---
	frame := render.Frame{
		Entities:  g.Entities,
		Records:   g.Records,
		Clusters:  g.Clusters,
		Positions: positions,
		Radii:     radii,
	}

	svgStart := time.Now()
	var buf bytes.Buffer
	svg := render.NewSVGSurface(&buf, viz.DefaultCanvasWidth, viz.DefaultCanvasHeight)
	stats := pipeline.Render(svg, frame)
	svg.End()
	result.SVGMs = msSince(svgStart)
	t.Logf("[%s] SVG render: %.1fms (%d drawn, %d skipped, %.1f KB)",
		tier.Name, result.SVGMs, stats.ClustersDrawn, stats.ClustersSkipped, float64(buf.Len())/1024)

	pngStart := time.Now()
	raster := render.NewRasterSurface(viz.DefaultCanvasWidth, viz.DefaultCanvasHeight)
	pipeline.Render(raster, frame)
	if err := raster.EncodePNG(io.Discard); err != nil {
		t.Fatalf("[%s] PNG encode failed: %v", tier.Name, err)
	}
	result.PNGMs = msSince(pngStart)
	t.Logf("[%s] PNG render: %.1fms", tier.Name, result.PNGMs)

	// --- STATS BENCHMARK ---
	entities := make([]relation.Entity, 0, len(g.Entities))
	for _, e := range g.Entities {
		entities = append(entities, e)
	}
	statsStart := time.Now()
	for i := 0; i < 10; i++ {
		observe.Summarize(entities, g.Records, g.Clusters)
	}
	result.StatsMs = msSince(statsStart) / 10.0
	t.Logf("[%s] Stats: %.2fms avg", tier.Name, result.StatsMs)

	// --- DB SIZE ---
	if info, err := os.Stat(dbPath); err == nil {
		result.DBSizeBytes = info.Size()
		t.Logf("[%s] DB size: %.1f KB", tier.Name, float64(info.Size())/1024)
	}

	return result
}

func TestScale(t *testing.T) {
	var results []ScaleResult

	for _, tier := range tiers {
		t.Run(tier.Name, func(t *testing.T) {
			results = append(results, benchmarkAtScale(t, tier))
		})
	}

	// Write report
	report := map[string]interface{}{
		"generated_at": time.Now().UTC().Format(time.RFC3339),
		"platform":     runtime.GOOS + "/" + runtime.GOARCH,
		"go_version":   runtime.Version(),
		"tiers":        results,
	}

	jsonBytes, _ := json.MarshalIndent(report, "", "  ")
	home, _ := os.UserHomeDir()
	outDir := filepath.Join(home, ".storyweb")
	os.MkdirAll(outDir, 0755)
	outPath := filepath.Join(outDir, "scale_results.json")
	os.WriteFile(outPath, jsonBytes, 0644)
	t.Logf("\nScale report written to %s", outPath)

	// Print summary table
	t.Log("\n=== SCALE BENCHMARK SUMMARY ===")
	t.Log("Tier       | Entities | Outline P50 | Outline P99 | SVG     | PNG     | Stats   | DB Size")
	t.Log("-----------|----------|-------------|-------------|---------|---------|---------|--------")
	for _, r := range results {
		t.Logf("%-10s | %8d | %9.3fms | %9.3fms | %5.0fms | %5.0fms | %5.2fms | %.0f KB",
			r.Tier, r.Entities, r.OutlineP50, r.OutlineP99,
			r.SVGMs, r.PNGMs, r.StatsMs, float64(r.DBSizeBytes)/1024)
	}

	// Performance gates
	for _, r := range results {
		if r.Tier == "medium" {
			if r.OutlineP99 > 25 {
				t.Errorf("[%s] Outline P99 too high: %.3fms (target: <25ms)", r.Tier, r.OutlineP99)
			}
			if r.SVGMs > 3000 {
				t.Errorf("[%s] SVG render too slow: %.0fms (target: <3000ms)", r.Tier, r.SVGMs)
			}
			if r.StatsMs > 250 {
				t.Errorf("[%s] Stats too slow: %.2fms (target: <250ms)", r.Tier, r.StatsMs)
			}
		}
	}
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}

// bench_slo.go — SLO benchmark for placement, outline, render, and stats.
// Run: go run scripts/bench/bench_slo.go [--db path] [--iterations N]
//
// Generates a JSON report with p50/p95/p99 latencies for each operation
// against the latest imported snapshot.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/inkwise/storyweb/internal/geom"
	"github.com/inkwise/storyweb/internal/observe"
	"github.com/inkwise/storyweb/internal/relation"
	"github.com/inkwise/storyweb/internal/render"
	"github.com/inkwise/storyweb/internal/store"
	"github.com/inkwise/storyweb/internal/viz"
)

type BenchResult struct {
	Command    string  `json:"command"`
	Iterations int     `json:"iterations"`
	P50Ms      float64 `json:"p50_ms"`
	P95Ms      float64 `json:"p95_ms"`
	P99Ms      float64 `json:"p99_ms"`
	MinMs      float64 `json:"min_ms"`
	MaxMs      float64 `json:"max_ms"`
	MeanMs     float64 `json:"mean_ms"`
	Pass       bool    `json:"pass"`
	SLOMs      float64 `json:"slo_ms"`
}

type BenchReport struct {
	GeneratedAt string        `json:"generated_at"`
	DBPath      string        `json:"db_path"`
	SnapshotID  int64         `json:"snapshot_id"`
	Entities    int           `json:"entities"`
	Relations   int           `json:"relations"`
	Clusters    int           `json:"clusters"`
	Results     []BenchResult `json:"results"`
	AllPass     bool          `json:"all_pass"`
}

func main() {
	dbPath := flag.String("db", "", "Path to storyweb.db (default: ~/.storyweb/storyweb.db)")
	iterations := flag.Int("iterations", 20, "Number of iterations per benchmark")
	outFile := flag.String("out", "", "Output JSON file (default: stdout)")
	flag.Parse()

	if *dbPath == "" {
		home, _ := os.UserHomeDir()
		*dbPath = filepath.Join(home, ".storyweb", "storyweb.db")
	}

	// Expand ~ in path
	if strings.HasPrefix(*dbPath, "~/") {
		home, _ := os.UserHomeDir()
		*dbPath = filepath.Join(home, (*dbPath)[2:])
	}

	s, err := store.Open(store.Config{DBPath: *dbPath})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
		os.Exit(1)
	}
	defer s.Close()

	ctx := context.Background()

	snap, err := s.LatestSnapshot(ctx, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading snapshot: %v\n", err)
		os.Exit(1)
	}
	if snap == nil {
		fmt.Fprintf(os.Stderr, "No snapshots imported. Run `storyweb import` first.\n")
		os.Exit(1)
	}

	payload, err := relation.DecodePayload(snap.Payload)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error decoding payload: %v\n", err)
		os.Exit(1)
	}
	g := relation.BuildGraph(payload)

	report := BenchReport{
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		DBPath:      *dbPath,
		SnapshotID:  snap.ID,
		Entities:    len(g.Entities),
		Relations:   len(g.Records),
		Clusters:    len(g.Clusters),
		AllPass:     true,
	}

	fmt.Fprintf(os.Stderr, "Storyweb SLO Benchmark\n")
	fmt.Fprintf(os.Stderr, "  DB: %s\n", *dbPath)
	fmt.Fprintf(os.Stderr, "  Snapshot %d (%s): %d entities, %d relations, %d clusters\n",
		snap.ID, snap.Label, len(g.Entities), len(g.Records), len(g.Clusters))
	fmt.Fprintf(os.Stderr, "  Iterations: %d\n\n", *iterations)

	// Placement once up front; outline and render reuse it the way the
	// preview server does.
	positions, radii, err := viz.Placement(ctx, s, snap.ID, g, viz.DefaultCanvasWidth, viz.DefaultCanvasHeight)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error computing placement: %v\n", err)
		os.Exit(1)
	}

	// 1. Placement benchmark
	placementTimes := benchmarkPlacement(ctx, s, snap.ID, g, *iterations)
	placementResult := computeResult("placement", placementTimes, 500)
	report.Results = append(report.Results, placementResult)
	if !placementResult.Pass {
		report.AllPass = false
	}

	// 2. Outline geometry benchmark
	outlineTimes := benchmarkOutline(g, positions, radii, *iterations)
	outlineResult := computeResult("outline", outlineTimes, 25)
	report.Results = append(report.Results, outlineResult)
	if !outlineResult.Pass {
		report.AllPass = false
	}

	// 3. Full-frame SVG render benchmark
	renderTimes := benchmarkRenderSVG(g, positions, radii, *iterations)
	renderResult := computeResult("render_svg", renderTimes, 2000)
	report.Results = append(report.Results, renderResult)
	if !renderResult.Pass {
		report.AllPass = false
	}

	// 4. Stats benchmark
	statsTimes := benchmarkStats(g, *iterations)
	statsResult := computeResult("stats", statsTimes, 250)
	report.Results = append(report.Results, statsResult)
	if !statsResult.Pass {
		report.AllPass = false
	}

	// 5. Snapshot listing benchmark
	listTimes := benchmarkList(ctx, s, *iterations)
	listResult := computeResult("list_snapshots", listTimes, 100)
	report.Results = append(report.Results, listResult)
	if !listResult.Pass {
		report.AllPass = false
	}

	// Print results
	for _, r := range report.Results {
		status := "✅ PASS"
		if !r.Pass {
			status = "❌ FAIL"
		}
		fmt.Fprintf(os.Stderr, "  %s: p50=%.1fms p95=%.1fms p99=%.1fms (SLO: %.0fms) %s\n",
			r.Command, r.P50Ms, r.P95Ms, r.P99Ms, r.SLOMs, status)
	}

	if report.AllPass {
		fmt.Fprintf(os.Stderr, "\n✅ All SLOs met\n")
	} else {
		fmt.Fprintf(os.Stderr, "\n❌ Some SLOs missed\n")
	}

	// Output JSON
	jsonBytes, _ := json.MarshalIndent(report, "", "  ")
	if *outFile != "" {
		os.WriteFile(*outFile, jsonBytes, 0644)
		fmt.Fprintf(os.Stderr, "\nReport written to %s\n", *outFile)
	} else {
		fmt.Println(string(jsonBytes))
	}
}

func benchmarkPlacement(ctx context.Context, s *store.Store, snapshotID int64, g relation.Graph, iterations int) []float64 {
	var times []float64
	for i := 0; i < iterations; i++ {
		start := time.Now()
		_, _, _ = viz.Placement(ctx, s, snapshotID, g, viz.DefaultCanvasWidth, viz.DefaultCanvasHeight)
		times = append(times, float64(time.Since(start).Microseconds())/1000.0)
	}
	return times
}

func benchmarkOutline(g relation.Graph, positions map[int64]geom.Point, radii map[int64]float64, iterations int) []float64 {
	p := render.NewPipeline(render.Options{}, nil)
	var times []float64
	if len(g.Clusters) == 0 {
		return times
	}
	for i := 0; i < iterations; i++ {
		c := g.Clusters[i%len(g.Clusters)]
		start := time.Now()
		p.Outline(c, positions, radii)
		times = append(times, float64(time.Since(start).Microseconds())/1000.0)
	}
	return times
}

func benchmarkRenderSVG(g relation.Graph, positions map[int64]geom.Point, radii map[int64]float64, iterations int) []float64 {
	p := render.NewPipeline(render.Options{}, nil)
	frame := render.Frame{
		Entities:  g.Entities,
		Records:   g.Records,
		Clusters:  g.Clusters,
		Positions: positions,
		Radii:     radii,
	}
	var times []float64
	for i := 0; i < iterations; i++ {
		start := time.Now()
		var buf bytes.Buffer
		svg := render.NewSVGSurface(&buf, viz.DefaultCanvasWidth, viz.DefaultCanvasHeight)
		p.Render(svg, frame)
		svg.End()
		times = append(times, float64(time.Since(start).Microseconds())/1000.0)
	}
	return times
}

func benchmarkStats(g relation.Graph, iterations int) []float64 {
	entities := make([]relation.Entity, 0, len(g.Entities))
	for _, e := range g.Entities {
		entities = append(entities, e)
	}
	var times []float64
	for i := 0; i < iterations; i++ {
		start := time.Now()
		observe.Summarize(entities, g.Records, g.Clusters)
		times = append(times, float64(time.Since(start).Microseconds())/1000.0)
	}
	return times
}

func benchmarkList(ctx context.Context, s *store.Store, iterations int) []float64 {
	var times []float64
	for i := 0; i < iterations; i++ {
		start := time.Now()
		_, _ = s.ListSnapshots(ctx, "")
		times = append(times, float64(time.Since(start).Microseconds())/1000.0)
	}
	return times
}

func computeResult(name string, times []float64, sloMs float64) BenchResult {
	sort.Float64s(times)
	n := len(times)
	if n == 0 {
		return BenchResult{Command: name, SLOMs: sloMs}
	}

	sum := 0.0
	for _, t := range times {
		sum += t
	}

	p95 := times[int(float64(n)*0.95)]
	return BenchResult{
		Command:    name,
		Iterations: n,
		P50Ms:      times[n/2],
		P95Ms:      p95,
		P99Ms:      times[int(float64(n)*0.99)],
		MinMs:      times[0],
		MaxMs:      times[n-1],
		MeanMs:     sum / float64(n),
		SLOMs:      sloMs,
		Pass:       p95 <= sloMs,
	}
}

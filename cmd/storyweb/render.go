package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/inkwise/storyweb/internal/geom"
	"github.com/inkwise/storyweb/internal/relation"
	"github.com/inkwise/storyweb/internal/render"
	"github.com/inkwise/storyweb/internal/viz"
)

func runRender(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: storyweb render <out.svg|out.png> [--snapshot <id>] [--input <payload.json>] [--width N] [--height N] [--min-strength X] [--types a,b] [--bands a,b] [--valences a,b] [--confirmed]")
	}

	var outPaths []string
	var input, snapshotRef string
	var minStrength, types, bands, valences string
	width, height := viz.DefaultCanvasWidth, viz.DefaultCanvasHeight
	confirmedOnly := false

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--snapshot" && i+1 < len(args):
			i++
			snapshotRef = args[i]
		case strings.HasPrefix(arg, "--snapshot="):
			snapshotRef = strings.TrimPrefix(arg, "--snapshot=")
		case arg == "--input" && i+1 < len(args):
			i++
			input = args[i]
		case strings.HasPrefix(arg, "--input="):
			input = strings.TrimPrefix(arg, "--input=")
		case arg == "--width" && i+1 < len(args):
			i++
			n, err := strconv.Atoi(args[i])
			if err != nil || n < 200 {
				return fmt.Errorf("invalid --width: %s", args[i])
			}
			width = n
		case arg == "--height" && i+1 < len(args):
			i++
			n, err := strconv.Atoi(args[i])
			if err != nil || n < 200 {
				return fmt.Errorf("invalid --height: %s", args[i])
			}
			height = n
		case arg == "--min-strength" && i+1 < len(args):
			i++
			minStrength = args[i]
		case arg == "--types" && i+1 < len(args):
			i++
			types = args[i]
		case arg == "--bands" && i+1 < len(args):
			i++
			bands = args[i]
		case arg == "--valences" && i+1 < len(args):
			i++
			valences = args[i]
		case arg == "--confirmed":
			confirmedOnly = true
		case strings.HasPrefix(arg, "-"):
			return fmt.Errorf("unknown flag: %s", arg)
		default:
			outPaths = append(outPaths, arg)
		}
	}

	if len(outPaths) == 0 {
		return fmt.Errorf("no output file specified")
	}
	if len(outPaths) > 1 {
		return fmt.Errorf("only one output file allowed, got %d", len(outPaths))
	}
	outPath := outPaths[0]

	ext := strings.ToLower(filepath.Ext(outPath))
	if ext != ".svg" && ext != ".png" {
		return fmt.Errorf("unsupported output format: %s (use .svg or .png)", outPath)
	}

	filters, err := buildFilter(minStrength, types, bands, valences, confirmedOnly)
	if err != nil {
		return err
	}

	cfg, err := settings("")
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	ctx := context.Background()

	var g relation.Graph
	var positions map[int64]geom.Point
	var radii map[int64]float64
	source := ""

	if input != "" {
		data, err := os.ReadFile(input)
		if err != nil {
			return fmt.Errorf("reading payload: %w", err)
		}
		payload, err := relation.DecodePayload(data)
		if err != nil {
			return err
		}
		g = relation.BuildGraph(payload)
		positions, radii, err = viz.Placement(ctx, nil, 0, g, float64(width), float64(height))
		if err != nil {
			return err
		}
		source = input
	} else {
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		snap, payload, err := loadSnapshot(ctx, st, cfg.Project.Value, snapshotRef)
		if err != nil {
			return err
		}
		g = relation.BuildGraph(payload)
		positions, radii, err = viz.Placement(ctx, st, snap.ID, g, float64(width), float64(height))
		if err != nil {
			return err
		}
		source = fmt.Sprintf("snapshot %d (%s)", snap.ID, snap.Label)
		if snap.Positions == 0 {
			logger.Warn("no captured layout for snapshot, using ring placement",
				"snapshot", snap.ID)
		}
	}

	frame := render.Frame{
		Entities:  g.Entities,
		Records:   g.Records,
		Clusters:  g.Clusters,
		Positions: positions,
		Radii:     radii,
		Filters:   filters,
	}
	pipeline := render.NewPipeline(geometryOptions(cfg), logger)

	var stats render.FrameStats
	switch ext {
	case ".svg":
		var buf bytes.Buffer
		surface := render.NewSVGSurface(&buf, width, height)
		stats = pipeline.Render(surface, frame)
		surface.End()
		if err := os.WriteFile(outPath, buf.Bytes(), 0644); err != nil {
			return fmt.Errorf("writing %s: %w", outPath, err)
		}
	case ".png":
		surface := render.NewRasterSurface(width, height)
		stats = pipeline.Render(surface, frame)
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("writing %s: %w", outPath, err)
		}
		defer f.Close()
		if err := surface.EncodePNG(f); err != nil {
			return fmt.Errorf("encoding %s: %w", outPath, err)
		}
	}

	fmt.Printf("Rendered %d clusters (%d skipped) from %s to %s\n",
		stats.ClustersDrawn, stats.ClustersSkipped, source, outPath)
	if stats.DroppedRelations > 0 {
		fmt.Printf("  %d relations dropped (missing or unknown entities)\n", stats.DroppedRelations)
	}
	return nil
}

// buildFilter assembles the edge filter from CLI flag values.
func buildFilter(minStrength, types, bands, valences string, confirmedOnly bool) (relation.FilterState, error) {
	f := relation.FilterState{ConfirmedOnly: confirmedOnly}
	if minStrength != "" {
		v, err := strconv.ParseFloat(minStrength, 64)
		if err != nil {
			return f, fmt.Errorf("invalid --min-strength: %s", minStrength)
		}
		f.MinStrength = v
	}
	for _, t := range splitCSV(types) {
		f.Types = append(f.Types, relation.RelationType(t))
	}
	for _, b := range splitCSV(bands) {
		f.Bands = append(f.Bands, relation.StrengthBand(b))
	}
	for _, v := range splitCSV(valences) {
		f.Valences = append(f.Valences, relation.Valence(v))
	}
	return f, nil
}

func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.ToLower(strings.TrimSpace(p)); v != "" {
			out = append(out, v)
		}
	}
	return out
}

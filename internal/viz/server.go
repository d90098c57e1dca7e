// Package viz provides the interactive relationship map preview.
// It embeds a self-contained HTML/JS page that lays the graph out with a
// D3 force simulation in the browser and posts the settled node
// positions back, so the outline pipeline can reproduce the same frame
// offline from the snapshot store.
package viz

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/inkwise/storyweb/internal/geom"
	"github.com/inkwise/storyweb/internal/layout"
	"github.com/inkwise/storyweb/internal/relation"
	"github.com/inkwise/storyweb/internal/render"
	"github.com/inkwise/storyweb/internal/store"
)

//go:embed visualizer.html
var visualizerFS embed.FS

// DefaultPort is the preview server's default listen port.
const DefaultPort = 8787

// Canvas defaults for server-side rendering.
const (
	DefaultCanvasWidth  = 1600
	DefaultCanvasHeight = 1000
	canvasPad           = 80.0
)

// Config holds settings for the preview server.
type Config struct {
	Store   *store.Store
	Port    int
	Log     *log.Logger
	Options render.Options
}

// ExportEntity is the visualization-friendly format for a graph node.
type ExportEntity struct {
	ID      int64    `json:"id"`
	Name    string   `json:"name"`
	Type    string   `json:"type,omitempty"`
	Radius  float64  `json:"radius"`
	X       *float64 `json:"x,omitempty"`
	Y       *float64 `json:"y,omitempty"`
	Pinned  bool     `json:"pinned,omitempty"`
	Mention int      `json:"mentions"`
}

// ExportRelation is the visualization-friendly format for an edge.
type ExportRelation struct {
	Source    int64   `json:"source"`
	Target    int64   `json:"target"`
	Strength  float64 `json:"strength"`
	Band      string  `json:"band"`
	Valence   string  `json:"valence"`
	Type      string  `json:"type,omitempty"`
	Confirmed bool    `json:"confirmed"`
}

// ExportCluster is the visualization-friendly format for a cluster.
type ExportCluster struct {
	ID       int64   `json:"id"`
	Label    string  `json:"label"`
	Members  []int64 `json:"members"`
	Cohesion float64 `json:"cohesion"`
}

// ExportGraph is the full graph export payload.
type ExportGraph struct {
	SnapshotID int64            `json:"snapshot_id"`
	Label      string           `json:"label"`
	Entities   []ExportEntity   `json:"entities"`
	Relations  []ExportRelation `json:"relations"`
	Clusters   []ExportCluster  `json:"clusters"`
	Meta       map[string]any   `json:"meta"`
}

type server struct {
	store *store.Store
	log   *log.Logger
	opts  render.Options
}

// Serve starts the preview web server. It blocks until the listener
// fails.
func Serve(cfg Config) error {
	logger := cfg.Log
	if logger == nil {
		logger = log.New(io.Discard)
	}
	port := cfg.Port
	if port <= 0 {
		port = DefaultPort
	}

	srv := &server{store: cfg.Store, log: logger, opts: cfg.Options}
	addr := fmt.Sprintf(":%d", port)
	logger.Info("relationship map preview", "url", fmt.Sprintf("http://localhost%s", addr))
	return http.ListenAndServe(addr, srv.routes())
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/api/snapshots", s.handleSnapshots)
	mux.HandleFunc("/api/graph", s.handleGraph)
	mux.HandleFunc("/api/positions", s.handlePositions)
	mux.HandleFunc("/api/render.svg", s.handleRenderSVG)
	return mux
}

func (s *server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data, err := visualizerFS.ReadFile("visualizer.html")
	if err != nil {
		http.Error(w, "visualizer not found", 500)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

func (s *server) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	snapshots, err := s.store.ListSnapshots(r.Context(), r.URL.Query().Get("project"))
	if err != nil {
		writeJSON(w, 500, map[string]string{"error": err.Error()})
		return
	}

	type item struct {
		ID         int64  `json:"id"`
		Project    string `json:"project,omitempty"`
		Label      string `json:"label"`
		ImportedAt string `json:"imported_at"`
		Positions  int    `json:"positions"`
	}
	out := make([]item, 0, len(snapshots))
	for _, snap := range snapshots {
		out = append(out, item{
			ID:         snap.ID,
			Project:    snap.Project,
			Label:      snap.Label,
			ImportedAt: snap.ImportedAt.Format("2006-01-02 15:04"),
			Positions:  snap.Positions,
		})
	}
	writeJSON(w, 200, map[string]any{"snapshots": out})
}

func (s *server) handleGraph(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx := r.Context()
	snap, errCode, err := s.resolveSnapshot(ctx, r.URL.Query())
	if err != nil {
		writeJSON(w, errCode, map[string]string{"error": err.Error()})
		return
	}

	payload, err := relation.DecodePayload(snap.Payload)
	if err != nil {
		writeJSON(w, 500, map[string]string{"error": err.Error()})
		return
	}
	g := relation.BuildGraph(payload)

	filters := ParseFilter(r.URL.Query())
	visible, dropped := relation.VisibleRelations(g.Entities, g.Records, filters)

	captured, err := s.store.Positions(ctx, snap.ID)
	if err != nil {
		writeJSON(w, 500, map[string]string{"error": err.Error()})
		return
	}
	capturedByID := make(map[int64]store.NodePosition, len(captured))
	for _, p := range captured {
		capturedByID[p.EntityID] = p
	}

	radii := layout.Radii(g.Entities)
	result := ExportGraph{
		SnapshotID: snap.ID,
		Label:      snap.Label,
		Entities:   make([]ExportEntity, 0, len(g.Entities)),
		Relations:  make([]ExportRelation, 0, len(visible)),
		Clusters:   make([]ExportCluster, 0, len(g.Clusters)),
	}

	for _, e := range sortedEntities(g.Entities) {
		exp := ExportEntity{
			ID:      e.ID,
			Name:    e.Name,
			Type:    e.Type,
			Radius:  radii[e.ID],
			Mention: e.MentionCount,
		}
		if p, ok := capturedByID[e.ID]; ok {
			x, y := p.X, p.Y
			exp.X, exp.Y = &x, &y
			exp.Pinned = true
		}
		result.Entities = append(result.Entities, exp)
	}

	for _, rec := range visible {
		result.Relations = append(result.Relations, ExportRelation{
			Source:    rec.SourceID,
			Target:    rec.TargetID,
			Strength:  rec.Strength,
			Band:      string(rec.Band()),
			Valence:   string(rec.Valence),
			Type:      string(rec.Type),
			Confirmed: rec.Confirmed,
		})
	}

	for _, c := range g.Clusters {
		result.Clusters = append(result.Clusters, ExportCluster{
			ID:       c.ID,
			Label:    c.DisplayLabel("", g.Entities),
			Members:  c.EntityIDs,
			Cohesion: c.CohesionScore,
		})
	}

	result.Meta = map[string]any{
		"total_entities":    len(result.Entities),
		"total_relations":   len(result.Relations),
		"total_clusters":    len(result.Clusters),
		"dropped_relations": len(dropped),
	}
	writeJSON(w, 200, result)
}

// capturePayload is the body of POST /api/positions.
type capturePayload struct {
	SnapshotID int64 `json:"snapshot_id"`
	Positions  []struct {
		ID     int64   `json:"id"`
		X      float64 `json:"x"`
		Y      float64 `json:"y"`
		Radius float64 `json:"radius"`
	} `json:"positions"`
}

func (s *server) handlePositions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		writeJSON(w, 405, map[string]string{"error": "POST required"})
		return
	}

	var body capturePayload
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, 400, map[string]string{"error": "invalid body: " + err.Error()})
		return
	}
	if body.SnapshotID <= 0 {
		writeJSON(w, 400, map[string]string{"error": "snapshot_id required"})
		return
	}

	ctx := r.Context()
	snap, err := s.store.GetSnapshot(ctx, body.SnapshotID)
	if err != nil {
		writeJSON(w, 500, map[string]string{"error": err.Error()})
		return
	}
	if snap == nil {
		writeJSON(w, 404, map[string]string{"error": fmt.Sprintf("snapshot %d not found", body.SnapshotID)})
		return
	}

	positions := make([]store.NodePosition, 0, len(body.Positions))
	for _, p := range body.Positions {
		positions = append(positions, store.NodePosition{
			EntityID: p.ID,
			X:        p.X,
			Y:        p.Y,
			Radius:   p.Radius,
		})
	}
	if err := s.store.SavePositions(ctx, body.SnapshotID, positions); err != nil {
		writeJSON(w, 500, map[string]string{"error": err.Error()})
		return
	}

	s.log.Info("captured layout", "snapshot", body.SnapshotID, "positions", len(positions))
	writeJSON(w, 200, map[string]any{"saved": len(positions)})
}

func (s *server) handleRenderSVG(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	snap, errCode, err := s.resolveSnapshot(ctx, q)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		writeJSON(w, errCode, map[string]string{"error": err.Error()})
		return
	}

	payload, err := relation.DecodePayload(snap.Payload)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		writeJSON(w, 500, map[string]string{"error": err.Error()})
		return
	}
	g := relation.BuildGraph(payload)

	width := intParam(q, "width", DefaultCanvasWidth, 200, 8000)
	height := intParam(q, "height", DefaultCanvasHeight, 200, 8000)

	positions, radii, err := Placement(ctx, s.store, snap.ID, g, float64(width), float64(height))
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		writeJSON(w, 500, map[string]string{"error": err.Error()})
		return
	}

	frame := render.Frame{
		Entities:  g.Entities,
		Records:   g.Records,
		Clusters:  g.Clusters,
		Positions: positions,
		Radii:     radii,
		Filters:   ParseFilter(q),
	}

	w.Header().Set("Content-Type", "image/svg+xml")
	surface := render.NewSVGSurface(w, width, height)
	stats := render.NewPipeline(s.opts, s.log).Render(surface, frame)
	surface.End()

	s.log.Debug("rendered frame",
		"snapshot", snap.ID,
		"clusters", stats.ClustersDrawn,
		"skipped", stats.ClustersSkipped)
}

// Placement resolves where every entity sits on the canvas: captured
// layout coordinates fitted to the canvas when the snapshot has them,
// otherwise a deterministic ring over entity ids. Captured radii win
// over mention-derived ones. A nil store skips the capture lookup.
func Placement(ctx context.Context, st *store.Store, snapshotID int64, g relation.Graph, width, height float64) (map[int64]geom.Point, map[int64]float64, error) {
	radii := layout.Radii(g.Entities)

	var captured []store.NodePosition
	if st != nil {
		var err error
		captured, err = st.Positions(ctx, snapshotID)
		if err != nil {
			return nil, nil, err
		}
	}
	if len(captured) > 0 {
		raw := make(map[int64]geom.Point, len(captured))
		for _, p := range captured {
			raw[p.EntityID] = geom.Point{X: p.X, Y: p.Y}
			if p.Radius > 0 {
				radii[p.EntityID] = p.Radius
			}
		}
		return layout.Fit(raw, width, height, canvasPad), radii, nil
	}

	ids := make([]int64, 0, len(g.Entities))
	for id := range g.Entities {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	center := geom.Point{X: width / 2, Y: height / 2}
	ringRadius := (min(width, height) - 2*canvasPad) / 2
	return layout.Ring(ids, center, ringRadius), radii, nil
}

// resolveSnapshot loads the snapshot named by the query: a numeric id,
// or the most recent one when absent or "latest". The int return is the
// HTTP status for the error case.
func (s *server) resolveSnapshot(ctx context.Context, q url.Values) (*store.Snapshot, int, error) {
	ref := strings.TrimSpace(q.Get("snapshot"))
	if ref == "" || ref == "latest" {
		snap, err := s.store.LatestSnapshot(ctx, q.Get("project"))
		if err != nil {
			return nil, 500, err
		}
		if snap == nil {
			return nil, 404, fmt.Errorf("no snapshots imported yet")
		}
		return snap, 0, nil
	}

	id, err := strconv.ParseInt(ref, 10, 64)
	if err != nil {
		return nil, 400, fmt.Errorf("invalid snapshot %q", ref)
	}
	snap, err := s.store.GetSnapshot(ctx, id)
	if err != nil {
		return nil, 500, err
	}
	if snap == nil {
		return nil, 404, fmt.Errorf("snapshot %d not found", id)
	}
	return snap, 0, nil
}

// ParseFilter builds a relation filter from URL query parameters:
// min_strength, types, bands, valences (comma-separated), confirmed.
func ParseFilter(q url.Values) relation.FilterState {
	f := relation.FilterState{}
	if v := q.Get("min_strength"); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			f.MinStrength = n
		}
	}
	for _, t := range splitCSV(q.Get("types")) {
		f.Types = append(f.Types, relation.RelationType(t))
	}
	for _, b := range splitCSV(q.Get("bands")) {
		f.Bands = append(f.Bands, relation.StrengthBand(b))
	}
	for _, v := range splitCSV(q.Get("valences")) {
		f.Valences = append(f.Valences, relation.Valence(v))
	}
	if v := q.Get("confirmed"); v == "1" || v == "true" {
		f.ConfirmedOnly = true
	}
	return f
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

func sortedEntities(entities map[int64]relation.Entity) []relation.Entity {
	out := make([]relation.Entity, 0, len(entities))
	for _, e := range entities {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func intParam(q url.Values, key string, fallback, lo, hi int) int {
	v := q.Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < lo || n > hi {
		return fallback
	}
	return n
}

func writeJSON(w http.ResponseWriter, code int, data any) {
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}

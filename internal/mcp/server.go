// Package mcp provides a Model Context Protocol server for storyweb.
//
// It exposes the relationship graph (filtered edges, cluster outline
// geometry, snapshot statistics) as MCP tools, and the snapshot list as
// an MCP resource, over stdio transport for editor and agent hosts.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/inkwise/storyweb/internal/observe"
	"github.com/inkwise/storyweb/internal/relation"
	"github.com/inkwise/storyweb/internal/render"
	"github.com/inkwise/storyweb/internal/store"
	"github.com/inkwise/storyweb/internal/viz"
)

// ServerConfig holds configuration for the MCP server.
type ServerConfig struct {
	Store   *store.Store
	Version string
	Options render.Options
}

// dbMu serializes MCP tool calls that touch the database. The mcp-go
// library dispatches handlers concurrently via goroutines; SQLite
// supports only one writer at a time, and position captures must land
// before an outline render reads them.
var dbMu sync.Mutex

// NewServer creates a configured MCP server with all storyweb tools and
// resources.
func NewServer(cfg ServerConfig) *server.MCPServer {
	ver := cfg.Version
	if ver == "" {
		ver = "dev"
	}

	s := server.NewMCPServer(
		"storyweb",
		ver,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(true, false),
	)

	registerRelationsTool(s, cfg.Store)
	registerOutlineTool(s, cfg.Store, cfg.Options)
	registerStatsTool(s, cfg.Store)

	registerSnapshotsResource(s, cfg.Store)

	return s
}

// ServeStdio runs the server on stdin/stdout until the host closes the
// stream.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

// --- Tools ---

func registerRelationsTool(s *server.MCPServer, st *store.Store) {
	tool := mcp.NewTool("graph_relations",
		mcp.WithDescription("List the visible relationship edges of a snapshot after normalization and filtering. Returns canonical records with strength, band, valence, and type."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithNumber("snapshot",
			mcp.Description("Snapshot ID. Omit for the most recently imported snapshot."),
		),
		mcp.WithNumber("min_strength",
			mcp.Description("Minimum relation strength, inclusive (0..1)."),
		),
		mcp.WithString("types",
			mcp.Description("Comma-separated relation types to keep (friend, family, enemy, love, colleague, mentor, rival, ally, acquaintance). Untyped relations always pass."),
		),
		mcp.WithString("bands",
			mcp.Description("Comma-separated strength bands to keep (weak, moderate, strong, very_strong)."),
		),
		mcp.WithString("valences",
			mcp.Description("Comma-separated valences to keep (positive, neutral, negative)."),
		),
		mcp.WithBoolean("confirmed",
			mcp.Description("Keep only user-confirmed relations."),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		snap, g, err := loadSnapshotGraph(ctx, st, req)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		filters := filterFromRequest(req)
		visible, dropped := relation.VisibleRelations(g.Entities, g.Records, filters)

		type edge struct {
			Source    int64   `json:"source"`
			Target    int64   `json:"target"`
			Strength  float64 `json:"strength"`
			Band      string  `json:"band"`
			Valence   string  `json:"valence"`
			Type      string  `json:"type,omitempty"`
			Confirmed bool    `json:"confirmed"`
			Evidence  int     `json:"evidence_count"`
		}
		edges := make([]edge, 0, len(visible))
		for _, rec := range visible {
			edges = append(edges, edge{
				Source:    rec.SourceID,
				Target:    rec.TargetID,
				Strength:  rec.Strength,
				Band:      string(rec.Band()),
				Valence:   string(rec.Valence),
				Type:      string(rec.Type),
				Confirmed: rec.Confirmed,
				Evidence:  rec.EvidenceCount,
			})
		}

		result := map[string]any{
			"snapshot_id": snap.ID,
			"relations":   edges,
			"dropped":     len(dropped),
		}
		data, _ := json.MarshalIndent(result, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerOutlineTool(s *server.MCPServer, st *store.Store, opts render.Options) {
	tool := mcp.NewTool("cluster_outline",
		mcp.WithDescription("Compute the smoothed outline ring for one cluster of a snapshot, using its captured layout (or a deterministic ring placement when none was captured). Returns the closed polyline the renderer would draw."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithNumber("cluster",
			mcp.Required(),
			mcp.Description("Cluster ID within the snapshot payload."),
		),
		mcp.WithNumber("snapshot",
			mcp.Description("Snapshot ID. Omit for the most recently imported snapshot."),
		),
		mcp.WithNumber("width",
			mcp.Description(fmt.Sprintf("Canvas width in pixels (default %d).", viz.DefaultCanvasWidth)),
		),
		mcp.WithNumber("height",
			mcp.Description(fmt.Sprintf("Canvas height in pixels (default %d).", viz.DefaultCanvasHeight)),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		clusterVal, err := req.RequireFloat("cluster")
		if err != nil {
			return mcp.NewToolResultError("cluster is required"), nil
		}
		clusterID := int64(clusterVal)

		snap, g, err := loadSnapshotGraph(ctx, st, req)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		var target *relation.Cluster
		for i := range g.Clusters {
			if g.Clusters[i].ID == clusterID {
				target = &g.Clusters[i]
				break
			}
		}
		if target == nil {
			return mcp.NewToolResultError(fmt.Sprintf("cluster %d not found in snapshot %d", clusterID, snap.ID)), nil
		}

		width := floatParam(req, "width", viz.DefaultCanvasWidth)
		height := floatParam(req, "height", viz.DefaultCanvasHeight)

		positions, radii, err := viz.Placement(ctx, st, snap.ID, g, width, height)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("resolving placement: %v", err)), nil
		}

		ring, ok := render.NewPipeline(opts, nil).Outline(*target, positions, radii)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("cluster %d is not drawable: fewer than two positioned members or degenerate geometry", clusterID)), nil
		}

		type point struct {
			X float64 `json:"x"`
			Y float64 `json:"y"`
		}
		points := make([]point, len(ring))
		for i, p := range ring {
			points[i] = point{X: p.X, Y: p.Y}
		}

		result := map[string]any{
			"snapshot_id": snap.ID,
			"cluster_id":  target.ID,
			"label":       target.DisplayLabel("", g.Entities),
			"members":     target.EntityIDs,
			"points":      points,
		}
		data, _ := json.MarshalIndent(result, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerStatsTool(s *server.MCPServer, st *store.Store) {
	tool := mcp.NewTool("graph_stats",
		mcp.WithDescription("Summarize a snapshot's relationship graph: entity and relation composition, confirmed share, dangling references, cluster cohesion, and health alerts."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithNumber("snapshot",
			mcp.Description("Snapshot ID. Omit for the most recently imported snapshot."),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		snap, g, err := loadSnapshotGraph(ctx, st, req)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		entities := make([]relation.Entity, 0, len(g.Entities))
		for _, e := range g.Entities {
			entities = append(entities, e)
		}
		stats := observe.Summarize(entities, g.Records, g.Clusters)

		result := map[string]any{
			"snapshot_id": snap.ID,
			"label":       snap.Label,
			"stats":       stats,
		}
		data, _ := json.MarshalIndent(result, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

// --- Resources ---

func registerSnapshotsResource(s *server.MCPServer, st *store.Store) {
	resource := mcp.NewResource(
		"storyweb://snapshots",
		"Imported Snapshots",
		mcp.WithResourceDescription("Imported relationship payload snapshots with capture state."),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(resource, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		snapshots, err := st.ListSnapshots(ctx, "")
		if err != nil {
			return nil, fmt.Errorf("listing snapshots: %w", err)
		}

		type item struct {
			ID         int64  `json:"id"`
			Project    string `json:"project,omitempty"`
			Label      string `json:"label"`
			ImportedAt string `json:"imported_at"`
			Positions  int    `json:"positions"`
		}
		items := make([]item, 0, len(snapshots))
		for _, snap := range snapshots {
			items = append(items, item{
				ID:         snap.ID,
				Project:    snap.Project,
				Label:      snap.Label,
				ImportedAt: snap.ImportedAt.Format("2006-01-02T15:04:05Z"),
				Positions:  snap.Positions,
			})
		}

		payload := map[string]any{
			"snapshots": items,
			"count":     len(items),
		}
		data, _ := json.MarshalIndent(payload, "", "  ")
		return []mcp.ResourceContents{
			mcp.TextResourceContents{URI: req.Params.URI, MIMEType: "application/json", Text: string(data)},
		}, nil
	})
}

// --- Helpers ---

// loadSnapshotGraph resolves the snapshot named by the request (or the
// latest) and normalizes its payload.
func loadSnapshotGraph(ctx context.Context, st *store.Store, req mcp.CallToolRequest) (*store.Snapshot, relation.Graph, error) {
	var snap *store.Snapshot
	var err error

	if idVal, reqErr := req.RequireFloat("snapshot"); reqErr == nil && idVal > 0 {
		snap, err = st.GetSnapshot(ctx, int64(idVal))
		if err != nil {
			return nil, relation.Graph{}, fmt.Errorf("loading snapshot: %w", err)
		}
		if snap == nil {
			return nil, relation.Graph{}, fmt.Errorf("snapshot %d not found", int64(idVal))
		}
	} else {
		snap, err = st.LatestSnapshot(ctx, "")
		if err != nil {
			return nil, relation.Graph{}, fmt.Errorf("loading latest snapshot: %w", err)
		}
		if snap == nil {
			return nil, relation.Graph{}, fmt.Errorf("no snapshots imported yet")
		}
	}

	payload, err := relation.DecodePayload(snap.Payload)
	if err != nil {
		return nil, relation.Graph{}, err
	}
	return snap, relation.BuildGraph(payload), nil
}

func filterFromRequest(req mcp.CallToolRequest) relation.FilterState {
	f := relation.FilterState{}
	if v, err := req.RequireFloat("min_strength"); err == nil {
		f.MinStrength = v
	}
	if v, err := req.RequireString("types"); err == nil {
		for _, t := range splitCSV(v) {
			f.Types = append(f.Types, relation.RelationType(t))
		}
	}
	if v, err := req.RequireString("bands"); err == nil {
		for _, b := range splitCSV(v) {
			f.Bands = append(f.Bands, relation.StrengthBand(b))
		}
	}
	if v, err := req.RequireString("valences"); err == nil {
		for _, val := range splitCSV(v) {
			f.Valences = append(f.Valences, relation.Valence(val))
		}
	}
	if v, err := req.RequireString("confirmed"); err == nil && v == "true" {
		f.ConfirmedOnly = true
	}
	return f
}

func floatParam(req mcp.CallToolRequest, key string, fallback float64) float64 {
	if v, err := req.RequireFloat(key); err == nil && v > 0 {
		return v
	}
	return fallback
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

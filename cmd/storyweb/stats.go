package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/inkwise/storyweb/internal/observe"
	"github.com/inkwise/storyweb/internal/relation"
)

func runStats(args []string) error {
	var snapshotRef string
	jsonOut := false

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--snapshot" && i+1 < len(args):
			i++
			snapshotRef = args[i]
		case strings.HasPrefix(arg, "--snapshot="):
			snapshotRef = strings.TrimPrefix(arg, "--snapshot=")
		case arg == "--json":
			jsonOut = true
		case strings.HasPrefix(arg, "-"):
			return fmt.Errorf("unknown flag: %s", arg)
		default:
			return fmt.Errorf("unexpected argument: %s", arg)
		}
	}

	cfg, err := settings("")
	if err != nil {
		return err
	}
	ctx := context.Background()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	snap, payload, err := loadSnapshot(ctx, st, cfg.Project.Value, snapshotRef)
	if err != nil {
		return err
	}
	g := relation.BuildGraph(payload)

	entities := make([]relation.Entity, 0, len(g.Entities))
	for _, e := range g.Entities {
		entities = append(entities, e)
	}
	graphStats := observe.Summarize(entities, g.Records, g.Clusters)

	dbStats, err := st.Stats(ctx)
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(map[string]any{
			"snapshot_id": snap.ID,
			"label":       snap.Label,
			"imported_at": snap.ImportedAt.Format("2006-01-02T15:04:05Z"),
			"graph":       graphStats,
			"store": map[string]any{
				"snapshots":     dbStats.SnapshotCount,
				"positions":     dbStats.PositionCount,
				"db_size_bytes": dbStats.DBSizeBytes,
			},
		})
	}

	fmt.Printf("Snapshot %d (%s), imported %s\n\n",
		snap.ID, snap.Label, snap.ImportedAt.Format("2006-01-02 15:04"))

	fmt.Printf("Entities:  %d", graphStats.TotalEntities)
	if tops := graphStats.TopTypes(); len(tops) > 0 {
		parts := make([]string, 0, len(tops))
		for _, tc := range tops {
			parts = append(parts, fmt.Sprintf("%s %d", tc.Type, tc.Count))
		}
		fmt.Printf("  (%s)", strings.Join(parts, ", "))
	}
	fmt.Println()

	fmt.Printf("Relations: %d visible, %d dangling, %d confirmed, avg strength %.2f\n",
		graphStats.TotalRelations, graphStats.DanglingRelations,
		graphStats.ConfirmedRelations, graphStats.AvgStrength)

	if len(graphStats.RelationsByBand) > 0 {
		fmt.Printf("Bands:     weak %d / moderate %d / strong %d / very_strong %d\n",
			graphStats.RelationsByBand["weak"],
			graphStats.RelationsByBand["moderate"],
			graphStats.RelationsByBand["strong"],
			graphStats.RelationsByBand["very_strong"])
	}

	cs := graphStats.Clusters
	fmt.Printf("Clusters:  %d total, %d drawable, avg cohesion %.2f, largest %d members\n",
		cs.Total, cs.Drawable, cs.AvgCohesion, cs.LargestSize)

	if graphStats.IsolatedEntities > 0 {
		fmt.Printf("Isolated:  %d entities with no visible relations\n", graphStats.IsolatedEntities)
	}

	if len(graphStats.Alerts) > 0 {
		fmt.Println("\nAlerts:")
		for _, a := range graphStats.Alerts {
			fmt.Printf("  - %s\n", a)
		}
	}

	fmt.Printf("\nStore: %d snapshots, %d captured positions, %s\n",
		dbStats.SnapshotCount, dbStats.PositionCount, formatBytes(dbStats.DBSizeBytes))
	return nil
}

func runList(args []string) error {
	jsonOut := false
	for _, arg := range args {
		switch {
		case arg == "--json":
			jsonOut = true
		case strings.HasPrefix(arg, "-"):
			return fmt.Errorf("unknown flag: %s", arg)
		default:
			return fmt.Errorf("unexpected argument: %s", arg)
		}
	}

	cfg, err := settings("")
	if err != nil {
		return err
	}
	ctx := context.Background()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	snapshots, err := st.ListSnapshots(ctx, cfg.Project.Value)
	if err != nil {
		return err
	}

	if jsonOut {
		type item struct {
			ID         int64  `json:"id"`
			Project    string `json:"project,omitempty"`
			Label      string `json:"label"`
			ImportedAt string `json:"imported_at"`
			Positions  int    `json:"positions"`
		}
		items := make([]item, 0, len(snapshots))
		for _, s := range snapshots {
			items = append(items, item{
				ID:         s.ID,
				Project:    s.Project,
				Label:      s.Label,
				ImportedAt: s.ImportedAt.Format("2006-01-02T15:04:05Z"),
				Positions:  s.Positions,
			})
		}
		return printJSON(map[string]any{"snapshots": items, "count": len(items)})
	}

	if len(snapshots) == 0 {
		fmt.Println("No snapshots imported yet.")
		fmt.Println("Run `storyweb import <payload.json>` to load a relationship payload.")
		return nil
	}

	fmt.Printf("%d snapshots (newest first):\n\n", len(snapshots))
	for _, s := range snapshots {
		project := s.Project
		if project == "" {
			project = "-"
		}
		layout := "no layout"
		if s.Positions > 0 {
			layout = fmt.Sprintf("%d positions", s.Positions)
		}
		fmt.Printf("  [%d] %-28s project %-12s %s   %s\n",
			s.ID, s.Label, project, s.ImportedAt.Format("2006-01-02 15:04"), layout)
	}
	return nil
}

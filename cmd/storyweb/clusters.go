package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/inkwise/storyweb/internal/cluster"
	"github.com/inkwise/storyweb/internal/relation"
)

func runClusters(args []string) error {
	var snapshotRef string
	recluster := false
	jsonOut := false

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--snapshot" && i+1 < len(args):
			i++
			snapshotRef = args[i]
		case strings.HasPrefix(arg, "--snapshot="):
			snapshotRef = strings.TrimPrefix(arg, "--snapshot=")
		case arg == "--recluster":
			recluster = true
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

	if recluster {
		return outputRecluster(snap.ID, payload, g, jsonOut)
	}
	return outputClusters(snap.ID, snap.Label, g, jsonOut)
}

func outputClusters(snapshotID int64, label string, g relation.Graph, jsonOut bool) error {
	if jsonOut {
		type item struct {
			ID       int64   `json:"id"`
			Label    string  `json:"label"`
			Members  []int64 `json:"members"`
			Centroid int64   `json:"centroid_entity_id,omitempty"`
			Cohesion float64 `json:"cohesion"`
			Drawable bool    `json:"drawable"`
		}
		items := make([]item, 0, len(g.Clusters))
		for _, c := range g.Clusters {
			items = append(items, item{
				ID:       c.ID,
				Label:    c.DisplayLabel("", g.Entities),
				Members:  c.EntityIDs,
				Centroid: c.CentroidEntityID,
				Cohesion: c.CohesionScore,
				Drawable: len(c.EntityIDs) >= 2,
			})
		}
		return printJSON(map[string]any{"snapshot_id": snapshotID, "clusters": items})
	}

	if len(g.Clusters) == 0 {
		fmt.Printf("Snapshot %d (%s) has no clusters.\n", snapshotID, label)
		fmt.Println("Try `storyweb clusters --recluster` to infer them from the relation data.")
		return nil
	}

	fmt.Printf("Clusters in snapshot %d (%s):\n\n", snapshotID, label)
	for _, c := range g.Clusters {
		note := ""
		if len(c.EntityIDs) < 2 {
			note = "  (not drawable)"
		}
		fmt.Printf("  [%d] %-28s %2d members   cohesion %.2f%s\n",
			c.ID, c.DisplayLabel("", g.Entities), len(c.EntityIDs), c.CohesionScore, note)
	}
	return nil
}

func outputRecluster(snapshotID int64, payload relation.Payload, g relation.Graph, jsonOut bool) error {
	eng := cluster.NewEngine(g.Entities)
	if len(payload.Cooccurrences) > 0 {
		eng.ObserveCooccurrences(payload.Cooccurrences)
	} else {
		// No raw sightings stored: treat each valid relation as that many
		// evidence-weighted sightings of its endpoint pair.
		for _, rec := range g.Records {
			n := rec.EvidenceCount
			if n < 1 {
				n = 1
			}
			for i := 0; i < n; i++ {
				eng.Observe(rec.SourceID, rec.TargetID, 0, 0, "")
			}
		}
	}

	res := eng.Analyze()

	if jsonOut {
		type item struct {
			ID       int64    `json:"id"`
			Name     string   `json:"name"`
			Members  []int64  `json:"members"`
			Names    []string `json:"member_names"`
			Centroid int64    `json:"centroid_entity_id"`
			Cohesion float64  `json:"cohesion"`
			Chapters []int    `json:"chapters_active,omitempty"`
		}
		items := make([]item, 0, len(res.Clusters))
		for _, d := range res.Clusters {
			items = append(items, item{
				ID:       d.Cluster.ID,
				Name:     d.Cluster.Name,
				Members:  d.Cluster.EntityIDs,
				Names:    d.MemberNames,
				Centroid: d.Cluster.CentroidEntityID,
				Cohesion: d.Cluster.CohesionScore,
				Chapters: d.ChaptersActive,
			})
		}
		return printJSON(map[string]any{
			"snapshot_id":  snapshotID,
			"observations": eng.Observations(),
			"clusters":     items,
			"relations":    res.Relations,
		})
	}

	fmt.Printf("Inferred %d clusters from %d observations:\n\n", len(res.Clusters), eng.Observations())
	for _, d := range res.Clusters {
		fmt.Printf("  [%d] %-28s %2d members   cohesion %.2f\n",
			d.Cluster.ID, d.Cluster.Name, len(d.Cluster.EntityIDs), d.Cluster.CohesionScore)
		if len(d.MemberNames) > 0 {
			fmt.Printf("       %s\n", strings.Join(d.MemberNames, ", "))
		}
	}
	if len(res.Relations) > 0 {
		fmt.Printf("\n%d relations inferred (strongest first).\n", len(res.Relations))
	}
	return nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

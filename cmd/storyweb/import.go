package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/inkwise/storyweb/internal/cluster"
	"github.com/inkwise/storyweb/internal/relation"
	"github.com/inkwise/storyweb/internal/store"
)

func runImport(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: storyweb import <payload.json> [--label <text>] [--dry-run]")
	}

	var paths []string
	var label string
	dryRun := false

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--label" && i+1 < len(args):
			i++
			label = args[i]
		case strings.HasPrefix(arg, "--label="):
			label = strings.TrimPrefix(arg, "--label=")
		case arg == "--dry-run" || arg == "-n":
			dryRun = true
		case strings.HasPrefix(arg, "-"):
			return fmt.Errorf("unknown flag: %s", arg)
		default:
			paths = append(paths, arg)
		}
	}

	if len(paths) == 0 {
		return fmt.Errorf("no payload file specified")
	}
	if len(paths) > 1 {
		return fmt.Errorf("only one payload file allowed, got %d", len(paths))
	}
	path := paths[0]

	cfg, err := settings("")
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading payload: %w", err)
	}

	payload, err := relation.DecodePayload(data)
	if err != nil {
		return err
	}

	// Payloads that ship raw co-occurrence sightings but no clusters get
	// clusters inferred at import, so render and serve have blobs to draw.
	if len(payload.Clusters) == 0 && len(payload.Cooccurrences) > 0 {
		payload = inferClusters(payload, logger)
		data, err = relation.EncodePayload(payload)
		if err != nil {
			return err
		}
	}

	g := relation.BuildGraph(payload)
	if label == "" {
		label = filepath.Base(path)
	}

	if dryRun {
		fmt.Println("Dry run mode — no changes will be written")
		fmt.Printf("Would import %s: %d entities, %d relations, %d clusters\n",
			path, len(g.Entities), len(g.Records), len(g.Clusters))
		return nil
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	snap, err := st.AddSnapshot(context.Background(), cfg.Project.Value, label, data)
	if errors.Is(err, store.ErrDuplicateSnapshot) {
		fmt.Printf("Already imported as snapshot %d (identical content)\n", snap.ID)
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Printf("Imported snapshot %d (%s): %d entities, %d relations, %d clusters\n",
		snap.ID, label, len(g.Entities), len(g.Records), len(g.Clusters))
	fmt.Println("Preview with: storyweb serve")
	return nil
}

// inferClusters runs the co-occurrence engine over the payload's
// sightings and folds the result back in. Inferred relations are only
// adopted when the payload carried none of its own.
func inferClusters(p relation.Payload, logger *log.Logger) relation.Payload {
	g := relation.BuildGraph(p)
	eng := cluster.NewEngine(g.Entities)
	eng.ObserveCooccurrences(p.Cooccurrences)
	res := eng.Analyze()

	for _, d := range res.Clusters {
		p.Clusters = append(p.Clusters, rawCluster(d.Cluster))
	}
	if len(p.Relations) == 0 {
		p.Relations = res.Relations
	}

	logger.Info("inferred clusters from co-occurrence data",
		"observations", eng.Observations(),
		"clusters", len(res.Clusters),
		"relations", len(res.Relations))
	return p
}

func rawCluster(c relation.Cluster) relation.RawCluster {
	return relation.RawCluster{
		ID:               c.ID,
		Name:             c.Name,
		EntityIDs:        c.EntityIDs,
		CentroidEntityID: c.CentroidEntityID,
		CohesionScore:    c.CohesionScore,
	}
}

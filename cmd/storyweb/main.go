package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/inkwise/storyweb/internal/config"
	"github.com/inkwise/storyweb/internal/geom"
	"github.com/inkwise/storyweb/internal/relation"
	"github.com/inkwise/storyweb/internal/render"
	"github.com/inkwise/storyweb/internal/store"
)

const version = "0.1.0-dev"

// Global flags, parsed before command dispatch.
var (
	globalDBPath     string
	globalConfigPath string
	globalProject    string
	globalVerbose    bool
)

func main() {
	args := parseGlobalFlags(os.Args[1:])
	if len(args) == 0 {
		printUsage()
		os.Exit(0)
	}

	var err error
	switch args[0] {
	case "import":
		err = runImport(args[1:])
	case "render":
		err = runRender(args[1:])
	case "clusters":
		err = runClusters(args[1:])
	case "stats":
		err = runStats(args[1:])
	case "list":
		err = runList(args[1:])
	case "serve":
		err = runServe(args[1:])
	case "mcp":
		err = runMCP(args[1:])
	case "version", "--version", "-v":
		fmt.Printf("storyweb %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", args[0])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if hint := remediationHint(err); hint != "" {
			fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
		}
		os.Exit(1)
	}
}

// parseGlobalFlags strips the flags every command shares and returns the
// remaining arguments.
func parseGlobalFlags(args []string) []string {
	var filtered []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--db" && i+1 < len(args):
			i++
			globalDBPath = args[i]
		case strings.HasPrefix(arg, "--db="):
			globalDBPath = strings.TrimPrefix(arg, "--db=")
		case arg == "--config" && i+1 < len(args):
			i++
			globalConfigPath = args[i]
		case strings.HasPrefix(arg, "--config="):
			globalConfigPath = strings.TrimPrefix(arg, "--config=")
		case arg == "--project" && i+1 < len(args):
			i++
			globalProject = args[i]
		case strings.HasPrefix(arg, "--project="):
			globalProject = strings.TrimPrefix(arg, "--project=")
		case arg == "--verbose":
			globalVerbose = true
		default:
			filtered = append(filtered, arg)
		}
	}
	return filtered
}

// settings resolves layered configuration for one command run. cliPort
// is empty except under serve.
func settings(cliPort string) (config.ResolvedConfig, error) {
	return config.ResolveConfig(config.ResolveOptions{
		ConfigPath: globalConfigPath,
		CLIDBPath:  globalDBPath,
		CLIProject: globalProject,
		CLIPort:    cliPort,
	})
}

func openStore(cfg config.ResolvedConfig) (*store.Store, error) {
	st, err := store.Open(store.Config{DBPath: cfg.DBPath.Value})
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	return st, nil
}

func newLogger(cfg config.ResolvedConfig) *log.Logger {
	level := log.WarnLevel
	if parsed, err := log.ParseLevel(cfg.LogLevel.Value); err == nil && cfg.LogLevel.Value != "" {
		level = parsed
	}
	if globalVerbose {
		level = log.DebugLevel
	}
	return log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true, Level: level})
}

// geometryOptions maps config-file tuning onto pipeline options, falling
// back to the reference defaults.
func geometryOptions(cfg config.ResolvedConfig) render.Options {
	g := cfg.Geometry
	return render.Options{
		NodeMargin:        g.NodeMargin.Float(render.DefaultNodeMargin),
		HullPadding:       g.HullPadding.Float(render.DefaultHullPadding),
		ChaikinIterations: g.SmoothIterations.Int(geom.DefaultChaikinIterations),
		CurveSamples:      g.CurveSamples.Int(geom.DefaultCurveSamples),
		PerimeterSamples:  g.PerimeterSamples.Int(geom.DefaultPerimeterSamples),
	}
}

// loadSnapshot fetches the snapshot named by ref ("" or "latest" picks
// the newest in the project scope, a number picks by id) and decodes it.
func loadSnapshot(ctx context.Context, st *store.Store, project, ref string) (*store.Snapshot, relation.Payload, error) {
	var snap *store.Snapshot
	var err error

	ref = strings.TrimSpace(ref)
	if ref == "" || ref == "latest" {
		snap, err = st.LatestSnapshot(ctx, project)
		if err != nil {
			return nil, relation.Payload{}, err
		}
		if snap == nil {
			return nil, relation.Payload{}, fmt.Errorf("no snapshots imported yet")
		}
	} else {
		id, parseErr := strconv.ParseInt(ref, 10, 64)
		if parseErr != nil {
			return nil, relation.Payload{}, fmt.Errorf("invalid snapshot id: %s", ref)
		}
		snap, err = st.GetSnapshot(ctx, id)
		if err != nil {
			return nil, relation.Payload{}, err
		}
		if snap == nil {
			return nil, relation.Payload{}, fmt.Errorf("snapshot %d not found", id)
		}
	}

	payload, err := relation.DecodePayload(snap.Payload)
	if err != nil {
		return nil, relation.Payload{}, err
	}
	return snap, payload, nil
}

// remediationHint maps common failures to a next step. Empty when there
// is nothing actionable to suggest.
func remediationHint(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "usage:"),
		strings.Contains(msg, "unknown flag"),
		strings.Contains(msg, "unknown argument"),
		strings.Contains(msg, "unexpected argument"):
		return "Run `storyweb help` for available commands and flags."
	case strings.Contains(msg, "no snapshots imported"):
		return "Run `storyweb import <payload.json>` to load a relationship payload first."
	case strings.Contains(msg, "database is locked"):
		return "Another process is using this DB (probably `storyweb serve`). Stop it and retry."
	case strings.Contains(msg, "not a database"):
		return "Database appears corrupted or stale. Move it aside and run `storyweb import` again."
	case strings.Contains(msg, "opening store"):
		if globalDBPath != "" {
			return fmt.Sprintf("Verify the DB path is valid and writable: %s", globalDBPath)
		}
		return "Set --db <path> or STORYWEB_DB, and check file permissions."
	}
	return ""
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}

func printUsage() {
	fmt.Printf(`storyweb %s — Cluster outlines for manuscript relationship graphs

Usage:
  storyweb <command> [arguments]

Commands:
  import <payload.json>    Import a relationship payload snapshot
  render <out.svg|.png>    Render cluster outlines from a snapshot or payload file
  clusters                 List a snapshot's clusters (--recluster to re-infer)
  stats                    Show graph statistics for a snapshot
  list                     List imported snapshots
  serve                    Start the layout preview server
  mcp                      Run the MCP server on stdio
  version                  Print version

Global Flags:
  --db <path>              SQLite database path (or STORYWEB_DB)
  --config <path>          Config file (default ~/.storyweb/config.yaml)
  --project <name>         Project scope for import and snapshot lookup
  --verbose                Debug logging
  -h, --help               Show this help message
  -v, --version            Print version

Run `+"`storyweb help`"+` any time to see this message.
`, version)
}

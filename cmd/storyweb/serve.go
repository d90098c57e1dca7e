package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/inkwise/storyweb/internal/mcp"
	"github.com/inkwise/storyweb/internal/viz"
)

func runServe(args []string) error {
	var portArg string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--port" && i+1 < len(args):
			i++
			portArg = args[i]
		case strings.HasPrefix(arg, "--port="):
			portArg = strings.TrimPrefix(arg, "--port=")
		case strings.HasPrefix(arg, "-"):
			return fmt.Errorf("unknown flag: %s", arg)
		default:
			return fmt.Errorf("unexpected argument: %s", arg)
		}
	}
	if portArg != "" {
		if _, err := strconv.Atoi(portArg); err != nil {
			return fmt.Errorf("invalid --port: %s", portArg)
		}
	}

	cfg, err := settings(portArg)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	return viz.Serve(viz.Config{
		Store:   st,
		Port:    cfg.Port.Int(viz.DefaultPort),
		Log:     logger,
		Options: geometryOptions(cfg),
	})
}

func runMCP(args []string) error {
	for _, arg := range args {
		if strings.HasPrefix(arg, "-") {
			return fmt.Errorf("unknown flag: %s", arg)
		}
		return fmt.Errorf("unexpected argument: %s", arg)
	}

	cfg, err := settings("")
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	srv := mcp.NewServer(mcp.ServerConfig{
		Store:   st,
		Version: version,
		Options: geometryOptions(cfg),
	})
	return mcp.ServeStdio(srv)
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/ManuGH/wsguard/internal/config"
	"github.com/ManuGH/wsguard/internal/daemon"
	xglog "github.com/ManuGH/wsguard/internal/log"
)

var (
	version   = "v0.1.0"
	commit    = "none"
	buildDate = "unknown"
)

// envConfigPath names the config file when --config is not given.
const envConfigPath = "WSGUARD_CONFIG"

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "config":
			os.Exit(runConfigCLI(os.Args[2:]))
		case "healthcheck":
			os.Exit(runHealthcheckCLI(os.Args[2:]))
		}
	}

	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	os.Exit(run(resolveConfigPath(*configPath)))
}

func resolveConfigPath(flagValue string) string {
	if p := strings.TrimSpace(flagValue); p != "" {
		return p
	}
	return strings.TrimSpace(os.Getenv(envConfigPath))
}

func run(configPath string) int {
	// Safe defaults until the config is loaded.
	xglog.Configure(xglog.Config{
		Level:   "info",
		Service: "wsguard",
		Version: version,
	})
	logger := xglog.WithComponent("main")

	loader := config.NewLoader(configPath, version)
	cfg, err := loader.Load()
	if err != nil {
		logger.Error().
			Err(err).
			Str(xglog.FieldEvent, "config.load_failed").
			Str("config_path", configPath).
			Msg("failed to load configuration")
		return 1
	}
	xglog.Configure(xglog.Config{Level: cfg.Log.Level})

	source := "env"
	if configPath != "" {
		source = "file"
	}
	logger.Info().
		Str(xglog.FieldEvent, "config.loaded").
		Str("source", source).
		Str("path", configPath).
		Msg("configuration loaded")

	ctx, stop := daemon.WaitForShutdown()
	defer stop()

	rt, err := daemon.Build(ctx, config.NewHolder(cfg, loader), version)
	if err != nil {
		logger.Error().Err(err).Str(xglog.FieldEvent, "daemon.build_failed").Msg("failed to build daemon")
		return 1
	}

	if err := rt.App.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error().Err(err).Str(xglog.FieldEvent, "daemon.failed").Msg("daemon stopped with error")
		return 1
	}
	logger.Info().Str(xglog.FieldEvent, "daemon.stopped").Msg("daemon stopped")
	return 0
}

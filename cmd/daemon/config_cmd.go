// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ManuGH/wsguard/internal/config"
)

const redacted = "***"

func runConfigCLI(args []string) int {
	return configCLI(args, os.Stdout, os.Stderr)
}

func configCLI(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printConfigUsage(stderr)
		return 0
	}

	switch args[0] {
	case "validate":
		return runConfigValidate(args[1:], stdout, stderr)
	case "dump":
		return runConfigDump(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown subcommand: %s\n\n", args[0])
		printConfigUsage(stderr)
		return 2
	}
}

func printConfigUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  wsguard config validate [--file|-f config.yaml]")
	fmt.Fprintln(w, "  wsguard config dump [--file|-f config.yaml] [--format=yaml|json]")
}

func parseFileFlag(name string, args []string, stderr io.Writer, extra func(*flag.FlagSet)) (string, bool) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)

	var file string
	fs.StringVar(&file, "file", "", "path to YAML configuration file")
	fs.StringVar(&file, "f", "", "path to YAML configuration file (shorthand)")
	if extra != nil {
		extra(fs)
	}
	if err := fs.Parse(args); err != nil {
		return "", false
	}
	return resolveConfigPath(file), true
}

func runConfigValidate(args []string, stdout, stderr io.Writer) int {
	configPath, ok := parseFileFlag("wsguard config validate", args, stderr, nil)
	if !ok {
		return 2
	}

	if _, err := config.NewLoader(configPath, version).Load(); err != nil {
		fmt.Fprintf(stderr, "Configuration error in %s:\n  %v\n", displayPath(configPath), err)
		return 1
	}
	fmt.Fprintf(stdout, "%s is valid\n", displayPath(configPath))
	return 0
}

func runConfigDump(args []string, stdout, stderr io.Writer) int {
	var format string
	configPath, ok := parseFileFlag("wsguard config dump", args, stderr, func(fs *flag.FlagSet) {
		fs.StringVar(&format, "format", "yaml", "output format: yaml or json")
	})
	if !ok {
		return 2
	}

	cfg, err := config.NewLoader(configPath, version).Load()
	if err != nil {
		fmt.Fprintf(stderr, "Configuration error in %s:\n  %v\n", displayPath(configPath), err)
		return 1
	}
	redactSecrets(&cfg)

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "yaml", "yml":
		enc := yaml.NewEncoder(stdout)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			fmt.Fprintf(stderr, "Failed to encode YAML: %v\n", err)
			return 1
		}
		_ = enc.Close()
		return 0
	case "json":
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(cfg); err != nil {
			fmt.Fprintf(stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	default:
		fmt.Fprintf(stderr, "Unsupported format: %s (use yaml or json)\n", format)
		return 2
	}
}

func displayPath(p string) string {
	if p == "" {
		return "environment configuration"
	}
	return p
}

func redactSecrets(cfg *config.AppConfig) {
	if cfg.Auth.SecretKey != "" {
		cfg.Auth.SecretKey = redacted
	}
	users := make([]config.UserSeed, len(cfg.Auth.Users))
	for i, u := range cfg.Auth.Users {
		users[i] = config.UserSeed{Name: u.Name, Password: redacted}
	}
	cfg.Auth.Users = users
	if cfg.Session.Redis.Password != "" {
		cfg.Session.Redis.Password = redacted
	}
	if cfg.Server.MetricsToken != "" {
		cfg.Server.MetricsToken = redacted
	}
}

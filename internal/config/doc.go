// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package config loads the daemon configuration.
//
// Precedence is ENV > YAML file > defaults. The file is parsed strictly:
// unknown keys and trailing documents are rejected. A Holder keeps the active
// configuration and reloads it when the file changes.
package config

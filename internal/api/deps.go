// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"errors"

	"github.com/rs/zerolog"

	"github.com/ManuGH/wsguard/internal/config"
	"github.com/ManuGH/wsguard/internal/consumer"
	"github.com/ManuGH/wsguard/internal/session"
	"github.com/ManuGH/wsguard/internal/watchdog"
)

// Deps holds the collaborators of the HTTP server.
type Deps struct {
	Logger   zerolog.Logger
	Version  string
	Config   *config.Holder
	Sessions *session.Service
	// Checker overrides the session checker used by WebSocket watchdogs.
	Checker  watchdog.Checker
	Registry *consumer.Registry
}

// Validate reports missing dependencies.
func (d Deps) Validate() error {
	var errs []error
	if d.Config == nil {
		errs = append(errs, errors.New("api: config holder is required"))
	}
	if d.Sessions == nil {
		errs = append(errs, errors.New("api: session service is required"))
	}
	return errors.Join(errs...)
}

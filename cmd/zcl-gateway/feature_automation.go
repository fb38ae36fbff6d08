//go:build !no_automation

package main

import (
	"fmt"
	"log/slog"

	"zcl-gateway/internal/automation"
	"zcl-gateway/internal/coordinator"
	"zcl-gateway/internal/web"
)

// initAutomation starts the Lua engine as a router listener and returns the
// web options exposing it.
func initAutomation(coord *coordinator.Coordinator, cfg *Config, logger *slog.Logger) (func(), []web.ServerOption, error) {
	scripts, err := automation.NewManager(cfg.Automation.ScriptsDir)
	if err != nil {
		return nil, nil, fmt.Errorf("automation: %w", err)
	}
	engine := automation.NewEngine(coord.Router(), scripts, logger)
	coord.Router().AddListener(engine)
	engine.Start()
	return engine.Stop, []web.ServerOption{web.WithAutomation(engine, scripts)}, nil
}

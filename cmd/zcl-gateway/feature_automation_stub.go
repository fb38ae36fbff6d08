//go:build no_automation

package main

import (
	"log/slog"

	"zcl-gateway/internal/coordinator"
	"zcl-gateway/internal/web"
)

func initAutomation(*coordinator.Coordinator, *Config, *slog.Logger) (func(), []web.ServerOption, error) {
	return func() {}, nil, nil
}

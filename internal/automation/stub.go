//go:build no_automation

package automation

import (
	"log/slog"

	"zcl-gateway/internal/cluster"
)

// Engine is a no-op when automation is compiled out.
type Engine struct{}

func NewEngine(_ Clusters, _ *Manager, _ *slog.Logger) *Engine { return &Engine{} }

func (e *Engine) Start()                                                   {}
func (e *Engine) Stop()                                                    {}
func (e *Engine) Running() []string                                        { return nil }
func (e *Engine) ReloadScript(_ string) error                              { return nil }
func (e *Engine) StopScript(_ string)                                      {}
func (e *Engine) AttributeUpdated(_ *cluster.Cluster, _ cluster.Attribute) {}

func (e *Engine) RunScript(_ string) *RunResult {
	return &RunResult{Error: "automation disabled", Logs: []string{}}
}

func (e *Engine) RunCode(_ string) *RunResult {
	return &RunResult{Error: "automation disabled", Logs: []string{}}
}

// Package automation runs sandboxed Lua scripts that react to attribute updates.
package automation

import "zcl-gateway/internal/cluster"

// Clusters lists the cluster instances scripts can address.
type Clusters interface {
	Clusters() []*cluster.Cluster
}

// ScriptMeta is the JSON header kept on the first line of a script file.
type ScriptMeta struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Enabled     bool   `json:"enabled"`
}

// Script is one automation stored as <id>.lua in the scripts directory.
type Script struct {
	ID   string     `json:"id"`
	Meta ScriptMeta `json:"meta"`
	Code string     `json:"code"`
	Path string     `json:"-"`
}

// RunResult is the outcome of a dry run.
type RunResult struct {
	OK       bool     `json:"ok"`
	Error    string   `json:"error,omitempty"`
	Logs     []string `json:"logs"`
	Duration string   `json:"duration"`
}

package zcl

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// Registry is the set of cluster definitions instances are built from.
// Definitions handed out are copies.
type Registry struct {
	mu     sync.RWMutex
	defs   map[uint16]*ClusterDef
	logger *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		defs:   make(map[uint16]*ClusterDef),
		logger: logger.With("component", "zcl"),
	}
}

// Register stores def, or merges it into the definition already held for
// its ID so that device files can extend standard clusters.
func (r *Registry) Register(def ClusterDef) {
	id := fmt.Sprintf("0x%04X", def.ID)
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.defs[def.ID]; ok {
		added := existing.Merge(&def)
		r.logger.Debug("cluster definition extended", "id", id, "name", existing.Name, "added", added)
		return
	}
	r.defs[def.ID] = def.Clone()
	r.logger.Debug("cluster definition registered", "id", id, "name", def.Name)
}

// Get returns a copy of the definition for id, or nil.
func (r *Registry) Get(id uint16) *ClusterDef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if def, ok := r.defs[id]; ok {
		return def.Clone()
	}
	return nil
}

// Resolve returns the definition for id, or an attribute-less placeholder
// named after the id when the cluster is not registered.
func (r *Registry) Resolve(id uint16) *ClusterDef {
	if def := r.Get(id); def != nil {
		return def
	}
	return &ClusterDef{ID: id, Name: fmt.Sprintf("0x%04X", id)}
}

// All returns copies of every definition ordered by ID.
func (r *Registry) All() []ClusterDef {
	r.mu.RLock()
	out := make([]ClusterDef, 0, len(r.defs))
	for _, def := range r.defs {
		out = append(out, *def.Clone())
	}
	r.mu.RUnlock()
	slices.SortFunc(out, func(a, b ClusterDef) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

package cluster

import (
	"sort"
	"sync"
	"time"

	"zcl-gateway/internal/zcl"
)

// Attribute is a snapshot of one attribute: its definition and last known value.
type Attribute struct {
	ID       uint16
	Name     string
	DataType uint8
	Access   uint8
	// Value is nil until the device has reported or returned the attribute.
	Value      zcl.Value
	LastUpdate time.Time
}

func (a Attribute) HasValue() bool     { return a.Value != nil }
func (a Attribute) IsWritable() bool   { return a.Access&zcl.AccessWrite != 0 }
func (a Attribute) IsReportable() bool { return a.Access&zcl.AccessReport != 0 }

// registry holds the attributes of one cluster instance. The set of IDs is
// fixed at construction; only values change.
type registry struct {
	mu    sync.RWMutex
	attrs map[uint16]*Attribute
}

func newRegistry(def *zcl.ClusterDef) *registry {
	r := &registry{attrs: make(map[uint16]*Attribute, len(def.Attributes))}
	for _, a := range def.Attributes {
		if _, dup := r.attrs[a.ID]; dup {
			continue
		}
		r.attrs[a.ID] = &Attribute{ID: a.ID, Name: a.Name, DataType: a.Type, Access: a.Access}
	}
	return r
}

func (r *registry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.attrs)
}

func (r *registry) get(id uint16) (Attribute, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.attrs[id]
	if !ok {
		return Attribute{}, false
	}
	return *a, true
}

func (r *registry) all() []Attribute {
	r.mu.RLock()
	out := make([]Attribute, 0, len(r.attrs))
	for _, a := range r.attrs {
		out = append(out, *a)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// update stores v for id and returns the new snapshot. Unknown IDs are ignored.
func (r *registry) update(id uint16, v zcl.Value, at time.Time) (Attribute, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.attrs[id]
	if !ok {
		return Attribute{}, false
	}
	a.Value = v
	a.LastUpdate = at
	return *a, true
}

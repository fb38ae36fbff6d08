package cluster

import (
	"reflect"
	"sync"
)

// AttributeListener is told about every attribute update applied to a cluster.
// Implementations must be comparable (usually pointers) so registration can
// be deduplicated.
type AttributeListener interface {
	AttributeUpdated(c *Cluster, attr Attribute)
}

// listenerSet keeps listeners in registration order without duplicates.
type listenerSet struct {
	mu    sync.Mutex
	items []AttributeListener
}

func (s *listenerSet) add(l AttributeListener) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexOf(l) >= 0 {
		return false
	}
	s.items = append(s.items, l)
	return true
}

func (s *listenerSet) remove(l AttributeListener) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(l)
	if i < 0 {
		return false
	}
	s.items = append(s.items[:i:i], s.items[i+1:]...)
	return true
}

func (s *listenerSet) indexOf(l AttributeListener) int {
	if l == nil || !reflect.TypeOf(l).Comparable() {
		return -1
	}
	for i, existing := range s.items {
		if existing == l {
			return i
		}
	}
	return -1
}

func (s *listenerSet) snapshot() []AttributeListener {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]AttributeListener, len(s.items))
	copy(out, s.items)
	return out
}

// AddAttributeListener registers l. Registering the same listener again has no effect.
func (c *Cluster) AddAttributeListener(l AttributeListener) {
	if l == nil {
		return
	}
	c.listeners.add(l)
}

// RemoveAttributeListener unregisters l. Unknown listeners are ignored.
func (c *Cluster) RemoveAttributeListener(l AttributeListener) {
	c.listeners.remove(l)
}

// notify hands one task per listener to the executor, in registration order,
// keyed by the listener so each listener sees updates in order.
func (c *Cluster) notify(attr Attribute) {
	for _, l := range c.listeners.snapshot() {
		c.exec.Execute(l, func() { l.AttributeUpdated(c, attr) })
	}
}

// Package store persists the node directory.
package store

import (
	"errors"

	"zcl-gateway/internal/transport"
	"zcl-gateway/internal/zigbee"
)

// ErrNotFound is returned when a requested entity does not exist in the store.
var ErrNotFound = errors.New("not found")

// Store defines the persistence interface.
type Store interface {
	SaveNode(node *Node) error
	GetNode(index int) (*Node, error)
	NodeByIEEE(addr zigbee.IEEEAddress) (*Node, error)
	DeleteNode(index int) error
	// ListNodes returns every node ordered by index.
	ListNodes() ([]*Node, error)

	// UpdateNode atomically reads, modifies, and saves a node in a single
	// transaction. Returns ErrNotFound if the node does not exist.
	UpdateNode(index int, fn func(node *Node) error) error

	// Node serves the transport's directory lookups.
	Node(index int) (transport.Node, error)

	Close() error
}

// Package transport defines the boundary between the cluster layer and the
// network: command dispatch, response correlation and the node directory.
package transport

import (
	"context"
	"errors"

	"zcl-gateway/internal/zdo"
	"zcl-gateway/internal/zigbee"
)

// ErrNoNode is returned by Node when the directory has no node at the index.
var ErrNoNode = errors.New("node not found")

// Command is anything the transport can address and correlate.
type Command interface {
	ClusterID() uint16
	TransactionID() uint8
	SetTransactionID(tsn uint8)
}

// Node is a directory entry. Index 0 is the local node.
type Node struct {
	Index          int
	IEEEAddress    zigbee.IEEEAddress
	NetworkAddress uint16
}

// Transport sends commands and resolves their responses.
type Transport interface {
	// Unicast sends cmd and returns a future that resolves with the first
	// response accepted by matcher. Send failures resolve the future as failed.
	Unicast(ctx context.Context, cmd Command, matcher ResponseMatcher) *Future
	// SendCommand sends cmd without waiting for a response.
	SendCommand(ctx context.Context, cmd Command) error
	// Node returns the directory entry at index.
	Node(index int) (Node, error)
}

// ResponseMatcher decides whether response answers request.
type ResponseMatcher interface {
	IsMatch(request, response Command) bool
}

// MatcherFunc adapts a function to ResponseMatcher.
type MatcherFunc func(request, response Command) bool

func (f MatcherFunc) IsMatch(request, response Command) bool { return f(request, response) }

// TransactionMatcher accepts a response with the request's transaction number,
// carried on the request's cluster or, for ZDO requests, its response cluster.
var TransactionMatcher ResponseMatcher = MatcherFunc(func(request, response Command) bool {
	if request.TransactionID() != response.TransactionID() {
		return false
	}
	return response.ClusterID() == request.ClusterID() || zdo.IsResponseTo(request.ClusterID(), response.ClusterID())
})

// Package cluster models one ZCL cluster on a remote endpoint: its attribute
// values, the commands that read and configure them, and the listeners told
// when they change.
package cluster

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"zcl-gateway/internal/transport"
	"zcl-gateway/internal/zcl"
	"zcl-gateway/internal/zigbee"
)

// ErrUnknownAttribute is returned when an attribute ID is not defined for the cluster.
var ErrUnknownAttribute = errors.New("unknown attribute")

// LocalEndpoint is the endpoint on the local node that bindings made by BindLocal target.
const LocalEndpoint uint8 = 1

// Endpoint identifies the remote endpoint a cluster instance belongs to.
type Endpoint struct {
	IEEEAddress zigbee.IEEEAddress
	Address     zigbee.EndpointAddress
}

// Executor runs notification tasks away from the caller. Tasks with the same
// key, the listener, must run in submission order; tasks with different keys
// must not wait on each other, and no accepted task may be dropped.
type Executor interface {
	Execute(key any, task func())
}

// Cluster is one cluster on one remote endpoint. It is safe for concurrent use.
type Cluster struct {
	transport transport.Transport
	endpoint  Endpoint
	def       *zcl.ClusterDef
	client    atomic.Bool
	attrs     *registry
	listeners listenerSet
	exec      Executor
	logger    *slog.Logger
}

// New creates a server-role cluster instance for def on ep. Production
// callers pass a *notify.Pool as exec. A nil exec runs listeners on the
// ingesting goroutine, which is only meant for tests that want deterministic
// delivery.
func New(t transport.Transport, ep Endpoint, def *zcl.ClusterDef, exec Executor, logger *slog.Logger) *Cluster {
	if exec == nil {
		exec = inlineExecutor{logger: logger}
	}
	c := &Cluster{
		transport: t,
		endpoint:  ep,
		def:       def,
		attrs:     newRegistry(def),
		exec:      exec,
		logger: logger.With(
			"component", "cluster",
			"cluster", fmt.Sprintf("0x%04X", def.ID),
			"address", ep.Address.String(),
		),
	}
	if c.attrs.len() == 0 {
		c.logger.Debug("cluster has no attribute definitions", "name", def.Name)
	}
	return c
}

func (c *Cluster) ID() uint16                      { return c.def.ID }
func (c *Cluster) Name() string                    { return c.def.Name }
func (c *Cluster) Endpoint() Endpoint              { return c.endpoint }
func (c *Cluster) Address() zigbee.EndpointAddress { return c.endpoint.Address }

// SetServer marks the instance as the server side of the cluster (the default).
func (c *Cluster) SetServer() { c.client.Store(false) }

// SetClient marks the instance as the client side; commands it sends are
// flagged server-to-client.
func (c *Cluster) SetClient() { c.client.Store(true) }

func (c *Cluster) IsServer() bool { return !c.client.Load() }
func (c *Cluster) IsClient() bool { return c.client.Load() }

// Attribute returns a snapshot of the attribute with id.
func (c *Cluster) Attribute(id uint16) (Attribute, bool) {
	return c.attrs.get(id)
}

// Attributes returns snapshots of every defined attribute ordered by ID,
// whether or not the device implements them.
func (c *Cluster) Attributes() []Attribute {
	return c.attrs.all()
}

// Command looks up a cluster-specific command received by this side of the cluster.
func (c *Cluster) Command(id uint8) (zcl.CommandDef, bool) {
	return c.findCommand(id, !c.IsClient())
}

// Response looks up a cluster-specific command generated by this side of the cluster.
func (c *Cluster) Response(id uint8) (zcl.CommandDef, bool) {
	return c.findCommand(id, c.IsClient())
}

func (c *Cluster) findCommand(id uint8, toServer bool) (zcl.CommandDef, bool) {
	if cmd := c.def.FindCommand(id, zcl.ReceivedBy(toServer)); cmd != nil {
		return *cmd, true
	}
	return zcl.CommandDef{}, false
}

type inlineExecutor struct {
	logger *slog.Logger
}

func (e inlineExecutor) Execute(_ any, task func()) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("attribute listener panic", "panic", r)
		}
	}()
	task()
}

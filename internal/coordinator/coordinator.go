// Package coordinator builds cluster instances for the nodes in the
// directory and provisions them from device definitions.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"zcl-gateway/internal/cluster"
	"zcl-gateway/internal/store"
	"zcl-gateway/internal/transport"
	"zcl-gateway/internal/zcl"
	"zcl-gateway/internal/zigbee"
)

var (
	errNoResponse = errors.New("no response")
	errRejected   = errors.New("rejected")
)

// Coordinator owns the cluster instances of every known node.
type Coordinator struct {
	transport transport.Transport
	store     store.Store
	registry  *zcl.Registry
	deviceDB  *DeviceDB
	router    *cluster.Router
	exec      cluster.Executor
	logger    *slog.Logger

	mu       sync.Mutex
	onRemove []func(store.Node)
}

// New creates a coordinator. A nil deviceDB disables provisioning profiles.
// A nil exec delivers attribute notifications synchronously and is only
// meant for tests.
func New(t transport.Transport, st store.Store, registry *zcl.Registry, deviceDB *DeviceDB, exec cluster.Executor, logger *slog.Logger) *Coordinator {
	if deviceDB == nil {
		deviceDB = NewDeviceDB()
	}
	return &Coordinator{
		transport: t,
		store:     st,
		registry:  registry,
		deviceDB:  deviceDB,
		router:    cluster.NewRouter(logger),
		exec:      exec,
		logger:    logger.With("component", "coordinator"),
	}
}

func (c *Coordinator) Router() *cluster.Router { return c.router }
func (c *Coordinator) Store() store.Store      { return c.store }
func (c *Coordinator) Registry() *zcl.Registry { return c.registry }
func (c *Coordinator) DeviceDB() *DeviceDB     { return c.deviceDB }

// HandleCommand passes inbound commands to the router.
func (c *Coordinator) HandleCommand(ctx context.Context, cmd transport.Command) {
	c.router.HandleCommand(ctx, cmd)
}

// OnRemove registers fn to run after a node is removed.
func (c *Coordinator) OnRemove(fn func(store.Node)) {
	c.mu.Lock()
	c.onRemove = append(c.onRemove, fn)
	c.mu.Unlock()
}

// SeedNodes saves nodes that are not yet in the directory. Existing entries
// are left untouched.
func (c *Coordinator) SeedNodes(nodes []store.Node) error {
	for i := range nodes {
		n := nodes[i]
		if _, err := c.store.GetNode(n.Index); err == nil {
			continue
		} else if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("seed node %d: %w", n.Index, err)
		}
		if err := c.store.SaveNode(&n); err != nil {
			return fmt.Errorf("seed node %d: %w", n.Index, err)
		}
		c.logger.Info("seeded node", "index", n.Index, "ieee", n.IEEEAddress.String(),
			"nwk", fmt.Sprintf("0x%04X", n.NetworkAddress))
	}
	return nil
}

// Start creates cluster instances for every remote node in the directory.
func (c *Coordinator) Start(ctx context.Context) error {
	nodes, err := c.store.ListNodes()
	if err != nil {
		return fmt.Errorf("list nodes: %w", err)
	}
	if len(nodes) == 0 || nodes[0].Index != 0 {
		c.logger.Warn("directory has no local node at index 0, local bindings will fail")
	}
	for _, n := range nodes {
		if n.Index == 0 {
			continue
		}
		c.AddNode(n)
	}
	c.logger.Info("coordinator started", "nodes", len(nodes), "clusters", len(c.router.Clusters()))
	return ctx.Err()
}

// AddNode registers a server-role instance for every input cluster and a
// client-role instance for every output cluster of node's endpoints.
func (c *Coordinator) AddNode(node *store.Node) []*cluster.Cluster {
	var out []*cluster.Cluster
	for _, ep := range node.Endpoints {
		addr := cluster.Endpoint{IEEEAddress: node.IEEEAddress, Address: endpointAddress(node, ep.ID)}

		for _, id := range ep.InClusters {
			cl := cluster.New(c.transport, addr, c.registry.Resolve(id), c.exec, c.logger)
			c.router.Add(cl)
			out = append(out, cl)
		}
		for _, id := range ep.OutClusters {
			cl := cluster.New(c.transport, addr, c.registry.Resolve(id), c.exec, c.logger)
			cl.SetClient()
			c.router.Add(cl)
			out = append(out, cl)
		}
	}
	c.logger.Debug("node clusters created", "index", node.Index, "ieee", node.IEEEAddress.String(), "clusters", len(out))
	return out
}

// nodeClusters returns the instances registered for node.
func (c *Coordinator) nodeClusters(node *store.Node) []*cluster.Cluster {
	var out []*cluster.Cluster
	for _, cl := range c.router.Clusters() {
		if cl.Address().NetworkAddress == node.NetworkAddress {
			out = append(out, cl)
		}
	}
	return out
}

// Provision applies the device definition for node: it binds the listed
// clusters to the local node and configures reporting, waiting for each
// answer. Nodes without a definition are left alone.
func (c *Coordinator) Provision(ctx context.Context, index int) error {
	node, err := c.store.GetNode(index)
	if err != nil {
		return err
	}
	def := c.deviceDB.Lookup(node.Manufacturer, node.Model)
	if def == nil {
		c.logger.Info("no device definition", "index", index, "manufacturer", node.Manufacturer, "model", node.Model)
		return nil
	}

	var errs []error
	for _, ep := range node.Endpoints {
		for _, id := range def.Bind {
			cl := c.instance(node, ep.ID, id)
			if cl == nil {
				continue
			}
			errs = append(errs, c.await(ctx, cl.BindLocal(ctx), "bind", cl, 0))
		}
		for _, r := range def.Reporting {
			cl, ok := c.router.Cluster(endpointAddress(node, ep.ID), r.Cluster, false)
			if !ok {
				continue
			}
			attr, ok := cl.Attribute(r.Attribute)
			if !ok {
				errs = append(errs, fmt.Errorf("reporting 0x%04X/0x%04X: %w", r.Cluster, r.Attribute, cluster.ErrUnknownAttribute))
				continue
			}
			var change any
			if zcl.IsAnalog(attr.DataType) {
				change = r.Change
			}
			fut, err := cl.SetReporting(ctx, r.Attribute, r.Min, r.Max, change)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			errs = append(errs, c.await(ctx, fut, "configure reporting", cl, r.Attribute))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("provision node %d: %w", index, err)
	}
	c.logger.Info("node provisioned", "index", index, "model", node.Model)
	return c.store.UpdateNode(index, func(n *store.Node) error {
		n.LastSeen = time.Now()
		return nil
	})
}

func endpointAddress(node *store.Node, ep uint8) zigbee.EndpointAddress {
	return zigbee.EndpointAddress{NetworkAddress: node.NetworkAddress, Endpoint: ep}
}

// instance prefers the server-role instance of cluster id on endpoint ep.
func (c *Coordinator) instance(node *store.Node, ep uint8, id uint16) *cluster.Cluster {
	addr := endpointAddress(node, ep)
	if cl, ok := c.router.Cluster(addr, id, false); ok {
		return cl
	}
	if cl, ok := c.router.Cluster(addr, id, true); ok {
		return cl
	}
	return nil
}

func (c *Coordinator) await(ctx context.Context, fut *transport.Future, op string, cl *cluster.Cluster, attr uint16) error {
	res, err := fut.Get(ctx)
	switch {
	case err != nil:
	case res.IsTimeout():
		err = errNoResponse
	case !res.IsSuccess():
		err = errRejected
	}
	if err != nil {
		c.logger.Warn(op+" failed", "address", cl.Address().String(),
			"cluster", fmt.Sprintf("0x%04X", cl.ID()), "attr", fmt.Sprintf("0x%04X", attr), "err", err)
		return fmt.Errorf("%s %s cluster 0x%04X: %w", op, cl.Address(), cl.ID(), err)
	}
	c.logger.Info(op+" done", "address", cl.Address().String(), "cluster", fmt.Sprintf("0x%04X", cl.ID()))
	return nil
}

// Refresh reads every readable attribute of node's server clusters. Values
// arrive through the router like any other read response.
func (c *Coordinator) Refresh(ctx context.Context, index int) error {
	node, err := c.store.GetNode(index)
	if err != nil {
		return err
	}
	var errs []error
	for _, cl := range c.nodeClusters(node) {
		if cl.IsClient() {
			continue
		}
		for _, a := range cl.Attributes() {
			if a.Access&zcl.AccessRead == 0 {
				continue
			}
			res, err := cl.Read(ctx, a.ID).Get(ctx)
			if err != nil {
				errs = append(errs, err)
				if ctx.Err() != nil {
					return errors.Join(errs...)
				}
				continue
			}
			if res.IsTimeout() {
				c.logger.Debug("refresh read timed out", "address", cl.Address().String(), "attr", a.Name)
			}
		}
	}
	return errors.Join(errs...)
}

// RemoveNode deletes node index from the directory and drops its clusters.
func (c *Coordinator) RemoveNode(index int) error {
	if index == 0 {
		return fmt.Errorf("remove node: the local node cannot be removed")
	}
	node, err := c.store.GetNode(index)
	if err != nil {
		return err
	}
	removed := c.router.Remove(node.NetworkAddress)
	if err := c.store.DeleteNode(index); err != nil {
		return fmt.Errorf("delete node %d: %w", index, err)
	}
	c.logger.Info("node removed", "index", index, "ieee", node.IEEEAddress.String(), "clusters", removed)

	c.mu.Lock()
	hooks := append([]func(store.Node){}, c.onRemove...)
	c.mu.Unlock()
	for _, fn := range hooks {
		fn(*node)
	}
	return nil
}

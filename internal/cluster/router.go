package cluster

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"zcl-gateway/internal/transport"
	"zcl-gateway/internal/zcl"
	"zcl-gateway/internal/zigbee"
)

type routeKey struct {
	addr    zigbee.EndpointAddress
	cluster uint16
	client  bool
}

// Router delivers inbound ZCL commands to the cluster instance they belong to.
type Router struct {
	mu        sync.RWMutex
	clusters  map[routeKey]*Cluster
	listeners []AttributeListener
	logger    *slog.Logger
}

func NewRouter(logger *slog.Logger) *Router {
	return &Router{
		clusters: make(map[routeKey]*Cluster),
		logger:   logger.With("component", "router"),
	}
}

// Add registers c under its address, cluster ID and role. The role must be
// set before Add. Listeners added to the router are attached to c.
func (r *Router) Add(c *Cluster) {
	r.mu.Lock()
	r.clusters[routeKey{c.Address(), c.ID(), c.IsClient()}] = c
	listeners := append([]AttributeListener(nil), r.listeners...)
	r.mu.Unlock()
	for _, l := range listeners {
		c.AddAttributeListener(l)
	}
}

// Remove drops every instance on the node with network address nwk and
// reports how many were removed.
func (r *Router) Remove(nwk uint16) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for k := range r.clusters {
		if k.addr.NetworkAddress == nwk {
			delete(r.clusters, k)
			n++
		}
	}
	return n
}

// Cluster returns the instance for addr and cluster id in the given role.
func (r *Router) Cluster(addr zigbee.EndpointAddress, id uint16, client bool) (*Cluster, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clusters[routeKey{addr, id, client}]
	return c, ok
}

// Clusters returns every registered instance ordered by address, cluster and role.
func (r *Router) Clusters() []*Cluster {
	r.mu.RLock()
	out := make([]*Cluster, 0, len(r.clusters))
	for _, c := range r.clusters {
		out = append(out, c)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Address(), out[j].Address()
		if a.NetworkAddress != b.NetworkAddress {
			return a.NetworkAddress < b.NetworkAddress
		}
		if a.Endpoint != b.Endpoint {
			return a.Endpoint < b.Endpoint
		}
		if out[i].ID() != out[j].ID() {
			return out[i].ID() < out[j].ID()
		}
		return !out[i].IsClient() && out[j].IsClient()
	})
	return out
}

// AddListener attaches l to every current and future cluster.
func (r *Router) AddListener(l AttributeListener) {
	r.mu.Lock()
	r.listeners = append(r.listeners, l)
	clusters := make([]*Cluster, 0, len(r.clusters))
	for _, c := range r.clusters {
		clusters = append(clusters, c)
	}
	r.mu.Unlock()
	for _, c := range clusters {
		c.AddAttributeListener(l)
	}
}

// HandleCommand routes an inbound command. Commands sent by a remote server
// go to the server-role instance and the rest to the client-role one, falling
// back to the other role when only that one exists.
func (r *Router) HandleCommand(ctx context.Context, cmd transport.Command) {
	zc, ok := cmd.(*zcl.Command)
	if !ok {
		return
	}
	fromServer := zc.Direction == zcl.ServerToClient
	c, ok := r.Cluster(zc.Source, zc.Cluster, !fromServer)
	if !ok {
		c, ok = r.Cluster(zc.Source, zc.Cluster, fromServer)
	}
	if !ok {
		r.logger.Debug("no cluster for command",
			"source", zc.Source.String(),
			"cluster", fmt.Sprintf("0x%04X", zc.Cluster),
			"command", fmt.Sprintf("0x%02X", zc.CommandID()))
		return
	}

	switch p := zc.Payload.(type) {
	case *zcl.ReportAttributes:
		c.HandleAttributeReport(p.Reports)
		if !zc.DisableDefaultResponse {
			c.SendDefaultResponse(ctx, zc.CommandID(), zcl.ZCLStatusSuccess)
		}
	case *zcl.ReadAttributesResponse:
		if err := c.HandleAttributeStatus(p.Records); err != nil {
			r.logger.Warn("read attributes response", "source", zc.Source.String(), "err", err)
		}
	default:
		r.logger.Debug("unhandled command",
			"source", zc.Source.String(),
			"cluster", fmt.Sprintf("0x%04X", zc.Cluster),
			"command", fmt.Sprintf("0x%02X", zc.CommandID()),
			"global", zc.Global())
	}
}

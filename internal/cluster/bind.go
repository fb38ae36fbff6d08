package cluster

import (
	"context"
	"fmt"

	"zcl-gateway/internal/transport"
	"zcl-gateway/internal/zdo"
	"zcl-gateway/internal/zigbee"
)

func (c *Cluster) bindRequest(addr zigbee.IEEEAddress, endpointID uint8) zdo.BindRequest {
	return zdo.BindRequest{
		Target:      c.endpoint.Address.NetworkAddress,
		SrcAddress:  c.endpoint.IEEEAddress,
		SrcEndpoint: c.endpoint.Address.Endpoint,
		BindCluster: c.def.ID,
		DstAddrMode: zigbee.AddrModeIEEE,
		DstAddress:  addr,
		DstEndpoint: endpointID,
	}
}

// Bind asks the device to send this cluster's reports and commands to endpointID on addr.
func (c *Cluster) Bind(ctx context.Context, addr zigbee.IEEEAddress, endpointID uint8) *transport.Future {
	req := c.bindRequest(addr, endpointID)
	c.logger.Debug("bind", "dst", addr.String(), "dst_ep", endpointID)
	return c.transport.Unicast(ctx, &req, transport.TransactionMatcher)
}

// Unbind removes a binding created by Bind.
func (c *Cluster) Unbind(ctx context.Context, addr zigbee.IEEEAddress, endpointID uint8) *transport.Future {
	req := zdo.UnbindRequest{BindRequest: c.bindRequest(addr, endpointID)}
	c.logger.Debug("unbind", "dst", addr.String(), "dst_ep", endpointID)
	return c.transport.Unicast(ctx, &req, transport.TransactionMatcher)
}

// BindLocal binds the cluster to LocalEndpoint on directory node 0.
func (c *Cluster) BindLocal(ctx context.Context) *transport.Future {
	node, err := c.transport.Node(0)
	if err != nil {
		return transport.Failed(fmt.Errorf("bind to local node: %w", err))
	}
	return c.Bind(ctx, node.IEEEAddress, LocalEndpoint)
}

// UnbindLocal removes the binding made by BindLocal.
func (c *Cluster) UnbindLocal(ctx context.Context) *transport.Future {
	node, err := c.transport.Node(0)
	if err != nil {
		return transport.Failed(fmt.Errorf("unbind from local node: %w", err))
	}
	return c.Unbind(ctx, node.IEEEAddress, LocalEndpoint)
}

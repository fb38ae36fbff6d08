package cluster

import (
	"context"
	"fmt"

	"zcl-gateway/internal/transport"
	"zcl-gateway/internal/zcl"
)

// newCommand builds a command addressed to this cluster on the remote endpoint.
func (c *Cluster) newCommand(p zcl.Payload) *zcl.Command {
	cmd := zcl.NewCommand(c.def.ID, p)
	cmd.Destination = c.endpoint.Address
	return cmd
}

// send stamps the destination and role direction on cmd and unicasts it.
// The returned future is the transport's own.
func (c *Cluster) send(ctx context.Context, cmd *zcl.Command) *transport.Future {
	cmd.Destination = c.endpoint.Address
	if c.IsClient() {
		cmd.Direction = zcl.ServerToClient
	}
	c.logger.Debug("sending command",
		"command", fmt.Sprintf("0x%02X", cmd.CommandID()),
		"global", cmd.Global(),
		"direction", cmd.Direction.String())
	return c.transport.Unicast(ctx, cmd, transport.TransactionMatcher)
}

// Read requests the current value of attribute id. The ID need not be defined
// for the cluster.
func (c *Cluster) Read(ctx context.Context, id uint16) *transport.Future {
	return c.send(ctx, c.newCommand(&zcl.ReadAttributes{Identifiers: []uint16{id}}))
}

// Write sets attribute id to value, tagged with the attribute's declared data type.
func (c *Cluster) Write(ctx context.Context, id uint16, value any) (*transport.Future, error) {
	attr, ok := c.attrs.get(id)
	if !ok {
		return nil, fmt.Errorf("write attribute 0x%04X: %w", id, ErrUnknownAttribute)
	}
	v, err := zcl.NewValue(attr.DataType, value)
	if err != nil {
		return nil, fmt.Errorf("write attribute %s: %w", attr.Name, err)
	}
	return c.send(ctx, c.newCommand(&zcl.WriteAttributes{
		Records: []zcl.WriteAttributeRecord{{
			AttributeIdentifier: id,
			AttributeDataType:   attr.DataType,
			AttributeValue:      v,
		}},
	})), nil
}

// SetReporting asks the device to report attribute id at least every max
// seconds and no more than every min seconds. reportableChange is sent as
// given, converted to the attribute's type whatever that type is; pass nil to
// omit it.
// min 0 means no minimum; max 0xFFFF stops reporting.
func (c *Cluster) SetReporting(ctx context.Context, id uint16, min, max uint16, reportableChange any) (*transport.Future, error) {
	attr, ok := c.attrs.get(id)
	if !ok {
		return nil, fmt.Errorf("configure reporting 0x%04X: %w", id, ErrUnknownAttribute)
	}
	var change zcl.Value
	if reportableChange != nil {
		v, err := zcl.NewValue(attr.DataType, reportableChange)
		if err != nil {
			return nil, fmt.Errorf("configure reporting %s: reportable change: %w", attr.Name, err)
		}
		change = v
	}
	return c.send(ctx, c.newCommand(&zcl.ConfigureReporting{
		Records: []zcl.AttributeReportingConfigurationRecord{{
			Direction:                zcl.ReportingDirectionSend,
			AttributeIdentifier:      id,
			AttributeDataType:        attr.DataType,
			MinimumReportingInterval: min,
			MaximumReportingInterval: max,
			ReportableChange:         change,
			TimeoutPeriod:            0,
		}},
	})), nil
}

// GetReporting reads the device's reporting configuration for attribute id.
func (c *Cluster) GetReporting(ctx context.Context, id uint16) *transport.Future {
	return c.send(ctx, c.newCommand(&zcl.ReadReportingConfiguration{
		Records: []zcl.AttributeRecord{{
			Direction:           zcl.ReportingDirectionSend,
			AttributeIdentifier: id,
		}},
	}))
}

// DiscoverAttributes asks for the first 40 attributes the device implements.
// Devices with more attributes are not paged through.
func (c *Cluster) DiscoverAttributes(ctx context.Context) *transport.Future {
	return c.send(ctx, c.newCommand(&zcl.DiscoverAttributes{
		StartAttributeIdentifier:    zcl.DiscoveryStart,
		MaximumAttributeIdentifiers: zcl.DiscoveryMax,
	}))
}

// DiscoverCommandsReceived asks for the first 40 cluster commands the device accepts.
func (c *Cluster) DiscoverCommandsReceived(ctx context.Context) *transport.Future {
	return c.send(ctx, c.newCommand(&zcl.DiscoverCommandsReceived{
		StartCommandIdentifier:    zcl.DiscoveryStart,
		MaximumCommandIdentifiers: zcl.DiscoveryMax,
	}))
}

// DiscoverCommandsGenerated asks for the first 40 cluster commands the device sends.
func (c *Cluster) DiscoverCommandsGenerated(ctx context.Context) *transport.Future {
	return c.send(ctx, c.newCommand(&zcl.DiscoverCommandsGenerated{
		StartCommandIdentifier:    zcl.DiscoveryStart,
		MaximumCommandIdentifiers: zcl.DiscoveryMax,
	}))
}

// Invoke sends cluster-specific command commandID with an encoded body.
func (c *Cluster) Invoke(ctx context.Context, commandID uint8, data []byte) *transport.Future {
	if def, ok := c.Command(commandID); ok {
		c.logger.Debug("invoking cluster command", "name", def.Name)
	}
	return c.send(ctx, c.newCommand(&zcl.ClusterCommand{ID: commandID, Data: data}))
}

// SendDefaultResponse acknowledges commandID with status. Send failures are
// logged and not returned.
func (c *Cluster) SendDefaultResponse(ctx context.Context, commandID uint8, status uint8) {
	cmd := c.newCommand(&zcl.DefaultResponse{CommandIdentifier: commandID, Status: status})
	cmd.DisableDefaultResponse = true
	if c.IsClient() {
		cmd.Direction = zcl.ServerToClient
	}
	if err := c.transport.SendCommand(ctx, cmd); err != nil {
		c.logger.Warn("default response failed",
			"command", fmt.Sprintf("0x%02X", commandID),
			"status", zcl.StatusName(status),
			"err", err)
	}
}

// ReadSync reads attribute id and waits for the answer. It returns false when
// the exchange fails for any reason, including ctx ending, a transport error,
// no response, or a non-success status in the first record.
func (c *Cluster) ReadSync(ctx context.Context, id uint16) (zcl.Value, bool) {
	res, err := c.Read(ctx, id).Get(ctx)
	if err != nil {
		c.logger.Debug("read sync failed", "attr", fmt.Sprintf("0x%04X", id), "err", err)
		return nil, false
	}
	if !res.IsSuccess() {
		return nil, false
	}
	cmd, ok := res.Response.(*zcl.Command)
	if !ok {
		return nil, false
	}
	resp, ok := cmd.Payload.(*zcl.ReadAttributesResponse)
	if !ok || len(resp.Records) == 0 {
		return nil, false
	}
	rec := resp.Records[0]
	if rec.Status != zcl.ZCLStatusSuccess || rec.AttributeValue == nil {
		return nil, false
	}
	return rec.AttributeValue, true
}

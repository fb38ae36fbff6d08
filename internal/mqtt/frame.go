package mqtt

import (
	"errors"
	"fmt"

	"zcl-gateway/internal/transport"
	"zcl-gateway/internal/zcl"
	"zcl-gateway/internal/zdo"
	"zcl-gateway/internal/zigbee"
)

// ErrUnsupportedCommand is returned for commands that have no frame mapping.
var ErrUnsupportedCommand = errors.New("unsupported command")

// Frame kinds.
const (
	KindZCL = "zcl"
	KindZDO = "zdo"
)

// Frame is one command exchanged with the radio bridge. Network and Endpoint
// name the remote side: the destination on tx and the source on rx.
type Frame struct {
	ID                     string     `json:"id,omitempty" cbor:"1,keyasint,omitempty"`
	Kind                   string     `json:"kind" cbor:"2,keyasint"`
	TSN                    uint8      `json:"tsn" cbor:"3,keyasint"`
	Network                uint16     `json:"nwk" cbor:"4,keyasint"`
	Endpoint               uint8      `json:"ep,omitempty" cbor:"5,keyasint,omitempty"`
	Cluster                uint16     `json:"cluster" cbor:"6,keyasint"`
	Command                uint8      `json:"cmd" cbor:"7,keyasint"`
	Specific               bool       `json:"specific,omitempty" cbor:"8,keyasint,omitempty"`
	Direction              uint8      `json:"dir,omitempty" cbor:"9,keyasint,omitempty"`
	DisableDefaultResponse bool       `json:"ddr,omitempty" cbor:"10,keyasint,omitempty"`
	Records                []Record   `json:"attrs,omitempty" cbor:"11,keyasint,omitempty"`
	Start                  uint16     `json:"start,omitempty" cbor:"12,keyasint,omitempty"`
	Max                    uint8      `json:"max,omitempty" cbor:"13,keyasint,omitempty"`
	Status                 uint8      `json:"status,omitempty" cbor:"14,keyasint,omitempty"`
	Ack                    uint8      `json:"ack,omitempty" cbor:"15,keyasint,omitempty"`
	Complete               bool       `json:"complete,omitempty" cbor:"16,keyasint,omitempty"`
	Commands               []uint16   `json:"commands,omitempty" cbor:"17,keyasint,omitempty"`
	Data                   []byte     `json:"data,omitempty" cbor:"18,keyasint,omitempty"`
	Bind                   *BindFrame `json:"bind,omitempty" cbor:"19,keyasint,omitempty"`
}

// Record carries one attribute entry. Values are ZCL-encoded.
type Record struct {
	ID        uint16 `json:"id" cbor:"1,keyasint"`
	Status    uint8  `json:"status,omitempty" cbor:"2,keyasint,omitempty"`
	Type      uint8  `json:"type,omitempty" cbor:"3,keyasint,omitempty"`
	Value     []byte `json:"value,omitempty" cbor:"4,keyasint,omitempty"`
	Direction uint8  `json:"dir,omitempty" cbor:"5,keyasint,omitempty"`
	Min       uint16 `json:"min,omitempty" cbor:"6,keyasint,omitempty"`
	Max       uint16 `json:"max,omitempty" cbor:"7,keyasint,omitempty"`
	Change    []byte `json:"change,omitempty" cbor:"8,keyasint,omitempty"`
	Timeout   uint16 `json:"timeout,omitempty" cbor:"9,keyasint,omitempty"`
}

// BindFrame carries ZDO bind and unbind request fields.
type BindFrame struct {
	SrcAddress  zigbee.IEEEAddress `json:"src" cbor:"1,keyasint"`
	SrcEndpoint uint8              `json:"src_ep" cbor:"2,keyasint"`
	Cluster     uint16             `json:"cluster" cbor:"3,keyasint"`
	DstAddrMode uint8              `json:"dst_mode" cbor:"4,keyasint"`
	DstAddress  zigbee.IEEEAddress `json:"dst" cbor:"5,keyasint"`
	DstEndpoint uint8              `json:"dst_ep" cbor:"6,keyasint"`
}

// encodeFrame converts an outgoing command to its frame.
func encodeFrame(cmd transport.Command) (*Frame, error) {
	switch c := cmd.(type) {
	case *zcl.Command:
		return encodeZCL(c)
	case *zdo.BindRequest:
		return encodeBind(c, zdo.BindRequestCluster), nil
	case *zdo.UnbindRequest:
		return encodeBind(&c.BindRequest, zdo.UnbindRequestCluster), nil
	case *zdo.BindResponse:
		return &Frame{Kind: KindZDO, TSN: c.TSN, Network: c.Source, Cluster: c.Cluster, Status: c.Status}, nil
	default:
		return nil, fmt.Errorf("%T: %w", cmd, ErrUnsupportedCommand)
	}
}

func encodeBind(r *zdo.BindRequest, cluster uint16) *Frame {
	return &Frame{
		Kind:    KindZDO,
		TSN:     r.TSN,
		Network: r.Target,
		Cluster: cluster,
		Bind: &BindFrame{
			SrcAddress:  r.SrcAddress,
			SrcEndpoint: r.SrcEndpoint,
			Cluster:     r.BindCluster,
			DstAddrMode: r.DstAddrMode,
			DstAddress:  r.DstAddress,
			DstEndpoint: r.DstEndpoint,
		},
	}
}

func encodeZCL(c *zcl.Command) (*Frame, error) {
	f := &Frame{
		Kind:                   KindZCL,
		TSN:                    c.TSN,
		Network:                c.Destination.NetworkAddress,
		Endpoint:               c.Destination.Endpoint,
		Cluster:                c.Cluster,
		Command:                c.CommandID(),
		Specific:               !c.Global(),
		Direction:              uint8(c.Direction),
		DisableDefaultResponse: c.DisableDefaultResponse,
	}
	if err := encodePayload(f, c.Payload); err != nil {
		return nil, fmt.Errorf("cluster 0x%04X command 0x%02X: %w", c.Cluster, c.CommandID(), err)
	}
	return f, nil
}

func encodeValue(v zcl.Value) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return zcl.Encode(v)
}

func encodePayload(f *Frame, p zcl.Payload) error {
	switch p := p.(type) {
	case *zcl.ReadAttributes:
		for _, id := range p.Identifiers {
			f.Records = append(f.Records, Record{ID: id})
		}
	case *zcl.ReadAttributesResponse:
		for _, r := range p.Records {
			b, err := encodeValue(r.AttributeValue)
			if err != nil {
				return err
			}
			f.Records = append(f.Records, Record{ID: r.AttributeIdentifier, Status: r.Status, Type: r.AttributeDataType, Value: b})
		}
	case *zcl.WriteAttributes:
		for _, r := range p.Records {
			b, err := encodeValue(r.AttributeValue)
			if err != nil {
				return err
			}
			f.Records = append(f.Records, Record{ID: r.AttributeIdentifier, Type: r.AttributeDataType, Value: b})
		}
	case *zcl.WriteAttributesResponse:
		for _, r := range p.Records {
			f.Records = append(f.Records, Record{ID: r.AttributeIdentifier, Status: r.Status})
		}
	case *zcl.ConfigureReporting:
		for _, r := range p.Records {
			rec, err := encodeReporting(r)
			if err != nil {
				return err
			}
			f.Records = append(f.Records, rec)
		}
	case *zcl.ReadReportingConfigurationResponse:
		for _, r := range p.Records {
			rec, err := encodeReporting(r)
			if err != nil {
				return err
			}
			f.Records = append(f.Records, rec)
		}
	case *zcl.ConfigureReportingResponse:
		for _, r := range p.Records {
			f.Records = append(f.Records, Record{ID: r.AttributeIdentifier, Status: r.Status, Direction: r.Direction})
		}
	case *zcl.ReadReportingConfiguration:
		for _, r := range p.Records {
			f.Records = append(f.Records, Record{ID: r.AttributeIdentifier, Direction: r.Direction})
		}
	case *zcl.ReportAttributes:
		for _, r := range p.Reports {
			b, err := encodeValue(r.AttributeValue)
			if err != nil {
				return err
			}
			f.Records = append(f.Records, Record{ID: r.AttributeIdentifier, Type: r.AttributeDataType, Value: b})
		}
	case *zcl.DefaultResponse:
		f.Ack = p.CommandIdentifier
		f.Status = p.Status
	case *zcl.DiscoverAttributes:
		f.Start = p.StartAttributeIdentifier
		f.Max = p.MaximumAttributeIdentifiers
	case *zcl.DiscoverAttributesResponse:
		f.Complete = p.DiscoveryComplete
		for _, a := range p.Attributes {
			f.Records = append(f.Records, Record{ID: a.AttributeIdentifier, Type: a.AttributeDataType})
		}
	case *zcl.DiscoverCommandsReceived:
		f.Start = uint16(p.StartCommandIdentifier)
		f.Max = p.MaximumCommandIdentifiers
	case *zcl.DiscoverCommandsGenerated:
		f.Start = uint16(p.StartCommandIdentifier)
		f.Max = p.MaximumCommandIdentifiers
	case *zcl.DiscoverCommandsReceivedResponse:
		f.Complete = p.DiscoveryComplete
		f.Commands = widen(p.CommandIdentifiers)
	case *zcl.DiscoverCommandsGeneratedResponse:
		f.Complete = p.DiscoveryComplete
		f.Commands = widen(p.CommandIdentifiers)
	case *zcl.ClusterCommand:
		f.Data = p.Data
	default:
		return fmt.Errorf("%T: %w", p, ErrUnsupportedCommand)
	}
	return nil
}

func encodeReporting(r zcl.AttributeReportingConfigurationRecord) (Record, error) {
	change, err := encodeValue(r.ReportableChange)
	if err != nil {
		return Record{}, fmt.Errorf("reportable change: %w", err)
	}
	return Record{
		ID:        r.AttributeIdentifier,
		Status:    r.Status,
		Type:      r.AttributeDataType,
		Direction: r.Direction,
		Min:       r.MinimumReportingInterval,
		Max:       r.MaximumReportingInterval,
		Change:    change,
		Timeout:   r.TimeoutPeriod,
	}, nil
}

// decodeFrame converts an inbound frame to a command.
func decodeFrame(f *Frame) (transport.Command, error) {
	switch f.Kind {
	case KindZDO:
		return decodeZDO(f)
	case KindZCL, "":
		return decodeZCL(f)
	default:
		return nil, fmt.Errorf("frame kind %q: %w", f.Kind, ErrUnsupportedCommand)
	}
}

func decodeZDO(f *Frame) (transport.Command, error) {
	switch f.Cluster {
	case zdo.BindResponseCluster, zdo.UnbindResponseCluster:
		return &zdo.BindResponse{Source: f.Network, Cluster: f.Cluster, Status: f.Status, TSN: f.TSN}, nil
	case zdo.BindRequestCluster, zdo.UnbindRequestCluster:
		if f.Bind == nil {
			return nil, fmt.Errorf("zdo 0x%04X: missing bind fields", f.Cluster)
		}
		req := zdo.BindRequest{
			Target:      f.Network,
			SrcAddress:  f.Bind.SrcAddress,
			SrcEndpoint: f.Bind.SrcEndpoint,
			BindCluster: f.Bind.Cluster,
			DstAddrMode: f.Bind.DstAddrMode,
			DstAddress:  f.Bind.DstAddress,
			DstEndpoint: f.Bind.DstEndpoint,
			TSN:         f.TSN,
		}
		if f.Cluster == zdo.UnbindRequestCluster {
			return &zdo.UnbindRequest{BindRequest: req}, nil
		}
		return &req, nil
	default:
		return nil, fmt.Errorf("zdo cluster 0x%04X: %w", f.Cluster, ErrUnsupportedCommand)
	}
}

func decodeZCL(f *Frame) (transport.Command, error) {
	p, err := decodePayload(f)
	if err != nil {
		return nil, fmt.Errorf("cluster 0x%04X command 0x%02X: %w", f.Cluster, f.Command, err)
	}
	return &zcl.Command{
		Cluster:                f.Cluster,
		Source:                 zigbee.EndpointAddress{NetworkAddress: f.Network, Endpoint: f.Endpoint},
		Direction:              zcl.Direction(f.Direction),
		TSN:                    f.TSN,
		DisableDefaultResponse: f.DisableDefaultResponse,
		Payload:                p,
	}, nil
}

// decodeValue returns nil for an empty encoding.
func decodeValue(typeID uint8, data []byte) (zcl.Value, error) {
	if len(data) == 0 {
		return nil, nil
	}
	v, _, err := zcl.Decode(typeID, data)
	return v, err
}

func decodePayload(f *Frame) (zcl.Payload, error) {
	if f.Specific {
		return &zcl.ClusterCommand{ID: f.Command, Data: f.Data}, nil
	}
	switch f.Command {
	case zcl.FoundationReadAttributes:
		p := &zcl.ReadAttributes{}
		for _, r := range f.Records {
			p.Identifiers = append(p.Identifiers, r.ID)
		}
		return p, nil
	case zcl.FoundationReadAttributesResponse:
		p := &zcl.ReadAttributesResponse{}
		for _, r := range f.Records {
			rec := zcl.ReadAttributeStatusRecord{AttributeIdentifier: r.ID, Status: r.Status}
			if r.Status == zcl.ZCLStatusSuccess {
				v, err := decodeValue(r.Type, r.Value)
				if err != nil {
					return nil, fmt.Errorf("attribute 0x%04X: %w", r.ID, err)
				}
				rec.AttributeDataType = r.Type
				rec.AttributeValue = v
			}
			p.Records = append(p.Records, rec)
		}
		return p, nil
	case zcl.FoundationWriteAttributes, zcl.FoundationWriteAttributesUndivided, zcl.FoundationWriteAttributesNoResp:
		p := &zcl.WriteAttributes{}
		for _, r := range f.Records {
			v, err := decodeValue(r.Type, r.Value)
			if err != nil {
				return nil, fmt.Errorf("attribute 0x%04X: %w", r.ID, err)
			}
			p.Records = append(p.Records, zcl.WriteAttributeRecord{AttributeIdentifier: r.ID, AttributeDataType: r.Type, AttributeValue: v})
		}
		return p, nil
	case zcl.FoundationWriteAttributesResp:
		p := &zcl.WriteAttributesResponse{}
		for _, r := range f.Records {
			p.Records = append(p.Records, zcl.WriteAttributeStatusRecord{Status: r.Status, AttributeIdentifier: r.ID})
		}
		return p, nil
	case zcl.FoundationConfigReporting:
		p := &zcl.ConfigureReporting{}
		for _, r := range f.Records {
			rec, err := decodeReporting(r)
			if err != nil {
				return nil, err
			}
			p.Records = append(p.Records, rec)
		}
		return p, nil
	case zcl.FoundationConfigReportingResp:
		p := &zcl.ConfigureReportingResponse{}
		for _, r := range f.Records {
			p.Records = append(p.Records, zcl.AttributeStatusRecord{Status: r.Status, Direction: r.Direction, AttributeIdentifier: r.ID})
		}
		return p, nil
	case zcl.FoundationReadReportingConfig:
		p := &zcl.ReadReportingConfiguration{}
		for _, r := range f.Records {
			p.Records = append(p.Records, zcl.AttributeRecord{Direction: r.Direction, AttributeIdentifier: r.ID})
		}
		return p, nil
	case zcl.FoundationReadReportingConfigResp:
		p := &zcl.ReadReportingConfigurationResponse{}
		for _, r := range f.Records {
			rec, err := decodeReporting(r)
			if err != nil {
				return nil, err
			}
			p.Records = append(p.Records, rec)
		}
		return p, nil
	case zcl.FoundationReportAttributes:
		p := &zcl.ReportAttributes{}
		for _, r := range f.Records {
			v, err := decodeValue(r.Type, r.Value)
			if err != nil {
				return nil, fmt.Errorf("attribute 0x%04X: %w", r.ID, err)
			}
			p.Reports = append(p.Reports, zcl.AttributeReport{AttributeIdentifier: r.ID, AttributeDataType: r.Type, AttributeValue: v})
		}
		return p, nil
	case zcl.FoundationDefaultResponse:
		return &zcl.DefaultResponse{CommandIdentifier: f.Ack, Status: f.Status}, nil
	case zcl.FoundationDiscoverAttributes:
		return &zcl.DiscoverAttributes{StartAttributeIdentifier: f.Start, MaximumAttributeIdentifiers: f.Max}, nil
	case zcl.FoundationDiscoverAttributesResp:
		p := &zcl.DiscoverAttributesResponse{DiscoveryComplete: f.Complete}
		for _, r := range f.Records {
			p.Attributes = append(p.Attributes, zcl.AttributeInformation{AttributeIdentifier: r.ID, AttributeDataType: r.Type})
		}
		return p, nil
	case zcl.FoundationDiscoverCommandsReceived:
		return &zcl.DiscoverCommandsReceived{StartCommandIdentifier: uint8(f.Start), MaximumCommandIdentifiers: f.Max}, nil
	case zcl.FoundationDiscoverCommandsGenerated:
		return &zcl.DiscoverCommandsGenerated{StartCommandIdentifier: uint8(f.Start), MaximumCommandIdentifiers: f.Max}, nil
	case zcl.FoundationDiscoverCommandsRecvResp:
		return &zcl.DiscoverCommandsReceivedResponse{DiscoveryComplete: f.Complete, CommandIdentifiers: narrow(f.Commands)}, nil
	case zcl.FoundationDiscoverCommandsGenResp:
		return &zcl.DiscoverCommandsGeneratedResponse{DiscoveryComplete: f.Complete, CommandIdentifiers: narrow(f.Commands)}, nil
	default:
		return nil, ErrUnsupportedCommand
	}
}

func decodeReporting(r Record) (zcl.AttributeReportingConfigurationRecord, error) {
	change, err := decodeValue(r.Type, r.Change)
	if err != nil {
		return zcl.AttributeReportingConfigurationRecord{}, fmt.Errorf("attribute 0x%04X reportable change: %w", r.ID, err)
	}
	return zcl.AttributeReportingConfigurationRecord{
		Status:                   r.Status,
		Direction:                r.Direction,
		AttributeIdentifier:      r.ID,
		AttributeDataType:        r.Type,
		MinimumReportingInterval: r.Min,
		MaximumReportingInterval: r.Max,
		ReportableChange:         change,
		TimeoutPeriod:            r.Timeout,
	}, nil
}

// isResponse reports whether cmd can answer a pending request.
func isResponse(cmd transport.Command) bool {
	switch c := cmd.(type) {
	case *zdo.BindResponse:
		return true
	case *zcl.Command:
		switch c.Payload.(type) {
		case *zcl.ReadAttributesResponse, *zcl.WriteAttributesResponse,
			*zcl.ConfigureReportingResponse, *zcl.ReadReportingConfigurationResponse,
			*zcl.DefaultResponse, *zcl.DiscoverAttributesResponse,
			*zcl.DiscoverCommandsReceivedResponse, *zcl.DiscoverCommandsGeneratedResponse,
			*zcl.ClusterCommand:
			return true
		}
	}
	return false
}

func widen(ids []uint8) []uint16 {
	if len(ids) == 0 {
		return nil
	}
	out := make([]uint16, len(ids))
	for i, id := range ids {
		out[i] = uint16(id)
	}
	return out
}

func narrow(ids []uint16) []uint8 {
	if len(ids) == 0 {
		return nil
	}
	out := make([]uint8, len(ids))
	for i, id := range ids {
		out[i] = uint8(id)
	}
	return out
}

package web

import (
	"encoding/hex"
	"fmt"
	"time"

	"zcl-gateway/internal/cluster"
	"zcl-gateway/internal/transport"
	"zcl-gateway/internal/zcl"
	"zcl-gateway/internal/zdo"
	"zcl-gateway/internal/zigbee"
)

// jsonValue renders v for JSON: byte strings as hex, EUI64 as an IEEE string.
func jsonValue(v zcl.Value) any {
	switch val := v.(type) {
	case nil:
		return nil
	case zcl.Octets:
		return hex.EncodeToString(val.V)
	case zcl.Raw:
		return hex.EncodeToString(val.V)
	case zcl.EUI64:
		return zigbee.IEEEAddress(val).String()
	}
	return v.Native()
}

func roleOf(c *cluster.Cluster) string {
	if c.IsClient() {
		return "client"
	}
	return "server"
}

type clusterView struct {
	IEEE           zigbee.IEEEAddress `json:"ieee"`
	NetworkAddress string             `json:"network_address"`
	Endpoint       uint8              `json:"endpoint"`
	Cluster        string             `json:"cluster"`
	Name           string             `json:"name"`
	Role           string             `json:"role"`
	Attributes     []attributeView    `json:"attributes,omitempty"`
}

type attributeView struct {
	ID         uint16     `json:"id"`
	Name       string     `json:"name"`
	Type       string     `json:"type"`
	Writable   bool       `json:"writable"`
	Reportable bool       `json:"reportable"`
	Value      any        `json:"value"`
	LastUpdate *time.Time `json:"last_update,omitempty"`
}

func newClusterView(c *cluster.Cluster, withAttributes bool) clusterView {
	ep := c.Endpoint()
	v := clusterView{
		IEEE:           ep.IEEEAddress,
		NetworkAddress: fmt.Sprintf("0x%04X", ep.Address.NetworkAddress),
		Endpoint:       ep.Address.Endpoint,
		Cluster:        fmt.Sprintf("0x%04X", c.ID()),
		Name:           c.Name(),
		Role:           roleOf(c),
	}
	if withAttributes {
		attrs := c.Attributes()
		v.Attributes = make([]attributeView, 0, len(attrs))
		for _, a := range attrs {
			v.Attributes = append(v.Attributes, newAttributeView(a))
		}
	}
	return v
}

func newAttributeView(a cluster.Attribute) attributeView {
	v := attributeView{
		ID:         a.ID,
		Name:       a.Name,
		Type:       zcl.TypeName(a.DataType),
		Writable:   a.IsWritable(),
		Reportable: a.IsReportable(),
		Value:      jsonValue(a.Value),
	}
	if !a.LastUpdate.IsZero() {
		t := a.LastUpdate
		v.LastUpdate = &t
	}
	return v
}

type statusRecord struct {
	Attribute uint16 `json:"attribute"`
	Name      string `json:"name,omitempty"`
	Status    string `json:"status"`
}

type reportingRecord struct {
	Attribute uint16 `json:"attribute"`
	Name      string `json:"name,omitempty"`
	Status    string `json:"status"`
	Type      string `json:"type,omitempty"`
	Min       uint16 `json:"min"`
	Max       uint16 `json:"max"`
	Change    any    `json:"change,omitempty"`
	Timeout   uint16 `json:"timeout,omitempty"`
}

type discoveredAttribute struct {
	ID   uint16 `json:"id"`
	Name string `json:"name,omitempty"`
	Type string `json:"type"`
}

type discoveredCommand struct {
	ID   uint8  `json:"id"`
	Name string `json:"name,omitempty"`
}

// resultView describes the response that resolved an exchange.
type resultView struct {
	Success    bool                  `json:"success"`
	Status     string                `json:"status,omitempty"`
	Command    string                `json:"command,omitempty"`
	Data       string                `json:"data,omitempty"`
	Records    any                   `json:"records,omitempty"`
	Complete   *bool                 `json:"complete,omitempty"`
	Attributes []discoveredAttribute `json:"attributes,omitempty"`
	Commands   []discoveredCommand   `json:"commands,omitempty"`
}

var bindStatusNames = map[uint8]string{
	zdo.StatusSuccess:       "SUCCESS",
	zdo.StatusNotSupported:  "NOT_SUPPORTED",
	zdo.StatusNoEntry:       "NO_ENTRY",
	zdo.StatusTableFull:     "TABLE_FULL",
	zdo.StatusNotAuthorized: "NOT_AUTHORIZED",
}

func bindStatusName(status uint8) string {
	if name, ok := bindStatusNames[status]; ok {
		return name
	}
	return fmt.Sprintf("0x%02X", status)
}

func attributeName(c *cluster.Cluster, id uint16) string {
	if a, ok := c.Attribute(id); ok {
		return a.Name
	}
	return ""
}

func newResultView(c *cluster.Cluster, res transport.Result) resultView {
	v := resultView{Success: res.IsSuccess()}
	switch resp := res.Response.(type) {
	case *zdo.BindResponse:
		v.Status = bindStatusName(resp.Status)
	case *zcl.Command:
		v.Command = fmt.Sprintf("0x%02X", resp.CommandID())
		describePayload(c, resp.Payload, &v)
	}
	return v
}

func describePayload(c *cluster.Cluster, payload zcl.Payload, v *resultView) {
	switch p := payload.(type) {
	case *zcl.DefaultResponse:
		v.Status = zcl.StatusName(p.Status)
	case *zcl.WriteAttributesResponse:
		records := make([]statusRecord, 0, len(p.Records))
		for _, r := range p.Records {
			records = append(records, statusRecord{
				Attribute: r.AttributeIdentifier,
				Name:      attributeName(c, r.AttributeIdentifier),
				Status:    zcl.StatusName(r.Status),
			})
		}
		v.Records = records
	case *zcl.ConfigureReportingResponse:
		records := make([]statusRecord, 0, len(p.Records))
		for _, r := range p.Records {
			records = append(records, statusRecord{
				Attribute: r.AttributeIdentifier,
				Name:      attributeName(c, r.AttributeIdentifier),
				Status:    zcl.StatusName(r.Status),
			})
		}
		v.Records = records
	case *zcl.ReadReportingConfigurationResponse:
		records := make([]reportingRecord, 0, len(p.Records))
		for _, r := range p.Records {
			rec := reportingRecord{
				Attribute: r.AttributeIdentifier,
				Name:      attributeName(c, r.AttributeIdentifier),
				Status:    zcl.StatusName(r.Status),
				Min:       r.MinimumReportingInterval,
				Max:       r.MaximumReportingInterval,
				Change:    jsonValue(r.ReportableChange),
				Timeout:   r.TimeoutPeriod,
			}
			if r.Status == zcl.ZCLStatusSuccess {
				rec.Type = zcl.TypeName(r.AttributeDataType)
			}
			records = append(records, rec)
		}
		v.Records = records
	case *zcl.DiscoverAttributesResponse:
		complete := p.DiscoveryComplete
		v.Complete = &complete
		v.Attributes = make([]discoveredAttribute, 0, len(p.Attributes))
		for _, a := range p.Attributes {
			v.Attributes = append(v.Attributes, discoveredAttribute{
				ID:   a.AttributeIdentifier,
				Name: attributeName(c, a.AttributeIdentifier),
				Type: zcl.TypeName(a.AttributeDataType),
			})
		}
	case *zcl.DiscoverCommandsReceivedResponse:
		complete := p.DiscoveryComplete
		v.Complete = &complete
		v.Commands = discoveredCommands(p.CommandIdentifiers, c.Command)
	case *zcl.DiscoverCommandsGeneratedResponse:
		complete := p.DiscoveryComplete
		v.Complete = &complete
		v.Commands = discoveredCommands(p.CommandIdentifiers, c.Response)
	case *zcl.ClusterCommand:
		v.Data = hex.EncodeToString(p.Data)
	}
}

func discoveredCommands(ids []uint8, lookup func(uint8) (zcl.CommandDef, bool)) []discoveredCommand {
	out := make([]discoveredCommand, 0, len(ids))
	for _, id := range ids {
		dc := discoveredCommand{ID: id}
		if def, ok := lookup(id); ok {
			dc.Name = def.Name
		}
		out = append(out, dc)
	}
	return out
}

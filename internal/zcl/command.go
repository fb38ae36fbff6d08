package zcl

import "zcl-gateway/internal/zigbee"

// Direction is the ZCL frame direction bit.
type Direction uint8

const (
	ClientToServer Direction = 0
	ServerToClient Direction = 1
)

func (d Direction) String() string {
	if d == ServerToClient {
		return "server-to-client"
	}
	return "client-to-server"
}

// Payload is the command-specific body of a Command.
type Payload interface {
	CommandID() uint8
}

// Command is a ZCL frame in abstract form. Serialization belongs to the transport.
type Command struct {
	Cluster                uint16
	Destination            zigbee.EndpointAddress
	Source                 zigbee.EndpointAddress
	Direction              Direction
	TSN                    uint8
	DisableDefaultResponse bool
	Payload                Payload
}

// NewCommand returns a client-to-server command for cluster carrying p.
func NewCommand(cluster uint16, p Payload) *Command {
	return &Command{Cluster: cluster, Payload: p}
}

func (c *Command) ClusterID() uint16          { return c.Cluster }
func (c *Command) TransactionID() uint8       { return c.TSN }
func (c *Command) SetTransactionID(tsn uint8) { c.TSN = tsn }

// CommandID returns the payload's command identifier.
func (c *Command) CommandID() uint8 {
	if c.Payload == nil {
		return 0
	}
	return c.Payload.CommandID()
}

// Global reports whether the command is a profile-wide foundation command.
func (c *Command) Global() bool {
	_, specific := c.Payload.(*ClusterCommand)
	return !specific
}

// IsErrorResponse reports whether the command is a default response carrying a failure status.
func (c *Command) IsErrorResponse() bool {
	dr, ok := c.Payload.(*DefaultResponse)
	return ok && dr.Status != ZCLStatusSuccess
}

// ReadAttributeStatusRecord is one entry of a read attributes response.
type ReadAttributeStatusRecord struct {
	AttributeIdentifier uint16
	Status              uint8
	AttributeDataType   uint8
	AttributeValue      Value
}

// WriteAttributeRecord is one entry of a write attributes command.
type WriteAttributeRecord struct {
	AttributeIdentifier uint16
	AttributeDataType   uint8
	AttributeValue      Value
}

// WriteAttributeStatusRecord is one entry of a write attributes response.
type WriteAttributeStatusRecord struct {
	Status              uint8
	AttributeIdentifier uint16
}

// AttributeReportingConfigurationRecord configures or describes reporting for one attribute.
// Status is only meaningful in read reporting configuration responses.
type AttributeReportingConfigurationRecord struct {
	Status                   uint8
	Direction                uint8
	AttributeIdentifier      uint16
	AttributeDataType        uint8
	MinimumReportingInterval uint16
	MaximumReportingInterval uint16
	// ReportableChange is nil when absent.
	ReportableChange Value
	TimeoutPeriod    uint16
}

// AttributeStatusRecord is one entry of a configure reporting response.
type AttributeStatusRecord struct {
	Status              uint8
	Direction           uint8
	AttributeIdentifier uint16
}

// AttributeRecord selects one attribute's reporting configuration.
type AttributeRecord struct {
	Direction           uint8
	AttributeIdentifier uint16
}

// AttributeReport is one entry of a report attributes command.
type AttributeReport struct {
	AttributeIdentifier uint16
	AttributeDataType   uint8
	AttributeValue      Value
}

// AttributeInformation is one entry of a discover attributes response.
type AttributeInformation struct {
	AttributeIdentifier uint16
	AttributeDataType   uint8
}

type ReadAttributes struct {
	Identifiers []uint16
}

type ReadAttributesResponse struct {
	Records []ReadAttributeStatusRecord
}

type WriteAttributes struct {
	Records []WriteAttributeRecord
}

// WriteAttributesResponse holds a single success record when every write succeeded.
type WriteAttributesResponse struct {
	Records []WriteAttributeStatusRecord
}

type ConfigureReporting struct {
	Records []AttributeReportingConfigurationRecord
}

type ConfigureReportingResponse struct {
	Records []AttributeStatusRecord
}

type ReadReportingConfiguration struct {
	Records []AttributeRecord
}

type ReadReportingConfigurationResponse struct {
	Records []AttributeReportingConfigurationRecord
}

type ReportAttributes struct {
	Reports []AttributeReport
}

type DefaultResponse struct {
	CommandIdentifier uint8
	Status            uint8
}

type DiscoverAttributes struct {
	StartAttributeIdentifier    uint16
	MaximumAttributeIdentifiers uint8
}

type DiscoverAttributesResponse struct {
	DiscoveryComplete bool
	Attributes        []AttributeInformation
}

type DiscoverCommandsReceived struct {
	StartCommandIdentifier    uint8
	MaximumCommandIdentifiers uint8
}

type DiscoverCommandsReceivedResponse struct {
	DiscoveryComplete  bool
	CommandIdentifiers []uint8
}

type DiscoverCommandsGenerated struct {
	StartCommandIdentifier    uint8
	MaximumCommandIdentifiers uint8
}

type DiscoverCommandsGeneratedResponse struct {
	DiscoveryComplete  bool
	CommandIdentifiers []uint8
}

// ClusterCommand is a cluster-specific command with an opaque, already encoded body.
type ClusterCommand struct {
	ID   uint8
	Data []byte
}

func (*ReadAttributes) CommandID() uint8             { return FoundationReadAttributes }
func (*ReadAttributesResponse) CommandID() uint8     { return FoundationReadAttributesResponse }
func (*WriteAttributes) CommandID() uint8            { return FoundationWriteAttributes }
func (*WriteAttributesResponse) CommandID() uint8    { return FoundationWriteAttributesResp }
func (*ConfigureReporting) CommandID() uint8         { return FoundationConfigReporting }
func (*ConfigureReportingResponse) CommandID() uint8 { return FoundationConfigReportingResp }
func (*ReadReportingConfiguration) CommandID() uint8 { return FoundationReadReportingConfig }
func (*ReadReportingConfigurationResponse) CommandID() uint8 {
	return FoundationReadReportingConfigResp
}
func (*ReportAttributes) CommandID() uint8           { return FoundationReportAttributes }
func (*DefaultResponse) CommandID() uint8            { return FoundationDefaultResponse }
func (*DiscoverAttributes) CommandID() uint8         { return FoundationDiscoverAttributes }
func (*DiscoverAttributesResponse) CommandID() uint8 { return FoundationDiscoverAttributesResp }
func (*DiscoverCommandsReceived) CommandID() uint8   { return FoundationDiscoverCommandsReceived }
func (*DiscoverCommandsReceivedResponse) CommandID() uint8 {
	return FoundationDiscoverCommandsRecvResp
}
func (*DiscoverCommandsGenerated) CommandID() uint8 { return FoundationDiscoverCommandsGenerated }
func (*DiscoverCommandsGeneratedResponse) CommandID() uint8 {
	return FoundationDiscoverCommandsGenResp
}
func (c *ClusterCommand) CommandID() uint8 { return c.ID }

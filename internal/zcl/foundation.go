package zcl

import "fmt"

// Foundation ZCL command IDs (global, not cluster-specific).
const (
	FoundationReadAttributes            uint8 = 0x00
	FoundationReadAttributesResponse    uint8 = 0x01
	FoundationWriteAttributes           uint8 = 0x02
	FoundationWriteAttributesUndivided  uint8 = 0x03
	FoundationWriteAttributesResp       uint8 = 0x04
	FoundationWriteAttributesNoResp     uint8 = 0x05
	FoundationConfigReporting           uint8 = 0x06
	FoundationConfigReportingResp       uint8 = 0x07
	FoundationReadReportingConfig       uint8 = 0x08
	FoundationReadReportingConfigResp   uint8 = 0x09
	FoundationReportAttributes          uint8 = 0x0A
	FoundationDefaultResponse           uint8 = 0x0B
	FoundationDiscoverAttributes        uint8 = 0x0C
	FoundationDiscoverAttributesResp    uint8 = 0x0D
	FoundationDiscoverCommandsReceived  uint8 = 0x11
	FoundationDiscoverCommandsRecvResp  uint8 = 0x12
	FoundationDiscoverCommandsGenerated uint8 = 0x13
	FoundationDiscoverCommandsGenResp   uint8 = 0x14
)

// ZCL status codes
const (
	ZCLStatusSuccess          uint8 = 0x00
	ZCLStatusFailure          uint8 = 0x01
	ZCLStatusMalformedCommand uint8 = 0x80
	ZCLStatusUnsupClusterCmd  uint8 = 0x81
	ZCLStatusUnsupGeneralCmd  uint8 = 0x82
	ZCLStatusInvalidField     uint8 = 0x85
	ZCLStatusUnsupportedAttr  uint8 = 0x86
	ZCLStatusInvalidValue     uint8 = 0x87
	ZCLStatusReadOnly         uint8 = 0x88
	ZCLStatusNotFound         uint8 = 0x8B
	ZCLStatusUnreportable     uint8 = 0x8C
	ZCLStatusInvalidDataType  uint8 = 0x8D
	ZCLStatusTimeout          uint8 = 0x94
)

var statusNames = map[uint8]string{
	ZCLStatusSuccess:          "SUCCESS",
	ZCLStatusFailure:          "FAILURE",
	ZCLStatusMalformedCommand: "MALFORMED_COMMAND",
	ZCLStatusUnsupClusterCmd:  "UNSUP_CLUSTER_COMMAND",
	ZCLStatusUnsupGeneralCmd:  "UNSUP_GENERAL_COMMAND",
	ZCLStatusInvalidField:     "INVALID_FIELD",
	ZCLStatusUnsupportedAttr:  "UNSUPPORTED_ATTRIBUTE",
	ZCLStatusInvalidValue:     "INVALID_VALUE",
	ZCLStatusReadOnly:         "READ_ONLY",
	ZCLStatusNotFound:         "NOT_FOUND",
	ZCLStatusUnreportable:     "UNREPORTABLE_ATTRIBUTE",
	ZCLStatusInvalidDataType:  "INVALID_DATA_TYPE",
	ZCLStatusTimeout:          "TIMEOUT",
}

// StatusName returns the ZCL name of a status code.
func StatusName(status uint8) string {
	if name, ok := statusNames[status]; ok {
		return name
	}
	return fmt.Sprintf("0x%02X", status)
}

// Reporting record directions.
const (
	ReportingDirectionSend    uint8 = 0x00 // device reports to us
	ReportingDirectionReceive uint8 = 0x01
)

// Discovery window used by the discover commands.
const (
	DiscoveryStart = 0
	DiscoveryMax   = 40
)

package clusters

import "zcl-gateway/internal/zcl"

// basicIO lays out the attributes shared by the analog, binary and multistate
// input clusters; presentType is the type of PresentValue.
func basicIO(id uint16, name string, presentType uint8, extra ...zcl.AttributeDef) zcl.ClusterDef {
	attrs := []zcl.AttributeDef{
		attr(0x001C, "Description", zcl.TypeCharStr, rw),
		attr(0x0051, "OutOfService", zcl.TypeBool, rw),
		attr(0x0055, "PresentValue", presentType, rwp),
		attr(0x0067, "Reliability", zcl.TypeEnum8, rw),
		attr(0x006F, "StatusFlags", zcl.TypeBitmap8, rp),
		attr(0x0100, "ApplicationType", zcl.TypeUint32, r),
	}
	return zcl.ClusterDef{ID: id, Name: name, Attributes: append(attrs, extra...)}
}

var AnalogInput = basicIO(0x000C, "Analog Input (Basic)", zcl.TypeFloat32,
	attr(0x0041, "MaxPresentValue", zcl.TypeFloat32, rw),
	attr(0x0045, "MinPresentValue", zcl.TypeFloat32, rw),
	attr(0x006A, "Resolution", zcl.TypeFloat32, rw),
	attr(0x0075, "EngineeringUnits", zcl.TypeEnum16, rw),
)

var BinaryInput = basicIO(0x000F, "Binary Input (Basic)", zcl.TypeBool,
	attr(0x0004, "ActiveText", zcl.TypeCharStr, rw),
	attr(0x002E, "InactiveText", zcl.TypeCharStr, rw),
	attr(0x0054, "Polarity", zcl.TypeEnum8, r),
)

var MultistateInput = basicIO(0x0012, "Multistate Input (Basic)", zcl.TypeUint16,
	attr(0x000E, "StateText", zcl.TypeArray, rw),
	attr(0x004A, "NumberOfStates", zcl.TypeUint16, rw),
)

package clusters

import "zcl-gateway/internal/zcl"

var Thermostat = zcl.ClusterDef{
	ID:   0x0201,
	Name: "Thermostat",
	Attributes: []zcl.AttributeDef{
		attr(0x0000, "LocalTemperature", zcl.TypeInt16, rp),
		attr(0x0003, "AbsMinHeatSetpointLimit", zcl.TypeInt16, r),
		attr(0x0004, "AbsMaxHeatSetpointLimit", zcl.TypeInt16, r),
		attr(0x0011, "OccupiedCoolingSetpoint", zcl.TypeInt16, rwp),
		attr(0x0012, "OccupiedHeatingSetpoint", zcl.TypeInt16, rwp),
		attr(0x001B, "ControlSequenceOfOperation", zcl.TypeEnum8, rw),
		attr(0x001C, "SystemMode", zcl.TypeEnum8, rwp),
		attr(0x001E, "RunningMode", zcl.TypeEnum8, r),
		attr(0x0029, "RunningState", zcl.TypeBitmap16, rp),
	},
	Commands: []zcl.CommandDef{
		toServer(0x00, "SetpointRaiseLower"),
	},
}

var FanControl = zcl.ClusterDef{
	ID:   0x0202,
	Name: "Fan Control",
	Attributes: []zcl.AttributeDef{
		attr(0x0000, "FanMode", zcl.TypeEnum8, rw),
		attr(0x0001, "FanModeSequence", zcl.TypeEnum8, rw),
	},
}

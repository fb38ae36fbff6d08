package clusters

import "zcl-gateway/internal/zcl"

var Metering = zcl.ClusterDef{
	ID:   0x0702,
	Name: "Metering",
	Attributes: []zcl.AttributeDef{
		attr(0x0000, "CurrentSummationDelivered", zcl.TypeUint48, rp),
		attr(0x0001, "CurrentSummationReceived", zcl.TypeUint48, r),
		attr(0x0200, "Status", zcl.TypeBitmap8, r),
		attr(0x0300, "UnitOfMeasure", zcl.TypeEnum8, r),
		attr(0x0301, "Multiplier", zcl.TypeUint24, r),
		attr(0x0302, "Divisor", zcl.TypeUint24, r),
		attr(0x0303, "SummationFormatting", zcl.TypeBitmap8, r),
		attr(0x0306, "MeteringDeviceType", zcl.TypeBitmap8, r),
		attr(0x0400, "InstantaneousDemand", zcl.TypeInt24, rp),
	},
}

var ElectricalMeasurement = zcl.ClusterDef{
	ID:   0x0B04,
	Name: "Electrical Measurement",
	Attributes: []zcl.AttributeDef{
		attr(0x0000, "MeasurementType", zcl.TypeBitmap32, r),
		attr(0x0505, "RMSVoltage", zcl.TypeUint16, rp),
		attr(0x0508, "RMSCurrent", zcl.TypeUint16, rp),
		attr(0x050B, "ActivePower", zcl.TypeInt16, rp),
		attr(0x0510, "PowerFactor", zcl.TypeInt8, r),
		attr(0x0600, "ACVoltageMultiplier", zcl.TypeUint16, r),
		attr(0x0601, "ACVoltageDivisor", zcl.TypeUint16, r),
		attr(0x0602, "ACCurrentMultiplier", zcl.TypeUint16, r),
		attr(0x0603, "ACCurrentDivisor", zcl.TypeUint16, r),
		attr(0x0604, "ACPowerMultiplier", zcl.TypeUint16, r),
		attr(0x0605, "ACPowerDivisor", zcl.TypeUint16, r),
	},
}

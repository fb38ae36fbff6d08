package clusters

import "zcl-gateway/internal/zcl"

// measurement lays out MeasuredValue, its bounds and Tolerance, the common
// shape of the 0x04xx measurement clusters.
func measurement(id uint16, name string, valueType uint8, extra ...zcl.AttributeDef) zcl.ClusterDef {
	attrs := []zcl.AttributeDef{
		attr(0x0000, "MeasuredValue", valueType, rp),
		attr(0x0001, "MinMeasuredValue", valueType, r),
		attr(0x0002, "MaxMeasuredValue", valueType, r),
		attr(0x0003, "Tolerance", zcl.TypeUint16, r),
	}
	return zcl.ClusterDef{ID: id, Name: name, Attributes: append(attrs, extra...)}
}

var IlluminanceMeasurement = measurement(0x0400, "Illuminance Measurement", zcl.TypeUint16,
	attr(0x0004, "LightSensorType", zcl.TypeEnum8, r),
)

var TemperatureMeasurement = measurement(0x0402, "Temperature Measurement", zcl.TypeInt16)

var PressureMeasurement = measurement(0x0403, "Pressure Measurement", zcl.TypeInt16,
	attr(0x0010, "ScaledValue", zcl.TypeInt16, rp),
	attr(0x0014, "Scale", zcl.TypeInt8, r),
)

var FlowMeasurement = measurement(0x0404, "Flow Measurement", zcl.TypeUint16)

var RelativeHumidity = measurement(0x0405, "Relative Humidity", zcl.TypeUint16)

var OccupancySensing = zcl.ClusterDef{
	ID:   0x0406,
	Name: "Occupancy Sensing",
	Attributes: []zcl.AttributeDef{
		attr(0x0000, "Occupancy", zcl.TypeBitmap8, rp),
		attr(0x0001, "OccupancySensorType", zcl.TypeEnum8, r),
		attr(0x0002, "OccupancySensorTypeBitmap", zcl.TypeBitmap8, r),
		attr(0x0010, "PIROccupiedToUnoccupiedDelay", zcl.TypeUint16, rw),
		attr(0x0011, "PIRUnoccupiedToOccupiedDelay", zcl.TypeUint16, rw),
	},
}

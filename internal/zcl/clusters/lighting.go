package clusters

import "zcl-gateway/internal/zcl"

var ColorControl = zcl.ClusterDef{
	ID:   0x0300,
	Name: "Color Control",
	Attributes: []zcl.AttributeDef{
		attr(0x0000, "CurrentHue", zcl.TypeUint8, rp),
		attr(0x0001, "CurrentSaturation", zcl.TypeUint8, rp),
		attr(0x0002, "RemainingTime", zcl.TypeUint16, r),
		attr(0x0003, "CurrentX", zcl.TypeUint16, rp),
		attr(0x0004, "CurrentY", zcl.TypeUint16, rp),
		attr(0x0007, "ColorTemperatureMireds", zcl.TypeUint16, rp),
		attr(0x0008, "ColorMode", zcl.TypeEnum8, r),
		attr(0x000F, "Options", zcl.TypeBitmap8, rw),
		attr(0x400A, "ColorCapabilities", zcl.TypeBitmap16, r),
		attr(0x400B, "ColorTempPhysicalMinMireds", zcl.TypeUint16, r),
		attr(0x400C, "ColorTempPhysicalMaxMireds", zcl.TypeUint16, r),
	},
	Commands: []zcl.CommandDef{
		toServer(0x00, "MoveToHue"),
		toServer(0x03, "MoveToSaturation"),
		toServer(0x06, "MoveToHueAndSaturation"),
		toServer(0x07, "MoveToColor"),
		toServer(0x0A, "MoveToColorTemperature"),
		toServer(0x47, "StopMoveStep"),
	},
}

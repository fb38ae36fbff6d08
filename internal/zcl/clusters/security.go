package clusters

import "zcl-gateway/internal/zcl"

var IASZone = zcl.ClusterDef{
	ID:   0x0500,
	Name: "IAS Zone",
	Attributes: []zcl.AttributeDef{
		attr(0x0000, "ZoneState", zcl.TypeEnum8, r),
		attr(0x0001, "ZoneType", zcl.TypeEnum16, r),
		attr(0x0002, "ZoneStatus", zcl.TypeBitmap16, rp),
		attr(0x0010, "IASCIEAddress", zcl.TypeEUI64, rw),
		attr(0x0011, "ZoneID", zcl.TypeUint8, r),
	},
	Commands: []zcl.CommandDef{
		toServer(0x00, "ZoneEnrollResponse"),
		toClient(0x00, "ZoneStatusChangeNotification"),
		toClient(0x01, "ZoneEnrollRequest"),
	},
}

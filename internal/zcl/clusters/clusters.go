// Package clusters holds the standard ZCL cluster definitions loaded into the registry at startup.
package clusters

import "zcl-gateway/internal/zcl"

const (
	r   = zcl.AccessRead
	rw  = zcl.AccessRead | zcl.AccessWrite
	rp  = zcl.AccessRead | zcl.AccessReport
	rwp = zcl.AccessRead | zcl.AccessWrite | zcl.AccessReport
)

func attr(id uint16, name string, typeID uint8, access uint8) zcl.AttributeDef {
	return zcl.AttributeDef{ID: id, Name: name, Type: typeID, Access: access}
}

func toServer(id uint8, name string) zcl.CommandDef {
	return zcl.CommandDef{ID: id, Name: name, Direction: zcl.DirectionToServer}
}

func toClient(id uint8, name string) zcl.CommandDef {
	return zcl.CommandDef{ID: id, Name: name, Direction: zcl.DirectionToClient}
}

// Standard returns every definition in this package.
func Standard() []zcl.ClusterDef {
	return []zcl.ClusterDef{
		Basic, PowerConfiguration, DeviceTemperature, Identify, Groups, Scenes,
		OnOff, LevelControl, PollControl,
		AnalogInput, BinaryInput, MultistateInput,
		Thermostat, FanControl, ColorControl,
		IlluminanceMeasurement, TemperatureMeasurement, PressureMeasurement,
		FlowMeasurement, RelativeHumidity, OccupancySensing,
		IASZone, Metering, ElectricalMeasurement,
	}
}

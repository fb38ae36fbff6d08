package clusters

import "zcl-gateway/internal/zcl"

var Basic = zcl.ClusterDef{
	ID:   0x0000,
	Name: "Basic",
	Attributes: []zcl.AttributeDef{
		attr(0x0000, "ZCLVersion", zcl.TypeUint8, r),
		attr(0x0001, "ApplicationVersion", zcl.TypeUint8, r),
		attr(0x0002, "StackVersion", zcl.TypeUint8, r),
		attr(0x0003, "HWVersion", zcl.TypeUint8, r),
		attr(0x0004, "ManufacturerName", zcl.TypeCharStr, r),
		attr(0x0005, "ModelIdentifier", zcl.TypeCharStr, r),
		attr(0x0006, "DateCode", zcl.TypeCharStr, r),
		attr(0x0007, "PowerSource", zcl.TypeEnum8, r),
		attr(0x0010, "LocationDescription", zcl.TypeCharStr, rw),
		attr(0x4000, "SWBuildID", zcl.TypeCharStr, r),
	},
	Commands: []zcl.CommandDef{
		toServer(0x00, "ResetToFactoryDefaults"),
	},
}

var PowerConfiguration = zcl.ClusterDef{
	ID:   0x0001,
	Name: "Power Configuration",
	Attributes: []zcl.AttributeDef{
		attr(0x0000, "MainsVoltage", zcl.TypeUint16, r),
		attr(0x0001, "MainsFrequency", zcl.TypeUint8, r),
		attr(0x0020, "BatteryVoltage", zcl.TypeUint8, rp),
		attr(0x0021, "BatteryPercentageRemaining", zcl.TypeUint8, rp),
		attr(0x0031, "BatterySize", zcl.TypeEnum8, rw),
		attr(0x0033, "BatteryQuantity", zcl.TypeUint8, rw),
		attr(0x0035, "BatteryAlarmMask", zcl.TypeBitmap8, rw),
		attr(0x0036, "BatteryVoltageMinThreshold", zcl.TypeUint8, rw),
		attr(0x003E, "BatteryAlarmState", zcl.TypeBitmap32, rp),
	},
}

var DeviceTemperature = zcl.ClusterDef{
	ID:   0x0002,
	Name: "Device Temperature Configuration",
	Attributes: []zcl.AttributeDef{
		attr(0x0000, "CurrentTemperature", zcl.TypeInt16, r),
		attr(0x0001, "MinTempExperienced", zcl.TypeInt16, r),
		attr(0x0002, "MaxTempExperienced", zcl.TypeInt16, r),
		attr(0x0010, "DeviceTempAlarmMask", zcl.TypeBitmap8, rw),
		attr(0x0011, "LowTempThreshold", zcl.TypeInt16, rw),
		attr(0x0012, "HighTempThreshold", zcl.TypeInt16, rw),
	},
}

var Identify = zcl.ClusterDef{
	ID:   0x0003,
	Name: "Identify",
	Attributes: []zcl.AttributeDef{
		attr(0x0000, "IdentifyTime", zcl.TypeUint16, rw),
	},
	Commands: []zcl.CommandDef{
		toServer(0x00, "Identify"),
		toServer(0x01, "IdentifyQuery"),
		toServer(0x40, "TriggerEffect"),
		toClient(0x00, "IdentifyQueryResponse"),
	},
}

var Groups = zcl.ClusterDef{
	ID:   0x0004,
	Name: "Groups",
	Attributes: []zcl.AttributeDef{
		attr(0x0000, "NameSupport", zcl.TypeBitmap8, r),
	},
	Commands: []zcl.CommandDef{
		toServer(0x00, "AddGroup"),
		toServer(0x01, "ViewGroup"),
		toServer(0x02, "GetGroupMembership"),
		toServer(0x03, "RemoveGroup"),
		toServer(0x04, "RemoveAllGroups"),
		toServer(0x05, "AddGroupIfIdentifying"),
		toClient(0x00, "AddGroupResponse"),
		toClient(0x01, "ViewGroupResponse"),
		toClient(0x02, "GetGroupMembershipResponse"),
		toClient(0x03, "RemoveGroupResponse"),
	},
}

var Scenes = zcl.ClusterDef{
	ID:   0x0005,
	Name: "Scenes",
	Attributes: []zcl.AttributeDef{
		attr(0x0000, "SceneCount", zcl.TypeUint8, r),
		attr(0x0001, "CurrentScene", zcl.TypeUint8, r),
		attr(0x0002, "CurrentGroup", zcl.TypeUint16, r),
		attr(0x0003, "SceneValid", zcl.TypeBool, r),
		attr(0x0004, "NameSupport", zcl.TypeBitmap8, r),
	},
	Commands: []zcl.CommandDef{
		toServer(0x00, "AddScene"),
		toServer(0x01, "ViewScene"),
		toServer(0x02, "RemoveScene"),
		toServer(0x03, "RemoveAllScenes"),
		toServer(0x04, "StoreScene"),
		toServer(0x05, "RecallScene"),
		toServer(0x06, "GetSceneMembership"),
	},
}

var OnOff = zcl.ClusterDef{
	ID:   0x0006,
	Name: "On/Off",
	Attributes: []zcl.AttributeDef{
		attr(0x0000, "OnOff", zcl.TypeBool, rp),
		attr(0x4000, "GlobalSceneControl", zcl.TypeBool, r),
		attr(0x4001, "OnTime", zcl.TypeUint16, rw),
		attr(0x4002, "OffWaitTime", zcl.TypeUint16, rw),
		attr(0x4003, "StartUpOnOff", zcl.TypeEnum8, rw),
	},
	Commands: []zcl.CommandDef{
		toServer(0x00, "Off"),
		toServer(0x01, "On"),
		toServer(0x02, "Toggle"),
		toServer(0x40, "OffWithEffect"),
		toServer(0x41, "OnWithRecallGlobalScene"),
		toServer(0x42, "OnWithTimedOff"),
	},
}

var LevelControl = zcl.ClusterDef{
	ID:   0x0008,
	Name: "Level Control",
	Attributes: []zcl.AttributeDef{
		attr(0x0000, "CurrentLevel", zcl.TypeUint8, rp),
		attr(0x0001, "RemainingTime", zcl.TypeUint16, r),
		attr(0x000F, "Options", zcl.TypeBitmap8, rw),
		attr(0x0010, "OnOffTransitionTime", zcl.TypeUint16, rw),
		attr(0x0011, "OnLevel", zcl.TypeUint8, rw),
		attr(0x4000, "StartUpCurrentLevel", zcl.TypeUint8, rw),
	},
	Commands: []zcl.CommandDef{
		toServer(0x00, "MoveToLevel"),
		toServer(0x01, "Move"),
		toServer(0x02, "Step"),
		toServer(0x03, "Stop"),
		toServer(0x04, "MoveToLevelWithOnOff"),
		toServer(0x05, "MoveWithOnOff"),
		toServer(0x06, "StepWithOnOff"),
		toServer(0x07, "StopWithOnOff"),
	},
}

var PollControl = zcl.ClusterDef{
	ID:   0x0020,
	Name: "Poll Control",
	Attributes: []zcl.AttributeDef{
		attr(0x0000, "CheckInInterval", zcl.TypeUint32, rw),
		attr(0x0001, "LongPollInterval", zcl.TypeUint32, r),
		attr(0x0002, "ShortPollInterval", zcl.TypeUint16, r),
		attr(0x0003, "FastPollTimeout", zcl.TypeUint16, rw),
	},
	Commands: []zcl.CommandDef{
		toServer(0x00, "CheckInResponse"),
		toServer(0x01, "FastPollStop"),
		toServer(0x02, "SetLongPollInterval"),
		toServer(0x03, "SetShortPollInterval"),
		toClient(0x00, "CheckIn"),
	},
}

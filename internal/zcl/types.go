package zcl

import "fmt"

// ZCL data type IDs
const (
	TypeNoData uint8 = 0x00

	TypeBool uint8 = 0x10

	TypeBitmap8  uint8 = 0x18
	TypeBitmap16 uint8 = 0x19
	TypeBitmap24 uint8 = 0x1A
	TypeBitmap32 uint8 = 0x1B

	TypeUint8  uint8 = 0x20
	TypeUint16 uint8 = 0x21
	TypeUint24 uint8 = 0x22
	TypeUint32 uint8 = 0x23
	TypeUint40 uint8 = 0x24
	TypeUint48 uint8 = 0x25

	TypeInt8  uint8 = 0x28
	TypeInt16 uint8 = 0x29
	TypeInt24 uint8 = 0x2A
	TypeInt32 uint8 = 0x2B

	TypeEnum8  uint8 = 0x30
	TypeEnum16 uint8 = 0x31

	TypeFloat16 uint8 = 0x38
	TypeFloat32 uint8 = 0x39
	TypeFloat64 uint8 = 0x3A

	TypeOctetStr   uint8 = 0x41
	TypeCharStr    uint8 = 0x42
	TypeOctetStr16 uint8 = 0x43
	TypeCharStr16  uint8 = 0x44

	TypeArray  uint8 = 0x48
	TypeStruct uint8 = 0x4C

	TypeToD       uint8 = 0xE0 // time of day
	TypeDate      uint8 = 0xE1
	TypeUTC       uint8 = 0xE2
	TypeClusterID uint8 = 0xE8
	TypeAttrID    uint8 = 0xE9
	TypeEUI64     uint8 = 0xF0
)

var typeNames = map[uint8]string{
	TypeNoData:     "nodata",
	TypeBool:       "bool",
	TypeBitmap8:    "map8",
	TypeBitmap16:   "map16",
	TypeBitmap24:   "map24",
	TypeBitmap32:   "map32",
	TypeUint8:      "uint8",
	TypeUint16:     "uint16",
	TypeUint24:     "uint24",
	TypeUint32:     "uint32",
	TypeUint40:     "uint40",
	TypeUint48:     "uint48",
	TypeInt8:       "int8",
	TypeInt16:      "int16",
	TypeInt24:      "int24",
	TypeInt32:      "int32",
	TypeEnum8:      "enum8",
	TypeEnum16:     "enum16",
	TypeFloat16:    "semi",
	TypeFloat32:    "single",
	TypeFloat64:    "double",
	TypeOctetStr:   "octstr",
	TypeCharStr:    "string",
	TypeOctetStr16: "octstr16",
	TypeCharStr16:  "string16",
	TypeArray:      "array",
	TypeStruct:     "struct",
	TypeToD:        "ToD",
	TypeDate:       "date",
	TypeUTC:        "UTC",
	TypeClusterID:  "clusterId",
	TypeAttrID:     "attribId",
	TypeEUI64:      "EUI64",
}

// TypeName returns a human-readable name for a ZCL type.
func TypeName(typeID uint8) string {
	if name, ok := typeNames[typeID]; ok {
		return name
	}
	return fmt.Sprintf("0x%02X", typeID)
}

// unsignedWidth returns the wire width of types carried as unsigned integers, or 0.
func unsignedWidth(typeID uint8) int {
	switch typeID {
	case TypeUint8, TypeEnum8, TypeBitmap8:
		return 1
	case TypeUint16, TypeEnum16, TypeBitmap16, TypeClusterID, TypeAttrID:
		return 2
	case TypeUint24, TypeBitmap24:
		return 3
	case TypeUint32, TypeBitmap32, TypeToD, TypeDate, TypeUTC:
		return 4
	case TypeUint40:
		return 5
	case TypeUint48:
		return 6
	}
	return 0
}

// signedWidth returns the wire width of signed integer types, or 0.
func signedWidth(typeID uint8) int {
	switch typeID {
	case TypeInt8:
		return 1
	case TypeInt16:
		return 2
	case TypeInt24:
		return 3
	case TypeInt32:
		return 4
	}
	return 0
}

func isEnum(typeID uint8) bool   { return typeID == TypeEnum8 || typeID == TypeEnum16 }
func isBitmap(typeID uint8) bool { return typeID >= TypeBitmap8 && typeID <= TypeBitmap32 }
func isFloat(typeID uint8) bool  { return typeID >= TypeFloat16 && typeID <= TypeFloat64 }

// TypeSize returns the fixed size in bytes of a ZCL type, or -1 for variable-length types.
func TypeSize(typeID uint8) int {
	switch typeID {
	case TypeNoData:
		return 0
	case TypeBool:
		return 1
	case TypeFloat16:
		return 2
	case TypeFloat32:
		return 4
	case TypeFloat64, TypeEUI64:
		return 8
	}
	if w := unsignedWidth(typeID); w > 0 {
		return w
	}
	if w := signedWidth(typeID); w > 0 {
		return w
	}
	return -1
}

// IsAnalog reports whether a type is analog in the reporting sense: integers,
// floats and time values need a reportable change, discrete types do not.
func IsAnalog(typeID uint8) bool {
	switch {
	case typeID >= TypeUint8 && typeID <= TypeUint48:
		return true
	case signedWidth(typeID) > 0, isFloat(typeID):
		return true
	case typeID == TypeToD, typeID == TypeDate, typeID == TypeUTC:
		return true
	}
	return false
}

package zcl

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/x448/float16"

	"zcl-gateway/internal/zigbee"
)

// Value is an attribute value tagged with its ZCL data type.
// Implementations: Bool, Unsigned, Signed, Enum, Bitmap, Float, String, Octets, EUI64, Raw.
type Value interface {
	DataType() uint8
	// Native returns the plain Go value (bool, uint64, int64, uint16, uint32,
	// float64, string, []byte or [8]byte).
	Native() any
	isValue()
}

type Bool bool

type Unsigned struct {
	Type uint8  `json:"type"`
	V    uint64 `json:"value"`
}

type Signed struct {
	Type uint8 `json:"type"`
	V    int64 `json:"value"`
}

type Enum struct {
	Type uint8  `json:"type"`
	V    uint16 `json:"value"`
}

type Bitmap struct {
	Type uint8  `json:"type"`
	V    uint32 `json:"value"`
}

type Float struct {
	Type uint8   `json:"type"`
	V    float64 `json:"value"`
}

type String struct {
	Type uint8  `json:"type"`
	V    string `json:"value"`
}

type Octets struct {
	Type uint8  `json:"type"`
	V    []byte `json:"value"`
}

// EUI64 holds a 64-bit identifier, most significant byte first.
type EUI64 [8]byte

// Raw carries collection and unrecognised types as their encoded bytes.
type Raw struct {
	Type uint8  `json:"type"`
	V    []byte `json:"value"`
}

func (Bool) DataType() uint8       { return TypeBool }
func (v Unsigned) DataType() uint8 { return v.Type }
func (v Signed) DataType() uint8   { return v.Type }
func (v Enum) DataType() uint8     { return v.Type }
func (v Bitmap) DataType() uint8   { return v.Type }
func (v Float) DataType() uint8    { return v.Type }
func (v String) DataType() uint8   { return v.Type }
func (v Octets) DataType() uint8   { return v.Type }
func (EUI64) DataType() uint8      { return TypeEUI64 }
func (v Raw) DataType() uint8      { return v.Type }

func (v Bool) Native() any     { return bool(v) }
func (v Unsigned) Native() any { return v.V }
func (v Signed) Native() any   { return v.V }
func (v Enum) Native() any     { return v.V }
func (v Bitmap) Native() any   { return v.V }
func (v Float) Native() any    { return v.V }
func (v String) Native() any   { return v.V }
func (v Octets) Native() any   { return v.V }
func (v EUI64) Native() any    { return [8]byte(v) }
func (v Raw) Native() any      { return v.V }

func (Bool) isValue()     {}
func (Unsigned) isValue() {}
func (Signed) isValue()   {}
func (Enum) isValue()     {}
func (Bitmap) isValue()   {}
func (Float) isValue()    {}
func (String) isValue()   {}
func (Octets) isValue()   {}
func (EUI64) isValue()    {}
func (Raw) isValue()      {}

// NewValue converts a Go value into the Value variant for typeID.
// A Value argument is re-tagged through its native form.
func NewValue(typeID uint8, v any) (Value, error) {
	if tv, ok := v.(Value); ok {
		v = tv.Native()
	}

	switch {
	case typeID == TypeBool:
		b, ok := toBool(v)
		if !ok {
			return nil, convertError(typeID, v)
		}
		return Bool(b), nil

	case unsignedWidth(typeID) > 0:
		u, ok := toUint64(v)
		if !ok {
			return nil, convertError(typeID, v)
		}
		width := unsignedWidth(typeID)
		if u > maxUnsigned(width) {
			return nil, fmt.Errorf("zcl: value %d overflows %s (max %d)", u, TypeName(typeID), maxUnsigned(width))
		}
		switch {
		case isEnum(typeID):
			return Enum{Type: typeID, V: uint16(u)}, nil
		case isBitmap(typeID):
			return Bitmap{Type: typeID, V: uint32(u)}, nil
		}
		return Unsigned{Type: typeID, V: u}, nil

	case signedWidth(typeID) > 0:
		i, ok := toInt64(v)
		if !ok {
			return nil, convertError(typeID, v)
		}
		lo, hi := signedRange(signedWidth(typeID))
		if i < lo || i > hi {
			return nil, fmt.Errorf("zcl: value %d overflows %s (range %d..%d)", i, TypeName(typeID), lo, hi)
		}
		return Signed{Type: typeID, V: i}, nil

	case isFloat(typeID):
		f, ok := toFloat64(v)
		if !ok {
			return nil, convertError(typeID, v)
		}
		return Float{Type: typeID, V: f}, nil

	case typeID == TypeCharStr || typeID == TypeCharStr16:
		s, ok := v.(string)
		if !ok {
			return nil, convertError(typeID, v)
		}
		if len(s) > maxStringLen(typeID) {
			return nil, fmt.Errorf("zcl: string too long for %s: %d (max %d)", TypeName(typeID), len(s), maxStringLen(typeID))
		}
		return String{Type: typeID, V: s}, nil

	case typeID == TypeOctetStr || typeID == TypeOctetStr16:
		b, ok := v.([]byte)
		if !ok {
			return nil, convertError(typeID, v)
		}
		if len(b) > maxStringLen(typeID) {
			return nil, fmt.Errorf("zcl: data too long for %s: %d (max %d)", TypeName(typeID), len(b), maxStringLen(typeID))
		}
		return Octets{Type: typeID, V: append([]byte(nil), b...)}, nil

	case typeID == TypeEUI64:
		switch a := v.(type) {
		case [8]byte:
			return EUI64(a), nil
		case zigbee.IEEEAddress:
			return EUI64(a), nil
		case string:
			addr, err := zigbee.ParseIEEE(a)
			if err != nil {
				return nil, fmt.Errorf("zcl: EUI64: %w", err)
			}
			return EUI64(addr), nil
		case []byte:
			if len(a) != 8 {
				return nil, fmt.Errorf("zcl: EUI64 requires 8 bytes, got %d", len(a))
			}
			var out EUI64
			copy(out[:], a)
			return out, nil
		}
		return nil, convertError(typeID, v)

	case typeID == TypeNoData:
		return nil, fmt.Errorf("zcl: type nodata carries no value")
	}

	b, ok := v.([]byte)
	if !ok {
		return nil, convertError(typeID, v)
	}
	return Raw{Type: typeID, V: append([]byte(nil), b...)}, nil
}

// Decode decodes a ZCL typed value from data, returning the value and the bytes consumed.
// A nil Value with no error means the type carries no value or the device sent the invalid marker.
func Decode(typeID uint8, data []byte) (Value, int, error) {
	size := TypeSize(typeID)
	if size == 0 {
		return nil, 0, nil
	}
	if size < 0 {
		return decodeVariable(typeID, data)
	}
	if len(data) < size {
		return nil, 0, fmt.Errorf("zcl: not enough data for type 0x%02X: need %d, have %d", typeID, size, len(data))
	}

	switch typeID {
	case TypeBool:
		return Bool(data[0] != 0), 1, nil
	case TypeFloat16:
		half := float16.Frombits(binary.LittleEndian.Uint16(data))
		return Float{Type: typeID, V: float64(half.Float32())}, 2, nil
	case TypeFloat32:
		return Float{Type: typeID, V: float64(math.Float32frombits(binary.LittleEndian.Uint32(data)))}, 4, nil
	case TypeFloat64:
		return Float{Type: typeID, V: math.Float64frombits(binary.LittleEndian.Uint64(data))}, 8, nil
	case TypeEUI64:
		var out EUI64
		for i := 0; i < 8; i++ {
			out[i] = data[7-i]
		}
		return out, 8, nil
	}

	if w := signedWidth(typeID); w > 0 {
		u := readUint(data, w)
		shift := 64 - 8*uint(w)
		return Signed{Type: typeID, V: int64(u<<shift) >> shift}, w, nil
	}

	u := readUint(data, size)
	switch {
	case isEnum(typeID):
		return Enum{Type: typeID, V: uint16(u)}, size, nil
	case isBitmap(typeID):
		return Bitmap{Type: typeID, V: uint32(u)}, size, nil
	}
	return Unsigned{Type: typeID, V: u}, size, nil
}

func decodeVariable(typeID uint8, data []byte) (Value, int, error) {
	switch typeID {
	case TypeOctetStr, TypeCharStr, TypeOctetStr16, TypeCharStr16:
		prefix := 1
		if typeID == TypeOctetStr16 || typeID == TypeCharStr16 {
			prefix = 2
		}
		if len(data) < prefix {
			return nil, 0, fmt.Errorf("zcl: no length prefix for %s", TypeName(typeID))
		}
		length := int(readUint(data, prefix))
		if length == int(maxUnsigned(prefix)) {
			return nil, prefix, nil // invalid marker
		}
		if len(data) < prefix+length {
			return nil, 0, fmt.Errorf("zcl: %s truncated: need %d, have %d", TypeName(typeID), length, len(data)-prefix)
		}
		body := data[prefix : prefix+length]
		if typeID == TypeCharStr || typeID == TypeCharStr16 {
			return String{Type: typeID, V: string(body)}, prefix + length, nil
		}
		return Octets{Type: typeID, V: append([]byte(nil), body...)}, prefix + length, nil

	case TypeArray:
		// element type, 16-bit count, elements
		if len(data) < 3 {
			return nil, 0, fmt.Errorf("zcl: array header truncated")
		}
		elemType := data[0]
		count := int(binary.LittleEndian.Uint16(data[1:3]))
		n := 3
		if count != 0xFFFF {
			for i := 0; i < count; i++ {
				_, used, err := Decode(elemType, data[n:])
				if err != nil {
					return nil, 0, fmt.Errorf("zcl: array element %d: %w", i, err)
				}
				n += used
			}
		}
		return Raw{Type: typeID, V: append([]byte(nil), data[:n]...)}, n, nil

	case TypeStruct:
		// 16-bit count, then (type, value) pairs
		if len(data) < 2 {
			return nil, 0, fmt.Errorf("zcl: struct header truncated")
		}
		count := int(binary.LittleEndian.Uint16(data[:2]))
		n := 2
		if count != 0xFFFF {
			for i := 0; i < count; i++ {
				if n >= len(data) {
					return nil, 0, fmt.Errorf("zcl: struct element %d truncated", i)
				}
				_, used, err := Decode(data[n], data[n+1:])
				if err != nil {
					return nil, 0, fmt.Errorf("zcl: struct element %d: %w", i, err)
				}
				n += 1 + used
			}
		}
		return Raw{Type: typeID, V: append([]byte(nil), data[:n]...)}, n, nil
	}

	return nil, 0, fmt.Errorf("zcl: unsupported variable type 0x%02X", typeID)
}

// Encode encodes a value into ZCL wire format.
func Encode(v Value) ([]byte, error) {
	switch x := v.(type) {
	case nil:
		return nil, fmt.Errorf("zcl: encode nil value")
	case Bool:
		if x {
			return []byte{1}, nil
		}
		return []byte{0}, nil
	case Unsigned:
		return encodeUnsigned(x.Type, x.V)
	case Enum:
		return encodeUnsigned(x.Type, uint64(x.V))
	case Bitmap:
		return encodeUnsigned(x.Type, uint64(x.V))
	case Signed:
		w := signedWidth(x.Type)
		if w == 0 {
			return nil, fmt.Errorf("zcl: %s is not a signed type", TypeName(x.Type))
		}
		lo, hi := signedRange(w)
		if x.V < lo || x.V > hi {
			return nil, fmt.Errorf("zcl: value %d overflows %s (range %d..%d)", x.V, TypeName(x.Type), lo, hi)
		}
		return putUint(uint64(x.V), w), nil
	case Float:
		switch x.Type {
		case TypeFloat16:
			return putUint(uint64(float16.Fromfloat32(float32(x.V)).Bits()), 2), nil
		case TypeFloat32:
			return putUint(uint64(math.Float32bits(float32(x.V))), 4), nil
		case TypeFloat64:
			return putUint(math.Float64bits(x.V), 8), nil
		}
		return nil, fmt.Errorf("zcl: %s is not a float type", TypeName(x.Type))
	case String:
		return encodeString(x.Type, []byte(x.V))
	case Octets:
		return encodeString(x.Type, x.V)
	case EUI64:
		out := make([]byte, 8)
		for i := 0; i < 8; i++ {
			out[i] = x[7-i]
		}
		return out, nil
	case Raw:
		return append([]byte(nil), x.V...), nil
	}
	return nil, fmt.Errorf("zcl: encode not implemented for %T", v)
}

func encodeUnsigned(typeID uint8, u uint64) ([]byte, error) {
	w := unsignedWidth(typeID)
	if w == 0 {
		return nil, fmt.Errorf("zcl: %s is not an unsigned type", TypeName(typeID))
	}
	if u > maxUnsigned(w) {
		return nil, fmt.Errorf("zcl: value %d overflows %s (max %d)", u, TypeName(typeID), maxUnsigned(w))
	}
	return putUint(u, w), nil
}

func encodeString(typeID uint8, body []byte) ([]byte, error) {
	prefix := 1
	switch typeID {
	case TypeCharStr, TypeOctetStr:
	case TypeCharStr16, TypeOctetStr16:
		prefix = 2
	default:
		return nil, fmt.Errorf("zcl: %s is not a string type", TypeName(typeID))
	}
	if len(body) > maxStringLen(typeID) {
		return nil, fmt.Errorf("zcl: data too long for %s: %d (max %d)", TypeName(typeID), len(body), maxStringLen(typeID))
	}
	return append(putUint(uint64(len(body)), prefix), body...), nil
}

func readUint(data []byte, width int) uint64 {
	var u uint64
	for i := width - 1; i >= 0; i-- {
		u = u<<8 | uint64(data[i])
	}
	return u
}

func putUint(u uint64, width int) []byte {
	out := make([]byte, width)
	for i := range out {
		out[i] = byte(u >> (8 * i))
	}
	return out
}

func maxUnsigned(width int) uint64 {
	if width >= 8 {
		return math.MaxUint64
	}
	return 1<<(8*uint(width)) - 1
}

func signedRange(width int) (int64, int64) {
	hi := int64(1)<<(8*uint(width)-1) - 1
	return -hi - 1, hi
}

// maxStringLen excludes the all-ones length reserved as the invalid marker.
func maxStringLen(typeID uint8) int {
	if typeID == TypeCharStr16 || typeID == TypeOctetStr16 {
		return 0xFFFE
	}
	return 0xFE
}

func convertError(typeID uint8, v any) error {
	return fmt.Errorf("zcl: cannot convert %T to %s", v, TypeName(typeID))
}

func toBool(v any) (bool, bool) {
	switch val := v.(type) {
	case bool:
		return val, true
	case float64:
		return val != 0, true
	case int:
		return val != 0, true
	}
	if u, ok := toUint64(v); ok {
		return u != 0, true
	}
	return false, false
}

func toUint64(v any) (uint64, bool) {
	switch val := v.(type) {
	case uint8:
		return uint64(val), true
	case uint16:
		return uint64(val), true
	case uint32:
		return uint64(val), true
	case uint64:
		return val, true
	case uint:
		return uint64(val), true
	case float32:
		return toUint64(float64(val))
	case float64:
		if val < 0 || val != math.Trunc(val) || val > math.MaxUint64 {
			return 0, false
		}
		return uint64(val), true
	}
	if i, ok := toInt64(v); ok && i >= 0 {
		return uint64(i), true
	}
	return 0, false
}

func toInt64(v any) (int64, bool) {
	switch val := v.(type) {
	case int:
		return int64(val), true
	case int8:
		return int64(val), true
	case int16:
		return int64(val), true
	case int32:
		return int64(val), true
	case int64:
		return val, true
	case uint8:
		return int64(val), true
	case uint16:
		return int64(val), true
	case uint32:
		return int64(val), true
	case uint64:
		if val > math.MaxInt64 {
			return 0, false
		}
		return int64(val), true
	case float32:
		return toInt64(float64(val))
	case float64:
		if val != math.Trunc(val) || val > math.MaxInt64 || val < math.MinInt64 {
			return 0, false
		}
		return int64(val), true
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case float32:
		return float64(val), true
	case float64:
		return val, true
	}
	if i, ok := toInt64(v); ok {
		return float64(i), true
	}
	if u, ok := toUint64(v); ok {
		return float64(u), true
	}
	return 0, false
}

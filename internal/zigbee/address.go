// Package zigbee holds network addressing primitives shared by the ZCL and ZDO layers.
package zigbee

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// IEEEAddress is a 64-bit extended address, most significant byte first.
type IEEEAddress [8]byte

// String formats the address as 16 upper-case hex digits.
func (a IEEEAddress) String() string {
	return fmt.Sprintf("%016X", [8]byte(a))
}

// IsZero reports whether the address is unset.
func (a IEEEAddress) IsZero() bool {
	return a == IEEEAddress{}
}

// MarshalText implements encoding.TextMarshaler.
func (a IEEEAddress) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *IEEEAddress) UnmarshalText(text []byte) error {
	parsed, err := ParseIEEE(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ParseIEEE parses "DD:DD:DD:DD:DD:DD:DD:DD", "0xDDDDDDDDDDDDDDDD" or "DDDDDDDDDDDDDDDD".
func ParseIEEE(s string) (IEEEAddress, error) {
	var result IEEEAddress
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	s = strings.ReplaceAll(s, ":", "")
	b, err := hex.DecodeString(s)
	if err != nil {
		return result, fmt.Errorf("parse ieee address: %w", err)
	}
	if len(b) != 8 {
		return result, fmt.Errorf("ieee address must be 8 bytes, got %d", len(b))
	}
	copy(result[:], b)
	return result, nil
}

// Addressing modes used by APS and ZDO binding.
const (
	AddrModeGroup   uint8 = 0x01
	AddrModeNetwork uint8 = 0x02
	AddrModeIEEE    uint8 = 0x03
)

// EndpointAddress identifies one application endpoint on a node.
type EndpointAddress struct {
	NetworkAddress uint16 `json:"network_address"`
	Endpoint       uint8  `json:"endpoint"`
}

func (e EndpointAddress) String() string {
	return fmt.Sprintf("0x%04X/%d", e.NetworkAddress, e.Endpoint)
}

package zigbee

import (
	"encoding/json"
	"testing"
)

func TestParseIEEE(t *testing.T) {
	want := IEEEAddress{0x00, 0x12, 0x4B, 0x00, 0x12, 0x34, 0xAB, 0xCD}
	tests := []struct {
		name    string
		input   string
		want    IEEEAddress
		wantErr bool
	}{
		{"plain hex", "00124B001234ABCD", want, false},
		{"colon separated", "00:12:4B:00:12:34:AB:CD", want, false},
		{"0x prefix", "0x00124B001234ABCD", want, false},
		{"lower case", "00124b001234abcd", want, false},
		{"all zeros", "0000000000000000", IEEEAddress{}, false},
		{"too short", "00124B00", IEEEAddress{}, true},
		{"too long", "00124B001234ABCDEF", IEEEAddress{}, true},
		{"not hex", "ZZ124B001234ABCD", IEEEAddress{}, true},
		{"empty", "", IEEEAddress{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseIEEE(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseIEEE(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseIEEE(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestIEEEAddressString(t *testing.T) {
	a := IEEEAddress{0x00, 0x12, 0x4B, 0x00, 0x12, 0x34, 0xAB, 0xCD}
	if got := a.String(); got != "00124B001234ABCD" {
		t.Errorf("String() = %q", got)
	}
	if a.IsZero() {
		t.Error("IsZero() = true for non-zero address")
	}
	if !(IEEEAddress{}).IsZero() {
		t.Error("IsZero() = false for zero address")
	}
}

func TestIEEEAddressJSON(t *testing.T) {
	type wrapper struct {
		Addr IEEEAddress `json:"addr"`
	}
	in := wrapper{Addr: IEEEAddress{0xDD, 0xCC, 0xBB, 0xAA, 0x00, 0x11, 0x22, 0x33}}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"addr":"DDCCBBAA00112233"}` {
		t.Errorf("marshal = %s", data)
	}

	var out wrapper
	if err := json.Unmarshal([]byte(`{"addr":"DD:CC:BB:AA:00:11:22:33"}`), &out); err != nil {
		t.Fatal(err)
	}
	if out.Addr != in.Addr {
		t.Errorf("unmarshal = %s, want %s", out.Addr, in.Addr)
	}
}

func TestEndpointAddressString(t *testing.T) {
	e := EndpointAddress{NetworkAddress: 0x1A2B, Endpoint: 1}
	if got := e.String(); got != "0x1A2B/1" {
		t.Errorf("String() = %q", got)
	}
}

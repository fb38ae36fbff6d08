package coordinator

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"zcl-gateway/internal/zcl"
)

var quietLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func writeDeviceFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestDeviceDBReplacesModel(t *testing.T) {
	db := NewDeviceDB()
	db.Add(DeviceDefinition{Manufacturer: "LUMI", Model: "lumi.plug", Bind: []uint16{0x0006}})
	db.Add(DeviceDefinition{Manufacturer: "LUMI", Model: "lumi.plug", Bind: []uint16{0x0006, 0x0702}})
	db.Add(DeviceDefinition{Manufacturer: "LUMI.", Model: "lumi.plug"})

	if db.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", db.Len())
	}
	if got := db.Lookup("LUMI", "lumi.plug"); got == nil || len(got.Bind) != 2 {
		t.Errorf("Lookup(LUMI) = %+v", got)
	}
	if db.Lookup("lumi", "lumi.plug") != nil {
		t.Error("lookup is case sensitive")
	}
}

func TestLoadDeviceDirExtendsRegistry(t *testing.T) {
	registry := zcl.NewRegistry(quietLogger)
	registry.Register(zcl.ClusterDef{
		ID:         0x0006,
		Name:       "On/Off",
		Attributes: []zcl.AttributeDef{{ID: 0x0000, Name: "OnOff", Type: zcl.TypeBool, Access: zcl.AccessRead}},
	})

	dir := writeDeviceFiles(t, map[string]string{
		"lumi.json": `{
			"clusters": [
				{"id": 64704, "name": "LUMI Private", "attributes": [{"id": 247, "name": "Status", "type": 65, "access": 1}]},
				{"id": 6, "attributes": [{"id": 61440, "name": "PowerOutageMemory", "type": 16, "access": 3}]}
			],
			"devices": [
				{"manufacturer": "LUMI", "model": "lumi.weather", "bind": [1026, 1029],
				 "reporting": [{"cluster": 1026, "attribute": 0, "min": 5, "max": 600, "change": 50}]}
			]
		}`,
		"sonoff.json": `{
			"manufacturers": [
				{"name": "SONOFF", "models": [{"model": "BASICZBR3", "bind": [6]}, {"model": "S26R2ZB", "bind": [6]}]}
			]
		}`,
		"notes.txt": "ignored",
	})

	db, err := LoadDeviceDir(dir, registry, quietLogger)
	if err != nil {
		t.Fatal(err)
	}

	if def := registry.Get(0xFCC0); def == nil || def.Name != "LUMI Private" {
		t.Errorf("private cluster = %+v", def)
	}
	onoff := registry.Get(0x0006)
	if onoff.Name != "On/Off" || onoff.FindAttribute(0xF000) == nil {
		t.Errorf("On/Off not extended: %+v", onoff)
	}

	if db.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", db.Len())
	}
	weather := db.Lookup("LUMI", "lumi.weather")
	if weather == nil || len(weather.Reporting) != 1 {
		t.Fatalf("lumi.weather = %+v", weather)
	}
	if e := weather.Reporting[0]; e.Min != 5 || e.Max != 600 || e.Change != 50 {
		t.Errorf("reporting = %+v", e)
	}
	if db.Lookup("SONOFF", "S26R2ZB") == nil {
		t.Error("grouped model missing manufacturer")
	}
}

func TestLoadDeviceDirEmpty(t *testing.T) {
	for _, dir := range []string{"", filepath.Join(t.TempDir(), "absent")} {
		db, err := LoadDeviceDir(dir, zcl.NewRegistry(quietLogger), quietLogger)
		if err != nil {
			t.Errorf("LoadDeviceDir(%q): %v", dir, err)
			continue
		}
		if db.Len() != 0 {
			t.Errorf("LoadDeviceDir(%q).Len() = %d", dir, db.Len())
		}
	}
}

func TestLoadDeviceDirErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"truncated", `{"devices": [`, "parse"},
		{"min above max", `{"devices": [{"manufacturer": "X", "model": "Y",
			"reporting": [{"cluster": 1026, "attribute": 0, "min": 900, "max": 60}]}]}`, "exceeds max"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeDeviceFiles(t, map[string]string{"bad.json": tt.body})
			_, err := LoadDeviceDir(dir, zcl.NewRegistry(quietLogger), quietLogger)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want %q", err, tt.want)
			}
		})
	}
}

package coordinator

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"zcl-gateway/internal/zcl"
)

// DeviceDefinition is the provisioning profile of one device model: the
// clusters bound to the gateway and the attributes configured to report.
type DeviceDefinition struct {
	Manufacturer string           `json:"manufacturer"`
	Model        string           `json:"model"`
	Bind         []uint16         `json:"bind"`
	Reporting    []ReportingEntry `json:"reporting,omitempty"`
}

// ReportingEntry is one reporting configuration applied on provisioning.
// Change only matters for analog attributes.
type ReportingEntry struct {
	Cluster   uint16  `json:"cluster"`
	Attribute uint16  `json:"attribute"`
	Min       uint16  `json:"min"`
	Max       uint16  `json:"max"`
	Change    float64 `json:"change"`
}

func (e ReportingEntry) validate() error {
	if e.Max != 0 && e.Max != 0xFFFF && e.Min > e.Max {
		return fmt.Errorf("cluster 0x%04X attribute 0x%04X: min %d exceeds max %d",
			e.Cluster, e.Attribute, e.Min, e.Max)
	}
	return nil
}

type modelKey struct {
	manufacturer string
	model        string
}

// DeviceDB maps manufacturer and model names to device definitions.
type DeviceDB struct {
	defs map[modelKey]*DeviceDefinition
}

func NewDeviceDB() *DeviceDB {
	return &DeviceDB{defs: make(map[modelKey]*DeviceDefinition)}
}

// Add stores def, replacing any definition for the same model.
func (db *DeviceDB) Add(def DeviceDefinition) {
	db.defs[modelKey{def.Manufacturer, def.Model}] = &def
}

// Lookup returns the definition for the model, or nil.
func (db *DeviceDB) Lookup(manufacturer, model string) *DeviceDefinition {
	return db.defs[modelKey{manufacturer, model}]
}

func (db *DeviceDB) Len() int { return len(db.defs) }

// deviceFile is the layout of a *.json file in the devices directory.
// Models may be listed flat or grouped under their manufacturer.
type deviceFile struct {
	Clusters      []zcl.ClusterDef   `json:"clusters,omitempty"`
	Devices       []DeviceDefinition `json:"devices,omitempty"`
	Manufacturers []struct {
		Name   string             `json:"name"`
		Models []DeviceDefinition `json:"models"`
	} `json:"manufacturers,omitempty"`
}

// definitions flattens both model layouts.
func (f *deviceFile) definitions() []DeviceDefinition {
	out := append([]DeviceDefinition(nil), f.Devices...)
	for _, group := range f.Manufacturers {
		for _, d := range group.Models {
			d.Manufacturer = group.Name
			out = append(out, d)
		}
	}
	return out
}

func readDeviceFile(path string) (*deviceFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var f deviceFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for _, d := range f.definitions() {
		for _, e := range d.Reporting {
			if err := e.validate(); err != nil {
				return nil, fmt.Errorf("%s: %s/%s: %w", path, d.Manufacturer, d.Model, err)
			}
		}
	}
	return &f, nil
}

// LoadDeviceDir loads every *.json file in dir. Cluster definitions found in
// the files are registered with registry, extending standard clusters with
// manufacturer attributes before any instance is built. A missing directory
// yields an empty database.
func LoadDeviceDir(dir string, registry *zcl.Registry, logger *slog.Logger) (*DeviceDB, error) {
	db := NewDeviceDB()
	if dir == "" {
		return db, nil
	}
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return db, fmt.Errorf("glob devices dir: %w", err)
	}

	for _, path := range paths {
		f, err := readDeviceFile(path)
		if err != nil {
			return db, err
		}
		for _, def := range f.Clusters {
			registry.Register(def)
		}
		defs := f.definitions()
		for _, d := range defs {
			db.Add(d)
		}
		logger.Debug("device file loaded", "file", filepath.Base(path),
			"clusters", len(f.Clusters), "models", len(defs))
	}

	logger.Info("device definitions loaded", "dir", dir, "files", len(paths), "models", db.Len())
	return db, nil
}

package mqtt

import (
	"fmt"
	"math"

	"zcl-gateway/internal/zcl"
)

// discoveryMsg is a Home Assistant MQTT discovery payload.
type discoveryMsg struct {
	Topic   string // e.g. "homeassistant/sensor/zcl_00158D.../temperature/config"
	Payload []byte // JSON, empty means delete
}

// haDevice is the "device" block in HA discovery.
type haDevice struct {
	Identifiers  []string `json:"identifiers"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Model        string   `json:"model,omitempty"`
	Name         string   `json:"name"`
}

// haDiscovery is a generic HA discovery payload.
type haDiscovery struct {
	Name              string   `json:"name"`
	UniqueID          string   `json:"unique_id"`
	StateTopic        string   `json:"state_topic"`
	AvailabilityTopic string   `json:"availability_topic"`
	ValueTemplate     string   `json:"value_template,omitempty"`
	UnitOfMeasurement string   `json:"unit_of_measurement,omitempty"`
	DeviceClass       string   `json:"device_class,omitempty"`
	StateClass        string   `json:"state_class,omitempty"`
	PayloadOn         string   `json:"payload_on,omitempty"`
	PayloadOff        string   `json:"payload_off,omitempty"`
	Device            haDevice `json:"device"`
}

// property maps one well-known attribute to a device state property.
type property struct {
	Name        string
	Component   string // sensor or binary_sensor
	Suffix      string
	DeviceClass string
	Unit        string
	convert     func(zcl.Value) any
}

type propertyKey struct {
	cluster uint16
	attr    uint16
}

var properties = map[propertyKey]property{
	{0x0006, 0x0000}: {Name: "state", Component: "binary_sensor", Suffix: "State", DeviceClass: "power", convert: onOff},
	{0x0008, 0x0000}: {Name: "brightness", Component: "sensor", Suffix: "Brightness", convert: plain},
	{0x0402, 0x0000}: {Name: "temperature", Component: "sensor", Suffix: "Temperature", DeviceClass: "temperature", Unit: "°C", convert: hundredths},
	{0x0405, 0x0000}: {Name: "humidity", Component: "sensor", Suffix: "Humidity", DeviceClass: "humidity", Unit: "%", convert: hundredths},
	{0x0403, 0x0000}: {Name: "pressure", Component: "sensor", Suffix: "Pressure", DeviceClass: "pressure", Unit: "hPa", convert: plain},
	{0x0400, 0x0000}: {Name: "illuminance", Component: "sensor", Suffix: "Illuminance", DeviceClass: "illuminance", Unit: "lx", convert: lux},
	{0x0406, 0x0000}: {Name: "occupancy", Component: "binary_sensor", Suffix: "Occupancy", DeviceClass: "occupancy", convert: bit0},
	{0x0500, 0x0002}: {Name: "zone", Component: "binary_sensor", Suffix: "Zone", DeviceClass: "safety", convert: bit0},
	{0x0001, 0x0021}: {Name: "battery", Component: "sensor", Suffix: "Battery", DeviceClass: "battery", Unit: "%", convert: halves},
	{0x000C, 0x0055}: {Name: "analog", Component: "sensor", Suffix: "Analog Input", convert: plain},
}

// lookupProperty returns the state property for a cluster attribute, if any.
func lookupProperty(cluster, attr uint16) (property, bool) {
	p, ok := properties[propertyKey{cluster, attr}]
	return p, ok
}

func plain(v zcl.Value) any { return v.Native() }

func number(v zcl.Value) (float64, bool) {
	switch n := v.Native().(type) {
	case uint64:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint16:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func scaled(v zcl.Value, div float64) any {
	n, ok := number(v)
	if !ok {
		return v.Native()
	}
	return math.Round(n/div*100) / 100
}

func hundredths(v zcl.Value) any { return scaled(v, 100) }
func halves(v zcl.Value) any     { return scaled(v, 2) }

// lux converts the 10000*log10(lx)+1 encoding used by illuminance measurement.
func lux(v zcl.Value) any {
	n, ok := number(v)
	if !ok || n == 0 {
		return 0.0
	}
	return math.Round(math.Pow(10, (n-1)/10000))
}

func onOff(v zcl.Value) any {
	if b, ok := v.Native().(bool); ok && b {
		return "ON"
	}
	return "OFF"
}

func bit0(v zcl.Value) any {
	n, ok := number(v)
	if ok && uint64(n)&1 == 1 {
		return "ON"
	}
	return "OFF"
}

func deviceIdentifier(ieee string) string {
	return "zcl_" + ieee
}

// buildDiscovery returns the discovery message announcing prop for a device.
func buildDiscovery(ieee string, dev haDevice, prefix string, prop property) discoveryMsg {
	nodeID := deviceIdentifier(ieee)
	payload := haDiscovery{
		Name:              dev.Name + " " + prop.Suffix,
		UniqueID:          nodeID + "_" + prop.Name,
		StateTopic:        prefix + "/" + ieee,
		AvailabilityTopic: prefix + "/bridge/state",
		ValueTemplate:     "{{ value_json." + prop.Name + " }}",
		UnitOfMeasurement: prop.Unit,
		DeviceClass:       prop.DeviceClass,
		Device:            dev,
	}
	if prop.Component == "sensor" {
		payload.StateClass = "measurement"
	} else {
		payload.PayloadOn = "ON"
		payload.PayloadOff = "OFF"
	}
	return discoveryMsg{
		Topic:   fmt.Sprintf("homeassistant/%s/%s/%s/config", prop.Component, nodeID, prop.Name),
		Payload: mustJSON(payload),
	}
}

// buildRemoveDiscovery returns empty retained messages clearing every
// property a device could have announced.
func buildRemoveDiscovery(ieee string) []discoveryMsg {
	nodeID := deviceIdentifier(ieee)
	msgs := make([]discoveryMsg, 0, len(properties))
	for _, p := range properties {
		msgs = append(msgs, discoveryMsg{
			Topic: fmt.Sprintf("homeassistant/%s/%s/%s/config", p.Component, nodeID, p.Name),
		})
	}
	return msgs
}

package mqtt

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"zcl-gateway/internal/cluster"
	"zcl-gateway/internal/store"
	"zcl-gateway/internal/zcl"
	"zcl-gateway/internal/zigbee"
)

// NodeLookup resolves device metadata for discovery payloads.
type NodeLookup interface {
	NodeByIEEE(addr zigbee.IEEEAddress) (*store.Node, error)
}

// Publisher is an attribute listener that publishes retained state. Every
// update goes to <prefix>/state/<ieee>/<ep>/<cluster>/<attribute>; well-known
// measurements are also folded into a per-device document at <prefix>/<ieee>
// and announced with Home Assistant discovery.
type Publisher struct {
	publish func(topic string, payload []byte, retained bool)
	prefix  string
	nodes   NodeLookup
	logger  *slog.Logger

	mu        sync.Mutex
	states    map[string]map[string]any // IEEE -> property map
	announced map[string]map[string]bool
}

// NewPublisher publishes through the transport's broker connection.
func NewPublisher(t *Transport, nodes NodeLookup, logger *slog.Logger) *Publisher {
	p := newPublisher(t.Prefix(), nodes, logger)
	client := t.Client()
	p.publish = func(topic string, payload []byte, retained bool) {
		publishAsync(client, p.logger, topic, payload, retained)
	}
	return p
}

func newPublisher(prefix string, nodes NodeLookup, logger *slog.Logger) *Publisher {
	return &Publisher{
		prefix:    prefix,
		nodes:     nodes,
		logger:    logger.With("component", "mqtt-publisher"),
		states:    make(map[string]map[string]any),
		announced: make(map[string]map[string]bool),
	}
}

type attributeState struct {
	Value   any       `json:"value"`
	Type    string    `json:"type"`
	Status  string    `json:"status"`
	Updated time.Time `json:"updated"`
}

// AttributeUpdated implements cluster.AttributeListener.
func (p *Publisher) AttributeUpdated(c *cluster.Cluster, attr cluster.Attribute) {
	ep := c.Endpoint()
	ieee := ep.IEEEAddress.String()

	st := attributeState{Type: zcl.TypeName(attr.DataType), Status: "ok", Updated: attr.LastUpdate}
	if attr.HasValue() {
		st.Value = attr.Value.Native()
	} else {
		st.Status = "no value"
	}
	role := ""
	if c.IsClient() {
		role = "/client"
	}
	topic := fmt.Sprintf("%s/state/%s/%d/%04x%s/%s", p.prefix, ieee, ep.Address.Endpoint, c.ID(), role, attr.Name)
	p.publish(topic, mustJSON(st), true)

	if c.IsClient() || !attr.HasValue() {
		return
	}
	prop, ok := lookupProperty(c.ID(), attr.ID)
	if !ok {
		return
	}
	p.updateState(ep.IEEEAddress, prop, prop.convert(attr.Value))
}

func (p *Publisher) updateState(addr zigbee.IEEEAddress, prop property, value any) {
	ieee := addr.String()

	p.mu.Lock()
	state, ok := p.states[ieee]
	if !ok {
		state = make(map[string]any)
		p.states[ieee] = state
	}
	state[prop.Name] = value
	state["last_seen"] = time.Now().Format(time.RFC3339)
	payload := mustJSON(state)

	announced, ok := p.announced[ieee]
	if !ok {
		announced = make(map[string]bool)
		p.announced[ieee] = announced
	}
	announce := !announced[prop.Name]
	announced[prop.Name] = true
	p.mu.Unlock()

	if announce {
		msg := buildDiscovery(ieee, p.haDevice(addr), p.prefix, prop)
		p.publish(msg.Topic, msg.Payload, true)
		p.logger.Info("published HA discovery", "ieee", ieee, "property", prop.Name)
	}
	p.publish(p.prefix+"/"+ieee, payload, true)
}

func (p *Publisher) haDevice(addr zigbee.IEEEAddress) haDevice {
	ieee := addr.String()
	dev := haDevice{Identifiers: []string{deviceIdentifier(ieee)}, Name: ieee}
	if p.nodes == nil {
		return dev
	}
	n, err := p.nodes.NodeByIEEE(addr)
	if err != nil {
		return dev
	}
	dev.Manufacturer = n.Manufacturer
	dev.Model = n.Model
	switch {
	case n.Manufacturer != "" && n.Model != "":
		dev.Name = n.Manufacturer + " " + n.Model
	case n.Model != "":
		dev.Name = n.Model
	}
	return dev
}

// Forget clears retained discovery and state for a removed device.
func (p *Publisher) Forget(addr zigbee.IEEEAddress) {
	ieee := addr.String()
	for _, msg := range buildRemoveDiscovery(ieee) {
		p.publish(msg.Topic, msg.Payload, true)
	}
	p.publish(p.prefix+"/"+ieee, nil, true)

	p.mu.Lock()
	delete(p.states, ieee)
	delete(p.announced, ieee)
	p.mu.Unlock()
}

func publishAsync(client pahomqtt.Client, logger *slog.Logger, topic string, payload []byte, retained bool) {
	token := client.Publish(topic, 1, retained, payload)
	go func() {
		if !token.WaitTimeout(5 * time.Second) {
			logger.Warn("MQTT publish timeout", "topic", topic)
		} else if err := token.Error(); err != nil {
			logger.Warn("MQTT publish error", "topic", topic, "err", err)
		}
	}()
}

func mustJSON(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}

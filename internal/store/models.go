package store

import (
	"time"

	"zcl-gateway/internal/zigbee"
)

// Node is a directory entry. Index 0 is the local node.
type Node struct {
	Index          int                `json:"index"`
	IEEEAddress    zigbee.IEEEAddress `json:"ieee_address"`
	NetworkAddress uint16             `json:"network_address"`
	Manufacturer   string             `json:"manufacturer,omitempty"`
	Model          string             `json:"model,omitempty"`
	Endpoints      []Endpoint         `json:"endpoints,omitempty"`
	LastSeen       time.Time          `json:"last_seen"`
}

// Endpoint is one application endpoint of a node.
type Endpoint struct {
	ID          uint8    `json:"id"`
	ProfileID   uint16   `json:"profile_id"`
	DeviceID    uint16   `json:"device_id"`
	InClusters  []uint16 `json:"in_clusters"`
	OutClusters []uint16 `json:"out_clusters"`
}

// Endpoint returns the endpoint with id.
func (n *Node) Endpoint(id uint8) (Endpoint, bool) {
	for _, ep := range n.Endpoints {
		if ep.ID == id {
			return ep, true
		}
	}
	return Endpoint{}, false
}

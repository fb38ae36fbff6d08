// Package zdo holds the ZigBee Device Object requests used by the cluster layer.
package zdo

import "zcl-gateway/internal/zigbee"

// ZDO cluster IDs. Responses set the high bit of the request cluster.
const (
	BindRequestCluster    uint16 = 0x0021
	UnbindRequestCluster  uint16 = 0x0022
	BindResponseCluster   uint16 = 0x8021
	UnbindResponseCluster uint16 = 0x8022

	responseFlag uint16 = 0x8000
)

// ZDO status codes.
const (
	StatusSuccess       uint8 = 0x00
	StatusNotSupported  uint8 = 0x84
	StatusNoEntry       uint8 = 0x88
	StatusTableFull     uint8 = 0x8C
	StatusNotAuthorized uint8 = 0x8D
)

// BindRequest asks the node at Target to add a binding from its source
// endpoint and cluster to a destination.
type BindRequest struct {
	Target      uint16 // network address of the node holding the binding table
	SrcAddress  zigbee.IEEEAddress
	SrcEndpoint uint8
	BindCluster uint16
	DstAddrMode uint8
	DstAddress  zigbee.IEEEAddress
	DstEndpoint uint8
	TSN         uint8
}

func (r *BindRequest) ClusterID() uint16          { return BindRequestCluster }
func (r *BindRequest) TransactionID() uint8       { return r.TSN }
func (r *BindRequest) SetTransactionID(tsn uint8) { r.TSN = tsn }

// UnbindRequest removes a binding; it carries the same fields as BindRequest.
type UnbindRequest struct {
	BindRequest
}

func (r *UnbindRequest) ClusterID() uint16 { return UnbindRequestCluster }

// BindResponse answers both bind and unbind requests; Cluster tells them apart.
type BindResponse struct {
	Source  uint16
	Cluster uint16
	Status  uint8
	TSN     uint8
}

func (r *BindResponse) ClusterID() uint16          { return r.Cluster }
func (r *BindResponse) TransactionID() uint8       { return r.TSN }
func (r *BindResponse) SetTransactionID(tsn uint8) { r.TSN = tsn }

// IsErrorResponse reports whether the node refused the request.
func (r *BindResponse) IsErrorResponse() bool { return r.Status != StatusSuccess }

// IsResponseTo reports whether cluster is the response cluster for request cluster req.
func IsResponseTo(req, cluster uint16) bool {
	return cluster == req|responseFlag
}

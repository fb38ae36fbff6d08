package cluster

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"zcl-gateway/internal/transport"
	"zcl-gateway/internal/zcl"
	"zcl-gateway/internal/zigbee"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

var (
	remoteIEEE = zigbee.IEEEAddress{0x00, 0x15, 0x8D, 0x00, 0x01, 0x02, 0x03, 0x04}
	localIEEE  = zigbee.IEEEAddress{0x00, 0x12, 0x4B, 0x00, 0x0A, 0x0B, 0x0C, 0x0D}
	remoteEP   = Endpoint{
		IEEEAddress: remoteIEEE,
		Address:     zigbee.EndpointAddress{NetworkAddress: 0x1A2B, Endpoint: 2},
	}
)

var testDef = zcl.ClusterDef{
	ID:   0x0402,
	Name: "Temperature Measurement",
	Attributes: []zcl.AttributeDef{
		{ID: 0x0000, Name: "MeasuredValue", Type: zcl.TypeInt16, Access: zcl.AccessRead | zcl.AccessReport},
		{ID: 0x0001, Name: "MinMeasuredValue", Type: zcl.TypeInt16, Access: zcl.AccessRead},
		{ID: 0x0010, Name: "Setpoint", Type: zcl.TypeUint8, Access: zcl.AccessRead | zcl.AccessWrite},
	},
	Commands: []zcl.CommandDef{
		{ID: 0x00, Name: "Reset", Direction: zcl.DirectionToServer},
		{ID: 0x00, Name: "ResetResponse", Direction: zcl.DirectionToClient},
	},
}

// fakeTransport records outgoing commands and hands back futures the test resolves.
type fakeTransport struct {
	mu      sync.Mutex
	sent    []transport.Command
	oneway  []transport.Command
	futures []*transport.Future
	nodes   map[int]transport.Node
	sendErr error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{nodes: map[int]transport.Node{
		0: {Index: 0, IEEEAddress: localIEEE, NetworkAddress: 0x0000},
	}}
}

func (f *fakeTransport) Unicast(_ context.Context, cmd transport.Command, _ transport.ResponseMatcher) *transport.Future {
	f.mu.Lock()
	defer f.mu.Unlock()
	fut := transport.NewFuture()
	f.sent = append(f.sent, cmd)
	f.futures = append(f.futures, fut)
	return fut
}

func (f *fakeTransport) SendCommand(_ context.Context, cmd transport.Command) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.oneway = append(f.oneway, cmd)
	return f.sendErr
}

func (f *fakeTransport) Node(index int) (transport.Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.nodes[index]
	if !ok {
		return transport.Node{}, transport.ErrNoNode
	}
	return n, nil
}

func (f *fakeTransport) last() transport.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return nil
	}
	return f.sent[len(f.sent)-1]
}

func (f *fakeTransport) lastZCL() *zcl.Command {
	cmd, _ := f.last().(*zcl.Command)
	return cmd
}

func newTestCluster(t transport.Transport) *Cluster {
	def := testDef
	return New(t, remoteEP, &def, nil, testLogger)
}

// recorder is an AttributeListener that keeps every update it sees.
type recorder struct {
	mu      sync.Mutex
	updates []Attribute
	from    []*Cluster
}

func (r *recorder) AttributeUpdated(c *Cluster, attr Attribute) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, attr)
	r.from = append(r.from, c)
}

func (r *recorder) ids() []uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]uint16, len(r.updates))
	for i, a := range r.updates {
		out[i] = a.ID
	}
	return out
}

var errBoom = errors.New("boom")

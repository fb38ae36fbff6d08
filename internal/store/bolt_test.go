package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"zcl-gateway/internal/transport"
	"zcl-gateway/internal/zigbee"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := NewBoltStore(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var sensorIEEE = zigbee.IEEEAddress{0x00, 0x15, 0x8D, 0x00, 0x01, 0x2A, 0x3B, 0x4C}

func TestSaveAndGetNode(t *testing.T) {
	s := newTestStore(t)

	node := &Node{
		Index:          3,
		IEEEAddress:    sensorIEEE,
		NetworkAddress: 0x1234,
		Manufacturer:   "LUMI",
		Model:          "lumi.weather",
		LastSeen:       time.Now().Truncate(time.Millisecond),
		Endpoints: []Endpoint{
			{ID: 1, ProfileID: 0x0104, DeviceID: 0x0302, InClusters: []uint16{0x0000, 0x0402, 0x0405}, OutClusters: []uint16{0x0019}},
		},
	}
	if err := s.SaveNode(node); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetNode(3)
	if err != nil {
		t.Fatal(err)
	}
	if got.IEEEAddress != sensorIEEE {
		t.Errorf("ieee = %s, want %s", got.IEEEAddress, sensorIEEE)
	}
	if got.NetworkAddress != 0x1234 {
		t.Errorf("nwk = 0x%04X", got.NetworkAddress)
	}
	if got.Model != "lumi.weather" {
		t.Errorf("model = %q", got.Model)
	}
	ep, ok := got.Endpoint(1)
	if !ok || len(ep.InClusters) != 3 || ep.OutClusters[0] != 0x0019 {
		t.Errorf("endpoint = %+v, %v", ep, ok)
	}
	if !got.LastSeen.Equal(node.LastSeen) {
		t.Errorf("last seen = %v, want %v", got.LastSeen, node.LastSeen)
	}
}

func TestGetNodeNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetNode(7); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if _, err := s.NodeByIEEE(sensorIEEE); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListNodesOrdered(t *testing.T) {
	s := newTestStore(t)
	for _, idx := range []int{300, 0, 2, 1} {
		addr := sensorIEEE
		addr[7] = byte(idx)
		if err := s.SaveNode(&Node{Index: idx, IEEEAddress: addr}); err != nil {
			t.Fatal(err)
		}
	}

	nodes, err := s.ListNodes()
	if err != nil {
		t.Fatal(err)
	}
	want := []int{0, 1, 2, 300}
	if len(nodes) != len(want) {
		t.Fatalf("got %d nodes", len(nodes))
	}
	for i, n := range nodes {
		if n.Index != want[i] {
			t.Errorf("nodes[%d].Index = %d, want %d", i, n.Index, want[i])
		}
	}

	addr := sensorIEEE
	addr[7] = 2
	n, err := s.NodeByIEEE(addr)
	if err != nil || n.Index != 2 {
		t.Errorf("NodeByIEEE = %+v, %v", n, err)
	}
}

func TestDeleteNode(t *testing.T) {
	s := newTestStore(t)
	s.SaveNode(&Node{Index: 1, IEEEAddress: sensorIEEE})
	if err := s.DeleteNode(1); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetNode(1); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v", err)
	}
}

func TestUpdateNode(t *testing.T) {
	s := newTestStore(t)
	s.SaveNode(&Node{Index: 4, IEEEAddress: sensorIEEE, NetworkAddress: 0x1111})

	err := s.UpdateNode(4, func(n *Node) error {
		n.NetworkAddress = 0x2222
		n.Index = 99
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	got, _ := s.GetNode(4)
	if got.NetworkAddress != 0x2222 || got.Index != 4 {
		t.Errorf("node = %+v", got)
	}

	if err := s.UpdateNode(5, func(*Node) error { return nil }); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing node err = %v", err)
	}

	boom := errors.New("boom")
	if err := s.UpdateNode(4, func(n *Node) error { n.NetworkAddress = 0; return boom }); !errors.Is(err, boom) {
		t.Errorf("err = %v", err)
	}
	if got, _ := s.GetNode(4); got.NetworkAddress != 0x2222 {
		t.Error("failed update was persisted")
	}
}

func TestTransportNode(t *testing.T) {
	s := newTestStore(t)
	s.SaveNode(&Node{Index: 0, IEEEAddress: sensorIEEE, NetworkAddress: 0x0000, Model: "coordinator"})

	n, err := s.Node(0)
	if err != nil {
		t.Fatal(err)
	}
	if n.IEEEAddress != sensorIEEE || n.Index != 0 {
		t.Errorf("node = %+v", n)
	}
	if _, err := s.Node(1); !errors.Is(err, transport.ErrNoNode) {
		t.Errorf("err = %v, want ErrNoNode", err)
	}
}

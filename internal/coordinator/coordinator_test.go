package coordinator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"zcl-gateway/internal/cluster"
	"zcl-gateway/internal/store"
	"zcl-gateway/internal/transport"
	"zcl-gateway/internal/zcl"
	"zcl-gateway/internal/zcl/clusters"
	"zcl-gateway/internal/zdo"
	"zcl-gateway/internal/zigbee"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

var (
	localIEEE  = zigbee.IEEEAddress{0x00, 0x12, 0x4B, 0x00, 0x0A, 0x0B, 0x0C, 0x0D}
	sensorIEEE = zigbee.IEEEAddress{0x00, 0x15, 0x8D, 0x00, 0x01, 0x2A, 0x3B, 0x4C}
)

// answeringTransport answers every request at once, successfully unless reject is set.
type answeringTransport struct {
	dir    store.Store
	mu     sync.Mutex
	sent   []transport.Command
	reject bool
}

func (a *answeringTransport) Unicast(_ context.Context, cmd transport.Command, _ transport.ResponseMatcher) *transport.Future {
	a.mu.Lock()
	a.sent = append(a.sent, cmd)
	reject := a.reject
	a.mu.Unlock()

	status := uint8(0)
	if reject {
		status = zdo.StatusTableFull
	}
	var resp transport.Command
	switch c := cmd.(type) {
	case *zdo.BindRequest:
		resp = &zdo.BindResponse{Cluster: zdo.BindResponseCluster, Status: status, TSN: c.TSN}
	case *zcl.Command:
		resp = &zcl.Command{Cluster: c.Cluster, Payload: &zcl.DefaultResponse{CommandIdentifier: c.CommandID(), Status: status}}
	}
	f := transport.NewFuture()
	f.Complete(transport.Result{Response: resp})
	return f
}

func (a *answeringTransport) SendCommand(context.Context, transport.Command) error { return nil }

func (a *answeringTransport) Node(index int) (transport.Node, error) { return a.dir.Node(index) }

func (a *answeringTransport) sentOf(pred func(transport.Command) bool) []transport.Command {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []transport.Command
	for _, c := range a.sent {
		if pred(c) {
			out = append(out, c)
		}
	}
	return out
}

func newTestCoordinator(t *testing.T) (*Coordinator, *answeringTransport, *store.BoltStore) {
	t.Helper()
	st, err := store.NewBoltStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	registry := zcl.NewRegistry(testLogger)
	for _, def := range clusters.Standard() {
		registry.Register(def)
	}

	db := NewDeviceDB()
	db.Add(DeviceDefinition{
		Manufacturer: "LUMI",
		Model:        "lumi.weather",
		Bind:         []uint16{0x0402, 0x0006},
		Reporting: []ReportingEntry{
			{Cluster: 0x0402, Attribute: 0x0000, Min: 10, Max: 300, Change: 25},
			{Cluster: 0x0006, Attribute: 0x0000, Min: 0, Max: 600, Change: 1},
		},
	})

	tr := &answeringTransport{dir: st}
	c := New(tr, st, registry, db, nil, testLogger)

	err = c.SeedNodes([]store.Node{
		{Index: 0, IEEEAddress: localIEEE, NetworkAddress: 0x0000, Model: "gateway"},
		{
			Index: 1, IEEEAddress: sensorIEEE, NetworkAddress: 0x4F21,
			Manufacturer: "LUMI", Model: "lumi.weather",
			Endpoints: []store.Endpoint{
				{ID: 1, ProfileID: 0x0104, InClusters: []uint16{0x0000, 0x0402, 0x0006}, OutClusters: []uint16{0x0019}},
			},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	return c, tr, st
}

func TestStartCreatesClusters(t *testing.T) {
	c, _, _ := newTestCoordinator(t)

	all := c.Router().Clusters()
	if len(all) != 4 {
		t.Fatalf("clusters = %d, want 4", len(all))
	}
	addr := zigbee.EndpointAddress{NetworkAddress: 0x4F21, Endpoint: 1}
	temp, ok := c.Router().Cluster(addr, 0x0402, false)
	if !ok {
		t.Fatal("temperature server cluster missing")
	}
	if temp.Name() != "Temperature Measurement" || temp.Endpoint().IEEEAddress != sensorIEEE {
		t.Errorf("cluster = %s at %s", temp.Name(), temp.Endpoint().IEEEAddress)
	}
	ota, ok := c.Router().Cluster(addr, 0x0019, true)
	if !ok || !ota.IsClient() {
		t.Error("OTA client cluster missing")
	}
	if ota.Name() != "0x0019" {
		t.Errorf("ota name = %q", ota.Name())
	}
}

func TestSeedNodesKeepsExisting(t *testing.T) {
	c, _, st := newTestCoordinator(t)

	err := c.SeedNodes([]store.Node{{Index: 1, IEEEAddress: sensorIEEE, NetworkAddress: 0x9999}})
	if err != nil {
		t.Fatal(err)
	}
	n, _ := st.GetNode(1)
	if n.NetworkAddress != 0x4F21 {
		t.Errorf("seed overwrote node: nwk = 0x%04X", n.NetworkAddress)
	}
}

func TestProvision(t *testing.T) {
	c, tr, _ := newTestCoordinator(t)

	if err := c.Provision(context.Background(), 1); err != nil {
		t.Fatal(err)
	}

	binds := tr.sentOf(func(cmd transport.Command) bool { _, ok := cmd.(*zdo.BindRequest); return ok })
	if len(binds) != 2 {
		t.Fatalf("bind requests = %d, want 2", len(binds))
	}
	for _, b := range binds {
		req := b.(*zdo.BindRequest)
		if req.DstAddress != localIEEE || req.DstEndpoint != cluster.LocalEndpoint || req.Target != 0x4F21 {
			t.Errorf("bind = %+v", req)
		}
	}

	cfgs := tr.sentOf(func(cmd transport.Command) bool {
		z, ok := cmd.(*zcl.Command)
		return ok && z.CommandID() == zcl.FoundationConfigReporting
	})
	if len(cfgs) != 2 {
		t.Fatalf("configure reporting = %d, want 2", len(cfgs))
	}
	for _, cmd := range cfgs {
		z := cmd.(*zcl.Command)
		rec := z.Payload.(*zcl.ConfigureReporting).Records[0]
		switch z.Cluster {
		case 0x0402:
			if rec.ReportableChange == nil {
				t.Error("analog temperature reporting has no change")
			}
		case 0x0006:
			if rec.ReportableChange != nil {
				t.Errorf("discrete on/off reporting has change %#v", rec.ReportableChange)
			}
		}
	}
}

func TestProvisionRejected(t *testing.T) {
	c, tr, _ := newTestCoordinator(t)
	tr.reject = true

	err := c.Provision(context.Background(), 1)
	if !errors.Is(err, errRejected) {
		t.Errorf("err = %v", err)
	}
}

func TestProvisionWithoutDefinition(t *testing.T) {
	c, tr, _ := newTestCoordinator(t)
	if err := c.Provision(context.Background(), 0); err != nil {
		t.Fatal(err)
	}
	if len(tr.sent) != 0 {
		t.Errorf("sent %d commands for a node without a definition", len(tr.sent))
	}
	if err := c.Provision(context.Background(), 42); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("err = %v", err)
	}
}

func TestRefreshReadsServerAttributes(t *testing.T) {
	c, tr, _ := newTestCoordinator(t)
	if err := c.Refresh(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	reads := tr.sentOf(func(cmd transport.Command) bool {
		z, ok := cmd.(*zcl.Command)
		return ok && z.CommandID() == zcl.FoundationReadAttributes
	})
	if len(reads) == 0 {
		t.Fatal("no reads sent")
	}
	for _, r := range reads {
		if r.(*zcl.Command).Cluster == 0x0019 {
			t.Error("client-role cluster was read")
		}
	}
}

func TestRemoveNode(t *testing.T) {
	c, _, st := newTestCoordinator(t)
	var removed []store.Node
	c.OnRemove(func(n store.Node) { removed = append(removed, n) })

	if err := c.RemoveNode(0); err == nil {
		t.Error("local node removed")
	}
	if err := c.RemoveNode(1); err != nil {
		t.Fatal(err)
	}
	if len(c.Router().Clusters()) != 0 {
		t.Error("clusters left after removal")
	}
	if _, err := st.GetNode(1); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("err = %v", err)
	}
	if len(removed) != 1 || removed[0].IEEEAddress != sensorIEEE {
		t.Errorf("hooks got %+v", removed)
	}
}

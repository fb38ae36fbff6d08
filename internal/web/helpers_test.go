package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"zcl-gateway/internal/coordinator"
	"zcl-gateway/internal/store"
	"zcl-gateway/internal/transport"
	"zcl-gateway/internal/zcl"
	"zcl-gateway/internal/zcl/clusters"
	"zcl-gateway/internal/zdo"
	"zcl-gateway/internal/zigbee"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))

var (
	localIEEE  = zigbee.IEEEAddress{0x00, 0x12, 0x4B, 0x00, 0x0A, 0x0B, 0x0C, 0x0D}
	sensorIEEE = zigbee.IEEEAddress{0x00, 0x15, 0x8D, 0x00, 0x01, 0x2A, 0x3B, 0x4C}
)

const sensorBase = "/api/clusters/0x4F21/1"

// gatewayStub answers requests the way a healthy device would.
type gatewayStub struct {
	dir store.Store

	mu     sync.Mutex
	sent   []transport.Command
	silent bool
	fail   error
}

func (g *gatewayStub) Unicast(_ context.Context, cmd transport.Command, _ transport.ResponseMatcher) *transport.Future {
	g.mu.Lock()
	g.sent = append(g.sent, cmd)
	silent, fail := g.silent, g.fail
	g.mu.Unlock()

	if fail != nil {
		return transport.Failed(fail)
	}
	fut := transport.NewFuture()
	if silent {
		fut.Complete(transport.Result{})
		return fut
	}
	fut.Complete(transport.Result{Response: answer(cmd)})
	return fut
}

func answer(cmd transport.Command) transport.Command {
	switch req := cmd.(type) {
	case *zdo.BindRequest:
		return &zdo.BindResponse{Cluster: zdo.BindResponseCluster, TSN: req.TSN}
	case *zdo.UnbindRequest:
		return &zdo.BindResponse{Cluster: zdo.UnbindResponseCluster, TSN: req.TSN}
	case *zcl.Command:
		resp := &zcl.Command{Cluster: req.Cluster, TSN: req.TSN, Direction: zcl.ServerToClient}
		switch p := req.Payload.(type) {
		case *zcl.ReadAttributes:
			rec := zcl.ReadAttributeStatusRecord{AttributeIdentifier: p.Identifiers[0], Status: zcl.ZCLStatusUnsupportedAttr}
			if req.Cluster == 0x0402 {
				rec.Status = zcl.ZCLStatusSuccess
				rec.AttributeDataType = zcl.TypeInt16
				rec.AttributeValue = zcl.Signed{Type: zcl.TypeInt16, V: 2150}
			}
			resp.Payload = &zcl.ReadAttributesResponse{Records: []zcl.ReadAttributeStatusRecord{rec}}
		case *zcl.WriteAttributes:
			resp.Payload = &zcl.WriteAttributesResponse{Records: []zcl.WriteAttributeStatusRecord{{Status: zcl.ZCLStatusSuccess}}}
		case *zcl.ConfigureReporting:
			resp.Payload = &zcl.ConfigureReportingResponse{Records: []zcl.AttributeStatusRecord{{Status: zcl.ZCLStatusSuccess}}}
		case *zcl.ReadReportingConfiguration:
			resp.Payload = &zcl.ReadReportingConfigurationResponse{Records: []zcl.AttributeReportingConfigurationRecord{{
				AttributeIdentifier:      p.Records[0].AttributeIdentifier,
				AttributeDataType:        zcl.TypeInt16,
				MinimumReportingInterval: 10,
				MaximumReportingInterval: 300,
				ReportableChange:         zcl.Signed{Type: zcl.TypeInt16, V: 25},
			}}}
		case *zcl.DiscoverAttributes:
			resp.Payload = &zcl.DiscoverAttributesResponse{DiscoveryComplete: true, Attributes: []zcl.AttributeInformation{
				{AttributeIdentifier: 0x0000, AttributeDataType: zcl.TypeBool},
				{AttributeIdentifier: 0x4001, AttributeDataType: zcl.TypeUint16},
			}}
		case *zcl.DiscoverCommandsReceived:
			resp.Payload = &zcl.DiscoverCommandsReceivedResponse{DiscoveryComplete: true, CommandIdentifiers: []uint8{0x00, 0x01, 0x02}}
		case *zcl.DiscoverCommandsGenerated:
			resp.Payload = &zcl.DiscoverCommandsGeneratedResponse{DiscoveryComplete: true}
		default:
			resp.Payload = &zcl.DefaultResponse{CommandIdentifier: req.CommandID(), Status: zcl.ZCLStatusSuccess}
		}
		return resp
	}
	return nil
}

func (g *gatewayStub) SendCommand(_ context.Context, cmd transport.Command) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sent = append(g.sent, cmd)
	return nil
}

func (g *gatewayStub) Node(index int) (transport.Node, error) { return g.dir.Node(index) }

func (g *gatewayStub) last() transport.Command {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.sent) == 0 {
		return nil
	}
	return g.sent[len(g.sent)-1]
}

func (g *gatewayStub) lastZCL(t *testing.T) *zcl.Command {
	t.Helper()
	cmd, ok := g.last().(*zcl.Command)
	if !ok {
		t.Fatalf("last command = %T, want *zcl.Command", g.last())
	}
	return cmd
}

func setupTestServer(t *testing.T, opts ...ServerOption) (*Server, *gatewayStub, *coordinator.Coordinator) {
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

	stub := &gatewayStub{dir: st}
	coord := coordinator.New(stub, st, registry, coordinator.NewDeviceDB(), nil, testLogger)
	err = coord.SeedNodes([]store.Node{
		{Index: 0, IEEEAddress: localIEEE, NetworkAddress: 0x0000, Model: "gateway"},
		{
			Index: 1, IEEEAddress: sensorIEEE, NetworkAddress: 0x4F21,
			Manufacturer: "LUMI", Model: "lumi.plug",
			Endpoints: []store.Endpoint{
				{ID: 1, ProfileID: 0x0104, InClusters: []uint16{0x0402, 0x0006}, OutClusters: []uint16{0x0019}},
			},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := coord.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	srv := NewServer(coord, testLogger, opts...)
	t.Cleanup(srv.Stop)
	return srv, stub, coord
}

func doRequest(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status = %d, want %d (body %s)", w.Code, want, w.Body.String())
	}
}

var _ http.Handler = (*Server)(nil)

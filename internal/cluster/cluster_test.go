package cluster

import (
	"context"
	"errors"
	"testing"
	"time"

	"zcl-gateway/internal/transport"
	"zcl-gateway/internal/zcl"
	"zcl-gateway/internal/zdo"
	"zcl-gateway/internal/zigbee"
)

func TestNewClusterAttributes(t *testing.T) {
	c := newTestCluster(newFakeTransport())

	if c.ID() != 0x0402 || c.Name() != "Temperature Measurement" {
		t.Errorf("id/name = 0x%04X/%q", c.ID(), c.Name())
	}
	if !c.IsServer() || c.IsClient() {
		t.Error("new cluster should be server role")
	}
	attrs := c.Attributes()
	if len(attrs) != 3 {
		t.Fatalf("got %d attributes, want 3", len(attrs))
	}
	for i, want := range []uint16{0x0000, 0x0001, 0x0010} {
		if attrs[i].ID != want {
			t.Errorf("attrs[%d].ID = 0x%04X, want 0x%04X", i, attrs[i].ID, want)
		}
		if attrs[i].HasValue() {
			t.Errorf("attribute 0x%04X should start without a value", want)
		}
	}
	if _, ok := c.Attribute(0x9999); ok {
		t.Error("unknown attribute found")
	}
	a, _ := c.Attribute(0x0010)
	if !a.IsWritable() || a.IsReportable() {
		t.Errorf("Setpoint access = %#x", a.Access)
	}
}

func TestCommandLookupFollowsRole(t *testing.T) {
	c := newTestCluster(newFakeTransport())

	if cmd, ok := c.Command(0x00); !ok || cmd.Name != "Reset" {
		t.Errorf("server Command(0) = %+v, %v", cmd, ok)
	}
	if cmd, ok := c.Response(0x00); !ok || cmd.Name != "ResetResponse" {
		t.Errorf("server Response(0) = %+v, %v", cmd, ok)
	}

	c.SetClient()
	if cmd, ok := c.Command(0x00); !ok || cmd.Name != "ResetResponse" {
		t.Errorf("client Command(0) = %+v, %v", cmd, ok)
	}
	if _, ok := c.Command(0x05); ok {
		t.Error("unknown command found")
	}
}

func TestRead(t *testing.T) {
	ft := newFakeTransport()
	c := newTestCluster(ft)

	c.Read(context.Background(), 0x0000)
	cmd := ft.lastZCL()
	if cmd == nil {
		t.Fatal("no ZCL command sent")
	}
	if cmd.Cluster != 0x0402 || cmd.Destination != remoteEP.Address {
		t.Errorf("cluster/destination = 0x%04X/%s", cmd.Cluster, cmd.Destination)
	}
	if cmd.Direction != zcl.ClientToServer {
		t.Errorf("direction = %s", cmd.Direction)
	}
	p, ok := cmd.Payload.(*zcl.ReadAttributes)
	if !ok || len(p.Identifiers) != 1 || p.Identifiers[0] != 0x0000 {
		t.Errorf("payload = %#v", cmd.Payload)
	}

	// IDs outside the definition are still sent.
	c.Read(context.Background(), 0x4000)
	if p := ft.lastZCL().Payload.(*zcl.ReadAttributes); p.Identifiers[0] != 0x4000 {
		t.Errorf("identifier = 0x%04X", p.Identifiers[0])
	}
}

func TestClientRoleFlipsDirection(t *testing.T) {
	ft := newFakeTransport()
	c := newTestCluster(ft)
	c.SetClient()

	c.Read(context.Background(), 0x0000)
	if d := ft.lastZCL().Direction; d != zcl.ServerToClient {
		t.Errorf("direction = %s, want server-to-client", d)
	}
	c.SendDefaultResponse(context.Background(), 0x0A, zcl.ZCLStatusSuccess)
	dr := ft.oneway[0].(*zcl.Command)
	if dr.Direction != zcl.ServerToClient || !dr.DisableDefaultResponse {
		t.Errorf("default response direction=%s ddr=%v", dr.Direction, dr.DisableDefaultResponse)
	}
}

func TestWrite(t *testing.T) {
	ft := newFakeTransport()
	c := newTestCluster(ft)

	if _, err := c.Write(context.Background(), 0x0010, 42); err != nil {
		t.Fatal(err)
	}
	p, ok := ft.lastZCL().Payload.(*zcl.WriteAttributes)
	if !ok || len(p.Records) != 1 {
		t.Fatalf("payload = %#v", ft.lastZCL().Payload)
	}
	rec := p.Records[0]
	if rec.AttributeIdentifier != 0x0010 || rec.AttributeDataType != zcl.TypeUint8 {
		t.Errorf("record = %+v", rec)
	}
	if v, ok := rec.AttributeValue.(zcl.Unsigned); !ok || v.V != 42 || v.Type != zcl.TypeUint8 {
		t.Errorf("value = %#v", rec.AttributeValue)
	}
}

func TestWriteErrors(t *testing.T) {
	ft := newFakeTransport()
	c := newTestCluster(ft)

	if _, err := c.Write(context.Background(), 0x7777, 1); !errors.Is(err, ErrUnknownAttribute) {
		t.Errorf("unknown attribute err = %v", err)
	}
	if _, err := c.Write(context.Background(), 0x0010, 300); err == nil {
		t.Error("expected overflow error for uint8")
	}
	if len(ft.sent) != 0 {
		t.Errorf("%d commands sent on failed writes", len(ft.sent))
	}
}

func TestSetReporting(t *testing.T) {
	ft := newFakeTransport()
	c := newTestCluster(ft)

	if _, err := c.SetReporting(context.Background(), 0x0000, 10, 300, 50); err != nil {
		t.Fatal(err)
	}
	p := ft.lastZCL().Payload.(*zcl.ConfigureReporting)
	rec := p.Records[0]
	if rec.Direction != zcl.ReportingDirectionSend || rec.TimeoutPeriod != 0 {
		t.Errorf("direction/timeout = %d/%d", rec.Direction, rec.TimeoutPeriod)
	}
	if rec.MinimumReportingInterval != 10 || rec.MaximumReportingInterval != 300 {
		t.Errorf("intervals = %d..%d", rec.MinimumReportingInterval, rec.MaximumReportingInterval)
	}
	if v, ok := rec.ReportableChange.(zcl.Signed); !ok || v.V != 50 || v.Type != zcl.TypeInt16 {
		t.Errorf("change = %#v", rec.ReportableChange)
	}

	if _, err := c.SetReporting(context.Background(), 0x0000, 0, 0xFFFF, nil); err != nil {
		t.Fatal(err)
	}
	if rec := ft.lastZCL().Payload.(*zcl.ConfigureReporting).Records[0]; rec.ReportableChange != nil {
		t.Errorf("change = %#v, want absent", rec.ReportableChange)
	}

	if _, err := c.SetReporting(context.Background(), 0x5555, 1, 2, nil); !errors.Is(err, ErrUnknownAttribute) {
		t.Errorf("err = %v", err)
	}
}

func TestGetReporting(t *testing.T) {
	ft := newFakeTransport()
	c := newTestCluster(ft)

	c.GetReporting(context.Background(), 0x0000)
	p := ft.lastZCL().Payload.(*zcl.ReadReportingConfiguration)
	if len(p.Records) != 1 || p.Records[0].Direction != 0 || p.Records[0].AttributeIdentifier != 0 {
		t.Errorf("records = %+v", p.Records)
	}
}

func TestDiscovery(t *testing.T) {
	ft := newFakeTransport()
	c := newTestCluster(ft)
	ctx := context.Background()

	c.DiscoverAttributes(ctx)
	da := ft.lastZCL().Payload.(*zcl.DiscoverAttributes)
	if da.StartAttributeIdentifier != 0 || da.MaximumAttributeIdentifiers != 40 {
		t.Errorf("discover attributes = %+v", da)
	}

	c.DiscoverCommandsReceived(ctx)
	dr := ft.lastZCL().Payload.(*zcl.DiscoverCommandsReceived)
	if dr.StartCommandIdentifier != 0 || dr.MaximumCommandIdentifiers != 40 {
		t.Errorf("discover received = %+v", dr)
	}

	c.DiscoverCommandsGenerated(ctx)
	dg := ft.lastZCL().Payload.(*zcl.DiscoverCommandsGenerated)
	if dg.StartCommandIdentifier != 0 || dg.MaximumCommandIdentifiers != 40 {
		t.Errorf("discover generated = %+v", dg)
	}
}

func TestInvoke(t *testing.T) {
	ft := newFakeTransport()
	c := newTestCluster(ft)

	c.Invoke(context.Background(), 0x00, []byte{0x01, 0x02})
	cmd := ft.lastZCL()
	if cmd.Global() {
		t.Error("cluster command reported as global")
	}
	p := cmd.Payload.(*zcl.ClusterCommand)
	if p.ID != 0 || len(p.Data) != 2 {
		t.Errorf("payload = %+v", p)
	}
}

func TestSendDefaultResponseSwallowsErrors(t *testing.T) {
	ft := newFakeTransport()
	ft.sendErr = errBoom
	c := newTestCluster(ft)

	c.SendDefaultResponse(context.Background(), zcl.FoundationReportAttributes, zcl.ZCLStatusSuccess)
	if len(ft.oneway) != 1 {
		t.Fatalf("sent %d", len(ft.oneway))
	}
	cmd := ft.oneway[0].(*zcl.Command)
	dr := cmd.Payload.(*zcl.DefaultResponse)
	if dr.CommandIdentifier != zcl.FoundationReportAttributes || dr.Status != zcl.ZCLStatusSuccess {
		t.Errorf("default response = %+v", dr)
	}
	if cmd.Direction != zcl.ClientToServer || !cmd.DisableDefaultResponse {
		t.Errorf("direction=%s ddr=%v", cmd.Direction, cmd.DisableDefaultResponse)
	}
}

func readResponse(records ...zcl.ReadAttributeStatusRecord) transport.Result {
	return transport.Result{Response: &zcl.Command{
		Cluster: 0x0402,
		Payload: &zcl.ReadAttributesResponse{Records: records},
	}}
}

func TestReadSync(t *testing.T) {
	tests := []struct {
		name    string
		resolve func(f *transport.Future)
		want    zcl.Value
		ok      bool
	}{
		{
			name: "success",
			resolve: func(f *transport.Future) {
				f.Complete(readResponse(zcl.ReadAttributeStatusRecord{
					AttributeIdentifier: 0, Status: zcl.ZCLStatusSuccess,
					AttributeDataType: zcl.TypeInt16, AttributeValue: zcl.Signed{Type: zcl.TypeInt16, V: 2150},
				}))
			},
			want: zcl.Signed{Type: zcl.TypeInt16, V: 2150},
			ok:   true,
		},
		{
			name: "unsupported attribute",
			resolve: func(f *transport.Future) {
				f.Complete(readResponse(zcl.ReadAttributeStatusRecord{
					AttributeIdentifier: 0, Status: zcl.ZCLStatusUnsupportedAttr,
				}))
			},
		},
		{
			name:    "no response",
			resolve: func(f *transport.Future) { f.Complete(transport.Result{}) },
		},
		{
			name:    "transport error",
			resolve: func(f *transport.Future) { f.Fail(errBoom) },
		},
		{
			name:    "empty records",
			resolve: func(f *transport.Future) { f.Complete(readResponse()) },
		},
		{
			name: "default response failure",
			resolve: func(f *transport.Future) {
				f.Complete(transport.Result{Response: &zcl.Command{
					Payload: &zcl.DefaultResponse{CommandIdentifier: 0, Status: zcl.ZCLStatusFailure},
				}})
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ft := newFakeTransport()
			c := newTestCluster(ft)
			go func() {
				for {
					var fut *transport.Future
					ft.mu.Lock()
					if len(ft.futures) > 0 {
						fut = ft.futures[0]
					}
					ft.mu.Unlock()
					if fut != nil {
						tt.resolve(fut)
						return
					}
					time.Sleep(time.Millisecond)
				}
			}()
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()

			v, ok := c.ReadSync(ctx, 0x0000)
			if ok != tt.ok || v != tt.want {
				t.Errorf("ReadSync = %#v, %v; want %#v, %v", v, ok, tt.want, tt.ok)
			}
			if a, _ := c.Attribute(0x0000); a.HasValue() {
				t.Error("ReadSync must not update the registry")
			}
		})
	}
}

func TestReadSyncContextCancelled(t *testing.T) {
	c := newTestCluster(newFakeTransport())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if v, ok := c.ReadSync(ctx, 0x0000); ok || v != nil {
		t.Errorf("ReadSync = %v, %v", v, ok)
	}
}

func TestBind(t *testing.T) {
	ft := newFakeTransport()
	c := newTestCluster(ft)
	dst := zigbee.IEEEAddress{1, 2, 3, 4, 5, 6, 7, 8}

	c.Bind(context.Background(), dst, 5)
	req, ok := ft.last().(*zdo.BindRequest)
	if !ok {
		t.Fatalf("sent %T", ft.last())
	}
	want := zdo.BindRequest{
		Target:      0x1A2B,
		SrcAddress:  remoteIEEE,
		SrcEndpoint: 2,
		BindCluster: 0x0402,
		DstAddrMode: zigbee.AddrModeIEEE,
		DstAddress:  dst,
		DstEndpoint: 5,
	}
	if *req != want {
		t.Errorf("bind request = %+v, want %+v", *req, want)
	}

	c.Unbind(context.Background(), dst, 5)
	un, ok := ft.last().(*zdo.UnbindRequest)
	if !ok || un.ClusterID() != zdo.UnbindRequestCluster || un.BindRequest != want {
		t.Errorf("unbind request = %#v", ft.last())
	}
}

func TestBindLocal(t *testing.T) {
	ft := newFakeTransport()
	c := newTestCluster(ft)

	c.BindLocal(context.Background())
	req := ft.last().(*zdo.BindRequest)
	if req.DstAddress != localIEEE || req.DstEndpoint != LocalEndpoint || req.DstAddrMode != 3 {
		t.Errorf("bind local = %+v", req)
	}

	c.UnbindLocal(context.Background())
	if un := ft.last().(*zdo.UnbindRequest); un.DstAddress != localIEEE || un.DstEndpoint != 1 {
		t.Errorf("unbind local = %+v", un)
	}
}

func TestBindLocalWithoutLocalNode(t *testing.T) {
	ft := newFakeTransport()
	delete(ft.nodes, 0)
	c := newTestCluster(ft)

	_, err := c.BindLocal(context.Background()).Get(context.Background())
	if !errors.Is(err, transport.ErrNoNode) {
		t.Errorf("err = %v", err)
	}
	if len(ft.sent) != 0 {
		t.Error("bind sent without a local node")
	}
}

package web

import (
	"net/http"
	"testing"

	"zcl-gateway/internal/store"
	"zcl-gateway/internal/zdo"
	"zcl-gateway/internal/zigbee"
)

func TestAPIListNodes(t *testing.T) {
	srv, _, _ := setupTestServer(t)
	w := doRequest(t, srv, "GET", "/api/nodes", nil)
	expectStatus(t, w, http.StatusOK)

	nodes := decode[[]store.Node](t, w)
	if len(nodes) != 2 || nodes[0].Index != 0 || nodes[1].IEEEAddress != sensorIEEE {
		t.Errorf("nodes = %+v", nodes)
	}
}

func TestAPIGetNode(t *testing.T) {
	srv, _, _ := setupTestServer(t)

	w := doRequest(t, srv, "GET", "/api/nodes/1", nil)
	expectStatus(t, w, http.StatusOK)
	if n := decode[store.Node](t, w); n.Model != "lumi.plug" || n.NetworkAddress != 0x4F21 {
		t.Errorf("node = %+v", n)
	}

	w = doRequest(t, srv, "GET", "/api/nodes/9", nil)
	expectStatus(t, w, http.StatusNotFound)

	w = doRequest(t, srv, "GET", "/api/nodes/-1", nil)
	expectStatus(t, w, http.StatusBadRequest)
}

func TestAPIDeleteNode(t *testing.T) {
	srv, _, coord := setupTestServer(t)

	w := doRequest(t, srv, "DELETE", "/api/nodes/0", nil)
	expectStatus(t, w, http.StatusBadRequest)

	w = doRequest(t, srv, "DELETE", "/api/nodes/1", nil)
	expectStatus(t, w, http.StatusOK)

	addr := zigbee.EndpointAddress{NetworkAddress: 0x4F21, Endpoint: 1}
	if _, ok := coord.Router().Cluster(addr, 0x0402, false); ok {
		t.Error("clusters of the removed node are still routed")
	}
	w = doRequest(t, srv, "GET", sensorBase+"/0x0402", nil)
	expectStatus(t, w, http.StatusNotFound)

	w = doRequest(t, srv, "DELETE", "/api/nodes/1", nil)
	expectStatus(t, w, http.StatusNotFound)
}

func TestAPIProvisionNode(t *testing.T) {
	srv, stub, _ := setupTestServer(t)

	// lumi.plug has no device definition, so nothing is sent.
	w := doRequest(t, srv, "POST", "/api/nodes/1/provision", nil)
	expectStatus(t, w, http.StatusOK)
	if _, ok := stub.last().(*zdo.BindRequest); ok {
		t.Error("bind sent for a node without a definition")
	}

	w = doRequest(t, srv, "POST", "/api/nodes/7/provision", nil)
	expectStatus(t, w, http.StatusNotFound)
}

func TestAPIRefreshNode(t *testing.T) {
	srv, stub, _ := setupTestServer(t)

	w := doRequest(t, srv, "POST", "/api/nodes/1/refresh", nil)
	expectStatus(t, w, http.StatusOK)
	stub.mu.Lock()
	reads := len(stub.sent)
	stub.mu.Unlock()
	if reads == 0 {
		t.Error("refresh sent no reads")
	}
}

package web

import (
	"context"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"

	"zcl-gateway/internal/cluster"
	"zcl-gateway/internal/transport"
	"zcl-gateway/internal/zcl"
	"zcl-gateway/internal/zigbee"
)

const maxCommandData = 128

func (s *Server) handleAPIListClusters(w http.ResponseWriter, r *http.Request) {
	clusters := s.coord.Router().Clusters()
	views := make([]clusterView, 0, len(clusters))
	for _, c := range clusters {
		views = append(views, newClusterView(c, false))
	}
	s.writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleAPIListDefinitions(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.coord.Registry().All())
}

// clusterFromRequest resolves {addr}/{ep}/{cluster} and ?role=. Numbers
// accept decimal or 0x-prefixed hex.
func (s *Server) clusterFromRequest(w http.ResponseWriter, r *http.Request) (*cluster.Cluster, bool) {
	nwk, err := strconv.ParseUint(r.PathValue("addr"), 0, 16)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid network address")
		return nil, false
	}
	ep, err := strconv.ParseUint(r.PathValue("ep"), 0, 8)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid endpoint")
		return nil, false
	}
	id, err := strconv.ParseUint(r.PathValue("cluster"), 0, 16)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid cluster")
		return nil, false
	}
	var client bool
	switch role := r.URL.Query().Get("role"); role {
	case "", "server":
	case "client":
		client = true
	default:
		s.writeError(w, http.StatusBadRequest, "role must be server or client")
		return nil, false
	}

	addr := zigbee.EndpointAddress{NetworkAddress: uint16(nwk), Endpoint: uint8(ep)}
	c, ok := s.coord.Router().Cluster(addr, uint16(id), client)
	if !ok {
		s.writeError(w, http.StatusNotFound, "cluster not found")
		return nil, false
	}
	return c, true
}

func (s *Server) attributeFromRequest(w http.ResponseWriter, r *http.Request) (uint16, bool) {
	id, err := strconv.ParseUint(r.PathValue("attr"), 0, 16)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid attribute")
		return 0, false
	}
	return uint16(id), true
}

func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.requestTimeout)
}

// respond waits for fut and writes the response it resolved with. A fault
// or an exchange without a response maps to a gateway error.
func (s *Server) respond(ctx context.Context, w http.ResponseWriter, c *cluster.Cluster, fut *transport.Future) {
	res, err := fut.Get(ctx)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		s.writeError(w, http.StatusGatewayTimeout, "timeout")
	case err != nil:
		s.logger.Warn("cluster request failed", "cluster", c.Name(), "address", c.Address().String(), "err", err)
		s.writeError(w, http.StatusBadGateway, err.Error())
	case res.IsTimeout():
		s.writeError(w, http.StatusGatewayTimeout, "no response")
	default:
		s.writeJSON(w, http.StatusOK, newResultView(c, res))
	}
}

// commandError maps a rejected Write or SetReporting call.
func (s *Server) commandError(w http.ResponseWriter, err error) {
	if errors.Is(err, cluster.ErrUnknownAttribute) {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.writeError(w, http.StatusBadRequest, err.Error())
}

func (s *Server) handleAPIGetCluster(w http.ResponseWriter, r *http.Request) {
	c, ok := s.clusterFromRequest(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, newClusterView(c, true))
}

type readResponse struct {
	Attribute uint16 `json:"attribute"`
	Name      string `json:"name,omitempty"`
	Type      string `json:"type"`
	Value     any    `json:"value"`
}

func (s *Server) handleAPIReadAttribute(w http.ResponseWriter, r *http.Request) {
	c, ok := s.clusterFromRequest(w, r)
	if !ok {
		return
	}
	id, ok := s.attributeFromRequest(w, r)
	if !ok {
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()

	v, ok := c.ReadSync(ctx, id)
	if !ok {
		s.writeError(w, http.StatusGatewayTimeout, "no value")
		return
	}
	s.writeJSON(w, http.StatusOK, readResponse{
		Attribute: id,
		Name:      attributeName(c, id),
		Type:      zcl.TypeName(v.DataType()),
		Value:     jsonValue(v),
	})
}

type writeAttributeRequest struct {
	Value any `json:"value"`
}

func (s *Server) handleAPIWriteAttribute(w http.ResponseWriter, r *http.Request) {
	c, ok := s.clusterFromRequest(w, r)
	if !ok {
		return
	}
	id, ok := s.attributeFromRequest(w, r)
	if !ok {
		return
	}
	var req writeAttributeRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Value == nil {
		s.writeError(w, http.StatusBadRequest, "value is required")
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()
	fut, err := c.Write(ctx, id, req.Value)
	if err != nil {
		s.commandError(w, err)
		return
	}
	s.respond(ctx, w, c, fut)
}

func (s *Server) handleAPIGetReporting(w http.ResponseWriter, r *http.Request) {
	c, ok := s.clusterFromRequest(w, r)
	if !ok {
		return
	}
	id, ok := s.attributeFromRequest(w, r)
	if !ok {
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()
	s.respond(ctx, w, c, c.GetReporting(ctx, id))
}

type reportingRequest struct {
	Min    uint16 `json:"min"`
	Max    uint16 `json:"max"`
	Change any    `json:"change"`
}

func (s *Server) handleAPISetReporting(w http.ResponseWriter, r *http.Request) {
	c, ok := s.clusterFromRequest(w, r)
	if !ok {
		return
	}
	id, ok := s.attributeFromRequest(w, r)
	if !ok {
		return
	}
	var req reportingRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Max != 0 && req.Max != 0xFFFF && req.Min > req.Max {
		s.writeError(w, http.StatusBadRequest, "min must not exceed max")
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()
	fut, err := c.SetReporting(ctx, id, req.Min, req.Max, req.Change)
	if err != nil {
		s.commandError(w, err)
		return
	}
	s.respond(ctx, w, c, fut)
}

type bindRequest struct {
	IEEE     string `json:"ieee"`
	Endpoint uint8  `json:"endpoint"`
}

func (s *Server) handleAPIBind(w http.ResponseWriter, r *http.Request) {
	s.handleBinding(w, r, true)
}

func (s *Server) handleAPIUnbind(w http.ResponseWriter, r *http.Request) {
	s.handleBinding(w, r, false)
}

// handleBinding binds or unbinds c to the body's destination, or to the
// local node when the body names none.
func (s *Server) handleBinding(w http.ResponseWriter, r *http.Request, bind bool) {
	c, ok := s.clusterFromRequest(w, r)
	if !ok {
		return
	}
	var req bindRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	var fut *transport.Future
	if req.IEEE == "" {
		if bind {
			fut = c.BindLocal(ctx)
		} else {
			fut = c.UnbindLocal(ctx)
		}
	} else {
		addr, err := zigbee.ParseIEEE(req.IEEE)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if req.Endpoint == 0 {
			s.writeError(w, http.StatusBadRequest, "endpoint is required")
			return
		}
		if bind {
			fut = c.Bind(ctx, addr, req.Endpoint)
		} else {
			fut = c.Unbind(ctx, addr, req.Endpoint)
		}
	}
	s.respond(ctx, w, c, fut)
}

func (s *Server) handleAPIDiscover(w http.ResponseWriter, r *http.Request) {
	c, ok := s.clusterFromRequest(w, r)
	if !ok {
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()

	var fut *transport.Future
	switch r.PathValue("kind") {
	case "attributes":
		fut = c.DiscoverAttributes(ctx)
	case "received":
		fut = c.DiscoverCommandsReceived(ctx)
	case "generated":
		fut = c.DiscoverCommandsGenerated(ctx)
	default:
		s.writeError(w, http.StatusBadRequest, "kind must be attributes, received or generated")
		return
	}
	s.respond(ctx, w, c, fut)
}

type invokeRequest struct {
	Data string `json:"data"`
}

func (s *Server) handleAPIInvoke(w http.ResponseWriter, r *http.Request) {
	c, ok := s.clusterFromRequest(w, r)
	if !ok {
		return
	}
	cmd, err := strconv.ParseUint(r.PathValue("cmd"), 0, 8)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid command")
		return
	}
	var req invokeRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	data, err := hex.DecodeString(req.Data)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "data must be hex")
		return
	}
	if len(data) > maxCommandData {
		s.writeError(w, http.StatusBadRequest, "data limited to 128 bytes")
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()
	s.respond(ctx, w, c, c.Invoke(ctx, uint8(cmd), data))
}

package web

import (
	"errors"
	"net/http"
	"strconv"

	"zcl-gateway/internal/store"
)

func (s *Server) nodeIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil || index < 0 {
		s.writeError(w, http.StatusBadRequest, "invalid node index")
		return 0, false
	}
	return index, true
}

func (s *Server) handleAPIListNodes(w http.ResponseWriter, r *http.Request) {
	nodes, err := s.coord.Store().ListNodes()
	if err != nil {
		s.logger.Error("list nodes", "err", err)
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if nodes == nil {
		nodes = []*store.Node{}
	}
	s.writeJSON(w, http.StatusOK, nodes)
}

func (s *Server) handleAPIGetNode(w http.ResponseWriter, r *http.Request) {
	index, ok := s.nodeIndex(w, r)
	if !ok {
		return
	}
	node, err := s.coord.Store().GetNode(index)
	if err != nil {
		s.nodeError(w, "get node", index, err)
		return
	}
	s.writeJSON(w, http.StatusOK, node)
}

func (s *Server) handleAPIDeleteNode(w http.ResponseWriter, r *http.Request) {
	index, ok := s.nodeIndex(w, r)
	if !ok {
		return
	}
	if index == 0 {
		s.writeError(w, http.StatusBadRequest, "the local node cannot be removed")
		return
	}
	if err := s.coord.RemoveNode(index); err != nil {
		s.nodeError(w, "delete node", index, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAPIProvisionNode(w http.ResponseWriter, r *http.Request) {
	index, ok := s.nodeIndex(w, r)
	if !ok {
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()
	if err := s.coord.Provision(ctx, index); err != nil {
		s.nodeError(w, "provision node", index, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAPIRefreshNode(w http.ResponseWriter, r *http.Request) {
	index, ok := s.nodeIndex(w, r)
	if !ok {
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()
	if err := s.coord.Refresh(ctx, index); err != nil {
		s.nodeError(w, "refresh node", index, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) nodeError(w http.ResponseWriter, op string, index int, err error) {
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "node not found")
		return
	}
	s.logger.Error(op, "index", index, "err", err)
	s.writeError(w, http.StatusBadGateway, err.Error())
}

// Package web serves the REST API over cluster instances and the live
// attribute stream.
package web

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"zcl-gateway/internal/automation"
	"zcl-gateway/internal/coordinator"
)

// DefaultRequestTimeout bounds how long a handler waits on a device.
const DefaultRequestTimeout = 15 * time.Second

// ServerOption configures the web server.
type ServerOption func(*Server)

// WithAPIKey requires key in the X-API-Key header on /api/ routes.
func WithAPIKey(key string) ServerOption {
	return func(s *Server) {
		s.apiKey = key
	}
}

// WithAllowedOrigins sets the origins allowed for CORS and WebSocket upgrades.
func WithAllowedOrigins(origins []string) ServerOption {
	return func(s *Server) {
		s.allowedOrigins = origins
	}
}

// WithAutomation enables the automation routes.
func WithAutomation(engine *automation.Engine, mgr *automation.Manager) ServerOption {
	return func(s *Server) {
		s.autoEngine = engine
		s.scriptMgr = mgr
	}
}

// WithVersion sets the version reported by /api/version.
func WithVersion(v string) ServerOption {
	return func(s *Server) {
		s.version = v
	}
}

// WithRequestTimeout overrides DefaultRequestTimeout.
func WithRequestTimeout(d time.Duration) ServerOption {
	return func(s *Server) {
		if d > 0 {
			s.requestTimeout = d
		}
	}
}

// Server is the HTTP front end.
type Server struct {
	coord          *coordinator.Coordinator
	logger         *slog.Logger
	mux            *http.ServeMux
	hub            *Hub
	apiKey         string
	allowedOrigins []string
	version        string
	requestTimeout time.Duration
	autoEngine     *automation.Engine
	scriptMgr      *automation.Manager
	wg             sync.WaitGroup
}

// NewServer creates the server and subscribes its hub to every cluster.
func NewServer(coord *coordinator.Coordinator, logger *slog.Logger, opts ...ServerOption) *Server {
	s := &Server{
		coord:          coord,
		logger:         logger.With("component", "web"),
		mux:            http.NewServeMux(),
		version:        "dev",
		requestTimeout: DefaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.hub = NewHub(logger)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.hub.Run()
	}()
	coord.Router().AddListener(s.hub)

	s.routes()
	return s
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *Hub { return s.hub }

// Stop shuts down the WebSocket hub and waits for it.
func (s *Server) Stop() {
	s.hub.Stop()
	s.wg.Wait()
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/version", s.handleAPIVersion)

	s.mux.HandleFunc("GET /api/nodes", s.handleAPIListNodes)
	s.mux.HandleFunc("GET /api/nodes/{index}", s.handleAPIGetNode)
	s.mux.HandleFunc("DELETE /api/nodes/{index}", s.handleAPIDeleteNode)
	s.mux.HandleFunc("POST /api/nodes/{index}/provision", s.handleAPIProvisionNode)
	s.mux.HandleFunc("POST /api/nodes/{index}/refresh", s.handleAPIRefreshNode)

	const c = "/api/clusters/{addr}/{ep}/{cluster}"
	s.mux.HandleFunc("GET /api/clusters", s.handleAPIListClusters)
	s.mux.HandleFunc("GET /api/definitions", s.handleAPIListDefinitions)
	s.mux.HandleFunc("GET "+c, s.handleAPIGetCluster)
	s.mux.HandleFunc("POST "+c+"/attributes/{attr}/read", s.handleAPIReadAttribute)
	s.mux.HandleFunc("PUT "+c+"/attributes/{attr}", s.handleAPIWriteAttribute)
	s.mux.HandleFunc("GET "+c+"/attributes/{attr}/reporting", s.handleAPIGetReporting)
	s.mux.HandleFunc("PUT "+c+"/attributes/{attr}/reporting", s.handleAPISetReporting)
	s.mux.HandleFunc("POST "+c+"/bind", s.handleAPIBind)
	s.mux.HandleFunc("DELETE "+c+"/bind", s.handleAPIUnbind)
	s.mux.HandleFunc("POST "+c+"/discover/{kind}", s.handleAPIDiscover)
	s.mux.HandleFunc("POST "+c+"/commands/{cmd}", s.handleAPIInvoke)

	s.mux.HandleFunc("GET /api/automations", s.handleAPIListAutomations)
	s.mux.HandleFunc("GET /api/automations/{id}", s.handleAPIGetAutomation)
	s.mux.HandleFunc("POST /api/automations", s.handleAPICreateAutomation)
	s.mux.HandleFunc("PUT /api/automations/{id}", s.handleAPIUpdateAutomation)
	s.mux.HandleFunc("DELETE /api/automations/{id}", s.handleAPIDeleteAutomation)
	s.mux.HandleFunc("POST /api/automations/{id}/toggle", s.handleAPIToggleAutomation)
	s.mux.HandleFunc("POST /api/automations/{id}/run", s.handleAPIRunAutomation)

	s.mux.HandleFunc("GET /ws", s.handleWS)
}

// ServeHTTP implements http.Handler, applying CORS and API key checks.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !s.cors(w, r) {
		return
	}
	// /ws is exempt: browsers cannot add headers to an upgrade request and
	// the origin is checked on accept.
	if strings.HasPrefix(r.URL.Path, "/api/") && !s.authorized(r) {
		s.writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	s.mux.ServeHTTP(w, r)
}

// cors answers preflight requests and rejects state-changing requests from
// origins outside the allow list. It reports whether r should proceed.
func (s *Server) cors(w http.ResponseWriter, r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if len(s.allowedOrigins) == 0 || origin == "" || r.Method == http.MethodGet {
		return true
	}
	if !slices.Contains(s.allowedOrigins, "*") && !slices.Contains(s.allowedOrigins, origin) {
		s.writeError(w, http.StatusForbidden, "origin not allowed")
		return false
	}
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", origin)
	if r.Method != http.MethodOptions {
		return true
	}
	h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key")
	h.Set("Access-Control-Max-Age", "3600")
	w.WriteHeader(http.StatusNoContent)
	return false
}

func (s *Server) authorized(r *http.Request) bool {
	if s.apiKey == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(r.Header.Get("X-API-Key")), []byte(s.apiKey)) == 1
}

func (s *Server) handleAPIVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// decodeBody reads a JSON body of at most 1 MB into v. An empty body leaves
// v untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

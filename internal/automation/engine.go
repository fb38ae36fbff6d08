//go:build !no_automation

package automation

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"zcl-gateway/internal/cluster"
	"zcl-gateway/internal/zigbee"
)

const (
	maxHandlersPerScript = 100
	commandQueue         = 64
	callTimeout          = 5 * time.Second
	runTimeout           = 5 * time.Second
)

// attributeHandler is a callback registered with zcl.on_attribute. Zero
// filter fields match anything.
type attributeHandler struct {
	ieee     string
	endpoint int
	cluster  int
	attrID   int
	attrName string
	role     string
	fn       *lua.LFunction
}

func (h attributeHandler) matches(ev attributeEvent) bool {
	switch {
	case h.ieee != "" && h.ieee != ev.IEEE:
		return false
	case h.endpoint > 0 && h.endpoint != int(ev.Endpoint):
		return false
	case h.cluster >= 0 && h.cluster != int(ev.Cluster):
		return false
	case h.attrID >= 0 && h.attrID != int(ev.Attribute.ID):
		return false
	case h.attrName != "" && h.attrName != ev.Attribute.Name:
		return false
	case h.role != "" && h.role != ev.Role:
		return false
	}
	return true
}

// attributeEvent is the Go side of the table passed to attribute handlers.
type attributeEvent struct {
	IEEE           string
	NetworkAddress uint16
	Endpoint       uint8
	Cluster        uint16
	ClusterName    string
	Role           string
	Attribute      cluster.Attribute
}

func newAttributeEvent(c *cluster.Cluster, attr cluster.Attribute) attributeEvent {
	ep := c.Endpoint()
	return attributeEvent{
		IEEE:           ep.IEEEAddress.String(),
		NetworkAddress: ep.Address.NetworkAddress,
		Endpoint:       ep.Address.Endpoint,
		Cluster:        c.ID(),
		ClusterName:    c.Name(),
		Role:           roleName(c),
		Attribute:      attr,
	}
}

func (ev attributeEvent) table(L *lua.LState) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("type", lua.LString("attribute"))
	t.RawSetString("ieee", lua.LString(ev.IEEE))
	t.RawSetString("network_address", lua.LNumber(ev.NetworkAddress))
	t.RawSetString("endpoint", lua.LNumber(ev.Endpoint))
	t.RawSetString("cluster", lua.LNumber(ev.Cluster))
	t.RawSetString("cluster_name", lua.LString(ev.ClusterName))
	t.RawSetString("role", lua.LString(ev.Role))
	t.RawSetString("attribute", lua.LString(ev.Attribute.Name))
	t.RawSetString("attribute_id", lua.LNumber(ev.Attribute.ID))
	if ev.Attribute.HasValue() {
		t.RawSetString("value", goToLua(L, ev.Attribute.Value.Native()))
	}
	if !ev.Attribute.LastUpdate.IsZero() {
		t.RawSetString("updated", lua.LNumber(ev.Attribute.LastUpdate.Unix()))
	}
	return t
}

func roleName(c *cluster.Cluster) string {
	if c.IsClient() {
		return "client"
	}
	return "server"
}

// scriptVM owns one Lua state. Every call into the state goes through
// commands so the state is only touched by its loop goroutine.
type scriptVM struct {
	id       string
	state    *lua.LState
	commands chan func(*lua.LState)
	ctx      context.Context
	cancel   context.CancelFunc
	logger   *slog.Logger

	mu       sync.Mutex
	handlers []attributeHandler
	capture  func(line string)
}

func (vm *scriptVM) addHandler(h attributeHandler) bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if len(vm.handlers) >= maxHandlersPerScript {
		return false
	}
	vm.handlers = append(vm.handlers, h)
	return true
}

func (vm *scriptVM) snapshotHandlers() []attributeHandler {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	out := make([]attributeHandler, len(vm.handlers))
	copy(out, vm.handlers)
	return out
}

func (vm *scriptVM) log(level slog.Level, msg string) {
	vm.mu.Lock()
	capture := vm.capture
	vm.mu.Unlock()
	if capture != nil {
		capture(fmt.Sprintf("[%s] %s", strings.ToLower(level.String()), msg))
	}
	vm.logger.Log(context.Background(), level, "script log", "msg", msg)
}

// post queues fn on the VM loop. It reports false when the VM is stopped or
// its queue is full.
func (vm *scriptVM) post(fn func(*lua.LState)) bool {
	if vm.ctx.Err() != nil {
		return false
	}
	select {
	case vm.commands <- fn:
		return true
	default:
		vm.logger.Warn("script command queue full, dropping call")
		return false
	}
}

func (vm *scriptVM) loop() {
	defer vm.state.Close()
	for {
		select {
		case <-vm.ctx.Done():
			return
		case fn := <-vm.commands:
			fn(vm.state)
		}
	}
}

// Engine runs enabled scripts and feeds them attribute updates. It
// implements cluster.AttributeListener.
type Engine struct {
	clusters Clusters
	manager  *Manager
	logger   *slog.Logger

	mu  sync.Mutex
	vms map[string]*scriptVM
}

// NewEngine creates an engine over the given cluster instances and scripts.
func NewEngine(clusters Clusters, mgr *Manager, logger *slog.Logger) *Engine {
	return &Engine{
		clusters: clusters,
		manager:  mgr,
		logger:   logger.With("component", "automation"),
		vms:      make(map[string]*scriptVM),
	}
}

// Start loads every enabled script.
func (e *Engine) Start() {
	scripts, err := e.manager.List()
	if err != nil {
		e.logger.Error("load scripts", "err", err)
		return
	}
	for _, s := range scripts {
		if !s.Meta.Enabled {
			continue
		}
		if err := e.startScript(s); err != nil {
			e.logger.Error("start script", "id", s.ID, "err", err)
		}
	}
	e.logger.Info("automation engine started", "scripts", len(e.Running()))
}

// Stop cancels every running script.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id, vm := range e.vms {
		vm.cancel()
		delete(e.vms, id)
	}
	e.logger.Info("automation engine stopped")
}

// Running returns the IDs of running scripts in order.
func (e *Engine) Running() []string {
	e.mu.Lock()
	ids := make([]string, 0, len(e.vms))
	for id := range e.vms {
		ids = append(ids, id)
	}
	e.mu.Unlock()
	sort.Strings(ids)
	return ids
}

// ReloadScript restarts id from disk, leaving it stopped when disabled.
func (e *Engine) ReloadScript(id string) error {
	e.stopScript(id)
	s, err := e.manager.Get(id)
	if err != nil {
		return fmt.Errorf("get script: %w", err)
	}
	if !s.Meta.Enabled {
		return nil
	}
	return e.startScript(s)
}

// StopScript stops id if it is running.
func (e *Engine) StopScript(id string) {
	e.stopScript(id)
}

func (e *Engine) stopScript(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if vm, ok := e.vms[id]; ok {
		vm.cancel()
		delete(e.vms, id)
		e.logger.Info("script stopped", "id", id)
	}
}

func (e *Engine) newVM(id string, ctx context.Context, cancel context.CancelFunc) *scriptVM {
	L := lua.NewState()
	for _, name := range []string{"os", "io", "loadfile", "dofile", "require", "load", "loadstring", "debug", "package"} {
		L.SetGlobal(name, lua.LNil)
	}
	L.SetContext(ctx)

	vm := &scriptVM{
		id:       id,
		state:    L,
		commands: make(chan func(*lua.LState), commandQueue),
		ctx:      ctx,
		cancel:   cancel,
		logger:   e.logger.With("script", id),
	}
	registerZCLModule(L, vm, e)
	registerSystemModule(L, vm)
	return vm
}

func (e *Engine) startScript(s *Script) error {
	ctx, cancel := context.WithCancel(context.Background())
	vm := e.newVM(s.ID, ctx, cancel)
	if err := vm.state.DoString(s.Code); err != nil {
		cancel()
		vm.state.Close()
		return fmt.Errorf("execute script %s: %w", s.ID, err)
	}

	e.mu.Lock()
	if old, ok := e.vms[s.ID]; ok {
		old.cancel()
	}
	e.vms[s.ID] = vm
	e.mu.Unlock()

	go vm.loop()
	e.logger.Info("script started", "id", s.ID, "name", s.Meta.Name, "handlers", len(vm.snapshotHandlers()))
	return nil
}

// AttributeUpdated implements cluster.AttributeListener.
func (e *Engine) AttributeUpdated(c *cluster.Cluster, attr cluster.Attribute) {
	ev := newAttributeEvent(c, attr)

	e.mu.Lock()
	vms := make([]*scriptVM, 0, len(e.vms))
	for _, vm := range e.vms {
		vms = append(vms, vm)
	}
	e.mu.Unlock()

	for _, vm := range vms {
		for _, h := range vm.snapshotHandlers() {
			if !h.matches(ev) {
				continue
			}
			fn := h.fn
			if !vm.post(func(L *lua.LState) { e.callHandler(vm, L, fn, ev) }) {
				break
			}
		}
	}
}

func (e *Engine) callHandler(vm *scriptVM, L *lua.LState, fn *lua.LFunction, ev attributeEvent) {
	defer func() {
		if r := recover(); r != nil {
			vm.logger.Error("lua handler panic", "err", r)
		}
	}()
	if err := L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, ev.table(L)); err != nil {
		vm.logger.Error("lua handler error", "attribute", ev.Attribute.Name, "err", err)
	}
}

// RunScript dry-runs the stored script id. See RunCode.
func (e *Engine) RunScript(id string) *RunResult {
	s, err := e.manager.Get(id)
	if err != nil {
		return &RunResult{Error: err.Error(), Logs: []string{}, Duration: "0s"}
	}
	return e.RunCode(s.Code)
}

// RunCode executes code in a throwaway VM, then calls each handler it
// registered once with the first matching attribute snapshot.
func (e *Engine) RunCode(code string) *RunResult {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	var (
		logMu sync.Mutex
		logs  = []string{}
	)
	vm := e.newVM("_run", ctx, cancel)
	defer vm.state.Close()
	vm.capture = func(line string) {
		logMu.Lock()
		logs = append(logs, line)
		logMu.Unlock()
	}
	finish := func(err error) *RunResult {
		logMu.Lock()
		defer logMu.Unlock()
		res := &RunResult{OK: err == nil, Logs: append([]string{}, logs...), Duration: time.Since(start).String()}
		if err != nil {
			res.Error = err.Error()
			if strings.Contains(res.Error, context.DeadlineExceeded.Error()) {
				res.Error = fmt.Sprintf("timeout (%s)", runTimeout)
			}
		}
		return res
	}

	if err := vm.state.DoString(code); err != nil {
		return finish(err)
	}
	for _, h := range vm.snapshotHandlers() {
		ev := e.sampleEvent(h)
		if err := vm.state.CallByParam(lua.P{Fn: h.fn, NRet: 0, Protect: true}, ev.table(vm.state)); err != nil {
			return finish(err)
		}
	}
	return finish(nil)
}

func (e *Engine) sampleEvent(h attributeHandler) attributeEvent {
	for _, c := range e.clusters.Clusters() {
		for _, a := range c.Attributes() {
			if ev := newAttributeEvent(c, a); h.matches(ev) {
				return ev
			}
		}
	}
	ev := attributeEvent{IEEE: h.ieee, Role: h.role, Attribute: cluster.Attribute{Name: h.attrName}}
	if h.endpoint > 0 {
		ev.Endpoint = uint8(h.endpoint)
	}
	if h.cluster >= 0 {
		ev.Cluster = uint16(h.cluster)
	}
	if h.attrID >= 0 {
		ev.Attribute.ID = uint16(h.attrID)
	}
	return ev
}

// findCluster returns the instance for ieee, endpoint and cluster id in the given role.
func (e *Engine) findCluster(ieee zigbee.IEEEAddress, ep uint8, id uint16, client bool) (*cluster.Cluster, bool) {
	for _, c := range e.clusters.Clusters() {
		cep := c.Endpoint()
		if cep.IEEEAddress == ieee && cep.Address.Endpoint == ep && c.ID() == id && c.IsClient() == client {
			return c, true
		}
	}
	return nil, false
}

// goToLua converts a native attribute value to a Lua value.
func goToLua(L *lua.LState, v any) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(val)
	case string:
		return lua.LString(val)
	case int:
		return lua.LNumber(val)
	case int8:
		return lua.LNumber(val)
	case int16:
		return lua.LNumber(val)
	case int32:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case uint8:
		return lua.LNumber(val)
	case uint16:
		return lua.LNumber(val)
	case uint32:
		return lua.LNumber(val)
	case uint64:
		return lua.LNumber(val)
	case float32:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case []byte:
		return lua.LString(hex.EncodeToString(val))
	case [8]byte:
		return lua.LString(zigbee.IEEEAddress(val).String())
	case map[string]any:
		t := L.NewTable()
		for k, vv := range val {
			t.RawSetString(k, goToLua(L, vv))
		}
		return t
	case []any:
		t := L.NewTable()
		for i, vv := range val {
			t.RawSetInt(i+1, goToLua(L, vv))
		}
		return t
	default:
		return lua.LString(fmt.Sprintf("%v", val))
	}
}

// luaToGo converts a scalar Lua argument for zcl.NewValue.
func luaToGo(v lua.LValue) (any, bool) {
	switch val := v.(type) {
	case lua.LBool:
		return bool(val), true
	case lua.LNumber:
		return float64(val), true
	case lua.LString:
		return string(val), true
	}
	return nil, false
}

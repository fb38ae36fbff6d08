//go:build !no_automation

package automation

import (
	"context"
	"log/slog"
	"time"

	lua "github.com/yuin/gopher-lua"

	"zcl-gateway/internal/cluster"
	"zcl-gateway/internal/transport"
	"zcl-gateway/internal/zcl"
	"zcl-gateway/internal/zigbee"
)

// registerZCLModule installs the `zcl` global table.
func registerZCLModule(L *lua.LState, vm *scriptVM, e *Engine) {
	mod := L.NewTable()
	fns := map[string]lua.LGFunction{
		"on_attribute": func(L *lua.LState) int { return zclOnAttribute(L, vm) },
		"get":          func(L *lua.LState) int { return zclGet(L, e) },
		"read":         func(L *lua.LState) int { return zclRead(L, vm, e) },
		"write":        func(L *lua.LState) int { return zclWrite(L, vm, e) },
		"invoke":       func(L *lua.LState) int { return zclInvoke(L, vm, e) },
		"after":        func(L *lua.LState) int { return zclAfter(L, vm) },
		"clusters":     func(L *lua.LState) int { return zclClusters(L, e) },
		"log": func(L *lua.LState) int {
			vm.log(slog.LevelInfo, L.CheckString(1))
			return 0
		},
	}
	for name, fn := range fns {
		mod.RawSetString(name, L.NewFunction(fn))
	}
	L.SetGlobal("zcl", mod)
}

// zcl.on_attribute(filter, fn)
//
// filter keys: ieee, endpoint, cluster, attribute (id or name), role.
func zclOnAttribute(L *lua.LState, vm *scriptVM) int {
	filter := L.CheckTable(1)
	fn := L.CheckFunction(2)

	h := attributeHandler{cluster: -1, attrID: -1, fn: fn}
	if v := filter.RawGetString("ieee"); v != lua.LNil {
		addr, err := zigbee.ParseIEEE(v.String())
		if err != nil {
			L.ArgError(1, "ieee: "+err.Error())
			return 0
		}
		h.ieee = addr.String()
	}
	if v, ok := filter.RawGetString("endpoint").(lua.LNumber); ok {
		h.endpoint = int(v)
	}
	if v, ok := filter.RawGetString("cluster").(lua.LNumber); ok {
		h.cluster = int(v)
	}
	switch v := filter.RawGetString("attribute").(type) {
	case lua.LNumber:
		h.attrID = int(v)
	case lua.LString:
		h.attrName = string(v)
	}
	if v := filter.RawGetString("role"); v != lua.LNil {
		h.role = v.String()
		if h.role != "server" && h.role != "client" {
			L.ArgError(1, "role must be server or client")
			return 0
		}
	}

	if !vm.addHandler(h) {
		L.RaiseError("too many handlers (max %d)", maxHandlersPerScript)
	}
	return 0
}

// target resolves the (ieee, endpoint, cluster) arguments and the optional
// role argument at roleArg. It pushes nothing and returns nil when no
// instance matches.
func target(L *lua.LState, e *Engine, roleArg int) *cluster.Cluster {
	addr, err := zigbee.ParseIEEE(L.CheckString(1))
	if err != nil {
		L.ArgError(1, err.Error())
		return nil
	}
	ep := L.CheckInt(2)
	if ep < 0 || ep > 0xFF {
		L.ArgError(2, "endpoint must be 0-255")
		return nil
	}
	id := L.CheckInt(3)
	if id < 0 || id > 0xFFFF {
		L.ArgError(3, "cluster must be 0-65535")
		return nil
	}
	role := L.OptString(roleArg, "server")
	if role != "server" && role != "client" {
		L.ArgError(roleArg, "role must be server or client")
		return nil
	}
	c, ok := e.findCluster(addr, uint8(ep), uint16(id), role == "client")
	if !ok {
		return nil
	}
	return c
}

// attributeID resolves argument n as an attribute id or name on c.
func attributeID(L *lua.LState, c *cluster.Cluster, n int) (uint16, bool) {
	switch v := L.Get(n).(type) {
	case lua.LNumber:
		if v < 0 || v > 0xFFFF {
			L.ArgError(n, "attribute must be 0-65535")
			return 0, false
		}
		return uint16(v), true
	case lua.LString:
		for _, a := range c.Attributes() {
			if a.Name == string(v) {
				return a.ID, true
			}
		}
		return 0, false
	default:
		L.ArgError(n, "attribute must be an id or a name")
		return 0, false
	}
}

// zcl.get(ieee, endpoint, cluster, attribute [, role]) returns the last known value.
func zclGet(L *lua.LState, e *Engine) int {
	c := target(L, e, 5)
	if c == nil {
		L.Push(lua.LNil)
		return 1
	}
	id, ok := attributeID(L, c, 4)
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	attr, ok := c.Attribute(id)
	if !ok || !attr.HasValue() {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(goToLua(L, attr.Value.Native()))
	return 1
}

// zcl.read(ieee, endpoint, cluster, attribute [, role]) reads from the device.
func zclRead(L *lua.LState, vm *scriptVM, e *Engine) int {
	c := target(L, e, 5)
	if c == nil {
		L.Push(lua.LNil)
		return 1
	}
	id, ok := attributeID(L, c, 4)
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	ctx, cancel := context.WithTimeout(vm.ctx, callTimeout)
	defer cancel()
	v, ok := c.ReadSync(ctx, id)
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(goToLua(L, v.Native()))
	return 1
}

// zcl.write(ieee, endpoint, cluster, attribute, value [, role]) returns true
// when the device accepted the write.
func zclWrite(L *lua.LState, vm *scriptVM, e *Engine) int {
	c := target(L, e, 6)
	if c == nil {
		L.Push(lua.LFalse)
		return 1
	}
	id, ok := attributeID(L, c, 4)
	if !ok {
		L.Push(lua.LFalse)
		return 1
	}
	value, ok := luaToGo(L.CheckAny(5))
	if !ok {
		L.ArgError(5, "value must be a boolean, number or string")
		return 0
	}

	ctx, cancel := context.WithTimeout(vm.ctx, callTimeout)
	defer cancel()
	fut, err := c.Write(ctx, id, value)
	if err != nil {
		vm.logger.Warn("write attribute", "cluster", c.Name(), "attr", id, "err", err)
		L.Push(lua.LFalse)
		return 1
	}
	res, err := fut.Get(ctx)
	L.Push(lua.LBool(err == nil && writeAccepted(res)))
	return 1
}

func writeAccepted(res transport.Result) bool {
	if !res.IsSuccess() {
		return false
	}
	cmd, ok := res.Response.(*zcl.Command)
	if !ok {
		return true
	}
	if wr, ok := cmd.Payload.(*zcl.WriteAttributesResponse); ok {
		for _, r := range wr.Records {
			if r.Status != zcl.ZCLStatusSuccess {
				return false
			}
		}
	}
	return true
}

// zcl.invoke(ieee, endpoint, cluster, command [, payload [, role]]) sends a
// cluster-specific command. payload is an array of byte values.
func zclInvoke(L *lua.LState, vm *scriptVM, e *Engine) int {
	c := target(L, e, 6)
	if c == nil {
		L.Push(lua.LFalse)
		return 1
	}
	cmd := L.CheckInt(4)
	if cmd < 0 || cmd > 0xFF {
		L.ArgError(4, "command must be 0-255")
		return 0
	}
	var payload []byte
	if tbl, ok := L.Get(5).(*lua.LTable); ok {
		tbl.ForEach(func(_, v lua.LValue) {
			if n, ok := v.(lua.LNumber); ok {
				payload = append(payload, byte(n))
			}
		})
	}

	ctx, cancel := context.WithTimeout(vm.ctx, callTimeout)
	defer cancel()
	res, err := c.Invoke(ctx, uint8(cmd), payload).Get(ctx)
	if err != nil {
		vm.logger.Warn("invoke command", "cluster", c.Name(), "command", cmd, "err", err)
	}
	L.Push(lua.LBool(err == nil && res.IsSuccess()))
	return 1
}

// zcl.after(seconds, fn) runs fn on the script's loop after a delay.
func zclAfter(L *lua.LState, vm *scriptVM) int {
	seconds := L.CheckNumber(1)
	fn := L.CheckFunction(2)

	go func() {
		timer := time.NewTimer(time.Duration(float64(seconds) * float64(time.Second)))
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-vm.ctx.Done():
			return
		}
		vm.post(func(L *lua.LState) {
			if err := L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}); err != nil {
				vm.logger.Error("after callback error", "err", err)
			}
		})
	}()
	return 0
}

// zcl.clusters() lists every known instance.
func zclClusters(L *lua.LState, e *Engine) int {
	tbl := L.NewTable()
	for i, c := range e.clusters.Clusters() {
		ep := c.Endpoint()
		t := L.NewTable()
		t.RawSetString("ieee", lua.LString(ep.IEEEAddress.String()))
		t.RawSetString("network_address", lua.LNumber(ep.Address.NetworkAddress))
		t.RawSetString("endpoint", lua.LNumber(ep.Address.Endpoint))
		t.RawSetString("cluster", lua.LNumber(c.ID()))
		t.RawSetString("name", lua.LString(c.Name()))
		t.RawSetString("role", lua.LString(roleName(c)))
		tbl.RawSetInt(i+1, t)
	}
	L.Push(tbl)
	return 1
}

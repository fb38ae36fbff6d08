//go:build !no_automation

package automation

import (
	"log/slog"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"
)

var now = time.Now

// registerSystemModule installs the `system` global table.
func registerSystemModule(L *lua.LState, vm *scriptVM) {
	mod := L.NewTable()
	mod.RawSetString("clock", L.NewFunction(systemClock))
	mod.RawSetString("time_between", L.NewFunction(systemTimeBetween))
	mod.RawSetString("log", L.NewFunction(func(L *lua.LState) int {
		return systemLog(L, vm)
	}))
	L.SetGlobal("system", mod)
}

// system.clock() returns the local time broken into fields.
func systemClock(L *lua.LState) int {
	t := now()
	tbl := L.NewTable()
	tbl.RawSetString("year", lua.LNumber(t.Year()))
	tbl.RawSetString("month", lua.LNumber(t.Month()))
	tbl.RawSetString("day", lua.LNumber(t.Day()))
	tbl.RawSetString("weekday", lua.LNumber(t.Weekday()))
	tbl.RawSetString("hour", lua.LNumber(t.Hour()))
	tbl.RawSetString("minute", lua.LNumber(t.Minute()))
	tbl.RawSetString("second", lua.LNumber(t.Second()))
	tbl.RawSetString("timestamp", lua.LNumber(t.Unix()))
	L.Push(tbl)
	return 1
}

// system.time_between(from_hour, to_hour) reports whether the current hour
// is in [from, to), wrapping past midnight when from > to.
func systemTimeBetween(L *lua.LState) int {
	from := L.CheckInt(1)
	to := L.CheckInt(2)
	hour := now().Hour()

	in := hour >= from && hour < to
	if from > to {
		in = hour >= from || hour < to
	}
	L.Push(lua.LBool(in))
	return 1
}

// system.log(level, msg)
func systemLog(L *lua.LState, vm *scriptVM) int {
	level := L.CheckString(1)
	msg := L.CheckString(2)

	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	vm.log(lvl, msg)
	return 0
}

package luavm

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// ToLua converts a Go value to a Lua value. Maps and slices become tables;
// unsupported values are converted to their string form.
func ToLua(L *lua.LState, v any) lua.LValue {
	switch x := v.(type) {
	case nil:
		return lua.LNil
	case lua.LValue:
		return x
	case bool:
		return lua.LBool(x)
	case string:
		return lua.LString(x)
	case int:
		return lua.LNumber(x)
	case int32:
		return lua.LNumber(x)
	case int64:
		return lua.LNumber(x)
	case uint32:
		return lua.LNumber(x)
	case float32:
		return lua.LNumber(x)
	case float64:
		return lua.LNumber(x)
	case []any:
		tb := L.NewTable()
		for _, e := range x {
			tb.Append(ToLua(L, e))
		}
		return tb
	case map[string]any:
		tb := L.NewTable()
		for k, e := range x {
			tb.RawSetString(k, ToLua(L, e))
		}
		return tb
	default:
		return lua.LString(fmt.Sprint(x))
	}
}

// FromLua converts a Lua value to plain Go data. Tables with only
// consecutive integer keys from 1 become slices, other tables become maps
// keyed by the string form of their keys. Functions and userdata are
// returned as their string form.
func FromLua(v lua.LValue) any {
	switch x := v.(type) {
	case *lua.LNilType:
		return nil
	case lua.LBool:
		return bool(x)
	case lua.LString:
		return string(x)
	case lua.LNumber:
		return float64(x)
	case *lua.LTable:
		return tableToGo(x)
	default:
		return v.String()
	}
}

func tableToGo(tb *lua.LTable) any {
	n := tb.Len()
	count := 0
	tb.ForEach(func(lua.LValue, lua.LValue) { count++ })

	if n > 0 && n == count {
		out := make([]any, 0, n)
		for i := 1; i <= n; i++ {
			out = append(out, FromLua(tb.RawGetInt(i)))
		}
		return out
	}

	out := make(map[string]any, count)
	tb.ForEach(func(k, v lua.LValue) {
		out[k.String()] = FromLua(v)
	})
	return out
}

package synth

import (
	"context"
	"encoding/json"

	lua "github.com/yuin/gopher-lua"
)

// agentLoader builds the trusted agent module with the calling context
// bound in. The module is the only door out of the sandbox:
//
//	agent.send_message(to, text)
//	agent.notify_operator(text)
//	agent.trigger_automation(name, payload)
//	agent.http_call(method, url, headers, body)
//	agent.json_encode(value) / agent.json_decode(text)
func (s *Synthesizer) agentLoader(ctx context.Context) lua.LGFunction {
	return func(lState *lua.LState) int {
		mod := lState.NewTable()

		lState.SetField(mod, "send_message", lState.NewFunction(func(ls *lua.LState) int {
			to := ls.CheckString(1)
			text := ls.CheckString(2)
			if err := s.tc.SendMessage(ctx, to, text); err != nil {
				ls.RaiseError("send_message: %v", err)
			}
			ls.Push(lua.LTrue)
			return 1
		}))

		lState.SetField(mod, "notify_operator", lState.NewFunction(func(ls *lua.LState) int {
			text := ls.CheckString(1)
			if err := s.tc.NotifyOperator(ctx, text); err != nil {
				ls.RaiseError("notify_operator: %v", err)
			}
			ls.Push(lua.LTrue)
			return 1
		}))

		lState.SetField(mod, "trigger_automation", lState.NewFunction(func(ls *lua.LState) int {
			name := ls.CheckString(1)
			payloadTbl := ls.OptTable(2, ls.NewTable())
			payload, ok := luaToGo(payloadTbl).(map[string]any)
			if !ok {
				payload = map[string]any{}
			}
			result, err := s.tc.TriggerAutomation(ctx, name, payload)
			if err != nil {
				ls.RaiseError("trigger_automation: %v", err)
			}
			ls.Push(lua.LString(result))
			return 1
		}))

		lState.SetField(mod, "http_call", lState.NewFunction(func(ls *lua.LState) int {
			method := ls.CheckString(1)
			url := ls.CheckString(2)
			headersTbl := ls.OptTable(3, ls.NewTable())
			body := ls.OptString(4, "")

			headers := make(map[string]string)
			headersTbl.ForEach(func(k, v lua.LValue) {
				headers[k.String()] = v.String()
			})

			result, err := s.tc.HTTPCall(ctx, method, url, headers, body)
			if err != nil {
				ls.RaiseError("http_call: %v", err)
			}
			ls.Push(lua.LString(result))
			return 1
		}))

		lState.SetField(mod, "json_encode", lState.NewFunction(func(ls *lua.LState) int {
			val := luaToGo(ls.CheckAny(1))
			data, err := json.Marshal(val)
			if err != nil {
				ls.RaiseError("json_encode: %v", err)
			}
			ls.Push(lua.LString(data))
			return 1
		}))

		lState.SetField(mod, "json_decode", lState.NewFunction(func(ls *lua.LState) int {
			raw := ls.CheckString(1)
			var val any
			if err := json.Unmarshal([]byte(raw), &val); err != nil {
				ls.RaiseError("json_decode: %v", err)
			}
			ls.Push(goToLua(ls, val))
			return 1
		}))

		lState.Push(mod)
		return 1
	}
}

// goToLua converts a decoded-JSON-shaped Go value into a Lua value.
func goToLua(lState *lua.LState, v any) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(val)
	case string:
		return lua.LString(val)
	case int:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case []any:
		tbl := lState.NewTable()
		for _, item := range val {
			tbl.Append(goToLua(lState, item))
		}
		return tbl
	case map[string]any:
		tbl := lState.NewTable()
		for k, item := range val {
			lState.SetField(tbl, k, goToLua(lState, item))
		}
		return tbl
	default:
		return lua.LString(stringify(val))
	}
}

// luaToGo converts a Lua value into a JSON-marshalable Go value. Tables
// with a contiguous integer prefix become slices, everything else maps.
func luaToGo(v lua.LValue) any {
	switch val := v.(type) {
	case *lua.LNilType:
		return nil
	case lua.LBool:
		return bool(val)
	case lua.LString:
		return string(val)
	case lua.LNumber:
		return float64(val)
	case *lua.LTable:
		maxN := val.MaxN()
		if maxN > 0 {
			out := make([]any, 0, maxN)
			for i := 1; i <= maxN; i++ {
				out = append(out, luaToGo(val.RawGetInt(i)))
			}
			return out
		}
		out := make(map[string]any)
		val.ForEach(func(k, item lua.LValue) {
			out[k.String()] = luaToGo(item)
		})
		return out
	default:
		return v.String()
	}
}

func stringify(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

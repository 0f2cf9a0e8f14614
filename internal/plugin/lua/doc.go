// Package lua provides the Lua runtime for plugins.
//
// This package wraps the gopher-lua library to provide:
//   - Sandboxed Lua state management with execution deadlines
//   - Go-Lua type conversion bridge
//   - The "events" module for declaring event handlers
//   - The "log" module, backed by slog
//
// # State
//
//	state, err := lua.NewState(lua.WithExecutionTimeout(2 * time.Second))
//	if err != nil {
//	    return err
//	}
//	defer state.Close()
//
//	api := lua.NewEventAPI(state, bus, owner, logger)
//	api.Install()
//	lua.InstallLog(state, logger)
//
//	if err := state.DoFile(ctx, "main.lua"); err != nil {
//	    return err
//	}
//	regs, err := bus.RegisterListener(owner, api)
//
// # Sandbox
//
// The sandbox removes dofile, loadfile, load and loadstring, never opens
// io, os or debug, and limits require to string, table, math and the
// modules installed by the host.
//
// # Handlers
//
// A Lua handler receives the event and a yield function:
//
//	events.on("player.move", { priority = events.LOW }, function(ev, yield)
//	    yield()
//	    if not ev:is_cancelled() then
//	        log.debug("moved", { player = ev:get("player") })
//	    end
//	end)
//
// All Lua execution happens on the coordinator. Handlers do not run for
// asynchronous events.
package lua

// Package bridge is the synchronisation engine between a Hue bridge and
// the home controller.
//
// A Bridge owns every piece of runtime state: the mapping table and the
// capability snapshot (swapped atomically), the status cache with its
// sinks, the detected list, the command coalescer and the event stream
// supervisor. There are no package-level globals; tests build as many
// engines as they need.
//
// Data flow:
//
//	controller ──HTTP/MQTT──▶ HandleCommand ──▶ Decoder ──▶ Coalescer ──▶ Hue PUT
//	Hue event stream ──▶ Supervisor ──▶ matcher ──▶ status.Cache ──▶ UDP / MQTT / history / websocket
//
// Lifecycle:
//
//	b := bridge.New(bridge.Options{Hue: client, Store: repo, Sync: cfg.Sync, Logger: log})
//	if err := b.Start(ctx); err != nil { ... }
//	defer b.Stop()
package bridge

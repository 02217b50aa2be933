// Package dispatch sends light commands to the bridge without flooding it.
//
// Two layers keep outbound traffic bounded:
//
//   - Coalescer: one slot per resource. While a command for a resource is in
//     flight, newer commands overwrite a single pending value, so a burst of
//     N commands results in at most one further request carrying the last.
//   - Queue: one strictly serial FIFO per resource category with a fixed
//     pause after each request (lights per sync.throttle_ms, groups 1100ms).
//
// Failed requests are logged and dropped; there is no retry.
package dispatch

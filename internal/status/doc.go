// Package status keeps the last known value of every attribute of every
// mapped device and tells interested sinks when a value changes.
//
// Keys use the short names controllers already expect: on, bri, mirek,
// hex, motion, contact, temp, lux, bat, button and rotary. button and
// rotary are momentary and are emitted on every update; all other keys are
// emitted only when the value differs from the cached one.
package status

// Package command turns the single numeric value a controller sends for a
// light into a CLIP v2 state change.
//
// Value encoding:
//
//	0              off
//	1              on, brightness unchanged
//	2..100         on at that brightness in percent
//	20BBBKKKK...   "20" prefix, 3 digits brightness, rest kelvin (at least 9 chars)
//	BBBGGGRRR      packed RGB, each channel 0..100
//
// Colour temperature is rescaled into the target light's mirek range and
// RGB falls back to a mirek estimate on lights without colour support.
package command

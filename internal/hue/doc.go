// Package hue is a small client for the Philips Hue CLIP v2 API.
//
// It covers what the bridge needs and nothing more:
//   - PUT state changes to light and grouped_light resources
//   - GET resource lists (devices, lights, sensors, rooms, zones)
//   - the server-sent event stream at /eventstream/clip/v2
//
// Every request carries the hue-application-key header. Non-2xx answers
// come back as *StatusError, which matches ErrRateLimited for HTTP 429.
package hue

// Package progressor is the device-session core for the Tindeq Progressor
// force gauge. A Session composes a Transport (BLE underneath, fakes in
// tests), a command channel that serializes control writes, and a router
// that demultiplexes inbound notifications into typed events.
//
// All command issuance, including the internal device-info bootstrap and the
// watchdog recovery sequence, goes through the session's command channel:
// the control characteristic tolerates exactly one outstanding operation.
package progressor

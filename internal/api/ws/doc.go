// Package ws streams paint operations for one document over a WebSocket.
//
// Clients send JSON commands:
//
//	{"type":"layout","width":800,"height":600}
//	{"type":"recompute"}
//	{"type":"event","node":"3v1","event":0}
//	{"type":"ping"}
//
// and receive {"type":"operations",...}, {"type":"pong"} or
// {"type":"error","message":...}. Recompute and event commands answer with
// a fresh layout at the last requested viewport.
package ws

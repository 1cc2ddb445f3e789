// Package driftcdp is a Chrome DevTools Protocol client for driving a
// running browser instance: it dials the browser's WebSocket debugger
// endpoint, correlates commands and events over that single connection,
// and exposes the Connection, Expectation/Interception, and key-event
// compiler primitives that higher-level page automation is built from.
//
// driftcdp does not launch or manage the browser process, and it does
// not parse or render HTML; it assumes a /json/version endpoint is
// already reachable and leaves process lifecycle to the caller.
package driftcdp

// Package msgbus is the only channel between the recording pipeline's
// isolated contexts.
//
// Each context registers once and receives messages on a single actor
// goroutine, mirroring the single-threaded, event-driven execution model
// the components assume. Requests correlate replies and enforce explicit
// timeouts because a receiving context can disappear at any point; the
// caller always gets a value or an error, never a hang. Notifications are
// fire-and-forget and may be dropped under pressure, so callers must already
// tolerate missed delivery.
package msgbus

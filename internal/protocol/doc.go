// Package protocol defines the typed messages exchanged between the
// recording pipeline's isolated contexts, plus the sentinel errors those
// exchanges can produce.
//
// Messages model the command/response and notification traffic between the
// popup, coordinator, capture engine, and content bridge. Failures cross
// context boundaries as error values in replies (or string codes on the
// RPC surface), never as panics: a fault in one context must stay
// catchable in another. Code and FromCode translate between the two
// representations so errors.Is classification survives the wire.
package protocol

// Package popup implements the user-facing recording controls.
//
// The controller resolves what the UI should show for a tab (not in a
// meeting, not authenticated, idle, recording) and runs user-initiated
// starts and stops against the coordinator. Every action carries a
// deadline: start is bounded at ten seconds, stop at fifteen because it
// includes the upload, and ForceReset is the unconditional escape hatch
// when either of those fails.
package popup

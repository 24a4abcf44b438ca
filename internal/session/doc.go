// Package session holds the per-tab recording session model and the
// registry that enforces the one-session-per-tab invariant.
//
// The registry is owned by the coordinator: it is the single source of
// truth for which tabs are recording, and nothing else mutates it.
// Sessions move Idle -> Starting -> Recording -> Stopping -> Idle, where
// Idle simply means absent from the registry. ForceRemove exists as the
// recovery primitive and deliberately cannot fail.
package session

// Package ingest accepts the audio feeds the browser helper pushes to the
// daemon and adapts them into capture streams.
//
// The broker mints single-use capture handles for tabs; when the helper
// connects with the matching handle its frames become the tab's stream.
// The microphone feed is a single ambient connection that capture starts
// pick up when present and degrade without when absent.
package ingest

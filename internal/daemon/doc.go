// Package daemon hosts the recording pipeline behind a single-instance
// lock.
//
// The daemon owns the message bus and every context on it, the audio
// ingest broker, the page channel, the auth token watcher, and the audio
// device monitor. IPC exposes its methods to the CLI; stopping the daemon
// force-drops any active recordings rather than finishing them.
package daemon

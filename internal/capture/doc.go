// Package capture is the offscreen capture engine: the only component
// allowed to touch media sources.
//
// For each tab it acquires the tab-audio stream (fatal on failure) and
// optionally the microphone (failure logged, capture continues tab-only),
// mixes them through a graph that feeds a shared analyzer and the chunked
// recorder, and meters audio levels on a fixed interval. Artifacts are the
// in-order concatenation of periodically flushed chunks, which bounds
// memory and leaves recoverable audio behind if the tab dies mid-session.
//
// Teardown is part of the stop contract: every track stopped, the graph
// closed, and the level monitor cancelled before a session leaves the
// engine. Failed starts hold no lock, so the engine always accepts a fresh
// start afterwards.
package capture

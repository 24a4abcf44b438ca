// Package contentbridge hosts the meeting page's side of the pipeline.
//
// Pages connect over a local websocket channel, register a snapshot of
// their document, and receive recording events that drive the on-page
// widget. The bridge answers meeting info queries from that snapshot and
// relays page-initiated stop and discard requests to the coordinator.
// Widget visibility derives purely from RecordingStarted and
// RecordingStopped notifications, so a page that misses the start event
// simply keeps its widget hidden while the recording proceeds.
package contentbridge

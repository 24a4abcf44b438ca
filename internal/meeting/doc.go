// Package meeting identifies conferencing platforms from page URLs and
// extracts meeting metadata from page snapshots.
//
// Each platform ships its own Extractor with Detect/Extract capabilities.
// Extraction is deliberately best-effort: selectors disappear whenever the
// hosted products redesign, so every extractor guarantees a well-formed
// fallback (timestamped platform name) instead of failing. Session start
// treats metadata as required input, which is why this package never
// returns an error.
package meeting

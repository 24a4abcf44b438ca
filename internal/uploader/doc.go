// Package uploader delivers finished recordings to the external upload
// API as an authenticated multipart POST.
//
// The contract is one-shot: the coordinator owns the artifact after the
// capture engine finishes, calls Upload exactly once, and surfaces a
// failure to the user without re-queueing. A noop service stands in when
// no endpoint is configured so the stop path behaves identically either
// way.
package uploader

// Package ipc exposes the daemon over JSON-RPC Unix sockets and ships the
// matching client used by the CLI.
//
// It owns socket lifecycle management and the request/response DTOs.
// Pipeline errors cross the socket as their wire codes, so clients can
// recover the original sentinel with protocol.FromCode and branch on it.
package ipc

// Package logs reads the daemon log file for IPC tailing.
package logs

// Package preflight provides readiness checks for the paths and services
// the daemon depends on.
//
// The CLI "tabcap doctor" command runs RunAll and renders the results;
// the daemon runs the same checks at startup so a doomed configuration
// fails loudly instead of at the first stop.
package preflight

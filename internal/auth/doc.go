// Package auth supplies the bearer token used for recording uploads.
//
// The dashboard session writes the token to a file; this package loads it
// and follows rewrites with fsnotify so refreshed tokens apply without
// restarting the daemon. Authentication state here is what drives the
// popup's not-authenticated view.
package auth

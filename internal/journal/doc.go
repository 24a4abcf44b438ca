// Package journal persists a local history of finished recordings in
// SQLite.
//
// Every stop writes one entry describing the artifact and how it left the
// daemon: uploaded, upload failed, kept local, or discarded. The journal
// is deliberately not an upload retry queue; failed uploads stay failed
// and visible. Schema changes bump the version in schema.go; users clear
// the database to adopt a new schema.
package journal

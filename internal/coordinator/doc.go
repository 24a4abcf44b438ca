// Package coordinator owns recording lifecycle decisions.
//
// All starts and stops funnel through the coordinator, which is the only
// writer of the session registry. It commands the capture engine over the
// message bus, uploads finished artifacts exactly once, records every
// outcome in the journal, and tells the bridge when widgets should appear
// or disappear. ForceStop and Status are direct methods rather than bus
// messages so they keep working while a slow stop occupies the actor.
package coordinator

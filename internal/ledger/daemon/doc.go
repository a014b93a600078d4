// Package daemon coordinates sync passes over the lifetime of the process.
//
// A single Coordinator owns all access to the Reconciler. A busy flag
// serializes passes: a request arriving while one is running is dropped, not
// queued, because the running pass already covers the store state the request
// was reacting to. The initial pull-then-push pass runs at most once per
// process regardless of how the first pass attempt goes; it waits for an
// in-flight pass instead of dropping. Subscribers receive a PassUpdate
// after every completed pass.
//
// Auto-sync reacts to three triggers: a periodic ticker (only when unsynced
// work exists), the network becoming reachable, and local store writes.
package daemon

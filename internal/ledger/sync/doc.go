// Package sync implements the bidirectional reconciliation protocol between
// the local transaction store and the remote replica.
//
// # Overview
//
// The local store is authoritative; the remote store is an
// eventually-consistent replica used for backup and multi-device access.
// Two stateless procedures move records between them:
//
//	Local Store ──Push──▶ Remote Store     unsynced records out
//	Local Store ◀─Pull─── Remote Store     unknown remote rows in
//
// # Push
//
// Push walks every unsynced transaction, fully resolving each before moving
// to the next:
//
//   - Previously pushed, then edited (remote id present): remote update,
//     then mark synced.
//   - Never pushed (no remote id): remote insert carrying the local id.
//     A duplicate-key conflict means an earlier insert succeeded but its
//     acknowledgment was lost; recovery looks the row up by
//     (owner, local id) and links it. A remote id is never invented.
//
// A failing item is logged and skipped; push is never aborted by one
// record. Acknowledgments are conditional on the record still matching what
// the pass read: an edit that lands while the remote call is in flight
// leaves the record unsynced so the newer content wins on the next pass.
// After the records, push drains the queue of remote rows whose local
// counterpart was deleted.
//
// # Pull
//
// Pull fetches every remote row for the owner and imports those whose local
// id is unknown locally and whose server id is not already linked. Imports
// start synced. Pull never mutates or deletes anything that already exists
// on either side; it is the only path by which another device's records
// enter the local store.
//
// # Idempotency
//
// Running either procedure twice with no intervening change performs zero
// additional remote writes: push finds nothing unsynced, pull finds nothing
// unknown.
//
// # Preconditions
//
// When the device is offline or no account identity is available, both
// procedures return immediately with a skipped result and no error.
package sync

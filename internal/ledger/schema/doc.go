// Package schema provides the data structures for the local transaction ledger.
//
// A Transaction is the durable unit held by the local store. Each transaction
// carries a client-generated identifier, the monetary fields entered by the
// user, and the synchronization bookkeeping (synced flag plus optional remote
// row identifier) that the reconciliation protocol maintains.
//
// Calendar dates are modelled by the Date type, which is deliberately not a
// time.Time: transactions are dated by calendar day, and round-tripping a
// day through an instant invites timezone-dependent reinterpretation. Date
// is always constructed from its three numeric components and serializes as
// zero-padded YYYY-MM-DD, which also makes lexicographic range queries on
// the stored string valid.
package schema

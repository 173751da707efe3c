// Package registry resolves requests to live federation clients.
//
// Lookups go through an immutable snapshot held in an atomic pointer, so
// readers never contend with each other or with a concurrent join.
// Inserts copy the snapshot, add one client and publish the copy.
//
// A request names its federation by full id, by id prefix (as carried by
// e-cash notes) or not at all. Without a name the configured Policy picks
// the default client. An ambiguous prefix is always an error.
//
// Membership is persisted in SQLite through Store; Restore reopens every
// stored federation at startup and Join adds a new one.
package registry

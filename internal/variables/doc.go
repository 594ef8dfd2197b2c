// Package variables holds the engineer-defined custom variables of the
// simulator: a free-form name → configuration mapping that survives restarts
// and travels inside configuration snapshots.
//
// The Store keeps the mapping in memory and writes the whole mapping through
// a Persister after every change. Three persisters are provided:
//
//   - FilePersister: a JSON document on disk (custom_variables.json)
//   - SQLitePersister: the custom_variables table of the SQLite database
//   - RedisPersister: one Redis hash, a field per variable
//
// Persistence is best effort. A failed save is logged and counted, and the
// in-memory mapping keeps the change.
//
// Thread Safety: all Store methods are safe for concurrent use. Saves are
// serialised by their own mutex so the latest mapping always lands last.
package variables

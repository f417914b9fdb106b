// Package history persists match runs and their per-piece outcomes in a local
// SQLite database.
//
// A run is one invocation against one puzzle; it owns zero or more outcomes,
// one per piece. Failed pieces are recorded with their error text so a batch
// can be reviewed after the fact. The schema is applied from embedded,
// ordered migrations on Open.
//
// Only one long-lived process should write to a database at a time; Lock
// takes an exclusive advisory file lock next to it.
package history

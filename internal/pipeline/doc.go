// Package pipeline runs the load, match and record sequence shared by the CLI
// and the MCP server.
//
// Pieces are matched one at a time against a single puzzle. A failing piece
// is reported in its result and does not stop the batch; a cancelled context
// stops it between pieces. When a history store is attached every batch is
// recorded as a run.
package pipeline

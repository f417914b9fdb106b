// Package logging assembles the slog loggers used by the CLI and the MCP
// server.
//
// It owns the console and JSON handlers and level parsing. Callers choose the
// writer: the MCP server must log to stderr because stdout carries the
// protocol.
package logging

// Package server implements the MCP (Model Context Protocol) server for
// puzzle piece matching.
//
// This package provides a JSON-RPC 2.0 server that exposes the matcher
// through the MCP protocol, so an MCP client can load a puzzle photo, locate
// pieces in it and inspect the placements.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses and notifications on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Image Information:
//   - puzzle_load: Load image and get metadata
//   - puzzle_dimensions: Get width and height
//   - puzzle_dominant_colors: Extract color palette
//
// Matching:
//   - puzzle_scale_candidates: Scale factors the matcher would try
//   - puzzle_match: Multi-scale coarse-to-fine match of one or more pieces
//   - puzzle_scan: Fixed-stride brute-force scan (sends progress notifications)
//   - puzzle_crop_match: Matched region as base64 PNG
//
// Analysis:
//   - puzzle_metrics: Areas, dominant colors, physical scale
//   - puzzle_history: Recorded runs and outcomes
//
// # Image Caching
//
// Decoded images are cached by path for the lifetime of the process, so a
// puzzle loaded once is reused by every later call.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: The Go error string
//
// Diagnostics go to the configured slog logger and never to stdout.
package server

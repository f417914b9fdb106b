// Command puzzle-match locates jigsaw pieces in a picture of the completed
// puzzle.
//
// Subcommands:
//
//	match       multi-scale coarse-to-fine search for one or more pieces
//	scan        stride-sampled brute-force search at native scale
//	candidates  list the scale factors match would try
//	metrics     size, dominant color and physical scale figures
//	serve       MCP server on stdin/stdout
//	history     recorded runs and outcomes
//	config      init or show the TOML configuration
//	version     build information and an optional GPU adapter check
//
// Results are printed as tables on a terminal and as JSON otherwise or with
// --json. Logs go to stderr.
package main

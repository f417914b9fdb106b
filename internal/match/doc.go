// Package match locates a puzzle piece inside a puzzle photograph.
//
// The main entry point, Match, runs a coarse-to-fine multi-scale search:
//
//  1. ScaleCandidates proposes resize factors for the piece.
//  2. For each factor a CoarseMatcher correlates the resized gray piece
//     against a gray puzzle reduced to at most Options.MaxCoarseDim pixels
//     on its long side, examining every integer offset.
//  3. The lowest-scoring candidate is refined at full resolution by Refine,
//     which minimizes the mean absolute difference in a small window.
//
// Scan is an independent stride-sampled brute-force search at the piece's
// native size, useful on its own or as an oracle for Match.
//
// # Exact scores
//
// Both coarse strategies compute the cross term sum(T*I) as an exact integer
// (the CPU through direct loops or an FFT with rounding, the GPU through a
// WGSL kernel with 64-bit carry accumulation). Window sums come from integral
// images and every score is derived from those integers by one function, so
// the CPU and GPU strategies agree bit for bit.
//
// # GPU
//
// With Options.UseGPU the accelerated strategy is opened when Match is
// called. If no adapter can be opened, or anything goes wrong while it runs,
// every candidate is recomputed on the CPU and Outcome.Device reports "cpu".
// Build with -tags nogpu to leave the GPU backend out entirely.
//
// # Logging
//
// The package logs through a slog.Logger that discards output until
// SetLogger is called.
package match

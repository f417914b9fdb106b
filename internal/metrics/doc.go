// Package metrics computes the cheap whole-image comparisons that sit next to
// matching: areas and their ratio, dominant colors and how far apart they
// are, an optional physical scale and a naive global pixel difference.
//
// Every function here is a single O(pixels) pass and keeps no state.
package metrics

//go:build nogpu

package match

// newGPUMatcher always fails in builds without GPU support.
func newGPUMatcher() (CoarseMatcher, error) {
	return nil, unavailable("built with the nogpu tag")
}

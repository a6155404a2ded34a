package models

// CanonicalPair orders two user identifiers into (low, high) by plain string
// comparison. Every call site that needs the canonical participant order of
// a pair must go through this function so that (a, b) and (b, a) always map
// to the same thread key. Callers are responsible for rejecting a == b.
func CanonicalPair(a, b string) (low, high string) {
	if a <= b {
		return a, b
	}
	return b, a
}

package router

// Confidence bands reported with each routing decision. Purely a
// presentation of the similarity score; the routing policy never branches
// on the band.
const (
	BandHigh   = "high"
	BandMedium = "medium"
	BandLow    = "low"
)

// Band boundaries. 0.6 is also the medium/low boundary used when banding
// fallback matches, which land at 0.5 and therefore always read as low.
const (
	highBoundary   = 0.8
	mediumBoundary = 0.6
)

// BandFor maps a similarity score to its confidence band.
func BandFor(similarity float32) string {
	switch {
	case similarity >= highBoundary:
		return BandHigh
	case similarity >= mediumBoundary:
		return BandMedium
	default:
		return BandLow
	}
}

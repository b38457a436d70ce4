package dispatch

import "math"

// ScoreVector is an ordered tuple of non-negative ranking criteria. Its
// scalar score is the Euclidean norm; lower is strictly better. Score
// vectors rank candidates within one search iteration and are never
// persisted.
type ScoreVector []float64

// Norm returns the Euclidean magnitude of the vector.
func (v ScoreVector) Norm() float64 {
	var sum float64
	for _, axis := range v {
		sum += axis * axis
	}
	return math.Sqrt(sum)
}

// scoredCandidate is a heap entry ranking one driver.
type scoredCandidate struct {
	driverID string
	score    float64
}

// lessScored orders by score, breaking ties by driver ID so selection is
// deterministic.
func lessScored(a, b scoredCandidate) bool {
	if a.score != b.score {
		return a.score < b.score
	}
	return a.driverID < b.driverID
}

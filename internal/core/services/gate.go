package services

// ShouldReject reports whether the best score falls below the threshold.
// A missing score always rejects.
func ShouldReject(best *float64, threshold float64) bool {
	if best == nil {
		return true
	}
	return *best < threshold
}

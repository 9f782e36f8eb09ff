package position

// SizeContracts implements spec §4.7's position-sizing formula:
// contracts = clamp(1, max_contracts, floor(max_contracts ×
// confidence_multiplier)) where confidence_multiplier = 0.20 + 0.80 ×
// confidence. Exploration candidates always size to 1 contract regardless
// of confidence.
func SizeContracts(maxContracts int, confidence float64, isExploration bool) int {
	if isExploration {
		return 1
	}
	if maxContracts <= 0 {
		return 0
	}
	multiplier := 0.20 + 0.80*confidence
	n := int(float64(maxContracts) * multiplier)
	if n < 1 {
		n = 1
	}
	if n > maxContracts {
		n = maxContracts
	}
	return n
}

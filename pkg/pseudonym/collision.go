package pseudonym

import "math"

// DefaultMaxCollisionProbability is the birthday-bound threshold used when
// warning about short truncations.
const DefaultMaxCollisionProbability = 1e-6

// CollisionProbability approximates the chance that n labels of hexChars
// random hex digits contain at least one collision: 1 - exp(-n(n-1)/2M).
func CollisionProbability(n, hexChars int) float64 {
	if n < 2 {
		return 0
	}
	if hexChars <= 0 {
		return 1
	}
	space := math.Ldexp(1, 4*hexChars)
	pairs := float64(n) * float64(n-1) / 2
	return -math.Expm1(-pairs / space)
}

// MinSafeTruncation returns the shortest hex length whose collision
// probability for n labels stays at or below maxProbability.
func MinSafeTruncation(n int, maxProbability float64) int {
	for h := 1; h < fullHexLength; h++ {
		if CollisionProbability(n, h) <= maxProbability {
			return h
		}
	}
	return fullHexLength
}

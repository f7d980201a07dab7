package mathx

import "math"

func FloorDiv(a, b int64) int64 {
	// b > 0
	q := a / b
	r := a % b
	if r < 0 {
		q--
	}
	return q
}

// FloorDivF returns floor(a/b) for a world-space float position. b > 0.
func FloorDivF(a, b float64) int64 {
	return int64(math.Floor(a / b))
}

func AbsInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// HashSum mixes a seed with a single combined coordinate value.
// Callers that pass x+y get the same hash for every coordinate on an anti-diagonal.
func HashSum(seed int64, sum int64) uint64 {
	v := uint64(seed) ^ (uint64(sum) * 0x9e3779b97f4a7c15)
	return mix64(v)
}

func Hash2(seed int64, x, y int64) uint64 {
	ux := uint64(uint32(int32(x)))
	uy := uint64(uint32(int32(y)))
	v := uint64(seed) ^ (ux * 0x9e3779b97f4a7c15) ^ (uy * 0xbf58476d1ce4e5b9)
	return mix64(v)
}

package trading

import "math"

// StrikeLadder returns depth strikes around the spot price, spaced by
// step and sorted ascending. The spot rounds to the nearest step; that
// strike sits at index depth/2 so the ladder straddles the money.
func StrikeLadder(step, depth int, spot float64) []int {
	if step <= 0 || depth <= 0 {
		return nil
	}
	center := int(math.Round(spot/float64(step))) * step
	start := center - (depth/2)*step

	strikes := make([]int, depth)
	for i := range strikes {
		strikes[i] = start + i*step
	}
	return strikes
}

package trading

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

// Property: the ladder has exactly depth strikes, spaced by step, all
// multiples of step, with the at-the-money strike at index depth/2.
func TestProperty_StrikeLadderShape(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.Rng.Seed(1)

	properties := gopter.NewProperties(parameters)

	properties.Property("ladder is evenly spaced around the money", prop.ForAll(
		func(step, depth int, spot float64) bool {
			strikes := StrikeLadder(step, depth, spot)
			if len(strikes) != depth {
				return false
			}
			for i := 1; i < len(strikes); i++ {
				if strikes[i]-strikes[i-1] != step {
					return false
				}
			}
			for _, s := range strikes {
				if s%step != 0 {
					return false
				}
			}
			atm := int(math.Round(spot/float64(step))) * step
			return strikes[depth/2] == atm
		},
		gen.IntRange(1, 500),
		gen.IntRange(1, 50),
		gen.Float64Range(100, 100000),
	))

	properties.TestingRun(t)
}

func TestStrikeLadder_NiftyAroundSpot(t *testing.T) {
	strikes := StrikeLadder(50, 6, 22070)
	assert.Equal(t, []int{21900, 21950, 22000, 22050, 22100, 22150}, strikes)
}

func TestStrikeLadder_RoundsUpPastMidpoint(t *testing.T) {
	strikes := StrikeLadder(100, 4, 44480)
	assert.Equal(t, []int{44300, 44400, 44500, 44600}, strikes)
}

func TestStrikeLadder_InvalidInputs(t *testing.T) {
	assert.Nil(t, StrikeLadder(0, 6, 22000))
	assert.Nil(t, StrikeLadder(50, 0, 22000))
}

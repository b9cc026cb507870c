package game

import "math"

const (
	basePoints     = 500
	speedPoints    = 500
	streakStep     = 100
	streakBonusCap = 500
)

// Score computes the points awarded for one answer and the player's new
// streak. It is a pure function; the caller applies the result to the
// session.
//
// A correct answer earns a base of 500 plus up to 500 more depending on how
// fast it came in (an instant answer is worth ~1000, a last-instant one
// ~500), plus a streak bonus of 100 per consecutive correct answer capped at
// 500. An incorrect answer earns nothing and resets the streak.
func Score(correct bool, elapsedSec, limitSec float64, streak int) (points, newStreak int) {
	if !correct {
		return 0, 0
	}

	if elapsedSec < 0 {
		elapsedSec = 0
	}
	bonusFraction := 0.0
	if limitSec > 0 {
		bonusFraction = 1 - elapsedSec/limitSec
		if bonusFraction < 0 {
			bonusFraction = 0
		}
	}

	newStreak = streak + 1
	streakBonus := newStreak * streakStep
	if streakBonus > streakBonusCap {
		streakBonus = streakBonusCap
	}

	points = int(math.Round(basePoints+speedPoints*bonusFraction)) + streakBonus
	return points, newStreak
}

package opponent

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand"

	"github.com/RPS-Stake/rps-stake/internal/model"
)

// Difficulty parametrizes the confidence ceiling and randomness floor of
// move selection. The selection algorithm itself is not branched per
// difficulty.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyNormal Difficulty = "normal"
	DifficultyHard   Difficulty = "hard"
)

// params holds the two knobs a difficulty level controls.
type params struct {
	maxConfidence float64 // ceiling on how much the prediction is trusted
	randomFloor   float64 // minimum uniform weight spread over all actions
}

var difficultyParams = map[Difficulty]params{
	DifficultyEasy:   {maxConfidence: 0.50, randomFloor: 0.90},
	DifficultyNormal: {maxConfidence: 0.80, randomFloor: 0.40},
	DifficultyHard:   {maxConfidence: 0.95, randomFloor: 0.10},
}

// ParseDifficulty validates a difficulty string, defaulting to normal.
func ParseDifficulty(s string) Difficulty {
	d := Difficulty(s)
	if _, ok := difficultyParams[d]; !ok {
		return DifficultyNormal
	}
	return d
}

// SelectAction chooses the opponent's action. It is pure given its
// inputs: the same history, difficulty, stats, and random source always
// produce the same action.
//
// The distribution blends three components:
//   - the action that beats the predicted player action, weighted by
//     prediction confidence scaled toward the target win rate, amplified
//     by positive bias;
//   - the action that ties the prediction, weighted lightly;
//   - a uniform floor weighted by the randomness floor, by residual
//     prediction uncertainty, and by negative bias.
//
// rng must be supplied by the caller and must never be derived from
// information visible to the counterparty.
func SelectAction(history []model.Action, difficulty Difficulty, stats WinRateStats, rng *rand.Rand) model.Action {
	p := difficultyParams[ParseDifficulty(string(difficulty))]

	pred := Predict(history)
	conf := pred.Confidence
	if conf > p.maxConfidence {
		conf = p.maxConfidence
	}

	// Per-action uniform weight: randomness floor, residual uncertainty,
	// and any fairness nudge from negative bias.
	uniform := p.randomFloor + (1 - conf)
	if stats.Bias < 0 {
		uniform += -stats.Bias
	}
	u := uniform / 3

	// Exploitation ratio k is calibrated so that, with a perfect
	// prediction and zero bias, the expected win rate among decided
	// rounds lands on the target: wBeat = k·u with k = (2t−1)/(1−t).
	t := clamp(stats.Target, 0.05, 0.95)
	k := (2*t - 1) / (1 - t)
	if k < 0 {
		k = 0
	}

	exploit := conf * k * u * (1 + positivePart(stats.Bias))
	if stats.Bias < 0 {
		// Over-performing: scale exploitation down toward uniform play.
		exploit *= 1 + stats.Bias
		if exploit < 0 {
			exploit = 0
		}
	}

	beatAction := model.Counter(pred.Action)
	tieAction := pred.Action

	weights := map[model.Action]float64{
		model.ActionRock:     u,
		model.ActionPaper:    u,
		model.ActionScissors: u,
	}
	weights[beatAction] += exploit
	weights[tieAction] += 0.2 * exploit // soften aggression with occasional ties

	return sample(weights, rng)
}

// sample draws one action from the (unnormalized) weight map using the
// injected random source. Iteration follows the fixed model.Actions
// order so results are reproducible for a fixed source.
func sample(weights map[model.Action]float64, rng *rand.Rand) model.Action {
	var total float64
	for _, a := range model.Actions {
		total += weights[a]
	}
	r := rng.Float64() * total
	for _, a := range model.Actions {
		r -= weights[a]
		if r < 0 {
			return a
		}
	}
	return model.Actions[len(model.Actions)-1]
}

// NewSecureRand returns a math/rand source seeded from crypto/rand.
// Round outcomes must never be predictable from public metadata, so the
// seed never comes from timestamps or round data.
func NewSecureRand() *rand.Rand {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		panic("opponent: crypto/rand unavailable: " + err.Error())
	}
	return rand.New(rand.NewSource(int64(binary.LittleEndian.Uint64(b[:]))))
}

func positivePart(f float64) float64 {
	if f > 0 {
		return f
	}
	return 0
}

func clamp(f, lo, hi float64) float64 {
	if f < lo {
		return lo
	}
	if f > hi {
		return hi
	}
	return f
}

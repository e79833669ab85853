package opponent

import "github.com/RPS-Stake/rps-stake/internal/model"

// Prediction is the recognizer's best guess at the player's next action.
type Prediction struct {
	Action     model.Action
	Confidence float64 // in [0, 1]
}

// maxPatternLen bounds the sub-sequence search. Windows are short
// (default 10), so longer patterns cannot recur often enough to signal.
const maxPatternLen = 3

// Predict computes the most likely next action from the history window.
// It prefers the strongest repeating sub-sequence of recent actions;
// when no sub-sequence repeats it falls back to the most frequent
// action. An empty history yields a zero-confidence default.
func Predict(history []model.Action) Prediction {
	if len(history) == 0 {
		return Prediction{Action: model.ActionRock, Confidence: 0}
	}

	// Longest suffix pattern first: a repeated 3-gram is a stronger
	// signal than a repeated single action.
	for plen := maxPatternLen; plen >= 1; plen-- {
		if p, ok := suffixPattern(history, plen); ok {
			return p
		}
	}

	return frequencyFallback(history)
}

// suffixPattern looks for earlier occurrences of the last plen actions
// and tallies what followed each occurrence. At least two occurrences
// with a majority follower are required to call it a pattern.
func suffixPattern(history []model.Action, plen int) (Prediction, bool) {
	// Need the suffix itself plus at least two earlier occurrences with
	// a follower each.
	if len(history) < plen*2+1 {
		return Prediction{}, false
	}

	suffix := history[len(history)-plen:]
	followers := make(map[model.Action]int)
	occurrences := 0

	for i := 0; i+plen < len(history); i++ {
		if !equalSeq(history[i:i+plen], suffix) {
			continue
		}
		followers[history[i+plen]]++
		occurrences++
	}

	if occurrences < 2 {
		return Prediction{}, false
	}

	best, bestCount := model.Action(""), 0
	for _, a := range model.Actions {
		if followers[a] > bestCount {
			best, bestCount = a, followers[a]
		}
	}
	if bestCount*2 <= occurrences { // no majority follower
		return Prediction{}, false
	}

	conf := float64(bestCount) / float64(occurrences)
	// Longer patterns and more occurrences deserve more confidence.
	conf *= 0.6 + 0.1*float64(plen) + 0.1*minF(float64(occurrences), 3)
	if conf > 1 {
		conf = 1
	}
	return Prediction{Action: best, Confidence: conf}, true
}

// frequencyFallback predicts the most frequent action in the window,
// with confidence equal to its share above the uniform baseline.
func frequencyFallback(history []model.Action) Prediction {
	counts := make(map[model.Action]int)
	for _, a := range history {
		counts[a]++
	}

	best, bestCount := model.Actions[0], 0
	for _, a := range model.Actions {
		if counts[a] > bestCount {
			best, bestCount = a, counts[a]
		}
	}

	share := float64(bestCount) / float64(len(history))
	// share 1/3 (uniform) → confidence 0; share 1 → confidence 1.
	conf := (share - 1.0/3.0) * 1.5
	if conf < 0 {
		conf = 0
	}
	return Prediction{Action: best, Confidence: conf}
}

// Frequencies returns the action frequency distribution over the window.
func Frequencies(history []model.Action) map[model.Action]float64 {
	dist := make(map[model.Action]float64, len(model.Actions))
	if len(history) == 0 {
		return dist
	}
	for _, a := range history {
		dist[a]++
	}
	for a := range dist {
		dist[a] /= float64(len(history))
	}
	return dist
}

func equalSeq(a, b []model.Action) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

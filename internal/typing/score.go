package typing

import "math"

// Metrics is the scored outcome of a session.
type Metrics struct {
	CorrectChars int
	Seconds      int
	Accuracy     int
	WPM          int
}

// ComputeMetrics scores typed text against target.
//
// Accuracy penalizes corrective backspaces: every mistake counts as an extra
// keystroke that did not contribute to the final text. WPM uses the standard
// five-characters-per-word convention over correctly placed characters only.
// secondsTaken is floored at 1.
func ComputeMetrics(target, typed []rune, mistakes, secondsTaken int) Metrics {
	correct := 0
	for i, r := range typed {
		if i < len(target) && r == target[i] {
			correct++
		}
	}

	seconds := max(secondsTaken, 1)

	totalTyped := len(typed) + mistakes
	accuracy := 0
	if totalTyped > 0 {
		accuracy = int(math.Round(100 * float64(totalTyped-mistakes) / float64(totalTyped)))
	}

	wpm := int(math.Round(float64(correct*60) / float64(5*seconds)))

	return Metrics{
		CorrectChars: correct,
		Seconds:      seconds,
		Accuracy:     accuracy,
		WPM:          wpm,
	}
}

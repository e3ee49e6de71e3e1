package ml

// Rule thresholds mirror the classify() routine running on the wearable
// firmware. They are also used to weak-label stored session data, so
// changing them changes labeling and fallback behavior at the same time.
const (
	dominanceThreshold = 0.3
	weakSignalFloor    = 0.05
	voluntaryNormMin   = 0.7
	voluntaryPowerMax  = 5.0
)

// LabelWindow assigns a phenotype to a window using deterministic
// thresholding. It serves two roles: weak supervision for real session
// data and the inference fallback when no trained model exists.
func LabelWindow(w Window) Class {
	a1 := gate(w.B1)
	a2 := gate(w.B2)
	a3 := gate(w.B3)
	total := a1 + a2 + a3

	if total < NoiseFloor {
		return NoTremor
	}

	// High movement with low band power is volitional motion, not tremor.
	if w.MeanNorm > voluntaryNormMin && total < voluntaryPowerMax {
		return NoTremor
	}

	switch {
	case a1 > a2 && a1 > a3 && a1 > dominanceThreshold:
		return Parkinsonian
	case a2 > a1 && a2 > a3 && a2 > dominanceThreshold:
		return Essential
	case a3 > a1 && a3 > a2 && a3 > dominanceThreshold:
		return Physiological
	}

	// Weak or mixed signal: fall back to the largest band. Ties resolve
	// to the lowest class index.
	if total > weakSignalFloor {
		best, bestVal := Parkinsonian, a1
		if a2 > bestVal {
			best, bestVal = Essential, a2
		}
		if a3 > bestVal {
			best = Physiological
		}
		return best
	}
	return NoTremor
}

func gate(v float64) float64 {
	if v > NoiseFloor {
		return v
	}
	return 0
}

package fair

import "gonum.org/v1/gonum/floats"

// Combine derives a parent vector from its two child vectors. Both vectors
// must have the same length; no validation is performed here.
//
// StepAverage is order sensitive: first must be Control Strength and second
// Threat Capability. Swapping them inverts the comparison.
func Combine(c Combinator, first, second []float64) []float64 {
	switch c {
	case Multiply:
		return multiply(first, second)
	case Add:
		return add(first, second)
	case StepAverage:
		return stepAverage(first, second)
	default:
		return nil
	}
}

func multiply(a, b []float64) []float64 {
	return floats.MulTo(make([]float64, len(a)), a, b)
}

func add(a, b []float64) []float64 {
	return floats.AddTo(make([]float64, len(a)), a, b)
}

// stepAverage counts the trials where control strength is below threat
// capability and spreads that fraction over the whole vector.
func stepAverage(controlStrength, threatCapability []float64) []float64 {
	out := make([]float64, len(controlStrength))
	if len(out) == 0 {
		return out
	}
	hits := 0
	for i := range controlStrength {
		if controlStrength[i] < threatCapability[i] {
			hits++
		}
	}
	floats.AddConst(float64(hits)/float64(len(out)), out)
	return out
}

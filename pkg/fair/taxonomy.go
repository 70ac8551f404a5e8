package fair

import "fmt"

// Factor identifies one node of the FAIR taxonomy.
type Factor int

const (
	Risk Factor = iota
	LossEventFrequency
	ThreatEventFrequency
	Vulnerability
	ContactFrequency
	ProbabilityOfAction
	ThreatCapability
	ControlStrength
	LossMagnitude
	PrimaryLoss
	SecondaryLoss
	SecondaryLossEventFrequency
	SecondaryLossEventMagnitude

	// FactorCount is the number of factors in the taxonomy.
	FactorCount int = iota
)

// noFactor marks the absence of a parent or child.
const noFactor Factor = -1

var factorNames = [FactorCount]string{
	Risk:                        "Risk",
	LossEventFrequency:          "Loss Event Frequency",
	ThreatEventFrequency:        "Threat Event Frequency",
	Vulnerability:               "Vulnerability",
	ContactFrequency:            "Contact Frequency",
	ProbabilityOfAction:         "Probability of Action",
	ThreatCapability:            "Threat Capability",
	ControlStrength:             "Control Strength",
	LossMagnitude:               "Loss Magnitude",
	PrimaryLoss:                 "Primary Loss",
	SecondaryLoss:               "Secondary Loss",
	SecondaryLossEventFrequency: "Secondary Loss Event Frequency",
	SecondaryLossEventMagnitude: "Secondary Loss Event Magnitude",
}

var factorsByName = func() map[string]Factor {
	m := make(map[string]Factor, FactorCount)
	for i, name := range factorNames {
		m[name] = Factor(i)
	}
	return m
}()

// Combinator is the function that derives a parent vector from its children.
type Combinator int

const (
	NoCombinator Combinator = iota
	Multiply
	Add
	StepAverage
)

func (c Combinator) String() string {
	switch c {
	case Multiply:
		return "multiply"
	case Add:
		return "add"
	case StepAverage:
		return "step-average"
	default:
		return "none"
	}
}

// link holds the fixed topology for one factor. For Vulnerability the order
// of first and second is significant: Control Strength, then Threat Capability.
type link struct {
	first, second Factor
	parent        Factor
	combinator    Combinator
}

var topology = func() [FactorCount]link {
	var t [FactorCount]link
	for i := range t {
		t[i] = link{first: noFactor, second: noFactor, parent: noFactor}
	}
	branch := func(parent, first, second Factor, c Combinator) {
		t[parent].first, t[parent].second, t[parent].combinator = first, second, c
		t[first].parent = parent
		t[second].parent = parent
	}
	branch(Risk, LossEventFrequency, LossMagnitude, Multiply)
	branch(LossEventFrequency, ThreatEventFrequency, Vulnerability, Multiply)
	branch(ThreatEventFrequency, ContactFrequency, ProbabilityOfAction, Multiply)
	branch(Vulnerability, ControlStrength, ThreatCapability, StepAverage)
	branch(LossMagnitude, PrimaryLoss, SecondaryLoss, Add)
	branch(SecondaryLoss, SecondaryLossEventFrequency, SecondaryLossEventMagnitude, Multiply)
	return t
}()

// leaves lists the leaf factors in depth-first order from the root.
var leaves = func() []Factor {
	var out []Factor
	stack := []Factor{Risk}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		l := topology[f]
		if l.first == noFactor {
			out = append(out, f)
			continue
		}
		stack = append(stack, l.second, l.first)
	}
	return out
}()

// ParseFactor resolves a taxonomy label such as "Loss Event Frequency".
func ParseFactor(name string) (Factor, error) {
	f, ok := factorsByName[name]
	if !ok {
		return noFactor, &UnknownNodeError{Name: name}
	}
	return f, nil
}

// Factors returns every factor in taxonomy order.
func Factors() []Factor {
	out := make([]Factor, FactorCount)
	for i := range out {
		out[i] = Factor(i)
	}
	return out
}

// Leaves returns the factors that must be supplied directly.
func Leaves() []Factor {
	return append([]Factor(nil), leaves...)
}

// Valid reports whether f is part of the taxonomy.
func (f Factor) Valid() bool {
	return f >= 0 && int(f) < FactorCount
}

func (f Factor) String() string {
	if !f.Valid() {
		return fmt.Sprintf("Factor(%d)", int(f))
	}
	return factorNames[f]
}

// Bounded reports whether values for f are probabilities confined to [0, 1].
func (f Factor) Bounded() bool {
	switch f {
	case ProbabilityOfAction, Vulnerability, ControlStrength, ThreatCapability:
		return true
	}
	return false
}

// Children returns the two children of f in combinator operand order.
// ok is false for leaves.
func (f Factor) Children() (first, second Factor, ok bool) {
	if !f.Valid() {
		return noFactor, noFactor, false
	}
	l := topology[f]
	return l.first, l.second, l.first != noFactor
}

// Parent returns the parent of f. ok is false for Risk.
func (f Factor) Parent() (Factor, bool) {
	if !f.Valid() {
		return noFactor, false
	}
	p := topology[f].parent
	return p, p != noFactor
}

// IsLeaf reports whether f has no children.
func (f Factor) IsLeaf() bool {
	_, _, ok := f.Children()
	return !ok
}

// Combinator returns the function used to derive f, or NoCombinator for leaves.
func (f Factor) Combinator() Combinator {
	if !f.Valid() {
		return NoCombinator
	}
	return topology[f].combinator
}

package fair

import (
	"errors"
	"slices"
	"testing"
)

func TestParseFactor(t *testing.T) {
	for _, f := range Factors() {
		got, err := ParseFactor(f.String())
		if err != nil {
			t.Fatalf("ParseFactor(%q) error = %v", f, err)
		}
		if got != f {
			t.Errorf("ParseFactor(%q) = %v, want %v", f, got, f)
		}
	}

	_, err := ParseFactor("Attack Surface")
	if !errors.Is(err, ErrUnknownNode) {
		t.Errorf("ParseFactor(unknown) error = %v, want ErrUnknownNode", err)
	}
	var unknown *UnknownNodeError
	if !errors.As(err, &unknown) || unknown.Name != "Attack Surface" {
		t.Errorf("error = %#v, want UnknownNodeError naming the input", err)
	}
}

func TestLeaves(t *testing.T) {
	want := []Factor{
		ContactFrequency,
		ProbabilityOfAction,
		ControlStrength,
		ThreatCapability,
		PrimaryLoss,
		SecondaryLossEventFrequency,
		SecondaryLossEventMagnitude,
	}
	if got := Leaves(); !slices.Equal(got, want) {
		t.Errorf("Leaves() = %v, want %v", got, want)
	}
	for _, f := range want {
		if !f.IsLeaf() {
			t.Errorf("%v.IsLeaf() = false", f)
		}
		if f.Combinator() != NoCombinator {
			t.Errorf("%v.Combinator() = %v, want none", f, f.Combinator())
		}
	}
}

func TestTopology(t *testing.T) {
	tests := []struct {
		parent        Factor
		first, second Factor
		combinator    Combinator
	}{
		{Risk, LossEventFrequency, LossMagnitude, Multiply},
		{LossEventFrequency, ThreatEventFrequency, Vulnerability, Multiply},
		{ThreatEventFrequency, ContactFrequency, ProbabilityOfAction, Multiply},
		{Vulnerability, ControlStrength, ThreatCapability, StepAverage},
		{LossMagnitude, PrimaryLoss, SecondaryLoss, Add},
		{SecondaryLoss, SecondaryLossEventFrequency, SecondaryLossEventMagnitude, Multiply},
	}

	for _, tt := range tests {
		t.Run(tt.parent.String(), func(t *testing.T) {
			first, second, ok := tt.parent.Children()
			if !ok || first != tt.first || second != tt.second {
				t.Errorf("Children() = (%v, %v, %v), want (%v, %v, true)", first, second, ok, tt.first, tt.second)
			}
			if got := tt.parent.Combinator(); got != tt.combinator {
				t.Errorf("Combinator() = %v, want %v", got, tt.combinator)
			}
			for _, child := range []Factor{first, second} {
				if p, ok := child.Parent(); !ok || p != tt.parent {
					t.Errorf("%v.Parent() = (%v, %v), want %v", child, p, ok, tt.parent)
				}
			}
		})
	}

	if _, ok := Risk.Parent(); ok {
		t.Error("Risk should have no parent")
	}
}

func TestBounded(t *testing.T) {
	bounded := map[Factor]bool{
		ProbabilityOfAction: true,
		Vulnerability:       true,
		ControlStrength:     true,
		ThreatCapability:    true,
	}
	for _, f := range Factors() {
		if f.Bounded() != bounded[f] {
			t.Errorf("%v.Bounded() = %v, want %v", f, f.Bounded(), bounded[f])
		}
	}
}

func TestCombine(t *testing.T) {
	a := []float64{1, 2, 3, 4}
	b := []float64{2, 2, 2, 2}

	if got := Combine(Multiply, a, b); !slices.Equal(got, []float64{2, 4, 6, 8}) {
		t.Errorf("multiply = %v", got)
	}
	if got := Combine(Add, a, b); !slices.Equal(got, []float64{3, 4, 5, 6}) {
		t.Errorf("add = %v", got)
	}
	// Control strength below threat capability in 1 of 4 trials.
	if got := Combine(StepAverage, a, b); !slices.Equal(got, []float64{0.25, 0.25, 0.25, 0.25}) {
		t.Errorf("step average = %v", got)
	}
	if got := Combine(NoCombinator, a, b); got != nil {
		t.Errorf("no combinator = %v, want nil", got)
	}
	if !slices.Equal(a, []float64{1, 2, 3, 4}) || !slices.Equal(b, []float64{2, 2, 2, 2}) {
		t.Errorf("inputs modified: %v, %v", a, b)
	}
	if got := Combine(StepAverage, nil, nil); len(got) != 0 {
		t.Errorf("empty step average = %v", got)
	}
}

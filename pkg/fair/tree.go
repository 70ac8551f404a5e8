package fair

import (
	"fmt"
	"strings"
)

// Status is the resolution state of a node in the dependency tree.
//
//	Required -> NotRequired | Supplied | Calculable
//	Calculable -> Calculated
//
// NotRequired, Supplied and Calculated are terminal, except that supplying a
// node again reopens Calculated ancestors to Calculable. Supplying a
// NotRequired node is accepted but leaves it NotRequired.
type Status int

const (
	Required Status = iota
	NotRequired
	Supplied
	Calculable
	Calculated
)

func (s Status) String() string {
	switch s {
	case Required:
		return "Required"
	case NotRequired:
		return "Not Required"
	case Supplied:
		return "Supplied"
	case Calculable:
		return "Calculable"
	case Calculated:
		return "Calculated"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Resolved reports whether a vector is available for a node in this state.
func (s Status) Resolved() bool {
	return s == Supplied || s == Calculated
}

// permitsParent reports whether a child in this state lets its parent
// become Calculable.
func (s Status) permitsParent() bool {
	return s == Calculable || s == Calculated || s == Supplied
}

// Statuses is a snapshot of every node status, indexed by Factor.
type Statuses [FactorCount]Status

// Of returns the status recorded for f.
func (s Statuses) Of(f Factor) Status {
	return s[f]
}

// Map returns the snapshot keyed by node name.
func (s Statuses) Map() map[string]string {
	m := make(map[string]string, FactorCount)
	for i, st := range s {
		m[Factor(i).String()] = st.String()
	}
	return m
}

// Required lists the nodes still awaiting data.
func (s Statuses) Required() []string {
	var out []string
	for i, st := range s {
		if st == Required {
			out = append(out, Factor(i).String())
		}
	}
	return out
}

func (s Statuses) String() string {
	var b strings.Builder
	for i, st := range s {
		fmt.Fprintf(&b, "%-32s %s\n", Factor(i).String(), st)
	}
	return b.String()
}

// Tree tracks which factors have data and which can be derived. The
// topology is fixed; only statuses change.
type Tree struct {
	status [FactorCount]Status
}

// NewTree returns a tree with every node Required.
func NewTree() *Tree {
	return &Tree{}
}

// UpdateStatus records that f was Supplied or Calculated.
//
// Supplying a node marks its whole subtree NotRequired, reopens Calculated
// ancestors whose inputs just changed, and promotes Required ancestors to
// Calculable once all their children are ready. Calculated is recorded
// without propagation.
func (t *Tree) UpdateStatus(f Factor, s Status) error {
	if !f.Valid() {
		return &UnknownNodeError{Name: f.String()}
	}
	switch s {
	case Supplied:
		t.supply(f)
	case Calculated:
		t.status[f] = Calculated
	default:
		return fmt.Errorf("set %q to %s: %w", f, s, ErrInvalidTransition)
	}
	return nil
}

// Status returns the current status of f.
func (t *Tree) Status(f Factor) Status {
	return t.status[f]
}

// Statuses returns a snapshot of all node statuses.
func (t *Tree) Statuses() Statuses {
	return t.status
}

// ReadyForCalculation reports whether no node is Required.
func (t *Tree) ReadyForCalculation() bool {
	for _, s := range t.status {
		if s == Required {
			return false
		}
	}
	return true
}

// CalculationCompleted reports whether Risk is Calculated or Supplied.
func (t *Tree) CalculationCompleted() bool {
	return t.status[Risk].Resolved()
}

// Calculable returns the Calculable nodes in taxonomy order.
func (t *Tree) Calculable() []Factor {
	var out []Factor
	for i, s := range t.status {
		if s == Calculable {
			out = append(out, Factor(i))
		}
	}
	return out
}

func (t *Tree) supply(f Factor) {
	// A NotRequired node sits under a supplied ancestor, so nothing above it
	// depends on its value and its subtree is already released.
	if t.status[f] == NotRequired {
		return
	}
	t.status[f] = Supplied

	if first, second, ok := f.Children(); ok {
		t.release(first, second)
	}
	t.reopen(f)

	// Promotion can cascade several levels, so walk every leaf to the root.
	for _, leaf := range leaves {
		for p, ok := leaf.Parent(); ok; p, ok = p.Parent() {
			if t.status[p] == Required && t.childrenReady(p) {
				t.status[p] = Calculable
			}
		}
	}
}

// release marks every node below a supplied node as NotRequired.
func (t *Tree) release(roots ...Factor) {
	stack := append([]Factor(nil), roots...)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		t.status[n] = NotRequired
		if first, second, ok := n.Children(); ok {
			stack = append(stack, first, second)
		}
	}
}

// reopen demotes Calculated ancestors of f so they are derived again.
func (t *Tree) reopen(f Factor) {
	for p, ok := f.Parent(); ok; p, ok = p.Parent() {
		switch t.status[p] {
		case Calculated:
			t.status[p] = Calculable
		case Supplied, NotRequired:
			return
		}
	}
}

func (t *Tree) childrenReady(f Factor) bool {
	first, second, ok := f.Children()
	if !ok {
		return false
	}
	return t.status[first].permitsParent() && t.status[second].permitsParent()
}

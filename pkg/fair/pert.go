package fair

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// DefaultGamma is the PERT shape factor used when none is supplied.
const DefaultGamma = 4.0

// PERT is a Beta distribution on [Low, High] reparameterised by a most
// likely value and a peak sharpness Gamma.
//
// See https://www.rdocumentation.org/packages/prevalence/versions/0.4.0/topics/betaPERT
type PERT struct {
	Low, Mode, High, Gamma float64

	mean, stdev, alpha, beta float64
}

// NewPERT derives the Beta shape parameters. It requires low < high.
func NewPERT(low, mode, high, gamma float64) (*PERT, error) {
	if high-low == 0 {
		return nil, &ValidationError{Param: ParamLow, Reason: `must be less than "high"`}
	}
	p := &PERT{Low: low, Mode: mode, High: high, Gamma: gamma}
	p.mean = (low + gamma*mode + high) / (gamma + 2)
	p.stdev = (high - low) / (gamma + 2)
	p.alpha = ((p.mean - low) / (high - low)) * (((p.mean - low) * (high - p.mean) / (p.stdev * p.stdev)) - 1)
	p.beta = p.alpha * (high - p.mean) / (p.mean - low)
	if !(p.alpha > 0 && p.beta > 0) {
		return nil, &ValidationError{Param: ParamGamma, Reason: "gives a degenerate Beta shape"}
	}
	return p, nil
}

// Mean returns the closed-form PERT mean.
func (p *PERT) Mean() float64 { return p.mean }

// Alpha returns the first Beta shape parameter.
func (p *PERT) Alpha() float64 { return p.alpha }

// Beta returns the second Beta shape parameter.
func (p *PERT) Beta() float64 { return p.beta }

// Fill overwrites dst with variates drawn from src.
func (p *PERT) Fill(dst []float64, src rand.Source) {
	b := distuv.Beta{Alpha: p.alpha, Beta: p.beta, Src: src}
	scale := p.High - p.Low
	for i := range dst {
		dst[i] = p.Low + b.Rand()*scale
	}
}

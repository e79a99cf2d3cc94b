package engine

import "gonum.org/v1/gonum/diff/fd"

func (s Strategy) gradientFormula() fd.Formula {
	if s == Fast {
		return fd.Forward
	}
	return fd.Central
}

// hessianFormula returns the stencil and the step, relative to the natural
// scale of each parameter, used by the numerical Hessian.
func (s Strategy) hessianFormula() (fd.Formula, float64) {
	switch s {
	case Fast:
		return fd.Forward, 1.5e-4
	case Rigorous:
		return fd.Central, 1e-3
	case VeryRigorous:
		return fd.Central, 5e-4
	default:
		return fd.Central, 2.5e-3
	}
}

// attempts is the number of descents Migrad may run before giving up on
// reaching the EDM target.
func (s Strategy) attempts() int {
	switch s {
	case Fast:
		return 1
	case Balanced:
		return 2
	default:
		return 3
	}
}

// stallIterations is the number of major iterations without significant
// improvement after which a descent stops.
func (s Strategy) stallIterations() int {
	switch s {
	case Fast:
		return 3
	case Balanced:
		return 5
	case Rigorous:
		return 8
	default:
		return 12
	}
}

package cgc

import "math"

// monitor tracks the objective across iterations and decides when a run ends.
type monitor struct {
	errobj    float64
	maxIters  int
	e, oldE   float64
	iters     int
	converged bool
	history   []float64
}

// newMonitor seeds the error at 2·errobj, so the first observation only
// counts as converged if the objective itself lies within errobj of the seed.
func newMonitor(errobj float64, maxIters int) *monitor {
	return &monitor{
		errobj:   errobj,
		maxIters: maxIters,
		e:        2 * errobj,
		history:  make([]float64, 0, maxIters),
	}
}

func (m *monitor) proceed() bool {
	return !m.converged && m.iters < m.maxIters
}

// observe records the error of a finished iteration.
func (m *monitor) observe(e float64) {
	m.oldE, m.e = m.e, e
	m.converged = math.Abs(m.e-m.oldE) < m.errobj
	m.iters++
	m.history = append(m.history, e)
}

func (m *monitor) delta() float64 { return m.e - m.oldE }

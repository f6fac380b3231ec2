// Package decision defines the per-period decision tuple, the outcome of
// validating it, and the ledger that records one decision per experiment
// and period.
package decision

import (
	"fmt"

	"github.com/GoSim-25-26J-441/warehouse-sim/pkg/utils"
)

// Decision is the here-and-now choice for one period. Send[w][q] is the
// flow from w to q; Receive[w][q] is the amount w receives from q.
type Decision struct {
	Order   []float64   `json:"order"`
	Send    [][]float64 `json:"send"`
	Receive [][]float64 `json:"receive"`
	Stock   []float64   `json:"stock"`
	Missed  []float64   `json:"missed"`
}

// New returns an all-zero decision for n warehouses
func New(n int) Decision {
	return Decision{
		Order:   make([]float64, n),
		Send:    utils.NewMatrix(n),
		Receive: utils.NewMatrix(n),
		Stock:   make([]float64, n),
		Missed:  make([]float64, n),
	}
}

// Clone returns a deep copy
func (d Decision) Clone() Decision {
	return Decision{
		Order:   utils.CloneFloat64s(d.Order),
		Send:    utils.CloneMatrix(d.Send),
		Receive: utils.CloneMatrix(d.Receive),
		Stock:   utils.CloneFloat64s(d.Stock),
		Missed:  utils.CloneFloat64s(d.Missed),
	}
}

// Size returns the number of warehouses the decision covers
func (d Decision) Size() int {
	return len(d.Order)
}

// Sent returns the total flow leaving w
func (d Decision) Sent(w int) float64 {
	return utils.Sum(d.Send[w])
}

// Received returns the total flow arriving at w
func (d Decision) Received(w int) float64 {
	return utils.Sum(d.Receive[w])
}

// Outcome records how a period's decision was obtained
type Outcome int

const (
	OutcomeAccepted Outcome = iota
	OutcomeRejectedInfeasible
	OutcomeRejectedOptimizationFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeRejectedInfeasible:
		return "rejected_infeasible"
	case OutcomeRejectedOptimizationFailed:
		return "rejected_optimization_failed"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// MarshalText renders the outcome by name
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText parses an outcome name
func (o *Outcome) UnmarshalText(text []byte) error {
	for _, c := range []Outcome{OutcomeAccepted, OutcomeRejectedInfeasible, OutcomeRejectedOptimizationFailed} {
		if c.String() == string(text) {
			*o = c
			return nil
		}
	}
	return fmt.Errorf("unknown outcome %q", text)
}

// Rejected reports whether the fallback replaced the candidate decision
func (o Outcome) Rejected() bool {
	return o != OutcomeAccepted
}

// Package network holds the immutable description of a warehouse network:
// warehouses, capacities, costs, horizon, initial stock and the nominal
// demand trajectory. A Problem is safe for concurrent reads.
package network

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrMalformed is wrapped by every validation error returned by New
var ErrMalformed = errors.New("malformed problem data")

// Spec is the plain input used to build a Problem. Slices are indexed by
// warehouse position in Warehouses; Demand is indexed [warehouse][period].
type Spec struct {
	Warehouses        []string
	MissCost          []float64
	Capacity          []float64
	InitialStock      []float64
	TransportCost     [][]float64
	TransportCapacity [][]float64
	Demand            [][]float64
}

// Problem is the read-only network description shared by all components
type Problem struct {
	warehouses   []string
	index        map[string]int
	missCost     []float64
	capacity     []float64
	initialStock []float64
	horizon      int

	transportCost     *mat.Dense
	transportCapacity *mat.Dense
	demand            *mat.Dense
}

// New validates the spec and builds a Problem. Self-shipments are disabled
// by forcing the diagonal of the transport capacity matrix to zero.
func New(spec Spec) (*Problem, error) {
	n := len(spec.Warehouses)
	if n == 0 {
		return nil, fmt.Errorf("%w: at least one warehouse is required", ErrMalformed)
	}

	index := make(map[string]int, n)
	for i, id := range spec.Warehouses {
		if id == "" {
			return nil, fmt.Errorf("%w: warehouse %d has an empty id", ErrMalformed, i)
		}
		if _, dup := index[id]; dup {
			return nil, fmt.Errorf("%w: duplicate warehouse id %s", ErrMalformed, id)
		}
		index[id] = i
	}

	if err := checkVector("miss_cost", spec.MissCost, n, false); err != nil {
		return nil, err
	}
	if err := checkVector("capacity", spec.Capacity, n, true); err != nil {
		return nil, err
	}
	if err := checkVector("initial_stock", spec.InitialStock, n, false); err != nil {
		return nil, err
	}
	for i, s := range spec.InitialStock {
		if s > spec.Capacity[i] {
			return nil, fmt.Errorf("%w: warehouse %s: initial stock %g exceeds capacity %g",
				ErrMalformed, spec.Warehouses[i], s, spec.Capacity[i])
		}
	}
	if err := checkMatrix("transport_cost", spec.TransportCost, n, false); err != nil {
		return nil, err
	}
	if err := checkMatrix("transport_capacity", spec.TransportCapacity, n, true); err != nil {
		return nil, err
	}

	if len(spec.Demand) != n {
		return nil, fmt.Errorf("%w: demand has %d rows, expected %d", ErrMalformed, len(spec.Demand), n)
	}
	horizon := len(spec.Demand[0])
	if horizon == 0 {
		return nil, fmt.Errorf("%w: horizon must be at least one period", ErrMalformed)
	}
	for i, row := range spec.Demand {
		if len(row) != horizon {
			return nil, fmt.Errorf("%w: warehouse %s: demand has %d periods, expected %d",
				ErrMalformed, spec.Warehouses[i], len(row), horizon)
		}
		for t, d := range row {
			if d < 0 || math.IsNaN(d) || math.IsInf(d, 0) {
				return nil, fmt.Errorf("%w: warehouse %s: demand[%d] must be finite and non-negative, got %g",
					ErrMalformed, spec.Warehouses[i], t, d)
			}
		}
	}

	p := &Problem{
		warehouses:        append([]string(nil), spec.Warehouses...),
		index:             index,
		missCost:          append([]float64(nil), spec.MissCost...),
		capacity:          append([]float64(nil), spec.Capacity...),
		initialStock:      append([]float64(nil), spec.InitialStock...),
		horizon:           horizon,
		transportCost:     mat.NewDense(n, n, nil),
		transportCapacity: mat.NewDense(n, n, nil),
		demand:            mat.NewDense(n, horizon, nil),
	}
	for w := 0; w < n; w++ {
		for q := 0; q < n; q++ {
			p.transportCost.Set(w, q, spec.TransportCost[w][q])
			if w != q {
				p.transportCapacity.Set(w, q, spec.TransportCapacity[w][q])
			}
		}
		p.demand.SetRow(w, spec.Demand[w])
	}
	return p, nil
}

func checkVector(name string, values []float64, n int, allowInf bool) error {
	if len(values) != n {
		return fmt.Errorf("%w: %s has %d entries, expected %d", ErrMalformed, name, len(values), n)
	}
	for i, v := range values {
		if err := checkValue(v, allowInf); err != nil {
			return fmt.Errorf("%w: %s[%d]: %v", ErrMalformed, name, i, err)
		}
	}
	return nil
}

func checkMatrix(name string, values [][]float64, n int, allowInf bool) error {
	if len(values) != n {
		return fmt.Errorf("%w: %s has %d rows, expected %d", ErrMalformed, name, len(values), n)
	}
	for w, row := range values {
		if len(row) != n {
			return fmt.Errorf("%w: %s row %d has %d columns, expected %d", ErrMalformed, name, w, len(row), n)
		}
		for q, v := range row {
			if err := checkValue(v, allowInf); err != nil {
				return fmt.Errorf("%w: %s[%d][%d]: %v", ErrMalformed, name, w, q, err)
			}
		}
	}
	return nil
}

func checkValue(v float64, allowInf bool) error {
	switch {
	case math.IsNaN(v):
		return errors.New("value is NaN")
	case v < 0:
		return fmt.Errorf("value %g is negative", v)
	case math.IsInf(v, 1) && !allowInf:
		return errors.New("value must be finite")
	}
	return nil
}

// Size returns the number of warehouses
func (p *Problem) Size() int {
	return len(p.warehouses)
}

// Horizon returns the number of simulated periods
func (p *Problem) Horizon() int {
	return p.horizon
}

// Warehouses returns a copy of the warehouse ids in index order
func (p *Problem) Warehouses() []string {
	return append([]string(nil), p.warehouses...)
}

// Warehouse returns the id of warehouse w
func (p *Problem) Warehouse(w int) string {
	return p.warehouses[w]
}

// Index returns the position of a warehouse id
func (p *Problem) Index(id string) (int, bool) {
	i, ok := p.index[id]
	return i, ok
}

// MissCost returns the penalty per unit of unmet demand at w
func (p *Problem) MissCost(w int) float64 {
	return p.missCost[w]
}

// Capacity returns the storage capacity of w (may be +Inf)
func (p *Problem) Capacity(w int) float64 {
	return p.capacity[w]
}

// Capacities returns a copy of all storage capacities
func (p *Problem) Capacities() []float64 {
	return append([]float64(nil), p.capacity...)
}

// InitialStock returns a copy of the stock held before the first period
func (p *Problem) InitialStock() []float64 {
	return append([]float64(nil), p.initialStock...)
}

// TransportCost returns the per-unit cost of shipping from w to q
func (p *Problem) TransportCost(w, q int) float64 {
	return p.transportCost.At(w, q)
}

// TransportCapacity returns the maximum flow from w to q (may be +Inf)
func (p *Problem) TransportCapacity(w, q int) float64 {
	return p.transportCapacity.At(w, q)
}

// TransportCapacities returns a copy of the transport capacity matrix as rows
func (p *Problem) TransportCapacities() [][]float64 {
	n := p.Size()
	out := make([][]float64, n)
	for w := 0; w < n; w++ {
		out[w] = mat.Row(nil, w, p.transportCapacity)
	}
	return out
}

// Demand returns the nominal demand of w in period t
func (p *Problem) Demand(w, t int) float64 {
	return p.demand.At(w, t)
}

// DemandAt returns the nominal demand of every warehouse in period t
func (p *Problem) DemandAt(t int) []float64 {
	return mat.Col(nil, t, p.demand)
}

// Spec returns a deep copy of the problem as a Spec, useful to derive variants
func (p *Problem) Spec() Spec {
	n := p.Size()
	s := Spec{
		Warehouses:        p.Warehouses(),
		MissCost:          append([]float64(nil), p.missCost...),
		Capacity:          p.Capacities(),
		InitialStock:      p.InitialStock(),
		TransportCost:     make([][]float64, n),
		TransportCapacity: p.TransportCapacities(),
		Demand:            make([][]float64, n),
	}
	for w := 0; w < n; w++ {
		s.TransportCost[w] = mat.Row(nil, w, p.transportCost)
		s.Demand[w] = mat.Row(nil, w, p.demand)
	}
	return s
}

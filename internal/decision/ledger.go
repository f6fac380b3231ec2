package decision

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrOutOfOrder is returned when a period is written before its predecessor
	ErrOutOfOrder = errors.New("decision recorded out of causal order")
	// ErrOutOfRange is returned for keys outside the ledger
	ErrOutOfRange = errors.New("decision key out of range")
)

// Key addresses one (experiment, period) cell
type Key struct {
	Experiment int
	Period     int
}

func (k Key) String() string {
	return fmt.Sprintf("e%d/t%d", k.Experiment, k.Period)
}

// Record is what the ledger keeps for each cell
type Record struct {
	Decision Decision  `json:"decision"`
	Outcome  Outcome   `json:"outcome"`
	Cost     float64   `json:"cost"`
	Prices   []float64 `json:"prices"`
	Demand   []float64 `json:"demand"`
}

// Ledger is an experiments x periods table. Each experiment's periods must
// be written in order, exactly once.
type Ledger struct {
	mu      sync.RWMutex
	periods int
	records [][]Record
	next    []int
}

// NewLedger allocates a ledger
func NewLedger(experiments, periods int) *Ledger {
	records := make([][]Record, experiments)
	for e := range records {
		records[e] = make([]Record, 0, periods)
	}
	return &Ledger{
		periods: periods,
		records: records,
		next:    make([]int, experiments),
	}
}

// Experiments returns the number of experiments
func (l *Ledger) Experiments() int {
	return len(l.records)
}

// Periods returns the number of periods per experiment
func (l *Ledger) Periods() int {
	return l.periods
}

// Record writes the cell k. The period must be the next unwritten period of
// the experiment.
func (l *Ledger) Record(k Key, r Record) error {
	if k.Experiment < 0 || k.Experiment >= len(l.records) || k.Period < 0 || k.Period >= l.periods {
		return fmt.Errorf("%w: %s", ErrOutOfRange, k)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if want := l.next[k.Experiment]; k.Period != want {
		return fmt.Errorf("%w: %s written, next period is %d", ErrOutOfOrder, k, want)
	}
	r.Decision = r.Decision.Clone()
	l.records[k.Experiment] = append(l.records[k.Experiment], r)
	l.next[k.Experiment]++
	return nil
}

// Get returns the record of cell k if written
func (l *Ledger) Get(k Key) (Record, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if k.Experiment < 0 || k.Experiment >= len(l.records) {
		return Record{}, false
	}
	recs := l.records[k.Experiment]
	if k.Period < 0 || k.Period >= len(recs) {
		return Record{}, false
	}
	return recs[k.Period], true
}

// Experiment returns the records written so far for experiment e
func (l *Ledger) Experiment(e int) []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if e < 0 || e >= len(l.records) {
		return nil
	}
	out := make([]Record, len(l.records[e]))
	copy(out, l.records[e])
	return out
}

// Complete reports whether every period of experiment e is written
func (l *Ledger) Complete(e int) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return e >= 0 && e < len(l.next) && l.next[e] == l.periods
}

// Count returns how many cells carry each outcome
func (l *Ledger) Count() map[Outcome]int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	counts := make(map[Outcome]int)
	for _, recs := range l.records {
		for _, r := range recs {
			counts[r.Outcome]++
		}
	}
	return counts
}

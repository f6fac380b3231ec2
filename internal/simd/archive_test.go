package simd

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/GoSim-25-26J-441/warehouse-sim/internal/decision"
	"github.com/GoSim-25-26J-441/warehouse-sim/pkg/models"
)

func TestArchiveSaveAndReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "runs.db")
	ctx := context.Background()

	archive, err := OpenArchive(path)
	if err != nil {
		t.Fatalf("OpenArchive error: %v", err)
	}

	ledger := decision.NewLedger(1, 2)
	for p := 0; p < 2; p++ {
		d := decision.New(1)
		d.Order[0] = float64(p + 1)
		if err := ledger.Record(decision.Key{Experiment: 0, Period: p}, decision.Record{
			Decision: d,
			Outcome:  decision.OutcomeRejectedInfeasible,
			Cost:     10,
			Prices:   []float64{5},
			Demand:   []float64{1},
		}); err != nil {
			t.Fatalf("Record error: %v", err)
		}
	}

	created := time.Now().UTC().Truncate(time.Millisecond)
	run := &models.Run{
		ID:        "run-1",
		Status:    models.RunStatusCompleted,
		Policy:    "oracle",
		CreatedAt: created,
		Summary:   &models.RunSummary{ExpectedCost: 20, Experiments: 1, Periods: 2},
	}
	if err := archive.Save(ctx, run, ledger); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if err := archive.Save(ctx, &models.Run{ID: "run-0", Status: models.RunStatusCancelled, CreatedAt: created.Add(-time.Minute)}, nil); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if err := archive.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	archive, err = OpenArchive(path)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer archive.Close()

	got, err := archive.Get(ctx, "run-1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.Policy != "oracle" || got.Summary == nil || got.Summary.ExpectedCost != 20 || !got.CreatedAt.Equal(created) {
		t.Fatalf("unexpected run: %+v", got)
	}

	rows, err := archive.Ledger(ctx, "run-1")
	if err != nil {
		t.Fatalf("Ledger error: %v", err)
	}
	if len(rows) != 1 || len(rows[0]) != 2 {
		t.Fatalf("unexpected ledger shape")
	}
	if rows[0][1].Decision.Order[0] != 2 || rows[0][1].Outcome != decision.OutcomeRejectedInfeasible {
		t.Fatalf("unexpected record: %+v", rows[0][1])
	}

	runs, err := archive.List(ctx)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "run-0" || runs[1].ID != "run-1" {
		t.Fatalf("unexpected list order")
	}

	if _, err := archive.Get(ctx, "missing"); !errors.Is(err, ErrNotArchived) {
		t.Fatalf("expected ErrNotArchived, got %v", err)
	}
	if _, err := archive.Ledger(ctx, "run-0"); !errors.Is(err, ErrNotArchived) {
		t.Fatalf("expected ErrNotArchived for a run without ledger, got %v", err)
	}
}

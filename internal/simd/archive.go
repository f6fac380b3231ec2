package simd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	"github.com/GoSim-25-26J-441/warehouse-sim/internal/decision"
	"github.com/GoSim-25-26J-441/warehouse-sim/pkg/models"
)

var (
	runsBucket    = []byte("runs")
	ledgersBucket = []byte("ledgers")

	ErrNotArchived = errors.New("run not archived")
)

// Archive persists finished runs and their decision ledgers in a bbolt file
// so reports survive a daemon restart
type Archive struct {
	db *bbolt.DB
}

// OpenArchive opens (or creates) the archive at path
func OpenArchive(path string) (*Archive, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{
		Timeout:      time.Second,
		FreelistType: bbolt.FreelistMapType,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{runsBucket, ledgersBucket} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Archive{db: db}, nil
}

// Close closes the underlying database
func (a *Archive) Close() error {
	return a.db.Close()
}

// Save stores a run and, when present, the per-experiment ledger rows.
// Saving the same run again overwrites it.
func (a *Archive) Save(_ context.Context, run *models.Run, ledger *decision.Ledger) error {
	runData, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	var ledgerData []byte
	if ledger != nil {
		rows := make([][]decision.Record, ledger.Experiments())
		for e := range rows {
			rows[e] = ledger.Experiment(e)
		}
		if ledgerData, err = json.Marshal(rows); err != nil {
			return fmt.Errorf("failed to marshal ledger: %w", err)
		}
	}

	return a.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(runsBucket).Put([]byte(run.ID), runData); err != nil {
			return err
		}
		if ledgerData == nil {
			return nil
		}
		return tx.Bucket(ledgersBucket).Put([]byte(run.ID), ledgerData)
	})
}

// Get loads an archived run
func (a *Archive) Get(_ context.Context, runID string) (*models.Run, error) {
	var run models.Run
	err := a.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(runsBucket).Get([]byte(runID))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotArchived, runID)
		}
		return json.Unmarshal(data, &run)
	})
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// Ledger loads the decision records of an archived run, indexed [experiment][period]
func (a *Archive) Ledger(_ context.Context, runID string) ([][]decision.Record, error) {
	var rows [][]decision.Record
	err := a.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(ledgersBucket).Get([]byte(runID))
		if data == nil {
			return fmt.Errorf("%w: no ledger for %s", ErrNotArchived, runID)
		}
		return json.Unmarshal(data, &rows)
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// List returns every archived run ordered by creation time
func (a *Archive) List(_ context.Context) ([]*models.Run, error) {
	var runs []*models.Run
	err := a.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(runsBucket).ForEach(func(_, v []byte) error {
			var run models.Run
			if err := json.Unmarshal(v, &run); err != nil {
				return fmt.Errorf("failed to unmarshal run: %w", err)
			}
			runs = append(runs, &run)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.Before(runs[j].CreatedAt)
	})
	return runs, nil
}

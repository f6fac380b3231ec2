package simd

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/warehouse-sim/internal/evaluation"
	"github.com/GoSim-25-26J-441/warehouse-sim/pkg/config"
	"github.com/GoSim-25-26J-441/warehouse-sim/pkg/models"
	"github.com/GoSim-25-26J-441/warehouse-sim/pkg/utils"
)

var ErrRunExists = errors.New("run already exists")

// RunInput is the payload of a create request. Zero overrides keep the
// values of the YAML config.
type RunInput struct {
	ConfigYAML     string            `json:"config_yaml"`
	Policy         string            `json:"policy,omitempty"`
	Experiments    int               `json:"experiments,omitempty"`
	Seed           int64             `json:"seed,omitempty"`
	MaxParallel    int               `json:"max_parallel,omitempty"`
	CallbackURL    string            `json:"callback_url,omitempty"`
	CallbackSecret string            `json:"callback_secret,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// Config parses the YAML and applies the overrides
func (in *RunInput) Config() (*config.Config, error) {
	if in == nil || in.ConfigYAML == "" {
		return nil, fmt.Errorf("config_yaml is required")
	}
	cfg, err := config.ParseConfigYAMLString(in.ConfigYAML)
	if err != nil {
		return nil, err
	}
	if in.Policy == "" && in.Experiments == 0 && in.Seed == 0 && in.MaxParallel == 0 {
		return cfg, nil
	}
	if in.Policy != "" {
		cfg.Evaluation.Policy = in.Policy
	}
	if in.Experiments != 0 {
		cfg.Evaluation.Experiments = in.Experiments
	}
	if in.Seed != 0 {
		cfg.Evaluation.Seed = in.Seed
	}
	if in.MaxParallel != 0 {
		cfg.Evaluation.MaxParallel = in.MaxParallel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// RunRecord is the daemon's view of one evaluation run
type RunRecord struct {
	Run            *models.Run
	Config         *config.Config
	Progress       *models.RunProgress
	Report         *evaluation.Report
	CallbackSecret string
}

// snapshot copies the mutable run fields so callers never race the executor
func (r *RunRecord) snapshot() *RunRecord {
	run := *r.Run
	if r.Run.Summary != nil {
		summary := *r.Run.Summary
		run.Summary = &summary
	}
	return &RunRecord{
		Run:            &run,
		Config:         r.Config,
		Progress:       r.Progress,
		Report:         r.Report,
		CallbackSecret: r.CallbackSecret,
	}
}

// RunStore keeps runs in memory
type RunStore struct {
	mu   sync.RWMutex
	runs map[string]*RunRecord
}

func NewRunStore() *RunStore {
	return &RunStore{
		runs: make(map[string]*RunRecord),
	}
}

// Create validates the input and registers a pending run. An empty runID
// is generated.
func (s *RunStore) Create(runID string, input *RunInput) (*RunRecord, error) {
	if runID == "" {
		runID = utils.GenerateRunID()
	} else if err := utils.ValidateRunID(runID); err != nil {
		return nil, err
	}

	cfg, err := input.Config()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[runID]; exists {
		return nil, fmt.Errorf("%w: %s", ErrRunExists, runID)
	}

	rec := &RunRecord{
		Run: &models.Run{
			ID:          runID,
			Status:      models.RunStatusPending,
			Policy:      cfg.Evaluation.Policy,
			ConfigYAML:  input.ConfigYAML,
			Experiments: cfg.Evaluation.Experiments,
			Seed:        cfg.Evaluation.Seed,
			CreatedAt:   time.Now().UTC(),
			CallbackURL: input.CallbackURL,
			Metadata:    input.Metadata,
		},
		Config:         cfg,
		Progress:       models.NewRunProgress(cfg.Evaluation.Experiments),
		CallbackSecret: input.CallbackSecret,
	}
	s.runs[runID] = rec
	return rec.snapshot(), nil
}

func (s *RunStore) Get(runID string) (*RunRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.runs[runID]
	if !ok {
		return nil, false
	}
	return rec.snapshot(), true
}

// List returns up to limit runs, oldest first
func (s *RunStore) List(limit int) []*RunRecord {
	return s.ListFiltered(limit, 0, "")
}

// ListFiltered returns a page of runs ordered by creation time. An empty
// status matches every run.
func (s *RunStore) ListFiltered(limit, offset int, status models.RunStatus) []*RunRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}

	all := make([]*RunRecord, 0, len(s.runs))
	for _, rec := range s.runs {
		if status != "" && rec.Run.Status != status {
			continue
		}
		all = append(all, rec)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Run.CreatedAt.Equal(all[j].Run.CreatedAt) {
			return all[i].Run.ID < all[j].Run.ID
		}
		return all[i].Run.CreatedAt.Before(all[j].Run.CreatedAt)
	})

	if offset >= len(all) {
		return []*RunRecord{}
	}
	end := min(offset+limit, len(all))
	out := make([]*RunRecord, 0, end-offset)
	for _, rec := range all[offset:end] {
		out = append(out, rec.snapshot())
	}
	return out
}

// SetStatus moves a run to status. Terminal runs never change again.
func (s *RunStore) SetStatus(runID string, status models.RunStatus, errMsg string) (*RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.transition(runID, status)
	if err != nil {
		return nil, err
	}
	if errMsg != "" {
		rec.Run.Error = errMsg
	}
	return rec.snapshot(), nil
}

// Complete stores the report of a run and marks it completed
func (s *RunStore) Complete(runID string, report *evaluation.Report) (*RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.transition(runID, models.RunStatusCompleted)
	if err != nil {
		return nil, err
	}
	rec.Report = report
	rec.Run.Summary = report.Summary
	rec.Run.Seed = report.Seed
	return rec.snapshot(), nil
}

// transition must be called with s.mu held
func (s *RunStore) transition(runID string, status models.RunStatus) (*RunRecord, error) {
	rec, ok := s.runs[runID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if rec.Run.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: %s is %s", ErrRunTerminal, runID, rec.Run.Status)
	}

	rec.Run.Status = status
	now := time.Now().UTC()
	switch {
	case status == models.RunStatusRunning:
		if rec.Run.StartTime.IsZero() {
			rec.Run.StartTime = now
		}
	case status.IsTerminal():
		rec.Run.EndTime = now
		if !rec.Run.StartTime.IsZero() {
			rec.Run.Duration = now.Sub(rec.Run.StartTime)
		}
	}
	return rec, nil
}

// Package classifier predicts ICD-9 diagnosis codes from clinical text.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"eon-server/internal/utility"
)

// ErrNotReady is returned while the model is unloaded, loading, or after it failed to load.
var ErrNotReady = errors.New("classifier not ready")

type State int

const (
	Unloaded State = iota
	Loading
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Unloaded:
		return "unloaded"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// LoadFunc produces the model and the code index. It runs at most once per Service.
type LoadFunc func(ctx context.Context) (Model, *Index, error)

// Prediction is one diagnosis code above the threshold.
type Prediction struct {
	ICD9Code       string  `json:"icd9_code"`
	Description    string  `json:"description"`
	FullHierarchy  string  `json:"full_hierarchy"`
	ParentCategory *string `json:"parent_category"`
	Probability    float64 `json:"probability"`
}

// Result is the classifier output for one text.
type Result struct {
	Predictions []Prediction            `json:"predictions"`
	Grouped     map[string][]Prediction `json:"grouped_predictions"`
	InputText   string                  `json:"input_text"`
}

type Service struct {
	load      LoadFunc
	remote    *RemoteLookup
	threshold float64

	mu    sync.Mutex
	state State
	err   error
	model Model
	index *Index
}

func NewService(load LoadFunc, remote *RemoteLookup, threshold float64) *Service {
	return &Service{load: load, remote: remote, threshold: threshold}
}

// Start launches the one-time load in the background and returns immediately.
func (s *Service) Start(ctx context.Context) {
	if !s.begin() {
		return
	}
	go s.finish(s.run(ctx))
}

// loadSync performs the one-time load synchronously. Later calls return the recorded outcome.
func (s *Service) loadSync(ctx context.Context) error {
	if s.begin() {
		s.finish(s.run(ctx))
	}
	return s.Ready()
}

func (s *Service) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Unloaded {
		return false
	}
	s.state = Loading
	return true
}

type loadResult struct {
	model Model
	index *Index
	err   error
}

func (s *Service) run(ctx context.Context) loadResult {
	log.Info().Msg("Loading diagnosis classifier...")
	start := time.Now()
	if s.load == nil {
		return loadResult{err: errors.New("no classifier loader configured")}
	}
	model, index, err := s.load(ctx)
	if err == nil && model == nil {
		err = errors.New("loader returned no model")
	}
	if err != nil {
		log.Error().Err(err).Msg("Diagnosis classifier failed to load")
		return loadResult{err: err}
	}
	if index == nil {
		index = EmptyIndex()
	}
	log.Info().Dur("took", time.Since(start)).Int("icd9_codes", index.Len()).Msg("Diagnosis classifier loaded")
	return loadResult{model: model, index: index}
}

func (s *Service) finish(r loadResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.err != nil {
		s.state = Failed
		s.err = r.err
		return
	}
	s.model, s.index = r.model, r.index
	s.state = Ready
}

func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Ready returns nil once the model can serve predictions.
func (s *Service) Ready() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case Ready:
		return nil
	case Loading:
		return fmt.Errorf("%w: model is still loading, please try again in a few minutes", ErrNotReady)
	case Failed:
		return fmt.Errorf("%w: model failed to load: %v", ErrNotReady, s.err)
	}
	return fmt.Errorf("%w: model is not initialized", ErrNotReady)
}

func (s *Service) snapshot() (Model, *Index, error) {
	if err := s.Ready(); err != nil {
		return nil, nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model, s.index, nil
}

// Predict scores text and returns codes whose probability exceeds the threshold.
// It never waits for a load in progress.
func (s *Service) Predict(ctx context.Context, text string) (Result, error) {
	if strings.TrimSpace(text) == "" {
		return Result{}, fmt.Errorf("%w: clinical text is required", utility.ErrValidation)
	}
	model, index, err := s.snapshot()
	if err != nil {
		return Result{}, err
	}

	logits, err := model.Logits(ctx, text)
	if err != nil {
		return Result{}, fmt.Errorf("classify: %w", err)
	}

	predictions := []Prediction{}
	for _, l := range logits {
		p := sigmoid(l.Score)
		if p <= s.threshold || !isCategoryCode(l.Label) {
			continue
		}
		info, ok := index.Lookup(l.Label)
		if !ok {
			info = s.remote.Describe(ctx, l.Label)
		}
		predictions = append(predictions, Prediction{
			ICD9Code:       l.Label,
			Description:    info.Description,
			FullHierarchy:  info.FullHierarchy,
			ParentCategory: info.ParentCategory,
			Probability:    p,
		})
	}

	sort.SliceStable(predictions, func(i, j int) bool {
		return predictions[i].Probability > predictions[j].Probability
	})

	return Result{
		Predictions: predictions,
		Grouped:     GroupByParent(predictions),
		InputText:   text,
	}, nil
}

// GroupByParent buckets predictions by parent category, "Other" when there is none.
func GroupByParent(predictions []Prediction) map[string][]Prediction {
	grouped := map[string][]Prediction{}
	for _, p := range predictions {
		parent := "Other"
		if p.ParentCategory != nil && *p.ParentCategory != "" {
			parent = *p.ParentCategory
		}
		grouped[parent] = append(grouped[parent], p)
	}
	return grouped
}

// isCategoryCode keeps three-character ICD-9 categories (e.g. "414", "V70", "414.0").
func isCategoryCode(label string) bool {
	base, _, _ := strings.Cut(label, ".")
	return len(base) == 3
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

package evaluation

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/promptlab/promptlab/internal/llm"
	"github.com/promptlab/promptlab/internal/models"
	"github.com/promptlab/promptlab/internal/prompt"
)

// Templates is the slice of the prompt service the evaluation core needs.
type Templates interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Prompt, error)
	GetVersion(ctx context.Context, versionID uuid.UUID) (*models.PromptVersion, error)
}

// Cases is the slice of the test case registry the evaluation core needs.
type Cases interface {
	Get(ctx context.Context, id uuid.UUID) (*models.TestCase, error)
	List(ctx context.Context, promptID uuid.UUID) ([]models.TestCase, error)
}

// Results is the evaluation result store contract.
type Results interface {
	Get(ctx context.Context, testCaseID, versionID uuid.UUID) (*models.Evaluation, error)
	Replace(ctx context.Context, e *models.Evaluation) (*models.Evaluation, error)
	ListByVersion(ctx context.Context, versionID uuid.UUID) ([]models.Evaluation, error)
}

// Runner executes one test case against one prompt version. An existing
// stored result short-circuits the run unless the caller forces a rerun, so
// repeated runs cost nothing. Same-pair runs are serialized; different
// pairs are independent.
type Runner struct {
	templates Templates
	cases     Cases
	results   Results
	generator llm.Generator

	// batchConcurrency bounds in-flight generation calls during RunBatch.
	batchConcurrency int

	mu    sync.Mutex
	locks map[pairKey]*pairLock
}

type pairKey struct {
	testCaseID uuid.UUID
	versionID  uuid.UUID
}

type pairLock struct {
	sync.Mutex
	refs int
}

func NewRunner(templates Templates, cases Cases, results Results, generator llm.Generator, batchConcurrency int) *Runner {
	if batchConcurrency < 1 {
		batchConcurrency = 1
	}
	return &Runner{
		templates:        templates,
		cases:            cases,
		results:          results,
		generator:        generator,
		batchConcurrency: batchConcurrency,
		locks:            make(map[pairKey]*pairLock),
	}
}

// RunResult reports what a single run did.
type RunResult struct {
	Evaluation *models.Evaluation `json:"evaluation"`
	// PromptID identifies the prompt the evaluated version belongs to.
	PromptID uuid.UUID `json:"prompt_id"`
	// Skipped is true when an existing result was returned without calling
	// the generator.
	Skipped bool `json:"skipped"`
	// Resolution carries the variable diagnostics for a fresh run.
	Resolution *prompt.Resolution `json:"resolution,omitempty"`
}

// Run evaluates one (test case, version) pair. The read-decide-generate-
// write sequence holds the pair's lock, so a double-click and a racing
// batch cannot both call the generator for the same pair.
func (r *Runner) Run(ctx context.Context, testCaseID, versionID uuid.UUID, model string, forceRerun bool) (*RunResult, error) {
	lock := r.acquire(pairKey{testCaseID, versionID})
	defer r.release(pairKey{testCaseID, versionID}, lock)

	tc, err := r.cases.Get(ctx, testCaseID)
	if err != nil {
		return nil, err
	}
	version, err := r.templates.GetVersion(ctx, versionID)
	if err != nil {
		return nil, err
	}

	if !forceRerun {
		existing, err := r.results.Get(ctx, testCaseID, versionID)
		if err == nil {
			return &RunResult{Evaluation: existing, PromptID: version.PromptID, Skipped: true}, nil
		}
		if !isNotFound(err) {
			return nil, err
		}
	}

	res := prompt.Resolve(version.Template, tc.Input)
	if len(res.MissingInInput) > 0 {
		slog.Debug("placeholders left unresolved",
			"test_case_id", testCaseID,
			"prompt_version_id", versionID,
			"missing", res.MissingInInput,
		)
	}

	gen, err := r.generator.Generate(ctx, res.Rendered, model)
	if err != nil {
		// No write on failure: any prior stored result stays untouched.
		return nil, err
	}

	stored, err := r.results.Replace(ctx, &models.Evaluation{
		TestCaseID:      testCaseID,
		PromptVersionID: versionID,
		Model:           gen.Model,
		RenderedPrompt:  res.Rendered,
		Output:          gen.Output,
		InputTokens:     gen.InputTokens,
		OutputTokens:    gen.OutputTokens,
		CostUSD:         gen.CostUSD,
		LatencyMs:       gen.LatencyMs,
	})
	if err != nil {
		return nil, err
	}

	return &RunResult{Evaluation: stored, PromptID: version.PromptID, Resolution: &res}, nil
}

// RunBatch fans out every test case of the prompt against both versions,
// bounded by the configured concurrency, and folds the per-pair outcomes
// into one report. A failing pair never aborts its siblings.
func (r *Runner) RunBatch(ctx context.Context, promptID, baseVersionID, compareVersionID uuid.UUID, model string, forceRerun bool) ([]models.PairOutcome, error) {
	if _, err := r.templates.Get(ctx, promptID); err != nil {
		return nil, err
	}
	cases, err := r.cases.List(ctx, promptID)
	if err != nil {
		return nil, err
	}

	versionIDs := []uuid.UUID{baseVersionID, compareVersionID}
	outcomes := make([]models.PairOutcome, len(cases)*len(versionIDs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.batchConcurrency)

	for i, tc := range cases {
		for j, versionID := range versionIDs {
			idx := i*len(versionIDs) + j
			testCaseID := tc.ID
			versionID := versionID
			g.Go(func() error {
				result, err := r.Run(ctx, testCaseID, versionID, model, forceRerun)
				outcome := models.PairOutcome{TestCaseID: testCaseID, PromptVersionID: versionID}
				switch {
				case err != nil:
					outcome.Outcome = "failed:" + err.Error()
				case result.Skipped:
					outcome.Outcome = models.OutcomeSkipped
				default:
					outcome.Outcome = models.OutcomeSucceeded
				}
				outcomes[idx] = outcome
				return nil
			})
		}
	}

	// Goroutines never return errors; failures live in the report.
	_ = g.Wait()

	return outcomes, nil
}

func (r *Runner) acquire(key pairKey) *pairLock {
	r.mu.Lock()
	l, ok := r.locks[key]
	if !ok {
		l = &pairLock{}
		r.locks[key] = l
	}
	l.refs++
	r.mu.Unlock()

	l.Lock()
	return l
}

func (r *Runner) release(key pairKey, l *pairLock) {
	l.Unlock()

	r.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(r.locks, key)
	}
	r.mu.Unlock()
}

func isNotFound(err error) bool {
	return errors.Is(err, models.ErrNotFound)
}

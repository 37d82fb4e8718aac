package evaluation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptlab/promptlab/internal/llm"
	"github.com/promptlab/promptlab/internal/models"
)

// In-memory fixtures standing in for the postgres-backed services.

type fakeTemplates struct {
	prompts  map[uuid.UUID]*models.Prompt
	versions map[uuid.UUID]*models.PromptVersion
}

func (f *fakeTemplates) Get(_ context.Context, id uuid.UUID) (*models.Prompt, error) {
	p, ok := f.prompts[id]
	if !ok {
		return nil, fmt.Errorf("prompt %s: %w", id, models.ErrNotFound)
	}
	return p, nil
}

func (f *fakeTemplates) GetVersion(_ context.Context, id uuid.UUID) (*models.PromptVersion, error) {
	v, ok := f.versions[id]
	if !ok {
		return nil, fmt.Errorf("version %s: %w", id, models.ErrNotFound)
	}
	return v, nil
}

type fakeCases struct {
	cases []models.TestCase
}

func (f *fakeCases) Get(_ context.Context, id uuid.UUID) (*models.TestCase, error) {
	for i := range f.cases {
		if f.cases[i].ID == id {
			return &f.cases[i], nil
		}
	}
	return nil, fmt.Errorf("test case %s: %w", id, models.ErrNotFound)
}

func (f *fakeCases) List(_ context.Context, promptID uuid.UUID) ([]models.TestCase, error) {
	var out []models.TestCase
	for _, tc := range f.cases {
		if tc.PromptID == promptID {
			out = append(out, tc)
		}
	}
	return out, nil
}

type resultKey struct {
	testCaseID uuid.UUID
	versionID  uuid.UUID
}

type fakeResults struct {
	mu     sync.Mutex
	stored map[resultKey]*models.Evaluation
	writes int
}

func newFakeResults() *fakeResults {
	return &fakeResults{stored: make(map[resultKey]*models.Evaluation)}
}

func (f *fakeResults) Get(_ context.Context, testCaseID, versionID uuid.UUID) (*models.Evaluation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.stored[resultKey{testCaseID, versionID}]
	if !ok {
		return nil, fmt.Errorf("evaluation: %w", models.ErrNotFound)
	}
	cp := *e
	return &cp, nil
}

func (f *fakeResults) Replace(_ context.Context, e *models.Evaluation) (*models.Evaluation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := resultKey{e.TestCaseID, e.PromptVersionID}
	stored := *e
	if prev, ok := f.stored[key]; ok {
		stored.ID = prev.ID
		stored.CreatedAt = prev.CreatedAt
	} else {
		stored.ID = uuid.New()
		stored.CreatedAt = time.Now()
	}
	stored.UpdatedAt = time.Now()
	f.stored[key] = &stored
	f.writes++
	cp := stored
	return &cp, nil
}

func (f *fakeResults) ListByVersion(_ context.Context, versionID uuid.UUID) ([]models.Evaluation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Evaluation
	for key, e := range f.stored {
		if key.versionID == versionID {
			out = append(out, *e)
		}
	}
	return out, nil
}

type countingGenerator struct {
	calls atomic.Int64
	// failFor makes generation fail for prompts containing this substring.
	failFor string
}

func (g *countingGenerator) Generate(_ context.Context, prompt, model string) (*llm.Generation, error) {
	g.calls.Add(1)
	if g.failFor != "" && strings.Contains(prompt, g.failFor) {
		return nil, &llm.GenerationError{Provider: "test", Reason: "refused"}
	}
	return &llm.Generation{
		Provider:     "test",
		Model:        model,
		Output:       "echo: " + prompt,
		InputTokens:  len(prompt),
		OutputTokens: 5,
	}, nil
}

type fixture struct {
	promptID  uuid.UUID
	baseID    uuid.UUID
	compareID uuid.UUID
	cases     []models.TestCase

	templates *fakeTemplates
	registry  *fakeCases
	results   *fakeResults
	generator *countingGenerator
	runner    *Runner
}

func newFixture(t *testing.T, caseInputs []map[string]string) *fixture {
	t.Helper()
	f := &fixture{
		promptID:  uuid.New(),
		baseID:    uuid.New(),
		compareID: uuid.New(),
	}
	f.templates = &fakeTemplates{
		prompts: map[uuid.UUID]*models.Prompt{
			f.promptID: {ID: f.promptID, Title: "Greeting"},
		},
		versions: map[uuid.UUID]*models.PromptVersion{
			f.baseID:    {ID: f.baseID, PromptID: f.promptID, Sequence: 1, Template: "Hi {{user}}"},
			f.compareID: {ID: f.compareID, PromptID: f.promptID, Sequence: 2, Template: "Hello {{user}}, welcome!"},
		},
	}
	for i, input := range caseInputs {
		f.cases = append(f.cases, models.TestCase{
			ID:        uuid.New(),
			PromptID:  f.promptID,
			Title:     fmt.Sprintf("case %d", i+1),
			Input:     input,
			CreatedAt: time.Now().Add(time.Duration(i) * time.Millisecond),
		})
	}
	f.registry = &fakeCases{cases: f.cases}
	f.results = newFakeResults()
	f.generator = &countingGenerator{}
	f.runner = NewRunner(f.templates, f.registry, f.results, f.generator, 4)
	return f
}

func TestRunner_Run_FreshPair(t *testing.T) {
	f := newFixture(t, []map[string]string{{"user": "John"}})

	result, err := f.runner.Run(context.Background(), f.cases[0].ID, f.baseID, "test-model", false)
	require.NoError(t, err)

	assert.False(t, result.Skipped)
	assert.Equal(t, f.promptID, result.PromptID)
	assert.Equal(t, "Hi John", result.Evaluation.RenderedPrompt)
	assert.Equal(t, "echo: Hi John", result.Evaluation.Output)
	require.NotNil(t, result.Resolution)
	assert.Empty(t, result.Resolution.MissingInInput)
	assert.EqualValues(t, 1, f.generator.calls.Load())
}

func TestRunner_Run_Idempotent(t *testing.T) {
	f := newFixture(t, []map[string]string{{"user": "John"}})
	ctx := context.Background()

	first, err := f.runner.Run(ctx, f.cases[0].ID, f.baseID, "test-model", false)
	require.NoError(t, err)

	second, err := f.runner.Run(ctx, f.cases[0].ID, f.baseID, "test-model", false)
	require.NoError(t, err)

	assert.True(t, second.Skipped)
	assert.Equal(t, first.Evaluation.ID, second.Evaluation.ID)
	assert.Equal(t, first.Evaluation.Output, second.Evaluation.Output)
	// The second run never reached the generator.
	assert.EqualValues(t, 1, f.generator.calls.Load())
	assert.Equal(t, 1, f.results.writes)
}

func TestRunner_Run_ForceRerunOverwrites(t *testing.T) {
	f := newFixture(t, []map[string]string{{"user": "John"}})
	ctx := context.Background()

	first, err := f.runner.Run(ctx, f.cases[0].ID, f.baseID, "test-model", false)
	require.NoError(t, err)

	second, err := f.runner.Run(ctx, f.cases[0].ID, f.baseID, "test-model", true)
	require.NoError(t, err)

	assert.False(t, second.Skipped)
	// Same row replaced in place, not a second row.
	assert.Equal(t, first.Evaluation.ID, second.Evaluation.ID)
	assert.EqualValues(t, 2, f.generator.calls.Load())
	assert.Len(t, f.results.stored, 1)
}

func TestRunner_Run_GenerationFailureWritesNothing(t *testing.T) {
	f := newFixture(t, []map[string]string{{"user": "John"}})
	f.generator.failFor = "John"

	_, err := f.runner.Run(context.Background(), f.cases[0].ID, f.baseID, "test-model", false)

	var genErr *llm.GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, 0, f.results.writes)
}

func TestRunner_Run_FailedRerunKeepsPriorResult(t *testing.T) {
	f := newFixture(t, []map[string]string{{"user": "John"}})
	ctx := context.Background()

	first, err := f.runner.Run(ctx, f.cases[0].ID, f.baseID, "test-model", false)
	require.NoError(t, err)

	f.generator.failFor = "John"
	_, err = f.runner.Run(ctx, f.cases[0].ID, f.baseID, "test-model", true)
	require.Error(t, err)

	kept, err := f.results.Get(ctx, f.cases[0].ID, f.baseID)
	require.NoError(t, err)
	assert.Equal(t, first.Evaluation.Output, kept.Output)
}

func TestRunner_Run_UnknownTestCase(t *testing.T) {
	f := newFixture(t, []map[string]string{{"user": "John"}})

	_, err := f.runner.Run(context.Background(), uuid.New(), f.baseID, "test-model", false)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.EqualValues(t, 0, f.generator.calls.Load())
}

func TestRunner_Run_MissingVariableStillSucceeds(t *testing.T) {
	f := newFixture(t, []map[string]string{{"wrong_key": "x"}})

	result, err := f.runner.Run(context.Background(), f.cases[0].ID, f.baseID, "test-model", false)
	require.NoError(t, err)

	assert.Equal(t, "Hi {{user}}", result.Evaluation.RenderedPrompt)
	require.NotNil(t, result.Resolution)
	assert.Equal(t, []string{"user"}, result.Resolution.MissingInInput)
	assert.Equal(t, []string{"wrong_key"}, result.Resolution.MissingInTemplate)
}

func TestRunner_Run_ConcurrentSamePairGeneratesOnce(t *testing.T) {
	f := newFixture(t, []map[string]string{{"user": "John"}})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.runner.Run(ctx, f.cases[0].ID, f.baseID, "test-model", false)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// The pair lock serializes the racers; all but the first short-circuit.
	assert.EqualValues(t, 1, f.generator.calls.Load())
	assert.Len(t, f.results.stored, 1)
}

func TestRunner_RunBatch_CoversEveryPair(t *testing.T) {
	f := newFixture(t, []map[string]string{
		{"user": "John"},
		{"user": "Jane"},
		{"user": "Ada"},
	})

	outcomes, err := f.runner.RunBatch(context.Background(), f.promptID, f.baseID, f.compareID, "test-model", false)
	require.NoError(t, err)

	// 3 cases x 2 versions.
	require.Len(t, outcomes, 6)
	for _, o := range outcomes {
		assert.Equal(t, models.OutcomeSucceeded, o.Outcome)
	}
	assert.Len(t, f.results.stored, 6)
}

func TestRunner_RunBatch_SkipsStoredPairs(t *testing.T) {
	f := newFixture(t, []map[string]string{{"user": "John"}, {"user": "Jane"}})
	ctx := context.Background()

	_, err := f.runner.Run(ctx, f.cases[0].ID, f.baseID, "test-model", false)
	require.NoError(t, err)
	callsBefore := f.generator.calls.Load()

	outcomes, err := f.runner.RunBatch(ctx, f.promptID, f.baseID, f.compareID, "test-model", false)
	require.NoError(t, err)

	skipped := 0
	for _, o := range outcomes {
		if o.Outcome == models.OutcomeSkipped {
			skipped++
			assert.Equal(t, f.cases[0].ID, o.TestCaseID)
			assert.Equal(t, f.baseID, o.PromptVersionID)
		}
	}
	assert.Equal(t, 1, skipped)
	// Only the three unstored pairs hit the generator.
	assert.EqualValues(t, callsBefore+3, f.generator.calls.Load())
}

func TestRunner_RunBatch_PartialFailure(t *testing.T) {
	f := newFixture(t, []map[string]string{
		{"user": "John"},
		{"user": "Jane"},
	})
	f.generator.failFor = "Jane"

	outcomes, err := f.runner.RunBatch(context.Background(), f.promptID, f.baseID, f.compareID, "test-model", false)
	require.NoError(t, err)
	require.Len(t, outcomes, 4)

	succeeded, failed := 0, 0
	for _, o := range outcomes {
		switch {
		case o.Outcome == models.OutcomeSucceeded:
			succeeded++
		case strings.HasPrefix(o.Outcome, "failed:"):
			failed++
			assert.Equal(t, f.cases[1].ID, o.TestCaseID)
		default:
			t.Errorf("unexpected outcome %q", o.Outcome)
		}
	}
	assert.Equal(t, 2, succeeded)
	assert.Equal(t, 2, failed)
	// Failed pairs stored nothing; John's two pairs did.
	assert.Len(t, f.results.stored, 2)
}

func TestRunner_RunBatch_UnknownPrompt(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.runner.RunBatch(context.Background(), uuid.New(), f.baseID, f.compareID, "test-model", false)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

package evaluation

import (
	"context"

	"github.com/google/uuid"

	"github.com/promptlab/promptlab/internal/models"
)

// Row is one line of a side-by-side comparison: a test case and its stored
// result under each of the two versions. A nil side means not yet run.
type Row struct {
	TestCase models.TestCase    `json:"test_case"`
	Base     *models.Evaluation `json:"base"`
	Compare  *models.Evaluation `json:"compare"`
}

// Assembler joins stored results for two versions against the full test
// case registry of a prompt. Pure read: no mutation, no generation calls.
type Assembler struct {
	templates Templates
	cases     Cases
	results   Results
}

func NewAssembler(templates Templates, cases Cases, results Results) *Assembler {
	return &Assembler{templates: templates, cases: cases, results: results}
}

// Compare returns exactly one row per test case owned by the prompt, in
// creation order, regardless of how many of the two versions have been run.
// Gaps are explicit nils, not errors. Fails only if the prompt itself is
// unknown.
func (a *Assembler) Compare(ctx context.Context, promptID, baseVersionID, compareVersionID uuid.UUID) ([]Row, error) {
	if _, err := a.templates.Get(ctx, promptID); err != nil {
		return nil, err
	}

	cases, err := a.cases.List(ctx, promptID)
	if err != nil {
		return nil, err
	}

	base, err := a.resultsByCase(ctx, baseVersionID)
	if err != nil {
		return nil, err
	}
	compare, err := a.resultsByCase(ctx, compareVersionID)
	if err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(cases))
	for _, tc := range cases {
		rows = append(rows, Row{
			TestCase: tc,
			Base:     base[tc.ID],
			Compare:  compare[tc.ID],
		})
	}
	return rows, nil
}

func (a *Assembler) resultsByCase(ctx context.Context, versionID uuid.UUID) (map[uuid.UUID]*models.Evaluation, error) {
	evals, err := a.results.ListByVersion(ctx, versionID)
	if err != nil {
		return nil, err
	}
	byCase := make(map[uuid.UUID]*models.Evaluation, len(evals))
	for i := range evals {
		byCase[evals[i].TestCaseID] = &evals[i]
	}
	return byCase, nil
}

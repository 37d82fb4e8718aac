package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/promptlab/promptlab/internal/cache"
	"github.com/promptlab/promptlab/internal/evaluation"
	"github.com/promptlab/promptlab/internal/models"
	"github.com/promptlab/promptlab/internal/queue"
)

type EvaluationHandler struct {
	runner    *evaluation.Runner
	assembler *evaluation.Assembler
	batches   *evaluation.BatchStore
	queue     *queue.Client
	compares  *cache.CompareCache
	model     string
}

func NewEvaluationHandler(runner *evaluation.Runner, assembler *evaluation.Assembler, batches *evaluation.BatchStore, qc *queue.Client, compares *cache.CompareCache, defaultModel string) *EvaluationHandler {
	return &EvaluationHandler{
		runner:    runner,
		assembler: assembler,
		batches:   batches,
		queue:     qc,
		compares:  compares,
		model:     defaultModel,
	}
}

// Run executes one (test case, version) pair synchronously.
func (h *EvaluationHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TestCaseID      uuid.UUID `json:"test_case_id"`
		PromptVersionID uuid.UUID `json:"prompt_version_id"`
		Model           string    `json:"model"`
		ForceRerun      bool      `json:"force_rerun"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Model == "" {
		req.Model = h.model
	}

	result, err := h.runner.Run(r.Context(), req.TestCaseID, req.PromptVersionID, req.Model, req.ForceRerun)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if !result.Skipped && h.compares != nil {
		if err := h.compares.Invalidate(r.Context(), result.PromptID); err != nil {
			slog.Warn("compare cache invalidation failed", "error", err)
		}
	}

	writeJSON(w, http.StatusOK, result)
}

// RunBatch records the batch and hands it to the worker; the caller polls
// GetBatch for the report.
func (h *EvaluationHandler) RunBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PromptID         uuid.UUID `json:"prompt_id"`
		BaseVersionID    uuid.UUID `json:"base_version_id"`
		CompareVersionID uuid.UUID `json:"compare_version_id"`
		Model            string    `json:"model"`
		ForceRerun       bool      `json:"force_rerun"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Model == "" {
		req.Model = h.model
	}

	batch, err := h.batches.Create(r.Context(), &models.BatchRun{
		PromptID:         req.PromptID,
		BaseVersionID:    req.BaseVersionID,
		CompareVersionID: req.CompareVersionID,
		Model:            req.Model,
		ForceRerun:       req.ForceRerun,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if err := h.queue.EnqueueEvaluationBatch(queue.EvaluationBatchPayload{BatchRunID: batch.ID}); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, batch)
}

func (h *EvaluationHandler) GetBatch(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid batch run ID")
		return
	}

	batch, err := h.batches.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, batch)
}

// Compare assembles the side-by-side view of two versions across every test
// case of the prompt. The view is cached briefly; any evaluation write for
// the prompt invalidates it.
func (h *EvaluationHandler) Compare(w http.ResponseWriter, r *http.Request) {
	promptID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid prompt ID")
		return
	}
	baseID, err := uuid.Parse(r.URL.Query().Get("base"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "base query parameter required")
		return
	}
	compareID, err := uuid.Parse(r.URL.Query().Get("against"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "against query parameter required")
		return
	}

	if h.compares != nil {
		var cached []evaluation.Row
		if err := h.compares.Get(r.Context(), promptID, baseID, compareID, &cached); err == nil {
			writeJSON(w, http.StatusOK, map[string]interface{}{"rows": cached, "count": len(cached)})
			return
		}
	}

	rows, err := h.assembler.Compare(r.Context(), promptID, baseID, compareID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if h.compares != nil {
		if err := h.compares.Set(r.Context(), promptID, baseID, compareID, rows); err != nil {
			slog.Warn("compare cache write failed", "error", err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"rows": rows, "count": len(rows)})
}

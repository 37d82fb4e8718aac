package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/promptlab/promptlab/internal/testcase"
)

type TestCaseHandler struct {
	registry *testcase.Registry
}

func NewTestCaseHandler(registry *testcase.Registry) *TestCaseHandler {
	return &TestCaseHandler{registry: registry}
}

func (h *TestCaseHandler) Create(w http.ResponseWriter, r *http.Request) {
	promptID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid prompt ID")
		return
	}

	var req struct {
		Title string            `json:"title"`
		Input map[string]string `json:"input"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tc, err := h.registry.Create(r.Context(), promptID, req.Title, req.Input)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, tc)
}

func (h *TestCaseHandler) List(w http.ResponseWriter, r *http.Request) {
	promptID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid prompt ID")
		return
	}

	cases, err := h.registry.List(r.Context(), promptID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"test_cases": cases, "count": len(cases)})
}

func (h *TestCaseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid test case ID")
		return
	}

	if err := h.registry.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

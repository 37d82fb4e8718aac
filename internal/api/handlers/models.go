package handlers

import (
	"net/http"

	"github.com/promptlab/promptlab/internal/llm"
)

type ModelsHandler struct {
	gateway *llm.Gateway
}

func NewModelsHandler(gateway *llm.Gateway) *ModelsHandler {
	return &ModelsHandler{gateway: gateway}
}

func (h *ModelsHandler) List(w http.ResponseWriter, r *http.Request) {
	models := h.gateway.ListModels()
	writeJSON(w, http.StatusOK, map[string]interface{}{"models": models, "count": len(models)})
}

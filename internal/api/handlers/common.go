package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/promptlab/promptlab/internal/llm"
	"github.com/promptlab/promptlab/internal/models"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeErr(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps domain errors to statuses: bad references are 404,
// bad input is 400, provider failures are 502, anything else is a 500
// infrastructure failure.
func writeServiceError(w http.ResponseWriter, err error) {
	var genErr *llm.GenerationError
	switch {
	case errors.Is(err, models.ErrNotFound):
		writeErr(w, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrValidation):
		writeErr(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &genErr):
		writeErr(w, http.StatusBadGateway, genErr.Error())
	default:
		writeErr(w, http.StatusInternalServerError, err.Error())
	}
}

package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptlab/promptlab/internal/llm"
	"github.com/promptlab/promptlab/internal/models"
)

func TestWriteServiceError_Mapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"not found", fmt.Errorf("prompt abc: %w", models.ErrNotFound), http.StatusNotFound},
		{"validation", fmt.Errorf("title is required: %w", models.ErrValidation), http.StatusBadRequest},
		{"generation", &llm.GenerationError{Provider: "openai", Reason: "timeout"}, http.StatusBadGateway},
		{"wrapped generation", fmt.Errorf("run: %w", &llm.GenerationError{Reason: "boom"}), http.StatusBadGateway},
		{"infrastructure", errors.New("connection refused"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeServiceError(rec, tc.err)

			assert.Equal(t, tc.want, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, http.StatusCreated, map[string]int{"count": 3})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"count":3}`, rec.Body.String())
}

package http

import (
	"encoding/json"
	"errors"
	"github.com/litetable/litetable-filter/internal/filter"
	"github.com/litetable/litetable-filter/internal/mutation"
	"github.com/litetable/litetable-filter/internal/storage"
	"github.com/rs/zerolog/log"
	"net/http"
)

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error string `json:"error"`
	Path  string `json:"path,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Warn().Err(err).Msg("error encoding response")
	}
}

// writeError maps domain errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Error: err.Error()}
	status := http.StatusInternalServerError

	var invalid *filter.InvalidFilterError
	switch {
	case errors.As(err, &invalid):
		status = http.StatusBadRequest
		resp.Path = invalid.Path
	case errors.Is(err, filter.ErrInvalidFilter),
		errors.Is(err, mutation.ErrInvalidMutation),
		errors.Is(err, storage.ErrInvalidRange):
		status = http.StatusBadRequest
	case errors.Is(err, storage.ErrFamilyNotAllowed):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, storage.ErrDataUnavailable):
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, resp)
}

// Package handlers implements the JSON HTTP API over the ledger, statement,
// import and job services.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"cloud.google.com/go/civil"

	"github.com/dvloznov/trade-ledger/internal/api/middleware"
	bq "github.com/dvloznov/trade-ledger/internal/bigquery"
	"github.com/dvloznov/trade-ledger/internal/jobs"
	"github.com/dvloznov/trade-ledger/internal/ledger"
	"github.com/dvloznov/trade-ledger/internal/logger"
	"github.com/dvloznov/trade-ledger/internal/metrics"
	"github.com/dvloznov/trade-ledger/internal/pipeline"
	"github.com/dvloznov/trade-ledger/internal/statement"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// validationResponse is the 422 body for records that fail validation.
type validationResponse struct {
	Error    string `json:"error"`
	RecordID string `json:"record_id"`
	Field    string `json:"field"`
}

// writeServiceError maps service errors onto HTTP statuses. Anything
// unrecognised is logged and reported as a 500 with the given message.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, message string) {
	var verr *ledger.ValidationError
	switch {
	case errors.As(err, &verr):
		metrics.IncValidationFailure(verr.Field)
		middleware.WriteJSON(w, http.StatusUnprocessableEntity, validationResponse{
			Error:    verr.Error(),
			RecordID: verr.RecordID,
			Field:    verr.Field,
		})
	case errors.Is(err, bq.ErrNotFound), errors.Is(err, jobs.ErrJobNotFound), errors.Is(err, statement.ErrUnknownContact):
		middleware.WriteError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, bq.ErrContactInUse):
		middleware.WriteError(w, http.StatusConflict, "Contact is still referenced by transactions")
	case errors.Is(err, bq.ErrDuplicate), errors.Is(err, pipeline.ErrDuplicateImport):
		middleware.WriteError(w, http.StatusConflict, "Already exists")
	default:
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Str("path", r.URL.Path).Msg(message)
		middleware.WriteError(w, http.StatusInternalServerError, message)
	}
}

// decodeBody reads a bounded JSON body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	data, ok := readBody(w, r)
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// readBody reads at most maxBodyBytes of the request body.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	return readLimited(w, r, maxBodyBytes)
}

func readLimited(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.WriteError(w, http.StatusRequestEntityTooLarge, "Request body too large")
		} else {
			middleware.WriteError(w, http.StatusBadRequest, "Failed to read request body")
		}
		return nil, false
	}
	return data, true
}

// dateParam parses an optional YYYY-MM-DD query parameter.
func dateParam(r *http.Request, name string, fallback civil.Date) (civil.Date, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return fallback, nil
	}
	d, err := civil.ParseDate(s)
	if err != nil {
		return civil.Date{}, fmt.Errorf("invalid %s format, expected YYYY-MM-DD", name)
	}
	return d, nil
}

// intParam parses an optional positive integer query parameter.
func intParam(r *http.Request, name string, fallback int) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer", name)
	}
	return n, nil
}

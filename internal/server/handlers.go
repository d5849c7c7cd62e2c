package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/YuminosukeSato/paxcast/dataset"
	"github.com/YuminosukeSato/paxcast/internal/metricsdb"
	"github.com/YuminosukeSato/paxcast/internal/report"
	"github.com/YuminosukeSato/paxcast/internal/service"
	pkgerrors "github.com/YuminosukeSato/paxcast/pkg/errors"
)

type trainResponse struct {
	Message string `json:"message"`
	Version string `json:"version"`
}

type updateRequest struct {
	ActualValue *float64 `json:"actual_value"`
}

type operationalResponse struct {
	Metrics []metricsdb.OperationalMetric `json:"metrics"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// train retrains both models. The body is optional: a JSON array of records
// trains on those rows, an empty body trains on the configured dataset.
func (s *Server) train(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.respondError(w, r, pkgerrors.Wrap(err, "read body"))
		return
	}

	var frame *dataset.Frame
	if len(bytes.TrimSpace(body)) > 0 {
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.UseNumber()
		var records []map[string]any
		if err := dec.Decode(&records); err != nil {
			s.respondError(w, r, pkgerrors.NewValidationError("body", "expected a JSON array of records", err.Error()))
			return
		}
		if len(records) == 0 {
			s.respondError(w, r, pkgerrors.NewEmptyDatasetError("body", 0))
			return
		}
		frame = dataset.FromRecords(records)
	}

	manifest, err := s.backend.Train(r.Context(), frame)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, trainResponse{
		Message: "Models trained successfully",
		Version: manifest.Version,
	})
}

// predict serves one prediction. model_type may come from the body or the
// query string; the body wins when both are set.
func (s *Server) predict(w http.ResponseWriter, r *http.Request) {
	var req service.PredictRequest
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil && err != io.EOF {
		s.respondError(w, r, decodeError(err))
		return
	}
	if req.ModelType == "" {
		req.ModelType = r.URL.Query().Get("model_type")
	}

	res, err := s.backend.Predict(r.Context(), req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) updatePrediction(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		s.respondError(w, r, pkgerrors.NewValidationError("id", "must be an integer", raw))
		return
	}

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, decodeError(err))
		return
	}
	if req.ActualValue == nil {
		s.respondError(w, r, pkgerrors.NewValidationError("actual_value", "field required", nil))
		return
	}

	if _, err := s.backend.UpdatePrediction(r.Context(), id, *req.ActualValue); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{
		Message: "Prediction " + strconv.FormatInt(id, 10) + " updated successfully",
	})
}

// decodeError keeps body-size errors intact so they map to 413; anything
// else is malformed input.
func decodeError(err error) error {
	var tooLarge *http.MaxBytesError
	if pkgerrors.As(err, &tooLarge) {
		return err
	}
	return pkgerrors.NewValidationError("body", "invalid JSON", err.Error())
}

func (s *Server) modelMetrics(w http.ResponseWriter, r *http.Request) {
	m, err := s.backend.ModelMetrics(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) modelMetricsPlot(w http.ResponseWriter, r *http.Request) {
	rows, err := s.backend.MLMetrics(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := report.WriteMLMetricsPNG(&buf, rows); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (s *Server) operationalMetrics(w http.ResponseWriter, r *http.Request) {
	rows, err := s.backend.OperationalMetrics(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, operationalResponse{Metrics: rows})
}

func (s *Server) manifest(w http.ResponseWriter, r *http.Request) {
	m, err := s.backend.Manifest(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

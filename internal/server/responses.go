package server

import (
	"encoding/json"
	"net/http"

	pkgerrors "github.com/YuminosukeSato/paxcast/pkg/errors"
	"github.com/YuminosukeSato/paxcast/pkg/log"
)

// errorResponse is the body of every error reply.
type errorResponse struct {
	Detail string `json:"detail"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Detail: msg})
}

// statusFor maps a service error onto an HTTP status.
func statusFor(err error) int {
	var (
		notTrained   *pkgerrors.ModelNotTrainedError
		unsupported  *pkgerrors.UnsupportedModelError
		validation   *pkgerrors.ValidationError
		notFound     *pkgerrors.NotFoundError
		empty        *pkgerrors.EmptyDatasetError
		insufficient *pkgerrors.InsufficientDataError
		tooLarge     *http.MaxBytesError
	)
	switch {
	case pkgerrors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case pkgerrors.As(err, &notTrained),
		pkgerrors.As(err, &unsupported),
		pkgerrors.As(err, &validation):
		return http.StatusBadRequest
	case pkgerrors.As(err, &notFound):
		return http.StatusNotFound
	case pkgerrors.As(err, &empty), pkgerrors.As(err, &insufficient):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as {"detail": ...} and logs it. Storage failures
// keep the underlying cause in the message.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()

	var persistence *pkgerrors.PersistenceError
	if pkgerrors.As(err, &persistence) {
		msg = "storage failure: " + persistence.Error()
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", err, log.URLKey, r.URL.Path, log.StatusKey, status)
	} else {
		s.logger.Warn("request rejected", log.ErrAttrKey, msg, log.URLKey, r.URL.Path, log.StatusKey, status)
	}
	writeError(w, status, msg)
}

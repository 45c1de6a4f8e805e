package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"userpredict/ml"
	"userpredict/monitoring"
)

type predictResponse struct {
	Prediction int `json:"prediction"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Status       string    `json:"status"`
	ModelVersion int       `json:"model_version"`
	TrainedAt    time.Time `json:"trained_at"`
}

// PredictHandler serves POST /predict against one immutable artifact.
type PredictHandler struct {
	artifact *ml.ModelArtifact
	// cache maps Record.Key to a prediction; nil when caching is disabled.
	cache   *lru.Cache[string, int]
	logger  *zap.Logger
	metrics *monitoring.Metrics
}

// NewPredictHandler returns a handler for artifact. A cacheSize of zero
// disables the prediction cache.
func NewPredictHandler(artifact *ml.ModelArtifact, cacheSize int, logger *zap.Logger, metrics *monitoring.Metrics) (*PredictHandler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &PredictHandler{artifact: artifact, logger: logger, metrics: metrics}
	if cacheSize > 0 {
		cache, err := lru.New[string, int](cacheSize)
		if err != nil {
			return nil, errors.Wrap(err, "create prediction cache")
		}
		h.cache = cache
	}
	return h, nil
}

// ServeHTTP decodes one record and writes its prediction.
func (h *PredictHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rec, err := ml.DecodeRecord(r.Body)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	key := rec.Key()
	if h.cache != nil {
		if label, ok := h.cache.Get(key); ok {
			h.metrics.CacheHit()
			writeJSON(w, http.StatusOK, predictResponse{Prediction: label})
			return
		}
	}

	label, _, err := h.artifact.Predict(rec)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if h.cache != nil {
		h.cache.Add(key, label)
	}
	writeJSON(w, http.StatusOK, predictResponse{Prediction: label})
}

func (h *PredictHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		setErrorKind(w, "validation")
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}

	kind := ml.ErrorKind(err)
	status := statusFor(err)
	setErrorKind(w, kind)
	fields := []zap.Field{
		zap.String("request_id", GetRequestID(r.Context())),
		zap.String("error_kind", kind),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("prediction failed", fields...)
	} else {
		h.logger.Info("prediction rejected", fields...)
	}
	writeError(w, status, err.Error())
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrAuth):
		return http.StatusUnauthorized
	case errors.Is(err, ml.ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func healthHandler(artifact *ml.ModelArtifact) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{
			Status:       "ok",
			ModelVersion: artifact.Version,
			TrainedAt:    artifact.CreatedAt,
		})
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

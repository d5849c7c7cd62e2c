// Package service orchestrates training, prediction and the metrics store.
// HTTP handlers and the CLI both go through it.
package service

import (
	"context"
	"encoding/json"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/YuminosukeSato/paxcast/dataset"
	"github.com/YuminosukeSato/paxcast/internal/metricsdb"
	"github.com/YuminosukeSato/paxcast/internal/modelstore"
	"github.com/YuminosukeSato/paxcast/internal/telemetry"
	"github.com/YuminosukeSato/paxcast/internal/training"
	pkgerrors "github.com/YuminosukeSato/paxcast/pkg/errors"
	"github.com/YuminosukeSato/paxcast/pkg/log"
	"github.com/YuminosukeSato/paxcast/preprocessing"
	"github.com/YuminosukeSato/paxcast/sklearn/xgboost"
)

// Model kinds accepted by Predict.
const (
	KindBaseline = "baseline"
	KindXGBoost  = xgboost.ModelKind
)

// DefaultKind is used when a prediction request names no model.
const DefaultKind = KindXGBoost

// ModelStore is the subset of modelstore.Store the service needs.
type ModelStore interface {
	LoadBaseline() (float64, error)
	LoadRegressor() (*xgboost.XGBRegressor, error)
	Commit(baseline float64, reg *xgboost.XGBRegressor, manifest modelstore.Manifest) error
	Manifest() (modelstore.Manifest, error)
}

// MetricsStore is the subset of metricsdb.Store the service needs.
type MetricsStore interface {
	InsertOperationalMetric(ctx context.Context, m metricsdb.OperationalMetric) error
	InsertPrediction(ctx context.Context, p metricsdb.Prediction) (int64, error)
	UpdateActualValue(ctx context.Context, id int64, actual float64) (metricsdb.MLMetric, error)
	FetchOperationalMetrics(ctx context.Context) ([]metricsdb.OperationalMetric, error)
	FetchMLMetrics(ctx context.Context) ([]metricsdb.MLMetric, error)
	FetchPredictions(ctx context.Context) ([]metricsdb.Prediction, error)
}

// PredictRequest is the body of POST /predict.
type PredictRequest struct {
	Data      map[string]any `json:"data"`
	ModelType string         `json:"model_type"`
}

// PredictResult is a served prediction and the id of its stored record.
type PredictResult struct {
	Prediction float64 `json:"prediction"`
	ID         int64   `json:"id"`
}

// ModelMetrics is the response of GET /metrics/model.
type ModelMetrics struct {
	Metrics     []metricsdb.MLMetric   `json:"metrics"`
	Predictions []metricsdb.Prediction `json:"predictions"`
}

// Service wires the stores together.
type Service struct {
	models    ModelStore
	db        MetricsStore
	cache     *lru.Cache[string, any]
	trainMu   sync.Mutex

	// cacheMu は generation と cache への追加・破棄を直列化する
	cacheMu    sync.Mutex
	generation uint64

	dataPath  string
	telemetry *telemetry.Metrics
	logger    log.Logger

	loadDataset func(path string) (*dataset.Frame, error)
}

// Option configures a Service.
type Option func(*Service)

// WithDataPath sets the dataset used by Train when no frame is supplied.
func WithDataPath(path string) Option {
	return func(s *Service) { s.dataPath = path }
}

// WithTelemetry attaches Prometheus collectors.
func WithTelemetry(m *telemetry.Metrics) Option {
	return func(s *Service) { s.telemetry = m }
}

// WithLogger overrides the component logger.
func WithLogger(l log.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// New builds a Service. cacheSize bounds the number of cached models.
func New(models ModelStore, db MetricsStore, cacheSize int, opts ...Option) (*Service, error) {
	if models == nil || db == nil {
		return nil, pkgerrors.NewValidationError("stores", "model store and metrics store are required", nil)
	}
	if cacheSize <= 0 {
		return nil, pkgerrors.NewValidationError("cache_size", "must be positive", cacheSize)
	}
	cache, err := lru.New[string, any](cacheSize)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "create model cache")
	}
	s := &Service{
		models:      models,
		db:          db,
		cache:       cache,
		logger:      log.GetLoggerWithName("service"),
		loadDataset: dataset.Load,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Train fits both models and commits them. A nil frame loads the configured
// dataset file. Prior artifacts stay in place when any step fails.
func (s *Service) Train(ctx context.Context, frame *dataset.Frame) (_ modelstore.Manifest, err error) {
	s.trainMu.Lock()
	defer s.trainMu.Unlock()
	defer func() { s.telemetry.ObserveTraining(err) }()

	if err := ctx.Err(); err != nil {
		return modelstore.Manifest{}, err
	}

	if frame == nil {
		if s.dataPath == "" {
			return modelstore.Manifest{}, pkgerrors.NewValidationError("data_path", "no training data supplied and no dataset configured", "")
		}
		s.logger.Info("loading training dataset", log.PathKey, s.dataPath)
		frame, err = s.loadDataset(s.dataPath)
		if err != nil {
			return modelstore.Manifest{}, err
		}
	}

	res, err := training.Run(frame)
	if err != nil {
		s.logger.Error("training failed", err, log.OperationKey, log.OperationTrain)
		return modelstore.Manifest{}, err
	}

	manifest := modelstore.NewManifest(res.Samples, res.BaselineSamples, res.Baseline)
	if err := s.models.Commit(res.Baseline, res.Regressor, manifest); err != nil {
		s.logger.Error("committing artifacts failed", err, log.OperationKey, log.OperationTrain)
		return modelstore.Manifest{}, err
	}
	s.invalidate()

	s.logger.Info("models trained",
		log.OperationKey, log.OperationTrain,
		log.ModelVersionKey, manifest.Version,
		log.SamplesKey, manifest.Samples,
		log.BaselineValueKey, manifest.BaselineValue)
	return manifest, nil
}

// Predict serves one prediction and stores it.
func (s *Service) Predict(ctx context.Context, req PredictRequest) (PredictResult, error) {
	kind := req.ModelType
	if kind == "" {
		kind = DefaultKind
	}

	var (
		value float64
		err   error
	)
	switch kind {
	case KindBaseline:
		value, err = s.baseline()
	case KindXGBoost:
		value, err = s.predictRegressor(req.Data)
	default:
		return PredictResult{}, pkgerrors.NewUnsupportedModelError(kind)
	}
	if err != nil {
		return PredictResult{}, err
	}

	input, err := json.Marshal(req.Data)
	if err != nil {
		return PredictResult{}, pkgerrors.NewValidationError("data", "input is not serializable", err.Error())
	}
	id, err := s.db.InsertPrediction(ctx, metricsdb.Prediction{
		ModelType:      kind,
		InputData:      string(input),
		PredictedValue: value,
	})
	if err != nil {
		return PredictResult{}, asPersistence("save prediction", err)
	}
	s.telemetry.ObservePrediction(kind)

	s.logger.Debug("prediction served",
		log.OperationKey, log.OperationPredict,
		log.ModelKindKey, kind,
		log.PredictionIDKey, id,
		log.PredictedValueKey, value)
	return PredictResult{Prediction: value, ID: id}, nil
}

// invalidate drops every cached model and makes loads that started before
// the call skip the cache.
func (s *Service) invalidate() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.generation++
	s.cache.Purge()
}

func (s *Service) currentGeneration() uint64 {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	return s.generation
}

// remember caches v unless the models were replaced since gen was read.
func (s *Service) remember(kind string, v any, gen uint64) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if s.generation == gen {
		s.cache.Add(kind, v)
	}
}

func (s *Service) baseline() (float64, error) {
	if v, ok := s.cache.Get(KindBaseline); ok {
		return v.(float64), nil
	}
	gen := s.currentGeneration()
	v, err := s.models.LoadBaseline()
	if err != nil {
		return 0, notTrained(KindBaseline, err)
	}
	s.remember(KindBaseline, v, gen)
	return v, nil
}

func (s *Service) regressor() (*xgboost.XGBRegressor, error) {
	if v, ok := s.cache.Get(KindXGBoost); ok {
		return v.(*xgboost.XGBRegressor), nil
	}
	gen := s.currentGeneration()
	m, err := s.models.LoadRegressor()
	if err != nil {
		return nil, notTrained(KindXGBoost, err)
	}
	s.remember(KindXGBoost, m, gen)
	return m, nil
}

func (s *Service) predictRegressor(data map[string]any) (float64, error) {
	m, err := s.regressor()
	if err != nil {
		return 0, err
	}
	row := make([]float64, len(training.Features))
	for i, name := range training.Features {
		raw, ok := data[name]
		if !ok {
			return 0, pkgerrors.NewValidationError("data."+name, "feature is required", nil)
		}
		v, ok := preprocessing.ParseFloat(raw)
		if !ok {
			return 0, pkgerrors.NewValidationError("data."+name, "feature must be numeric", raw)
		}
		row[i] = v
	}
	return m.PredictOne(row)
}

// UpdatePrediction records the observed value for prediction id and returns
// the recomputed cumulative metrics.
func (s *Service) UpdatePrediction(ctx context.Context, id int64, actual float64) (metricsdb.MLMetric, error) {
	m, err := s.db.UpdateActualValue(ctx, id, actual)
	if err != nil {
		return metricsdb.MLMetric{}, err
	}
	s.telemetry.SetModelQuality(m.RMSE, m.MAE)
	s.logger.Info("actual value recorded",
		log.OperationKey, log.OperationUpdateActual,
		log.PredictionIDKey, id,
		log.ActualValueKey, actual,
		log.RMSEKey, m.RMSE,
		log.MAEKey, m.MAE)
	return m, nil
}

// ModelMetrics returns the RMSE/MAE history and every stored prediction.
func (s *Service) ModelMetrics(ctx context.Context) (ModelMetrics, error) {
	metrics, err := s.db.FetchMLMetrics(ctx)
	if err != nil {
		return ModelMetrics{}, err
	}
	preds, err := s.db.FetchPredictions(ctx)
	if err != nil {
		return ModelMetrics{}, err
	}
	return ModelMetrics{Metrics: metrics, Predictions: preds}, nil
}

// MLMetrics returns the RMSE/MAE history only.
func (s *Service) MLMetrics(ctx context.Context) ([]metricsdb.MLMetric, error) {
	return s.db.FetchMLMetrics(ctx)
}

// OperationalMetrics returns every recorded request.
func (s *Service) OperationalMetrics(ctx context.Context) ([]metricsdb.OperationalMetric, error) {
	return s.db.FetchOperationalMetrics(ctx)
}

// RecordRequest stores one operational metric row.
func (s *Service) RecordRequest(ctx context.Context, m metricsdb.OperationalMetric) error {
	return s.db.InsertOperationalMetric(ctx, m)
}

// Manifest returns the manifest of the deployed models, or
// ModelNotTrainedError before the first training run.
func (s *Service) Manifest(ctx context.Context) (modelstore.Manifest, error) {
	if err := ctx.Err(); err != nil {
		return modelstore.Manifest{}, err
	}
	m, err := s.models.Manifest()
	if err != nil {
		return modelstore.Manifest{}, notTrained("any", err)
	}
	return m, nil
}

func notTrained(kind string, err error) error {
	var nf *pkgerrors.NotFoundError
	if pkgerrors.As(err, &nf) {
		return pkgerrors.NewModelNotTrainedError(kind)
	}
	return err
}

func asPersistence(op string, err error) error {
	var pe *pkgerrors.PersistenceError
	if pkgerrors.As(err, &pe) {
		return err
	}
	return pkgerrors.NewPersistenceError(op, err)
}

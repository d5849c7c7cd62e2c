// Package paxcast forecasts paid passengers (PASSAGEIROS_PAGOS) of domestic
// flights from available seat-kilometres (ASK), available tonne-kilometres
// (ATK) and fuel consumption (COMBUSTIVEL_LITROS).
//
// Two models are trained from the same dataset: a baseline that always
// predicts the training mean, and a gradient-boosted tree regressor
// (sklearn/xgboost). Both are served over HTTP by cmd/paxcast.
//
// # Layout
//
//   - core/model: estimator state and atomic JSON artifact persistence
//   - core/parallel: row-chunked parallel loops
//   - dataset: in-memory frames loaded from parquet, CSV or JSON
//   - preprocessing: numeric coercion and complete-case selection
//   - metrics: RMSE, MAE and MSE
//   - sklearn/xgboost: exact greedy gradient boosting
//   - internal/training: the training pipeline for both models
//   - internal/modelstore: model artifacts on disk
//   - internal/metricsdb: predictions, operational metrics and error history
//     on DuckDB or SQLite
//   - internal/service, internal/server: the HTTP API
//   - internal/etl: raw parquet cleaning on DuckDB
//   - pkg/errors, pkg/log: typed errors and zerolog logging
//
// # HTTP API
//
//	POST /train                  retrain from the request body or DATA_PATH
//	POST /predict                {"data": {...}, "model_type": "baseline"|"xgboost"}
//	PUT  /prediction/{id}        {"actual_value": float}
//	GET  /metrics/model          RMSE/MAE history and stored predictions
//	GET  /metrics/model/plot.png RMSE/MAE history chart
//	GET  /metrics/operational    one row per handled request
//	GET  /models                 manifest of the deployed models
//	GET  /health
//
// # Quick Start
//
//	paxcast process --config etl.yaml
//	paxcast train
//	paxcast serve
//
// Errors are returned as {"detail": "..."}.
package paxcast

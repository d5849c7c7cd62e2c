// Standard attribute keys. Using the same keys in every package keeps log
// lines filterable by a single query (e.g. all records with "model.kind").

package log

// Model and operation context.
const (
	// ComponentKey identifies the package emitting the record ("service", "metricsdb").
	ComponentKey = "component"

	// ModelKindKey is the model selector: "baseline" or "xgboost".
	ModelKindKey = "model.kind"

	// ModelVersionKey is the artifact manifest version.
	ModelVersionKey = "model.version"

	// OperationKey names the operation being performed ("train", "predict", "update_actual").
	OperationKey = "operation"
)

// Data shape.
const (
	SamplesKey  = "data.samples"
	FeaturesKey = "data.features"
	ColumnKey   = "data.column"
	PathKey     = "data.path"
)

// Predictions and quality metrics.
const (
	PredictionIDKey   = "prediction.id"
	PredictedValueKey = "prediction.value"
	ActualValueKey    = "prediction.actual"
	RMSEKey           = "metrics.rmse"
	MAEKey            = "metrics.mae"
	BaselineValueKey  = "model.baseline_value"
	IterationKey      = "training.iteration"
	LossKey           = "training.loss"
)

// HTTP request context.
const (
	MethodKey         = "http.method"
	URLKey            = "http.url"
	StatusKey         = "http.status"
	RequestIDKey      = "http.request_id"
	LatencySecondsKey = "perf.latency_seconds"
	DurationMsKey     = "perf.duration_ms"
)

// Error context.
const (
	ErrAttrKey        = "error"
	StacktraceAttrKey = "stacktrace"
	ErrorTypeKey      = "error.type"
)

// Standard operation values.
const (
	OperationTrain        = "train"
	OperationPredict      = "predict"
	OperationUpdateActual = "update_actual"
	OperationProcess      = "process"
)

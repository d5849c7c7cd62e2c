// Package errors はサービス全体のエラーハンドリングと警告システムを提供します。
// 各エラー型は HTTP 境界でステータスコードに変換され、zerolog で構造化ログとして出力されます。
package errors

import (
	"fmt"
	"log"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ===========================================================================
//
//	グローバル警告ハンドリング
//
// ===========================================================================
var (
	warningMutex   sync.Mutex
	warningHandler = func(w error) {
		log.Printf("paxcast-warning: %v\n", w)
	}
	// zerologロガー（循環importを避けるため遅延初期化）
	zerologWarnFunc func(warning error)
)

// SetWarningHandler sets the fallback handler used when no zerolog hook is installed.
func SetWarningHandler(handler func(w error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	warningHandler = handler
}

// SetZerologWarnFunc はzerolog警告関数を設定します（循環importを避けるため）。
func SetZerologWarnFunc(warnFunc func(warning error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	zerologWarnFunc = warnFunc
}

// Warn は警告を発生させます。
// zerologが設定されている場合は構造化ログとして出力し、そうでなければ従来のハンドラを使用します。
func Warn(w error) {
	warningMutex.Lock()
	defer warningMutex.Unlock()

	if zerologWarnFunc != nil {
		zerologWarnFunc(w)
		return
	}
	if warningHandler != nil {
		warningHandler(w)
	}
}

// DataConversionWarning is raised when numeric coercion turns cells into
// missing values and rows are dropped as a consequence.
type DataConversionWarning struct {
	Column  string
	Dropped int
	Total   int
}

func (w *DataConversionWarning) Error() string {
	return fmt.Sprintf("column %s: %d of %d values could not be converted to numeric and were dropped", w.Column, w.Dropped, w.Total)
}

// MarshalZerologObject はzerologのイベントに構造化された警告情報を追加します。
func (w *DataConversionWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("column", w.Column).
		Int("dropped", w.Dropped).
		Int("total", w.Total).
		Str("type", "DataConversionWarning")
}

// NewDataConversionWarning は新しいDataConversionWarningを作成します。
func NewDataConversionWarning(column string, dropped, total int) *DataConversionWarning {
	return &DataConversionWarning{Column: column, Dropped: dropped, Total: total}
}

// ===========================================================================
//
//	構造化されたエラー型
//
// ===========================================================================

// ModelNotTrainedError is returned when a model artifact is requested before
// any training run has produced it.
type ModelNotTrainedError struct {
	Kind string
}

func (e *ModelNotTrainedError) Error() string {
	return fmt.Sprintf("%s model has not been trained", e.Kind)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ModelNotTrainedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model_kind", e.Kind).Str("type", "ModelNotTrainedError")
}

// NewModelNotTrainedError は新しいModelNotTrainedErrorを作成し、スタックトレースを付与します。
func NewModelNotTrainedError(kind string) error {
	return errors.WithStack(&ModelNotTrainedError{Kind: kind})
}

// UnsupportedModelError is returned for a model-kind selector outside the known set.
type UnsupportedModelError struct {
	Kind string
}

func (e *UnsupportedModelError) Error() string {
	return fmt.Sprintf("model type not supported: %q", e.Kind)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *UnsupportedModelError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model_kind", e.Kind).Str("type", "UnsupportedModelError")
}

// NewUnsupportedModelError は新しいUnsupportedModelErrorを作成します。
func NewUnsupportedModelError(kind string) error {
	return errors.WithStack(&UnsupportedModelError{Kind: kind})
}

// NotFoundError は指定されたリソースが存在しない場合のエラーです。
type NotFoundError struct {
	Resource string
	ID       interface{}
	Err      error
}

func (e *NotFoundError) Error() string {
	if e.ID != nil {
		return fmt.Sprintf("%s %v not found", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) Unwrap() error {
	return e.Err
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *NotFoundError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("resource", e.Resource).
		Interface("id", e.ID).
		Str("type", "NotFoundError")
}

// NewNotFoundError は新しいNotFoundErrorを作成し、スタックトレースを付与します。
func NewNotFoundError(resource string, id interface{}, cause error) error {
	return errors.WithStack(&NotFoundError{Resource: resource, ID: id, Err: cause})
}

// EmptyDatasetError is returned by training when no usable rows remain after cleaning.
type EmptyDatasetError struct {
	Column string
	Rows   int
}

func (e *EmptyDatasetError) Error() string {
	return fmt.Sprintf("no valid values left in %s after cleaning %d rows", e.Column, e.Rows)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *EmptyDatasetError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("column", e.Column).
		Int("rows", e.Rows).
		Str("type", "EmptyDatasetError")
}

// NewEmptyDatasetError は新しいEmptyDatasetErrorを作成します。
func NewEmptyDatasetError(column string, rows int) error {
	return errors.WithStack(&EmptyDatasetError{Column: column, Rows: rows})
}

// PersistenceError wraps a failed write or read against durable storage.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *PersistenceError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		AnErr("cause", e.Err).
		Str("type", "PersistenceError")
}

// NewPersistenceError は新しいPersistenceErrorを作成します。nil を渡すと nil を返します。
func NewPersistenceError(op string, err error) error {
	if err == nil {
		return nil
	}
	return errors.WithStack(&PersistenceError{Op: op, Err: err})
}

// InsufficientDataError is returned when an aggregate metric is requested
// over an empty set of observations.
type InsufficientDataError struct {
	Metric string
	Got    int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s is undefined over %d observations", e.Metric, e.Got)
}

// NewInsufficientDataError は新しいInsufficientDataErrorを作成します。
func NewInsufficientDataError(metric string, got int) error {
	return errors.WithStack(&InsufficientDataError{Metric: metric, Got: got})
}

// DimensionError は入力データの次元が期待値と異なる場合のエラーです。
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int // 0 for rows, 1 for columns/features
}

func (e *DimensionError) Error() string {
	axisName := "features"
	if e.Axis == 0 {
		axisName = "rows"
	}
	return fmt.Sprintf("%s: dimension mismatch on axis %d (%s). Expected %d, got %d", e.Op, e.Axis, axisName, e.Expected, e.Got)
}

// NewDimensionError は新しいDimensionErrorを作成し、スタックトレースを付与します。
func NewDimensionError(op string, expected, got, axis int) error {
	return errors.WithStack(&DimensionError{Op: op, Expected: expected, Got: got, Axis: axis})
}

// ValidationError は入力パラメータの検証に失敗した場合のエラーです。
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for parameter '%s': %s (got: %v)", e.ParamName, e.Reason, e.Value)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ValidationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("param_name", e.ParamName).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "ValidationError")
}

// NewValidationError は新しいValidationErrorを作成し、スタックトレースを付与します。
func NewValidationError(param, reason string, value interface{}) error {
	return errors.WithStack(&ValidationError{ParamName: param, Reason: reason, Value: value})
}

// ===========================================================================
//
//	cockroachdb/errors ラッパー関数
//
// ===========================================================================

// Is はエラーが特定のターゲットエラーかどうかを判定します。
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As はエラーが特定の型にキャスト可能かどうかを判定します。
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap は既存のエラーをメッセージ付きでラップします。
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf は既存のエラーをフォーマット文字列でラップします。
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New は新しいエラーを作成します。
func New(message string) error {
	return errors.New(message)
}

// Newf は新しいフォーマット済みエラーを作成します。
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack はエラーにスタックトレースを付与します。
func WithStack(err error) error {
	return errors.WithStack(err)
}

// StackTrace returns the first safe detail recorded on the outermost layer of
// err. For errors built in this package that is the formatted stack trace.
func StackTrace(err error) string {
	details := errors.GetSafeDetails(err).SafeDetails
	if len(details) > 0 {
		return details[0]
	}
	return ""
}

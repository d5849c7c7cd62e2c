package model

import "sync"

// EstimatorState はモデルの学習状態を表す
type EstimatorState int

const (
	// NotFitted はモデルが未学習の状態
	NotFitted EstimatorState = iota
	// Fitted はモデルが学習済みの状態
	Fitted
)

// BaseEstimator は全てのモデルに埋め込まれる学習状態。
// 学習済みモデルは複数のリクエストから同時に参照されるため RWMutex で保護する。
type BaseEstimator struct {
	mu        sync.RWMutex
	state     EstimatorState
	nFeatures int
	nSamples  int
}

// IsFitted はモデルが学習済みかどうかを返す
func (e *BaseEstimator) IsFitted() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state == Fitted
}

// SetFitted はモデルを学習済み状態に設定し、学習時の次元を記録する
func (e *BaseEstimator) SetFitted(nSamples, nFeatures int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = Fitted
	e.nSamples = nSamples
	e.nFeatures = nFeatures
}

// Dimensions は学習時のサンプル数と特徴量数を返す
func (e *BaseEstimator) Dimensions() (nSamples, nFeatures int) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.nSamples, e.nFeatures
}

// Reset はモデルを初期状態にリセットする
func (e *BaseEstimator) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = NotFitted
	e.nSamples = 0
	e.nFeatures = 0
}

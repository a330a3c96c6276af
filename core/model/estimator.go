package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる。y は n×1 の列ベクトル
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を n×1 の列ベクトルで返す
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Estimator は交差検証で扱える教師あり学習モデルの最小インターフェース
type Estimator interface {
	Fitter
	Predictor
}

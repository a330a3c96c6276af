package modelselection

import (
	"io"

	"github.com/YuminosukeSato/housecv/core/model"
	"github.com/YuminosukeSato/housecv/linear"
	"github.com/YuminosukeSato/housecv/tree"
)

func init() {
	// TrainedModel.Final はインターフェースなので具象型を登録しておく
	model.Register(
		&linear.LinearRegression{},
		&linear.ElasticNet{},
		&linear.Stepwise{},
		&tree.DecisionTreeRegressor{},
	)
}

// SaveModel writes tm to w in gob format.
func SaveModel(w io.Writer, tm *TrainedModel) error {
	return model.SaveModelToWriter(tm, w)
}

// LoadModel reads a model written by SaveModel.
func LoadModel(r io.Reader) (*TrainedModel, error) {
	tm := &TrainedModel{}
	if err := model.LoadModelFromReader(tm, r); err != nil {
		return nil, err
	}
	return tm, nil
}

// SaveModelFile writes tm to the named file.
func SaveModelFile(path string, tm *TrainedModel) error {
	return model.SaveModel(tm, path)
}

// LoadModelFile reads a model from the named file.
func LoadModelFile(path string) (*TrainedModel, error) {
	tm := &TrainedModel{}
	if err := model.LoadModel(tm, path); err != nil {
		return nil, err
	}
	return tm, nil
}

package model

import (
	"encoding/gob"
	"io"
	"os"

	"github.com/YuminosukeSato/housecv/pkg/errors"
)

// Register はインターフェース型のフィールドに格納される具象モデル型を gob に登録する。
// 同じ型を複数回登録しても安全です。
func Register(values ...interface{}) {
	for _, v := range values {
		gob.Register(v)
	}
}

// SaveModel はモデルをファイルに保存する
//
// 使用例:
//
//	err := model.SaveModel(trained, "ridge.gob")
func SaveModel(m interface{}, filename string) (err error) {
	file, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, "failed to create model file")
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, "failed to close model file")
		}
	}()

	return SaveModelToWriter(m, file)
}

// LoadModel はファイルからモデルを読み込む。m はポインタでなければならない
func LoadModel(m interface{}, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return errors.Wrap(err, "failed to open model file")
	}
	defer file.Close()

	return LoadModelFromReader(m, file)
}

// SaveModelToWriter はモデルをio.Writerに保存する
func SaveModelToWriter(m interface{}, w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(m); err != nil {
		return errors.Wrap(err, "failed to encode model")
	}
	return nil
}

// LoadModelFromReader はio.Readerからモデルを読み込む
func LoadModelFromReader(m interface{}, r io.Reader) error {
	if err := gob.NewDecoder(r).Decode(m); err != nil {
		return errors.Wrap(err, "failed to decode model")
	}
	return nil
}

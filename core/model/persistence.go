package model

import (
	"encoding/json"
	"io"
	"io/fs"
	"os"

	"github.com/google/renameio"

	pkgerrors "github.com/YuminosukeSato/paxcast/pkg/errors"
)

// SaveJSON は v を JSON として filename にアトミックに書き込む。
// 一時ファイルに書き出してから rename するため、途中で失敗しても既存ファイルは壊れない。
//
// 使用例:
//
//	err := model.SaveJSON("model_artifacts/baseline_model.json", map[string]float64{"baseline_value": 30})
func SaveJSON(filename string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to encode %s", filename)
	}
	if err := renameio.WriteFile(filename, data, 0o644); err != nil {
		return pkgerrors.NewPersistenceError("write "+filename, err)
	}
	return nil
}

// StageJSON は v を JSON としてエンコードした PendingFile を返す。
// 呼び出し側は CloseAtomicallyReplace で確定するか Cleanup で破棄する。
// 複数ファイルを揃えて置き換えたい場合に使う。
func StageJSON(filename string, v interface{}) (*renameio.PendingFile, error) {
	pending, err := renameio.TempFile("", filename)
	if err != nil {
		return nil, pkgerrors.NewPersistenceError("stage "+filename, err)
	}
	if err := WriteJSON(pending, v); err != nil {
		_ = pending.Cleanup()
		return nil, err
	}
	return pending, nil
}

// LoadJSON は filename の JSON を v に読み込む。
// ファイルが存在しない場合は NotFoundError を返す。
func LoadJSON(filename string, v interface{}) error {
	file, err := os.Open(filename)
	if err != nil {
		if pkgerrors.Is(err, fs.ErrNotExist) {
			return pkgerrors.NewNotFoundError("artifact", filename, err)
		}
		return pkgerrors.NewPersistenceError("open "+filename, err)
	}
	defer file.Close()

	return ReadJSON(file, v)
}

// WriteJSON はモデルを io.Writer に JSON で書き込む
func WriteJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return pkgerrors.Wrap(err, "failed to encode model")
	}
	return nil
}

// ReadJSON は io.Reader から JSON のモデルを読み込む
func ReadJSON(r io.Reader, v interface{}) error {
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return pkgerrors.Wrap(err, "failed to decode model")
	}
	return nil
}

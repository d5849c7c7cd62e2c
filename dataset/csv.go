package dataset

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/YuminosukeSato/paxcast/pkg/errors"
)

// LoadCSV はヘッダ付き CSV を読み込む。セルは文字列のまま保持する。
func LoadCSV(path string) (*Frame, error) {
	f, err := openDataset(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadCSV(f)
}

// ReadCSV は r からヘッダ付き CSV を読み込む。空セルは欠損（nil）として扱う。
func ReadCSV(r io.Reader) (*Frame, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return NewFrame(), nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read csv header")
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	frame := NewFrame(header...)

	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "failed to read csv record")
		}
		row := make(map[string]any, len(header))
		for i, name := range header {
			if i >= len(rec) || strings.TrimSpace(rec[i]) == "" {
				row[name] = nil
				continue
			}
			row[name] = rec[i]
		}
		frame.AppendRow(row)
	}
	return frame, nil
}

// LoadJSON は JSON のレコード配列（[{"ASK": 1, ...}, ...]）を読み込む。
func LoadJSON(path string) (*Frame, error) {
	f, err := openDataset(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadJSON(f)
}

// ReadJSON は r から JSON のレコード配列を読み込む。
func ReadJSON(r io.Reader) (*Frame, error) {
	var records []map[string]any
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, errors.NewValidationError("records", "expected a JSON array of objects", err.Error())
	}
	return FromRecords(records), nil
}

func openDataset(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.NewNotFoundError("dataset", path, err)
		}
		return nil, errors.Wrapf(err, "open %s", path)
	}
	return f, nil
}

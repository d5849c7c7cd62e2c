// Package dataset は学習用の表形式データを列指向で保持し、
// Parquet / CSV / JSON レコードから読み込む。
//
// セルの値は読み込んだ型のまま（float64, int64, string, bool, nil）保持され、
// 数値への変換は preprocessing パッケージが担う。
package dataset

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/YuminosukeSato/paxcast/pkg/errors"
)

// Frame は列名と列ごとのセル値を持つ表。
type Frame struct {
	names []string
	cols  map[string][]any
	rows  int
}

// NewFrame は指定した列を持つ空の Frame を作成する
func NewFrame(names ...string) *Frame {
	f := &Frame{cols: make(map[string][]any, len(names))}
	for _, n := range names {
		f.addColumn(n)
	}
	return f
}

func (f *Frame) addColumn(name string) {
	if _, ok := f.cols[name]; ok {
		return
	}
	f.names = append(f.names, name)
	// 既存行は欠損で埋める
	f.cols[name] = make([]any, f.rows)
}

// AppendRow は 1 行追加する。未知の列は追加され、既存行は nil で埋められる。
func (f *Frame) AppendRow(row map[string]any) {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		f.addColumn(k)
	}
	for _, name := range f.names {
		f.cols[name] = append(f.cols[name], row[name])
	}
	f.rows++
}

// Column は列のセル値を返す。
func (f *Frame) Column(name string) ([]any, bool) {
	c, ok := f.cols[name]
	return c, ok
}

// Columns は列名を追加順に返す
func (f *Frame) Columns() []string {
	return append([]string(nil), f.names...)
}

// Len は行数を返す
func (f *Frame) Len() int {
	if f == nil {
		return 0
	}
	return f.rows
}

// Require は names の全列が存在することを確認する。
func (f *Frame) Require(names ...string) error {
	var missing []string
	for _, n := range names {
		if _, ok := f.cols[n]; !ok {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return errors.NewValidationError("dataset", "missing required columns", strings.Join(missing, ","))
	}
	return nil
}

// FromRecords は JSON 配列などから得たレコード列を Frame に変換する。
func FromRecords(records []map[string]any) *Frame {
	f := NewFrame()
	for _, r := range records {
		f.AppendRow(r)
	}
	return f
}

// Load は拡張子に応じて Parquet / CSV / JSON を読み込む。
func Load(path string) (*Frame, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet", ".pq":
		return LoadParquet(path)
	case ".csv":
		return LoadCSV(path)
	case ".json":
		return LoadJSON(path)
	default:
		return nil, errors.NewValidationError("data_path", "unsupported dataset extension (want .parquet, .csv or .json)", path)
	}
}

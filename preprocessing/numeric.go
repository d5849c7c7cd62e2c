// Package preprocessing は学習前のデータクリーニングを提供する。
//
// 値の数値変換は pandas の to_numeric(errors="coerce") と同じ方針で、
// 変換できない値は欠損（NaN）になる。欠損を含む行は CompleteCases で落とす。
package preprocessing

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/paxcast/dataset"
	"github.com/YuminosukeSato/paxcast/pkg/errors"
)

// ParseFloat は単一のセル値を数値に変換する。
// nil、空文字、解釈できない文字列、非有限値は ok=false になる。
func ParseFloat(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case nil:
		return math.NaN(), false
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		p, err := x.Float64()
		if err != nil {
			return math.NaN(), false
		}
		f = p
	case bool:
		if x {
			f = 1
		}
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return math.NaN(), false
		}
		p, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return math.NaN(), false
		}
		f = p
	default:
		return math.NaN(), false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return math.NaN(), false
	}
	return f, true
}

// ToNumeric は列全体を数値に変換する。変換できないセルは NaN になる。
// coerced は元々値があったのに変換に失敗したセルの数。
func ToNumeric(values []any) (out []float64, coerced int) {
	out = make([]float64, len(values))
	for i, v := range values {
		f, ok := ParseFloat(v)
		if !ok && v != nil {
			if s, isStr := v.(string); !isStr || strings.TrimSpace(s) != "" {
				coerced++
			}
		}
		out[i] = f
	}
	return out, coerced
}

// NumericColumn は frame の列を数値に変換し、欠損を除いた値だけを返す。
// 変換で失われた値があれば DataConversionWarning を発行する。
func NumericColumn(frame *dataset.Frame, name string) ([]float64, error) {
	if err := frame.Require(name); err != nil {
		return nil, err
	}
	raw, _ := frame.Column(name)
	values, coerced := ToNumeric(raw)
	if coerced > 0 {
		errors.Warn(errors.NewDataConversionWarning(name, coerced, len(raw)))
	}

	kept := values[:0:0]
	for _, v := range values {
		if !math.IsNaN(v) {
			kept = append(kept, v)
		}
	}
	return kept, nil
}

// CompleteCases は columns を数値に変換し、全列に値がある行だけを
// 行列（行 = サンプル、列 = columns の順）にまとめて返す。
// 残る行が無い場合は nil 行列と 0 を返す。
func CompleteCases(frame *dataset.Frame, columns ...string) (*mat.Dense, int, error) {
	if err := frame.Require(columns...); err != nil {
		return nil, 0, err
	}

	numeric := make([][]float64, len(columns))
	for j, name := range columns {
		raw, _ := frame.Column(name)
		vals, coerced := ToNumeric(raw)
		if coerced > 0 {
			errors.Warn(errors.NewDataConversionWarning(name, coerced, len(raw)))
		}
		numeric[j] = vals
	}

	n := frame.Len()
	data := make([]float64, 0, n*len(columns))
	kept := 0
rows:
	for i := 0; i < n; i++ {
		for j := range columns {
			if math.IsNaN(numeric[j][i]) {
				continue rows
			}
		}
		for j := range columns {
			data = append(data, numeric[j][i])
		}
		kept++
	}
	if kept == 0 {
		return nil, 0, nil
	}
	return mat.NewDense(kept, len(columns), data), kept, nil
}

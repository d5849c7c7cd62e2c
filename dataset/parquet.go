package dataset

import (
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/YuminosukeSato/paxcast/pkg/errors"
)

const readBatch = 512

// LoadParquet はフラットなスキーマの Parquet ファイルを Frame に読み込む。
// ネストした列はリーフ列のパスを "." で連結した名前になる。
func LoadParquet(path string) (*Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.NewNotFoundError("dataset", path, err)
		}
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, errors.Wrapf(err, "stat %s", path)
	}
	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open parquet file %s", path)
	}
	return readParquet(pf)
}

func readParquet(pf *parquet.File) (*Frame, error) {
	paths := pf.Schema().Columns()
	names := make([]string, len(paths))
	for i, p := range paths {
		names[i] = strings.Join(p, ".")
	}
	frame := NewFrame(names...)

	reader := parquet.NewReader(pf)
	defer reader.Close()

	rows := make([]parquet.Row, readBatch)
	for {
		n, err := reader.ReadRows(rows)
		for _, row := range rows[:n] {
			record := make(map[string]any, len(names))
			for _, v := range row {
				col := v.Column()
				if col < 0 || col >= len(names) {
					continue
				}
				record[names[col]] = cellValue(v)
			}
			frame.AppendRow(record)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "failed to read parquet rows")
		}
		if n == 0 {
			break
		}
	}
	return frame, nil
}

func cellValue(v parquet.Value) any {
	if v.IsNull() {
		return nil
	}
	switch v.Kind() {
	case parquet.Boolean:
		return v.Boolean()
	case parquet.Int32:
		return int64(v.Int32())
	case parquet.Int64:
		return v.Int64()
	case parquet.Float:
		return float64(v.Float())
	case parquet.Double:
		return v.Double()
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return string(v.ByteArray())
	default:
		return v.String()
	}
}

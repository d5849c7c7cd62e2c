// Package report renders the ml_metrics history as a PNG chart.
package report

import (
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/paxcast/internal/metricsdb"
	pkgerrors "github.com/YuminosukeSato/paxcast/pkg/errors"
)

// Chart dimensions.
const (
	Width  = 8 * vg.Inch
	Height = 4 * vg.Inch
)

// TimeFormat labels the X axis ticks.
const TimeFormat = "2006-01-02\n15:04:05"

// NewMLMetricsPlot builds a plot with one line for RMSE and one for MAE over
// the timestamps of rows. Zero rows is an InsufficientDataError.
func NewMLMetricsPlot(rows []metricsdb.MLMetric) (*plot.Plot, error) {
	if len(rows) == 0 {
		return nil, pkgerrors.NewInsufficientDataError("ml_metrics chart", 0)
	}

	rmse := make(plotter.XYs, len(rows))
	mae := make(plotter.XYs, len(rows))
	for i, r := range rows {
		x := float64(r.Timestamp.Unix()) + float64(r.Timestamp.Nanosecond())/1e9
		rmse[i].X, rmse[i].Y = x, r.RMSE
		mae[i].X, mae[i].Y = x, r.MAE
	}

	p := plot.New()
	p.Title.Text = "Model error over time"
	p.X.Label.Text = "timestamp (UTC)"
	p.Y.Label.Text = "error"
	p.X.Tick.Marker = plot.TimeTicks{Format: TimeFormat}
	p.Legend.Top = true
	p.Add(plotter.NewGrid())

	if err := plotutil.AddLinePoints(p, "RMSE", rmse, "MAE", mae); err != nil {
		return nil, pkgerrors.Wrap(err, "add metric lines")
	}
	return p, nil
}

// WriteMLMetricsPNG renders rows as a PNG image into w.
func WriteMLMetricsPNG(w io.Writer, rows []metricsdb.MLMetric) error {
	p, err := NewMLMetricsPlot(rows)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(Width, Height, "png")
	if err != nil {
		return pkgerrors.Wrap(err, "create png canvas")
	}
	if _, err := wt.WriteTo(w); err != nil {
		return pkgerrors.Wrap(err, "write png")
	}
	return nil
}

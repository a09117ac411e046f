// Package plot draws analysis results with gonum/plot.
package plot

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/edp1096/toy-mna/pkg/util"

	gonumplot "gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

var (
	ErrNoAxis        = errors.New("plot: results have neither TIME nor SWEEP1")
	ErrUnknownSeries = errors.New("plot: unknown series")
)

// Axis returns the key of the x axis series.
func Axis(results map[string][]float64) (string, error) {
	for _, key := range []string{"TIME", "SWEEP1"} {
		if _, ok := results[key]; ok {
			return key, nil
		}
	}
	return "", ErrNoAxis
}

// Series lists the plottable keys in sorted order, voltages first.
func Series(results map[string][]float64) []string {
	var names []string
	for name := range results {
		if strings.HasPrefix(name, "V(") || strings.HasPrefix(name, "I(") {
			names = append(names, name)
		}
	}
	sort.Slice(names, func(i, j int) bool {
		if names[i][0] != names[j][0] {
			return names[i][0] == 'V'
		}
		return names[i] < names[j]
	})
	return names
}

// Waveforms writes the named series against the x axis to path. The image
// format follows the file extension (png, svg, pdf, ...). Without names all
// voltage series are drawn.
func Waveforms(results map[string][]float64, names []string, path string, width, height vg.Length) error {
	axis, err := Axis(results)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		for _, name := range Series(results) {
			if strings.HasPrefix(name, "V(") {
				names = append(names, name)
			}
		}
	}

	p := gonumplot.New()
	p.X.Label.Text = fmt.Sprintf("%s (%s)", axis, util.UnitOf(axis))
	p.Add(plotter.NewGrid())

	xs := results[axis]
	units := make(map[string]bool)
	for i, name := range names {
		ys, ok := results[name]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownSeries, name)
		}
		n := min(len(xs), len(ys))
		pts := make(plotter.XYs, n)
		for k := range pts {
			pts[k].X, pts[k].Y = xs[k], ys[k]
		}

		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("series %s: %w", name, err)
		}
		line.Color = plotutil.Color(i)
		line.Dashes = plotutil.Dashes(i / len(plotutil.DefaultColors))
		p.Add(line)
		p.Legend.Add(name, line)
		units[util.UnitOf(name)] = true
	}

	var ylabel []string
	for u := range units {
		ylabel = append(ylabel, u)
	}
	sort.Strings(ylabel)
	p.Y.Label.Text = strings.Join(ylabel, ", ")
	p.Legend.Top = true

	if err := p.Save(width, height, path); err != nil {
		return fmt.Errorf("saving plot %s: %w", path, err)
	}
	return nil
}

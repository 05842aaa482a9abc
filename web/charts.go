/*
Copyright © 2026 the GreenGrids authors.
This file is part of GreenGrids.

GreenGrids is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

GreenGrids is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with GreenGrids.  If not, see <http://www.gnu.org/licenses/>.*/

package web

import (
	"fmt"
	"image/color"
	"math"
	"net/http"

	"github.com/ctessum/sparse"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	greengrids "github.com/HMNS19/greengrids"
)

func (s *Server) writePNG(w http.ResponseWriter, p *plot.Plot, width, height vg.Length) {
	img := vgimg.New(width, height)
	dc := draw.New(img)
	p.Draw(dc)
	w.Header().Set("Content-Type", "image/png")
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(w); err != nil {
		s.Log.WithError(err).Error("greengrids web writing chart")
	}
}

// concentrationsChart draws a grouped bar chart of the seeded and
// dispersed concentration of every district in a year. Districts
// without a computed value get a zero-height bar.
func (s *Server) concentrationsChart(w http.ResponseWriter, r *http.Request) {
	year := s.year(r)
	ds := s.dataset()
	if ds.Year(year) == nil {
		s.writeError(w, http.StatusNotFound, greengrids.MissingYearError{Year: year})
		return
	}
	records := greengrids.AllConcentrations(ds, year)
	if len(records) == 0 {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("no districts in %s", year))
		return
	}
	names := make([]string, len(records))
	initial := make(plotter.Values, len(records))
	final := make(plotter.Values, len(records))
	for i, rec := range records {
		names[i] = rec.District
		if rec.InitialConcentration != nil {
			initial[i] = *rec.InitialConcentration
		}
		if rec.FinalConcentration != nil {
			final[i] = *rec.FinalConcentration
		}
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("CO2 concentrations %s", year)
	p.Y.Label.Text = "concentration"

	barWidth := vg.Points(12)
	seeded, err := plotter.NewBarChart(initial, barWidth)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	seeded.Offset = -barWidth / 2
	seeded.Color = plotutil.Color(0)
	dispersed, err := plotter.NewBarChart(final, barWidth)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	dispersed.Offset = barWidth / 2
	dispersed.Color = plotutil.Color(1)
	p.Add(seeded, dispersed)
	p.Legend.Add("seeded", seeded)
	p.Legend.Add("after dispersion", dispersed)
	p.Legend.Top = true
	p.NominalX(names...)

	s.writePNG(w, p, 6*vg.Inch, 4*vg.Inch)
}

// concentrationGrid adapts a dense concentration array to the plotter
// grid interface. Row zero of the array is drawn at the top of the
// image so the rendered map keeps the dataset's row order.
type concentrationGrid struct {
	a *sparse.DenseArray
}

func (g concentrationGrid) Dims() (c, r int)   { return g.a.Shape[1], g.a.Shape[0] }
func (g concentrationGrid) Z(c, r int) float64 { return g.a.Get(g.a.Shape[0]-1-r, c) }
func (g concentrationGrid) X(c int) float64    { return float64(c) }
func (g concentrationGrid) Y(r int) float64    { return float64(r) }

// heatmapChart draws the spatial concentration grid for a year. The
// stage query parameter selects the seeded grid ("initial") or the
// dispersed grid (the default). Cells without a computed value are
// transparent.
func (s *Server) heatmapChart(w http.ResponseWriter, r *http.Request) {
	year := s.year(r)
	ds := s.dataset()
	var (
		a   *sparse.DenseArray
		err error
	)
	if r.URL.Query().Get("stage") == "initial" {
		a, err = greengrids.ConcentrationGrid(ds, year)
	} else {
		a, err = greengrids.FinalConcentrationGrid(ds, year)
	}
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	min, max := math.Inf(1), math.Inf(-1)
	for _, v := range a.Elements {
		if math.IsNaN(v) {
			continue
		}
		min = math.Min(min, v)
		max = math.Max(max, v)
	}
	if min > max {
		s.writeError(w, http.StatusNotFound,
			fmt.Errorf("no concentrations computed for %s", year))
		return
	}
	if min == max {
		// A flat field still needs a nonempty color range.
		max = min + 1
	}

	h := plotter.NewHeatMap(concentrationGrid{a}, palette.Heat(255, 1))
	h.Min, h.Max = min, max
	h.NaN = color.Transparent

	p := plot.New()
	p.Title.Text = fmt.Sprintf("CO2 concentration grid %s", year)
	p.HideAxes()
	p.Add(h)

	s.writePNG(w, p, 5*vg.Inch, 5*vg.Inch)
}

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

package scenario

import (
	"fmt"

	"github.com/tealeg/xlsx"
)

// WriteReport writes the comparison to an xlsx workbook at path. The
// first sheet ranks the scenarios by total capture; each scenario then
// gets a sheet with its per-district results.
func (c *Comparison) WriteReport(path string) error {
	f := xlsx.NewFile()

	byName := make(map[string]*RunSummary)
	for _, s := range c.Summaries {
		byName[s.Scenario] = s
	}

	sheet, err := f.AddSheet("comparison")
	if err != nil {
		return fmt.Errorf("greengrids: creating comparison sheet: %w", err)
	}
	header := sheet.AddRow()
	for _, h := range []string{"scenario", "total_capture",
		"mean_concentration_after", "max_concentration_after",
		"captured_districts"} {
		header.AddCell().SetString(h)
	}
	for _, name := range c.Ranking {
		s, ok := byName[name]
		if !ok {
			continue
		}
		row := sheet.AddRow()
		row.AddCell().SetString(s.Scenario)
		row.AddCell().SetFloat(s.TotalCapture)
		row.AddCell().SetFloat(s.MeanAfter)
		row.AddCell().SetFloat(s.MaxAfter)
		row.AddCell().SetInt(s.Captured)
	}

	for _, name := range c.Ranking {
		s, ok := byName[name]
		if !ok {
			continue
		}
		sheet, err := f.AddSheet(s.Scenario)
		if err != nil {
			return fmt.Errorf("greengrids: creating sheet %s: %w", s.Scenario, err)
		}
		header := sheet.AddRow()
		for _, h := range []string{"district", "year", "co2_before_capture",
			"co2_after_capture", "total_capture", "percent_reduction",
			"total_emission"} {
			header.AddCell().SetString(h)
		}
		for _, r := range s.Results {
			row := sheet.AddRow()
			row.AddCell().SetString(r.District)
			row.AddCell().SetString(r.Year)
			row.AddCell().SetFloat(r.BeforeCapture)
			row.AddCell().SetFloat(r.AfterCapture)
			row.AddCell().SetFloat(r.TotalCapture)
			row.AddCell().SetFloat(r.PercentReduction)
			row.AddCell().SetFloat(r.TotalEmission)
		}
	}

	if err := f.Save(path); err != nil {
		return fmt.Errorf("greengrids: writing report: %w", err)
	}
	return nil
}

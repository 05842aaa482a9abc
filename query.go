/*
Copyright © 2025 the GreenGrids authors.
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

package greengrids

// ConcentrationRecord is the queryable dispersion state of one region.
// InitialConcentration and FinalConcentration are nil when the
// corresponding attribute has never been computed or has been reset;
// that is reported as missing data, not as zero.
type ConcentrationRecord struct {
	District             string   `json:"district"`
	Year                 string   `json:"year"`
	InitialConcentration *float64 `json:"initial_concentration,omitempty"`
	FinalConcentration   *float64 `json:"final_concentration,omitempty"`
	TotalEmission        float64  `json:"total_emission"`
	Neighbors            []string `json:"neighbors"`
}

// Concentration returns the dispersion state of one region in one
// year, or nil if the year or the region is not in the dataset. It can
// be called whether or not a simulation has run; the record reflects
// whatever has been computed so far.
func Concentration(ds *Dataset, region, year string) *ConcentrationRecord {
	yd := ds.Year(year)
	if yd == nil {
		return nil
	}
	r := yd.Region(region)
	if r == nil {
		return nil
	}
	t := NewTopology(yd.RegionNames())
	return concentrationRecord(r, region, year, t)
}

// AllConcentrations returns the dispersion state of every region in a
// year, in discovery order, or nil if the year is not in the dataset.
func AllConcentrations(ds *Dataset, year string) []*ConcentrationRecord {
	yd := ds.Year(year)
	if yd == nil {
		return nil
	}
	names := yd.RegionNames()
	t := NewTopology(names)
	recs := make([]*ConcentrationRecord, 0, len(names))
	for _, name := range names {
		recs = append(recs, concentrationRecord(yd.Region(name), name, year, t))
	}
	return recs
}

func concentrationRecord(r *Region, name, year string, t *Topology) *ConcentrationRecord {
	rec := &ConcentrationRecord{
		District:      name,
		Year:          year,
		TotalEmission: r.Emission(),
		Neighbors:     append([]string{}, t.Neighbors(name)...),
	}
	if v, ok := r.Concentration(); ok {
		rec.InitialConcentration = &v
	}
	if v, ok := r.AfterDispersion(); ok {
		rec.FinalConcentration = &v
	}
	return rec
}

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

package emission

import "github.com/HMNS19/greengrids"

// Breakdown gives each sector's share of a district total, in percent
// rounded to two decimal places.
type Breakdown struct {
	Transport   float64 `json:"transport"`
	Industrial  float64 `json:"industrial"`
	Residential float64 `json:"residential"`
}

// Record reports the stored emission inventory for one district.
type Record struct {
	District            string    `json:"district"`
	Year                string    `json:"year"`
	TransportEmission   float64   `json:"transport_emission"`
	IndustrialEmission  float64   `json:"industrial_emission"`
	ResidentialEmission float64   `json:"residential_emission"`
	TotalEmission       float64   `json:"total_emission"`
	Breakdown           Breakdown `json:"breakdown_percent"`
}

// ByDistrict returns the emission record for one district. It returns
// nil if the year or district is absent, or if no inventory has been
// generated for the district yet.
func ByDistrict(ds *greengrids.Dataset, district, year string) *Record {
	yd := ds.Year(year)
	if yd == nil {
		return nil
	}
	r := yd.Region(district)
	if r == nil || !r.HasEmission() {
		return nil
	}
	return record(r, district, year)
}

// All returns the emission records for every district in a year, in the
// order the districts appear in the dataset. Districts without a
// generated inventory are skipped. It returns nil if the year is
// absent.
func All(ds *greengrids.Dataset, year string) []*Record {
	yd := ds.Year(year)
	if yd == nil {
		return nil
	}
	var out []*Record
	for _, name := range yd.RegionNames() {
		r := yd.Region(name)
		if !r.HasEmission() {
			continue
		}
		out = append(out, record(r, name, year))
	}
	return out
}

func record(r *greengrids.Region, district, year string) *Record {
	transport, industrial, residential := r.SectorEmissions()
	rec := &Record{
		District:            district,
		Year:                year,
		TransportEmission:   transport,
		IndustrialEmission:  industrial,
		ResidentialEmission: residential,
		TotalEmission:       r.Emission(),
	}
	if rec.TotalEmission != 0 {
		rec.Breakdown = Breakdown{
			Transport:   round2(transport / rec.TotalEmission * 100),
			Industrial:  round2(industrial / rec.TotalEmission * 100),
			Residential: round2(residential / rec.TotalEmission * 100),
		}
	}
	return rec
}

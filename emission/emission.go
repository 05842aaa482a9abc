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

// Package emission synthesizes and reports sector emission inventories
// for survey districts. Districts are classified as urban, suburban, or
// rural, and each class samples its transport, industrial, and
// residential emissions from a different range, so that the generated
// inventories reproduce the skew of a real city: industrial emissions
// dominate downtown, residential emissions dominate the countryside.
package emission

import (
	"math"
	"math/rand"

	"github.com/HMNS19/greengrids"
)

// AreaType classifies a district for emission sampling.
type AreaType string

// The built-in area classes.
const (
	Urban    AreaType = "urban"
	Suburban AreaType = "suburban"
	Rural    AreaType = "rural"
)

// SectorRange bounds the annual emission sampled for one sector
// [tonnes/year].
type SectorRange struct {
	Low, High float64
}

// Profile holds the per-sector sampling ranges for one area class.
type Profile struct {
	Transport   SectorRange
	Industrial  SectorRange
	Residential SectorRange
}

// DefaultProfiles returns the sampling ranges for the built-in area
// classes.
func DefaultProfiles() map[AreaType]Profile {
	return map[AreaType]Profile{
		Urban: {
			Transport:   SectorRange{1500, 3000},
			Industrial:  SectorRange{2000, 5000},
			Residential: SectorRange{800, 1500},
		},
		Rural: {
			Transport:   SectorRange{200, 800},
			Industrial:  SectorRange{100, 1000},
			Residential: SectorRange{1000, 2500},
		},
		Suburban: {
			Transport:   SectorRange{800, 1800},
			Industrial:  SectorRange{500, 2000},
			Residential: SectorRange{900, 1800},
		},
	}
}

// urbanDistricts and suburbanDistricts classify the Bengaluru survey
// districts. Anything not listed is treated as rural.
var (
	urbanDistricts = []string{
		"Bengaluru Urban", "Bangalore North", "Bangalore East",
		"Bangalore South", "Defence Colony", "Anekal",
		"Yelahanka taluku", "Thanisandra", "Herohalli",
		"Nagadevanahalli", "Uttarahalli", "Vasanthpura",
		"Yelchenahalli", "Jaraganahalli", "Puttenahalli",
		"Bilekhalli", "Kodichikkanahalli",
	}
	suburbanDistricts = []string{
		"Hosakote", "Devanahalli", "Doddaballapura", "Nelmangala",
		"Ramanagara", "Chikkaballapura", "Kolar", "Tumakuru",
	}
)

// DefaultAreaTypes returns the built-in classification of the Bengaluru
// survey districts. Districts not listed are treated as rural.
func DefaultAreaTypes() map[string]AreaType {
	m := make(map[string]AreaType, len(urbanDistricts)+len(suburbanDistricts))
	for _, name := range urbanDistricts {
		m[name] = Urban
	}
	for _, name := range suburbanDistricts {
		m[name] = Suburban
	}
	return m
}

// Classifier assigns districts to area classes.
type Classifier struct {
	// AreaTypes classifies districts by name. Unlisted districts
	// fall back to Fallback.
	AreaTypes map[string]AreaType

	// Fallback is the class for districts not in AreaTypes.
	Fallback AreaType
}

// NewClassifier returns a Classifier with the built-in Bengaluru
// classification and a rural fallback.
func NewClassifier() *Classifier {
	return &Classifier{AreaTypes: DefaultAreaTypes(), Fallback: Rural}
}

// Classify returns the area class for the named district.
func (c *Classifier) Classify(district string) AreaType {
	if t, ok := c.AreaTypes[district]; ok {
		return t
	}
	return c.Fallback
}

// Generator fills in missing district emission inventories.
type Generator struct {
	// Profiles maps each area class to its sampling ranges.
	Profiles map[AreaType]Profile

	*Classifier

	rnd *rand.Rand
}

// NewGenerator creates a Generator with the built-in profiles and
// district classification. The seed fixes the sampling sequence, so
// generators created with the same seed fill identical datasets
// identically.
func NewGenerator(seed int64) *Generator {
	return &Generator{
		Profiles:   DefaultProfiles(),
		Classifier: NewClassifier(),
		rnd:        rand.New(rand.NewSource(seed)),
	}
}

func (g *Generator) sample(r SectorRange) float64 {
	return round2(r.Low + g.rnd.Float64()*(r.High-r.Low))
}

// Sample draws one emission inventory for a district of the given area
// class. Each sector is rounded to two decimal places before the total
// is taken, so the total is always the exact sum of the reported
// sectors.
func (g *Generator) Sample(t AreaType) (transport, industrial, residential, total float64) {
	p, ok := g.Profiles[t]
	if !ok {
		p = g.Profiles[g.Fallback]
	}
	transport = g.sample(p.Transport)
	industrial = g.sample(p.Industrial)
	residential = g.sample(p.Residential)
	total = round2(transport + industrial + residential)
	return
}

// Generate fills in sector emissions for every district in every year
// of the dataset that does not already carry a total. Districts with an
// existing total are left untouched, so repeated generation is a no-op.
// It reports the number of districts filled in.
func (g *Generator) Generate(ds *greengrids.Dataset) int {
	var n int
	for _, year := range ds.Years() {
		n += g.GenerateYear(ds, year)
	}
	return n
}

// GenerateYear is like Generate but fills in a single year.
func (g *Generator) GenerateYear(ds *greengrids.Dataset, year string) int {
	yd := ds.Year(year)
	if yd == nil {
		return 0
	}
	var n int
	for _, name := range yd.RegionNames() {
		r := yd.Region(name)
		if r.HasEmission() {
			continue
		}
		transport, industrial, residential, total := g.Sample(g.Classify(name))
		r.SetEmissions(transport, industrial, residential, total)
		n++
	}
	return n
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

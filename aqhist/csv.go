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

package aqhist

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Column labels accepted for each Area field, compared after
// lowercasing. The survey location files have been exported with
// several different header conventions over time.
var (
	nameLabels = []string{"area", "location", "name"}
	latLabels  = []string{"latitude", "lat"}
	lonLabels  = []string{"longitude", "lon", "lng"}
)

func findColumn(header, labels []string) int {
	for i, h := range header {
		for _, l := range labels {
			if strings.ToLower(strings.TrimSpace(h)) == l {
				return i
			}
		}
	}
	return -1
}

// ReadAreas parses survey locations from CSV. The header row must name
// an area, latitude, and longitude column; rows with any of the three
// values missing are skipped.
func ReadAreas(r io.Reader) ([]Area, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("aqhist: reading location header: %v", err)
	}
	name := findColumn(header, nameLabels)
	lat := findColumn(header, latLabels)
	lon := findColumn(header, lonLabels)
	if name < 0 || lat < 0 || lon < 0 {
		return nil, fmt.Errorf("aqhist: location header %v is missing an area, latitude, or longitude column", header)
	}

	var areas []Area
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("aqhist: reading locations: %v", err)
		}
		a := Area{Name: strings.TrimSpace(rec[name])}
		latS, lonS := strings.TrimSpace(rec[lat]), strings.TrimSpace(rec[lon])
		if a.Name == "" || latS == "" || lonS == "" {
			continue
		}
		if a.Latitude, err = strconv.ParseFloat(latS, 64); err != nil {
			return nil, fmt.Errorf("aqhist: location %s: %v", a.Name, err)
		}
		if a.Longitude, err = strconv.ParseFloat(lonS, 64); err != nil {
			return nil, fmt.Errorf("aqhist: location %s: %v", a.Name, err)
		}
		areas = append(areas, a)
	}
	return areas, nil
}

// averageColumns is the output column order, kept compatible with the
// survey's existing yearly AQI files.
var averageColumns = []string{"area", "year", "latitude", "longitude",
	"aqi_openweather_avg", "pm2_5_avg", "pm10_avg", "no2_avg", "o3_avg", "co_avg"}

// WriteAverages writes yearly averages as CSV.
func WriteAverages(w io.Writer, avgs []*YearAverage) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(averageColumns); err != nil {
		return fmt.Errorf("aqhist: writing averages: %v", err)
	}
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	for _, a := range avgs {
		rec := []string{
			a.Area,
			strconv.Itoa(a.Year),
			f(a.Latitude),
			f(a.Longitude),
			f(a.AQI),
			f(a.PM25),
			f(a.PM10),
			f(a.NO2),
			f(a.O3),
			f(a.CO),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("aqhist: writing averages: %v", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

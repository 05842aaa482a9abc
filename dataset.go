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

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// timestampKey is the dataset bookkeeping key that records when a
// year's data was generated. It is not a region and is excluded from
// region enumeration.
const timestampKey = "timestamp"

// Region holds the attributes of one named region within one simulated
// year. Numeric attributes are stored as pointers so that an absent
// attribute can be told apart from a zero value; attributes this
// program does not know about survive a load/save round trip
// untouched and in their original order.
type Region struct {
	transportEmission   *float64
	industrialEmission  *float64
	residentialEmission *float64
	totalEmission       *float64

	co2Concentration   *float64
	co2AfterDispersion *float64

	co2BeforeCapture *float64
	co2AfterCapture  *float64
	totalCapture     *float64

	extra []extraAttr
}

type extraAttr struct {
	key string
	val json.RawMessage
}

// regionFields maps JSON keys to their storage slots, in the order the
// keys are written when a region is encoded.
var regionFields = []struct {
	key string
	ptr func(r *Region) **float64
}{
	{"transport_emission", func(r *Region) **float64 { return &r.transportEmission }},
	{"industrial_emission", func(r *Region) **float64 { return &r.industrialEmission }},
	{"residential_emission", func(r *Region) **float64 { return &r.residentialEmission }},
	{"total_emission", func(r *Region) **float64 { return &r.totalEmission }},
	{"co2_concentration", func(r *Region) **float64 { return &r.co2Concentration }},
	{"co2_concentration_after_dispersion", func(r *Region) **float64 { return &r.co2AfterDispersion }},
	{"co2_before_capture", func(r *Region) **float64 { return &r.co2BeforeCapture }},
	{"co2_after_capture", func(r *Region) **float64 { return &r.co2AfterCapture }},
	{"total_capture", func(r *Region) **float64 { return &r.totalCapture }},
}

// Emission returns the region's total emission, or zero if it has not
// been set. Missing attributes count as zero in all engine
// calculations.
func (r *Region) Emission() float64 {
	if r == nil || r.totalEmission == nil {
		return 0
	}
	return *r.totalEmission
}

// HasEmission reports whether a total emission has been recorded for
// the region. The emission generator skips regions that already have
// one.
func (r *Region) HasEmission() bool {
	return r != nil && r.totalEmission != nil
}

// SectorEmissions returns the transport, industrial, and residential
// emission components, with zero standing in for any absent component.
func (r *Region) SectorEmissions() (transport, industrial, residential float64) {
	if r == nil {
		return 0, 0, 0
	}
	if r.transportEmission != nil {
		transport = *r.transportEmission
	}
	if r.industrialEmission != nil {
		industrial = *r.industrialEmission
	}
	if r.residentialEmission != nil {
		residential = *r.residentialEmission
	}
	return transport, industrial, residential
}

// SetEmissions records the three sector emissions and their total.
func (r *Region) SetEmissions(transport, industrial, residential, total float64) {
	r.transportEmission = &transport
	r.industrialEmission = &industrial
	r.residentialEmission = &residential
	r.totalEmission = &total
}

// Concentration returns the current CO₂ concentration and whether one
// has been computed.
func (r *Region) Concentration() (float64, bool) {
	if r == nil || r.co2Concentration == nil {
		return 0, false
	}
	return *r.co2Concentration, true
}

// SetConcentration records the current CO₂ concentration.
func (r *Region) SetConcentration(v float64) {
	r.co2Concentration = &v
}

// AfterDispersion returns the post-dispersion concentration snapshot
// and whether one has been taken.
func (r *Region) AfterDispersion() (float64, bool) {
	if r == nil || r.co2AfterDispersion == nil {
		return 0, false
	}
	return *r.co2AfterDispersion, true
}

// SetAfterDispersion records the post-dispersion snapshot.
func (r *Region) SetAfterDispersion(v float64) {
	r.co2AfterDispersion = &v
}

// ClearConcentrations removes the concentration and post-dispersion
// attributes entirely, so that queries report no data rather than
// zero.
func (r *Region) ClearConcentrations() {
	r.co2Concentration = nil
	r.co2AfterDispersion = nil
}

// Capture returns the capture bookkeeping attributes and whether a
// capture simulation has written them.
func (r *Region) Capture() (before, after, captured float64, ok bool) {
	if r == nil || r.co2BeforeCapture == nil || r.co2AfterCapture == nil || r.totalCapture == nil {
		return 0, 0, 0, false
	}
	return *r.co2BeforeCapture, *r.co2AfterCapture, *r.totalCapture, true
}

// SetCapture records the capture bookkeeping attributes.
func (r *Region) SetCapture(before, after, captured float64) {
	r.co2BeforeCapture = &before
	r.co2AfterCapture = &after
	r.totalCapture = &captured
}

// Extra returns the raw value of an attribute this program does not
// model, such as the temperature readings in the original survey data.
func (r *Region) Extra(key string) (json.RawMessage, bool) {
	for _, a := range r.extra {
		if a.key == key {
			return a.val, true
		}
	}
	return nil, false
}

// SetExtra stores a passthrough attribute, replacing any existing
// value for the same key.
func (r *Region) SetExtra(key string, val json.RawMessage) {
	for i, a := range r.extra {
		if a.key == key {
			r.extra[i].val = val
			return
		}
	}
	r.extra = append(r.extra, extraAttr{key: key, val: val})
}

// Copy returns a deep copy of the region.
func (r *Region) Copy() *Region {
	o := new(Region)
	for _, f := range regionFields {
		if v := *f.ptr(r); v != nil {
			vv := *v
			*f.ptr(o) = &vv
		}
	}
	if len(r.extra) > 0 {
		o.extra = make([]extraAttr, len(r.extra))
		for i, a := range r.extra {
			o.extra[i] = extraAttr{key: a.key, val: append(json.RawMessage(nil), a.val...)}
		}
	}
	return o
}

// MarshalJSON encodes the region with passthrough attributes first, in
// their original order, followed by the modeled attributes that are
// set.
func (r *Region) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	writeKey := func(key string) error {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		kb, err := json.Marshal(key)
		if err != nil {
			return err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		return nil
	}
	for _, a := range r.extra {
		if err := writeKey(a.key); err != nil {
			return nil, err
		}
		buf.Write(a.val)
	}
	for _, f := range regionFields {
		v := *f.ptr(r)
		if v == nil {
			continue
		}
		if err := writeKey(f.key); err != nil {
			return nil, err
		}
		vb, err := json.Marshal(*v)
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes the region, keeping unrecognized attributes as
// raw JSON in document order.
func (r *Region) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("greengrids: region must be a JSON object, got %v", tok)
	}
	known := make(map[string]**float64, len(regionFields))
	for _, f := range regionFields {
		known[f.key] = f.ptr(r)
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key := keyTok.(string)
		if slot, ok := known[key]; ok {
			var v float64
			if err := dec.Decode(&v); err != nil {
				return fmt.Errorf("greengrids: region attribute %q: %v", key, err)
			}
			*slot = &v
			continue
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("greengrids: region attribute %q: %v", key, err)
		}
		r.extra = append(r.extra, extraAttr{key: key, val: raw})
	}
	_, err = dec.Token() // closing brace
	return err
}

// YearData holds the regions of one simulated year, preserving the
// order in which the region names were first enumerated. That
// discovery order drives topology construction and query output, so it
// must survive a load/save round trip.
type YearData struct {
	keys      []string // document order, possibly including timestampKey
	regions   map[string]*Region
	timestamp string
}

// NewYearData returns an empty year.
func NewYearData() *YearData {
	return &YearData{regions: make(map[string]*Region)}
}

// AddRegion appends a region under the given name, or replaces the
// attributes of an existing one without disturbing its position.
func (y *YearData) AddRegion(name string, r *Region) {
	if y.regions == nil {
		y.regions = make(map[string]*Region)
	}
	if _, ok := y.regions[name]; !ok {
		y.keys = append(y.keys, name)
	}
	y.regions[name] = r
}

// Region returns the named region, or nil if the year does not contain
// it.
func (y *YearData) Region(name string) *Region {
	if y == nil || name == timestampKey {
		return nil
	}
	return y.regions[name]
}

// RegionNames returns the region names in discovery order, with the
// timestamp bookkeeping key filtered out.
func (y *YearData) RegionNames() []string {
	if y == nil {
		return nil
	}
	names := make([]string, 0, len(y.keys))
	for _, k := range y.keys {
		if k == timestampKey {
			continue
		}
		names = append(names, k)
	}
	return names
}

// Len returns the number of regions in the year.
func (y *YearData) Len() int {
	if y == nil {
		return 0
	}
	return len(y.regions)
}

// Timestamp returns the year's bookkeeping timestamp, if any.
func (y *YearData) Timestamp() string {
	if y == nil {
		return ""
	}
	return y.timestamp
}

// SetTimestamp records the year's bookkeeping timestamp.
func (y *YearData) SetTimestamp(ts string) {
	if y.timestamp == "" {
		y.keys = append(y.keys, timestampKey)
	}
	y.timestamp = ts
}

// Copy returns a deep copy of the year.
func (y *YearData) Copy() *YearData {
	o := &YearData{
		keys:      append([]string(nil), y.keys...),
		regions:   make(map[string]*Region, len(y.regions)),
		timestamp: y.timestamp,
	}
	for name, r := range y.regions {
		o.regions[name] = r.Copy()
	}
	return o
}

// MarshalJSON encodes the year's entries in discovery order.
func (y *YearData) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range y.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		var vb []byte
		if k == timestampKey {
			vb, err = json.Marshal(y.timestamp)
		} else {
			vb, err = json.Marshal(y.regions[k])
		}
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes the year, recording region names in document
// order.
func (y *YearData) UnmarshalJSON(b []byte) error {
	y.keys = nil
	y.regions = make(map[string]*Region)
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("greengrids: year must be a JSON object, got %v", tok)
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key := keyTok.(string)
		if key == timestampKey {
			var ts string
			if err := dec.Decode(&ts); err != nil {
				return fmt.Errorf("greengrids: year timestamp: %v", err)
			}
			y.keys = append(y.keys, timestampKey)
			y.timestamp = ts
			continue
		}
		r := new(Region)
		if err := dec.Decode(r); err != nil {
			return fmt.Errorf("greengrids: region %q: %v", key, err)
		}
		y.keys = append(y.keys, key)
		y.regions[key] = r
	}
	_, err = dec.Token() // closing brace
	return err
}

// Dataset maps year labels to their regions. The engine operates on
// exactly one year per run; other years are untouched.
type Dataset struct {
	years []string
	data  map[string]*YearData
}

// NewDataset returns an empty dataset.
func NewDataset() *Dataset {
	return &Dataset{data: make(map[string]*YearData)}
}

// AddYear inserts a year, or replaces an existing one without
// disturbing its position.
func (d *Dataset) AddYear(label string, y *YearData) {
	if d.data == nil {
		d.data = make(map[string]*YearData)
	}
	if _, ok := d.data[label]; !ok {
		d.years = append(d.years, label)
	}
	d.data[label] = y
}

// Year returns the data for a year label, or nil if the dataset does
// not contain it.
func (d *Dataset) Year(label string) *YearData {
	if d == nil {
		return nil
	}
	return d.data[label]
}

// Years returns the year labels in document order.
func (d *Dataset) Years() []string {
	return append([]string(nil), d.years...)
}

// Copy returns a deep copy of the dataset. Concurrent simulations must
// each run against their own copy.
func (d *Dataset) Copy() *Dataset {
	o := &Dataset{
		years: append([]string(nil), d.years...),
		data:  make(map[string]*YearData, len(d.data)),
	}
	for label, y := range d.data {
		o.data[label] = y.Copy()
	}
	return o
}

// MarshalJSON encodes the dataset's years in document order.
func (d *Dataset) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, label := range d.years {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(label)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(d.data[label])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes the dataset, recording year labels in document
// order.
func (d *Dataset) UnmarshalJSON(b []byte) error {
	d.years = nil
	d.data = make(map[string]*YearData)
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("greengrids: dataset must be a JSON object, got %v", tok)
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		label := keyTok.(string)
		y := NewYearData()
		if err := dec.Decode(y); err != nil {
			return fmt.Errorf("greengrids: year %q: %v", label, err)
		}
		d.years = append(d.years, label)
		d.data[label] = y
	}
	_, err = dec.Token() // closing brace
	return err
}

// MissingYearError is returned when an operation targets a year that
// is not present in the dataset.
type MissingYearError struct {
	Year string
}

func (e MissingYearError) Error() string {
	return fmt.Sprintf("greengrids: year %q is not in the dataset", e.Year)
}

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

package hash

import (
	"strings"
	"testing"
)

type config struct {
	Scenario string
	Steps    int
	Rates    []float64
}

func TestKeyStable(t *testing.T) {
	a := config{Scenario: "baseline", Steps: 20, Rates: []float64{0.15, 0.3}}
	b := config{Scenario: "baseline", Steps: 20, Rates: []float64{0.15, 0.3}}
	if Key("run", a) != Key("run", b) {
		t.Errorf("equal configurations produced different keys: %s != %s",
			Key("run", a), Key("run", b))
	}
	c := b
	c.Steps = 21
	if Key("run", a) == Key("run", c) {
		t.Errorf("different configurations produced the same key %s", Key("run", a))
	}
}

func TestKeyPrefix(t *testing.T) {
	k := Key("aqhist", config{Scenario: "x"})
	if !strings.HasPrefix(k, "aqhist_") {
		t.Errorf("key %q does not start with the namespace prefix", k)
	}
	if Key("run", config{Scenario: "x"}) == k {
		t.Error("the same object under different prefixes must not share a key")
	}
}

type opaque struct {
	inner float64
}

func TestKeyFallback(t *testing.T) {
	// gob refuses a struct with no exported fields, forcing the
	// textual fallback.
	if Key("run", opaque{inner: 1}) != Key("run", opaque{inner: 1}) {
		t.Error("fallback keys are not deterministic")
	}
	if Key("run", opaque{inner: 1}) == Key("run", opaque{inner: 2}) {
		t.Error("fallback keys do not distinguish values")
	}
}

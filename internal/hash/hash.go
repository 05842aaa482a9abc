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

// Package hash derives stable cache keys from run configurations.
// Equal configurations must always produce equal keys, across
// processes, so the simulation result cache and the run history can
// share entries between runs of the program.
package hash

import (
	"encoding/gob"
	"encoding/hex"
	"hash/fnv"

	"github.com/davecgh/go-spew/spew"
)

// deterministic prints values reproducibly: map keys sorted, pointer
// addresses and capacities suppressed, methods not consulted.
var deterministic = spew.ConfigState{
	Indent:                  " ",
	SortKeys:                true,
	DisableMethods:          true,
	SpewKeys:                true,
	DisablePointerAddresses: true,
	DisableCapacities:       true,
}

// Key returns prefix joined to a stable hexadecimal digest of object.
// Objects are digested through their gob encoding; values gob cannot
// encode, such as ones with no exported fields, fall back to a
// deterministic textual rendering.
func Key(prefix string, object interface{}) string {
	h := fnv.New128a()
	if err := gob.NewEncoder(h).Encode(object); err != nil {
		// Partial output may have been written before the failure.
		h.Reset()
		deterministic.Fprintf(h, "%#v", object)
	}
	return prefix + "_" + hex.EncodeToString(h.Sum(nil))
}

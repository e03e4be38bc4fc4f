/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package field

// Flatten returns m's fields in wire order: top-level fields
// interleaved with their groups' count field followed immediately by
// each instance's member fields, in original insertion order. This is
// the inverse of Build, used by the wire codec's Encode contract
// (spec.md §4.1).
func Flatten(m Map) []Field {
	d, ok := m.(*Dict)
	if !ok {
		// List form is already flat - groups were flattened at SetGroup time.
		return m.Fields()
	}

	out := make([]Field, 0, d.Len())
	for _, t := range d.order {
		if g, isGroup := d.groups[t]; isGroup {
			out = append(out, NewInt(t, g.Size()))
			for _, inst := range g.Instances {
				out = append(out, inst.Fields()...)
			}
			continue
		}
		out = append(out, d.fields[t])
	}
	return out
}

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

import (
	"fmt"

	"fixengine/fixerr"
	"fixengine/tag"
)

// Build structures a flat, ordered slice of fields into a Map,
// following the repeating-group parsing rules in spec.md §4.1: a
// count tag is followed by exactly N delimited instances, each
// beginning at the template's delimiter tag and consuming member tags
// until the next delimiter or an out-of-template tag.
//
// It is shared by the wire codec (decoding already tag=value-split
// bytes) and the Message generic factory (constructing a message from
// caller-supplied pairs) - both need the identical grouping algorithm.
//
// When templates is empty, the whole message falls through to List
// form per spec.md §3 ("If no template is known ... the message falls
// through to list form"). A tag that repeats at the top level, outside
// any templated group, marks an untemplated repeating group and also
// yields List form.
func Build(fields []Field, templates map[tag.Tag]Template) (Map, error) {
	if len(templates) == 0 {
		l := NewList()
		for _, f := range fields {
			l.fields = append(l.fields, f)
		}
		return l, nil
	}

	d := NewDict()
	i := 0
	for i < len(fields) {
		f := fields[i]
		tmpl, isCount := templates[f.Tag]
		if !isCount {
			if _, dup := d.fields[f.Tag]; dup {
				l := NewList()
				l.fields = append(l.fields, fields...)
				return l, nil
			}
			d.Set(f)
			i++
			continue
		}

		count, err := f.Int()
		if err != nil {
			return nil, fmt.Errorf("%w: count field %d has non-integer value %q", fixerr.ErrGroupParseError, f.Tag, f.String())
		}
		i++

		g := NewGroup(tmpl)
		for instNum := 0; instNum < count; instNum++ {
			if i >= len(fields) || fields[i].Tag != tmpl.DelimiterTag {
				return nil, fmt.Errorf("%w: expected %d instances of group %d, found %d",
					fixerr.ErrGroupParseError, count, f.Tag, instNum)
			}
			inst := g.AddInstance()
			inst.Set(fields[i])
			i++
			for i < len(fields) && fields[i].Tag != tmpl.DelimiterTag && tmpl.MemberTags[fields[i].Tag] {
				inst.Set(fields[i])
				i++
			}
		}
		d.SetGroup(g)
	}
	return d, nil
}

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

import "fixengine/tag"

// Template describes a repeating group: the count tag, the delimiter
// tag that marks the start of each instance, and the full set of
// member tags permitted within an instance (spec.md §3, Group).
type Template struct {
	CountTag     tag.Tag
	DelimiterTag tag.Tag
	MemberTags   map[tag.Tag]bool
}

// NewTemplate builds a Template from a delimiter tag followed by the
// remaining member tags (the delimiter is itself always a member).
func NewTemplate(countTag, delimiterTag tag.Tag, otherMembers ...tag.Tag) Template {
	members := make(map[tag.Tag]bool, len(otherMembers)+1)
	members[delimiterTag] = true
	for _, t := range otherMembers {
		members[t] = true
	}
	return Template{CountTag: countTag, DelimiterTag: delimiterTag, MemberTags: members}
}

// Group is a repeating collection embedded in a FieldMap, introduced
// by a count field (spec.md §3, Group). Instance order is significant
// and preserved.
type Group struct {
	Template  Template
	Instances []*Dict
}

// NewGroup creates an empty group for the given template.
func NewGroup(t Template) *Group {
	return &Group{Template: t}
}

// Size returns the number of instances, which must equal the count
// field's declared value (spec.md §3, Group: "size equals the count
// field value").
func (g *Group) Size() int {
	return len(g.Instances)
}

// AddInstance appends a new, empty instance and returns it so the
// caller (codec decoder or builder) can populate its member fields.
func (g *Group) AddInstance() *Dict {
	inst := NewDict()
	g.Instances = append(g.Instances, inst)
	return inst
}

// Instance returns the i-th instance (0-based).
func (g *Group) Instance(i int) *Dict {
	return g.Instances[i]
}

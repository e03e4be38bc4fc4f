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

// Map is the ordered multi-field container described in spec.md §3.
// It is deliberately a sum type with two concrete implementations
// (Dict, List) rather than one struct with a mode flag (spec.md §9,
// "Tagged variants"): callers see the uniform Map interface and the
// constructor picks the representation once, at construction time.
type Map interface {
	// Get returns the first field with the given tag.
	Get(t tag.Tag) (Field, bool)
	// Set inserts or replaces the field with the given tag, preserving
	// original insertion position on replace.
	Set(f Field)
	// Remove deletes the field (and, if it is a group count tag, the
	// entire group) atomically (spec.md §4.2, Mutation).
	Remove(t tag.Tag)
	// Tags returns tags in insertion order.
	Tags() []tag.Tag
	// Fields returns fields in insertion order.
	Fields() []Field
	// Group returns the repeating group rooted at countTag, if any.
	Group(countTag tag.Tag) (*Group, bool)
	// SetGroup installs (or replaces) a repeating group.
	SetGroup(g *Group)
	// Len returns the number of top-level fields (excluding group
	// instance members, which are owned by their Group).
	Len() int
}

// Dict is the O(1)-lookup-by-tag representation used when a group
// template is known for every repeating group in the message (spec.md
// §3, FieldMap: "Dict form").
type Dict struct {
	order  []tag.Tag
	fields map[tag.Tag]Field
	groups map[tag.Tag]*Group
}

// NewDict constructs an empty Dict-form field map.
func NewDict() *Dict {
	return &Dict{
		fields: make(map[tag.Tag]Field),
		groups: make(map[tag.Tag]*Group),
	}
}

func (d *Dict) Get(t tag.Tag) (Field, bool) {
	f, ok := d.fields[t]
	return f, ok
}

func (d *Dict) Set(f Field) {
	if _, exists := d.fields[f.Tag]; !exists {
		d.order = append(d.order, f.Tag)
	}
	d.fields[f.Tag] = f
}

func (d *Dict) Remove(t tag.Tag) {
	if _, ok := d.fields[t]; !ok {
		if _, ok := d.groups[t]; !ok {
			return
		}
	}
	delete(d.fields, t)
	delete(d.groups, t)
	for i, ot := range d.order {
		if ot == t {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
}

func (d *Dict) Tags() []tag.Tag {
	out := make([]tag.Tag, len(d.order))
	copy(out, d.order)
	return out
}

func (d *Dict) Fields() []Field {
	out := make([]Field, 0, len(d.order))
	for _, t := range d.order {
		out = append(out, d.fields[t])
	}
	return out
}

func (d *Dict) Group(countTag tag.Tag) (*Group, bool) {
	g, ok := d.groups[countTag]
	return g, ok
}

func (d *Dict) SetGroup(g *Group) {
	countTag := g.Template.CountTag
	if _, exists := d.groups[countTag]; !exists {
		if _, exists := d.fields[countTag]; !exists {
			d.order = append(d.order, countTag)
		}
	}
	d.groups[countTag] = g
	d.fields[countTag] = NewInt(countTag, g.Size())
}

func (d *Dict) Len() int {
	return len(d.order)
}

// List is the flat, ordered, O(n)-lookup representation used when no
// group template is available for at least one repeating group in the
// message (spec.md §3, FieldMap: "List form"). Repeating group members
// are left flat; consumers are responsible for interpretation.
type List struct {
	fields []Field
}

// NewList constructs an empty List-form field map.
func NewList() *List {
	return &List{}
}

func (l *List) Get(t tag.Tag) (Field, bool) {
	for _, f := range l.fields {
		if f.Tag == t {
			return f, true
		}
	}
	return Field{}, false
}

func (l *List) Set(f Field) {
	for i, existing := range l.fields {
		if existing.Tag == f.Tag {
			l.fields[i] = f
			return
		}
	}
	l.fields = append(l.fields, f)
}

// Remove deletes the first field with tag t. List form holds no group
// structure, so removing a count tag leaves the group's member fields
// in place.
func (l *List) Remove(t tag.Tag) {
	for i, f := range l.fields {
		if f.Tag == t {
			l.fields = append(l.fields[:i], l.fields[i+1:]...)
			return
		}
	}
}

func (l *List) Tags() []tag.Tag {
	out := make([]tag.Tag, len(l.fields))
	for i, f := range l.fields {
		out[i] = f.Tag
	}
	return out
}

func (l *List) Fields() []Field {
	out := make([]Field, len(l.fields))
	copy(out, l.fields)
	return out
}

// Group always returns false for a List: without a template, repeating
// groups cannot be structured, only left flat (spec.md §3).
func (l *List) Group(tag.Tag) (*Group, bool) {
	return nil, false
}

// SetGroup appends the group's fields flattened in order: the count
// field followed by each instance's member fields, matching how an
// untemplated group appears on the wire.
func (l *List) SetGroup(g *Group) {
	l.Set(NewInt(g.Template.CountTag, g.Size()))
	for _, inst := range g.Instances {
		for _, f := range inst.Fields() {
			l.fields = append(l.fields, f)
		}
	}
}

func (l *List) Len() int {
	return len(l.fields)
}

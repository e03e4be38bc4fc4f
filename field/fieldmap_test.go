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
	"testing"

	"fixengine/tag"
)

func TestDict_SetPreservesInsertionOrder(t *testing.T) {
	d := NewDict()
	d.Set(New(tag.Text, "hello"))
	d.Set(New(tag.RefSeqNum, "1"))
	d.Set(New(tag.RefTagID, "35"))

	got := d.Tags()
	want := []tag.Tag{tag.Text, tag.RefSeqNum, tag.RefTagID}
	for i, tg := range want {
		if got[i] != tg {
			t.Fatalf("position %d: expected tag %d, got %d", i, tg, got[i])
		}
	}
}

func TestDict_SetReplacesWithoutReordering(t *testing.T) {
	d := NewDict()
	d.Set(New(tag.Text, "hello"))
	d.Set(New(tag.RefSeqNum, "1"))
	d.Set(New(tag.Text, "goodbye"))

	got := d.Tags()
	if len(got) != 2 {
		t.Fatalf("expected 2 tags after replace, got %d", len(got))
	}
	if got[0] != tag.Text {
		t.Errorf("expected Text to stay first, got %d", got[0])
	}

	f, ok := d.Get(tag.Text)
	if !ok || f.String() != "goodbye" {
		t.Errorf("expected replaced value goodbye, got %v ok=%v", f, ok)
	}
}

func TestDict_RemoveDeletesGroupAtomically(t *testing.T) {
	d := NewDict()
	tmpl := NewTemplate(tag.NoMiscFees, tag.MiscFeeAmt, tag.MiscFeeCurr)
	g := NewGroup(tmpl)
	inst := g.AddInstance()
	inst.Set(New(tag.MiscFeeAmt, "1.50"))
	inst.Set(New(tag.MiscFeeCurr, "USD"))
	d.SetGroup(g)

	if _, ok := d.Get(tag.NoMiscFees); !ok {
		t.Fatalf("expected count field to be set")
	}

	d.Remove(tag.NoMiscFees)

	if _, ok := d.Get(tag.NoMiscFees); ok {
		t.Errorf("expected count field removed")
	}
	if _, ok := d.Group(tag.NoMiscFees); ok {
		t.Errorf("expected group removed atomically with its count field")
	}
}

func TestDict_GroupSizeMatchesInstanceCount(t *testing.T) {
	d := NewDict()
	tmpl := NewTemplate(tag.NoMiscFees, tag.MiscFeeAmt, tag.MiscFeeCurr, tag.MiscFeeType)
	g := NewGroup(tmpl)
	for i := 0; i < 3; i++ {
		inst := g.AddInstance()
		inst.Set(New(tag.MiscFeeAmt, "1.50"))
	}
	d.SetGroup(g)

	countField, _ := d.Get(tag.NoMiscFees)
	got, _ := countField.Int()
	if got != 3 {
		t.Errorf("expected count field to equal 3 instances, got %d", got)
	}
	if g.Size() != 3 {
		t.Errorf("expected group size 3, got %d", g.Size())
	}
}

func TestList_LookupIsOrderedAndFlat(t *testing.T) {
	// Set replaces by tag, so a flat list with repeated tags is built
	// directly, the way Build builds one.
	l := &List{fields: []Field{
		New(tag.NoMiscFees, "2"),
		New(tag.MiscFeeAmt, "1.50"),
		New(tag.MiscFeeCurr, "USD"),
		New(tag.MiscFeeAmt, "2.25"),
		New(tag.MiscFeeCurr, "EUR"),
	}}

	if l.Len() != 5 {
		t.Fatalf("expected 5 flat fields, got %d", l.Len())
	}

	// Get returns only the first match by tag - callers handle
	// repeated tags themselves via Fields().
	f, ok := l.Get(tag.MiscFeeAmt)
	if !ok || f.String() != "1.50" {
		t.Errorf("expected first MiscFeeAmt '1.50', got %v", f)
	}

	if _, ok := l.Group(tag.NoMiscFees); ok {
		t.Errorf("List form never materializes structured groups")
	}
}

func TestList_RemoveDeletesSingleField(t *testing.T) {
	l := NewList()
	l.Set(New(tag.Text, "hello"))
	l.Set(New(tag.RefSeqNum, "1"))
	l.Remove(tag.Text)

	if _, ok := l.Get(tag.Text); ok {
		t.Errorf("expected Text removed")
	}
	if l.Len() != 1 {
		t.Errorf("expected 1 remaining field, got %d", l.Len())
	}
}

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
	"errors"
	"testing"

	"fixengine/fixerr"
	"fixengine/tag"
)

func miscFeeTemplates() map[tag.Tag]Template {
	return map[tag.Tag]Template{
		tag.NoMiscFees: NewTemplate(tag.NoMiscFees, tag.MiscFeeAmt, tag.MiscFeeCurr, tag.MiscFeeType),
	}
}

func TestBuild_NoTemplatesFallsThroughToListForm(t *testing.T) {
	fields := []Field{New(tag.Text, "note"), New(tag.NoMiscFees, "1"), New(tag.MiscFeeAmt, "1.50")}

	m, err := Build(fields, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := m.(*List); !ok {
		t.Fatalf("expected List form when no templates are known, got %T", m)
	}
}

func TestBuild_WithTemplateProducesDictFormWithGroup(t *testing.T) {
	fields := []Field{
		New(tag.Text, "note"),
		New(tag.NoMiscFees, "2"),
		New(tag.MiscFeeAmt, "1.50"),
		New(tag.MiscFeeCurr, "USD"),
		New(tag.MiscFeeAmt, "2.25"),
		New(tag.MiscFeeCurr, "EUR"),
	}

	m, err := Build(fields, miscFeeTemplates())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	d, ok := m.(*Dict)
	if !ok {
		t.Fatalf("expected Dict form, got %T", m)
	}

	g, ok := d.Group(tag.NoMiscFees)
	if !ok {
		t.Fatalf("expected group rooted at NoMiscFees")
	}
	if g.Size() != 2 {
		t.Fatalf("expected 2 instances, got %d", g.Size())
	}

	first := g.Instance(0)
	amt, _ := first.Get(tag.MiscFeeAmt)
	if amt.String() != "1.50" {
		t.Errorf("expected first instance amount 1.50, got %s", amt.String())
	}
}

func TestBuild_FewerInstancesThanDeclaredIsGroupParseError(t *testing.T) {
	fields := []Field{
		New(tag.NoMiscFees, "2"),
		New(tag.MiscFeeAmt, "1.50"),
		// second instance missing
	}

	_, err := Build(fields, miscFeeTemplates())
	if !errors.Is(err, fixerr.ErrGroupParseError) {
		t.Fatalf("expected ErrGroupParseError, got %v", err)
	}
}

func TestBuild_OutOfTemplateTagTerminatesGroupEarly(t *testing.T) {
	fields := []Field{
		New(tag.NoMiscFees, "2"),
		New(tag.MiscFeeAmt, "1.50"),
		New(tag.Text, "note"), // not a member tag - terminates the group early
		New(tag.MiscFeeAmt, "2.25"),
	}

	_, err := Build(fields, miscFeeTemplates())
	if !errors.Is(err, fixerr.ErrGroupParseError) {
		t.Fatalf("expected ErrGroupParseError when group terminates before declared count, got %v", err)
	}
}

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

package message

import (
	"errors"
	"testing"
	"time"

	"fixengine/field"
	"fixengine/fixerr"
	"fixengine/tag"
)

var testIdentity = Identity{BeginString: "FIX.4.4", SenderCompID: "CLIENT", TargetCompID: "SERVER"}

func TestNewLogon_SetsHeaderAndBody(t *testing.T) {
	now := time.Now()
	msg := NewLogon(testIdentity, LogonParams{HeartBtInt: 30, ResetSeqNumFlag: true}, now)

	mt, ok := msg.MsgType()
	if !ok || mt != TypeLogon {
		t.Fatalf("expected MsgType A, got %q ok=%v", mt, ok)
	}

	f, ok := msg.Body.Get(tag.HeartBtInt)
	if !ok || f.String() != "30" {
		t.Errorf("expected HeartBtInt=30, got %v", f)
	}

	reset, ok := msg.Body.Get(tag.ResetSeqNumFlag)
	if !ok || reset.String() != "Y" {
		t.Errorf("expected ResetSeqNumFlag=Y, got %v", reset)
	}
}

func TestMessage_SeqNumRoundTrips(t *testing.T) {
	msg := New()
	msg.SetSeqNum(42)

	got, ok := msg.SeqNum()
	if !ok || got != 42 {
		t.Fatalf("expected seq 42, got %d ok=%v", got, ok)
	}
}

func TestMessage_IsAdminTrueForStandardSet(t *testing.T) {
	now := time.Now()
	admin := NewHeartbeat(testIdentity, "", now)
	if !admin.IsAdmin() {
		t.Errorf("expected Heartbeat to be classified as admin")
	}

	app := New()
	app.Header.Set(field.New(tag.MsgType, "D")) // NewOrderSingle
	if app.IsAdmin() {
		t.Errorf("expected NewOrderSingle to not be classified as admin")
	}
}

func TestNewFromFields_GenericFactoryBuildsBody(t *testing.T) {
	fields := []field.Field{field.New(tag.Text, "note"), field.New(tag.RefSeqNum, "1")}
	msg, err := NewFromFields(fields, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f, ok := msg.Body.Get(tag.Text)
	if !ok || f.String() != "note" {
		t.Errorf("expected Text=note in body, got %v", f)
	}
}

func TestNewResendRequest_SetsBeginAndEnd(t *testing.T) {
	msg := NewResendRequest(testIdentity, 2, 4, time.Now())

	begin, _ := msg.Body.Get(tag.BeginSeqNo)
	end, _ := msg.Body.Get(tag.EndSeqNo)
	if begin.String() != "2" || end.String() != "4" {
		t.Errorf("expected begin=2 end=4, got begin=%s end=%s", begin.String(), end.String())
	}
}

// --- spec.md §4.2, Mutation ---

func TestMessage_SetTag_AcceptsKnownAndUserDefinedTags(t *testing.T) {
	msg := New()

	if err := msg.SetTag(tag.Text, "hello"); err != nil {
		t.Fatalf("unexpected error setting a known tag: %v", err)
	}
	f, ok := msg.Body.Get(tag.Text)
	if !ok || f.String() != "hello" {
		t.Errorf("expected Text=hello, got %v ok=%v", f, ok)
	}

	if err := msg.SetTag(tag.Tag(5001), "custom"); err != nil {
		t.Fatalf("unexpected error setting a user-defined tag: %v", err)
	}
	f, ok = msg.Body.Get(tag.Tag(5001))
	if !ok || f.String() != "custom" {
		t.Errorf("expected 5001=custom, got %v ok=%v", f, ok)
	}
}

func TestMessage_SetTag_RejectsUnknownTagOutsideUserRange(t *testing.T) {
	msg := New()

	err := msg.SetTag(tag.Tag(4000), "nope")
	if !errors.Is(err, fixerr.ErrInvalidTag) {
		t.Fatalf("expected ErrInvalidTag for an unrecognized tag outside [5000,9999], got %v", err)
	}
	if _, ok := msg.Body.Get(tag.Tag(4000)); ok {
		t.Errorf("expected the rejected tag not to have been set")
	}
}

func TestMessage_SetField_ResolvesNameAlias(t *testing.T) {
	msg := New()

	if err := msg.SetField("Text", "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f, ok := msg.Body.Get(tag.Text)
	if !ok || f.String() != "hello" {
		t.Errorf("expected Text=hello via alias, got %v ok=%v", f, ok)
	}
}

func TestMessage_SetField_RejectsUnresolvableAlias(t *testing.T) {
	msg := New()

	err := msg.SetField("NotARealField", "x")
	if !errors.Is(err, fixerr.ErrInvalidTag) {
		t.Fatalf("expected ErrInvalidTag for an unresolvable alias, got %v", err)
	}
}

func TestMessage_RemoveTag_RemovesKnownField(t *testing.T) {
	msg := New()
	if err := msg.SetTag(tag.Text, "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := msg.RemoveTag(tag.Text); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := msg.Body.Get(tag.Text); ok {
		t.Errorf("expected Text to have been removed")
	}
}

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

// Package message is the in-memory FIX message representation: a
// FieldMap split across Header/Body/Trailer sections plus the derived
// accessors every session and pipeline processor needs (spec.md §3,
// Message). It is grounded on the teacher's buildHeader/BuildLogon
// helpers in builder/messages.go, generalized from building a single
// third-party *quickfix.Message into constructing this module's own
// Message type.
package message

import (
	"fmt"
	"time"

	"fixengine/field"
	"fixengine/fixerr"
	"fixengine/tag"
)

// Message types for the standard FIX 4.4 administrative set (spec.md
// §1, Non-goals: "exchange-specific session extensions beyond the
// standard FIX 4.4 administrative set").
const (
	TypeLogon         = "A"
	TypeLogout        = "5"
	TypeHeartbeat     = "0"
	TypeTestRequest   = "1"
	TypeResendRequest = "2"
	TypeSequenceReset = "4"
	TypeReject        = "3"
)

// Message is a FieldMap plus the header/trailer split and derived
// accessors described in spec.md §3. Header tags (8, 9, 35, 34, 49, 52,
// 56) and the trailer tag (10) are managed by the codec and session,
// not by user-written pipeline apps.
type Message struct {
	Header  field.Map
	Body    field.Map
	Trailer field.Map
}

// New constructs an empty message with Dict-form header/body/trailer.
// Pipeline apps building outbound administrative messages use this
// directly; application messages built from an untemplated group set
// use NewFromFields instead.
func New() *Message {
	return &Message{
		Header:  field.NewDict(),
		Body:    field.NewDict(),
		Trailer: field.NewDict(),
	}
}

// NewFromFields is the generic factory (spec.md §4.2, Construction):
// it accepts a flat, ordered sequence of body fields and an optional
// group-template map, producing a body FieldMap in Dict form if every
// repeating group in the fields is templated, else List form (see
// field.Build for how an untemplated group is recognized). Header
// and trailer remain empty Dicts for the caller (typically the wire
// codec or session) to populate.
func NewFromFields(bodyFields []field.Field, templates map[tag.Tag]field.Template) (*Message, error) {
	body, err := field.Build(bodyFields, templates)
	if err != nil {
		return nil, err
	}
	return &Message{
		Header:  field.NewDict(),
		Body:    body,
		Trailer: field.NewDict(),
	}, nil
}

// MsgType returns the header's MsgType (35) field.
func (m *Message) MsgType() (string, bool) {
	f, ok := m.Header.Get(tag.MsgType)
	if !ok {
		return "", false
	}
	return f.String(), true
}

// SeqNum returns the header's MsgSeqNum (34) field.
func (m *Message) SeqNum() (int, bool) {
	f, ok := m.Header.Get(tag.MsgSeqNum)
	if !ok {
		return 0, false
	}
	n, err := f.Int()
	return n, err == nil
}

// SetSeqNum sets the header's MsgSeqNum (34) field - used by the
// session when assigning next_send_seq to an outbound message.
func (m *Message) SetSeqNum(n int) {
	m.Header.Set(field.NewInt(tag.MsgSeqNum, n))
}

// SenderCompID returns the header's SenderCompID (49) field.
func (m *Message) SenderCompID() (string, bool) {
	f, ok := m.Header.Get(tag.SenderCompID)
	if !ok {
		return "", false
	}
	return f.String(), true
}

// TargetCompID returns the header's TargetCompID (56) field.
func (m *Message) TargetCompID() (string, bool) {
	f, ok := m.Header.Get(tag.TargetCompID)
	if !ok {
		return "", false
	}
	return f.String(), true
}

// SendingTime returns the header's SendingTime (52) field, parsed.
func (m *Message) SendingTime() (time.Time, bool) {
	f, ok := m.Header.Get(tag.SendingTime)
	if !ok {
		return time.Time{}, false
	}
	t, err := f.Time()
	return t, err == nil
}

// PossDupFlag returns the header's PossDupFlag (43) field, defaulting
// to false when absent.
func (m *Message) PossDupFlag() bool {
	f, ok := m.Header.Get(tag.PossDupFlag)
	if !ok {
		return false
	}
	v, _ := f.Bool()
	return v
}

// IsAdmin reports whether this message's type is one of the standard
// FIX administrative types - used by the session to decide whether a
// message counts toward the resend gap-fill-with-SequenceReset path
// (spec.md §4.3, "ResendRequest received ... for contiguous
// administrative messages, emit a single SequenceReset").
func (m *Message) IsAdmin() bool {
	t, ok := m.MsgType()
	if !ok {
		return false
	}
	switch t {
	case TypeLogon, TypeLogout, TypeHeartbeat, TypeTestRequest, TypeResendRequest, TypeSequenceReset, TypeReject:
		return true
	default:
		return false
	}
}

// SetTag mutates the body by tag number (spec.md §4.2, "Mutation":
// "Fields may be added, replaced, or removed by tag number"). A tag
// this dictionary does not name is only accepted inside the
// user-defined extension range; every other unrecognized tag fails
// with fixerr.ErrInvalidTag rather than being silently admitted.
func (m *Message) SetTag(t tag.Tag, value string) error {
	if err := checkMutable(t); err != nil {
		return err
	}
	m.Body.Set(field.New(t, value))
	return nil
}

// RemoveTag removes the body field (or, for a group count tag, the
// whole group - field.Map.Remove already does this atomically) at tag
// number t, guarded the same way SetTag is.
func (m *Message) RemoveTag(t tag.Tag) error {
	if err := checkMutable(t); err != nil {
		return err
	}
	m.Body.Remove(t)
	return nil
}

// SetField mutates the body by tag-name alias (spec.md §4.2,
// "Mutation": "or by tag-name alias"), resolving name through
// tag.ByName. An alias this dictionary cannot resolve to a tag number
// fails with ErrInvalidTag regardless of range, since there is no tag
// number to check against the user-defined range in the first place.
func (m *Message) SetField(name string, value string) error {
	t, ok := tag.ByName(name)
	if !ok {
		return fmt.Errorf("message: unknown field alias %q: %w", name, fixerr.ErrInvalidTag)
	}
	return m.SetTag(t, value)
}

// RemoveField removes the body field named by alias, the by-name
// counterpart to RemoveTag.
func (m *Message) RemoveField(name string) error {
	t, ok := tag.ByName(name)
	if !ok {
		return fmt.Errorf("message: unknown field alias %q: %w", name, fixerr.ErrInvalidTag)
	}
	return m.RemoveTag(t)
}

// checkMutable enforces spec.md §4.2's unknown-tag rule: a tag this
// dictionary names is always mutable; an unnamed one is mutable only
// inside the user-defined extension range (tag.IsUserDefined).
func checkMutable(t tag.Tag) error {
	if _, known := tag.Names[t]; known {
		return nil
	}
	if tag.IsUserDefined(t) {
		return nil
	}
	return fmt.Errorf("message: unknown tag %d: %w", t, fixerr.ErrInvalidTag)
}

// buildHeader sets the common header fields shared by every outbound
// message, mirroring the teacher's buildHeader helper
// (builder/messages.go) generalized to this module's own types.
func buildHeader(h field.Map, beginString, msgType, senderCompID, targetCompID string, sendingTime time.Time) {
	h.Set(field.New(tag.BeginString, beginString))
	h.Set(field.New(tag.MsgType, msgType))
	h.Set(field.New(tag.SenderCompID, senderCompID))
	h.Set(field.New(tag.TargetCompID, targetCompID))
	h.Set(field.NewTime(tag.SendingTime, sendingTime))
}

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
	"time"

	"fixengine/field"
	"fixengine/tag"
)

// Identity carries the BeginString/SenderCompID/TargetCompID triple
// every typed constructor needs to stamp the header - grounded on the
// teacher's Config struct (fixclient/fixapp.go) but generalized away
// from Coinbase Prime-specific auth fields into plain session identity.
type Identity struct {
	BeginString  string
	SenderCompID string
	TargetCompID string
}

func (id Identity) header(h field.Map, msgType string, now time.Time) {
	buildHeader(h, id.BeginString, msgType, id.SenderCompID, id.TargetCompID, now)
}

// LogonParams carries the fields needed to build a Logon (A) message
// (spec.md §4.3, "Connecting -> LogonSent").
type LogonParams struct {
	HeartBtInt      int
	ResetSeqNumFlag bool
	EncryptMethod   string
	Username        string
	Password        string
}

// NewLogon builds a Logon (A) message.
func NewLogon(id Identity, p LogonParams, now time.Time) *Message {
	m := New()
	id.header(m.Header, TypeLogon, now)

	encryptMethod := p.EncryptMethod
	if encryptMethod == "" {
		encryptMethod = "0"
	}
	m.Body.Set(field.New(tag.EncryptMethod, encryptMethod))
	m.Body.Set(field.NewInt(tag.HeartBtInt, p.HeartBtInt))
	if p.ResetSeqNumFlag {
		m.Body.Set(field.NewBool(tag.ResetSeqNumFlag, true))
	}
	if p.Username != "" {
		m.Body.Set(field.New(tag.Username, p.Username))
	}
	if p.Password != "" {
		m.Body.Set(field.New(tag.Password, p.Password))
	}
	return m
}

// NewLogout builds a Logout (5) message, optionally carrying a reason
// (spec.md §4.3, "LoggedIn -> LogoutSent").
func NewLogout(id Identity, reason string, now time.Time) *Message {
	m := New()
	id.header(m.Header, TypeLogout, now)
	if reason != "" {
		m.Body.Set(field.New(tag.Text, reason))
	}
	return m
}

// NewHeartbeat builds a Heartbeat (0) message, optionally echoing a
// TestReqID in response to a TestRequest (spec.md §4.3, Heartbeats).
func NewHeartbeat(id Identity, testReqID string, now time.Time) *Message {
	m := New()
	id.header(m.Header, TypeHeartbeat, now)
	if testReqID != "" {
		m.Body.Set(field.New(tag.TestReqID, testReqID))
	}
	return m
}

// NewTestRequest builds a TestRequest (1) message carrying a unique
// TestReqID (spec.md §4.3, Heartbeats).
func NewTestRequest(id Identity, testReqID string, now time.Time) *Message {
	m := New()
	id.header(m.Header, TypeTestRequest, now)
	m.Body.Set(field.New(tag.TestReqID, testReqID))
	return m
}

// NewResendRequest builds a ResendRequest (2) message for the gap
// [begin, end] (end=0 meaning "to infinity", spec.md §4.3).
func NewResendRequest(id Identity, begin, end int, now time.Time) *Message {
	m := New()
	id.header(m.Header, TypeResendRequest, now)
	m.Body.Set(field.NewInt(tag.BeginSeqNo, begin))
	m.Body.Set(field.NewInt(tag.EndSeqNo, end))
	return m
}

// NewSequenceReset builds a SequenceReset (4) message. gapFill selects
// GapFillFlag=Y (advance past a known gap) vs reset mode (force
// next_expect_seq unconditionally upward, spec.md §4.3).
func NewSequenceReset(id Identity, newSeqNo int, gapFill bool, now time.Time) *Message {
	m := New()
	id.header(m.Header, TypeSequenceReset, now)
	m.Body.Set(field.NewBool(tag.GapFillFlag, gapFill))
	m.Body.Set(field.NewInt(tag.NewSeqNo, newSeqNo))
	return m
}

// RejectParams carries the fields used to build a session-level Reject
// (3) message, referencing the offending message per spec.md §7
// ("respond with Reject referencing RefSeqNum and RefTagID").
type RejectParams struct {
	RefSeqNum           int
	RefTagID            tag.Tag
	RefMsgType          string
	SessionRejectReason string
	Text                string
}

// NewReject builds a session-level Reject (3) message.
func NewReject(id Identity, p RejectParams, now time.Time) *Message {
	m := New()
	id.header(m.Header, TypeReject, now)
	m.Body.Set(field.NewInt(tag.RefSeqNum, p.RefSeqNum))
	if p.RefTagID != 0 {
		m.Body.Set(field.NewInt(tag.RefTagID, int(p.RefTagID)))
	}
	if p.RefMsgType != "" {
		m.Body.Set(field.New(tag.RefMsgType, p.RefMsgType))
	}
	if p.SessionRejectReason != "" {
		m.Body.Set(field.New(tag.SessionRejectReason, p.SessionRejectReason))
	}
	if p.Text != "" {
		m.Body.Set(field.New(tag.Text, p.Text))
	}
	return m
}

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

// Package wire is the Wire Codec (spec.md §4.1): framing, BodyLength
// and CheckSum invariants, and repeating-group parsing driven by a
// group-template registry. Grounded on the teacher's hand-rolled
// "269=" boundary scanning in fixclient/parser.go, generalized from a
// single hardcoded market-data group into a registry keyed by
// (message type, count tag) as spec.md §4.1 describes.
package wire

import "fixengine/field"
import "fixengine/tag"

// Registry maps (message type, count tag) to a Group Template
// (spec.md §4.1, "Repeating group parsing").
type Registry struct {
	byMsgType map[string]map[tag.Tag]field.Template
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{byMsgType: make(map[string]map[tag.Tag]field.Template)}
}

// Register adds (or replaces) a group template for the given message
// type.
func (r *Registry) Register(msgType string, tmpl field.Template) {
	m, ok := r.byMsgType[msgType]
	if !ok {
		m = make(map[tag.Tag]field.Template)
		r.byMsgType[msgType] = m
	}
	m[tmpl.CountTag] = tmpl
}

// TemplatesFor returns the templates known for msgType, or nil if none
// are registered - signaling the codec to fall through to list form
// for that message type (spec.md §3, FieldMap).
func (r *Registry) TemplatesFor(msgType string) map[tag.Tag]field.Template {
	return r.byMsgType[msgType]
}

// DefaultRegistry returns a registry pre-populated with the one
// repeating group the standard FIX 4.4 administrative set plus
// ExecutionReport carry: the Miscellaneous Fees group spec.md §3 uses
// as its own worked example ("a count field (e.g., NoMiscFees=2)").
// The administrative message types themselves (Logon, Logout,
// Heartbeat, TestRequest, ResendRequest, SequenceReset, Reject) carry
// no repeating groups, so no other templates are registered here; a
// caller extending this module to a different message set registers
// its own templates with Register.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	miscFees := field.NewTemplate(tag.NoMiscFees, tag.MiscFeeAmt, tag.MiscFeeCurr, tag.MiscFeeType)
	r.Register("8", miscFees) // ExecutionReport

	return r
}

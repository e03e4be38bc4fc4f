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

// Package fixerr is the error taxonomy shared by the wire codec,
// session state machine, and pipeline (spec.md §7). It is grounded on
// the exception hierarchy in original_source/wtfix/core/exceptions.py,
// re-expressed as wrapped sentinel errors instead of an exception
// class tree.
package fixerr

import (
	"errors"
	"fmt"

	"fixengine/tag"
)

// Sentinel errors. Use errors.Is to test for these across wrapping.
var (
	ErrMalformedFraming  = errors.New("fixerr: malformed framing")
	ErrBodyLengthMismatch = errors.New("fixerr: body length mismatch")
	ErrCheckSumMismatch  = errors.New("fixerr: checksum mismatch")
	ErrUnknownTag        = errors.New("fixerr: unknown tag")
	ErrGroupParseError   = errors.New("fixerr: group parse error")
	ErrInvalidTag        = errors.New("fixerr: invalid tag")
	ErrNeedMoreData      = errors.New("fixerr: need more data")

	ErrSequenceTooLow  = errors.New("fixerr: sequence number too low")
	ErrSequenceGap     = errors.New("fixerr: sequence number gap")
	ErrSessionRejected = errors.New("fixerr: session rejected")
	ErrHeartbeatTimeout = errors.New("fixerr: heartbeat timeout")
	ErrLogonTimeout    = errors.New("fixerr: logon timeout")
	ErrLogoutTimeout   = errors.New("fixerr: logout timeout")

	ErrProcessorStopped = errors.New("fixerr: processor halted the pipeline")

	ErrNotFound = errors.New("fixerr: message not found in store")
)

// ProtocolError is a recoverable protocol-level error (spec.md §7):
// missing required tag, wrong CompID, bad MsgType, carrying the
// RefSeqNum/RefTagID a Reject would reference. The session neither
// returns this type nor sends a Reject.
type ProtocolError struct {
	RefSeqNum int
	RefTagID  tag.Tag
	Reason    string
	Err       error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("fixerr: protocol error at seq=%d tag=%d: %s", e.RefSeqNum, e.RefTagID, e.Reason)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// FramingError wraps a codec framing failure with the byte offset at
// which resynchronization should resume (spec.md §4.1 decode contract).
type FramingError struct {
	Offset int
	Err    error
}

func (e *FramingError) Error() string {
	return fmt.Sprintf("fixerr: framing error at offset %d: %v", e.Offset, e.Err)
}

func (e *FramingError) Unwrap() error { return e.Err }

// SequenceError reports a sequence-number policy violation (spec.md
// §4.3, "Sequence-number policy").
type SequenceError struct {
	Expected int
	Received int
	Fatal    bool
	Err      error
}

func (e *SequenceError) Error() string {
	return fmt.Sprintf("fixerr: sequence error expected=%d received=%d fatal=%v: %v",
		e.Expected, e.Received, e.Fatal, e.Err)
}

func (e *SequenceError) Unwrap() error { return e.Err }

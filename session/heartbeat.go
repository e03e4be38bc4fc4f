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

package session

import (
	"context"
	"time"

	"fixengine/field"
	"fixengine/fixerr"
	"fixengine/message"
	"fixengine/store"
	"fixengine/tag"
)

// heartbeatDuration is the outbound-silence budget before a Heartbeat
// is sent (spec.md §4.3, "Heartbeats").
func (s *Session) heartbeatDuration() time.Duration {
	return time.Duration(s.cfg.HeartBtInt) * time.Second
}

// graceDuration is the inbound-silence budget before a TestRequest is
// sent, heartbeat_interval * (1 + grace) (spec.md §4.3, "Heartbeats";
// spec.md §9, Open Questions: grace exposed as a setting).
func (s *Session) graceDuration() time.Duration {
	return time.Duration(float64(s.cfg.HeartBtInt) * (1 + s.cfg.Grace) * float64(time.Second))
}

// startHeartbeatLocked arms both silence timers once the session
// reaches LoggedIn (spec.md §4.3, "LogonSent -> LoggedIn: ... heartbeat
// timers start").
func (s *Session) startHeartbeatLocked() {
	s.heartbeatTimer = time.AfterFunc(s.heartbeatDuration(), s.onOutboundSilence)
	s.testRequestTimer = time.AfterFunc(s.graceDuration(), s.onInboundSilence)
}

// stopHeartbeatLocked disarms both timers, invoked on logout or error
// (spec.md §5, "Cancellation and timeouts").
func (s *Session) stopHeartbeatLocked() {
	if s.heartbeatTimer != nil {
		s.heartbeatTimer.Stop()
	}
	if s.testRequestTimer != nil {
		s.testRequestTimer.Stop()
	}
}

// resetOutboundTimerLocked re-arms the Heartbeat timer after any
// outbound send (spec.md §4.3, "After heartbeat_interval seconds of
// outbound silence, send Heartbeat").
func (s *Session) resetOutboundTimerLocked() {
	if s.heartbeatTimer != nil {
		s.heartbeatTimer.Reset(s.heartbeatDuration())
	}
}

// resetInboundTimersLocked re-arms the TestRequest timer and clears any
// outstanding test request after any accepted inbound message (spec.md
// §4.3, "Inbound Heartbeat with TestReqID matching the outstanding one
// clears the outstanding flag" - generalized here to any inbound
// traffic resetting inbound silence, which is what the outstanding
// TestRequest is itself measuring).
func (s *Session) resetInboundTimersLocked() {
	s.testRequestOutstanding = false
	if s.testRequestTimer != nil {
		s.testRequestTimer.Reset(s.graceDuration())
	}
}

// onOutboundSilence fires heartbeat_interval seconds after the last
// outbound send and emits a Heartbeat (spec.md §8, "Heartbeat
// liveness").
func (s *Session) onOutboundSilence() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != LoggedIn && s.state != Resending {
		return
	}
	_ = s.sendLocked(message.NewHeartbeat(s.cfg.Identity, "", s.now()))
}

// onInboundSilence fires heartbeat_interval*(1+grace) seconds after the
// last inbound message. The first firing sends a TestRequest; a second
// consecutive firing with no intervening inbound traffic is fatal
// (spec.md §4.3, "Heartbeats"; spec.md §8, scenario 5).
func (s *Session) onInboundSilence() {
	s.mu.Lock()

	if s.state != LoggedIn && s.state != Resending {
		s.mu.Unlock()
		return
	}

	if s.testRequestOutstanding {
		s.stopHeartbeatLocked()
		s.state = Errored
		s.cause = fixerr.ErrHeartbeatTimeout
		s.failLocked()
		return
	}

	s.testRequestOutstanding = true
	s.testReqID = newTestReqID()
	if err := s.sendLocked(message.NewTestRequest(s.cfg.Identity, s.testReqID, s.now())); err != nil {
		s.state = Errored
		s.cause = err
		s.failLocked()
		return
	}
	s.testRequestTimer.Reset(s.graceDuration())
	s.mu.Unlock()
}

// failLocked unlocks mu and invokes OnFatal, if set, with the cause
// already recorded on s.cause. It exists because onInboundSilence fires
// from a timer goroutine, not the engine's own read loop: without a
// callback to unblock it, the engine could sit in a blocking
// Transport.Read long after the session has gone Errored (spec.md §8,
// scenario 5 - heartbeat timeout must surface promptly, not whenever
// the next inbound byte happens to arrive).
func (s *Session) failLocked() {
	cause := s.cause
	s.mu.Unlock()
	if s.OnFatal != nil {
		s.OnFatal(cause)
	}
}

// handleHeartbeatLocked processes an inbound Heartbeat (0). Inbound
// silence bookkeeping already happened in acceptLocked via
// resetInboundTimersLocked; nothing further is required unless the
// source carries a TestReqID that does not match what was sent, which
// is tolerated rather than treated as fatal (spec.md §4.3 only defines
// the matching case).
func (s *Session) handleHeartbeatLocked(*message.Message) {}

// handleTestRequestLocked replies to an inbound TestRequest (1) with a
// Heartbeat echoing the same TestReqID (spec.md §4.3, "Heartbeats").
func (s *Session) handleTestRequestLocked(msg *message.Message) {
	testReqID, _ := msg.Body.Get(tag.TestReqID)
	_ = s.sendLocked(message.NewHeartbeat(s.cfg.Identity, testReqID.String(), s.now()))
}

// handleSequenceResetLocked applies an inbound SequenceReset (4) per
// the two modes in spec.md §4.3: GapFillFlag=Y advances next_expect_seq
// unconditionally to NewSeqNo; GapFillFlag=N (reset mode) forces
// next_expect_seq = NewSeqNo only if NewSeqNo is higher.
func (s *Session) handleSequenceResetLocked(msg *message.Message) {
	newSeqNoF, ok := msg.Body.Get(tag.NewSeqNo)
	if !ok {
		return
	}
	newSeqNo, err := newSeqNoF.Int()
	if err != nil {
		return
	}

	gapFill := false
	if f, ok := msg.Body.Get(tag.GapFillFlag); ok {
		gapFill, _ = f.Bool()
	}

	if gapFill {
		s.nextExpectSeq = newSeqNo
		return
	}
	if newSeqNo > s.nextExpectSeq {
		s.nextExpectSeq = newSeqNo
	}
}

// handleResendRequestLocked satisfies an inbound ResendRequest (2) by
// replaying the sent store over [begin, end] (spec.md §4.3,
// "ResendRequest received"). Contiguous runs of administrative
// messages are skipped with a single GapFill SequenceReset rather than
// replayed individually; application messages are retransmitted with
// PossDupFlag=Y and OrigSendingTime set to their original send time.
//
// end == 0 ("to infinity") resolves to the highest sequence number this
// session has ever sent. If the sent store holds nothing in range, a
// single SequenceReset to next_send_seq is emitted (spec.md §9, Open
// Questions: resolved recommendation for an empty sent store).
func (s *Session) handleResendRequestLocked(msg *message.Message) error {
	beginF, _ := msg.Body.Get(tag.BeginSeqNo)
	endF, _ := msg.Body.Get(tag.EndSeqNo)
	begin, _ := beginF.Int()
	end, _ := endF.Int()
	if end == 0 {
		end = s.nextSendSeq - 1
	}

	records, err := s.cfg.Store.Range(context.Background(), s.cfg.ConnectionName, store.Sent, begin, end)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return s.sendGapFillLocked(begin, s.nextSendSeq)
	}

	gapStart := 0
	for _, rec := range records {
		orig, _, err := s.cfg.Codec.Decode(rec.Raw)
		if err != nil {
			return err
		}
		if orig.IsAdmin() {
			if gapStart == 0 {
				gapStart = rec.SeqNum
			}
			continue
		}
		if gapStart != 0 {
			if err := s.sendGapFillLocked(gapStart, rec.SeqNum); err != nil {
				return err
			}
			gapStart = 0
		}
		if err := s.replayLocked(orig, rec.SeqNum, rec.SendingTime); err != nil {
			return err
		}
	}
	if gapStart != 0 {
		return s.sendGapFillLocked(gapStart, end+1)
	}
	return nil
}

// sendGapFillLocked emits a SequenceReset(GapFillFlag=Y) carrying
// fromSeq as its own MsgSeqNum (the first sequence number it is
// standing in for) and toSeq as NewSeqNo, without consuming
// next_send_seq: it occupies a slot already assigned to the
// administrative run it replaces (spec.md §4.3, "ResendRequest
// received ... for contiguous administrative messages").
func (s *Session) sendGapFillLocked(fromSeq, toSeq int) error {
	m := message.NewSequenceReset(s.cfg.Identity, toSeq, true, s.now())
	m.SetSeqNum(fromSeq)
	raw, err := s.cfg.Codec.Encode(m)
	if err != nil {
		return err
	}
	return s.cfg.Send(raw)
}

// replayLocked retransmits a previously sent application message
// verbatim at its original sequence number, marked as a possible
// duplicate (spec.md §4.3, "replaying original application messages
// with PossDupFlag=Y and OrigSendingTime=<original>").
func (s *Session) replayLocked(orig *message.Message, seq int, origSendingTime time.Time) error {
	orig.SetSeqNum(seq)
	orig.Header.Set(field.NewBool(tag.PossDupFlag, true))
	orig.Header.Set(field.NewTime(tag.OrigSendingTime, origSendingTime))
	raw, err := s.cfg.Codec.Encode(orig)
	if err != nil {
		return err
	}
	return s.cfg.Send(raw)
}

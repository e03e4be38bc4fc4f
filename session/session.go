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
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"fixengine/field"
	"fixengine/fixerr"
	"fixengine/message"
	"fixengine/store"
	"fixengine/tag"
	"fixengine/wire"
)

// Config carries everything a Session needs to construct (spec.md §6,
// "Configuration"). HeartBtInt is in seconds per the wire field; Grace
// is the fraction of HeartBtInt added before a TestRequest is sent
// (spec.md §9, Open Questions: "Expose as a setting").
type Config struct {
	ConnectionName  string
	Identity        message.Identity
	Username        string
	Password        string
	HeartBtInt      int
	ResetOnLogon    bool
	Grace           float64
	LogonTimeout    time.Duration
	LogoutTimeout   time.Duration
	Codec           *wire.Codec
	Store           store.Store
	Send            func([]byte) error
	Now             func() time.Time
}

// Session is the Session State Machine (spec.md §4.3). Its exported
// methods are the only entry points that touch its state; every
// read-modify-write sequence is confined to a method holding mu, which
// is the Go expression of spec.md §5's "single-writer interface"
// requirement.
type Session struct {
	cfg Config
	now func() time.Time

	mu                     sync.Mutex
	state                  State
	nextSendSeq            int
	nextExpectSeq          int
	sid                    string
	testRequestOutstanding bool
	testReqID              string
	resendBuffer           map[int]*message.Message
	cause                  error

	heartbeatTimer   *time.Timer
	testRequestTimer *time.Timer

	// OnFatal, if set, is invoked once (outside mu) the first time a
	// background timer (heartbeat or test-request liveness) drives the
	// session to Errored, mirroring pipeline.Pipeline's OnFatal so a
	// caller blocked in a transport read can be unblocked immediately
	// rather than waiting for the next inbound byte.
	OnFatal func(error)
}

// New constructs a Session, resuming sequence numbers from the message
// store and sid file unless cfg.ResetOnLogon forces a fresh start
// (spec.md §4.3, "Session identity").
func New(cfg Config) (*Session, error) {
	if cfg.HeartBtInt <= 0 {
		cfg.HeartBtInt = 30
	}
	if cfg.Grace <= 0 {
		cfg.Grace = 0.2
	}
	if cfg.LogonTimeout <= 0 {
		cfg.LogonTimeout = 10 * time.Second
	}
	if cfg.LogoutTimeout <= 0 {
		cfg.LogoutTimeout = 2 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Identity.BeginString == "" {
		cfg.Identity.BeginString = "FIX.4.4"
	}

	sid, resumed, err := loadOrCreateSid(cfg.ConnectionName, cfg.ResetOnLogon)
	if err != nil {
		return nil, err
	}

	s := &Session{
		cfg:           cfg,
		now:           cfg.Now,
		state:         Disconnected,
		sid:           sid,
		resendBuffer:  make(map[int]*message.Message),
		nextSendSeq:   1,
		nextExpectSeq: 1,
	}

	if resumed && !cfg.ResetOnLogon {
		ctx := context.Background()
		if sendSeq, err := cfg.Store.CurrentSeq(ctx, cfg.ConnectionName, store.Sent); err == nil {
			s.nextSendSeq = sendSeq
		}
		if recvSeq, err := cfg.Store.CurrentSeq(ctx, cfg.ConnectionName, store.Received); err == nil {
			s.nextExpectSeq = recvSeq
		}
	}

	return s, nil
}

// State returns the session's current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SeqNums returns the next outbound and expected inbound sequence
// numbers, for status reporting (spec.md §6.7, "status").
func (s *Session) SeqNums() (nextSend, nextExpect int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextSendSeq, s.nextExpectSeq
}

// Identity returns the session's BeginString/SenderCompID/TargetCompID
// triple, letting an external caller (e.g. the operator console) build
// admin messages such as an operator-initiated ResendRequest.
func (s *Session) Identity() message.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Identity
}

// Cause returns the error that forced the session to Errored, if any
// (spec.md §7, "Propagation": "the supervisor reads the cause to set
// the exit code").
func (s *Session) Cause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cause
}

// Connect transitions Disconnected -> Connecting -> LogonSent, sending
// the initial Logon (spec.md §4.3, "Disconnected -> Connecting",
// "Connecting -> LogonSent").
func (s *Session) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Disconnected {
		return fmt.Errorf("session: Connect called from state %s", s.state)
	}
	s.state = Connecting

	logon := message.NewLogon(s.cfg.Identity, message.LogonParams{
		HeartBtInt:      s.cfg.HeartBtInt,
		ResetSeqNumFlag: s.cfg.ResetOnLogon,
		Username:        s.cfg.Username,
		Password:        s.cfg.Password,
	}, s.now())

	if err := s.sendLocked(logon); err != nil {
		s.state = Errored
		s.cause = err
		return err
	}
	s.state = LogonSent
	return nil
}

// HandleInbound decodes and processes one inbound wire message,
// applying the sequence-number policy of spec.md §4.3 before
// dispatching to the appropriate administrative handler or returning
// the messages that should be delivered to the rest of the pipeline,
// in sequence-number order.
//
// A gap-filling inbound message can unblock previously buffered
// messages in the same call (spec.md §8, "Gap closure": "every
// buffered message with seq in [b+1, b+k] has been delivered in
// order"), so the return value is a slice rather than a single message.
// Administrative messages, duplicates, and buffered-but-not-yet-ready
// gaps yield an empty slice.
func (s *Session) HandleInbound(raw []byte) ([]*message.Message, error) {
	msg, _, err := s.cfg.Codec.Decode(raw)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seq, ok := msg.SeqNum()
	if !ok {
		return nil, fmt.Errorf("%w: inbound message has no MsgSeqNum", fixerr.ErrInvalidTag)
	}

	if err := s.recordReceivedLocked(msg, seq); err != nil {
		return nil, err
	}

	switch {
	case seq == s.nextExpectSeq:
		return s.acceptLocked(msg)
	case seq < s.nextExpectSeq:
		if msg.PossDupFlag() {
			return nil, nil // duplicate, discarded silently (spec.md §8 scenario 3)
		}
		s.state = Errored
		s.cause = &fixerr.SequenceError{Expected: s.nextExpectSeq, Received: seq, Fatal: true, Err: fixerr.ErrSequenceTooLow}
		_ = s.sendLocked(message.NewLogout(s.cfg.Identity, "fatal sequence mismatch", s.now()))
		s.stopHeartbeatLocked()
		return nil, s.cause
	default:
		return nil, s.handleGapLocked(msg, seq)
	}
}

// recordReceivedLocked persists the raw inbound bytes to the message
// store, keyed by the declared sequence number regardless of policy
// outcome, so a future resend of the peer's own stream (not modeled
// here, but kept symmetric with the sent side) has a record to use.
func (s *Session) recordReceivedLocked(msg *message.Message, seq int) error {
	raw, err := s.cfg.Codec.Encode(msg)
	if err != nil {
		return err
	}
	sendingTime, _ := msg.SendingTime()
	return s.cfg.Store.Put(context.Background(), s.cfg.ConnectionName, store.Received, seq, raw, sendingTime)
}

// acceptLocked delivers a message whose sequence number exactly matches
// next_expect_seq, advancing the counter, routing administrative types
// to their handlers, and then draining any subsequent messages the gap
// just closed made contiguous (spec.md §8, "Gap closure").
func (s *Session) acceptLocked(msg *message.Message) ([]*message.Message, error) {
	s.nextExpectSeq++
	s.resetInboundTimersLocked()

	var delivered []*message.Message
	if app, err := s.dispatchAdminLocked(msg); err != nil {
		return nil, err
	} else if app != nil {
		delivered = append(delivered, app)
	}

	delivered = append(delivered, s.drainResendBufferLocked()...)
	return delivered, nil
}

// dispatchAdminLocked handles the standard administrative message
// types in place and returns the message unchanged for application-
// level delivery otherwise (spec.md §4.5, "Dispatcher").
func (s *Session) dispatchAdminLocked(msg *message.Message) (*message.Message, error) {
	mt, _ := msg.MsgType()
	switch mt {
	case message.TypeLogon:
		resetFlag := false
		if f, ok := msg.Body.Get(tag.ResetSeqNumFlag); ok {
			resetFlag, _ = f.Bool()
		}
		if resetFlag && s.state == LoggedIn {
			// Mid-session ResetSeqNumFlag=Y Logon: discard buffered
			// resend state and any pending ResendRequest (spec.md §9,
			// Open Questions).
			s.resendBuffer = make(map[int]*message.Message)
			s.nextExpectSeq = 1
		}
		if s.state == LogonSent {
			s.state = LoggedIn
			s.startHeartbeatLocked()
		}
		return nil, nil
	case message.TypeLogout:
		s.stopHeartbeatLocked()
		s.state = Disconnected
		return nil, nil
	case message.TypeHeartbeat:
		s.handleHeartbeatLocked(msg)
		return nil, nil
	case message.TypeTestRequest:
		s.handleTestRequestLocked(msg)
		return nil, nil
	case message.TypeResendRequest:
		return nil, s.handleResendRequestLocked(msg)
	case message.TypeSequenceReset:
		s.handleSequenceResetLocked(msg)
		return nil, nil
	case message.TypeReject:
		return nil, nil
	default:
		return msg, nil
	}
}

// handleGapLocked buffers a higher-numbered message and requests the
// missing range, entering the Resending state (spec.md §4.3, "LoggedIn
// -> Resending").
func (s *Session) handleGapLocked(msg *message.Message, seq int) error {
	s.resendBuffer[seq] = msg
	if s.state == LoggedIn {
		s.state = Resending
		begin := s.nextExpectSeq
		end := seq - 1
		req := message.NewResendRequest(s.cfg.Identity, begin, end, s.now())
		if err := s.sendLocked(req); err != nil {
			return err
		}
	}
	return nil
}

// drainResendBufferLocked delivers buffered messages once the gap is
// filled, advancing next_expect_seq one entry at a time and returning
// to LoggedIn once the buffer empties (spec.md §4.3, "Resending ->
// LoggedIn").
func (s *Session) drainResendBufferLocked() []*message.Message {
	var delivered []*message.Message
	for {
		msg, ok := s.resendBuffer[s.nextExpectSeq]
		if !ok {
			break
		}
		delete(s.resendBuffer, s.nextExpectSeq)
		s.nextExpectSeq++

		if app, err := s.dispatchAdminLocked(msg); err == nil && app != nil {
			delivered = append(delivered, app)
		}
	}
	if len(s.resendBuffer) == 0 && s.state == Resending {
		s.state = LoggedIn
	}
	return delivered
}

// sendLocked assigns the next outbound sequence number, persists the
// message, encodes it, and hands it to the transport (spec.md §4.3,
// "Every outbound application-level message carries
// MsgSeqNum = next_send_seq++").
func (s *Session) sendLocked(msg *message.Message) error {
	seq := s.nextSendSeq
	msg.SetSeqNum(seq)

	raw, err := s.cfg.Codec.Encode(msg)
	if err != nil {
		return err
	}

	sendingTime, _ := msg.SendingTime()
	if err := s.cfg.Store.Put(context.Background(), s.cfg.ConnectionName, store.Sent, seq, raw, sendingTime); err != nil {
		return err
	}

	s.nextSendSeq++
	s.resetOutboundTimerLocked()
	return s.cfg.Send(raw)
}

// SendApp stamps the session-managed header fields (BeginString,
// SenderCompID, TargetCompID, SendingTime), assigns a sequence number
// to and transmits an application message, gated on LoggedIn (spec.md
// §5, "all other outbound traffic is held until LoggedIn").
func (s *Session) SendApp(msg *message.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != LoggedIn {
		return fmt.Errorf("session: cannot send application message from state %s", s.state)
	}
	msg.Header.Set(field.New(tag.BeginString, s.cfg.Identity.BeginString))
	msg.Header.Set(field.New(tag.SenderCompID, s.cfg.Identity.SenderCompID))
	msg.Header.Set(field.New(tag.TargetCompID, s.cfg.Identity.TargetCompID))
	msg.Header.Set(field.NewTime(tag.SendingTime, s.now()))
	return s.sendLocked(msg)
}

// Disconnect transitions toward LogoutSent and sends a Logout (spec.md
// §4.3, "LoggedIn -> LogoutSent").
func (s *Session) Disconnect(reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != LoggedIn && s.state != Resending {
		return fmt.Errorf("session: Disconnect called from state %s", s.state)
	}
	if err := s.sendLocked(message.NewLogout(s.cfg.Identity, reason, s.now())); err != nil {
		return err
	}
	s.state = LogoutSent
	return nil
}

// newTestReqID generates a unique TestReqID for a TestRequest (spec.md
// §4.3, "Heartbeats").
func newTestReqID() string {
	return uuid.NewString()
}

// Stop disarms the heartbeat timers, invoked by the pipeline's
// shutdown sequence (spec.md §5, "stop() on the pipeline cancels all
// outstanding timers ... concurrently").
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopHeartbeatLocked()
}

// Reset discards sequence numbers, the resend buffer, and any pending
// ResendRequest and rotates to a fresh sid, mirroring a fresh
// ResetSeqNumFlag=Y Logon mid-session (spec.md §9, Open Questions:
// "recommended policy is to discard buffered messages and the pending
// request"; spec.md §4.3, "Session identity").
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sid, _, err := loadOrCreateSid(s.cfg.ConnectionName, true)
	if err != nil {
		return err
	}
	s.sid = sid
	s.nextSendSeq = 1
	s.nextExpectSeq = 1
	s.resendBuffer = make(map[int]*message.Message)
	s.testRequestOutstanding = false

	if err := s.cfg.Store.Reset(context.Background(), s.cfg.ConnectionName, store.Sent); err != nil {
		return err
	}
	return s.cfg.Store.Reset(context.Background(), s.cfg.ConnectionName, store.Received)
}

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

// Package engine is the glue that wires the Wire Codec, Session State
// Machine, Pipeline, and Transport into one running FIX session
// (spec.md §2, "Data flow"). It owns the transport read loop; spec.md
// §5 assigns read-loop cancellation to "the transport owner, not the
// pipeline, to avoid cancelling the surrounding supervisor", which this
// package is.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"fixengine/fixerr"
	"fixengine/message"
	"fixengine/pipeline"
	"fixengine/session"
	"fixengine/transport"
	"fixengine/wire"
)

// Exit codes (spec.md §6, "Exit codes").
const (
	ExitNormal          = 0
	ExitFatalProtocol   = 1
	ExitTransportFailed = 2
	ExitConfigError     = 3
)

// Engine runs one FIX session: its transport read loop, the session
// state machine, and the processor pipeline.
type Engine struct {
	Transport transport.Transport
	Codec     *wire.Codec
	Session   *session.Session
	Pipeline  *pipeline.Pipeline

	// Deliver receives application-level messages the pipeline could
	// not absorb - the terminal sink of spec.md §2's data flow
	// ("Pipeline (bottom-up) -> terminal sink"). Typically set by the
	// caller to forward into user strategy code.
	Deliver func(*message.Message)

	// mu guards exitCode/fatal: they are read from Run's goroutine but
	// can be written from a session heartbeat timer goroutine via
	// sess.OnFatal, so a plain read/write pair would race.
	mu       sync.Mutex
	exitCode int
	fatal    error
}

// setFatal records cause and code the first time either is reported,
// from whichever goroutine observes the failure first (Run's own read
// loop or a session/pipeline OnFatal callback).
func (e *Engine) setFatal(cause error, code int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.fatal != nil {
		return
	}
	e.fatal = cause
	e.exitCode = code
}

func (e *Engine) getFatal() (error, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fatal, e.exitCode
}

func (e *Engine) setExitCode(code int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.fatal == nil {
		e.exitCode = code
	}
}

func (e *Engine) getExitCode() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.exitCode
}

// New wires an Engine from its already-constructed components. The
// caller must have set the session's Config.Send closure to t.Write so
// protocol-internal messages (Logon, Logout, Heartbeat, TestRequest,
// SequenceReset, ResendRequest replies) bypass the pipeline and go
// straight to the wire, matching spec.md §2: the Session, not the
// Pipeline, owns those message types.
func New(t transport.Transport, codec *wire.Codec, sess *session.Session, pl *pipeline.Pipeline) *Engine {
	e := &Engine{Transport: t, Codec: codec, Session: sess, Pipeline: pl}
	pl.OnFatal = func(err error) {
		e.setFatal(err, ExitFatalProtocol)
	}
	sess.OnFatal = func(err error) {
		e.setFatal(err, exitCodeFor(err))
		_ = t.Close() // unblock a pending Transport.Read so Run observes the failure promptly
	}
	return e
}

// exitCodeFor maps a session fatal cause to the process exit code
// spec.md §6 defines. A heartbeat timeout is a transport liveness
// failure, not a protocol violation (spec.md §8, scenario 5: "heartbeat
// timeout -> exit code 2"), so it gets ExitTransportFailed rather than
// the ExitFatalProtocol every other Errored cause maps to.
func exitCodeFor(err error) int {
	if errors.Is(err, fixerr.ErrHeartbeatTimeout) {
		return ExitTransportFailed
	}
	return ExitFatalProtocol
}

// Start brings the pipeline up and opens the session (spec.md §4.3,
// "Disconnected -> Connecting -> LogonSent").
func (e *Engine) Start(ctx context.Context) error {
	if err := e.Pipeline.Start(ctx); err != nil {
		return err
	}
	return e.Session.Connect()
}

// Send is the outbound-inject entry point (spec.md §6, "REST admin
// (external)": "send(message) which places a user-built message at the
// top of the outbound pipeline"). The message traverses the pipeline
// top-down; if no processor absorbs it, the session assigns it a
// sequence number and transmits it.
func (e *Engine) Send(ctx context.Context, msg *message.Message) error {
	out, err := e.Pipeline.Send(ctx, msg)
	if err != nil {
		return err
	}
	if out == nil {
		return nil // held by a processor (e.g. AuthenticationApp pre-LoggedIn)
	}
	return e.Session.SendApp(out)
}

// Run drives the transport read loop until the transport closes or a
// fatal error occurs, returning the process exit code spec.md §6
// defines. Cancelling ctx stops the loop at the next read boundary.
func (e *Engine) Run(ctx context.Context) int {
	buf := make([]byte, 0, 4096)
	chunk := make([]byte, 4096)

	for {
		select {
		case <-ctx.Done():
			_ = e.shutdown(context.Background())
			return e.getExitCode()
		default:
		}

		if cause, code := e.getFatal(); cause != nil {
			// A background timer (session heartbeat liveness or pipeline
			// OnFatal) already recorded the cause and exit code; nothing
			// left to read.
			_ = e.shutdown(context.Background())
			return code
		}

		n, err := e.Transport.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if err != nil {
			st := e.Session.State()
			if st == session.LogoutSent || st == session.Disconnected {
				e.setExitCode(ExitNormal)
			} else {
				e.setExitCode(ExitTransportFailed)
			}
			_ = e.shutdown(context.Background())
			return e.getExitCode()
		}

		buf = e.drain(buf)

		if e.Session.State() == session.Errored {
			e.setFatal(e.Session.Cause(), exitCodeFor(e.Session.Cause()))
			_ = e.shutdown(context.Background())
			return e.getExitCode()
		}
		if st := e.Session.State(); st == session.Disconnected && e.getExitCode() == 0 {
			_ = e.shutdown(context.Background())
			return ExitNormal
		}
	}
}

// drain consumes as many complete frames as buf currently holds,
// resynchronizing past framing errors per spec.md §4.1 ("the codec
// does not advance; the session must resynchronize by scanning forward
// to the next 8= marker") and delivering accepted messages to the
// pipeline.
func (e *Engine) drain(buf []byte) []byte {
	for {
		msg, n, err := e.Codec.Decode(buf)
		switch {
		case err == nil:
			_ = msg
			raw := make([]byte, n)
			copy(raw, buf[:n])
			buf = buf[n:]
			e.handleFrame(raw)

		case errors.Is(err, fixerr.ErrNeedMoreData):
			return buf

		case errors.Is(err, fixerr.ErrBodyLengthMismatch), errors.Is(err, fixerr.ErrCheckSumMismatch):
			log.Printf("engine: framing error, resynchronizing: %v", err)
			next := wire.ScanNextMarker(buf, 1)
			if next < 0 {
				return nil
			}
			buf = buf[next:]

		default:
			log.Printf("engine: malformed frame, resynchronizing: %v", err)
			next := wire.ScanNextMarker(buf, 1)
			if next < 0 {
				return nil
			}
			buf = buf[next:]
		}
	}
}

// handleFrame hands one already-framed raw message to the session for
// sequence-number policy and administrative dispatch, then delivers
// whatever application-level messages come back to the pipeline
// (spec.md §2, "Inbound: bytes -> Wire Codec -> Message -> Pipeline
// (bottom-up) -> terminal sink").
func (e *Engine) handleFrame(raw []byte) {
	delivered, err := e.Session.HandleInbound(raw)
	if err != nil {
		log.Printf("engine: session rejected inbound frame: %v", err)
		return
	}
	for _, m := range delivered {
		out, err := e.Pipeline.Deliver(context.Background(), m)
		if err != nil {
			log.Printf("engine: pipeline halted on inbound message: %v", err)
			return
		}
		if out != nil && e.Deliver != nil {
			e.Deliver(out)
		}
	}
}

// shutdown stops the pipeline and closes the transport (spec.md §5,
// "stop() on the pipeline ... then closes the transport").
func (e *Engine) shutdown(ctx context.Context) error {
	e.Session.Stop()
	stopErr := e.Pipeline.Stop(ctx)
	closeErr := e.Transport.Close()
	if stopErr != nil {
		return fmt.Errorf("engine: shutdown: %w", stopErr)
	}
	return closeErr
}

// ExitCode returns the process exit code for the run so far (spec.md
// §6, "Exit codes").
func (e *Engine) ExitCode() int {
	return e.getExitCode()
}

// Fatal returns the error that caused a non-zero exit code, if any.
func (e *Engine) Fatal() error {
	if cause, _ := e.getFatal(); cause != nil {
		return cause
	}
	return e.Session.Cause()
}

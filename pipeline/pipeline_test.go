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

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"fixengine/field"
	"fixengine/message"
	"fixengine/session"
	"fixengine/store"
	"fixengine/tag"
	"fixengine/wire"
)

// recorder is a Processor that appends its name to a shared,
// mutex-guarded log every time a hook runs, so tests can assert call
// order across the whole chain. failReceive/failSend, if set, make
// OnReceive/OnSend return an error for that one direction.
type recorder struct {
	Base
	log        *callLog
	failReceive bool
	failSend    bool
	stopCount   *int32mu
}

type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) record(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, s)
}

func (l *callLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.calls))
	copy(out, l.calls)
	return out
}

type int32mu struct {
	mu sync.Mutex
	n  int
}

func (c *int32mu) inc() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
}

func (c *int32mu) get() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func newRecorder(name string, log *callLog) *recorder {
	return &recorder{Base: Base{ProcName: name}, log: log}
}

func (r *recorder) OnReceive(ctx context.Context, msg *message.Message) (*message.Message, error) {
	r.log.record(r.Name() + ".OnReceive")
	if r.failReceive {
		return nil, fmt.Errorf("recorder %s: boom", r.Name())
	}
	return r.Base.OnReceive(ctx, msg)
}

func (r *recorder) OnSend(ctx context.Context, msg *message.Message) (*message.Message, error) {
	r.log.record(r.Name() + ".OnSend")
	if r.failSend {
		return nil, fmt.Errorf("recorder %s: boom", r.Name())
	}
	return r.Base.OnSend(ctx, msg)
}

func (r *recorder) Stop(ctx context.Context) error {
	if r.stopCount != nil {
		r.stopCount.inc()
	}
	return r.Base.Stop(ctx)
}

func testMessage(msgType string) *message.Message {
	m := message.New()
	m.Header.Set(field.New(tag.MsgType, msgType))
	return m
}

// --- spec.md §4.4, Ordering ---

func TestPipeline_Deliver_TraversesBottomToTop(t *testing.T) {
	log := &callLog{}
	p0 := newRecorder("p0", log)
	p1 := newRecorder("p1", log)
	p2 := newRecorder("p2", log)
	pl := New([]Processor{p0, p1, p2})

	if _, err := pl.Deliver(context.Background(), testMessage("D")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"p2.OnReceive", "p1.OnReceive", "p0.OnReceive"}
	got := log.snapshot()
	if len(got) != len(want) {
		t.Fatalf("expected %d calls, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("call %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestPipeline_Send_TraversesTopToBottom(t *testing.T) {
	log := &callLog{}
	p0 := newRecorder("p0", log)
	p1 := newRecorder("p1", log)
	p2 := newRecorder("p2", log)
	pl := New([]Processor{p0, p1, p2})

	if _, err := pl.Send(context.Background(), testMessage("D")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"p0.OnSend", "p1.OnSend", "p2.OnSend"}
	got := log.snapshot()
	if len(got) != len(want) {
		t.Fatalf("expected %d calls, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("call %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestPipeline_Deliver_AbsorbedMessageStopsPropagationEarly(t *testing.T) {
	log := &callLog{}
	p0 := newRecorder("p0", log)
	p1 := newRecorder("p1", log)
	p2 := newRecorder("p2", log)
	// p1 absorbs the message (returns nil, nil) via a no-op override.
	absorbP1 := &absorbingProcessor{recorder: *p1}
	pl := New([]Processor{p0, absorbP1, p2})

	out, err := pl.Deliver(context.Background(), testMessage("D"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != nil {
		t.Errorf("expected nil output once a middle processor absorbs the message")
	}

	got := log.snapshot()
	if len(got) != 2 {
		t.Fatalf("expected p2 and p1 to run but not p0, got %v", got)
	}
	if got[0] != "p2.OnReceive" || got[1] != "p1.OnReceive" {
		t.Errorf("unexpected call order: %v", got)
	}
}

type absorbingProcessor struct {
	recorder
}

func (a *absorbingProcessor) OnReceive(ctx context.Context, msg *message.Message) (*message.Message, error) {
	a.log.record(a.Name() + ".OnReceive")
	return nil, nil
}

// --- spec.md §4.4, Error handling ---

func TestPipeline_Deliver_ProcessorErrorHaltsAndSignalsErrored(t *testing.T) {
	log := &callLog{}
	stops := &int32mu{}
	p0 := newRecorder("p0", log)
	p0.stopCount = stops
	p1 := newRecorder("p1", log)
	p1.stopCount = stops
	p1.failReceive = true
	p2 := newRecorder("p2", log)
	p2.stopCount = stops

	pl := New([]Processor{p0, p1, p2})
	var fatalErr error
	pl.OnFatal = func(err error) { fatalErr = err }

	_, err := pl.Deliver(context.Background(), testMessage("D"))
	if err == nil {
		t.Fatalf("expected an error from the failing processor")
	}
	if pl.State() != Errored {
		t.Fatalf("expected pipeline state Errored, got %v", pl.State())
	}
	if !errors.Is(pl.Cause(), err) && pl.Cause().Error() != err.Error() {
		t.Errorf("expected Cause() to reflect the propagated error, got %v vs %v", pl.Cause(), err)
	}
	if fatalErr == nil {
		t.Errorf("expected OnFatal to have been invoked")
	}
	if stops.get() != 3 {
		t.Errorf("expected every processor's Stop to run once pipeline.fail Stops the chain, got %d", stops.get())
	}

	got := log.snapshot()
	if len(got) != 2 || got[0] != "p2.OnReceive" || got[1] != "p1.OnReceive" {
		t.Errorf("expected p2 then the failing p1 to run and p0 never reached, got %v", got)
	}
}

func TestPipeline_Send_ProcessorErrorHaltsAndSignalsErrored(t *testing.T) {
	log := &callLog{}
	p0 := newRecorder("p0", log)
	p1 := newRecorder("p1", log)
	p1.failSend = true
	p2 := newRecorder("p2", log)

	pl := New([]Processor{p0, p1, p2})
	_, err := pl.Send(context.Background(), testMessage("D"))
	if err == nil {
		t.Fatalf("expected an error from the failing processor")
	}
	if pl.State() != Errored {
		t.Fatalf("expected pipeline state Errored, got %v", pl.State())
	}

	got := log.snapshot()
	if len(got) != 2 || got[0] != "p0.OnSend" || got[1] != "p1.OnSend" {
		t.Errorf("expected p0 then the failing p1 to run and p2 never reached, got %v", got)
	}
}

func TestPipeline_StartStop_TransitionsRunningThenStopped(t *testing.T) {
	log := &callLog{}
	p0 := newRecorder("p0", log)
	p1 := newRecorder("p1", log)
	pl := New([]Processor{p0, p1})

	if err := pl.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pl.State() != Running {
		t.Fatalf("expected Running after Start, got %v", pl.State())
	}

	if err := pl.Stop(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pl.State() != Stopped {
		t.Fatalf("expected Stopped after Stop, got %v", pl.State())
	}
}

// --- spec.md §4.5, Dispatcher ---

func TestDispatcher_RoutesRegisteredMsgTypeToHandler(t *testing.T) {
	log := &callLog{}
	base := newRecorder("base", log)

	handlerCalled := false
	d := NewDispatcher(base, map[string]Handler{
		"A": func(ctx context.Context, msg *message.Message) (*message.Message, error) {
			handlerCalled = true
			return msg, nil
		},
	}, nil)

	if _, err := d.OnReceive(context.Background(), testMessage("A")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !handlerCalled {
		t.Errorf("expected the registered handler for MsgType A to run")
	}
	if len(log.snapshot()) != 0 {
		t.Errorf("expected the wrapped processor's OnReceive not to run when a handler matches")
	}
}

func TestDispatcher_FallsThroughToWrappedProcessorForUnregisteredMsgType(t *testing.T) {
	log := &callLog{}
	base := newRecorder("base", log)

	d := NewDispatcher(base, map[string]Handler{
		"A": func(ctx context.Context, msg *message.Message) (*message.Message, error) {
			t.Fatalf("handler for A should not run for an unrelated MsgType")
			return msg, nil
		},
	}, nil)

	if _, err := d.OnReceive(context.Background(), testMessage("D")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := log.snapshot()
	if len(got) != 1 || got[0] != "base.OnReceive" {
		t.Errorf("expected fallthrough to base.OnReceive, got %v", got)
	}
}

// --- spec.md §5, outbound gating ---

func TestAuthenticationApp_StampsCredentialsOntoOutboundLogon(t *testing.T) {
	a := NewAuthenticationApp("user1", "pass1")
	logon := testMessage(message.TypeLogon)

	out, err := a.OnSend(context.Background(), logon)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out == nil {
		t.Fatalf("expected the Logon to pass through, not be held")
	}
	u, ok := out.Body.Get(tag.Username)
	if !ok || u.String() != "user1" {
		t.Errorf("expected Username=user1 stamped onto outbound Logon, got %v ok=%v", u, ok)
	}
	p, ok := out.Body.Get(tag.Password)
	if !ok || p.String() != "pass1" {
		t.Errorf("expected Password=pass1 stamped onto outbound Logon, got %v ok=%v", p, ok)
	}
}

func TestAuthenticationApp_HoldsNonLogonTrafficUntilLoggedIn(t *testing.T) {
	a := NewAuthenticationApp("user1", "pass1")
	a.Session = newDisconnectedSession(t)

	out, err := a.OnSend(context.Background(), testMessage("D"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != nil {
		t.Fatalf("expected non-Logon traffic to be held before LoggedIn")
	}
}

func TestAuthenticationApp_NotReadyHoldsTheLogonItself(t *testing.T) {
	a := NewAuthenticationApp("user1", "pass1")
	a.SetReady(false)

	out, err := a.OnSend(context.Background(), testMessage(message.TypeLogon))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != nil {
		t.Fatalf("expected the outbound Logon itself to be held while not ready")
	}
}

// newDisconnectedSession builds a minimal real *session.Session sitting
// in Disconnected (never LoggedIn), to exercise AuthenticationApp's
// LoggedIn gate against the actual type it polls rather than a nil
// Session (which AuthenticationApp treats as "not gated yet" - a
// different case from "gated but not yet logged in").
func newDisconnectedSession(t *testing.T) *session.Session {
	t.Helper()

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	sess, err := session.New(session.Config{
		ConnectionName: "pipeline-auth-gate",
		Identity:       message.Identity{BeginString: "FIX.4.4", SenderCompID: "CLIENT", TargetCompID: "SERVER"},
		HeartBtInt:     30,
		Codec:          wire.New(false),
		Store:          store.NewMemoryStore(),
		Send:           func([]byte) error { return nil },
		Now:            func() time.Time { return time.Now() },
	})
	if err != nil {
		t.Fatalf("unexpected error constructing session: %v", err)
	}
	return sess
}

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

// Package pipeline is the bidirectional processor chain of spec.md
// §4.4: a linear, ordered list of Processors that every inbound and
// outbound message traverses. It is grounded on the teacher's
// quickfix.Application contract (fixclient/fixapp.go: OnCreate,
// OnLogon, OnLogout, FromAdmin, ToAdmin, FromApp, ToApp) - generalized
// from a single hardcoded market-data handler tied to one third-party
// session type into an ordered chain of independent, composable
// Processors, as spec.md §4.4 and §4.5 describe.
package pipeline

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"fixengine/message"
)

// Direction distinguishes which way a message is traversing the chain.
type Direction int

const (
	Inbound Direction = iota
	Outbound
)

// Processor is one stage of the pipeline (spec.md §4.4, "Processor
// contract"). P0 (index 0) is the top, closest to the application;
// Pn-1 (the last index) is the bottom, closest to the wire.
type Processor interface {
	// Name identifies the processor for logging and configuration
	// (spec.md §6, "pipeline_apps (ordered list of processor
	// identifiers)").
	Name() string
	// Start is invoked bottom-up when the pipeline starts.
	Start(ctx context.Context) error
	// Stop is invoked top-down (and concurrently across processors,
	// per spec.md §5) when the pipeline shuts down.
	Stop(ctx context.Context) error
	// OnReceive handles one inbound message. Returning (nil, nil) halts
	// further propagation toward the application; returning a non-nil
	// message forwards it to the next processor up the chain.
	OnReceive(ctx context.Context, msg *message.Message) (*message.Message, error)
	// OnSend is the symmetric outbound hook.
	OnSend(ctx context.Context, msg *message.Message) (*message.Message, error)
}

// Base is an embeddable no-op Processor implementation: Start/Stop
// succeed trivially and OnReceive/OnSend pass the message through
// unchanged, mirroring the teacher's FixApp default no-op
// implementations of FromAdmin/ToApp (fixclient/fixapp.go).
// Concrete processors embed Base and override only what they need.
type Base struct {
	ProcName string
}

func (b Base) Name() string { return b.ProcName }

func (b Base) Start(context.Context) error { return nil }

func (b Base) Stop(context.Context) error { return nil }

func (b Base) OnReceive(_ context.Context, msg *message.Message) (*message.Message, error) {
	return msg, nil
}

func (b Base) OnSend(_ context.Context, msg *message.Message) (*message.Message, error) {
	return msg, nil
}

// State is the pipeline's lifecycle state.
type State int

const (
	Stopped State = iota
	Running
	Errored
)

// Pipeline is the ordered processor chain (spec.md §4.4, "Structure").
// Inbound and outbound traversal each hold a dedicated mutex so the two
// directions make independent progress, while within a direction
// messages are strictly serialized (spec.md §4.4, "Ordering";
// spec.md §5, "Ordering guarantees").
type Pipeline struct {
	apps []Processor

	stateMu sync.Mutex
	state   State
	cause   error

	inboundMu  sync.Mutex
	outboundMu sync.Mutex

	// OnFatal, if set, is invoked once (outside any pipeline lock) the
	// first time either direction halts due to a processor error
	// (spec.md §4.4, "Error handling").
	OnFatal func(error)
}

// New constructs a Pipeline from an ordered list of processors, P0
// first (closest to the application) and Pn-1 last (closest to the
// wire).
func New(apps []Processor) *Pipeline {
	return &Pipeline{apps: apps, state: Stopped}
}

// Apps returns the processors in top-to-bottom order.
func (p *Pipeline) Apps() []Processor {
	out := make([]Processor, len(p.apps))
	copy(out, p.apps)
	return out
}

// State returns the pipeline's current lifecycle state.
func (p *Pipeline) State() State {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()
	return p.state
}

// Cause returns the error that halted the pipeline, if any.
func (p *Pipeline) Cause() error {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()
	return p.cause
}

// Start brings up every processor bottom-up (spec.md §4.4,
// "Processor contract: start bottom-up"). If any Start call fails, the
// processors already started are stopped again before the error is
// returned.
func (p *Pipeline) Start(ctx context.Context) error {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()

	for i := len(p.apps) - 1; i >= 0; i-- {
		if err := p.apps[i].Start(ctx); err != nil {
			for j := i + 1; j < len(p.apps); j++ {
				_ = p.apps[j].Stop(ctx)
			}
			return fmt.Errorf("pipeline: start %s: %w", p.apps[i].Name(), err)
		}
	}
	p.state = Running
	return nil
}

// Stop tears down every processor concurrently and top-down in intent
// (spec.md §5, "Cancellation and timeouts": "cancels all outstanding
// timers and reader tasks concurrently, waits for each processor's
// stop() to return ... all errors are collected and reported"). A
// misbehaving processor's Stop error never prevents the others from
// being asked to stop, since errgroup.Group here only joins results,
// it does not cancel siblings on first error.
func (p *Pipeline) Stop(ctx context.Context) error {
	p.stateMu.Lock()
	if p.state != Errored {
		p.state = Stopped
	}
	p.stateMu.Unlock()

	var g errgroup.Group
	for _, app := range p.apps {
		app := app
		g.Go(func() error {
			if err := app.Stop(ctx); err != nil {
				return fmt.Errorf("pipeline: stop %s: %w", app.Name(), err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Deliver traverses an inbound message from the bottom processor to
// the top (spec.md §4.4: "Inbound messages traverse Pn-1 -> P0").
// Returning (nil, nil) means some processor absorbed the message;
// there is nothing further to deliver to the terminal sink.
func (p *Pipeline) Deliver(ctx context.Context, msg *message.Message) (*message.Message, error) {
	p.inboundMu.Lock()
	defer p.inboundMu.Unlock()

	cur := msg
	for i := len(p.apps) - 1; i >= 0 && cur != nil; i-- {
		next, err := p.apps[i].OnReceive(ctx, cur)
		if err != nil {
			p.fail(ctx, fmt.Errorf("pipeline: %s.OnReceive: %w", p.apps[i].Name(), err))
			return nil, err
		}
		cur = next
	}
	return cur, nil
}

// Send traverses an outbound message from the top processor to the
// bottom (spec.md §4.4: "Outbound messages traverse P0 -> Pn-1").
func (p *Pipeline) Send(ctx context.Context, msg *message.Message) (*message.Message, error) {
	p.outboundMu.Lock()
	defer p.outboundMu.Unlock()

	cur := msg
	for i := 0; i < len(p.apps) && cur != nil; i++ {
		next, err := p.apps[i].OnSend(ctx, cur)
		if err != nil {
			p.fail(ctx, fmt.Errorf("pipeline: %s.OnSend: %w", p.apps[i].Name(), err))
			return nil, err
		}
		cur = next
	}
	return cur, nil
}

// fail halts further delivery, stops every processor top-down, and
// signals Errored (spec.md §4.4, "Error handling": "the pipeline halts
// all further message delivery, invokes stop() top-down, and signals
// Errored").
func (p *Pipeline) fail(ctx context.Context, err error) {
	p.stateMu.Lock()
	if p.state == Errored {
		p.stateMu.Unlock()
		return
	}
	p.state = Errored
	p.cause = err
	p.stateMu.Unlock()

	_ = p.Stop(ctx)
	if p.OnFatal != nil {
		p.OnFatal(err)
	}
}

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

	"fixengine/message"
)

// Handler processes one message of a specific MsgType (spec.md §4.5).
type Handler func(ctx context.Context, msg *message.Message) (*message.Message, error)

// Dispatcher wraps a Processor with per-MsgType routing (spec.md §4.5):
// when a message arrives, the handler registered for its MsgType runs
// instead of the wrapped processor's OnReceive/OnSend. Registration is
// static, built once at construction via NewDispatcher - the teacher's
// FromApp (fixclient/fixapp.go) does this routing with an if/else
// string-compare chain; this module generalizes that into a map
// fixed at construction time so it can never be mutated once the
// pipeline is running (spec.md §4.5, "no runtime mutation of the
// handler table once started").
type Dispatcher struct {
	Processor
	receiveHandlers map[string]Handler
	sendHandlers    map[string]Handler
}

// NewDispatcher wraps next with per-MsgType handler tables. A message
// whose MsgType has no registered handler falls through to next's
// OnReceive/OnSend (spec.md §4.5: "if none exists, on_receive/on_send
// is called instead").
func NewDispatcher(next Processor, receiveHandlers, sendHandlers map[string]Handler) *Dispatcher {
	return &Dispatcher{Processor: next, receiveHandlers: receiveHandlers, sendHandlers: sendHandlers}
}

func (d *Dispatcher) OnReceive(ctx context.Context, msg *message.Message) (*message.Message, error) {
	if mt, ok := msg.MsgType(); ok {
		if h, ok := d.receiveHandlers[mt]; ok {
			return h(ctx, msg)
		}
	}
	return d.Processor.OnReceive(ctx, msg)
}

func (d *Dispatcher) OnSend(ctx context.Context, msg *message.Message) (*message.Message, error) {
	if mt, ok := msg.MsgType(); ok {
		if h, ok := d.sendHandlers[mt]; ok {
			return h(ctx, msg)
		}
	}
	return d.Processor.OnSend(ctx, msg)
}

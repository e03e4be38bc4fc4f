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

// Package broker is the pub/sub admin surface of spec.md §6: delivered
// application messages are republished to a NATS subject, and messages
// published to a second subject are injected as outbound sends,
// mirroring the REST admin surface's send(message) shape over a
// message bus instead of HTTP. Grounded on the teacher's market-data
// fan-out in fixclient/fixapp.go (ToApp publishing parsed ticks
// onward), generalized from a hardcoded downstream consumer to a NATS
// subject any subscriber can use.
package broker

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"

	"github.com/nats-io/nats.go"

	"fixengine/field"
	"fixengine/message"
	"fixengine/tag"
)

// wireField is the JSON wire format used for both directions: the same
// 2-element [tag, value] array shape the REST admin surface's /send
// accepts (spec.md §6's JSON schema:
// `{"type": <msg-type>, "fields": [[tag, value], ...]}`). tag.RawData
// carries arbitrary bytes and travels base64-encoded; every other
// tag's value is plain FIX text.
type wireField struct {
	Tag   tag.Tag
	Value string
}

func (f wireField) MarshalJSON() ([]byte, error) {
	v := f.Value
	if tag.IsRawData(f.Tag) {
		v = base64.StdEncoding.EncodeToString([]byte(f.Value))
	}
	return json.Marshal([2]any{int(f.Tag), v})
}

func (f *wireField) UnmarshalJSON(data []byte) error {
	var pair [2]json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("broker: malformed field %s: %w", data, err)
	}
	var t int
	if err := json.Unmarshal(pair[0], &t); err != nil {
		return fmt.Errorf("broker: malformed field tag: %w", err)
	}
	var v string
	if err := json.Unmarshal(pair[1], &v); err != nil {
		return fmt.Errorf("broker: malformed field value: %w", err)
	}
	if tag.IsRawData(tag.Tag(t)) {
		decoded, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return fmt.Errorf("broker: field %d: invalid base64 value: %w", t, err)
		}
		v = string(decoded)
	}
	f.Tag, f.Value = tag.Tag(t), v
	return nil
}

type wireMessage struct {
	Type   string      `json:"type"`
	Fields []wireField `json:"fields"`
}

// Broker republishes delivered application messages onto PublishSubject
// and injects messages published to SendSubject as outbound sends.
type Broker struct {
	conn          *nats.Conn
	publishSubject string
	sendSubject    string
	send           func(*message.Message) error
	sub            *nats.Subscription
}

// Connect dials addr and constructs a Broker (spec.md §6, "pub/sub
// (external)").
func Connect(addr, publishSubject, sendSubject string, send func(*message.Message) error) (*Broker, error) {
	conn, err := nats.Connect(addr)
	if err != nil {
		return nil, fmt.Errorf("broker: connect %s: %w", addr, err)
	}
	return &Broker{conn: conn, publishSubject: publishSubject, sendSubject: sendSubject, send: send}, nil
}

// Start subscribes to SendSubject, injecting every well-formed message
// it receives as an outbound send.
func (b *Broker) Start() error {
	sub, err := b.conn.Subscribe(b.sendSubject, func(m *nats.Msg) {
		var wm wireMessage
		if err := json.Unmarshal(m.Data, &wm); err != nil {
			log.Printf("broker: malformed send payload: %v", err)
			return
		}
		msg := toMessage(wm)
		if err := b.send(msg); err != nil {
			log.Printf("broker: send rejected: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("broker: subscribe %s: %w", b.sendSubject, err)
	}
	b.sub = sub
	return nil
}

// Publish republishes a delivered application message onto
// PublishSubject for any downstream subscriber (spec.md §2, "Pipeline
// (bottom-up) -> terminal sink").
func (b *Broker) Publish(msg *message.Message) {
	wm := toWire(msg)
	data, err := json.Marshal(wm)
	if err != nil {
		log.Printf("broker: marshal outbound publish: %v", err)
		return
	}
	if err := b.conn.Publish(b.publishSubject, data); err != nil {
		log.Printf("broker: publish: %v", err)
	}
}

// Close unsubscribes and drains the NATS connection.
func (b *Broker) Close() error {
	if b.sub != nil {
		_ = b.sub.Unsubscribe()
	}
	return b.conn.Drain()
}

func toMessage(wm wireMessage) *message.Message {
	msg := message.New()
	msg.Header.Set(field.New(tag.MsgType, wm.Type))
	for _, f := range wm.Fields {
		msg.Body.Set(field.New(f.Tag, f.Value))
	}
	return msg
}

func toWire(msg *message.Message) wireMessage {
	mt, _ := msg.MsgType()
	wm := wireMessage{Type: mt}
	for _, f := range msg.Body.Fields() {
		wm.Fields = append(wm.Fields, wireField{Tag: f.Tag, Value: f.String()})
	}
	return wm
}

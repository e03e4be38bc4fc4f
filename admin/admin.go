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

// Package admin is the REST admin surface of spec.md §6: a small
// github.com/gin-gonic/gin router exposing send(message) and session
// status, grounded on the teacher's reliance on a router-style HTTP
// layer for its own operational endpoints (fixclient/requests.go) and
// generalized from order-entry REST calls to generic FIX message
// injection.
package admin

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"fixengine/field"
	"fixengine/message"
	"fixengine/session"
	"fixengine/tag"
)

// SendFunc is the injection entry point cmd/fixengine wires to
// *engine.Engine.Send, kept as a plain function type so this package
// does not need to import engine (engine already imports
// pipeline/session/transport/wire; admin stays a leaf dependency of
// cmd/fixengine instead of a sibling coupling).
type SendFunc func(msg *message.Message) error

// wireField is one element of a POST /send request's "fields" array: a
// 2-element [tag, value] JSON array (spec.md §6's JSON schema:
// `{"type": <msg-type>, "fields": [[tag, value], ...]}`). tag.RawData
// carries arbitrary bytes and travels base64-encoded; every other
// tag's value is plain FIX text.
type wireField struct {
	Tag   tag.Tag
	Value string
}

// UnmarshalJSON decodes a [tag, value] pair, base64-decoding the value
// when Tag is tag.IsRawData (spec.md §6: "bytes-valued fields
// base64-encoded").
func (f *wireField) UnmarshalJSON(data []byte) error {
	var pair [2]json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("admin: malformed field %s: %w", data, err)
	}
	var t int
	if err := json.Unmarshal(pair[0], &t); err != nil {
		return fmt.Errorf("admin: malformed field tag: %w", err)
	}
	var v string
	if err := json.Unmarshal(pair[1], &v); err != nil {
		return fmt.Errorf("admin: malformed field value: %w", err)
	}
	if tag.IsRawData(tag.Tag(t)) {
		decoded, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return fmt.Errorf("admin: field %d: invalid base64 value: %w", t, err)
		}
		v = string(decoded)
	}
	f.Tag, f.Value = tag.Tag(t), v
	return nil
}

type sendRequest struct {
	Type   string      `json:"type"`
	Fields []wireField `json:"fields"`
}

type sendResponse struct {
	Accepted bool   `json:"accepted"`
	Error    string `json:"error,omitempty"`
}

type statusResponse struct {
	State         string `json:"state"`
	NextSendSeq   int    `json:"next_send_seq,omitempty"`
	NextExpectSeq int    `json:"next_expect_seq,omitempty"`
}

// Router builds the gin Engine exposing /send and /status (spec.md §6,
// "REST admin (external)"). sess is read for /status; send is called
// for every accepted /send body.
func Router(sess *session.Session, send SendFunc) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.POST("/send", func(c *gin.Context) {
		var req sendRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, sendResponse{Error: err.Error()})
			return
		}

		msg, err := buildMessage(req)
		if err != nil {
			c.JSON(http.StatusBadRequest, sendResponse{Error: err.Error()})
			return
		}

		if err := send(msg); err != nil {
			c.JSON(http.StatusUnprocessableEntity, sendResponse{Error: err.Error()})
			return
		}
		c.JSON(http.StatusOK, sendResponse{Accepted: true})
	})

	r.GET("/status", func(c *gin.Context) {
		send, expect := sess.SeqNums()
		c.JSON(http.StatusOK, statusResponse{State: sess.State().String(), NextSendSeq: send, NextExpectSeq: expect})
	})

	return r
}

// buildMessage decodes a POST /send body into a Message whose header
// carries only MsgType - the session fills BeginString, SenderCompID,
// TargetCompID, SendingTime, and MsgSeqNum at send time (session.SendApp).
func buildMessage(req sendRequest) (*message.Message, error) {
	msg := message.New()
	msg.Header.Set(field.New(tag.MsgType, req.Type))

	for _, wf := range req.Fields {
		if err := msg.SetTag(wf.Tag, wf.Value); err != nil {
			return nil, fmt.Errorf("admin: %w", err)
		}
	}
	return msg, nil
}

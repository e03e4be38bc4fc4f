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
	"sync/atomic"

	"fixengine/field"
	"fixengine/message"
	"fixengine/session"
	"fixengine/tag"
)

// AuthenticationApp is the outbound gate of spec.md §5 ("an outbound
// Logon is held until the Authentication processor signals readiness,
// and all other outbound traffic is held until LoggedIn"). It is
// grounded on the teacher's ToAdmin hook (fixclient/fixapp.go), which
// stamps credentials onto the outbound Logon body at the same seam
// this processor occupies, generalized from Coinbase Prime's
// API-key/secret/passphrase scheme to the plain Username/Password pair
// spec.md §6's configuration recognizes.
type AuthenticationApp struct {
	Base

	// ready reports whether the processor has finished whatever
	// preparation it needs (credential validation, clock sync) before
	// the first outbound Logon may proceed. Default true; callers that
	// need an async readiness gate can flip this to false at
	// construction and call SetReady(true) once prepared.
	ready int32

	// Session is polled for LoggedIn status to decide whether
	// non-Logon outbound traffic may proceed (spec.md §5). Set by the
	// caller once the session is constructed; nil means "not gated
	// yet", matching how Connect() itself sends the first Logon before
	// any Session exists to poll.
	Session *session.Session

	Username string
	Password string
}

// NewAuthenticationApp constructs a ready-by-default AuthenticationApp
// carrying the credentials to stamp onto outbound Logon messages.
func NewAuthenticationApp(username, password string) *AuthenticationApp {
	a := &AuthenticationApp{Base: Base{ProcName: "authentication"}, Username: username, Password: password}
	atomic.StoreInt32(&a.ready, 1)
	return a
}

// SetReady flips the readiness gate (spec.md §5: "held until the
// Authentication processor signals readiness").
func (a *AuthenticationApp) SetReady(v bool) {
	if v {
		atomic.StoreInt32(&a.ready, 1)
	} else {
		atomic.StoreInt32(&a.ready, 0)
	}
}

// OnSend stamps Username/Password onto an outbound Logon and holds
// every other outbound message until the session is LoggedIn.
// Returning (nil, nil) holds the message rather than erroring, since a
// held message is not a pipeline failure - the caller is expected to
// retry once LoggedIn, mirroring how the teacher's FixApp silently
// drops ToApp messages it has nothing to do with.
func (a *AuthenticationApp) OnSend(_ context.Context, msg *message.Message) (*message.Message, error) {
	mt, _ := msg.MsgType()
	if mt == message.TypeLogon {
		if atomic.LoadInt32(&a.ready) == 0 {
			return nil, nil
		}
		if a.Username != "" {
			msg.Body.Set(field.New(tag.Username, a.Username))
		}
		if a.Password != "" {
			msg.Body.Set(field.New(tag.Password, a.Password))
		}
		return msg, nil
	}
	if a.Session != nil && a.Session.State() != session.LoggedIn {
		return nil, nil
	}
	return msg, nil
}

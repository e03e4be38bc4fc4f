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

// Package session is the Session State Machine (spec.md §4.3): sequence
// number policy, heartbeat liveness, and the connection lifecycle that
// drives a FIX session from Disconnected through LoggedIn and back.
// Grounded on the lifecycle hooks (OnCreate/OnLogon/OnLogout) in the
// teacher's fixclient/fixapp.go, generalized from a single hardcoded
// market-data workflow into the full state machine spec.md §4.3
// describes.
package session

// State is one node of the session lifecycle (spec.md §4.3, "States").
type State int

const (
	Disconnected State = iota
	Connecting
	LogonSent
	LoggedIn
	Resending
	LogoutSent
	Errored
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case LogonSent:
		return "LogonSent"
	case LoggedIn:
		return "LoggedIn"
	case Resending:
		return "Resending"
	case LogoutSent:
		return "LogoutSent"
	case Errored:
		return "Errored"
	default:
		return "Unknown"
	}
}

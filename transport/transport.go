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

// Package transport is the byte-stream external collaborator of
// spec.md §6: it makes no framing guarantees, leaving all FIX framing
// to the wire codec. Grounded on the teacher's reliance on the
// quickfix library's socket initiator (fixclient/fixapp.go): this
// module owns that socket instead of delegating it to a third-party
// session library.
package transport

import "io"

// Transport is a raw byte-stream connection (spec.md §6, "Transport").
type Transport interface {
	// Read blocks until at least one byte is available, returning what
	// was read. io.EOF signals a clean close by the peer.
	Read(buf []byte) (int, error)
	// Write sends buf in full or returns an error.
	Write(buf []byte) error
	// Close releases the underlying connection. Safe to call more than
	// once.
	Close() error
}

// Reader adapts a Transport to io.Reader so buffered readers from the
// standard library can sit on top of it.
type Reader struct {
	T Transport
}

func (r Reader) Read(p []byte) (int, error) {
	n, err := r.T.Read(p)
	if err != nil && err != io.EOF {
		return n, err
	}
	return n, err
}

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

package transport

import (
	"fmt"
	"net"
	"sync"
	"time"
)

// TCPTransport is a plain net.Conn-backed Transport (spec.md §6). No
// TLS termination is implemented here - an explicit Non-goal
// (spec.md §1): "TLS termination (assumed provided by the transport
// layer)".
type TCPTransport struct {
	conn net.Conn

	closeOnce sync.Once
	closeErr  error
}

// Dial opens a TCP connection to addr (spec.md §6, "host", "port"
// configuration keys).
func Dial(addr string, timeout time.Duration) (*TCPTransport, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}
	return &TCPTransport{conn: conn}, nil
}

func (t *TCPTransport) Read(buf []byte) (int, error) {
	return t.conn.Read(buf)
}

func (t *TCPTransport) Write(buf []byte) error {
	_, err := t.conn.Write(buf)
	return err
}

func (t *TCPTransport) Close() error {
	t.closeOnce.Do(func() {
		t.closeErr = t.conn.Close()
	})
	return t.closeErr
}

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

package session

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
)

// sidPath returns the persisted sid file path for a connection (spec.md
// §6, "Persisted state layout": "{connection_name}.sid containing the
// last session id").
func sidPath(connectionName string) string {
	return connectionName + ".sid"
}

// loadOrCreateSid reads the sid file for connectionName. If it is
// absent, or reset is true, a new sid is generated and written (spec.md
// §4.3, "Session identity"). It reports whether an existing sid was
// resumed.
func loadOrCreateSid(connectionName string, reset bool) (sid string, resumed bool, err error) {
	path := sidPath(connectionName)

	if !reset {
		raw, readErr := os.ReadFile(path)
		if readErr == nil {
			sid = strings.TrimSpace(string(raw))
			if sid != "" {
				return sid, true, nil
			}
		} else if !os.IsNotExist(readErr) {
			return "", false, fmt.Errorf("session: read sid file %s: %w", path, readErr)
		}
	}

	sid = uuid.NewString()
	if err := os.WriteFile(path, []byte(sid), 0o644); err != nil {
		return "", false, fmt.Errorf("session: write sid file %s: %w", path, err)
	}
	return sid, false, nil
}

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

package wire

import (
	"fmt"
	"strconv"
	"strings"

	"fixengine/field"
	"fixengine/fixerr"
	"fixengine/message"
	"fixengine/tag"
)

// SOH is the FIX field delimiter, byte 0x01 (spec.md §4.1, Framing).
const SOH = 0x01

// headerTags is the set of tags the codec (not user pipeline apps)
// manages directly on decode/encode (spec.md §3, Message).
var headerTags = map[tag.Tag]bool{
	tag.BeginString:     true,
	tag.MsgType:         true,
	tag.MsgSeqNum:       true,
	tag.SenderCompID:    true,
	tag.SenderSubID:     true,
	tag.TargetCompID:    true,
	tag.SendingTime:     true,
	tag.PossDupFlag:     true,
	tag.OrigSendingTime: true,
}

// Codec converts between byte buffers and Message objects (spec.md
// §4.1).
type Codec struct {
	// StrictMode rejects tags outside the recognized standard/user
	// range with ErrUnknownTag (spec.md §4.1, Decode contract:
	// "UnknownTag (only in strict mode)"). Supplements spec.md §9,
	// open question resolved per DESIGN.md: exposed as a constructor
	// option rather than hardcoded.
	StrictMode bool
	Registry   *Registry
}

// New constructs a Codec with the default group-template registry.
func New(strict bool) *Codec {
	return &Codec{StrictMode: strict, Registry: DefaultRegistry()}
}

// Decode parses one message from the front of buf. It returns the
// decoded message and the number of bytes consumed, or
// fixerr.ErrNeedMoreData if buf does not yet contain a complete
// message. On fixerr.ErrBodyLengthMismatch or
// fixerr.ErrCheckSumMismatch the codec does not advance - per spec.md
// §4.1 the caller (session) is responsible for resynchronizing by
// scanning forward to the next "8=" marker.
func (c *Codec) Decode(buf []byte) (*message.Message, int, error) {
	if len(buf) < 2 || buf[0] != '8' || buf[1] != '=' {
		return nil, 0, fmt.Errorf("%w: message does not start with 8=", fixerr.ErrMalformedFraming)
	}

	beginString, pos, err := readTagValue(buf, 0, tag.BeginString)
	if err != nil {
		return nil, 0, err
	}

	bodyLenField, afterBodyLen, err := readTagValue(buf, pos, tag.BodyLength)
	if err != nil {
		return nil, 0, err
	}
	bodyLen, err := strconv.Atoi(bodyLenField)
	if err != nil || bodyLen < 0 {
		return nil, 0, fmt.Errorf("%w: BodyLength %q is not a valid non-negative integer", fixerr.ErrMalformedFraming, bodyLenField)
	}

	if len(buf) < afterBodyLen+bodyLen {
		return nil, 0, fixerr.ErrNeedMoreData
	}
	bodyBytes := buf[afterBodyLen : afterBodyLen+bodyLen]

	trailerStart := afterBodyLen + bodyLen
	if len(buf) < trailerStart+3 {
		return nil, 0, fixerr.ErrNeedMoreData
	}
	if string(buf[trailerStart:trailerStart+3]) != "10=" {
		return nil, 0, fmt.Errorf("%w: expected trailing 10= CheckSum field after BodyLength bytes", fixerr.ErrBodyLengthMismatch)
	}
	checksumField, afterChecksum, err := readTagValue(buf, trailerStart, tag.CheckSum)
	if err != nil {
		return nil, 0, fixerr.ErrNeedMoreData
	}

	declaredChecksum, err := strconv.Atoi(checksumField)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: CheckSum %q is not numeric", fixerr.ErrCheckSumMismatch, checksumField)
	}
	actualChecksum := checksum(buf[:trailerStart])
	if declaredChecksum != actualChecksum {
		return nil, 0, fmt.Errorf("%w: declared=%03d computed=%03d", fixerr.ErrCheckSumMismatch, declaredChecksum, actualChecksum)
	}

	bodyFields, err := splitFields(bodyBytes)
	if err != nil {
		return nil, 0, err
	}

	if c.StrictMode {
		for _, f := range bodyFields {
			if !tag.Valid(f.Tag) {
				return nil, 0, fmt.Errorf("%w: tag %d", fixerr.ErrUnknownTag, f.Tag)
			}
		}
	}

	var msgType string
	headerFields := make([]field.Field, 0, 8)
	bodyOnly := make([]field.Field, 0, len(bodyFields))
	for _, f := range bodyFields {
		if f.Tag == tag.MsgType {
			msgType = f.String()
		}
		if headerTags[f.Tag] {
			headerFields = append(headerFields, f)
			continue
		}
		bodyOnly = append(bodyOnly, f)
	}

	templates := c.Registry.TemplatesFor(msgType)
	body, err := field.Build(bodyOnly, templates)
	if err != nil {
		return nil, 0, err
	}

	m := &message.Message{
		Header:  field.NewDict(),
		Body:    body,
		Trailer: field.NewDict(),
	}
	m.Header.Set(field.New(tag.BeginString, beginString))
	for _, f := range headerFields {
		m.Header.Set(f)
	}
	m.Trailer.Set(field.New(tag.CheckSum, checksumField))

	return m, afterChecksum, nil
}

// Encode serializes m into canonical wire bytes: 8, 9, 35, other
// header tags, body, then 10 (spec.md §4.1, Encode contract).
// BodyLength and CheckSum are always recomputed.
func (c *Codec) Encode(m *message.Message) ([]byte, error) {
	beginString, ok := m.Header.Get(tag.BeginString)
	if !ok {
		return nil, fmt.Errorf("%w: message has no BeginString", fixerr.ErrMalformedFraming)
	}
	msgType, ok := m.Header.Get(tag.MsgType)
	if !ok {
		return nil, fmt.Errorf("%w: message has no MsgType", fixerr.ErrMalformedFraming)
	}

	var body strings.Builder
	writeField(&body, field.New(tag.MsgType, msgType.String()))
	for _, f := range m.Header.Fields() {
		if f.Tag == tag.BeginString || f.Tag == tag.MsgType {
			continue
		}
		writeField(&body, f)
	}
	for _, f := range field.Flatten(m.Body) {
		writeField(&body, f)
	}

	bodyBytes := body.String()

	var prefix strings.Builder
	writeField(&prefix, field.New(tag.BeginString, beginString.String()))
	writeField(&prefix, field.NewInt(tag.BodyLength, len(bodyBytes)))

	beforeChecksum := prefix.String() + bodyBytes
	sum := checksum([]byte(beforeChecksum))

	var out strings.Builder
	out.WriteString(beforeChecksum)
	out.WriteString(fmt.Sprintf("10=%03d%c", sum, SOH))

	return []byte(out.String()), nil
}

func writeField(b *strings.Builder, f field.Field) {
	b.WriteString(strconv.Itoa(int(f.Tag)))
	b.WriteByte('=')
	b.WriteString(f.String())
	b.WriteByte(SOH)
}

// checksum computes the 8-bit arithmetic sum of buf modulo 256
// (spec.md §4.1, Framing: "CheckSum is the 8-bit arithmetic sum").
func checksum(buf []byte) int {
	sum := 0
	for _, b := range buf {
		sum += int(b)
	}
	return sum % 256
}

// readTagValue reads one "tag=value<SOH>" field starting at pos and
// verifies its tag matches want, returning the value and the position
// just past the SOH.
func readTagValue(buf []byte, pos int, want tag.Tag) (string, int, error) {
	eq := indexByteFrom(buf, pos, '=')
	if eq == -1 {
		return "", 0, fmt.Errorf("%w: missing '=' for tag %d", fixerr.ErrMalformedFraming, want)
	}
	gotTag, err := strconv.Atoi(string(buf[pos:eq]))
	if err != nil || tag.Tag(gotTag) != want {
		return "", 0, fmt.Errorf("%w: expected tag %d, got %q", fixerr.ErrMalformedFraming, want, string(buf[pos:eq]))
	}
	soh := indexByteFrom(buf, eq+1, SOH)
	if soh == -1 {
		return "", 0, fixerr.ErrNeedMoreData
	}
	return string(buf[eq+1 : soh]), soh + 1, nil
}

func indexByteFrom(buf []byte, from int, b byte) int {
	for i := from; i < len(buf); i++ {
		if buf[i] == b {
			return i
		}
	}
	return -1
}

// splitFields splits a raw tag=value<SOH>... byte region into an
// ordered slice of Fields.
func splitFields(buf []byte) ([]field.Field, error) {
	var out []field.Field
	pos := 0
	for pos < len(buf) {
		eq := indexByteFrom(buf, pos, '=')
		if eq == -1 {
			return nil, fmt.Errorf("%w: missing '=' while splitting fields", fixerr.ErrMalformedFraming)
		}
		t, err := strconv.Atoi(string(buf[pos:eq]))
		if err != nil {
			return nil, fmt.Errorf("%w: non-numeric tag %q", fixerr.ErrMalformedFraming, string(buf[pos:eq]))
		}
		soh := indexByteFrom(buf, eq+1, SOH)
		if soh == -1 {
			return nil, fmt.Errorf("%w: missing SOH terminator for tag %d", fixerr.ErrMalformedFraming, t)
		}
		out = append(out, field.New(tag.Tag(t), string(buf[eq+1:soh])))
		pos = soh + 1
	}
	return out, nil
}

// ScanNextMarker finds the byte offset of the next "8=" message-start
// marker at or after from, for resynchronization after a framing error
// (spec.md §4.1, Decode contract). It returns -1 if none is found.
func ScanNextMarker(buf []byte, from int) int {
	for i := from; i < len(buf)-1; i++ {
		if buf[i] == '8' && buf[i+1] == '=' && (i == 0 || buf[i-1] == SOH) {
			return i
		}
	}
	return -1
}

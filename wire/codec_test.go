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
	"errors"
	"strings"
	"testing"
	"time"

	"fixengine/fixerr"
	"fixengine/message"
	"fixengine/tag"
)

func TestCodec_EncodeDecodeRoundTrip(t *testing.T) {
	c := New(false)
	id := message.Identity{BeginString: "FIX.4.4", SenderCompID: "CLIENT", TargetCompID: "SERVER"}
	msg := message.NewLogon(id, message.LogonParams{HeartBtInt: 30}, time.Now())
	msg.SetSeqNum(1)

	raw, err := c.Encode(msg)
	if err != nil {
		t.Fatalf("unexpected encode error: %v", err)
	}

	decoded, n, err := c.Decode(raw)
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if n != len(raw) {
		t.Fatalf("expected to consume all %d bytes, consumed %d", len(raw), n)
	}

	mt, ok := decoded.MsgType()
	if !ok || mt != message.TypeLogon {
		t.Errorf("expected MsgType A, got %q ok=%v", mt, ok)
	}
	seq, ok := decoded.SeqNum()
	if !ok || seq != 1 {
		t.Errorf("expected seq 1, got %d ok=%v", seq, ok)
	}
	hb, ok := decoded.Body.Get(tag.HeartBtInt)
	if !ok || hb.String() != "30" {
		t.Errorf("expected HeartBtInt=30, got %v ok=%v", hb, ok)
	}
}

func TestCodec_Decode_NeedsMoreDataOnPartialBuffer(t *testing.T) {
	c := New(false)
	id := message.Identity{BeginString: "FIX.4.4", SenderCompID: "CLIENT", TargetCompID: "SERVER"}
	msg := message.NewHeartbeat(id, "", time.Now())
	raw, err := c.Encode(msg)
	if err != nil {
		t.Fatalf("unexpected encode error: %v", err)
	}

	_, _, err = c.Decode(raw[:len(raw)-5])
	if !errors.Is(err, fixerr.ErrNeedMoreData) {
		t.Fatalf("expected ErrNeedMoreData, got %v", err)
	}
}

func TestCodec_Decode_BodyLengthMismatchDoesNotAdvance(t *testing.T) {
	c := New(false)
	id := message.Identity{BeginString: "FIX.4.4", SenderCompID: "CLIENT", TargetCompID: "SERVER"}
	msg := message.NewHeartbeat(id, "", time.Now())
	raw, err := c.Encode(msg)
	if err != nil {
		t.Fatalf("unexpected encode error: %v", err)
	}

	corrupted := strings.Replace(string(raw), "9=", "9=999", 1)

	_, n, err := c.Decode([]byte(corrupted))
	if !errors.Is(err, fixerr.ErrBodyLengthMismatch) && !errors.Is(err, fixerr.ErrNeedMoreData) {
		t.Fatalf("expected a BodyLength-related error, got %v", err)
	}
	if n != 0 {
		t.Errorf("expected zero bytes consumed on error, got %d", n)
	}
}

func TestCodec_Decode_CheckSumMismatchIsDetected(t *testing.T) {
	c := New(false)
	id := message.Identity{BeginString: "FIX.4.4", SenderCompID: "CLIENT", TargetCompID: "SERVER"}
	msg := message.NewHeartbeat(id, "", time.Now())
	raw, err := c.Encode(msg)
	if err != nil {
		t.Fatalf("unexpected encode error: %v", err)
	}

	s := string(raw)
	idx := strings.LastIndex(s, "10=")
	corrupted := s[:idx] + "10=000" + s[idx+6:]

	_, _, err = c.Decode([]byte(corrupted))
	if !errors.Is(err, fixerr.ErrCheckSumMismatch) {
		t.Fatalf("expected ErrCheckSumMismatch, got %v", err)
	}
}

func TestCodec_Decode_MalformedFramingWhenMissingBeginString(t *testing.T) {
	c := New(false)
	_, _, err := c.Decode([]byte("35=0\x019=5\x0110=000\x01"))
	if !errors.Is(err, fixerr.ErrMalformedFraming) {
		t.Fatalf("expected ErrMalformedFraming, got %v", err)
	}
}

func TestCodec_Decode_RepeatingGroupProducesDictFormBody(t *testing.T) {
	c := New(false)

	// Build an ExecutionReport body by hand to exercise group decoding:
	// NoMiscFees (136) is the count tag, MiscFeeAmt (137) the delimiter
	// (spec.md §3, Group: "e.g., NoMiscFees=2").
	raw := "8=FIX.4.4\x019=0\x0135=8\x0134=1\x0149=CLIENT\x0156=SERVER\x0152=20250101-00:00:00.000\x01" +
		"136=1\x01137=1.50\x01138=USD\x0110=000\x01"
	bodyStart := strings.Index(raw, "35=")
	trailerIdx := strings.LastIndex(raw, "10=")
	bodyLen := trailerIdx - bodyStart
	raw = "8=FIX.4.4\x019=" + itoa(bodyLen) + "\x01" + raw[bodyStart:trailerIdx]
	chk := checksum([]byte(raw))
	raw += "10=" + pad3(chk) + "\x01"

	decoded, _, err := c.Decode([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}

	g, ok := decoded.Body.Group(tag.NoMiscFees)
	if !ok {
		t.Fatalf("expected NoMiscFees group in decoded body")
	}
	if g.Size() != 1 {
		t.Errorf("expected group size 1, got %d", g.Size())
	}
	amt, ok := g.Instance(0).Get(tag.MiscFeeAmt)
	if !ok || amt.String() != "1.50" {
		t.Errorf("expected MiscFeeAmt=1.50 in group instance, got %v ok=%v", amt, ok)
	}
}

func TestCodec_StrictMode_RejectsUnknownTag(t *testing.T) {
	c := New(true)
	raw := "8=FIX.4.4\x019=0\x0135=0\x0134=1\x0149=CLIENT\x0156=SERVER\x0152=20250101-00:00:00.000\x0199999=x\x0110=000\x01"
	bodyStart := strings.Index(raw, "35=")
	trailerIdx := strings.LastIndex(raw, "10=")
	bodyLen := trailerIdx - bodyStart
	raw = "8=FIX.4.4\x019=" + itoa(bodyLen) + "\x01" + raw[bodyStart:trailerIdx]
	chk := checksum([]byte(raw))
	raw += "10=" + pad3(chk) + "\x01"

	_, _, err := c.Decode([]byte(raw))
	if !errors.Is(err, fixerr.ErrUnknownTag) {
		t.Fatalf("expected ErrUnknownTag, got %v", err)
	}
}

func TestScanNextMarker_FindsNextMessageStart(t *testing.T) {
	buf := []byte("garbage\x018=FIX.4.4\x019=0\x0110=000\x01")
	idx := ScanNextMarker(buf, 0)
	if idx == -1 || buf[idx] != '8' {
		t.Fatalf("expected to find 8= marker, got idx=%d", idx)
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	if neg {
		return "-" + string(digits)
	}
	return string(digits)
}

func pad3(n int) string {
	s := itoa(n)
	for len(s) < 3 {
		s = "0" + s
	}
	return s
}

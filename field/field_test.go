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

package field

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fixengine/tag"
)

func TestField_EqualAcrossRepresentations(t *testing.T) {
	f := New(tag.MsgSeqNum, "34")

	if !f.Equal(34) {
		t.Errorf("expected field to equal int 34")
	}
	if !f.Equal("34") {
		t.Errorf("expected field to equal string \"34\"")
	}
	if !f.Equal([]byte("34")) {
		t.Errorf("expected field to equal []byte(\"34\")")
	}
	if f.Equal(35) {
		t.Errorf("expected field not to equal int 35")
	}
}

func TestField_BoolEncodesYN(t *testing.T) {
	yes := NewBool(tag.ResetSeqNumFlag, true)
	no := NewBool(tag.ResetSeqNumFlag, false)

	if yes.String() != "Y" {
		t.Errorf("expected Y, got %s", yes.String())
	}
	if no.String() != "N" {
		t.Errorf("expected N, got %s", no.String())
	}

	v, err := yes.Bool()
	if err != nil || v != true {
		t.Errorf("expected true, got %v err=%v", v, err)
	}
}

func TestField_NullSentinelIsDetected(t *testing.T) {
	f := New(tag.RefSeqNum, "-2147483648")
	if !f.IsNull() {
		t.Errorf("expected FIX null sentinel to be detected as null")
	}
}

func TestField_DecimalPreservesExactValue(t *testing.T) {
	price := decimal.RequireFromString("50000.10")
	f := NewDecimal(tag.MiscFeeAmt, price)

	got, err := f.Decimal()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(price) {
		t.Errorf("expected %s, got %s", price, got)
	}
}

func TestField_TimeRoundTripsMillisecondPrecision(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 123_000_000, time.UTC)
	f := NewTime(tag.SendingTime, ts)

	if f.String() != "20260102-03:04:05.123" {
		t.Errorf("unexpected wire format: %s", f.String())
	}

	got, err := f.Time()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(ts) {
		t.Errorf("expected %v, got %v", ts, got)
	}
}

func TestField_TimeUsesSecondPrecisionWhenNoSubSecondData(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	f := NewTime(tag.SendingTime, ts)

	if f.String() != "20260102-03:04:05" {
		t.Errorf("unexpected wire format: %s", f.String())
	}
}

func TestField_IntParsesCanonicalInteger(t *testing.T) {
	f := NewInt(tag.MsgSeqNum, 42)
	got, err := f.Int()
	if err != nil || got != 42 {
		t.Errorf("expected 42, got %d err=%v", got, err)
	}
}

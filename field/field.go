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

// Package field is the Message Model core: the atomic Field type, the
// dual-representation FieldMap container, and repeating Groups
// (spec.md §3). It is grounded on the teacher's FieldSetter/FIXString
// usage in builder/messages.go, generalized from a thin wrapper around
// a third-party field-value type into the module's own value model.
package field

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"fixengine/tag"
)

// FixTimeFormat is the FIX UTCTimestamp wire format with millisecond
// precision (spec.md §4.1, Encode contract).
const FixTimeFormat = "20060102-15:04:05.000"

// fixTimeFormatSeconds is used when the source has no sub-second
// precision to report (spec.md §4.1: "else second precision").
const fixTimeFormatSeconds = "20060102-15:04:05"

// nullSentinel is the FIX "null" integer sentinel that is normalized to
// an absent field (spec.md §3, Field).
const nullSentinel = "-2147483648"

// Field is an atomic (tag, value) pair. The value is stored as its
// canonical text form; typed accessors parse on demand rather than
// eagerly, since most fields in a given message are never read as
// anything but text.
type Field struct {
	Tag tag.Tag
	raw string
}

// New constructs a Field from a tag and a string value.
func New(t tag.Tag, value string) Field {
	return Field{Tag: t, raw: value}
}

// NewInt constructs a Field from an integer value.
func NewInt(t tag.Tag, value int) Field {
	return Field{Tag: t, raw: strconv.Itoa(value)}
}

// NewBool constructs a Field from a boolean value, encoded as Y/N.
func NewBool(t tag.Tag, value bool) Field {
	if value {
		return Field{Tag: t, raw: "Y"}
	}
	return Field{Tag: t, raw: "N"}
}

// NewDecimal constructs a Field from a decimal.Decimal value.
func NewDecimal(t tag.Tag, value decimal.Decimal) Field {
	return Field{Tag: t, raw: value.String()}
}

// NewTime constructs a Field from a time.Time, encoded in the FIX
// UTCTimestamp format. Millisecond precision is used when the source
// time carries a non-zero nanosecond component, else second precision
// (spec.md §4.1, Encode contract).
func NewTime(t tag.Tag, value time.Time) Field {
	value = value.UTC()
	if value.Nanosecond() == 0 {
		return Field{Tag: t, raw: value.Format(fixTimeFormatSeconds)}
	}
	return Field{Tag: t, raw: value.Format(FixTimeFormat)}
}

// IsNull reports whether this field carries the FIX null sentinel and
// should be treated as absent (spec.md §3).
func (f Field) IsNull() bool {
	return f.raw == nullSentinel
}

// String returns the field's canonical text value.
func (f Field) String() string {
	return f.raw
}

// Bytes returns the field's value as a byte slice.
func (f Field) Bytes() []byte {
	return []byte(f.raw)
}

// Int returns the field's value parsed as an integer.
func (f Field) Int() (int, error) {
	return strconv.Atoi(f.raw)
}

// Decimal returns the field's value parsed as an exact decimal. FIX
// prices and quantities must never lose precision to float64 rounding,
// so this uses shopspring/decimal rather than strconv.ParseFloat.
func (f Field) Decimal() (decimal.Decimal, error) {
	return decimal.NewFromString(f.raw)
}

// Bool returns the field's value parsed as a FIX boolean ("Y"/"N").
func (f Field) Bool() (bool, error) {
	switch f.raw {
	case "Y":
		return true, nil
	case "N":
		return false, nil
	default:
		return false, strconv.ErrSyntax
	}
}

// Time returns the field's value parsed as a FIX UTCTimestamp,
// accepting both millisecond and second precision.
func (f Field) Time() (time.Time, error) {
	if strings.Contains(f.raw, ".") {
		return time.Parse(FixTimeFormat, f.raw)
	}
	return time.Parse(fixTimeFormatSeconds, f.raw)
}

// Equal compares the field's canonical text form against an integer,
// string, or byte-slice representation (spec.md §3, Field: "Equality
// across representations").
func (f Field) Equal(other any) bool {
	switch v := other.(type) {
	case int:
		return f.raw == strconv.Itoa(v)
	case string:
		return f.raw == v
	case []byte:
		return f.raw == string(v)
	case Field:
		return f.Tag == v.Tag && f.raw == v.raw
	default:
		return false
	}
}

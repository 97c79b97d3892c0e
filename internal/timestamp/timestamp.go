// Package timestamp converts the assorted timestamp shapes found in registration
// documents into epoch milliseconds.
package timestamp

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Sentinel is the normalized value of a record without a usable timestamp. It sorts oldest.
const Sentinel int64 = 0

// minEpochValue is the bound above which a number is taken as epoch milliseconds directly.
// Smaller numbers are still read as dates.
const minEpochValue = 1_000_000_000

// maxDateMillis is the largest representable date offset, 100,000,000 days.
const maxDateMillis = 8.64e15

// Fields lists the document fields consulted, in priority order.
var Fields = []string{"submissionTime", "timestamp", "createdAt", "created_at", "date"}

// MillisProvider is implemented by timestamp types that know their own epoch milliseconds.
type MillisProvider interface {
	ToMillis() int64
}

// Kind tags the representation a raw timestamp value arrived in.
type Kind int

const (
	KindAbsent Kind = iota
	KindMillis
	KindEpoch
	KindNative
	KindNumeric
	KindText
	KindUnsupported
)

func (k Kind) String() string {
	switch k {
	case KindAbsent:
		return "absent"
	case KindMillis:
		return "millis"
	case KindEpoch:
		return "epoch"
	case KindNative:
		return "native"
	case KindNumeric:
		return "numeric"
	case KindText:
		return "text"
	}
	return "unsupported"
}

// Value is a classified raw timestamp. Only the fields matching Kind are set.
type Value struct {
	Kind    Kind
	millis  int64
	seconds any
	nanos   any
	native  time.Time
	number  float64
	text    string
}

// Classify tags a raw document value with its representation.
func Classify(raw any) Value {
	switch v := raw.(type) {
	case nil:
		return Value{Kind: KindAbsent}
	case MillisProvider:
		return Value{Kind: KindMillis, millis: v.ToMillis()}
	case time.Time:
		return Value{Kind: KindNative, native: v}
	case *time.Time:
		if v == nil {
			return Value{Kind: KindAbsent}
		}
		return Value{Kind: KindNative, native: *v}
	case map[string]any:
		secs, ok := v["_seconds"]
		if !ok {
			return Value{Kind: KindUnsupported}
		}
		return Value{Kind: KindEpoch, seconds: secs, nanos: v["_nanoseconds"]}
	case string:
		return Value{Kind: KindText, text: v}
	}
	if f, ok := toFloat(raw); ok {
		return Value{Kind: KindNumeric, number: f}
	}
	return Value{Kind: KindUnsupported}
}

// Millis converts the value to epoch milliseconds. ok is false when the value is not usable.
func (v Value) Millis() (int64, bool) {
	switch v.Kind {
	case KindMillis:
		return v.millis, true
	case KindEpoch:
		secs, ok := toFloat(v.seconds)
		if !ok {
			return 0, false
		}
		var nanos float64
		if v.nanos != nil {
			if nanos, ok = toFloat(v.nanos); !ok {
				nanos = 0
			}
		}
		return int64(secs)*1000 + int64(math.Floor(nanos/1e6)), true
	case KindNative:
		if v.native.IsZero() {
			return 0, false
		}
		return v.native.UnixMilli(), true
	case KindNumeric:
		if ms, ok := fromNumber(v.number); ok {
			return ms, true
		}
		return dateFromNumber(v.number)
	case KindText:
		s := strings.TrimSpace(v.text)
		if s == "" {
			return 0, false
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			if ms, ok := fromNumber(f); ok {
				return ms, true
			}
		}
		t, err := dateparse.ParseIn(s, time.UTC)
		if err != nil {
			return 0, false
		}
		return t.UnixMilli(), true
	}
	return 0, false
}

// Normalize walks Fields in order and returns the first usable timestamp.
// ok is false when no field produced one; the result is then Sentinel.
func Normalize(doc map[string]any) (ms int64, ok bool) {
	for _, name := range Fields {
		raw, present := doc[name]
		if !present || raw == nil {
			continue
		}
		if ms, ok := Classify(raw).Millis(); ok {
			return ms, true
		}
	}
	return Sentinel, false
}

func fromNumber(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= minEpochValue {
		return 0, false
	}
	return int64(f), true
}

// dateFromNumber reads a number that failed the epoch bound as a date value, which for a
// number is its milliseconds since the epoch.
func dateFromNumber(f float64) (int64, bool) {
	if math.IsNaN(f) || math.Abs(f) > maxDateMillis {
		return 0, false
	}
	return int64(f), true
}

func toFloat(raw any) (float64, bool) {
	switch n := raw.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

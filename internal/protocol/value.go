// Package protocol implements the wire codec: a tagged value union
// covering the protocol's fourteen variants, plus a cursor-based
// parser and an encoder.
package protocol

import "math"

// Kind identifies which protocol value variant a Value holds. The
// nullable bulk string and array variants each have a separate Kind
// for their null form, so the fourteen variants use sixteen Kinds.
type Kind int

const (
	KindSimpleString Kind = iota
	KindSimpleError
	KindInteger
	KindBulkString
	KindBulkStringNull
	KindArray
	KindArrayNull
	KindNull
	KindBoolean
	KindDouble
	KindBigNumber
	KindBulkError
	KindVerbatimString
	KindMap
	KindSet
	KindPush
)

// Pair is one key/value entry of a Map value.
type Pair struct {
	Key Value
	Val Value
}

// Value is a tagged union over the protocol's fourteen variants.
// Only the fields relevant to Kind are populated.
type Value struct {
	Kind   Kind
	Str    string // simple string / simple error text
	Int    int64
	Bulk   []byte // bulk string / bulk error / verbatim string payload
	Prefix string // verbatim string's three-byte type prefix (e.g. "txt")
	Big    string // big number digits, ascii
	Items  []Value
	Pairs  []Pair
	Bool   bool
	Double float64
}

func SimpleString(s string) Value { return Value{Kind: KindSimpleString, Str: s} }
func SimpleError(s string) Value  { return Value{Kind: KindSimpleError, Str: s} }
func Integer(i int64) Value       { return Value{Kind: KindInteger, Int: i} }
func BulkString(b []byte) Value   { return Value{Kind: KindBulkString, Bulk: b} }
func NullBulkString() Value       { return Value{Kind: KindBulkStringNull} }
func Array(items []Value) Value   { return Value{Kind: KindArray, Items: items} }
func NullArray() Value            { return Value{Kind: KindArrayNull} }
func Null() Value                 { return Value{Kind: KindNull} }
func Boolean(b bool) Value        { return Value{Kind: KindBoolean, Bool: b} }
func Double(f float64) Value      { return Value{Kind: KindDouble, Double: f} }
func BigNumber(digits string) Value {
	return Value{Kind: KindBigNumber, Big: digits}
}
func BulkError(b []byte) Value { return Value{Kind: KindBulkError, Bulk: b} }
func VerbatimString(prefix string, b []byte) Value {
	return Value{Kind: KindVerbatimString, Prefix: prefix, Bulk: b}
}
func MapValue(pairs []Pair) Value { return Value{Kind: KindMap, Pairs: pairs} }
func SetValue(items []Value) Value { return Value{Kind: KindSet, Items: items} }
func Push(items []Value) Value     { return Value{Kind: KindPush, Items: items} }

// Equal performs a structural comparison. Doubles compare by bit
// pattern so that NaN equals NaN, matching the codec round-trip
// property ("modulo nan != nan, which must compare by bit pattern").
func Equal(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindSimpleString, KindSimpleError:
		return a.Str == b.Str
	case KindInteger:
		return a.Int == b.Int
	case KindBulkString, KindBulkError:
		return bytesEqual(a.Bulk, b.Bulk)
	case KindVerbatimString:
		return a.Prefix == b.Prefix && bytesEqual(a.Bulk, b.Bulk)
	case KindBigNumber:
		return a.Big == b.Big
	case KindBulkStringNull, KindArrayNull, KindNull:
		return true
	case KindBoolean:
		return a.Bool == b.Bool
	case KindDouble:
		return math.Float64bits(a.Double) == math.Float64bits(b.Double)
	case KindArray, KindSet, KindPush:
		if len(a.Items) != len(b.Items) {
			return false
		}
		for i := range a.Items {
			if !Equal(a.Items[i], b.Items[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(a.Pairs) != len(b.Pairs) {
			return false
		}
		for i := range a.Pairs {
			if !Equal(a.Pairs[i].Key, b.Pairs[i].Key) || !Equal(a.Pairs[i].Val, b.Pairs[i].Val) {
				return false
			}
		}
		return true
	}
	return false
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

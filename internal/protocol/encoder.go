package protocol

import (
	"math"
	"strconv"
)

// Encode renders v as its bit-exact wire form.
func Encode(v Value) []byte {
	switch v.Kind {
	case KindSimpleString:
		return encodeLine('+', v.Str)
	case KindSimpleError:
		return encodeLine('-', v.Str)
	case KindInteger:
		return encodeLine(':', strconv.FormatInt(v.Int, 10))
	case KindBulkString:
		return encodeBulk('$', v.Bulk)
	case KindBulkStringNull:
		return []byte("$-1\r\n")
	case KindArray:
		return encodeItems('*', v.Items)
	case KindArrayNull:
		return []byte("*-1\r\n")
	case KindNull:
		return []byte("_\r\n")
	case KindBoolean:
		if v.Bool {
			return []byte("#t\r\n")
		}
		return []byte("#f\r\n")
	case KindDouble:
		return encodeLine(',', formatDouble(v.Double))
	case KindBigNumber:
		return encodeLine('(', v.Big)
	case KindBulkError:
		return encodeBulk('!', v.Bulk)
	case KindVerbatimString:
		payload := append([]byte(v.Prefix+":"), v.Bulk...)
		return encodeBulk('=', payload)
	case KindMap:
		return encodeMap(v.Pairs)
	case KindSet:
		return encodeItems('~', v.Items)
	case KindPush:
		return encodeItems('>', v.Items)
	}
	return nil
}

func encodeLine(tag byte, text string) []byte {
	out := make([]byte, 0, len(text)+3)
	out = append(out, tag)
	out = append(out, text...)
	out = append(out, '\r', '\n')
	return out
}

func encodeBulk(tag byte, b []byte) []byte {
	out := make([]byte, 0, len(b)+16)
	out = append(out, tag)
	out = append(out, strconv.Itoa(len(b))...)
	out = append(out, '\r', '\n')
	out = append(out, b...)
	out = append(out, '\r', '\n')
	return out
}

func encodeItems(tag byte, items []Value) []byte {
	out := make([]byte, 0, 16)
	out = append(out, tag)
	out = append(out, strconv.Itoa(len(items))...)
	out = append(out, '\r', '\n')
	for _, it := range items {
		out = append(out, Encode(it)...)
	}
	return out
}

func encodeMap(pairs []Pair) []byte {
	out := make([]byte, 0, 16)
	out = append(out, '%')
	out = append(out, strconv.Itoa(len(pairs))...)
	out = append(out, '\r', '\n')
	for _, pr := range pairs {
		out = append(out, Encode(pr.Key)...)
		out = append(out, Encode(pr.Val)...)
	}
	return out
}

func formatDouble(f float64) string {
	if math.IsInf(f, 1) {
		return "inf"
	}
	if math.IsInf(f, -1) {
		return "-inf"
	}
	if math.IsNaN(f) {
		return "nan"
	}
	return strconv.FormatFloat(f, 'e', -1, 64)
}

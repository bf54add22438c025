package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, v Value) {
	t.Helper()
	encoded := Encode(v)
	p := NewParser(encoded)
	got, err := p.Parse()
	require.NoError(t, err)
	assert.True(t, Equal(v, got), "round trip mismatch: %+v != %+v", v, got)
	assert.Equal(t, len(encoded), p.Pos())
}

func TestRoundTrip(t *testing.T) {
	cases := []Value{
		SimpleString("OK"),
		SimpleError("ERR boom"),
		Integer(42),
		Integer(-7),
		BulkString([]byte("hello world")),
		BulkString([]byte{}),
		NullBulkString(),
		Array([]Value{BulkString([]byte("PING"))}),
		Array(nil),
		NullArray(),
		Null(),
		Boolean(true),
		Boolean(false),
		Double(3.125),
		Double(0),
		BigNumber("123456789012345678901234567890"),
		BulkError([]byte("WRONGTYPE oops")),
		VerbatimString("txt", []byte("plain text")),
		MapValue([]Pair{{Key: BulkString([]byte("k")), Val: Integer(1)}}),
		SetValue([]Value{Integer(1), Integer(2)}),
		Push([]Value{SimpleString("invalidate"), BulkString([]byte("k"))}),
		Array([]Value{Array([]Value{Integer(1), Integer(2)}), BulkString([]byte("x"))}),
	}
	for _, c := range cases {
		roundTrip(t, c)
	}
}

func TestDoubleSymbolicRoundTrip(t *testing.T) {
	for _, f := range []float64{posInf(), negInf(), nanVal()} {
		roundTrip(t, Double(f))
	}
}

func posInf() float64 { f := 1e308; return f * 10 }
func negInf() float64 { f := -1e308; return f * 10 }
func nanVal() float64 { f := 0.0; return f / f }

func TestCheckUnexpectedEndOfInputOnPrefixes(t *testing.T) {
	full := Encode(Array([]Value{BulkString([]byte("SET")), BulkString([]byte("k")), BulkString([]byte("v"))}))
	for n := 0; n < len(full); n++ {
		p := NewParser(full[:n])
		err := p.Check()
		require.Error(t, err, "prefix length %d should not parse", n)
		pe, ok := err.(*ParseError)
		require.True(t, ok)
		assert.Equal(t, ErrUnexpectedEndOfInput, pe.Kind, "prefix length %d", n)
		assert.True(t, pe.Recoverable())
	}
	p := NewParser(full)
	require.NoError(t, p.Check())
}

func TestInvalidByte(t *testing.T) {
	p := NewParser([]byte("X garbage\r\n"))
	_, err := p.Parse()
	require.Error(t, err)
	pe := err.(*ParseError)
	assert.Equal(t, ErrInvalidByte, pe.Kind)
	assert.False(t, pe.Recoverable())
}

func TestInvalidLengthNegative(t *testing.T) {
	p := NewParser([]byte("$-2\r\n"))
	_, err := p.Parse()
	require.Error(t, err)
	assert.Equal(t, ErrInvalidLength, err.(*ParseError).Kind)
}

func TestInvalidInteger(t *testing.T) {
	p := NewParser([]byte(":abc\r\n"))
	_, err := p.Parse()
	require.Error(t, err)
	assert.Equal(t, ErrInvalidInteger, err.(*ParseError).Kind)
}

func TestInvalidFloatNonSymbolicInfinity(t *testing.T) {
	p := NewParser([]byte(",Inf\r\n"))
	_, err := p.Parse()
	require.Error(t, err)
	assert.Equal(t, ErrInvalidFloat, err.(*ParseError).Kind)
}

func TestEmptyBulkStringFramesCorrectly(t *testing.T) {
	p := NewParser([]byte("$0\r\n\r\n"))
	v, err := p.Parse()
	require.NoError(t, err)
	assert.Equal(t, KindBulkString, v.Kind)
	assert.Empty(t, v.Bulk)
}

func TestMalformedUTF8SimpleString(t *testing.T) {
	p := NewParser([]byte("+\xff\xfe\r\n"))
	_, err := p.Parse()
	require.Error(t, err)
	assert.Equal(t, ErrInvalidUTF8, err.(*ParseError).Kind)
}

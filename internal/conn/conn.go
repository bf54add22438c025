// Package conn implements the framed connection: a socket plus a
// read cursor and write buffer, offering ReadMessage, the Write*
// family, a raw-append path for snapshot transfer, and the
// readable/writable gates a replica stream uses to suppress replies.
package conn

import (
	"bytes"
	"io"
	"net"
	"strconv"

	"github.com/pkg/errors"

	"kvreplica/internal/protocol"
)

// ErrConnectionClosed is returned by ReadMessage and ReadRDB when the
// peer closes the socket (a zero-byte read).
var ErrConnectionClosed = errors.New("connection closed")

// ErrNotReadable is returned by ReadMessage when the read gate is
// closed.
var ErrNotReadable = errors.New("connection is not readable")

const fillChunk = 4096

// Conn is a framed connection: one net.Conn plus the buffers and
// gates the protocol needs layered on top of it.
type Conn struct {
	nc net.Conn

	readBuf []byte
	readPos int

	writeBuf bytes.Buffer

	readable bool
	writable bool
}

// New wraps nc. Both gates start open.
func New(nc net.Conn) *Conn {
	return &Conn{nc: nc, readable: true, writable: true}
}

// RemoteAddr returns the underlying socket's remote address.
func (c *Conn) RemoteAddr() net.Addr { return c.nc.RemoteAddr() }

// Close closes the underlying socket.
func (c *Conn) Close() error { return c.nc.Close() }

// CloseWrite closes the write gate: subsequent Write* calls become
// no-ops until OpenWrite is called again.
func (c *Conn) CloseWrite() { c.writable = false }

// OpenWrite reopens the write gate.
func (c *Conn) OpenWrite() { c.writable = true }

// CloseRead closes the read gate: ReadMessage returns ErrNotReadable
// until OpenRead is called again.
func (c *Conn) CloseRead() { c.readable = false }

// OpenRead reopens the read gate.
func (c *Conn) OpenRead() { c.readable = true }

// IsWritable reports whether the write gate is currently open.
func (c *Conn) IsWritable() bool { return c.writable }

// fillRaw reads one chunk from the socket into readBuf. A zero-byte
// read (EOF) is reported as (0, nil); the caller distinguishes it
// from a hard error.
func (c *Conn) fillRaw() (int, error) {
	buf := make([]byte, fillChunk)
	n, err := c.nc.Read(buf)
	if n > 0 {
		c.readBuf = append(c.readBuf, buf[:n]...)
	}
	if err != nil {
		if err == io.EOF {
			return n, nil
		}
		return n, errors.Wrap(err, "read from socket")
	}
	return n, nil
}

func (c *Conn) resetIfDrained() {
	if c.readPos == len(c.readBuf) {
		c.readBuf = c.readBuf[:0]
		c.readPos = 0
	}
}

// ReadMessage reads and decodes exactly one framed value, returning
// it along with the raw bytes it consumed (callers on the replica
// inbound path use the byte count to advance their observed offset).
//
// On a non-recoverable parse error it writes a single protocol-error
// reply before returning the error. On a zero-byte socket read it
// clears the buffer and returns ErrConnectionClosed.
func (c *Conn) ReadMessage() (protocol.Value, []byte, error) {
	if !c.readable {
		return protocol.Value{}, nil, ErrNotReadable
	}
	for {
		p := protocol.NewParser(c.readBuf[c.readPos:])
		if err := p.Check(); err == nil {
			v, _ := p.Parse() // guaranteed to succeed, Check just ran it
			consumed := p.Pos()
			raw := make([]byte, consumed)
			copy(raw, c.readBuf[c.readPos:c.readPos+consumed])
			c.readPos += consumed
			c.resetIfDrained()
			return v, raw, nil
		} else if pe, ok := err.(*protocol.ParseError); ok && pe.Recoverable() {
			n, ferr := c.fillRaw()
			if ferr != nil {
				return protocol.Value{}, nil, ferr
			}
			if n == 0 {
				c.readBuf = c.readBuf[:0]
				c.readPos = 0
				return protocol.Value{}, nil, ErrConnectionClosed
			}
			continue
		} else {
			_ = c.WriteError("ERR RESP Protocol Error")
			return protocol.Value{}, nil, err
		}
	}
}

func (c *Conn) readByte() (byte, error) {
	for c.readPos >= len(c.readBuf) {
		n, err := c.fillRaw()
		if err != nil {
			return 0, err
		}
		if n == 0 {
			return 0, ErrConnectionClosed
		}
	}
	b := c.readBuf[c.readPos]
	c.readPos++
	return b, nil
}

func (c *Conn) readExact(n int) ([]byte, error) {
	for len(c.readBuf)-c.readPos < n {
		nn, err := c.fillRaw()
		if err != nil {
			return nil, err
		}
		if nn == 0 {
			return nil, ErrConnectionClosed
		}
	}
	out := make([]byte, n)
	copy(out, c.readBuf[c.readPos:c.readPos+n])
	c.readPos += n
	return out, nil
}

func (c *Conn) readUntilCRLF() ([]byte, error) {
	var out []byte
	for {
		b, err := c.readByte()
		if err != nil {
			return nil, err
		}
		if b == '\r' {
			b2, err := c.readByte()
			if err != nil {
				return nil, err
			}
			if b2 == '\n' {
				return out, nil
			}
			out = append(out, b, b2)
			continue
		}
		out = append(out, b)
	}
}

// ReadRDB reads the non-standard snapshot framing: a `$<len>\r\n`
// header followed by exactly len raw bytes, with no trailing CRLF.
func (c *Conn) ReadRDB() ([]byte, error) {
	tag, err := c.readByte()
	if err != nil {
		return nil, err
	}
	if tag != '$' {
		return nil, errors.New("expected '$' snapshot header")
	}
	lenBytes, err := c.readUntilCRLF()
	if err != nil {
		return nil, err
	}
	n, perr := strconv.Atoi(string(lenBytes))
	if perr != nil || n < 0 {
		return nil, errors.New("invalid snapshot length")
	}
	data, err := c.readExact(n)
	if err != nil {
		return nil, err
	}
	c.resetIfDrained()
	return data, nil
}

// WriteMessage encodes v and writes the whole frame to the socket.
// A no-op if the write gate is closed.
func (c *Conn) WriteMessage(v protocol.Value) error {
	if !c.writable {
		return nil
	}
	return c.writeAndClear(protocol.Encode(v))
}

// WriteSimpleString is a convenience wrapper for WriteMessage.
func (c *Conn) WriteSimpleString(s string) error {
	return c.WriteMessage(protocol.SimpleString(s))
}

// WriteError is a convenience wrapper for WriteMessage.
func (c *Conn) WriteError(s string) error {
	return c.WriteMessage(protocol.SimpleError(s))
}

// WriteBulkBytes is a convenience wrapper for WriteMessage.
func (c *Conn) WriteBulkBytes(b []byte) error {
	return c.WriteMessage(protocol.BulkString(b))
}

// WriteBulkNull writes a null bulk string reply.
func (c *Conn) WriteBulkNull() error {
	return c.WriteMessage(protocol.NullBulkString())
}

func (c *Conn) writeAndClear(b []byte) error {
	c.writeBuf.Reset()
	c.writeBuf.Write(b)
	_, err := c.nc.Write(c.writeBuf.Bytes())
	c.writeBuf.Reset()
	if err != nil {
		return errors.Wrap(err, "write to socket")
	}
	return nil
}

// Write appends raw bytes to the write buffer without sending them;
// used for the snapshot transfer's non-standard framing. A no-op if
// the write gate is closed.
func (c *Conn) Write(b []byte) {
	if !c.writable {
		return
	}
	c.writeBuf.Write(b)
}

// Flush sends the accumulated raw write buffer and clears it.
func (c *Conn) Flush() error {
	if c.writeBuf.Len() == 0 {
		return nil
	}
	_, err := c.nc.Write(c.writeBuf.Bytes())
	c.writeBuf.Reset()
	if err != nil {
		return errors.Wrap(err, "flush to socket")
	}
	return nil
}

// WriteRaw writes bytes directly to the socket, bypassing both the
// write buffer and the writable gate. Used by the replication ledger
// fan-out, which is a one-way byte stream distinct from the normal
// request/reply framing a gate suppresses.
func (c *Conn) WriteRaw(b []byte) error {
	_, err := c.nc.Write(b)
	if err != nil {
		return errors.Wrap(err, "write raw to socket")
	}
	return nil
}

// Package command implements the command layer (C6): parsing a
// framed request array into a dispatch, executing it against the
// keyspace and server info, and classifying the result as one of
// None, Read, Write, Replicate.
package command

import (
	"strings"
	"unicode/utf8"

	"kvreplica/internal/conn"
	"kvreplica/internal/protocol"
	"kvreplica/internal/replication"
	"kvreplica/internal/serverinfo"
	"kvreplica/internal/store"
)

// Classification is the {None, Read, Write, Replicate} label attached
// to each command execution.
type Classification int

const (
	ClassNone Classification = iota
	ClassRead
	ClassWrite
	ClassReplicate
)

// Deps bundles the shared state a command execution can touch.
type Deps struct {
	Store    *store.Keyspace
	Info     *serverinfo.Info
	Snapshot func() []byte
}

// Execute parses v as a command array, executes it against c and
// deps, and reports the resulting classification. hs is the
// connection's master-side handshake tracker; pass nil on a
// connection that never receives REPLCONF/PSYNC (the replica inbound
// path).
func Execute(c *conn.Conn, v protocol.Value, deps *Deps, hs *replication.MasterHandshake) (Classification, error) {
	if v.Kind != protocol.KindArray {
		_ = c.WriteError("ERR expected array of args")
		return ClassNone, nil
	}
	args := v.Items
	if len(args) == 0 {
		_ = c.WriteError("ERR unknown or unexpected command")
		return ClassNone, nil
	}
	name, ok := asBytes(args[0])
	if !ok {
		_ = c.WriteError("ERR unknown or unexpected command")
		return ClassNone, nil
	}

	switch strings.ToUpper(string(name)) {
	case "PING":
		return execPing(c, args[1:])
	case "ECHO":
		return execEcho(c, args[1:])
	case "INFO":
		return execInfo(c, deps)
	case "GET":
		return execGet(c, args[1:], deps)
	case "SET":
		return execSet(c, args[1:], deps)
	case "REPLCONF":
		return execReplconf(c, args[1:], hs)
	case "PSYNC":
		return execPsync(c, args[1:], deps, hs)
	default:
		_ = c.WriteError("ERR unknown or unexpected command")
		return ClassNone, nil
	}
}

// asBytes extracts the raw bytes of a bulk or simple string argument.
func asBytes(v protocol.Value) ([]byte, bool) {
	switch v.Kind {
	case protocol.KindBulkString:
		return v.Bulk, true
	case protocol.KindSimpleString:
		return []byte(v.Str), true
	default:
		return nil, false
	}
}

func asUpperOption(v protocol.Value) (string, bool) {
	b, ok := asBytes(v)
	if !ok || !utf8.Valid(b) {
		return "", false
	}
	return strings.ToUpper(string(b)), true
}

func execPing(c *conn.Conn, args []protocol.Value) (Classification, error) {
	if len(args) > 0 {
		return ClassNone, c.WriteMessage(args[0])
	}
	return ClassNone, c.WriteSimpleString("PONG")
}

func execEcho(c *conn.Conn, args []protocol.Value) (Classification, error) {
	if len(args) != 1 {
		_ = c.WriteError("ERR wrong number of arguments for 'echo' command")
		return ClassNone, nil
	}
	return ClassNone, c.WriteMessage(args[0])
}

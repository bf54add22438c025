package command

import (
	"strconv"
	"time"

	"kvreplica/internal/conn"
	"kvreplica/internal/protocol"
	"kvreplica/internal/store"
)

// execSet implements the SET command's full decision table (spec.md
// §4.4.1). The NX/XX/GET combinations collapse onto one code path
// because Keyspace.ConditionalSet already reports both "was a
// precondition violated" and "what was the previous effective value"
// atomically.
func execSet(c *conn.Conn, args []protocol.Value, deps *Deps) (Classification, error) {
	if len(args) < 2 {
		_ = c.WriteError("ERR wrong number of arguments for 'set' command")
		return ClassNone, nil
	}
	key, ok := asBytes(args[0])
	if !ok {
		_ = c.WriteError("ERR syntax error")
		return ClassNone, nil
	}
	val, ok := asBytes(args[1])
	if !ok {
		_ = c.WriteError("ERR syntax error")
		return ClassNone, nil
	}

	var nx, xx, get, hasTTL bool
	var ttl time.Duration

	rest := args[2:]
	for i := 0; i < len(rest); i++ {
		opt, ok := asUpperOption(rest[i])
		if !ok {
			_ = c.WriteError("ERR invalid argument")
			return ClassNone, nil
		}
		switch opt {
		case "NX":
			nx = true
		case "XX":
			xx = true
		case "GET":
			get = true
		case "EX", "PX":
			i++
			if i >= len(rest) {
				_ = c.WriteError("ERR syntax error")
				return ClassNone, nil
			}
			numBytes, ok := asBytes(rest[i])
			if !ok {
				_ = c.WriteError("ERR value is not an integer or out of range")
				return ClassNone, nil
			}
			n, perr := strconv.ParseInt(string(numBytes), 10, 64)
			if perr != nil || n < 0 {
				_ = c.WriteError("ERR value is not an integer or out of range")
				return ClassNone, nil
			}
			if opt == "PX" {
				ttl = time.Duration(n) * time.Millisecond
			} else {
				ttl = time.Duration(n) * time.Second
			}
			hasTTL = true
		default:
			_ = c.WriteError("ERR syntax error")
			return ClassNone, nil
		}
	}

	if nx && xx {
		_ = c.WriteError("ERR syntax error")
		return ClassNone, nil
	}

	rec := store.Record{Value: val, CreatedAt: time.Now()}
	if hasTTL {
		rec.HasExpiry = true
		rec.TTL = ttl
	}

	prev, hadPrev, applied := deps.Store.ConditionalSet(string(key), rec, nx, xx)

	if !applied {
		return ClassNone, c.WriteBulkNull()
	}

	if get {
		if hadPrev {
			return ClassWrite, c.WriteBulkBytes(prev.Value)
		}
		return ClassWrite, c.WriteBulkNull()
	}

	return ClassWrite, c.WriteSimpleString("OK")
}

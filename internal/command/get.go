package command

import (
	"kvreplica/internal/conn"
	"kvreplica/internal/protocol"
)

// execGet classifies as Read unconditionally, even when the stored
// record has expired. Per spec.md §4.7, the lazy-expiry delete is
// explicitly never replicated, so modeling it as Write would have no
// observable effect beyond what Read already has here — see
// DESIGN.md's "expired-GET classification" entry.
func execGet(c *conn.Conn, args []protocol.Value, deps *Deps) (Classification, error) {
	if len(args) != 1 {
		_ = c.WriteError("ERR wrong number of arguments for 'get' command")
		return ClassNone, nil
	}
	key, ok := asBytes(args[0])
	if !ok {
		_ = c.WriteError("ERR syntax error")
		return ClassNone, nil
	}
	rec, ok := deps.Store.Get(string(key))
	if !ok {
		return ClassRead, c.WriteBulkNull()
	}
	return ClassRead, c.WriteBulkBytes(rec.Value)
}

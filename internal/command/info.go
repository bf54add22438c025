package command

import (
	"fmt"

	"kvreplica/internal/conn"
)

func execInfo(c *conn.Conn, deps *Deps) (Classification, error) {
	snap := deps.Info.Snapshot()
	body := fmt.Sprintf(
		"role:%s\r\nmaster_replid:%s\r\nmaster_repl_offset:%d\r\n",
		snap.Role, snap.ReplID, snap.MasterOffset,
	)
	return ClassNone, c.WriteBulkBytes([]byte(body))
}

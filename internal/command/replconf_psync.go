package command

import (
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"

	"kvreplica/internal/conn"
	"kvreplica/internal/protocol"
	"kvreplica/internal/replication"
)

func execReplconf(c *conn.Conn, args []protocol.Value, hs *replication.MasterHandshake) (Classification, error) {
	if hs == nil || len(args) < 1 {
		_ = c.WriteError("ERR unknown or unexpected command")
		return ClassNone, nil
	}
	sub, ok := asUpperOption(args[0])
	if !ok {
		_ = c.WriteError("ERR syntax error")
		return ClassNone, nil
	}
	switch sub {
	case "LISTENING-PORT":
		if len(args) != 2 {
			_ = c.WriteError("ERR syntax error")
			return ClassNone, nil
		}
		portBytes, ok := asBytes(args[1])
		if !ok {
			_ = c.WriteError("ERR syntax error")
			return ClassNone, nil
		}
		port, perr := strconv.Atoi(string(portBytes))
		if perr != nil {
			_ = c.WriteError("ERR invalid listening-port")
			return ClassNone, nil
		}
		if err := hs.OnListeningPort(); err != nil {
			_ = c.WriteError("ERR " + err.Error())
			return ClassNone, nil
		}
		logrus.WithField("listening_port", port).Debug("replica announced listening port")
		return ClassNone, c.WriteSimpleString("OK")

	case "CAPA":
		if err := hs.OnCapa(); err != nil {
			_ = c.WriteError("ERR " + err.Error())
			return ClassNone, nil
		}
		return ClassNone, c.WriteSimpleString("OK")

	default:
		_ = c.WriteError("ERR unknown REPLCONF subcommand")
		return ClassNone, nil
	}
}

func execPsync(c *conn.Conn, args []protocol.Value, deps *Deps, hs *replication.MasterHandshake) (Classification, error) {
	if hs == nil || len(args) != 2 {
		_ = c.WriteError("ERR unknown or unexpected command")
		return ClassNone, nil
	}
	if err := hs.OnPsync(); err != nil {
		_ = c.WriteError("ERR " + err.Error())
		return ClassNone, nil
	}

	snap := deps.Info.Snapshot()
	resp := fmt.Sprintf("FULLRESYNC %s %d", snap.ReplID, snap.MasterOffset)
	if err := c.WriteMessage(protocol.BulkString([]byte(resp))); err != nil {
		return ClassNone, err
	}

	data := deps.Snapshot()
	header := fmt.Sprintf("$%d\r\n", len(data))
	c.Write([]byte(header))
	c.Write(data)
	if err := c.Flush(); err != nil {
		return ClassNone, err
	}
	hs.MarkSnapshotSent()

	hs.MarkComplete()
	return ClassReplicate, nil
}

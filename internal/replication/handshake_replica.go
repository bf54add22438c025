package replication

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"kvreplica/internal/conn"
	"kvreplica/internal/protocol"
)

// ReplicaState is the replica-side (initiator) handshake state.
type ReplicaState int

const (
	ReplicaInitial ReplicaState = iota
	ReplicaPing
	ReplicaNotifyPort
	ReplicaNotifyCapa
	ReplicaRequestPsync
	ReplicaFullResync
	ReplicaReplicationStart
)

// ProtocolError is the sink state: any handshake mismatch transitions
// here and the connection is closed.
type ProtocolError struct {
	Msg string
}

func (e *ProtocolError) Error() string { return "replication handshake protocol error: " + e.Msg }

// HandshakeResult carries what the replica-side handshake learned
// from the master.
type HandshakeResult struct {
	Snapshot      []byte
	MasterReplID  string
	MasterOffset  int64
}

// RunReplicaHandshake drives the replica-side initiator state machine
// to completion over c: PING, REPLCONF listening-port, REPLCONF capa
// psync2, PSYNC, then the snapshot payload. Any unexpected reply
// transitions to ProtocolError and the connection should be closed by
// the caller.
func RunReplicaHandshake(c *conn.Conn, listeningPort int) (*HandshakeResult, error) {
	state := ReplicaInitial
	result := &HandshakeResult{}

	for {
		switch state {
		case ReplicaInitial:
			state = ReplicaPing

		case ReplicaPing:
			if err := c.WriteMessage(protocol.Array([]protocol.Value{
				protocol.BulkString([]byte("PING")),
			})); err != nil {
				return nil, err
			}
			if err := expectSimpleString(c, "PONG"); err != nil {
				return nil, err
			}
			state = ReplicaNotifyPort

		case ReplicaNotifyPort:
			port := strconv.Itoa(listeningPort)
			if err := c.WriteMessage(protocol.Array([]protocol.Value{
				protocol.BulkString([]byte("REPLCONF")),
				protocol.BulkString([]byte("listening-port")),
				protocol.BulkString([]byte(port)),
			})); err != nil {
				return nil, err
			}
			if err := expectSimpleString(c, "OK"); err != nil {
				return nil, err
			}
			state = ReplicaNotifyCapa

		case ReplicaNotifyCapa:
			if err := c.WriteMessage(protocol.Array([]protocol.Value{
				protocol.BulkString([]byte("REPLCONF")),
				protocol.BulkString([]byte("capa")),
				protocol.BulkString([]byte("psync2")),
			})); err != nil {
				return nil, err
			}
			if err := expectSimpleString(c, "OK"); err != nil {
				return nil, err
			}
			state = ReplicaRequestPsync

		case ReplicaRequestPsync:
			if err := c.WriteMessage(protocol.Array([]protocol.Value{
				protocol.BulkString([]byte("PSYNC")),
				protocol.BulkString([]byte("?")),
				protocol.BulkString([]byte("-1")),
			})); err != nil {
				return nil, err
			}
			v, _, err := c.ReadMessage()
			if err != nil {
				return nil, err
			}
			text, ok := bulkText(v)
			if !ok {
				return nil, &ProtocolError{Msg: "expected bulk FULLRESYNC reply"}
			}
			replid, offset, err := parseFullResync(text)
			if err != nil {
				return nil, &ProtocolError{Msg: err.Error()}
			}
			result.MasterReplID = replid
			result.MasterOffset = offset
			state = ReplicaFullResync

		case ReplicaFullResync:
			data, err := c.ReadRDB()
			if err != nil {
				return nil, err
			}
			result.Snapshot = data
			state = ReplicaReplicationStart

		case ReplicaReplicationStart:
			return result, nil
		}
	}
}

func expectSimpleString(c *conn.Conn, want string) error {
	v, _, err := c.ReadMessage()
	if err != nil {
		return err
	}
	if v.Kind != protocol.KindSimpleString || v.Str != want {
		return &ProtocolError{Msg: "expected +" + want}
	}
	return nil
}

func bulkText(v protocol.Value) (string, bool) {
	switch v.Kind {
	case protocol.KindBulkString:
		return string(v.Bulk), true
	case protocol.KindSimpleString:
		return v.Str, true
	default:
		return "", false
	}
}

func parseFullResync(text string) (replid string, offset int64, err error) {
	const prefix = "FULLRESYNC "
	if !strings.HasPrefix(text, prefix) {
		return "", 0, errors.New("reply is not a FULLRESYNC response")
	}
	fields := strings.Fields(text)
	if len(fields) != 3 {
		return "", 0, errors.New("malformed FULLRESYNC response")
	}
	n, perr := strconv.ParseInt(fields[2], 10, 64)
	if perr != nil {
		return "", 0, errors.New("malformed FULLRESYNC offset")
	}
	return fields[1], n, nil
}

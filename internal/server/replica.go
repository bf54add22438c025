package server

import (
	"context"
	"net"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"kvreplica/internal/command"
	"kvreplica/internal/conn"
	"kvreplica/internal/protocol"
	"kvreplica/internal/replication"
)

// runReplicaClient dials the configured master, runs the replica-side
// handshake to completion, and then streams the ongoing write feed.
// A failed dial or handshake is logged and not retried: spec.md scopes
// replication to a single boot-time attempt.
func (s *Server) runReplicaClient(ctx context.Context) {
	log := logrus.WithField("master_addr", s.config.ReplicaOf)

	nc, err := net.Dial("tcp", s.config.ReplicaOf)
	if err != nil {
		log.WithError(err).Error("failed to connect to master")
		return
	}
	defer nc.Close()

	c := conn.New(nc)
	result, err := replication.RunReplicaHandshake(c, s.config.Port)
	if err != nil {
		log.WithError(err).Error("replication handshake failed")
		return
	}

	s.info.SetReplID(result.MasterReplID)
	s.info.SetMasterOffset(result.MasterOffset)
	log.WithField("master_replid", result.MasterReplID).
		WithField("master_offset", result.MasterOffset).
		Info("replication handshake complete, streaming from master")

	s.replicaInboundLoop(ctx, c)
}

// replicaInboundLoop applies the master's write stream to the local
// keyspace. The write gate stays closed by default, since applied
// commands are not replies to a client; it opens only to emit the
// REPLCONF ACK that GETACK requests, a dispatcher-level exception that
// command.Execute never sees (hs is nil here: this connection never
// receives REPLCONF listening-port/capa/PSYNC).
func (s *Server) replicaInboundLoop(ctx context.Context, c *conn.Conn) {
	log := logrus.WithField("master_addr", s.config.ReplicaOf)
	c.CloseWrite()

	deps := &command.Deps{
		Store: s.store,
		Info:  s.info,
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		v, raw, err := c.ReadMessage()
		if err != nil {
			if err != conn.ErrConnectionClosed {
				log.WithError(err).Warn("lost connection to master")
			}
			return
		}

		if isGetAck(v) {
			offset := s.info.AddMasterOffset(len(raw))
			c.OpenWrite()
			_ = c.WriteMessage(protocol.Array([]protocol.Value{
				protocol.BulkString([]byte("REPLCONF")),
				protocol.BulkString([]byte("ACK")),
				protocol.BulkString([]byte(strconv.FormatInt(offset, 10))),
			}))
			c.CloseWrite()
			continue
		}

		if _, err := command.Execute(c, v, deps, nil); err != nil {
			log.WithError(err).Warn("error applying replicated command")
			return
		}
		s.info.AddMasterOffset(len(raw))
	}
}

func isGetAck(v protocol.Value) bool {
	if v.Kind != protocol.KindArray || len(v.Items) < 2 {
		return false
	}
	name, ok := bulkUpper(v.Items[0])
	if !ok || name != "REPLCONF" {
		return false
	}
	sub, ok := bulkUpper(v.Items[1])
	return ok && sub == "GETACK"
}

func bulkUpper(v protocol.Value) (string, bool) {
	switch v.Kind {
	case protocol.KindBulkString:
		return strings.ToUpper(string(v.Bulk)), true
	case protocol.KindSimpleString:
		return strings.ToUpper(v.Str), true
	default:
		return "", false
	}
}

package replication

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kvreplica/internal/conn"
)

func pipeConn(t *testing.T) (*conn.Conn, net.Conn) {
	t.Helper()
	client, server := net.Pipe()
	return conn.New(server), client
}

func TestLedgerFansOutInOrder(t *testing.T) {
	l := New()
	c, peer := pipeConn(t)
	defer peer.Close()
	l.AddReplica(c, "127.0.0.1:1234")

	received := make(chan []byte, 2)
	go func() {
		buf := make([]byte, 64)
		for i := 0; i < 2; i++ {
			n, err := peer.Read(buf)
			if err != nil {
				return
			}
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			received <- chunk
		}
	}()

	l.AddWrite([]byte("*3\r\n$3\r\nSET\r\n$1\r\na\r\n$1\r\n1\r\n"))
	l.AddWrite([]byte("*3\r\n$3\r\nSET\r\n$1\r\nb\r\n$1\r\n2\r\n"))

	first := waitForChunk(t, received)
	second := waitForChunk(t, received)
	assert.Equal(t, "*3\r\n$3\r\nSET\r\n$1\r\na\r\n$1\r\n1\r\n", string(first))
	assert.Equal(t, "*3\r\n$3\r\nSET\r\n$1\r\nb\r\n$1\r\n2\r\n", string(second))
	assert.Equal(t, l.Len(), len(first)+len(second))
}

func waitForChunk(t *testing.T, ch chan []byte) []byte {
	t.Helper()
	select {
	case b := <-ch:
		return b
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for replica to receive bytes")
		return nil
	}
}

func TestLedgerDropsReplicaOnWriteFailure(t *testing.T) {
	l := New()
	c, peer := pipeConn(t)
	peer.Close() // force the next write on c to fail
	l.AddReplica(c, "127.0.0.1:1234")
	require.Len(t, l.Replicas(), 1)

	l.AddWrite([]byte("*1\r\n$4\r\nPING\r\n"))

	assert.Empty(t, l.Replicas())
}

func TestAddReplicaCapturesStartOffset(t *testing.T) {
	l := New()
	l.AddWrite([]byte("12345"))

	c, peer := pipeConn(t)
	defer peer.Close()
	defer c.Close()
	r := l.AddReplica(c, "addr")
	assert.Equal(t, 5, r.StartOffset)
	assert.Equal(t, 5, r.LastOffset)
}

// Package replication implements the replication ledger (C4) and the
// master/replica handshake state machines (C7).
package replication

import (
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"kvreplica/internal/conn"
)

// Replica is a framed connection plus its delivery offsets into the
// ledger. Invariant: StartOffset <= LastOffset <= ledger length.
type Replica struct {
	ID          string
	Conn        *conn.Conn
	Addr        string
	StartOffset int
	LastOffset  int
}

// Ledger holds the cumulative write byte-stream and the attached
// replica descriptors. A single mutex serializes both appends and
// fan-out: ordering matters more than parallelism here (spec.md §4.5).
type Ledger struct {
	mu       sync.Mutex
	buf      []byte
	replicas []*Replica
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{}
}

// Len returns the current ledger length.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buf)
}

// AddReplica registers c as a new replica, attached at the ledger's
// current length.
func (l *Ledger) AddReplica(c *conn.Conn, addr string) *Replica {
	l.mu.Lock()
	defer l.mu.Unlock()
	r := &Replica{
		ID:          uuid.NewString(),
		Conn:        c,
		Addr:        addr,
		StartOffset: len(l.buf),
		LastOffset:  len(l.buf),
	}
	l.replicas = append(l.replicas, r)
	return r
}

// AddWrite appends raw (the exact bytes of a client request that
// executed as a Write) to the ledger, then fans the new bytes out to
// every attached replica in order. A replica whose write fails is
// dropped; the client that triggered the write is unaffected.
func (l *Ledger) AddWrite(raw []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buf = append(l.buf, raw...)

	alive := l.replicas[:0]
	for _, r := range l.replicas {
		chunk := l.buf[r.LastOffset:len(l.buf)]
		if err := r.Conn.WriteRaw(chunk); err != nil {
			logrus.WithError(errors.Wrap(err, "write to replica")).WithField("replica_id", r.ID).Warn("dropping replica: write failed")
			continue
		}
		r.LastOffset = len(l.buf)
		alive = append(alive, r)
	}
	l.replicas = alive
}

// Replicas returns a snapshot of the currently attached replicas.
func (l *Ledger) Replicas() []*Replica {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*Replica, len(l.replicas))
	copy(out, l.replicas)
	return out
}

package server

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"kvreplica/internal/command"
	"kvreplica/internal/conn"
	"kvreplica/internal/replication"
	"kvreplica/internal/serverinfo"
	"kvreplica/internal/store"
)

// snapshotPlaceholder stands in for a real point-in-time dump: the
// snapshot payload is opaque to this system (spec.md §6), so a fixed
// marker blob round-trips through PSYNC/FULLRESYNC without needing a
// real serializer.
var snapshotPlaceholder = []byte("kvreplica-empty-snapshot")

// Server holds everything one process needs to serve clients and, if
// configured as a replica, to mirror a master's write stream.
type Server struct {
	config *Config

	store   *store.Keyspace
	info    *serverinfo.Info
	ledger  *replication.Ledger
	connSem *semaphore.Weighted

	listener    net.Listener
	connections sync.Map // net.Conn -> struct{}, tracked for shutdown

	wg           sync.WaitGroup
	shutdownOnce sync.Once
	shutdownChan chan struct{}
}

// New builds a Server. The process starts as a replica iff
// cfg.ReplicaOf is set.
func New(cfg *Config) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var info *serverinfo.Info
	if cfg.ReplicaOf != "" {
		info = serverinfo.NewReplica(cfg.ReplicaOf)
	} else {
		info = serverinfo.NewMaster()
	}

	return &Server{
		config:       cfg,
		store:        store.New(),
		info:         info,
		ledger:       replication.New(),
		connSem:      semaphore.NewWeighted(int64(cfg.MaxConnections)),
		shutdownChan: make(chan struct{}),
	}
}

// Run binds the listener, starts replica bootstrap if configured, and
// accepts connections until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	s.listener = listener
	logrus.WithField("addr", addr).WithField("role", s.info.Snapshot().Role).Info("kvreplica listening")

	if s.config.ReplicaOf != "" {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runReplicaClient(ctx)
		}()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.acceptLoop(ctx)
	}()

	<-ctx.Done()
	s.Shutdown()
	return nil
}

func (s *Server) acceptLoop(ctx context.Context) {
	for {
		nc, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.shutdownChan:
				return
			default:
			}
			select {
			case <-ctx.Done():
				return
			default:
			}
			logrus.WithError(err).Warn("accept failed")
			continue
		}

		if err := s.connSem.Acquire(ctx, 1); err != nil {
			nc.Close()
			return
		}

		s.connections.Store(nc, struct{}{})
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.connSem.Release(1)
			defer s.connections.Delete(nc)
			s.handleConnection(nc)
		}()
	}
}

// handleConnection is the master-side per-connection dispatch loop: it
// frames requests off nc, executes them, and on a Write classification
// appends the original request bytes to the replication ledger. A
// Replicate classification hands the connection to the ledger as a
// new replica and the loop exits, leaving the socket open for fan-out.
func (s *Server) handleConnection(nc net.Conn) {
	addr := nc.RemoteAddr().String()
	log := logrus.WithField("remote_addr", addr).WithField("connection_id", uuid.NewString())
	c := conn.New(nc)
	hs := replication.NewMasterHandshake()
	deps := &command.Deps{
		Store:    s.store,
		Info:     s.info,
		Snapshot: func() []byte { return snapshotPlaceholder },
	}

	handedOff := false
	defer func() {
		if !handedOff {
			nc.Close()
		}
	}()

	for {
		v, raw, err := c.ReadMessage()
		if err != nil {
			if err != conn.ErrConnectionClosed {
				log.WithError(err).Debug("connection read error")
			}
			return
		}

		class, err := command.Execute(c, v, deps, hs)
		if err != nil {
			log.WithError(err).Debug("connection write error")
			return
		}

		switch class {
		case command.ClassWrite:
			s.ledger.AddWrite(raw)
		case command.ClassReplicate:
			s.ledger.AddReplica(c, addr)
			handedOff = true
			log.Info("replica attached")
			return
		}
	}
}

// Shutdown closes the listener and every tracked connection, then
// waits (bounded) for in-flight goroutines to exit.
func (s *Server) Shutdown() {
	s.shutdownOnce.Do(func() {
		close(s.shutdownChan)
		if s.listener != nil {
			s.listener.Close()
		}

		s.connections.Range(func(key, _ interface{}) bool {
			key.(net.Conn).Close()
			return true
		})

		done := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(5 * time.Second):
			logrus.Warn("shutdown timeout reached, forcing exit")
		}
	})
}

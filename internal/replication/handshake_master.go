package replication

import "github.com/pkg/errors"

// MasterState is the master-side (acceptor) handshake state.
type MasterState int

const (
	MasterAwaitingPort MasterState = iota
	MasterAwaitingCapa
	MasterAwaitingPsync
	MasterSentFullResync
	MasterSentSnapshot
	MasterReplicationComplete
)

// MasterHandshake tracks one connection's progress through the
// master-side acceptor state machine. It is entered when REPLCONF
// listening-port is received in the command dispatcher.
type MasterHandshake struct {
	state MasterState
}

// NewMasterHandshake returns a handshake waiting for REPLCONF
// listening-port.
func NewMasterHandshake() *MasterHandshake {
	return &MasterHandshake{state: MasterAwaitingPort}
}

// OnListeningPort advances AwaitingPort -> AwaitingCapa.
func (m *MasterHandshake) OnListeningPort() error {
	if m.state != MasterAwaitingPort {
		return errors.New("REPLCONF listening-port received out of order")
	}
	m.state = MasterAwaitingCapa
	return nil
}

// OnCapa advances AwaitingCapa -> AwaitingPsync.
func (m *MasterHandshake) OnCapa() error {
	if m.state != MasterAwaitingCapa {
		return errors.New("REPLCONF capa received out of order")
	}
	m.state = MasterAwaitingPsync
	return nil
}

// OnPsync advances AwaitingPsync -> SentFullResync.
func (m *MasterHandshake) OnPsync() error {
	if m.state != MasterAwaitingPsync {
		return errors.New("PSYNC received out of order")
	}
	m.state = MasterSentFullResync
	return nil
}

// MarkSnapshotSent advances SentFullResync -> SentSnapshot, once the
// snapshot bytes have been flushed.
func (m *MasterHandshake) MarkSnapshotSent() {
	m.state = MasterSentSnapshot
}

// MarkComplete advances SentSnapshot -> ReplicationComplete, as the
// connection is classified Replicate.
func (m *MasterHandshake) MarkComplete() {
	m.state = MasterReplicationComplete
}

// State returns the current state, for tests and logging.
func (m *MasterHandshake) State() MasterState {
	return m.state
}

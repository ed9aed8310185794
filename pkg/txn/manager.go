package txn

import (
	"fmt"
	"sync"

	"github.com/gqlite/gqlite/pkg/log"
)

// UnsupportedError marks features the parser accepts but the runtime does
// not implement, such as isolation levels beyond READ COMMITTED.
type UnsupportedError struct {
	Feature string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("unsupported feature: %s", e.Feature)
}

// Manager tracks live transactions and owns the WAL.
type Manager struct {
	mu     sync.Mutex
	active map[ID]*Transaction
	wal    *WAL
}

// NewManager opens the WAL in dataDir and returns a transaction manager.
func NewManager(dataDir string) (*Manager, error) {
	wal, err := OpenWAL(dataDir)
	if err != nil {
		return nil, err
	}
	return &Manager{active: make(map[ID]*Transaction), wal: wal}, nil
}

// Begin starts a transaction. Only READ COMMITTED is accepted; other
// isolation levels fail with an UnsupportedError.
func (m *Manager) Begin(isolation IsolationLevel, mode AccessMode, sessionID string) (*Transaction, error) {
	if isolation == "" {
		isolation = ReadCommitted
	}
	if mode == "" {
		mode = ReadWrite
	}
	if isolation != ReadCommitted {
		return nil, &UnsupportedError{
			Feature: fmt.Sprintf("isolation level %s (only %s is implemented)", isolation, ReadCommitted),
		}
	}

	t := NewTransaction(isolation, mode, sessionID)
	m.mu.Lock()
	m.active[t.ID] = t
	m.mu.Unlock()

	if err := m.wal.Append(WALRecord{
		TxnID:       t.ID,
		OpType:      OpBegin,
		Description: "START TRANSACTION",
	}); err != nil {
		m.mu.Lock()
		delete(m.active, t.ID)
		m.mu.Unlock()
		return nil, err
	}

	log.WithTxnID(uint64(t.ID)).Debug().Str("session_id", sessionID).Msg("transaction started")
	return t, nil
}

// BeginImplicit starts the single-statement transaction wrapped around a
// statement executed outside an explicit transaction.
func (m *Manager) BeginImplicit(sessionID string) (*Transaction, error) {
	t, err := m.Begin(ReadCommitted, ReadWrite, sessionID)
	if err != nil {
		return nil, err
	}
	t.Implicit = true
	return t, nil
}

// LogOperation appends the statement record to the WAL and records it on the
// transaction. This is the first side-effectful step of every executor.
func (m *Manager) LogOperation(t *Transaction, op OperationType, description string) error {
	if !t.IsActive() {
		return fmt.Errorf("transaction %s is %s, not active", t.ID, t.Status)
	}
	seq := t.RecordOperation(op, description)
	return m.wal.Append(WALRecord{
		TxnID:       t.ID,
		Seq:         seq,
		OpType:      op,
		Description: description,
	})
}

// LogUndo durably records an undo operation and pushes it on the
// transaction's undo stack.
func (m *Manager) LogUndo(t *Transaction, undo UndoOp) error {
	if undo.Kind == UndoNone {
		return nil
	}
	if err := m.wal.Append(WALRecord{
		TxnID:       t.ID,
		Seq:         t.Sequence,
		OpType:      OpUndo,
		Description: string(undo.Kind),
		Undo:        &undo,
	}); err != nil {
		return err
	}
	t.PushUndo(undo)
	return nil
}

// Commit appends the commit marker, marks the transaction committed, and
// discards its undo log.
func (m *Manager) Commit(t *Transaction) error {
	if !t.IsActive() {
		return fmt.Errorf("transaction %s is %s, not active", t.ID, t.Status)
	}
	if err := m.wal.Append(WALRecord{
		TxnID:       t.ID,
		Seq:         t.Sequence,
		OpType:      OpCommit,
		Description: "COMMIT",
	}); err != nil {
		return err
	}
	t.markCommitted()
	m.forget(t.ID)
	log.WithTxnID(uint64(t.ID)).Debug().Msg("transaction committed")
	return nil
}

// Rollback replays the undo log in reverse against storage, appends the
// rollback marker, and marks the transaction rolled back.
func (m *Manager) Rollback(t *Transaction, store GraphStore) error {
	if !t.IsActive() {
		return fmt.Errorf("transaction %s is %s, not active", t.ID, t.Status)
	}
	undo := t.UndoLog()
	for i := len(undo) - 1; i >= 0; i-- {
		if err := undo[i].Apply(store); err != nil {
			t.markFailed(err.Error())
			m.forget(t.ID)
			return fmt.Errorf("rollback of %s failed: %w", t.ID, err)
		}
	}
	if err := m.wal.Append(WALRecord{
		TxnID:       t.ID,
		Seq:         t.Sequence,
		OpType:      OpRollback,
		Description: "ROLLBACK",
	}); err != nil {
		return err
	}
	t.markRolledBack()
	m.forget(t.ID)
	log.WithTxnID(uint64(t.ID)).Debug().Int("undone", len(undo)).Msg("transaction rolled back")
	return nil
}

// Fail marks a transaction failed after its undo has been handled.
func (m *Manager) Fail(t *Transaction, reason string) {
	t.markFailed(reason)
	m.forget(t.ID)
}

func (m *Manager) forget(id ID) {
	m.mu.Lock()
	delete(m.active, id)
	m.mu.Unlock()
}

// ActiveCount returns the number of live transactions.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// Close closes the WAL.
func (m *Manager) Close() error {
	return m.wal.Close()
}

// Recover scans the WAL from a previous run and reverse-applies the undo
// operations of every transaction that reached neither COMMIT nor ROLLBACK.
// Recovery is idempotent: undo application restores prior state, so running
// it twice converges. It must run before the manager starts appending.
func Recover(dataDir string, store GraphStore) (int, error) {
	records, err := ReadWAL(dataDir)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}

	finished := make(map[ID]bool)
	undoByTxn := make(map[ID][]UndoOp)
	var order []ID
	for _, rec := range records {
		switch rec.OpType {
		case OpCommit, OpRollback:
			finished[rec.TxnID] = true
		case OpUndo:
			if rec.Undo != nil {
				if _, seen := undoByTxn[rec.TxnID]; !seen {
					order = append(order, rec.TxnID)
				}
				undoByTxn[rec.TxnID] = append(undoByTxn[rec.TxnID], *rec.Undo)
			}
		}
	}

	logger := log.WithComponent("recovery")
	recovered := 0
	// Later transactions undo first.
	for i := len(order) - 1; i >= 0; i-- {
		id := order[i]
		if finished[id] {
			continue
		}
		ops := undoByTxn[id]
		for j := len(ops) - 1; j >= 0; j-- {
			if err := ops[j].Apply(store); err != nil {
				return recovered, fmt.Errorf("recovery of %s failed: %w", id, err)
			}
		}
		recovered++
		logger.Info().Uint64("txn_id", uint64(id)).Int("undone", len(ops)).
			Msg("unfinished transaction rolled back during recovery")
	}
	return recovered, nil
}

package txn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gqlite/gqlite/pkg/kv"
	"github.com/gqlite/gqlite/pkg/storage"
	"github.com/gqlite/gqlite/pkg/types"
)

func newTestStore(t *testing.T) *storage.Manager {
	t.Helper()
	m, err := storage.NewManager(kv.NewMemoryDriver())
	require.NoError(t, err)
	return m
}

func seedGraph(t *testing.T, store *storage.Manager, path string) {
	t.Helper()
	g := types.NewGraph()
	require.NoError(t, g.AddNode(&types.Node{
		ID: "n1", Labels: []string{"Person"},
		Properties: map[string]types.Value{"age": types.NewNumber(40)},
	}))
	require.NoError(t, store.SaveGraph(path, g))
}

func TestBeginRejectsUnsupportedIsolation(t *testing.T) {
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)
	defer m.Close()

	for _, level := range []IsolationLevel{ReadUncommitted, RepeatableRead, Serializable} {
		_, err := m.Begin(level, ReadWrite, "sess")
		require.Error(t, err)
		var unsupported *UnsupportedError
		assert.ErrorAs(t, err, &unsupported)
	}

	tx, err := m.Begin(ReadCommitted, ReadWrite, "sess")
	require.NoError(t, err)
	assert.True(t, tx.IsActive())
}

func TestSequenceAdvancesOnDataOps(t *testing.T) {
	tx := NewTransaction(ReadCommitted, ReadWrite, "s")
	assert.Equal(t, uint64(1), tx.RecordOperation(OpInsert, "insert"))
	assert.Equal(t, uint64(1), tx.RecordOperation(OpMatch, "read"))
	assert.Equal(t, uint64(2), tx.RecordOperation(OpSet, "set"))
	assert.Len(t, tx.Operations, 3)
}

func TestCommitDiscardsUndo(t *testing.T) {
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)
	defer m.Close()

	tx, err := m.Begin(ReadCommitted, ReadWrite, "sess")
	require.NoError(t, err)
	require.NoError(t, m.LogUndo(tx, UndoOp{
		Kind: UndoDeleteNode, GraphPath: "/s/g", NodeID: "n1",
	}))
	require.NoError(t, m.Commit(tx))

	assert.Equal(t, StatusCommitted, tx.Status)
	assert.Empty(t, tx.UndoLog())
	assert.Equal(t, 0, m.ActiveCount())
}

func TestRollbackRestoresGraph(t *testing.T) {
	dir := t.TempDir()
	store := newTestStore(t)
	seedGraph(t, store, "/s/g")

	m, err := NewManager(dir)
	require.NoError(t, err)
	defer m.Close()

	tx, err := m.Begin(ReadCommitted, ReadWrite, "sess")
	require.NoError(t, err)

	// Simulate a SET: mutate and record the old state as undo.
	g, err := store.GetGraph("/s/g")
	require.NoError(t, err)
	require.NoError(t, m.LogUndo(tx, UndoOp{
		Kind:          UndoUpdateNode,
		GraphPath:     "/s/g",
		NodeID:        "n1",
		OldProperties: map[string]types.Value{"age": types.NewNumber(40)},
		OldLabels:     []string{"Person"},
	}))
	g.Nodes["n1"].SetProperty("age", types.NewNumber(41))
	require.NoError(t, store.SaveGraph("/s/g", g))

	require.NoError(t, m.Rollback(tx, store))

	restored, err := store.GetGraph("/s/g")
	require.NoError(t, err)
	assert.Equal(t, float64(40), restored.Nodes["n1"].Property("age").Number)
	assert.Equal(t, StatusRolledBack, tx.Status)
}

func TestBatchUndoReversesInOrder(t *testing.T) {
	store := newTestStore(t)
	g := types.NewGraph()
	require.NoError(t, store.SaveGraph("/s/g", g))

	// Insertion of a node then an edge undone as a batch: the edge delete
	// must run before the node delete.
	loaded, err := store.GetGraph("/s/g")
	require.NoError(t, err)
	require.NoError(t, loaded.AddNode(&types.Node{ID: "a"}))
	require.NoError(t, loaded.AddNode(&types.Node{ID: "b"}))
	require.NoError(t, loaded.AddEdge(&types.Edge{ID: "e", From: "a", To: "b", Label: "X"}))
	require.NoError(t, store.SaveGraph("/s/g", loaded))

	batch := BatchUndo([]UndoOp{
		{Kind: UndoDeleteNode, GraphPath: "/s/g", NodeID: "a"},
		{Kind: UndoDeleteNode, GraphPath: "/s/g", NodeID: "b"},
		{Kind: UndoDeleteEdge, GraphPath: "/s/g", EdgeID: "e"},
	})
	require.NoError(t, batch.Apply(store))

	after, err := store.GetGraph("/s/g")
	require.NoError(t, err)
	assert.Equal(t, 0, after.NodeCount())
	assert.Equal(t, 0, after.EdgeCount())
}

func TestWALAppendAndRead(t *testing.T) {
	dir := t.TempDir()
	wal, err := OpenWAL(dir)
	require.NoError(t, err)

	require.NoError(t, wal.Append(WALRecord{TxnID: 1, Seq: 1, OpType: OpInsert, Description: "INSERT"}))
	require.NoError(t, wal.Append(WALRecord{TxnID: 1, Seq: 1, OpType: OpCommit, Description: "COMMIT"}))
	require.NoError(t, wal.Close())

	records, err := ReadWAL(dir)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, OpInsert, records[0].OpType)
	assert.Equal(t, OpCommit, records[1].OpType)
}

func TestRecoveryRollsBackUnfinishedTransactions(t *testing.T) {
	dir := t.TempDir()
	store := newTestStore(t)
	seedGraph(t, store, "/s/g")

	m, err := NewManager(dir)
	require.NoError(t, err)

	// Committed transaction: must NOT be undone at recovery.
	committed, err := m.Begin(ReadCommitted, ReadWrite, "sess")
	require.NoError(t, err)
	require.NoError(t, m.LogOperation(committed, OpSet, "SET age=41"))
	g, err := store.GetGraph("/s/g")
	require.NoError(t, err)
	require.NoError(t, m.LogUndo(committed, UndoOp{
		Kind:          UndoUpdateNode,
		GraphPath:     "/s/g",
		NodeID:        "n1",
		OldProperties: map[string]types.Value{"age": types.NewNumber(40)},
		OldLabels:     []string{"Person"},
	}))
	g.Nodes["n1"].SetProperty("age", types.NewNumber(41))
	require.NoError(t, store.SaveGraph("/s/g", g))
	require.NoError(t, m.Commit(committed))

	// Unfinished transaction: crashed before COMMIT.
	crashed, err := m.Begin(ReadCommitted, ReadWrite, "sess")
	require.NoError(t, err)
	require.NoError(t, m.LogOperation(crashed, OpSet, "SET age=99"))
	g2, err := store.GetGraph("/s/g")
	require.NoError(t, err)
	require.NoError(t, m.LogUndo(crashed, UndoOp{
		Kind:          UndoUpdateNode,
		GraphPath:     "/s/g",
		NodeID:        "n1",
		OldProperties: map[string]types.Value{"age": types.NewNumber(41)},
		OldLabels:     []string{"Person"},
	}))
	g2.Nodes["n1"].SetProperty("age", types.NewNumber(99))
	require.NoError(t, store.SaveGraph("/s/g", g2))
	require.NoError(t, m.Close()) // crash: no commit marker

	recovered, err := Recover(dir, store)
	require.NoError(t, err)
	assert.Equal(t, 1, recovered)

	after, err := store.GetGraph("/s/g")
	require.NoError(t, err)
	assert.Equal(t, float64(41), after.Nodes["n1"].Property("age").Number,
		"committed work survives, unfinished work is rolled back")

	// Recovery is idempotent.
	recovered, err = Recover(dir, store)
	require.NoError(t, err)
	assert.Equal(t, 1, recovered)
	after, err = store.GetGraph("/s/g")
	require.NoError(t, err)
	assert.Equal(t, float64(41), after.Nodes["n1"].Property("age").Number)
}

func TestReadOnlyTransaction(t *testing.T) {
	tx := NewTransaction(ReadCommitted, ReadOnly, "s")
	assert.True(t, tx.IsReadOnly())
}

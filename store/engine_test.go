package store

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/txn-kv-store/common"
	"github.com/txn-kv-store/metric"
)

func newTestEngine() (*Engine, *test.Hook) {
	logger, hook := test.NewNullLogger()
	return NewEngine(logger), hook
}

// commit stages and commits key=value for client in one transaction.
func commit(t *testing.T, e *Engine, client string, txn int64, kv map[string]string) {
	t.Helper()
	for k, v := range kv {
		require.Truef(t, e.Write(client, k, v, txn), "write %s in txn %d", k, txn)
	}
	require.True(t, e.TryCommit(client, txn))
	e.DoCommit(client, txn)
}

func TestReadNeverWrittenKeyIsNotFound(t *testing.T) {
	e, _ := newTestEngine()

	res := e.Read("c1", "missing", 1)
	assert.Equal(t, ReadResult{Success: true, Found: false}, res)
	assert.Empty(t, e.Snapshot())
}

func TestReadEmptyValueIsFound(t *testing.T) {
	e, _ := newTestEngine()
	commit(t, e, "c1", 1, map[string]string{"x": ""})

	res := e.Read("c2", "x", 2)
	assert.Equal(t, ReadResult{Success: true, Value: "", Found: true}, res)
}

func TestReadSeesOwnBufferOnly(t *testing.T) {
	e, _ := newTestEngine()
	require.True(t, e.Write("c1", "x", "42", 1))

	assert.Equal(t, ReadResult{Success: true, Value: "42", Found: true}, e.Read("c1", "x", 1))
	assert.Equal(t, ReadResult{Success: true, Found: false}, e.Read("c2", "x", 2))
	assert.Empty(t, e.Snapshot(), "staged writes must not reach the committed store")
}

func TestWritesInIDOrderAdvanceLastWrite(t *testing.T) {
	e, _ := newTestEngine()
	commit(t, e, "c0", 1, map[string]string{"x": "0"})

	assert.True(t, e.Write("c1", "x", "a", 2))
	assert.True(t, e.Write("c2", "x", "b", 3))
	assert.Equal(t, int64(3), e.Snapshot()["x"].LastWriteTxn)
}

func TestWriteAfterNewerReadIsRejected(t *testing.T) {
	e, _ := newTestEngine()
	commit(t, e, "c0", 1, map[string]string{"k": "v"})

	res := e.Read("c1", "k", 5)
	require.True(t, res.Success)
	assert.Equal(t, int64(5), e.Snapshot()["k"].LastReadTxn)

	assert.False(t, e.Write("c2", "k", "late", 4))
	assert.Empty(t, e.sessions["c2"].buffer, "a rejected write stages nothing")
	assert.Equal(t, Entry{Value: "v", LastReadTxn: 5, LastWriteTxn: 1}, e.Snapshot()["k"])
}

func TestWriteAfterNewerWriteIsRejected(t *testing.T) {
	e, _ := newTestEngine()
	commit(t, e, "c0", 1, map[string]string{"x": "0"})

	require.True(t, e.Write("c1", "x", "1", 5))
	assert.False(t, e.Write("c2", "x", "2", 3))
}

func TestReadAfterNewerWriteIsRejected(t *testing.T) {
	e, _ := newTestEngine()
	commit(t, e, "c0", 1, map[string]string{"x": "0"})
	require.True(t, e.Write("c1", "x", "1", 5))

	assert.Equal(t, ReadResult{}, e.Read("c2", "x", 3))
}

func TestReadTimestampNeverMovesBack(t *testing.T) {
	e, _ := newTestEngine()
	commit(t, e, "c0", 1, map[string]string{"x": "0"})

	require.True(t, e.Read("c1", "x", 9).Success)
	require.True(t, e.Read("c2", "x", 4).Success)
	assert.Equal(t, int64(9), e.Snapshot()["x"].LastReadTxn)
}

func TestTryCommit(t *testing.T) {
	e, _ := newTestEngine()
	commit(t, e, "c0", 1, map[string]string{"x": "0", "y": "0"})

	require.True(t, e.Write("c1", "x", "1", 2))
	require.True(t, e.Write("c1", "y", "1", 2))
	require.True(t, e.Write("c1", "fresh", "1", 2))
	assert.True(t, e.TryCommit("c1", 2), "nothing has touched the buffered keys")

	// A newer transaction reads y, invalidating c1's pending write.
	require.True(t, e.Read("c2", "y", 3).Success)
	assert.False(t, e.TryCommit("c1", 2))

	// validation alone changes nothing
	assert.Len(t, e.sessions["c1"].buffer, 3)
	assert.Equal(t, "0", e.Snapshot()["x"].Value)
}

func TestDoCommitMakesValuesVisible(t *testing.T) {
	e, _ := newTestEngine()
	require.True(t, e.Write("c1", "x", "42", 1))
	require.True(t, e.TryCommit("c1", 1))
	e.DoCommit("c1", 1)

	want := map[string]Entry{"x": {Value: "42", LastReadTxn: common.NoTxn, LastWriteTxn: 1}}
	if diff := cmp.Diff(want, e.Snapshot()); diff != "" {
		t.Errorf("committed store mismatch (-want +got):\n%s", diff)
	}
	assert.Empty(t, e.sessions["c1"].buffer)
	assert.Equal(t, common.NoTxn, e.sessions["c1"].bufferTxn)

	assert.Equal(t, ReadResult{Success: true, Value: "42", Found: true}, e.Read("c2", "x", 2))
}

func TestDoCommitKeepsReadTimestamp(t *testing.T) {
	e, _ := newTestEngine()
	commit(t, e, "c0", 1, map[string]string{"x": "0"})
	require.True(t, e.Read("c1", "x", 2).Success)
	commit(t, e, "c1", 2, map[string]string{"x": "1"})

	assert.Equal(t, Entry{Value: "1", LastReadTxn: 2, LastWriteTxn: 2}, e.Snapshot()["x"])
}

func TestOrderingAnomalyIsLoggedNotFatal(t *testing.T) {
	e, hook := newTestEngine()
	before := testutil.ToFloat64(metric.OrderingAnomalies.WithLabelValues("write"))

	require.True(t, e.Write("c1", "a", "1", 7))
	hook.Reset()
	assert.True(t, e.Write("c1", "b", "2", 6), "out of order writes are still processed")

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.Contains(t, entry.Message, "RECVD 6 over 7")
	assert.Equal(t, before+1, testutil.ToFloat64(metric.OrderingAnomalies.WithLabelValues("write")))
	assert.Equal(t, int64(6), e.sessions["c1"].bufferTxn)
}

func TestAbortDiscardsBuffer(t *testing.T) {
	e, _ := newTestEngine()
	commit(t, e, "c0", 1, map[string]string{"x": "0"})
	require.True(t, e.Write("c1", "x", "1", 2))

	e.Abort("c1", 2)
	assert.Empty(t, e.sessions["c1"].buffer)
	assert.Equal(t, common.NoTxn, e.sessions["c1"].bufferTxn)
	// the claimed write timestamp stays
	assert.Equal(t, Entry{Value: "0", LastReadTxn: common.NoTxn, LastWriteTxn: 2}, e.Snapshot()["x"])

	e.DoCommit("c1", 2)
	assert.Equal(t, "0", e.Snapshot()["x"].Value, "nothing left to commit after abort")
}

func TestAbortOfOlderTxnIsIgnored(t *testing.T) {
	e, _ := newTestEngine()
	require.True(t, e.Write("c1", "x", "1", 4))

	e.Abort("c1", 3)
	assert.Equal(t, map[string]string{"x": "1"}, e.sessions["c1"].buffer)
}

func TestNewerTxnDropsAbandonedBuffer(t *testing.T) {
	e, _ := newTestEngine()
	require.True(t, e.Write("c1", "x", "stale", 1))

	require.True(t, e.Write("c1", "y", "fresh", 2))
	assert.Equal(t, map[string]string{"y": "fresh"}, e.sessions["c1"].buffer)
}

func TestStateSnapshotIsACopy(t *testing.T) {
	e, _ := newTestEngine()
	commit(t, e, "c0", 1, map[string]string{"x": "0"})

	state, err := e.State()
	require.NoError(t, err)
	snap := state.(map[string]Entry)
	snap["x"] = Entry{Value: "changed"}
	assert.Equal(t, "0", e.Snapshot()["x"].Value)
}

func TestStateGivesUpWhenBusy(t *testing.T) {
	e, _ := newTestEngine()
	e.mu.Lock()
	defer e.mu.Unlock()

	_, err := e.State()
	assert.Error(t, err)
}

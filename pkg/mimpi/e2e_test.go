package mimpi_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tanshoo/mimpi/pkg/mimpi/core"
	"github.com/tanshoo/mimpi/pkg/mimpi/mimpitest"
	"github.com/tanshoo/mimpi/pkg/mimpi/types"
)

func TestSendRecv_ExactTagMatch(t *testing.T) {
	cluster, err := mimpitest.NewCluster(2, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var got []byte
	var ret types.Retcode
	wg.Add(1)
	go func() {
		defer wg.Done()
		buf := make([]byte, 5)
		ret = cluster.Worlds[1].Recv(buf, 5, 0, 7)
		got = buf
	}()

	sendRet := cluster.Worlds[0].Send([]byte("hello"), 5, 1, 7)
	require.Equal(t, types.SUCCESS, sendRet)

	waitOrTimeout(t, &wg, 3*time.Second)
	require.Equal(t, types.SUCCESS, ret)
	require.Equal(t, []byte("hello"), got)

	cluster.FinalizeAll()
	goleak.VerifyNone(t)
}

func TestRecv_WildcardMatchesAnyPositiveTag(t *testing.T) {
	cluster, err := mimpitest.NewCluster(2, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var ret types.Retcode
	wg.Add(1)
	go func() {
		defer wg.Done()
		buf := make([]byte, 3)
		ret = cluster.Worlds[1].Recv(buf, 3, 0, types.TagWildcard)
	}()

	require.Equal(t, types.SUCCESS, cluster.Worlds[0].Send([]byte("abc"), 3, 1, 99))
	waitOrTimeout(t, &wg, 3*time.Second)
	require.Equal(t, types.SUCCESS, ret)

	cluster.FinalizeAll()
	goleak.VerifyNone(t)
}

func TestRecv_PeerLeavingUnblocksWaitersWithRemoteFinished(t *testing.T) {
	cluster, err := mimpitest.NewCluster(2, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var ret types.Retcode
	wg.Add(1)
	go func() {
		defer wg.Done()
		buf := make([]byte, 1)
		ret = cluster.Worlds[0].Recv(buf, 1, 1, 5)
	}()

	time.Sleep(50 * time.Millisecond)
	cluster.Worlds[1].Send(nil, 0, 0, types.TagPeerLeaving)

	waitOrTimeout(t, &wg, 3*time.Second)
	require.Equal(t, types.ErrorRemoteFinished, ret)

	var closeWg sync.WaitGroup
	for _, w := range cluster.Worlds {
		closeWg.Add(1)
		go func(w *core.World) {
			defer closeWg.Done()
			w.Close()
		}(w)
	}
	waitOrTimeout(t, &closeWg, 3*time.Second)
	goleak.VerifyNone(t)
}

func TestRecv_AbnormalPeerExitUnblocksWithRemoteFinished(t *testing.T) {
	const n = 3
	cluster, err := mimpitest.NewCluster(n, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var ret types.Retcode
	wg.Add(1)
	go func() {
		defer wg.Done()
		buf := make([]byte, 1)
		ret = cluster.Worlds[0].Recv(buf, 1, 1, 42)
	}()

	time.Sleep(50 * time.Millisecond)
	// Rank 1 vanishes without sending PEER_LEAVING/TERMINATE_RECEIVER or
	// running Finalize, simulating an abnormal process exit: only its
	// pipes close, exactly like an unexpectedly killed child process.
	cluster.Worlds[1].Close()

	waitOrTimeout(t, &wg, 3*time.Second)
	require.Equal(t, types.ErrorRemoteFinished, ret)

	var closeWg sync.WaitGroup
	for _, r := range []int{0, 2} {
		closeWg.Add(1)
		go func(w *core.World) {
			defer closeWg.Done()
			w.Close()
		}(cluster.Worlds[r])
	}
	waitOrTimeout(t, &closeWg, 3*time.Second)
	goleak.VerifyNone(t)
}

func TestBarrier_AllRanksReleaseTogether(t *testing.T) {
	const n = 4
	cluster, err := mimpitest.NewCluster(n, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	rets := make([]types.Retcode, n)
	for r := 0; r < n; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			rets[r] = cluster.Worlds[r].Barrier()
		}(r)
	}
	waitOrTimeout(t, &wg, 5*time.Second)

	for r, ret := range rets {
		require.Equalf(t, types.SUCCESS, ret, "rank %d barrier result", r)
	}

	cluster.FinalizeAll()
	goleak.VerifyNone(t)
}

func TestBcast_NonRootRanksReceiveRootData(t *testing.T) {
	const n = 4
	const root = 2
	cluster, err := mimpitest.NewCluster(n, nil)
	require.NoError(t, err)

	payload := []byte("cast")
	bufs := make([][]byte, n)
	for r := range bufs {
		bufs[r] = make([]byte, len(payload))
	}
	copy(bufs[root], payload)

	var wg sync.WaitGroup
	rets := make([]types.Retcode, n)
	for r := 0; r < n; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			rets[r] = cluster.Worlds[r].Bcast(bufs[r], len(payload), root)
		}(r)
	}
	waitOrTimeout(t, &wg, 5*time.Second)

	for r := 0; r < n; r++ {
		require.Equalf(t, types.SUCCESS, rets[r], "rank %d bcast result", r)
		require.Equalf(t, payload, bufs[r], "rank %d did not receive root's data", r)
	}

	cluster.FinalizeAll()
	goleak.VerifyNone(t)
}

func TestReduce_SumAtRoot(t *testing.T) {
	const n = 3
	const root = 0
	cluster, err := mimpitest.NewCluster(n, nil)
	require.NoError(t, err)

	send := [][]byte{{10}, {20}, {30}}
	recv := make([][]byte, n)
	for r := range recv {
		recv[r] = make([]byte, 1)
	}

	var wg sync.WaitGroup
	rets := make([]types.Retcode, n)
	for r := 0; r < n; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			rets[r] = cluster.Worlds[r].Reduce(send[r], recv[r], 1, types.OpSum, root)
		}(r)
	}
	waitOrTimeout(t, &wg, 5*time.Second)

	for r := 0; r < n; r++ {
		require.Equalf(t, types.SUCCESS, rets[r], "rank %d reduce result", r)
	}
	require.Equal(t, byte(60), recv[root][0])

	cluster.FinalizeAll()
	goleak.VerifyNone(t)
}

func waitOrTimeout(t *testing.T, wg *sync.WaitGroup, d time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatalf("timed out after %s", d)
	}
}

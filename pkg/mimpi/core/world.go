// Package core implements the per-process messaging engine: one receiver
// goroutine per peer, the shared message queue and matching engine, the
// send/recv public operations and the termination protocol they all rely
// on. pkg/mimpi wraps a single World instance behind the package-level MPI-
// style API; tests construct several World instances directly in one
// process (see pkg/mimpi/mimpitest).
package core

import (
	"fmt"
	"sync"
	"time"

	"github.com/tanshoo/mimpi/pkg/mimpi/metrics"
	"github.com/tanshoo/mimpi/pkg/mimpi/types"
)

// PeerPipes is the pair of already-opened byte channels to one peer: one
// inbound (reads frames the peer sends us), one outbound (we write frames
// the peer will read). Who opens these and how (cmd/mimpirun's ExtraFiles,
// or mimpitest's os.Pipe) is entirely outside core's concern.
type PeerPipes struct {
	Read  Pipe
	Write Pipe
}

type peerConn struct {
	rank  int
	pipes PeerPipes
}

// World is one worker process's messaging engine: N-1 peer connections,
// their receiver goroutines, the shared queue and the termination flags
// spec section 3 describes as the "World state" entity.
type World struct {
	size    int
	rank    int
	log     types.Logger
	metrics *metrics.Metrics

	peers map[int]*peerConn

	q *queue

	// leftBlock, groupFailed, pendingPattern and matched are all guarded
	// by q's mutex: they are read and written by both the single
	// application thread (inside Recv) and the N-1 receiver goroutines,
	// and every access already happens next to a condition-variable
	// operation on the same lock.
	leftBlock      []bool
	groupFailed    bool
	pendingPattern *pattern
	matched        bool

	wg sync.WaitGroup

	enableDeadlockDetection bool
}

// NewWorld builds a World for a process of the given rank in a world of
// peers' size+1, spawning one receiver goroutine per peer. peers must
// contain exactly one entry for every rank other than cfg.Rank.
func NewWorld(cfg types.WorldConfig, peers map[int]PeerPipes, m *metrics.Metrics) (*World, error) {
	if cfg.Size <= 0 {
		return nil, fmt.Errorf("mimpi: world size must be positive, got %d", cfg.Size)
	}
	if cfg.Rank < 0 || cfg.Rank >= cfg.Size {
		return nil, fmt.Errorf("mimpi: rank %d out of range [0,%d)", cfg.Rank, cfg.Size)
	}
	if len(peers) != cfg.Size-1 {
		return nil, fmt.Errorf("mimpi: expected %d peer connections, got %d", cfg.Size-1, len(peers))
	}
	for r := 0; r < cfg.Size; r++ {
		if r == cfg.Rank {
			continue
		}
		if _, ok := peers[r]; !ok {
			return nil, fmt.Errorf("mimpi: missing peer connection for rank %d", r)
		}
	}

	log := cfg.Logger
	if log == nil {
		return nil, fmt.Errorf("mimpi: a logger is required")
	}
	if m == nil {
		m = metrics.New(cfg.Rank)
	}

	w := &World{
		size:                    cfg.Size,
		rank:                    cfg.Rank,
		log:                     log,
		metrics:                 m,
		peers:                   make(map[int]*peerConn, len(peers)),
		q:                       newQueue(),
		leftBlock:               make([]bool, cfg.Size),
		enableDeadlockDetection: cfg.EnableDeadlockDetection,
	}

	for r, pp := range peers {
		w.peers[r] = &peerConn{rank: r, pipes: pp}
	}

	for r, pc := range w.peers {
		w.wg.Add(1)
		go w.receiverLoop(r, pc)
	}

	return w, nil
}

// WorldSize returns N.
func (w *World) WorldSize() int { return w.size }

// Rank returns this process's 0-based rank.
func (w *World) Rank() int { return w.rank }

// Send validates destination and serializes tag/count/payload onto the
// outbound pipe to destination, per spec section 4.3.
func (w *World) Send(data []byte, count int, destination int, tag types.Tag) types.Retcode {
	if destination == w.rank {
		return types.ErrorAttemptedSelfOp
	}
	if destination < 0 || destination >= w.size {
		return types.ErrorNoSuchRank
	}

	peer := w.peers[destination]
	var payload []byte
	if count > 0 {
		payload = data[:count]
	}

	if err := writeFrame(peer.pipes.Write, tag, payload); err != nil {
		w.metrics.RemoteFinished.Inc()
		return types.ErrorRemoteFinished
	}
	w.metrics.MessagesSent.WithLabelValues(metrics.TagClass(int32(tag))).Inc()
	return types.SUCCESS
}

// Recv implements the matching/suspension discipline of spec section 4.4.
func (w *World) Recv(data []byte, count int, source int, tag types.Tag) types.Retcode {
	if source == w.rank {
		return types.ErrorAttemptedSelfOp
	}
	if source < 0 || source >= w.size {
		return types.ErrorNoSuchRank
	}

	pat := pattern{source: source, count: count, tag: tag}
	isGroupTag := tag == types.TagGroupBegin || tag == types.TagGroupEnd

	w.q.Lock()
	elem := findFrom(w.q.front(), pat)
	if elem == nil {
		// Remember the last node we scanned (nil if the queue was
		// empty) so that after waking we only rescan what arrived
		// since, per spec section 4.4 step 5.
		lastChecked := w.q.l.Back()

		w.pendingPattern = &pat
		w.matched = false

		for {
			if w.matched {
				break
			}
			if tag >= 0 && w.leftBlock[source] {
				break
			}
			if isGroupTag && (w.leftBlock[source] || w.groupFailed) {
				break
			}
			w.q.Wait()
		}

		if !w.matched {
			w.matched = true
			w.pendingPattern = nil
			leftGone := w.leftBlock[source]
			w.q.Unlock()
			if isGroupTag && leftGone {
				w.sendGroupFail()
			}
			w.metrics.RemoteFinished.Inc()
			return types.ErrorRemoteFinished
		}

		w.pendingPattern = nil
		start := w.q.front()
		if lastChecked != nil {
			start = lastChecked.Next()
		}
		elem = findFrom(start, pat)
	}

	w.q.remove(elem)
	w.metrics.QueueDepth.Set(float64(w.q.l.Len()))
	w.q.Unlock()

	msg := elem.Value.(*Message)
	msg.awaitBuffered()
	if msg.Count > 0 {
		copy(data[:msg.Count], msg.Payload)
	}

	w.metrics.MessagesReceived.WithLabelValues(metrics.TagClass(int32(tag))).Inc()
	return types.SUCCESS
}

// sendGroupFail notifies rank 0 that a collective participant observed a
// peer's departure. The send is best-effort: if it fails the caller is
// already returning ERROR_REMOTE_FINISHED regardless.
func (w *World) sendGroupFail() {
	w.Send(nil, 0, 0, types.TagGroupFail)
}

// forwardGroupFail relays GROUP_FAIL down the rank tree rooted at 0, the
// same tree Barrier/Bcast/Reduce use, so every participant observes the
// failure within a bounded number of relays (spec section 4.1/4.5/7).
func (w *World) forwardGroupFail() {
	lc, rc := leftChild(w.rank), rightChild(w.rank)
	if lc < w.size {
		w.Send(nil, 0, lc, types.TagGroupFail)
	}
	if rc < w.size {
		w.Send(nil, 0, rc, types.TagGroupFail)
	}
}

// receiverLoop is the per-peer receiver task of spec section 4.1.
func (w *World) receiverLoop(peerRank int, pc *peerConn) {
	defer w.wg.Done()
	for {
		tag, count, eof, err := readMetaFrame(pc.pipes.Read)
		if eof {
			// Normal departure always sends TERMINATE_RECEIVER before its
			// pipes close, so reaching clean EOF here means peerRank went
			// away without running PEER_LEAVING/Finalize. Any Recv blocked
			// on this peer must still unblock with ERROR_REMOTE_FINISHED.
			w.q.Lock()
			w.leftBlock[peerRank] = true
			w.q.Broadcast()
			w.q.Unlock()
			return
		}
		if err != nil {
			w.log.Errorf("mimpi: rank %d: receiver for peer %d failed reading metadata: %v", w.rank, peerRank, err)
			return
		}

		switch tag {
		case types.TagPeerLeaving:
			w.q.Lock()
			w.leftBlock[peerRank] = true
			w.q.Broadcast()
			w.q.Unlock()
			continue
		case types.TagTerminateReceiver:
			return
		case types.TagGroupFail:
			w.q.Lock()
			first := !w.groupFailed
			if first {
				w.groupFailed = true
				w.q.Broadcast()
			}
			w.q.Unlock()
			if first {
				w.forwardGroupFail()
			}
			continue
		}

		if err := w.bufferMessage(peerRank, tag, count, pc.pipes.Read); err != nil {
			w.log.Errorf("mimpi: rank %d: receiver for peer %d failed buffering payload: %v", w.rank, peerRank, err)
			return
		}
	}
}

// bufferMessage constructs the Message for a just-received frame, links it
// at the tail of the queue, wakes a matching Recv if one is pending, then
// streams the payload in before releasing the buffered-flag. Matches spec
// section 4.1 step 3.
func (w *World) bufferMessage(peerRank int, tag types.Tag, count int, r Pipe) error {
	msg := newMessage(peerRank, tag, count)

	w.q.Lock()
	w.q.pushBack(msg)
	w.metrics.QueueDepth.Set(float64(w.q.l.Len()))
	if w.pendingPattern != nil && match(*w.pendingPattern, msg) {
		w.matched = true
		w.q.Broadcast()
	}
	w.q.Unlock()

	if count == 0 {
		msg.markBuffered()
		return nil
	}

	msg.Payload = make([]byte, count)
	if err := readPayload(r, msg.Payload); err != nil {
		msg.markBuffered()
		return err
	}
	msg.markBuffered()
	return nil
}

// Close tears down every peer connection without running the finalize
// barrier; mimpitest uses it to unwind already-built worlds when building a
// later one fails, and tests use it to simulate an abrupt peer exit.
func (w *World) Close() {
	for _, pc := range w.peers {
		pc.pipes.Read.Close()
		pc.pipes.Write.Close()
	}
	w.wg.Wait()
}

// Finalize implements spec section 4.6: announce departure, run the
// finalize barrier, tell every receiver to stop, join them, then close
// every pipe.
func (w *World) Finalize() types.Retcode {
	for r := range w.peers {
		w.Send(nil, 0, r, types.TagPeerLeaving)
	}

	ret := w.genericBarrier(types.TagFinalizeBegin, types.TagFinalizeEnd)

	for r := range w.peers {
		w.Send(nil, 0, r, types.TagTerminateReceiver)
	}
	w.wg.Wait()

	for _, pc := range w.peers {
		pc.pipes.Read.Close()
		pc.pipes.Write.Close()
	}

	return ret
}

// collectiveTimer returns a func to call at the end of a collective to
// record its latency under the given kind label.
func (w *World) collectiveTimer(kind string) func() {
	start := time.Now()
	return func() {
		w.metrics.CollectiveLatency.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	}
}

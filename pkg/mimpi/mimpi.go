// Package mimpi is the public, MPI-style API of spec section 6: a single
// process-wide world built by Init from the mimpirun environment contract
// and torn down by Finalize. The actual engine lives in pkg/mimpi/core as
// a plain, independently constructible World; this package only wraps one
// global instance behind the package-level functions callers expect from
// an MPI binding. Tests that need several worlds in one address space
// construct core.World (via pkg/mimpi/mimpitest) directly instead.
package mimpi

import (
	"fmt"
	"sync"

	"github.com/tanshoo/mimpi/pkg/mimpi/core"
	"github.com/tanshoo/mimpi/pkg/mimpi/definition"
	"github.com/tanshoo/mimpi/pkg/mimpi/types"
)

// Re-exported so callers of this package never need to import
// pkg/mimpi/types directly.
type Retcode = types.Retcode
type Tag = types.Tag
type Op = types.Op

const (
	SUCCESS               = types.SUCCESS
	ErrorAttemptedSelfOp  = types.ErrorAttemptedSelfOp
	ErrorNoSuchRank       = types.ErrorNoSuchRank
	ErrorRemoteFinished   = types.ErrorRemoteFinished
	ErrorDeadlockDetected = types.ErrorDeadlockDetected
)

const (
	OpMax  = types.OpMax
	OpMin  = types.OpMin
	OpSum  = types.OpSum
	OpProd = types.OpProd
)

var (
	mu    sync.Mutex
	world *core.World
)

// Init reads the mimpirun environment contract (world size, rank, per-peer
// pipe descriptors) and starts this process's messaging engine. It must be
// called exactly once before any other function in this package, and
// matched by exactly one Finalize call.
func Init(enableDeadlockDetection bool) error {
	mu.Lock()
	defer mu.Unlock()

	if world != nil {
		return fmt.Errorf("mimpi: Init called twice")
	}

	cfg, peers, err := readEnvironment()
	if err != nil {
		return err
	}
	cfg.EnableDeadlockDetection = enableDeadlockDetection
	cfg.Logger = definition.NewDefaultLogger()

	w, err := core.NewWorld(cfg, peers, nil)
	if err != nil {
		return err
	}
	world = w
	return nil
}

// Finalize announces departure to every peer, runs the finalize barrier,
// stops every receiver, closes every pipe and clears the mimpirun
// environment contract this process was given.
func Finalize() Retcode {
	mu.Lock()
	w := world
	world = nil
	mu.Unlock()

	if w == nil {
		return ErrorNoSuchRank
	}
	ret := w.Finalize()
	clearEnvironment(w.WorldSize(), w.Rank())
	return ret
}

func current() *core.World {
	mu.Lock()
	defer mu.Unlock()
	return world
}

// WorldSize returns N.
func WorldSize() int {
	w := current()
	if w == nil {
		return 0
	}
	return w.WorldSize()
}

// WorldRank returns this process's 0-based rank.
func WorldRank() int {
	w := current()
	if w == nil {
		return -1
	}
	return w.Rank()
}

// Send transmits count bytes of data to destination tagged tag.
func Send(data []byte, count int, destination int, tag Tag) Retcode {
	w := current()
	if w == nil {
		return ErrorNoSuchRank
	}
	return w.Send(data, count, destination, tag)
}

// Recv blocks until count bytes tagged tag arrive from source, copying
// them into data.
func Recv(data []byte, count int, source int, tag Tag) Retcode {
	w := current()
	if w == nil {
		return ErrorNoSuchRank
	}
	return w.Recv(data, count, source, tag)
}

// Barrier blocks until every rank in the world has called Barrier.
func Barrier() Retcode {
	w := current()
	if w == nil {
		return ErrorNoSuchRank
	}
	return w.Barrier()
}

// Bcast distributes root's data to every other rank.
func Bcast(data []byte, count int, root int) Retcode {
	w := current()
	if w == nil {
		return ErrorNoSuchRank
	}
	return w.Bcast(data, count, root)
}

// Reduce folds every rank's sendData into root's recvData under op.
func Reduce(sendData, recvData []byte, count int, op Op, root int) Retcode {
	w := current()
	if w == nil {
		return ErrorNoSuchRank
	}
	return w.Reduce(sendData, recvData, count, op, root)
}

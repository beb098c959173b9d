// Package mimpitest is the in-process "virtual launcher" SPEC_FULL.md
// calls for: it wires a full N×N mesh of real unidirectional os.Pipe()
// channels between goroutines in a single address space and constructs one
// core.World per rank, so the messaging engine can be exercised end to end
// without forking real OS processes. It mirrors the teacher's own
// in-process cluster harness (test.CreateCluster/TestInvoker in
// fuzzy/commit_test.go), reworked around this module's World instead of
// Peer/Unity.
package mimpitest

import (
	"fmt"
	"os"
	"sync"

	"github.com/tanshoo/mimpi/pkg/mimpi/core"
	"github.com/tanshoo/mimpi/pkg/mimpi/definition"
	"github.com/tanshoo/mimpi/pkg/mimpi/types"
)

// Cluster is N World instances wired together in one process.
type Cluster struct {
	Worlds []*core.World
}

type link struct {
	r, w *os.File
}

// NewCluster builds a Cluster of n ranks. If logger is nil, every rank
// gets its own definition.DefaultLogger.
func NewCluster(n int, logger types.Logger) (*Cluster, error) {
	if n < 1 {
		return nil, fmt.Errorf("mimpitest: cluster size must be positive, got %d", n)
	}

	// links[i][j] is the unidirectional channel carrying messages from
	// rank i to rank j: i holds the write end, j holds the read end,
	// exactly like one ordered pair's pipe in mimpirun.c's mesh.
	links := make(map[[2]int]link, n*(n-1))
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			r, w, err := os.Pipe()
			if err != nil {
				closeLinks(links)
				return nil, fmt.Errorf("mimpitest: opening pipe %d->%d: %w", i, j, err)
			}
			links[[2]int{i, j}] = link{r: r, w: w}
		}
	}

	worlds := make([]*core.World, n)
	for rank := 0; rank < n; rank++ {
		peers := make(map[int]core.PeerPipes, n-1)
		for p := 0; p < n; p++ {
			if p == rank {
				continue
			}
			peers[p] = core.PeerPipes{
				Read:  links[[2]int{p, rank}].r,
				Write: links[[2]int{rank, p}].w,
			}
		}

		rankLogger := logger
		if rankLogger == nil {
			rankLogger = definition.NewDefaultLogger()
		}
		cfg := types.WorldConfig{Size: n, Rank: rank, Logger: rankLogger}

		w, err := core.NewWorld(cfg, peers, nil)
		if err != nil {
			for _, done := range worlds[:rank] {
				done.Close()
			}
			closeLinks(links)
			return nil, err
		}
		worlds[rank] = w
	}

	return &Cluster{Worlds: worlds}, nil
}

func closeLinks(links map[[2]int]link) {
	for _, l := range links {
		l.r.Close()
		l.w.Close()
	}
}

// FinalizeAll calls Finalize on every rank concurrently (the way a real
// cluster's finalize barrier requires every rank to participate at once)
// and returns each rank's return code in rank order.
func (c *Cluster) FinalizeAll() []types.Retcode {
	rets := make([]types.Retcode, len(c.Worlds))
	var wg sync.WaitGroup
	for i, w := range c.Worlds {
		wg.Add(1)
		go func(i int, w *core.World) {
			defer wg.Done()
			rets[i] = w.Finalize()
		}(i, w)
	}
	wg.Wait()
	return rets
}
